package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/google/uuid"

	"github.com/iabetor/pispeak/internal/audio"
	"github.com/iabetor/pispeak/internal/logger"
)

// piperDefaultSampleRate 是未能从侧车配置探测到采样率时的默认值。
const piperDefaultSampleRate = 24000

// PiperVoice 描述一个 piper 语音模型：模型文件、可选的侧车配置
// 以及从配置中探测到的原生采样率。构造后不可变。
type PiperVoice struct {
	ModelPath  string
	ConfigPath string
	SampleRate int
}

// NewPiperVoice 创建语音模型描述。
// configPath 为空时探测 "<modelPath>.json" 侧车文件，存在则使用。
// 采样率从配置的 audio.sample_rate（优先）或顶层 sample_rate 读取；
// 配置缺失、损坏或字段缺失一律静默回退到默认值，构造永不失败。
func NewPiperVoice(modelPath, configPath string) *PiperVoice {
	if configPath == "" {
		sidecar := modelPath + ".json"
		if info, err := os.Stat(sidecar); err == nil && !info.IsDir() {
			configPath = sidecar
		}
	}

	v := &PiperVoice{
		ModelPath:  modelPath,
		ConfigPath: configPath,
		SampleRate: piperDefaultSampleRate,
	}
	if configPath != "" {
		if rate, ok := sampleRateFromConfig(configPath); ok {
			v.SampleRate = rate
		}
	}
	return v
}

// sampleRateFromConfig 从模型配置 JSON 中读取采样率。
// 任何 IO / 解析 / 字段缺失都返回 ok=false，不向外传播错误。
func sampleRateFromConfig(path string) (int, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}

	var cfg map[string]interface{}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return 0, false
	}

	if section, ok := cfg["audio"].(map[string]interface{}); ok {
		if rate, ok := asInt(section["sample_rate"]); ok {
			return rate, true
		}
	}
	if rate, ok := asInt(cfg["sample_rate"]); ok {
		return rate, true
	}
	return 0, false
}

// asInt 将 JSON 数值转换为 int。
func asInt(v interface{}) (int, bool) {
	f, ok := v.(float64)
	if !ok {
		return 0, false
	}
	return int(f), true
}

// PiperEngine 使用 piper CLI 子进程实现语音合成。
// 每次合成都是一次完整的同步子进程调用：文本从 stdin 喂入，
// 结果 WAV 写到临时文件，读出后整块推入输出队列。
type PiperEngine struct {
	execPath    string
	voice       *PiperVoice
	lengthScale float64
	out         *audio.Queue
}

// NewPiperEngine 创建 piper 引擎。
// 可执行文件路径的解析顺序：execPath 参数 → PIPER_PATH 环境变量 →
// 平台默认命令名。只在构造时解析一次，之后不再读环境。
// lengthScale 控制语速（1.0 为原速，越大越慢）。
func NewPiperEngine(execPath string, lengthScale float64) *PiperEngine {
	if execPath == "" {
		execPath = os.Getenv("PIPER_PATH")
	}
	if execPath == "" {
		if runtime.GOOS == "windows" {
			execPath = "piper.exe"
		} else {
			execPath = "piper"
		}
	}
	if lengthScale == 0 {
		lengthScale = 1.0
	}

	return &PiperEngine{
		execPath:    execPath,
		lengthScale: lengthScale,
		out:         audio.NewQueue(),
	}
}

// Name 返回引擎名称。
func (p *PiperEngine) Name() string { return string(EnginePiper) }

// SetVoice 替换当前语音模型，对下一次 Synthesize 生效。不做校验。
func (p *PiperEngine) SetVoice(v *PiperVoice) {
	p.voice = v
}

// Voice 返回当前语音模型。
func (p *PiperEngine) Voice() *PiperVoice { return p.voice }

// VoiceID 返回当前模型路径，未设置时为空。
func (p *PiperEngine) VoiceID() string {
	if p.voice == nil {
		return ""
	}
	return p.voice.ModelPath
}

// Voices piper 引擎不支持枚举音色，始终返回空。
func (p *PiperEngine) Voices() []Voice { return nil }

// Out 返回输出队列。
func (p *PiperEngine) Out() *audio.Queue { return p.out }

// StreamInfo 返回输出音频格式。
// 注意：这里固定上报 24000 Hz，不使用侧车配置探测到的原生采样率，
// 与既有下游的假设保持一致；原生采样率仍可通过 Voice().SampleRate 读取。
func (p *PiperEngine) StreamInfo() StreamInfo {
	return StreamInfo{Format: FormatS16, Channels: 1, SampleRate: piperDefaultSampleRate}
}

// Synthesize 调用 piper 子进程将文本合成为音频并推入输出队列。
// 所有失败（模型未设置、可执行文件缺失、非零退出、WAV 损坏）
// 都只记录日志并返回 false，不向外抛出。
func (p *PiperEngine) Synthesize(ctx context.Context, text string) bool {
	if p.voice == nil || p.voice.ModelPath == "" {
		logger.Errorf("[tts] piper: 未设置语音模型")
		return false
	}

	logger.Debugf("[tts] piper: 正在合成 %d 个字符，模型=%s", len([]rune(text)), p.voice.ModelPath)

	// 唯一临时输出路径，文件本身不必预先存在
	wavPath := filepath.Join(os.TempDir(), "pispeak-"+uuid.NewString()+".wav")
	defer func() {
		// 无论成败都尝试清理，清理失败不影响结果
		if _, err := os.Stat(wavPath); err == nil {
			_ = os.Remove(wavPath)
		}
	}()

	args := []string{"-m", p.voice.ModelPath, "-f", wavPath}
	if p.voice.ConfigPath != "" {
		if _, err := os.Stat(p.voice.ConfigPath); err == nil {
			args = append(args, "-c", p.voice.ConfigPath)
		}
	}
	if p.lengthScale != 1.0 {
		args = append(args, "--length_scale", strconv.FormatFloat(p.lengthScale, 'f', -1, 64))
	}

	cmd := exec.CommandContext(ctx, p.execPath, args...)
	cmd.Stdin = bytes.NewReader([]byte(text))

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.Is(err, exec.ErrNotFound):
			logger.Errorf("[tts] piper: 找不到可执行文件 %q", p.execPath)
		case errors.As(err, &exitErr):
			logger.Errorf("[tts] piper: 退出码 %d: %s", exitErr.ExitCode(), stderr.String())
		default:
			logger.Errorf("[tts] piper: 执行失败: %v", err)
		}
		return false
	}

	_, frames, err := audio.DecodeWAVFile(wavPath)
	if err != nil {
		logger.Errorf("[tts] piper: 解析输出 WAV 失败: %v", err)
		return false
	}

	logger.Debugf("[tts] piper: 收到 %d 字节 PCM", len(frames))

	p.out.Push(frames)
	return true
}

package tts

import (
	"context"
	"fmt"
	"strconv"

	sherpa "github.com/k2-fsa/sherpa-onnx-go/sherpa_onnx"

	"github.com/iabetor/pispeak/internal/audio"
	"github.com/iabetor/pispeak/internal/logger"
)

// VitsEngine 使用 sherpa-onnx 在进程内运行 VITS 模型实现语音合成，
// 不依赖任何外部进程，是子进程方案的进程内替代。
type VitsEngine struct {
	tts        *sherpa.OfflineTts
	sampleRate int
	modelPath  string
	speakerID  int
	speed      float32
	out        *audio.Queue
}

// VitsOptions sherpa-onnx VITS 引擎参数。
type VitsOptions struct {
	ModelPath   string
	TokensPath  string
	LexiconPath string
	DataDir     string
	NumThreads  int
	SpeakerID   int
	Speed       float64
}

// NewVitsEngine 加载 VITS 模型并创建引擎。
func NewVitsEngine(opts VitsOptions) (*VitsEngine, error) {
	if opts.ModelPath == "" || opts.TokensPath == "" {
		return nil, fmt.Errorf("[tts] vits 需要 model_path 和 tokens_path")
	}
	if opts.NumThreads <= 0 {
		opts.NumThreads = 2
	}
	if opts.Speed == 0 {
		opts.Speed = 1.0
	}

	config := sherpa.OfflineTtsConfig{
		Model: sherpa.OfflineTtsModelConfig{
			Vits: sherpa.OfflineTtsVitsModelConfig{
				Model:       opts.ModelPath,
				Tokens:      opts.TokensPath,
				Lexicon:     opts.LexiconPath,
				DataDir:     opts.DataDir,
				NoiseScale:  0.667,
				NoiseScaleW: 0.8,
				LengthScale: 1.0,
			},
			NumThreads: opts.NumThreads,
			Provider:   "cpu",
		},
		MaxNumSentences: 1,
	}

	t := sherpa.NewOfflineTts(&config)
	if t == nil {
		return nil, fmt.Errorf("[tts] 加载 VITS 模型失败: %s", opts.ModelPath)
	}

	e := &VitsEngine{
		tts:        t,
		sampleRate: t.SampleRate(),
		modelPath:  opts.ModelPath,
		speakerID:  opts.SpeakerID,
		speed:      float32(opts.Speed),
		out:        audio.NewQueue(),
	}

	logger.Infof("[tts] vits 引擎已初始化 (model=%s, rate=%d Hz, threads=%d)",
		opts.ModelPath, e.sampleRate, opts.NumThreads)

	return e, nil
}

// Name 返回引擎名称。
func (e *VitsEngine) Name() string { return string(EngineVits) }

// VoiceID 返回模型路径和 speaker 编号组成的标识。
func (e *VitsEngine) VoiceID() string {
	return e.modelPath + "#" + strconv.Itoa(e.speakerID)
}

// Voices VITS 多 speaker 模型的音色只有编号，没有可枚举的元数据。
func (e *VitsEngine) Voices() []Voice { return nil }

// Out 返回输出队列。
func (e *VitsEngine) Out() *audio.Queue { return e.out }

// StreamInfo 返回输出音频格式，采样率来自已加载的模型。
func (e *VitsEngine) StreamInfo() StreamInfo {
	return StreamInfo{Format: FormatS16, Channels: 1, SampleRate: e.sampleRate}
}

// Synthesize 在进程内合成文本并将 16-bit PCM 推入输出队列。
func (e *VitsEngine) Synthesize(ctx context.Context, text string) bool {
	logger.Debugf("[tts] vits: 正在合成 %d 个字符，speaker=%d", len([]rune(text)), e.speakerID)

	select {
	case <-ctx.Done():
		logger.Warnf("[tts] vits: 合成被取消")
		return false
	default:
	}

	generated := e.tts.Generate(text, e.speakerID, e.speed)
	if generated == nil || len(generated.Samples) == 0 {
		logger.Errorf("[tts] vits: 未生成音频数据")
		return false
	}

	pcm := audio.Float32ToBytes(generated.Samples)

	logger.Debugf("[tts] vits: 生成 %d 字节 PCM，采样率 %d Hz", len(pcm), generated.SampleRate)

	e.out.Push(pcm)
	return true
}

// Close 释放模型资源。
func (e *VitsEngine) Close() {
	if e.tts != nil {
		sherpa.DeleteOfflineTts(e.tts)
		e.tts = nil
	}
}

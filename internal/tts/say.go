package tts

import (
	"bytes"
	"context"
	"os"
	"os/exec"

	"github.com/iabetor/pispeak/internal/audio"
	"github.com/iabetor/pispeak/internal/logger"
)

// saySampleRate 是 afconvert 输出的采样率。
const saySampleRate = 22050

// SayEngine 使用 macOS 内置 say 命令实现语音合成，作为离线备用方案。
// 仅在 macOS 上可用。
type SayEngine struct {
	voice string // macOS 语音名称，如 "Tingting"（中文）
	out   *audio.Queue
}

// NewSayEngine 创建 macOS say 引擎。
// voice 为空时使用系统默认语音。
func NewSayEngine(voice string) *SayEngine {
	return &SayEngine{
		voice: voice,
		out:   audio.NewQueue(),
	}
}

// Name 返回引擎名称。
func (s *SayEngine) Name() string { return string(EngineSay) }

// VoiceID 返回当前语音名称。
func (s *SayEngine) VoiceID() string { return s.voice }

// Voices say 的语音由系统管理，这里不做枚举。
func (s *SayEngine) Voices() []Voice { return nil }

// Out 返回输出队列。
func (s *SayEngine) Out() *audio.Queue { return s.out }

// StreamInfo 返回输出音频格式。
func (s *SayEngine) StreamInfo() StreamInfo {
	return StreamInfo{Format: FormatS16, Channels: 1, SampleRate: saySampleRate}
}

// Synthesize 使用 say 命令将文本合成为单声道 16-bit PCM 并推入输出队列。
// say 先输出 AIFF 文件，再用 afconvert 转为 WAV。
func (s *SayEngine) Synthesize(ctx context.Context, text string) bool {
	logger.Debugf("[tts] say: 正在合成 %d 个字符", len([]rune(text)))

	tmpFile, err := os.CreateTemp("", "pispeak-say-*.aiff")
	if err != nil {
		logger.Errorf("[tts] say: 创建临时文件失败: %v", err)
		return false
	}
	aiffPath := tmpFile.Name()
	tmpFile.Close()
	defer os.Remove(aiffPath)

	wavPath := aiffPath + ".wav"
	defer os.Remove(wavPath)

	args := []string{"-o", aiffPath}
	if s.voice != "" {
		args = append(args, "-v", s.voice)
	}
	args = append(args, text)

	cmd := exec.CommandContext(ctx, "say", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		logger.Errorf("[tts] say: 执行失败: %v, stderr: %s", err, stderr.String())
		return false
	}

	// afconvert 转为 16-bit LE 单声道 WAV
	convertCmd := exec.CommandContext(ctx, "afconvert",
		"-f", "WAVE",
		"-d", "LEI16@22050",
		"-c", "1",
		aiffPath, wavPath,
	)
	var convertStderr bytes.Buffer
	convertCmd.Stderr = &convertStderr

	if err := convertCmd.Run(); err != nil {
		logger.Errorf("[tts] say: afconvert 执行失败: %v, stderr: %s", err, convertStderr.String())
		return false
	}

	_, frames, err := audio.DecodeWAVFile(wavPath)
	if err != nil {
		logger.Errorf("[tts] say: 解析输出 WAV 失败: %v", err)
		return false
	}
	if len(frames) == 0 {
		logger.Errorf("[tts] say: 未收到音频数据")
		return false
	}

	logger.Debugf("[tts] say: 收到 %d 字节 PCM", len(frames))

	s.out.Push(frames)
	return true
}

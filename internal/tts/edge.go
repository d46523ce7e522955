package tts

import (
	"bytes"
	"context"
	"io"

	"github.com/hajimehoshi/go-mp3"
	"github.com/pp-group/edge-tts-go/biz/service/tts/edge"

	"github.com/iabetor/pispeak/internal/audio"
	"github.com/iabetor/pispeak/internal/logger"
)

// edgeSampleRate 是 Edge TTS 返回的 MP3 解码后的采样率。
const edgeSampleRate = 24000

// EdgeEngine 使用微软 Edge TTS 实现语音合成，
// 通过 edge-tts-go 获取 MP3 音频，再用 go-mp3 解码为 PCM。
type EdgeEngine struct {
	voice string
	out   *audio.Queue
}

// NewEdgeEngine 创建指定音色的 Edge TTS 引擎。
func NewEdgeEngine(voice string) *EdgeEngine {
	return &EdgeEngine{
		voice: voice,
		out:   audio.NewQueue(),
	}
}

// Name 返回引擎名称。
func (e *EdgeEngine) Name() string { return string(EngineEdge) }

// VoiceID 返回当前音色名。
func (e *EdgeEngine) VoiceID() string { return e.voice }

// Voices Edge TTS 的音色列表由服务端维护，这里不做枚举。
func (e *EdgeEngine) Voices() []Voice { return nil }

// Out 返回输出队列。
func (e *EdgeEngine) Out() *audio.Queue { return e.out }

// StreamInfo 返回输出音频格式。
func (e *EdgeEngine) StreamInfo() StreamInfo {
	return StreamInfo{Format: FormatS16, Channels: 1, SampleRate: edgeSampleRate}
}

// Synthesize 将文本合成为单声道 16-bit PCM 并推入输出队列。
func (e *EdgeEngine) Synthesize(ctx context.Context, text string) bool {
	logger.Debugf("[tts] edge: 正在合成 %d 个字符，音色=%s", len([]rune(text)), e.voice)

	comm, err := edge.NewCommunicate(text, edge.WithVoice(e.voice))
	if err != nil {
		logger.Errorf("[tts] edge: 创建实例失败: %v", err)
		return false
	}

	ch, err := comm.Stream()
	if err != nil {
		logger.Errorf("[tts] edge: 开始流式合成失败: %v", err)
		return false
	}

	// 从 channel 收集所有 MP3 数据块
	var mp3Buf bytes.Buffer
	for msg := range ch {
		select {
		case <-ctx.Done():
			logger.Warnf("[tts] edge: 合成被取消")
			return false
		default:
		}
		if msgType, ok := msg["type"].(string); ok && msgType == "audio" {
			if data, ok := msg["data"].([]byte); ok {
				mp3Buf.Write(data)
			}
		}
	}

	if mp3Buf.Len() == 0 {
		logger.Errorf("[tts] edge: 未收到音频数据")
		return false
	}

	decoder, err := mp3.NewDecoder(&mp3Buf)
	if err != nil {
		logger.Errorf("[tts] edge: MP3 解码失败: %v", err)
		return false
	}

	pcm, err := io.ReadAll(decoder)
	if err != nil {
		logger.Errorf("[tts] edge: 读取 PCM 数据失败: %v", err)
		return false
	}

	// go-mp3 输出 16-bit LE 立体声，下混为单声道
	mono := audio.StereoToMono(pcm)

	logger.Debugf("[tts] edge: 解码得到 %d 字节单声道 PCM，采样率 %d Hz",
		len(mono), decoder.SampleRate())

	e.out.Push(mono)
	return true
}

package tts

import (
	"context"

	"github.com/iabetor/pispeak/internal/audio"
)

// SampleFormat 输出样本格式。
type SampleFormat int

const (
	// FormatS16 signed 16-bit LE PCM，目前所有引擎的统一输出格式。
	FormatS16 SampleFormat = iota
)

// StreamInfo 描述引擎输出音频的固定格式，
// 下游播放端按此格式消费输出队列中的数据。
type StreamInfo struct {
	Format     SampleFormat
	Channels   int
	SampleRate int
}

// Voice 描述引擎可枚举的一个音色。
type Voice struct {
	ID       string
	Name     string
	Language string
}

// Engine 定义语音合成后端接口。
// Synthesize 将一条语句合成为 PCM 并推入输出队列；
// 所有失败都被吞掉，只通过返回值和日志反映，便于上层兜底切换。
type Engine interface {
	// Name 返回引擎名称，用于日志和缓存键。
	Name() string

	// Synthesize 合成 text 并将结果推入输出队列。
	// 成功返回 true；任何失败记录日志后返回 false，队列不变。
	Synthesize(ctx context.Context, text string) bool

	// StreamInfo 返回输出音频格式。
	StreamInfo() StreamInfo

	// Voices 返回引擎可枚举的音色列表，不支持枚举的引擎返回空。
	Voices() []Voice

	// VoiceID 返回当前音色标识，用于缓存键。
	VoiceID() string

	// Out 返回输出队列，由消费方排空。
	Out() *audio.Queue
}

// EngineType 引擎类型。
type EngineType string

const (
	EnginePiper   EngineType = "piper"   // piper 子进程（离线）
	EngineEdge    EngineType = "edge"    // 微软 Edge TTS（在线）
	EngineSay     EngineType = "say"     // macOS say（离线，仅 macOS）
	EngineTencent EngineType = "tencent" // 腾讯云 TTS（在线）
	EngineVits    EngineType = "vits"    // sherpa-onnx VITS（离线，进程内）
)

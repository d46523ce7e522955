package tts

import (
	"context"
	"sync"
	"time"

	"github.com/iabetor/pispeak/internal/audio"
	"github.com/iabetor/pispeak/internal/logger"
)

// FallbackEngine 多层兜底 TTS 引擎。
// 按优先级依次尝试各引擎，失败的引擎进入冷却期，
// 冷却期结束后的下一次合成会重新尝试它（在线引擎网络恢复后自动回切）。
// 成功引擎的输出被搬运到 FallbackEngine 自己的队列，
// 因此消费方始终只需要排空一个队列。
type FallbackEngine struct {
	engines []Engine

	mu       sync.Mutex
	lastIdx  int               // 最近一次成功的引擎索引
	failedAt map[int]time.Time // 引擎失败时间

	recoveryInterval time.Duration
	out              *audio.Queue
}

// FallbackOptions 兜底引擎配置。
type FallbackOptions struct {
	// Engines 引擎列表，按优先级排序，至少一个。
	Engines []Engine
	// RecoveryInterval 失败引擎的冷却时长，默认 5 分钟。
	RecoveryInterval time.Duration
}

// NewFallbackEngine 创建多层兜底引擎。
func NewFallbackEngine(opts FallbackOptions) *FallbackEngine {
	if len(opts.Engines) == 0 {
		panic("FallbackEngine: 至少需要一个引擎")
	}

	recoveryInterval := opts.RecoveryInterval
	if recoveryInterval == 0 {
		recoveryInterval = 5 * time.Minute
	}

	names := make([]string, len(opts.Engines))
	for i, eng := range opts.Engines {
		names[i] = eng.Name()
	}
	logger.Infof("[tts] 兜底引擎已初始化，优先级: %v", names)

	return &FallbackEngine{
		engines:          opts.Engines,
		failedAt:         make(map[int]time.Time),
		recoveryInterval: recoveryInterval,
		out:              audio.NewQueue(),
	}
}

// Name 返回引擎名称。
func (f *FallbackEngine) Name() string {
	return f.current().Name()
}

// VoiceID 委托给最近成功的引擎。
func (f *FallbackEngine) VoiceID() string {
	return f.current().VoiceID()
}

// Voices 委托给最近成功的引擎。
func (f *FallbackEngine) Voices() []Voice {
	return f.current().Voices()
}

// Out 返回输出队列。
func (f *FallbackEngine) Out() *audio.Queue { return f.out }

// StreamInfo 返回最近成功引擎的输出格式。
// 各引擎采样率可能不同，消费方应在每次合成后重新读取。
func (f *FallbackEngine) StreamInfo() StreamInfo {
	return f.current().StreamInfo()
}

// current 返回最近一次成功的引擎（从未成功时为首个引擎）。
func (f *FallbackEngine) current() Engine {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.engines[f.lastIdx]
}

// Synthesize 依优先级尝试各引擎，第一个成功者的输出被搬运到本队列。
// 冷却期内的引擎会被跳过；全部失败返回 false。
func (f *FallbackEngine) Synthesize(ctx context.Context, text string) bool {
	for i, eng := range f.engines {
		if f.inCooldown(i) {
			logger.Debugf("[tts] 引擎 %s 冷却中，跳过", eng.Name())
			continue
		}

		if eng.Synthesize(ctx, text) {
			f.markSuccess(i)
			// 把成功引擎的输出搬到自己的队列
			for {
				buf, ok := eng.Out().TryPop()
				if !ok {
					break
				}
				f.out.Push(buf)
			}
			return true
		}

		f.markFailed(i)
		logger.Warnf("[tts] 引擎 %s 合成失败，尝试下一个", eng.Name())

		if ctx.Err() != nil {
			return false
		}
	}

	logger.Errorf("[tts] 所有引擎合成失败")
	return false
}

// inCooldown 返回引擎是否处于失败冷却期。
func (f *FallbackEngine) inCooldown(idx int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	at, ok := f.failedAt[idx]
	return ok && time.Since(at) < f.recoveryInterval
}

// markFailed 记录引擎失败时间。
func (f *FallbackEngine) markFailed(idx int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failedAt[idx] = time.Now()
}

// markSuccess 清除失败记录并更新最近成功索引。
func (f *FallbackEngine) markSuccess(idx int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.failedAt, idx)
	if f.lastIdx != idx {
		logger.Infof("[tts] 当前引擎切换为 %s", f.engines[idx].Name())
		f.lastIdx = idx
	}
}

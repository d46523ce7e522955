package speaker

import (
	"bytes"
	"context"
	"fmt"

	"github.com/iabetor/pispeak/internal/audio"
	"github.com/iabetor/pispeak/internal/cache"
	"github.com/iabetor/pispeak/internal/config"
	"github.com/iabetor/pispeak/internal/logger"
	"github.com/iabetor/pispeak/internal/tts"
)

// Speaker 把 TTS 引擎和播放端串联起来：
// 每条语句先查缓存，未命中则调用引擎合成并排空输出队列，
// 成功的结果写回缓存，最后经扬声器播放或写入 WAV 文件。
type Speaker struct {
	engine tts.Engine
	player *audio.Player
	cache  *cache.Cache
}

// New 根据配置创建 Speaker。
// playback 为 false 时不初始化音频设备（用于只写文件的场景）。
func New(cfg *config.Config, playback bool) (*Speaker, error) {
	engine, err := buildEngine(cfg.TTS)
	if err != nil {
		return nil, err
	}

	s := &Speaker{engine: engine}

	s.cache, err = cache.New(cfg.Cache.Dir, cfg.Cache.DBPath, cfg.Cache.MaxSizeMB)
	if err != nil {
		return nil, fmt.Errorf("初始化缓存失败: %w", err)
	}

	if playback {
		s.player, err = audio.NewPlayer(1)
		if err != nil {
			s.cache.Close()
			return nil, fmt.Errorf("初始化音频播放失败: %w", err)
		}
	}

	return s, nil
}

// buildEngine 根据配置构造引擎；priority 非空时包一层兜底链。
func buildEngine(cfg config.TTSConfig) (tts.Engine, error) {
	if len(cfg.Priority) == 0 {
		return newEngine(cfg, cfg.Engine)
	}

	engines := make([]tts.Engine, 0, len(cfg.Priority))
	for _, name := range cfg.Priority {
		eng, err := newEngine(cfg, name)
		if err != nil {
			return nil, err
		}
		engines = append(engines, eng)
	}
	return tts.NewFallbackEngine(tts.FallbackOptions{Engines: engines}), nil
}

// newEngine 构造单个引擎。
func newEngine(cfg config.TTSConfig, name string) (tts.Engine, error) {
	switch tts.EngineType(name) {
	case tts.EnginePiper:
		eng := tts.NewPiperEngine(cfg.Piper.ExecPath, cfg.Piper.LengthScale)
		if cfg.Piper.ModelPath != "" {
			eng.SetVoice(tts.NewPiperVoice(cfg.Piper.ModelPath, cfg.Piper.ConfigPath))
		}
		return eng, nil
	case tts.EngineEdge:
		return tts.NewEdgeEngine(cfg.Edge.Voice), nil
	case tts.EngineSay:
		return tts.NewSayEngine(cfg.Say.Voice), nil
	case tts.EngineTencent:
		return tts.NewTencentEngine(tts.TencentOptions{
			SecretID:  cfg.Tencent.SecretID,
			SecretKey: cfg.Tencent.SecretKey,
			VoiceType: cfg.Tencent.VoiceType,
			Region:    cfg.Tencent.Region,
			Speed:     cfg.Tencent.Speed,
		})
	case tts.EngineVits:
		return tts.NewVitsEngine(tts.VitsOptions{
			ModelPath:   cfg.Vits.ModelPath,
			TokensPath:  cfg.Vits.TokensPath,
			LexiconPath: cfg.Vits.LexiconPath,
			DataDir:     cfg.Vits.DataDir,
			NumThreads:  cfg.Vits.NumThreads,
			SpeakerID:   cfg.Vits.SpeakerID,
			Speed:       cfg.Vits.Speed,
		})
	default:
		return nil, fmt.Errorf("未知的 TTS 引擎: %s", name)
	}
}

// Engine 返回底层引擎。
func (s *Speaker) Engine() tts.Engine { return s.engine }

// Say 合成并播放一条语句。
func (s *Speaker) Say(ctx context.Context, text string) error {
	if s.player == nil {
		return fmt.Errorf("播放未启用")
	}

	pcm, sampleRate, err := s.synth(ctx, text)
	if err != nil {
		return err
	}
	return s.player.Play(ctx, pcm, sampleRate)
}

// SaveWAV 合成一条语句并写为 WAV 文件。
func (s *Speaker) SaveWAV(ctx context.Context, text, path string) error {
	pcm, sampleRate, err := s.synth(ctx, text)
	if err != nil {
		return err
	}
	if err := audio.EncodeWAVFile(path, pcm, sampleRate, 1); err != nil {
		return err
	}
	logger.Infof("[speaker] 已写入 %s (%d 字节, %d Hz)", path, len(pcm), sampleRate)
	return nil
}

// synth 返回一条语句的 PCM 和采样率，优先走缓存。
func (s *Speaker) synth(ctx context.Context, text string) ([]byte, int, error) {
	key := cache.Key(s.engine.Name(), s.engine.VoiceID(),
		s.engine.StreamInfo().SampleRate, text)
	if pcm, rate, ok := s.cache.Lookup(key); ok {
		return pcm, rate, nil
	}

	if !s.engine.Synthesize(ctx, text) {
		return nil, 0, fmt.Errorf("合成失败: %q", truncate(text, 32))
	}

	// 合成是同步的，此时输出队列里已经是完整结果
	var buf bytes.Buffer
	for {
		chunk, ok := s.engine.Out().TryPop()
		if !ok {
			break
		}
		buf.Write(chunk)
	}
	pcm := buf.Bytes()

	// 兜底链可能切换了引擎，采样率和缓存键以实际成功的引擎为准
	info := s.engine.StreamInfo()
	key = cache.Key(s.engine.Name(), s.engine.VoiceID(), info.SampleRate, text)
	if err := s.cache.Store(key, s.engine.Name(), text, info.SampleRate, pcm); err != nil {
		logger.Warnf("[speaker] 写入缓存失败: %v", err)
	}

	return pcm, info.SampleRate, nil
}

// truncate 截断过长文本用于错误信息。
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "…"
}

// Close 释放播放设备和缓存资源。
func (s *Speaker) Close() {
	if s.player != nil {
		s.player.Close()
	}
	if s.cache != nil {
		s.cache.Close()
	}
	if closer, ok := s.engine.(interface{ Close() }); ok {
		closer.Close()
	}
}

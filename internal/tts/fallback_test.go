package tts

import (
	"context"
	"testing"
	"time"

	"github.com/iabetor/pispeak/internal/audio"
)

// fakeEngine 是测试用引擎，按预设结果响应 Synthesize。
type fakeEngine struct {
	name  string
	ok    bool
	calls int
	pcm   []byte
	out   *audio.Queue
}

func newFakeEngine(name string, ok bool, pcm []byte) *fakeEngine {
	return &fakeEngine{name: name, ok: ok, pcm: pcm, out: audio.NewQueue()}
}

func (f *fakeEngine) Name() string      { return f.name }
func (f *fakeEngine) VoiceID() string   { return f.name + "-voice" }
func (f *fakeEngine) Voices() []Voice   { return nil }
func (f *fakeEngine) Out() *audio.Queue { return f.out }

func (f *fakeEngine) StreamInfo() StreamInfo {
	return StreamInfo{Format: FormatS16, Channels: 1, SampleRate: 16000}
}

func (f *fakeEngine) Synthesize(ctx context.Context, text string) bool {
	f.calls++
	if f.ok {
		f.out.Push(f.pcm)
	}
	return f.ok
}

func TestFallback_FirstEngineWins(t *testing.T) {
	first := newFakeEngine("first", true, []byte("aaa"))
	second := newFakeEngine("second", true, []byte("bbb"))
	fb := NewFallbackEngine(FallbackOptions{Engines: []Engine{first, second}})

	if !fb.Synthesize(context.Background(), "测试") {
		t.Fatal("Synthesize returned false")
	}
	if second.calls != 0 {
		t.Errorf("second engine should not be called, calls=%d", second.calls)
	}

	buf, ok := fb.Out().TryPop()
	if !ok || string(buf) != "aaa" {
		t.Errorf("expected first engine's output, got %q (ok=%v)", buf, ok)
	}
}

func TestFallback_SwitchesOnFailure(t *testing.T) {
	first := newFakeEngine("first", false, nil)
	second := newFakeEngine("second", true, []byte("bbb"))
	fb := NewFallbackEngine(FallbackOptions{Engines: []Engine{first, second}})

	if !fb.Synthesize(context.Background(), "测试") {
		t.Fatal("Synthesize returned false")
	}
	if first.calls != 1 || second.calls != 1 {
		t.Errorf("calls: first=%d second=%d, want 1/1", first.calls, second.calls)
	}

	buf, _ := fb.Out().TryPop()
	if string(buf) != "bbb" {
		t.Errorf("expected second engine's output, got %q", buf)
	}

	// 成功后 Name / StreamInfo 跟随成功引擎
	if fb.Name() != "second" {
		t.Errorf("Name: got %q, want second", fb.Name())
	}
}

func TestFallback_AllFail(t *testing.T) {
	first := newFakeEngine("first", false, nil)
	second := newFakeEngine("second", false, nil)
	fb := NewFallbackEngine(FallbackOptions{Engines: []Engine{first, second}})

	if fb.Synthesize(context.Background(), "测试") {
		t.Fatal("expected false when all engines fail")
	}
	if fb.Out().Len() != 0 {
		t.Errorf("queue should be empty, got %d", fb.Out().Len())
	}
}

func TestFallback_FailedEngineInCooldown(t *testing.T) {
	first := newFakeEngine("first", false, nil)
	second := newFakeEngine("second", true, []byte("x"))
	fb := NewFallbackEngine(FallbackOptions{
		Engines:          []Engine{first, second},
		RecoveryInterval: time.Hour,
	})

	fb.Synthesize(context.Background(), "一")
	fb.Synthesize(context.Background(), "二")

	// 冷却期内不重试失败引擎
	if first.calls != 1 {
		t.Errorf("first engine calls: got %d, want 1 (cooldown)", first.calls)
	}
	if second.calls != 2 {
		t.Errorf("second engine calls: got %d, want 2", second.calls)
	}
}

func TestFallback_RetriesAfterCooldown(t *testing.T) {
	first := newFakeEngine("first", false, nil)
	second := newFakeEngine("second", true, []byte("x"))
	fb := NewFallbackEngine(FallbackOptions{
		Engines:          []Engine{first, second},
		RecoveryInterval: time.Millisecond,
	})

	fb.Synthesize(context.Background(), "一")
	time.Sleep(5 * time.Millisecond)
	fb.Synthesize(context.Background(), "二")

	if first.calls != 2 {
		t.Errorf("first engine calls: got %d, want 2 (retried after cooldown)", first.calls)
	}
}

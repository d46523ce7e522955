package tts

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/iabetor/pispeak/internal/audio"
)

func TestNewPiperVoice_NoConfig(t *testing.T) {
	v := NewPiperVoice(filepath.Join(t.TempDir(), "voice.onnx"), "")
	if v.SampleRate != 24000 {
		t.Errorf("sample rate: got %d, want default 24000", v.SampleRate)
	}
	if v.ConfigPath != "" {
		t.Errorf("config path: got %q, want empty", v.ConfigPath)
	}
}

func TestNewPiperVoice_SidecarProbe(t *testing.T) {
	dir := t.TempDir()
	modelPath := filepath.Join(dir, "voice.onnx")
	sidecar := modelPath + ".json"
	if err := os.WriteFile(sidecar, []byte(`{"audio": {"sample_rate": 22050}}`), 0644); err != nil {
		t.Fatal(err)
	}

	v := NewPiperVoice(modelPath, "")
	if v.ConfigPath != sidecar {
		t.Errorf("config path: got %q, want %q", v.ConfigPath, sidecar)
	}
	if v.SampleRate != 22050 {
		t.Errorf("sample rate: got %d, want 22050", v.SampleRate)
	}
}

func TestNewPiperVoice_ExplicitConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "other.json")
	if err := os.WriteFile(cfgPath, []byte(`{"sample_rate": 16000}`), 0644); err != nil {
		t.Fatal(err)
	}

	v := NewPiperVoice(filepath.Join(dir, "voice.onnx"), cfgPath)
	if v.SampleRate != 16000 {
		t.Errorf("sample rate: got %d, want 16000（顶层字段）", v.SampleRate)
	}
}

func TestNewPiperVoice_AudioSectionWins(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "voice.json")
	content := `{"sample_rate": 48000, "audio": {"sample_rate": 22050}}`
	if err := os.WriteFile(cfgPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	v := NewPiperVoice(filepath.Join(dir, "voice.onnx"), cfgPath)
	if v.SampleRate != 22050 {
		t.Errorf("audio.sample_rate 应当优先: got %d, want 22050", v.SampleRate)
	}
}

func TestNewPiperVoice_InvalidJSON(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "voice.json")
	if err := os.WriteFile(cfgPath, []byte(`{not json!`), 0644); err != nil {
		t.Fatal(err)
	}

	// 损坏的配置不应让构造失败，采样率回退默认值
	v := NewPiperVoice(filepath.Join(dir, "voice.onnx"), cfgPath)
	if v.SampleRate != 24000 {
		t.Errorf("sample rate: got %d, want default 24000", v.SampleRate)
	}
}

func TestNewPiperVoice_MissingRateField(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "voice.json")
	if err := os.WriteFile(cfgPath, []byte(`{"audio": {"quality": "medium"}}`), 0644); err != nil {
		t.Fatal(err)
	}

	v := NewPiperVoice(filepath.Join(dir, "voice.onnx"), cfgPath)
	if v.SampleRate != 24000 {
		t.Errorf("sample rate: got %d, want default 24000", v.SampleRate)
	}
}

func TestPiperEngine_ExecPathResolution(t *testing.T) {
	if e := NewPiperEngine("/opt/piper/piper", 1.0); e.execPath != "/opt/piper/piper" {
		t.Errorf("explicit path: got %q", e.execPath)
	}

	t.Setenv("PIPER_PATH", "/env/piper")
	if e := NewPiperEngine("", 1.0); e.execPath != "/env/piper" {
		t.Errorf("env path: got %q", e.execPath)
	}

	t.Setenv("PIPER_PATH", "")
	e := NewPiperEngine("", 1.0)
	if e.execPath != "piper" && e.execPath != "piper.exe" {
		t.Errorf("default path: got %q", e.execPath)
	}
}

func TestPiperEngine_StreamInfoFixed(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "voice.json")
	if err := os.WriteFile(cfgPath, []byte(`{"audio": {"sample_rate": 22050}}`), 0644); err != nil {
		t.Fatal(err)
	}

	e := NewPiperEngine("piper", 1.0)
	e.SetVoice(NewPiperVoice(filepath.Join(dir, "voice.onnx"), cfgPath))

	// 即使模型原生采样率是 22050，StreamInfo 仍固定上报 24000
	info := e.StreamInfo()
	if info.SampleRate != 24000 || info.Channels != 1 || info.Format != FormatS16 {
		t.Errorf("StreamInfo: got %+v, want {S16 1 24000}", info)
	}
	if e.Voice().SampleRate != 22050 {
		t.Errorf("native rate: got %d, want 22050", e.Voice().SampleRate)
	}
}

func TestPiperEngine_VoicesEmpty(t *testing.T) {
	e := NewPiperEngine("piper", 1.0)
	if len(e.Voices()) != 0 {
		t.Errorf("Voices: got %d, want 0", len(e.Voices()))
	}
}

func TestPiperEngine_SynthesizeWithoutVoice(t *testing.T) {
	e := NewPiperEngine("piper", 1.0)
	if e.Synthesize(context.Background(), "你好") {
		t.Error("expected false without voice")
	}
	if e.Out().Len() != 0 {
		t.Errorf("queue should be empty, got %d", e.Out().Len())
	}

	e.SetVoice(&PiperVoice{ModelPath: "", SampleRate: 24000})
	if e.Synthesize(context.Background(), "你好") {
		t.Error("expected false with empty model path")
	}
}

func TestPiperEngine_SynthesizeMissingExecutable(t *testing.T) {
	e := NewPiperEngine(filepath.Join(t.TempDir(), "no-such-piper"), 1.0)
	e.SetVoice(&PiperVoice{ModelPath: "/models/test.onnx", SampleRate: 24000})

	if e.Synthesize(context.Background(), "你好") {
		t.Error("expected false for missing executable")
	}
	if e.Out().Len() != 0 {
		t.Errorf("queue should be empty, got %d", e.Out().Len())
	}
}

// writeStub 写入一个模拟 piper 的 shell 脚本。
func writeStub(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("stub 脚本需要 sh")
	}
	path := filepath.Join(t.TempDir(), "piper-stub")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0755); err != nil {
		t.Fatal(err)
	}
	return path
}

// successStub 返回一个读完 stdin 后把预制 WAV 拷贝到 -f 参数路径的脚本，
// 同时把完整参数列表记录到 argsFile。
func successStub(t *testing.T, wavSrc, argsFile string) string {
	t.Helper()
	script := fmt.Sprintf(`cat > /dev/null
echo "$@" > %q
out=""
prev=""
for a in "$@"; do
  if [ "$prev" = "-f" ]; then out="$a"; fi
  prev="$a"
done
cp %q "$out"
`, argsFile, wavSrc)
	return writeStub(t, script)
}

// makeWAV 生成一个固定内容的测试 WAV，返回路径和其 PCM 帧字节。
func makeWAV(t *testing.T) (string, []byte) {
	t.Helper()
	pcm := audio.Int16ToBytes([]int16{0, 100, -100, 2000, -2000})
	path := filepath.Join(t.TempDir(), "fixture.wav")
	if err := audio.EncodeWAVFile(path, pcm, 24000, 1); err != nil {
		t.Fatal(err)
	}
	return path, pcm
}

// tempWAVCount 统计系统临时目录里 pispeak 临时 WAV 的数量。
func tempWAVCount(t *testing.T) int {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(os.TempDir(), "pispeak-*.wav"))
	if err != nil {
		t.Fatal(err)
	}
	return len(matches)
}

func TestPiperEngine_SynthesizeSuccess(t *testing.T) {
	wavSrc, wantPCM := makeWAV(t)
	argsFile := filepath.Join(t.TempDir(), "args")
	e := NewPiperEngine(successStub(t, wavSrc, argsFile), 1.0)
	e.SetVoice(&PiperVoice{ModelPath: "/models/test.onnx", SampleRate: 24000})

	before := tempWAVCount(t)

	if !e.Synthesize(context.Background(), "你好世界") {
		t.Fatal("Synthesize returned false")
	}

	if e.Out().Len() != 1 {
		t.Fatalf("queue: got %d buffers, want exactly 1", e.Out().Len())
	}
	got, _ := e.Out().TryPop()
	if !bytes.Equal(got, wantPCM) {
		t.Errorf("queued PCM mismatch: got %d bytes, want %d", len(got), len(wantPCM))
	}

	// 临时文件应已被清理
	if after := tempWAVCount(t); after != before {
		t.Errorf("temp wav leaked: before=%d after=%d", before, after)
	}

	// length_scale 为 1.0 时不应出现对应参数
	args, err := os.ReadFile(argsFile)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(args), "--length_scale") {
		t.Errorf("unexpected --length_scale in args: %s", args)
	}
	if !strings.Contains(string(args), "-m /models/test.onnx") {
		t.Errorf("missing model flag in args: %s", args)
	}
}

func TestPiperEngine_LengthScaleFlag(t *testing.T) {
	wavSrc, _ := makeWAV(t)
	argsFile := filepath.Join(t.TempDir(), "args")
	e := NewPiperEngine(successStub(t, wavSrc, argsFile), 0.8)
	e.SetVoice(&PiperVoice{ModelPath: "/models/test.onnx", SampleRate: 24000})

	if !e.Synthesize(context.Background(), "语速测试") {
		t.Fatal("Synthesize returned false")
	}

	args, err := os.ReadFile(argsFile)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(args), "--length_scale 0.8") {
		t.Errorf("missing --length_scale 0.8 in args: %s", args)
	}
}

func TestPiperEngine_ConfigFlag(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "voice.json")
	if err := os.WriteFile(cfgPath, []byte(`{"audio": {"sample_rate": 24000}}`), 0644); err != nil {
		t.Fatal(err)
	}

	wavSrc, _ := makeWAV(t)
	argsFile := filepath.Join(t.TempDir(), "args")
	e := NewPiperEngine(successStub(t, wavSrc, argsFile), 1.0)
	e.SetVoice(NewPiperVoice(filepath.Join(dir, "voice.onnx"), cfgPath))

	if !e.Synthesize(context.Background(), "配置测试") {
		t.Fatal("Synthesize returned false")
	}

	args, err := os.ReadFile(argsFile)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(args), "-c "+cfgPath) {
		t.Errorf("missing -c flag in args: %s", args)
	}
}

func TestPiperEngine_NonZeroExit(t *testing.T) {
	// 脚本先写出输出文件再以非零码退出，验证失败路径的清理
	script := `cat > /dev/null
out=""
prev=""
for a in "$@"; do
  if [ "$prev" = "-f" ]; then out="$a"; fi
  prev="$a"
done
echo "garbage" > "$out"
echo "model load failed" >&2
exit 3
`
	e := NewPiperEngine(writeStub(t, script), 1.0)
	e.SetVoice(&PiperVoice{ModelPath: "/models/test.onnx", SampleRate: 24000})

	before := tempWAVCount(t)

	if e.Synthesize(context.Background(), "你好") {
		t.Error("expected false for non-zero exit")
	}
	if e.Out().Len() != 0 {
		t.Errorf("queue should be empty, got %d", e.Out().Len())
	}
	if after := tempWAVCount(t); after != before {
		t.Errorf("temp wav leaked after failure: before=%d after=%d", before, after)
	}
}

func TestPiperEngine_CorruptWAV(t *testing.T) {
	script := `cat > /dev/null
out=""
prev=""
for a in "$@"; do
  if [ "$prev" = "-f" ]; then out="$a"; fi
  prev="$a"
done
echo "this is not a wav" > "$out"
`
	e := NewPiperEngine(writeStub(t, script), 1.0)
	e.SetVoice(&PiperVoice{ModelPath: "/models/test.onnx", SampleRate: 24000})

	if e.Synthesize(context.Background(), "你好") {
		t.Error("expected false for corrupt wav output")
	}
	if e.Out().Len() != 0 {
		t.Errorf("queue should be empty, got %d", e.Out().Len())
	}
}

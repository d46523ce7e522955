package audio

import (
	"math"
	"testing"
)

func TestFloat32ToInt16_Empty(t *testing.T) {
	out := Float32ToInt16(nil)
	if len(out) != 0 {
		t.Fatalf("expected empty slice, got length %d", len(out))
	}
}

func TestFloat32ToInt16_Normal(t *testing.T) {
	out := Float32ToInt16([]float32{0.5, -0.5, 0})
	if out[2] != 0 {
		t.Fatalf("expected 0 for 0.0 input, got %d", out[2])
	}
	if out[0] <= 0 {
		t.Fatalf("expected positive for 0.5 input, got %d", out[0])
	}
	if out[1] >= 0 {
		t.Fatalf("expected negative for -0.5 input, got %d", out[1])
	}
}

func TestFloat32ToInt16_Clamps(t *testing.T) {
	out := Float32ToInt16([]float32{1.5, -1.5})
	if out[0] != math.MaxInt16 {
		t.Fatalf("expected MaxInt16 for 1.5, got %d", out[0])
	}
	if out[1] != -math.MaxInt16 {
		t.Fatalf("expected -MaxInt16 for -1.5, got %d", out[1])
	}
}

func TestInt16ToBytes_RoundTrip(t *testing.T) {
	in := []int16{0, 1, -1, 256, math.MaxInt16, math.MinInt16}
	out := BytesToInt16(Int16ToBytes(in))
	if len(out) != len(in) {
		t.Fatalf("length mismatch: got %d, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("sample %d: got %d, want %d", i, out[i], in[i])
		}
	}
}

func TestInt16ToBytes_LittleEndian(t *testing.T) {
	out := Int16ToBytes([]int16{0x0102})
	if out[0] != 0x02 || out[1] != 0x01 {
		t.Fatalf("expected little-endian 02 01, got %02x %02x", out[0], out[1])
	}
}

func TestStereoToMono_Averages(t *testing.T) {
	// 一帧：左 100，右 300，平均 200
	stereo := Int16ToBytes([]int16{100, 300})
	mono := BytesToInt16(StereoToMono(stereo))
	if len(mono) != 1 {
		t.Fatalf("expected 1 mono sample, got %d", len(mono))
	}
	if mono[0] != 200 {
		t.Fatalf("expected 200, got %d", mono[0])
	}
}

func TestStereoToMono_DropsPartialFrame(t *testing.T) {
	// 6 字节 = 1 个完整立体声帧 + 半帧
	stereo := append(Int16ToBytes([]int16{10, 20}), 0xFF, 0xFF)
	mono := BytesToInt16(StereoToMono(stereo))
	if len(mono) != 1 {
		t.Fatalf("expected partial frame dropped, got %d samples", len(mono))
	}
}

func TestStereoToMono_NoOverflow(t *testing.T) {
	stereo := Int16ToBytes([]int16{math.MaxInt16, math.MaxInt16})
	mono := BytesToInt16(StereoToMono(stereo))
	if mono[0] != math.MaxInt16 {
		t.Fatalf("expected MaxInt16, got %d", mono[0])
	}
}

package audio

import (
	"math"
	"testing"
	"time"
)

func TestAppendPCM16LE(t *testing.T) {
	tests := []struct {
		name    string
		samples []float32
		want    []byte
	}{
		{"silence", []float32{0}, []byte{0x00, 0x00}},
		{"full scale", []float32{1, -1}, []byte{0xff, 0x7f, 0x01, 0x80}},
		{"clamped", []float32{2, -3}, []byte{0xff, 0x7f, 0x01, 0x80}},
		{"half", []float32{0.5}, []byte{0xff, 0x3f}},
		{"empty", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AppendPCM16LE(nil, tt.samples)
			if string(got) != string(tt.want) {
				t.Errorf("AppendPCM16LE(%v) = %v, want %v", tt.samples, got, tt.want)
			}
		})
	}
}

func TestAppendPCM16LEReusesDst(t *testing.T) {
	dst := make([]byte, 0, 8)
	out := AppendPCM16LE(dst, []float32{0, 0})
	if &out[0] != &dst[:1][0] {
		t.Error("AppendPCM16LE reallocated a buffer with enough capacity")
	}
}

func TestDecode(t *testing.T) {
	t.Run("s16", func(t *testing.T) {
		got := DecodeS16LE(nil, []byte{0x00, 0x40, 0x00, 0x80, 0xff})
		want := []float32{0.5, -1}
		if len(got) != len(want) {
			t.Fatalf("got %v, want %v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("sample %d = %v, want %v", i, got[i], want[i])
			}
		}
	})

	t.Run("f32", func(t *testing.T) {
		bits := math.Float32bits(0.25)
		data := []byte{byte(bits), byte(bits >> 8), byte(bits >> 16), byte(bits >> 24), 0x01}
		got := DecodeF32LE(nil, data)
		if len(got) != 1 || got[0] != 0.25 {
			t.Errorf("got %v, want [0.25]", got)
		}
	})
}

func TestLevel(t *testing.T) {
	if got := Level(nil); got != 0 {
		t.Errorf("Level(nil) = %v", got)
	}
	if got := Level([]float32{0.5, -0.5, 0.5, -0.5}); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("Level = %v, want 0.5", got)
	}
}

func TestFormatPacketDuration(t *testing.T) {
	f := Format{SampleRate: 48000, Channels: 2}
	if got := f.PacketDuration(960); got != 10*time.Millisecond {
		t.Errorf("PacketDuration(960) = %v, want 10ms", got)
	}
	if got := (Format{}).PacketDuration(960); got != 0 {
		t.Errorf("zero format duration = %v", got)
	}
}

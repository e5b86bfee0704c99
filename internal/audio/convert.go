package audio

import (
	"encoding/binary"
	"math"
)

// AppendPCM16LE encodes normalized samples as signed 16-bit little-endian
// PCM and appends them to dst. Samples outside [-1, 1] are clamped.
func AppendPCM16LE(dst []byte, samples []float32) []byte {
	for _, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		dst = binary.LittleEndian.AppendUint16(dst, uint16(int16(s*math.MaxInt16)))
	}
	return dst
}

// DecodeF32LE appends little-endian 32-bit float samples from data to dst.
// A trailing partial sample is ignored.
func DecodeF32LE(dst []float32, data []byte) []float32 {
	for i := 0; i+4 <= len(data); i += 4 {
		dst = append(dst, math.Float32frombits(binary.LittleEndian.Uint32(data[i:])))
	}
	return dst
}

// DecodeS16LE appends little-endian signed 16-bit samples from data to dst,
// scaled into [-1, 1).
func DecodeS16LE(dst []float32, data []byte) []float32 {
	for i := 0; i+2 <= len(data); i += 2 {
		v := int16(binary.LittleEndian.Uint16(data[i:]))
		dst = append(dst, float32(v)/32768)
	}
	return dst
}

// Level returns the RMS level of samples in [0, 1].
func Level(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

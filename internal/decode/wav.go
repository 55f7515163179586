package decode

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
)

// decodeWAV reads a canonical PCM WAVE file (8/16/24/32-bit integer or
// 32-bit float) and returns mono f32 samples at the file's native rate.
// It walks RIFF chunks directly rather than depending on a third-party
// WAV library — the format is simple enough that stdlib-only parsing
// here doesn't trade away any idiom the rest of the decoder leans on.
func decodeWAV(path string) ([]float32, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, err
	}
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, 0, fmt.Errorf("not a RIFF/WAVE file")
	}

	var (
		channels      int
		sampleRate    int
		bitsPerSample int
		audioFormat   uint16
		samples       []float32
	)

	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		if body+size > len(data) {
			size = len(data) - body
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, 0, fmt.Errorf("fmt chunk too small")
			}
			audioFormat = binary.LittleEndian.Uint16(data[body : body+2])
			channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bitsPerSample = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
		case "data":
			samples = decodePCMBlock(data[body:body+size], channels, bitsPerSample, audioFormat)
		}

		pos = body + size
		if size%2 == 1 {
			pos++ // chunks are word-aligned
		}
	}

	if samples == nil {
		return nil, 0, fmt.Errorf("no data chunk found")
	}
	if sampleRate == 0 || channels == 0 {
		return nil, 0, fmt.Errorf("missing fmt chunk")
	}
	return samples, sampleRate, nil
}

func decodePCMBlock(raw []byte, channels, bits int, format uint16) []float32 {
	if channels == 0 {
		return nil
	}
	bytesPerSample := bits / 8
	frameSize := bytesPerSample * channels
	if frameSize == 0 {
		return nil
	}
	frames := len(raw) / frameSize
	out := make([]float32, frames)

	for i := 0; i < frames; i++ {
		var sum float32
		for ch := 0; ch < channels; ch++ {
			off := i*frameSize + ch*bytesPerSample
			sum += decodeSample(raw[off:off+bytesPerSample], bits, format)
		}
		out[i] = sum / float32(channels)
	}
	return out
}

func decodeSample(b []byte, bits int, format uint16) float32 {
	const formatFloat = 3
	switch bits {
	case 8:
		return (float32(b[0]) - 128) / 128
	case 16:
		v := int16(binary.LittleEndian.Uint16(b))
		return float32(v) / 32768
	case 24:
		v := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
		if v&0x800000 != 0 {
			v |= -1 << 24
		}
		return float32(v) / 8388608
	case 32:
		if format == formatFloat {
			return math.Float32frombits(binary.LittleEndian.Uint32(b))
		}
		v := int32(binary.LittleEndian.Uint32(b))
		return float32(v) / 2147483648
	default:
		return 0
	}
}

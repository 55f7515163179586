package decode

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/hajimehoshi/go-mp3"
)

// decodeMP3 decodes an MP3 file to mono f32 PCM using go-mp3, which
// always emits signed 16-bit little-endian stereo at its detected rate.
func decodeMP3(path string) ([]float32, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	dec, err := mp3.NewDecoder(f)
	if err != nil {
		return nil, 0, fmt.Errorf("mp3 decode: %w", err)
	}

	raw, err := io.ReadAll(dec)
	if err != nil && err != io.ErrUnexpectedEOF {
		return nil, 0, fmt.Errorf("mp3 read: %w", err)
	}
	if len(raw) < 4 {
		return nil, 0, fmt.Errorf("mp3 decode: stream too short")
	}

	// 16-bit stereo interleaved -> mono float32 by channel average.
	frames := len(raw) / 4
	mono := make([]float32, frames)
	for i := 0; i < frames; i++ {
		left := int16(binary.LittleEndian.Uint16(raw[i*4:]))
		right := int16(binary.LittleEndian.Uint16(raw[i*4+2:]))
		mono[i] = (float32(left) + float32(right)) / 2 / 32768
	}

	return mono, dec.SampleRate(), nil
}

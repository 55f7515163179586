package decode

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

// writeTestWAV writes a minimal mono 16-bit PCM WAV of the given
// duration and frequency for decoder tests.
func writeTestWAV(t *testing.T, path string, seconds float64, sampleRate int) {
	t.Helper()
	numSamples := int(seconds * float64(sampleRate))
	data := make([]byte, numSamples*2)
	for i := 0; i < numSamples; i++ {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(int16(1000)))
	}

	var buf []byte
	buf = append(buf, []byte("RIFF")...)
	buf = append(buf, le32(uint32(36+len(data)))...)
	buf = append(buf, []byte("WAVE")...)
	buf = append(buf, []byte("fmt ")...)
	buf = append(buf, le32(16)...)
	buf = append(buf, le16(1)...)  // PCM
	buf = append(buf, le16(1)...)  // mono
	buf = append(buf, le32(uint32(sampleRate))...)
	buf = append(buf, le32(uint32(sampleRate*2))...)
	buf = append(buf, le16(2)...)  // block align
	buf = append(buf, le16(16)...) // bits per sample
	buf = append(buf, []byte("data")...)
	buf = append(buf, le32(uint32(len(data)))...)
	buf = append(buf, data...)

	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatal(err)
	}
}

func le32(v uint32) []byte { b := make([]byte, 4); binary.LittleEndian.PutUint32(b, v); return b }
func le16(v uint16) []byte { b := make([]byte, 2); binary.LittleEndian.PutUint16(b, v); return b }

func TestDecodeWAVTooShort(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "short.wav")
	writeTestWAV(t, path, 2.0, 44100)

	_, err := Decode(path, DefaultProfile, 0)
	if err == nil {
		t.Fatal("expected too-short error")
	}
}

func TestDecodeWAVOK(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ok.wav")
	writeTestWAV(t, path, 15.0, 44100)

	result, err := Decode(path, DefaultProfile, 0)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if result.SampleRate != DefaultProfile.SampleRate {
		t.Errorf("SampleRate = %d, want %d", result.SampleRate, DefaultProfile.SampleRate)
	}
	if len(result.Samples) == 0 {
		t.Error("expected non-empty samples")
	}
}

func TestDecodeMissingFile(t *testing.T) {
	_, err := Decode("/nonexistent/path/track.mp3", DefaultProfile, 0)
	if err == nil {
		t.Fatal("expected missing-file error")
	}
}

func TestDecodeUnsupportedExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "track.flac")
	if err := os.WriteFile(path, []byte("not real audio"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Decode(path, DefaultProfile, 0)
	if err == nil {
		t.Fatal("expected unsupported extension error")
	}
}

func TestResampleIdentity(t *testing.T) {
	in := []float32{0.1, 0.2, 0.3}
	out := resample(in, 44100, 44100)
	if len(out) != len(in) {
		t.Fatalf("identity resample changed length: %d vs %d", len(out), len(in))
	}
}

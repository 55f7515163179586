package tagread

import (
	"os"
	"path/filepath"
	"testing"
)

func TestReadReturnsErrorForNonAudioFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not-audio.mp3")
	if err := os.WriteFile(path, []byte("not an audio file"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Read(path); err == nil {
		t.Error("expected an error reading tags from a non-audio file")
	}
}

func TestReadReturnsErrorForMissingFile(t *testing.T) {
	if _, err := Read(filepath.Join(t.TempDir(), "missing.mp3")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestBitrateFromRawPrefersKnownKeys(t *testing.T) {
	cases := []struct {
		name string
		raw  map[string]any
		want int
	}{
		{"int bitrate", map[string]any{"bitrate": 320}, 320},
		{"int64 bitrate", map[string]any{"Bitrate": int64(256)}, 256},
		{"float64 bitrate", map[string]any{"TBIT": float64(192)}, 192},
		{"no bitrate key", map[string]any{"unrelated": "x"}, 0},
		{"nil map", nil, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := bitrateFromRaw(tc.raw); got != tc.want {
				t.Errorf("bitrateFromRaw(%v) = %d, want %d", tc.raw, got, tc.want)
			}
		})
	}
}

package model

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNormalizeMakesRelativePathsAbsolute(t *testing.T) {
	got := Normalize("track.mp3")
	if !filepath.IsAbs(string(got)) {
		t.Errorf("Normalize(%q) = %q, want an absolute path", "track.mp3", got)
	}
}

func TestNormalizeEquatesDifferentSpellingsOfTheSamePath(t *testing.T) {
	dir := t.TempDir()
	abs := filepath.Join(dir, "track.mp3")

	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	rel, err := filepath.Rel(wd, abs)
	if err != nil {
		t.Fatal(err)
	}

	if Normalize(abs) != Normalize(rel) {
		t.Errorf("Normalize(%q) = %q, Normalize(%q) = %q, want equal", abs, Normalize(abs), rel, Normalize(rel))
	}
}

func TestNormalizeCleansDotSegmentsAndTrailingSeparators(t *testing.T) {
	messy := filepath.Join("a", "b", "..", "c") + string(filepath.Separator)
	clean := filepath.Join("a", "c")

	if Normalize(messy) != Normalize(clean) {
		t.Errorf("Normalize(%q) = %q, Normalize(%q) = %q, want equal", messy, Normalize(messy), clean, Normalize(clean))
	}
}

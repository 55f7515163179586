package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWeightsReturnsDefaultsWhenFileMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.toml")
	w, err := LoadWeights(path)
	if err != nil {
		t.Fatal(err)
	}
	if w != DefaultWeights() {
		t.Errorf("LoadWeights(missing) = %+v, want defaults %+v", w, DefaultWeights())
	}
}

func TestSaveThenLoadWeightsRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weights.toml")
	w := DefaultWeights()
	w.Solver.BeamWidth = 8
	w.Validator.Harmonic = 0.4

	if err := SaveWeights(path, w); err != nil {
		t.Fatal(err)
	}
	reloaded, err := LoadWeights(path)
	if err != nil {
		t.Fatal(err)
	}
	if reloaded.Solver.BeamWidth != 8 {
		t.Errorf("BeamWidth = %d, want 8", reloaded.Solver.BeamWidth)
	}
	if reloaded.Validator.Harmonic != 0.4 {
		t.Errorf("Harmonic = %v, want 0.4", reloaded.Validator.Harmonic)
	}
}

func TestSaveWeightsRoundsToTwoDecimalPlaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weights.toml")
	w := DefaultWeights()
	w.Solver.PruningThreshold = 0.12345

	if err := SaveWeights(path, w); err != nil {
		t.Fatal(err)
	}
	reloaded, err := LoadWeights(path)
	if err != nil {
		t.Fatal(err)
	}
	if reloaded.Solver.PruningThreshold != 0.12 {
		t.Errorf("PruningThreshold = %v, want 0.12", reloaded.Solver.PruningThreshold)
	}
}

func TestSolverConfigFillsDefaultsForZeroValues(t *testing.T) {
	w := Weights{}
	cfg := w.SolverConfig()
	if cfg.BeamWidth != 5 {
		t.Errorf("BeamWidth = %d, want 5 (WithDefaults)", cfg.BeamWidth)
	}
}

func TestSolverConfigCarriesStateWeightsAndEarlyStop(t *testing.T) {
	w := DefaultWeights()
	w.Solver.CurveMatchWeight = 0.5
	w.Solver.HarmonicWeight = 0.2
	w.Solver.FlowWeight = 0.2
	w.Solver.DiversityWeight = 0.1
	w.Solver.EarlyStop = false

	cfg := w.SolverConfig()
	if cfg.StateWeights.CurveMatch != 0.5 {
		t.Errorf("StateWeights.CurveMatch = %v, want 0.5", cfg.StateWeights.CurveMatch)
	}
	if cfg.EarlyStop == nil || *cfg.EarlyStop {
		t.Error("EarlyStop should carry through as false, not reset to the default true")
	}
}

func TestExtractorWeightsTranslatesDefaults(t *testing.T) {
	w := DefaultWeights()
	ew := w.ExtractorWeights()
	if ew.RMS+ew.Centroid+ew.Onset != 1.0 {
		t.Errorf("extractor weights sum = %v, want 1.0", ew.RMS+ew.Centroid+ew.Onset)
	}
}

func TestWatcherReloadsOnFileWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weights.toml")
	initial := DefaultWeights()
	initial.Solver.BeamWidth = 3
	if err := SaveWeights(path, initial); err != nil {
		t.Fatal(err)
	}

	watcher, err := NewWatcher(path)
	if err != nil {
		t.Fatal(err)
	}
	defer watcher.Close()

	if watcher.Current().Solver.BeamWidth != 3 {
		t.Fatalf("initial BeamWidth = %d, want 3", watcher.Current().Solver.BeamWidth)
	}

	updated := initial
	updated.Solver.BeamWidth = 9
	if err := SaveWeights(path, updated); err != nil {
		t.Fatal(err)
	}

	select {
	case w := <-watcher.Updates():
		if w.Solver.BeamWidth != 9 {
			t.Errorf("reloaded BeamWidth = %d, want 9", w.Solver.BeamWidth)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for weights reload")
	}
}

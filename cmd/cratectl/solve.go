package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/djcrate/engine/internal/config"
	"github.com/djcrate/engine/internal/index"
	"github.com/djcrate/engine/internal/model"
	"github.com/djcrate/engine/internal/solver"
)

func runSolve(args []string, logger *slog.Logger) error {
	fs := flag.NewFlagSet("solve", flag.ExitOnError)
	dir := fs.String("dir", "", "library directory to draw the track pool from (required)")
	cacheDir := fs.String("cache-dir", defaultCacheDir(), "feature cache directory")
	weightsPath := fs.String("weights", defaultWeightsPath(), "scoring weights TOML file")
	length := fs.Int("length", 12, "target playlist length")
	shape := fs.String("curve", "rise-peak-fall", "energy curve shape: flat, rise, rise-peak-fall")
	baseEnergy := fs.Float64("base-energy", 5, "baseline energy level [1,10]")
	peakEnergy := fs.Float64("peak-energy", 9, "peak energy level for rise-peak-fall")
	bpmRange := fs.String("bpm-range", "", "soft BPM constraint, e.g. 120,128")
	energyRange := fs.String("energy-range", "", "soft energy constraint, e.g. 4,8")
	beamWidth := fs.Int("beam-width", 0, "beam search width (default: from weights file)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dir == "" {
		fs.Usage()
		return fmt.Errorf("-dir is required")
	}

	records, err := loadLibrary(*dir, *cacheDir, *weightsPath, 0, logger)
	if err != nil {
		return err
	}

	curve := buildCurve(*shape, *baseEnergy, *peakEnergy)
	constraints := solver.Constraints{}
	if r, err := parseRange(*bpmRange); err == nil && r != nil {
		constraints.BPMRange = r
	}
	if r, err := parseRange(*energyRange); err == nil && r != nil {
		constraints.EnergyRange = r
	}

	w, err := config.LoadWeights(*weightsPath)
	if err != nil {
		return fmt.Errorf("load weights: %w", err)
	}
	cfg := w.SolverConfig()
	if *beamWidth > 0 {
		cfg.BeamWidth = *beamWidth
	}

	idx := index.Build(records)
	sv := solver.New(idx, records, cfg)

	result := sv.Solve(curve, *length, constraints, nil)
	fmt.Fprintf(os.Stdout, "run=%s score=%.3f curve=%.3f harmonic=%.3f flow=%.3f diversity=%.3f iterations=%d early_stopped=%v\n",
		result.RunID, result.Score, result.CurveMatch, result.Harmonic, result.Flow, result.Diversity, result.Iterations, result.EarlyStopped)
	for i, t := range result.Playlist.Tracks {
		fmt.Fprintf(os.Stdout, "%3d  %s\n", i+1, t)
	}
	return nil
}

func buildCurve(shape string, base, peak float64) model.Curve {
	switch shape {
	case "flat":
		return model.NewCurve([]model.EnergyPoint{
			{Position: 0, Energy: base, Weight: 1, Tolerance: 1},
			{Position: 1, Energy: base, Weight: 1, Tolerance: 1},
		})
	case "rise":
		return model.NewCurve([]model.EnergyPoint{
			{Position: 0, Energy: base, Weight: 1, Tolerance: 1},
			{Position: 1, Energy: peak, Weight: 1, Tolerance: 1},
		})
	default: // rise-peak-fall
		return model.NewCurve([]model.EnergyPoint{
			{Position: 0, Energy: base, Weight: 1, Tolerance: 1},
			{Position: 0.6, Energy: peak, Weight: 1, Tolerance: 1},
			{Position: 1, Energy: base, Weight: 1, Tolerance: 1},
		})
	}
}

func parseRange(s string) (*[2]float64, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return nil, fmt.Errorf("range %q must be lo,hi", s)
	}
	lo, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return nil, err
	}
	hi, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return nil, err
	}
	return &[2]float64{lo, hi}, nil
}

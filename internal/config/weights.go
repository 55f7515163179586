package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/djcrate/engine/internal/extract"
	"github.com/djcrate/engine/internal/solver"
	"github.com/djcrate/engine/internal/validator"
)

// Weights is the persisted, operator-tunable document covering every
// scoring component that spec §4 leaves as a configurable parameter
// rather than a fixed constant: the extractor's energy-score weights,
// the beam solver's search parameters and state-score weights, and the
// validator's category weights. The suggestion engine's transition
// score coefficients are fixed by spec §4.6 and are not exposed here.
type Weights struct {
	Extractor ExtractorWeights `toml:"extractor"`
	Solver    SolverWeights    `toml:"solver"`
	Validator ValidatorWeights `toml:"validator"`
}

// ExtractorWeights mirrors extract.EnergyWeights.
type ExtractorWeights struct {
	RMS      float64 `toml:"rms"`
	Centroid float64 `toml:"centroid"`
	Onset    float64 `toml:"onset"`
}

// SolverWeights mirrors solver.Config's tunable fields.
type SolverWeights struct {
	BeamWidth              int     `toml:"beam_width"`
	EarlyStop              bool    `toml:"early_stop"`
	PruningThreshold       float64 `toml:"pruning_threshold"`
	MaxCandidatesPerParent int     `toml:"max_candidates_per_parent"`
	CurveMatchWeight       float64 `toml:"curve_match_weight"`
	HarmonicWeight         float64 `toml:"harmonic_weight"`
	FlowWeight             float64 `toml:"flow_weight"`
	DiversityWeight        float64 `toml:"diversity_weight"`
}

// ValidatorWeights mirrors validator.Weights' category weights.
type ValidatorWeights struct {
	Harmonic  float64 `toml:"harmonic"`
	Energy    float64 `toml:"energy"`
	Tempo     float64 `toml:"tempo"`
	Mood      float64 `toml:"mood"`
	Diversity float64 `toml:"diversity"`
	Technical float64 `toml:"technical"`
	Crowd     float64 `toml:"crowd"`
}

// DefaultWeights returns the weights spec §4.3, §4.7 and §4.8 specify.
func DefaultWeights() Weights {
	dv := validator.DefaultWeights()
	ew := extract.DefaultEnergyWeights()
	sw := solver.DefaultStateWeights()
	return Weights{
		Extractor: ExtractorWeights{
			RMS:      ew.RMS,
			Centroid: ew.Centroid,
			Onset:    ew.Onset,
		},
		Solver: SolverWeights{
			BeamWidth:              5,
			EarlyStop:              true,
			PruningThreshold:       0.1,
			MaxCandidatesPerParent: 5,
			CurveMatchWeight:       sw.CurveMatch,
			HarmonicWeight:         sw.Harmonic,
			FlowWeight:             sw.Flow,
			DiversityWeight:        sw.Diversity,
		},
		Validator: ValidatorWeights{
			Harmonic:  dv.Harmonic,
			Energy:    dv.Energy,
			Tempo:     dv.Tempo,
			Mood:      dv.Mood,
			Diversity: dv.Diversity,
			Technical: dv.Technical,
			Crowd:     dv.Crowd,
		},
	}
}

// LoadWeights reads the weights TOML document at path. A missing file
// is not an error: it returns the defaults, matching the behavior a
// first-run operator expects.
func LoadWeights(path string) (Weights, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultWeights(), nil
		}
		return DefaultWeights(), fmt.Errorf("read weights file: %w", err)
	}

	w := DefaultWeights()
	if _, err := toml.Decode(string(data), &w); err != nil {
		return DefaultWeights(), fmt.Errorf("parse weights file: %w", err)
	}
	return w, nil
}

// SaveWeights writes w to path as TOML, rounding to 2 decimal places so
// repeated load/edit/save cycles don't accumulate floating point noise.
func SaveWeights(path string, w Weights) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create weights directory: %w", err)
	}
	w = roundWeights(w)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create weights file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(w); err != nil {
		return fmt.Errorf("write weights: %w", err)
	}
	return nil
}

func roundWeights(w Weights) Weights {
	round := func(x float64) float64 {
		return float64(int(x*100+0.5)) / 100
	}
	w.Extractor.RMS = round(w.Extractor.RMS)
	w.Extractor.Centroid = round(w.Extractor.Centroid)
	w.Extractor.Onset = round(w.Extractor.Onset)
	w.Solver.PruningThreshold = round(w.Solver.PruningThreshold)
	w.Solver.CurveMatchWeight = round(w.Solver.CurveMatchWeight)
	w.Solver.HarmonicWeight = round(w.Solver.HarmonicWeight)
	w.Solver.FlowWeight = round(w.Solver.FlowWeight)
	w.Solver.DiversityWeight = round(w.Solver.DiversityWeight)
	w.Validator.Harmonic = round(w.Validator.Harmonic)
	w.Validator.Energy = round(w.Validator.Energy)
	w.Validator.Tempo = round(w.Validator.Tempo)
	w.Validator.Mood = round(w.Validator.Mood)
	w.Validator.Diversity = round(w.Validator.Diversity)
	w.Validator.Technical = round(w.Validator.Technical)
	w.Validator.Crowd = round(w.Validator.Crowd)
	return w
}

// SolverConfig translates the persisted document into a solver.Config.
func (w Weights) SolverConfig() solver.Config {
	earlyStop := w.Solver.EarlyStop
	return solver.Config{
		BeamWidth:              w.Solver.BeamWidth,
		EarlyStop:              &earlyStop,
		PruningThreshold:       w.Solver.PruningThreshold,
		MaxCandidatesPerParent: w.Solver.MaxCandidatesPerParent,
		StateWeights: solver.StateWeights{
			CurveMatch: w.Solver.CurveMatchWeight,
			Harmonic:   w.Solver.HarmonicWeight,
			Flow:       w.Solver.FlowWeight,
			Diversity:  w.Solver.DiversityWeight,
		},
	}.WithDefaults()
}

// ExtractorWeights translates the persisted document into an
// extract.EnergyWeights.
func (w Weights) ExtractorWeights() extract.EnergyWeights {
	return extract.EnergyWeights{
		RMS:      w.Extractor.RMS,
		Centroid: w.Extractor.Centroid,
		Onset:    w.Extractor.Onset,
	}
}

// ValidatorWeights translates the persisted document into a
// validator.Weights.
func (w Weights) ValidatorWeights() validator.Weights {
	return validator.Weights{
		Harmonic:  w.Validator.Harmonic,
		Energy:    w.Validator.Energy,
		Tempo:     w.Validator.Tempo,
		Mood:      w.Validator.Mood,
		Diversity: w.Validator.Diversity,
		Technical: w.Validator.Technical,
		Crowd:     w.Validator.Crowd,
	}
}

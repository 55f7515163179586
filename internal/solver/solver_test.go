package solver

import (
	"fmt"
	"testing"

	"github.com/djcrate/engine/internal/index"
	"github.com/djcrate/engine/internal/model"
)

func rec(id string, bpm, energy float64, camelot model.CamelotCode) model.FeatureRecord {
	return model.FeatureRecord{
		TrackID:     model.TrackId(id),
		BPM:         bpm,
		EnergyScore: energy,
		Camelot:     camelot,
		Mood:        model.MoodVector{},
	}
}

func buildSolver(pool []model.FeatureRecord, cfg Config) *Solver {
	idx := index.Build(pool)
	return New(idx, pool, cfg)
}

func TestSolvePoolOfOneReturnsThatTrack(t *testing.T) {
	pool := []model.FeatureRecord{rec("only", 120, 5, model.CamelotCode{Number: 8, Letter: 'A'})}
	sv := buildSolver(pool, Config{})
	curve := model.NewCurve(nil)

	result := sv.Solve(curve, 3, Constraints{}, nil)
	if len(result.Playlist.Tracks) != 1 {
		t.Fatalf("len(tracks) = %d, want 1", len(result.Playlist.Tracks))
	}
	if result.Playlist.Tracks[0] != "only" {
		t.Errorf("track = %s, want only", result.Playlist.Tracks[0])
	}
}

func TestSolveOutputHasNoDuplicates(t *testing.T) {
	var pool []model.FeatureRecord
	for i := 0; i < 20; i++ {
		pool = append(pool, rec(
			string(rune('a'+i)),
			float64(120+i),
			float64(1+i%9),
			model.CamelotCode{Number: 1 + i%12, Letter: byte('A' + i%2)},
		))
	}
	sv := buildSolver(pool, Config{})
	curve := model.NewCurve([]model.EnergyPoint{
		{Position: 0, Energy: 2, Weight: 1, Tolerance: 1},
		{Position: 1, Energy: 9, Weight: 1, Tolerance: 1},
	})

	result := sv.Solve(curve, 8, Constraints{}, nil)

	seen := map[model.TrackId]bool{}
	for _, id := range result.Playlist.Tracks {
		if seen[id] {
			t.Fatalf("duplicate track %s in output", id)
		}
		seen[id] = true
	}
	if len(result.Playlist.Tracks) > 8 {
		t.Errorf("len(tracks) = %d, want <= 8", len(result.Playlist.Tracks))
	}
}

func TestSolveRespectsBlacklist(t *testing.T) {
	pool := []model.FeatureRecord{
		rec("keep", 120, 5, model.CamelotCode{Number: 8, Letter: 'A'}),
		rec("banned", 121, 5, model.CamelotCode{Number: 8, Letter: 'A'}),
	}
	sv := buildSolver(pool, Config{})
	curve := model.NewCurve(nil)

	result := sv.Solve(curve, 2, Constraints{Blacklist: map[model.TrackId]bool{"banned": true}}, nil)

	for _, id := range result.Playlist.Tracks {
		if id == "banned" {
			t.Error("blacklisted track appeared in output")
		}
	}
}

func TestConstraintMultiplierPenalizesOutOfRangeBPM(t *testing.T) {
	cand := rec("cand", 200, 5, model.CamelotCode{Number: 8, Letter: 'A'})
	constraints := Constraints{BPMRange: &[2]float64{110, 130}}
	if got := constraintMultiplier(cand, constraints); got != 0.5 {
		t.Errorf("constraintMultiplier = %v, want 0.5", got)
	}
}

func TestCandidateScoreZeroForBlacklisted(t *testing.T) {
	cand := rec("cand", 120, 5, model.CamelotCode{Number: 8, Letter: 'A'})
	sv := buildSolver([]model.FeatureRecord{cand}, Config{})
	parent := newState(cand)
	score := sv.candidateScore(parent, cand, cand, 5, Constraints{Blacklist: map[model.TrackId]bool{"cand": true}})
	if score != 0 {
		t.Errorf("candidateScore for blacklisted track = %v, want 0", score)
	}
}

func TestWithDefaultsEnablesEarlyStopAndStateWeights(t *testing.T) {
	cfg := Config{}.WithDefaults()
	if cfg.EarlyStop == nil || !*cfg.EarlyStop {
		t.Error("WithDefaults should default EarlyStop to true")
	}
	if cfg.StateWeights != DefaultStateWeights() {
		t.Errorf("StateWeights = %+v, want %+v", cfg.StateWeights, DefaultStateWeights())
	}
}

func TestWithDefaultsPreservesExplicitEarlyStopFalse(t *testing.T) {
	disabled := false
	cfg := Config{EarlyStop: &disabled}.WithDefaults()
	if cfg.EarlyStop == nil || *cfg.EarlyStop {
		t.Error("WithDefaults should preserve an explicit false EarlyStop")
	}
}

func TestSolveWithEarlyStopDisabledNeverReportsEarlyStopped(t *testing.T) {
	var pool []model.FeatureRecord
	for i := 0; i < 6; i++ {
		pool = append(pool, rec(fmt.Sprintf("t%d", i), 120, 5, model.CamelotCode{Number: 8, Letter: 'A'}))
	}
	curve := model.NewCurve(nil)

	disabled := false
	sv := buildSolver(pool, Config{EarlyStop: &disabled})
	result := sv.Solve(curve, len(pool), Constraints{}, nil)
	if result.EarlyStopped {
		t.Error("EarlyStopped = true, want false when EarlyStop is disabled regardless of score")
	}
}

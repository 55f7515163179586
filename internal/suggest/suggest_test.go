package suggest

import (
	"testing"

	"github.com/djcrate/engine/internal/index"
	"github.com/djcrate/engine/internal/model"
)

func rec(id string, bpm, energy float64, camelotCode model.CamelotCode) model.FeatureRecord {
	return model.FeatureRecord{
		TrackID:     model.TrackId(id),
		BPM:         bpm,
		EnergyScore: energy,
		Camelot:     camelotCode,
		Mood:        model.MoodVector{},
	}
}

func TestTransitionScoreIdenticalTracksIsMax(t *testing.T) {
	a := rec("a", 128, 7, model.CamelotCode{Number: 8, Letter: 'A'})
	if got := TransitionScore(a, a, a.EnergyScore); got < 0.999 {
		t.Errorf("TransitionScore(a, a) = %v, want ~1.0", got)
	}
}

func TestTransitionScoreDecreasesWithBPMGap(t *testing.T) {
	a := rec("a", 128, 7, model.CamelotCode{Number: 8, Letter: 'A'})
	near := rec("near", 130, 7, model.CamelotCode{Number: 8, Letter: 'A'})
	far := rec("far", 150, 7, model.CamelotCode{Number: 8, Letter: 'A'})

	if TransitionScore(a, near, a.EnergyScore) <= TransitionScore(a, far, a.EnergyScore) {
		t.Error("closer BPM should score higher")
	}
}

func TestCamelotComponentLadder(t *testing.T) {
	base := model.CamelotCode{Number: 8, Letter: 'A'}
	cases := []struct {
		name string
		b    model.CamelotCode
		want float64
	}{
		{"same", model.CamelotCode{Number: 8, Letter: 'A'}, 1.0},
		{"relative", model.CamelotCode{Number: 8, Letter: 'B'}, 0.95},
		{"adjacent", model.CamelotCode{Number: 9, Letter: 'A'}, 0.85},
		{"dominant", model.CamelotCode{Number: 3, Letter: 'A'}, 0.8},
		{"subdominant", model.CamelotCode{Number: 1, Letter: 'A'}, 0.8},
		{"unrelated", model.CamelotCode{Number: 2, Letter: 'A'}, 0.3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CamelotComponent(base, tc.b); got != tc.want {
				t.Errorf("CamelotComponent(%v, %v) = %v, want %v", base, tc.b, got, tc.want)
			}
		})
	}
}

func TestSimilarExcludesSelfAndLowCompat(t *testing.T) {
	records := []model.FeatureRecord{
		rec("base", 128, 7, model.CamelotCode{Number: 8, Letter: 'A'}),
		rec("close", 129, 7, model.CamelotCode{Number: 8, Letter: 'A'}),
		rec("distant", 80, 1, model.CamelotCode{Number: 2, Letter: 'B'}),
	}
	idx := index.Build(records)
	byID := map[model.TrackId]model.FeatureRecord{}
	for _, r := range records {
		byID[r.TrackID] = r
	}

	engine := New(idx, func(id model.TrackId) (model.FeatureRecord, bool) {
		r, ok := byID[id]
		return r, ok
	})

	out := engine.Similar(byID["base"], 2, nil, 0.5)
	for _, s := range out {
		if s.TrackID == "base" {
			t.Error("Similar should exclude the base track")
		}
		if s.TrackID == "distant" {
			t.Error("Similar should filter out candidates below min_compat")
		}
	}
}

func TestSimilarCachesRepeatedQueries(t *testing.T) {
	records := []model.FeatureRecord{
		rec("base", 128, 7, model.CamelotCode{Number: 8, Letter: 'A'}),
		rec("close", 129, 7, model.CamelotCode{Number: 8, Letter: 'A'}),
	}
	idx := index.Build(records)
	byID := map[model.TrackId]model.FeatureRecord{records[0].TrackID: records[0], records[1].TrackID: records[1]}
	calls := 0
	engine := New(idx, func(id model.TrackId) (model.FeatureRecord, bool) {
		calls++
		r, ok := byID[id]
		return r, ok
	})

	first := engine.Similar(byID["base"], 1, nil, 0)
	callsAfterFirst := calls
	second := engine.Similar(byID["base"], 1, nil, 0)

	if calls != callsAfterFirst {
		t.Error("second identical query should be served from cache, not re-invoke lookup")
	}
	if len(first) != len(second) || (len(first) > 0 && first[0].TrackID != second[0].TrackID) {
		t.Error("cached result should match original result")
	}
}

func TestSurpriseRequiresDistanceTwoSameLetterAndEnergyUplift(t *testing.T) {
	base := rec("base", 128, 5, model.CamelotCode{Number: 8, Letter: 'A'})
	pool := []model.FeatureRecord{
		base,
		rec("two-away-uplift", 128, 6, model.CamelotCode{Number: 10, Letter: 'A'}), // distance 2, same letter, energy +1
		rec("two-away-flat", 128, 5, model.CamelotCode{Number: 10, Letter: 'A'}),   // distance 2 but no uplift
		rec("wrong-letter", 128, 7, model.CamelotCode{Number: 10, Letter: 'B'}),    // distance 2 but different letter
		rec("one-away", 128, 7, model.CamelotCode{Number: 9, Letter: 'A'}),         // distance 1
	}

	out := Surprise(base, pool, 5)
	if len(out) != 1 {
		t.Fatalf("len(out) = %d, want 1", len(out))
	}
	if out[0].TrackID != "two-away-uplift" {
		t.Errorf("Surprise()[0].TrackID = %s, want two-away-uplift", out[0].TrackID)
	}
	if out[0].Reason != surpriseReason {
		t.Errorf("Reason = %q, want %q", out[0].Reason, surpriseReason)
	}
}

package validator

import (
	"testing"

	"github.com/djcrate/engine/internal/model"
)

func track(id string, bpm, energy float64, camelotCode model.CamelotCode, mood model.MoodKind) TrackMeta {
	return TrackMeta{
		Record: model.FeatureRecord{
			TrackID:     model.TrackId(id),
			BPM:         bpm,
			EnergyScore: energy,
			Camelot:     camelotCode,
			MoodLabel:   mood,
		},
		Artist: "artist-" + id,
		Genre:  "genre-" + id,
	}
}

func TestValidateCleanPlaylistScoresHigh(t *testing.T) {
	tracks := []TrackMeta{
		track("a", 120, 5, model.CamelotCode{Number: 8, Letter: 'A'}, model.MoodDark),
		track("b", 122, 6, model.CamelotCode{Number: 9, Letter: 'A'}, model.MoodEuphoric),
		track("c", 124, 7, model.CamelotCode{Number: 10, Letter: 'A'}, model.MoodDark),
	}
	score, issues := Validate(tracks, DefaultWeights())
	if score < 90 {
		t.Errorf("score = %v, want >= 90 for a clean playlist, issues: %+v", score, issues)
	}
}

func TestTempoFlowFlagsLargeJumpAndIsAutoFixable(t *testing.T) {
	tracks := []TrackMeta{
		track("a", 120, 5, model.CamelotCode{Number: 8, Letter: 'A'}, model.MoodDark),
		track("b", 170, 5, model.CamelotCode{Number: 8, Letter: 'A'}, model.MoodDark),
	}
	_, issues := Validate(tracks, DefaultWeights())

	found := false
	for _, issue := range issues {
		if issue.Category == categoryTempoFlow {
			found = true
			if !issue.AutoFixable {
				t.Error("tempo_flow issue should be auto_fixable")
			}
		}
	}
	if !found {
		t.Error("expected a tempo_flow issue for a 50 BPM jump")
	}
}

func TestHarmonicFlowFlagsIncompatibleTransition(t *testing.T) {
	tracks := []TrackMeta{
		track("a", 120, 5, model.CamelotCode{Number: 1, Letter: 'A'}, model.MoodDark),
		track("b", 120, 5, model.CamelotCode{Number: 6, Letter: 'B'}, model.MoodDark),
	}
	_, issues := Validate(tracks, DefaultWeights())

	found := false
	for _, issue := range issues {
		if issue.Category == categoryHarmonicFlow {
			found = true
		}
	}
	if !found {
		t.Error("expected a harmonic_flow issue for an unrelated key jump")
	}
}

func TestDiversityFlagsConsecutiveArtistRun(t *testing.T) {
	tracks := []TrackMeta{
		track("a", 120, 5, model.CamelotCode{Number: 8, Letter: 'A'}, model.MoodDark),
		track("b", 120, 5, model.CamelotCode{Number: 8, Letter: 'A'}, model.MoodDark),
		track("c", 120, 5, model.CamelotCode{Number: 8, Letter: 'A'}, model.MoodDark),
	}
	tracks[0].Artist, tracks[1].Artist, tracks[2].Artist = "same", "same", "same"

	_, issues := Validate(tracks, DefaultWeights())
	found := false
	for _, issue := range issues {
		if issue.Category == categoryDiversity {
			found = true
		}
	}
	if !found {
		t.Error("expected a diversity issue for 3 consecutive tracks by the same artist")
	}
}

func TestApplyAutoFixesNeverWorsensScore(t *testing.T) {
	tracks := []TrackMeta{
		track("a", 120, 5, model.CamelotCode{Number: 8, Letter: 'A'}, model.MoodDark),
		track("b", 170, 5, model.CamelotCode{Number: 8, Letter: 'A'}, model.MoodDark),
	}
	baselineScore, issues := Validate(tracks, DefaultWeights())

	fixed, fixedScore, _ := ApplyAutoFixes(tracks, issues, DefaultWeights())
	if fixedScore < baselineScore {
		t.Errorf("fixedScore = %v, want >= baseline %v", fixedScore, baselineScore)
	}
	if fixed[1].EffectiveBPM == nil {
		t.Error("expected tempo_flow auto-fix to set an EffectiveBPM annotation")
	}
}

func TestApplyAutoFixesIsIdempotent(t *testing.T) {
	// A 30 BPM gap resolves to <=20 after one averaging fix, so a
	// second application should be a no-op.
	tracks := []TrackMeta{
		track("a", 120, 5, model.CamelotCode{Number: 8, Letter: 'A'}, model.MoodDark),
		track("b", 150, 5, model.CamelotCode{Number: 8, Letter: 'A'}, model.MoodDark),
	}
	_, issues := Validate(tracks, DefaultWeights())
	fixedOnce, scoreOnce, issuesOnce := ApplyAutoFixes(tracks, issues, DefaultWeights())
	fixedTwice, scoreTwice, _ := ApplyAutoFixes(fixedOnce, issuesOnce, DefaultWeights())

	if scoreOnce != scoreTwice {
		t.Errorf("re-applying fixes changed the score: %v vs %v", scoreOnce, scoreTwice)
	}
	if *fixedOnce[1].EffectiveBPM != *fixedTwice[1].EffectiveBPM {
		t.Error("re-applying fixes changed the EffectiveBPM annotation")
	}
}

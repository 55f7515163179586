package index

import (
	"testing"

	"github.com/djcrate/engine/internal/model"
)

func track(id string, bpm, energy float64, camelot model.CamelotCode) model.FeatureRecord {
	return model.FeatureRecord{
		TrackID:     model.TrackId(id),
		BPM:         bpm,
		EnergyScore: energy,
		Camelot:     camelot,
		Mood:        model.MoodVector{},
	}
}

func TestNeighborsExcludesSelf(t *testing.T) {
	records := []model.FeatureRecord{
		track("a", 120, 3, model.CamelotCode{8, 'A'}),
		track("b", 125, 6, model.CamelotCode{9, 'A'}),
		track("c", 128, 9, model.CamelotCode{10, 'A'}),
	}
	idx := Build(records)

	neighbors := idx.Neighbors("a", 10)
	for _, n := range neighbors {
		if n.TrackID == "a" {
			t.Error("Neighbors should exclude the query track")
		}
	}
	if len(neighbors) != 2 {
		t.Errorf("len(neighbors) = %d, want 2", len(neighbors))
	}
}

func TestNeighborsOrderedByDistance(t *testing.T) {
	// T_low energy 3 BPM 120 key 8A; T_mid energy 6 BPM 125 key 9A;
	// T_peak energy 9 BPM 128 key 10A — T_mid should be closer to
	// T_low than T_peak is, per spec's worked scenario.
	records := []model.FeatureRecord{
		track("T_low", 120, 3, model.CamelotCode{8, 'A'}),
		track("T_mid", 125, 6, model.CamelotCode{9, 'A'}),
		track("T_peak", 128, 9, model.CamelotCode{10, 'A'}),
	}
	idx := Build(records)

	neighbors := idx.Neighbors("T_low", 2)
	if len(neighbors) != 2 {
		t.Fatalf("expected 2 neighbors, got %d", len(neighbors))
	}
	if neighbors[0].TrackID != "T_mid" {
		t.Errorf("closest neighbor = %s, want T_mid", neighbors[0].TrackID)
	}
}

func TestRebuildProducesIndependentSnapshot(t *testing.T) {
	first := Build([]model.FeatureRecord{track("a", 120, 5, model.CamelotCode{8, 'A'})})
	second := Build([]model.FeatureRecord{
		track("a", 120, 5, model.CamelotCode{8, 'A'}),
		track("b", 121, 5, model.CamelotCode{8, 'A'}),
	})

	if first.Size() != 1 {
		t.Errorf("first.Size() = %d, want 1", first.Size())
	}
	if second.Size() != 2 {
		t.Errorf("second.Size() = %d, want 2", second.Size())
	}
}

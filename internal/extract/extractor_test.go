package extract

import (
	"math"
	"testing"

	"github.com/djcrate/engine/internal/model"
)

// synthTone generates a pure sine wave at freq Hz, useful for exercising
// the chroma/key path deterministically.
func synthTone(freq float64, seconds float64, sampleRate int) []float32 {
	n := int(seconds * float64(sampleRate))
	out := make([]float32, n)
	for i := range out {
		t := float64(i) / float64(sampleRate)
		out[i] = float32(0.5 * math.Sin(2*math.Pi*freq*t))
	}
	return out
}

func TestEnergyScoreBounds(t *testing.T) {
	tests := []struct {
		name                           string
		rmsDB, centroidHz, onsetDensity float64
		wantMin, wantMax               float64
	}{
		{"silent", -60, 500, 0, 1.0, 1.5},
		{"loud bright busy", -10, 8000, 10, 9.5, 10.0},
		{"mid", -35, 4250, 5, 4.5, 6.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := energyScore(tt.rmsDB, tt.centroidHz, tt.onsetDensity, DefaultEnergyWeights())
			if got < tt.wantMin || got > tt.wantMax {
				t.Errorf("energyScore(%v,%v,%v) = %v, want in [%v,%v]", tt.rmsDB, tt.centroidHz, tt.onsetDensity, got, tt.wantMin, tt.wantMax)
			}
			if got < 1 || got > 10 {
				t.Errorf("energyScore out of documented [1,10] range: %v", got)
			}
		})
	}
}

func TestExtractSilenceYieldsSentinels(t *testing.T) {
	e := New(nil, nil)
	samples := make([]float32, 44100*12) // 12s of silence
	rec := e.Extract(samples, 44100)

	if rec.BPM != sentinelBPM {
		t.Errorf("expected sentinel BPM on silence, got %v", rec.BPM)
	}
	if !rec.Errors.Has(model.ErrKeyUnknown) {
		t.Error("expected KEY_UNKNOWN on silent input")
	}
}

func TestExtractToneProducesKey(t *testing.T) {
	e := New(nil, nil)
	// A4 = 440Hz, should land on pitch class A.
	samples := synthTone(440, 15, 44100)
	rec := e.Extract(samples, 44100)

	if rec.Key.Tonic == "" {
		t.Fatal("expected a detected tonic")
	}
	if !rec.Camelot.Valid() {
		t.Errorf("camelot %v is not a valid code", rec.Camelot)
	}
}

func TestMoodLabelIsArgmax(t *testing.T) {
	e := New(nil, nil)
	samples := synthTone(220, 15, 44100)
	rec := e.Extract(samples, 44100)

	if rec.MoodLabel != rec.Mood.Argmax() {
		t.Errorf("MoodLabel %v != Mood.Argmax() %v", rec.MoodLabel, rec.Mood.Argmax())
	}
}

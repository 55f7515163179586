package extract

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/djcrate/engine/internal/camelot"
	"github.com/djcrate/engine/internal/decode"
	"github.com/djcrate/engine/internal/extract/mood"
	"github.com/djcrate/engine/internal/model"
)

// sentinel values used when a stage fails rather than aborting the
// whole extraction, per spec §4.3/§7.
const (
	sentinelBPM    = 120.0
	sentinelEnergy = 5.0
)

// Extractor computes FeatureRecords from decoded audio. It holds no
// per-file state — every call is independent and safe to run
// concurrently, which is what C2+C3 fan-out (§5) requires.
type Extractor struct {
	logger       *slog.Logger
	classifier   mood.Classifier
	energyWeight EnergyWeights
}

// New builds an Extractor. classifier may be nil, in which case the
// always-available rule classifier is used.
func New(logger *slog.Logger, classifier mood.Classifier) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if classifier == nil {
		classifier = mood.NewRuleClassifier()
	}
	return &Extractor{logger: logger, classifier: classifier, energyWeight: DefaultEnergyWeights()}
}

// SetEnergyWeights overrides the §4.3 step 4 energy-score coefficients,
// e.g. from a loaded extractor.weights config document.
func (e *Extractor) SetEnergyWeights(w EnergyWeights) {
	e.energyWeight = w
}

// ExtractFile decodes path and extracts its FeatureRecord. maxSeconds
// <= 0 uses the decoder's default window.
func (e *Extractor) ExtractFile(path string, maxSeconds int) (model.FeatureRecord, error) {
	info, err := os.Stat(path)
	if err != nil {
		return model.FeatureRecord{}, fmt.Errorf("extract: stat %s: %w", path, err)
	}

	decoded, err := decode.Decode(path, decode.DefaultProfile, maxSeconds)
	if err != nil {
		return model.FeatureRecord{}, err
	}

	rec := e.Extract(decoded.Samples, decoded.SampleRate)
	rec.TrackID = model.Normalize(path)
	rec.DecoderProfileID = decoded.Profile.ID
	rec.SourceMtime = info.ModTime().Unix()
	rec.AnalyzedAt = time.Now().Unix()
	return rec, nil
}

// Extract runs the full pipeline over already-decoded mono PCM. PCM
// ownership stays with the caller; this function never retains it.
func (e *Extractor) Extract(samples []float32, sampleRate int) model.FeatureRecord {
	var rec model.FeatureRecord
	rec.BPM = sentinelBPM
	rec.EnergyScore = sentinelEnergy
	rec.Key = model.KeyName{Tonic: "C", Minor: false}
	rec.Camelot = camelot.ToCamelot(rec.Key)
	rec.DurationSeconds = float64(len(samples)) / float64(sampleRate)
	rec.HarmonicRatio = 0.5 // defaulted per the open-question resolution in DESIGN.md

	frames, duration := analyzeFrames(samples, sampleRate)
	rec.DurationSeconds = duration

	if len(frames) == 0 {
		rec.Errors |= model.ErrBPMFailed | model.ErrKeyUnknown | model.ErrMoodFailed
		e.logger.Warn("extract: no frames produced, returning sentinel record")
		return rec
	}

	// Spectral descriptors (step 3).
	var rmsSum, centroidSum float64
	spectra := make([][]float64, len(frames))
	for i, f := range frames {
		rmsSum += f.rms
		centroidSum += f.centroid
		spectra[i] = f.spectrum
	}
	meanRMS := rmsSum / float64(len(frames))
	meanCentroid := centroidSum / float64(len(frames))
	rmsDB := 20 * math.Log10(meanRMS+1e-9)
	rec.RMSLoudnessDB = rmsDB
	rec.SpectralCentroidHz = meanCentroid

	env := onsetEnvelope(spectra)
	onsets := onsetCount(env)
	onsetDensity := 0.0
	if rec.DurationSeconds > 0 {
		onsetDensity = float64(onsets) / rec.DurationSeconds
	}
	rec.OnsetDensityPerS = onsetDensity

	// BPM (step 1).
	if bpm, _, ok := estimateBPM(env, sampleRate); ok {
		rec.BPM = clampBPM(bpm)
	} else {
		rec.Errors |= model.ErrBPMFailed
		rec.BPM = sentinelBPM
	}

	// Key + Camelot (step 2).
	chroma := meanChroma(samples, sampleRate)
	if chromaIsSilent(chroma) {
		rec.Errors |= model.ErrKeyUnknown
	} else {
		key, confidence := detectKey(chroma)
		rec.Key = key
		rec.KeyConfidence = confidence
	}
	rec.Camelot = camelot.ToCamelot(rec.Key)

	// Energy score (step 4).
	rec.EnergyScore = energyScore(rmsDB, meanCentroid, onsetDensity, e.energyWeight)
	if rec.EnergyScore < 1 {
		rec.EnergyScore = 1
	}
	if rec.EnergyScore > 10 {
		rec.EnergyScore = 10
	}

	// Mood (step 5).
	features := mood.Features{
		Energy:   rec.EnergyScore,
		Centroid: meanCentroid,
		BPM:      rec.BPM,
		Minor:    rec.Key.Minor,
	}
	mv, label, confidence := e.classifier.Predict(features)
	rec.Mood = mv
	rec.MoodLabel = label
	rec.MoodConfidence = confidence
	if confidence == 0 {
		rec.Errors |= model.ErrMoodFailed
	}

	return rec
}

func chromaIsSilent(chroma [12]float64) bool {
	for _, v := range chroma {
		if v > 0 {
			return false
		}
	}
	return true
}

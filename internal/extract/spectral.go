package extract

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// spectralFrame carries the per-frame descriptors the rest of the
// extractor folds into clip-level summaries.
type spectralFrame struct {
	rms      float64
	centroid float64
	spectrum []float64
}

func analyzeFrames(samples []float32, sampleRate int) (frames []spectralFrame, duration float64) {
	it := newFrameIterator(samples)
	fft := fourier.NewFFT(frameSize)

	for {
		raw, ok := it.next()
		if !ok {
			break
		}
		spectrum := magnitudeSpectrum(fft, raw)
		frames = append(frames, spectralFrame{
			rms:      rmsOf(raw),
			centroid: centroidOf(spectrum, sampleRate),
			spectrum: spectrum,
		})
	}
	duration = float64(len(samples)) / float64(sampleRate)
	return frames, duration
}

func rmsOf(frame []float64) float64 {
	var sumSq float64
	for _, s := range frame {
		sumSq += s * s
	}
	return math.Sqrt(sumSq / float64(len(frame)))
}

func centroidOf(spectrum []float64, sampleRate int) float64 {
	var weighted, total float64
	for i, mag := range spectrum {
		freq := binFrequency(i, sampleRate)
		weighted += freq * mag
		total += mag
	}
	if total == 0 {
		return 0
	}
	return weighted / total
}

// onsetCount counts local energy increases above a relative threshold
// in the onset envelope — used for onset density.
func onsetCount(env []float64) int {
	if len(env) < 3 {
		return 0
	}
	mean := 0.0
	for _, v := range env {
		mean += v
	}
	mean /= float64(len(env))

	count := 0
	for i := 1; i < len(env)-1; i++ {
		if env[i] > env[i-1] && env[i] > env[i+1] && env[i] > mean*1.5 {
			count++
		}
	}
	return count
}

// normalize01 linearly maps v from [min,max] to [0,1], clamped.
func normalize01(v, min, max float64) float64 {
	if max == min {
		return 0
	}
	n := (v - min) / (max - min)
	if n < 0 {
		return 0
	}
	if n > 1 {
		return 1
	}
	return n
}

// EnergyWeights are the §4.3 step 4 coefficients for the three
// normalized descriptors. Overridable via config's extractor.weights.
type EnergyWeights struct {
	RMS      float64
	Centroid float64
	Onset    float64
}

// DefaultEnergyWeights returns spec §4.3's stated defaults.
func DefaultEnergyWeights() EnergyWeights {
	return EnergyWeights{RMS: 0.4, Centroid: 0.3, Onset: 0.3}
}

// energyScore implements spec §4.3 step 4: weighted sum of the three
// normalized descriptors, rescaled to [1,10].
func energyScore(rmsDB, centroidHz, onsetDensity float64, w EnergyWeights) float64 {
	rms01 := normalize01(rmsDB, -60, -10)
	cent01 := normalize01(centroidHz, 500, 8000)
	onset01 := normalize01(onsetDensity, 0, 10)
	e01 := w.RMS*rms01 + w.Centroid*cent01 + w.Onset*onset01
	return 1 + 9*e01
}

package extract

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/djcrate/engine/internal/model"
)

// krumhanslMajor and krumhanslMinor are the classic Krumhansl-Schmuckler
// tonal hierarchy profiles, tonic-relative, pitch classes C..B.
var krumhanslMajor = [12]float64{6.35, 2.23, 3.48, 2.33, 4.38, 4.09, 2.52, 5.19, 2.39, 3.66, 2.29, 2.88}
var krumhanslMinor = [12]float64{6.33, 2.68, 3.52, 5.38, 2.60, 3.53, 2.54, 4.75, 3.98, 2.69, 3.34, 3.17}

var pitchClassNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// meanChroma accumulates a 12-bin pitch-class energy profile over every
// frame of the clip by folding each FFT bin's magnitude into its nearest
// equal-tempered pitch class (A4 = 440 Hz).
func meanChroma(samples []float32, sampleRate int) [12]float64 {
	fft := fourier.NewFFT(frameSize)
	it := newFrameIterator(samples)

	var acc [12]float64
	frames := 0

	for {
		frame, ok := it.next()
		if !ok {
			break
		}
		mags := magnitudeSpectrum(fft, frame)
		for i := 1; i < len(mags); i++ {
			freq := binFrequency(i, sampleRate)
			if freq < 27.5 || freq > 5000 {
				continue // outside the musically meaningful range
			}
			pc := pitchClassOf(freq)
			acc[pc] += mags[i]
		}
		frames++
	}

	if frames == 0 {
		return acc
	}
	for i := range acc {
		acc[i] /= float64(frames)
	}
	return acc
}

// pitchClassOf returns 0..11 (C..B) for a frequency in Hz.
func pitchClassOf(freq float64) int {
	semitonesFromA4 := 12 * math.Log2(freq/440)
	midi := int(math.Round(semitonesFromA4)) + 69
	pc := midi % 12
	if pc < 0 {
		pc += 12
	}
	return pc
}

// detectKey correlates the mean chroma against both templates rotated
// over all 12 tonic offsets and returns the best-matching key plus a
// normalized confidence, per spec's Pearson-correlation key detection.
func detectKey(chroma [12]float64) (model.KeyName, float64) {
	bestCorr := math.Inf(-1)
	sumAbsCorr := 0.0
	bestTonic := 0
	bestMinor := false

	for tonic := 0; tonic < 12; tonic++ {
		majorCorr := pearsonRotated(chroma, krumhanslMajor, tonic)
		minorCorr := pearsonRotated(chroma, krumhanslMinor, tonic)
		sumAbsCorr += math.Abs(majorCorr) + math.Abs(minorCorr)

		if majorCorr > bestCorr {
			bestCorr = majorCorr
			bestTonic = tonic
			bestMinor = false
		}
		if minorCorr > bestCorr {
			bestCorr = minorCorr
			bestTonic = tonic
			bestMinor = true
		}
	}

	confidence := 0.0
	if sumAbsCorr > 0 {
		confidence = bestCorr / sumAbsCorr
	}
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	return model.KeyName{Tonic: pitchClassNames[bestTonic], Minor: bestMinor}, confidence
}

// pearsonRotated correlates chroma against template rotated so the
// template's tonic aligns with pitch class `tonic`.
func pearsonRotated(chroma [12]float64, template [12]float64, tonic int) float64 {
	var rotated [12]float64
	for i := 0; i < 12; i++ {
		rotated[(i+tonic)%12] = template[i]
	}
	return pearson(chroma[:], rotated[:])
}

func pearson(a, b []float64) float64 {
	n := float64(len(a))
	var sumA, sumB float64
	for i := range a {
		sumA += a[i]
		sumB += b[i]
	}
	meanA, meanB := sumA/n, sumB/n

	var num, denA, denB float64
	for i := range a {
		da, db := a[i]-meanA, b[i]-meanB
		num += da * db
		denA += da * da
		denB += db * db
	}
	if denA == 0 || denB == 0 {
		return 0
	}
	return num / math.Sqrt(denA*denB)
}

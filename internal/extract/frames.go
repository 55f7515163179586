// Package extract implements the feature extraction pipeline (C3): BPM,
// musical key, spectral descriptors, energy score and mood, computed
// from decoded mono PCM.
package extract

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

const (
	frameSize = 2048
	hopSize   = 1024
)

// hanningWindow returns a length-n Hanning window, grounded on the
// framing/windowing approach used for spectral feature extraction
// elsewhere in the retrieval pack (austinkregel's FFT-based analyzer).
func hanningWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}

// frameIterator walks samples in frameSize windows, hopSize apart,
// zero-padding the final partial frame.
type frameIterator struct {
	samples []float32
	window  []float64
	pos     int
}

func newFrameIterator(samples []float32) *frameIterator {
	return &frameIterator{samples: samples, window: hanningWindow(frameSize)}
}

func (it *frameIterator) next() ([]float64, bool) {
	if it.pos >= len(it.samples) {
		return nil, false
	}
	frame := make([]float64, frameSize)
	end := it.pos + frameSize
	if end > len(it.samples) {
		end = len(it.samples)
	}
	for i := it.pos; i < end; i++ {
		frame[i-it.pos] = float64(it.samples[i]) * it.window[i-it.pos]
	}
	it.pos += hopSize
	return frame, true
}

// magnitudeSpectrum returns the magnitude of the first n/2+1 FFT bins of
// a real-valued frame.
func magnitudeSpectrum(fft *fourier.FFT, frame []float64) []float64 {
	coeffs := fft.Coefficients(nil, frame)
	mags := make([]float64, len(coeffs))
	for i, c := range coeffs {
		mags[i] = math.Hypot(real(c), imag(c))
	}
	return mags
}

// binFrequency returns the center frequency in Hz of FFT bin i for a
// transform of size frameSize at the given sample rate.
func binFrequency(i, sampleRate int) float64 {
	return float64(i) * float64(sampleRate) / float64(frameSize)
}

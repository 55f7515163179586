// Package decode implements the audio decoder contract (C2): turn an
// arbitrary audio file into mono float32 PCM at a fixed sample rate.
package decode

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Profile identifies the fixed sample rate a decoder targets. The cache
// binds its key to this, so changing it invalidates every cached entry.
type Profile struct {
	ID         string
	SampleRate int
}

// DefaultProfile is the rate this implementation has picked and commits
// to, per the decoder contract's "implementer picks one and sticks with
// it" rule.
var DefaultProfile = Profile{ID: "pcm44100mono-v1", SampleRate: 44100}

// MaxSeconds bounds the analysis window by default; callers may pass a
// smaller value through Decode's maxSeconds argument.
const MaxSeconds = 120

// MinDurationSeconds is the shortest file this decoder will accept.
const MinDurationSeconds = 10.0

var (
	ErrFileMissing   = errors.New("decode: file missing")
	ErrFileTooShort  = errors.New("decode: file shorter than minimum duration")
	ErrDecodeFailed  = errors.New("decode: failed to decode audio stream")
	ErrUnsupported   = errors.New("decode: unsupported file extension")
)

// Result is the decoder's output: mono PCM plus the rate it was produced
// at. Buffers here are owned by the caller (C3) and dropped after use —
// they never enter the cache.
type Result struct {
	Samples    []float32
	SampleRate int
	Profile    Profile
}

// Decode reads path, down-mixes to mono, and returns up to maxSeconds of
// audio at profile.SampleRate. maxSeconds <= 0 means MaxSeconds.
func Decode(path string, profile Profile, maxSeconds int) (Result, error) {
	if maxSeconds <= 0 {
		maxSeconds = MaxSeconds
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{}, fmt.Errorf("%w: %s", ErrFileMissing, path)
		}
		return Result{}, fmt.Errorf("decode: stat %s: %w", path, err)
	}
	if info.IsDir() {
		return Result{}, fmt.Errorf("%w: %s is a directory", ErrDecodeFailed, path)
	}

	ext := strings.ToLower(filepath.Ext(path))
	var samples []float32
	var nativeRate int

	switch ext {
	case ".mp3":
		samples, nativeRate, err = decodeMP3(path)
	case ".wav", ".wave":
		samples, nativeRate, err = decodeWAV(path)
	default:
		return Result{}, fmt.Errorf("%w: %s", ErrUnsupported, ext)
	}
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}

	if nativeRate != profile.SampleRate {
		samples = resample(samples, nativeRate, profile.SampleRate)
	}

	maxSamples := maxSeconds * profile.SampleRate
	if len(samples) > maxSamples {
		samples = samples[:maxSamples]
	}

	durationSeconds := float64(len(samples)) / float64(profile.SampleRate)
	if durationSeconds < MinDurationSeconds {
		return Result{}, fmt.Errorf("%w: %.2fs", ErrFileTooShort, durationSeconds)
	}

	return Result{Samples: samples, SampleRate: profile.SampleRate, Profile: profile}, nil
}

// resample performs simple linear interpolation resampling. It is not a
// high-fidelity resampler (no anti-aliasing filter); feature extraction
// downstream tolerates the resulting artifacts per the "semantic, not
// bit-exact" numerical replication policy.
func resample(samples []float32, from, to int) []float32 {
	if from == to || len(samples) == 0 {
		return samples
	}
	ratio := float64(to) / float64(from)
	outLen := int(float64(len(samples)) * ratio)
	out := make([]float32, outLen)
	for i := range out {
		srcPos := float64(i) / ratio
		lo := int(srcPos)
		if lo >= len(samples)-1 {
			out[i] = samples[len(samples)-1]
			continue
		}
		frac := srcPos - float64(lo)
		out[i] = samples[lo] + float32(frac)*(samples[lo+1]-samples[lo])
	}
	return out
}


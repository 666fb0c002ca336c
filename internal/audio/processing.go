// Package audio provides validation, loudness normalization, and WAV encoding
// for generated tracks.
package audio

import (
	"errors"
	"fmt"
	"math"

	"github.com/book-expert/automuse/internal/core"
)

// Quality validation limits.
const (
	MaxSampleRate = 192000
	MaxChannels   = 8
)

// Loudness normalization targets, in dBFS.
const (
	DefaultTargetLoudness = -14.0
	DefaultPeakCeiling    = -1.0
)

// Error message formats.
const (
	errFmtSampleRateRange = "%w: sample rate must be between 1 and %d Hz, got %d"
	errFmtChannelsRange   = "%w: channels must be between 1 and %d, got %d"
	errFmtFrameAlignment  = "%w: %d samples do not divide into %d channels"
	errFmtNonFinite       = "%w: sample %d is not finite"
)

var (
	// ErrInvalidAudio is returned when audio fails validation.
	ErrInvalidAudio = errors.New("invalid audio")
	// ErrEmptyAudio is returned when audio carries no samples.
	ErrEmptyAudio = errors.New("audio has no samples")
)

// Validate checks that a generated payload can be encoded.
func Validate(track *core.Audio) error {
	if track == nil || len(track.Samples) == 0 {
		return ErrEmptyAudio
	}

	if track.SampleRate <= 0 || track.SampleRate > MaxSampleRate {
		return fmt.Errorf(errFmtSampleRateRange, ErrInvalidAudio, MaxSampleRate, track.SampleRate)
	}

	if track.Channels <= 0 || track.Channels > MaxChannels {
		return fmt.Errorf(errFmtChannelsRange, ErrInvalidAudio, MaxChannels, track.Channels)
	}

	if len(track.Samples)%track.Channels != 0 {
		return fmt.Errorf(errFmtFrameAlignment, ErrInvalidAudio, len(track.Samples), track.Channels)
	}

	for index, sample := range track.Samples {
		value := float64(sample)
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return fmt.Errorf(errFmtNonFinite, ErrInvalidAudio, index)
		}
	}

	return nil
}

// Normalize scales samples so their RMS level sits at targetDB, then lowers the
// gain if needed so no sample peaks above ceilingDB. Silent input is returned
// unchanged. The input slice is not modified.
func Normalize(samples []float32, targetDB, ceilingDB float64) []float32 {
	out := make([]float32, len(samples))
	copy(out, samples)

	rms, peak := levels(samples)
	if rms == 0 || peak == 0 {
		return out
	}

	gain := dbToAmplitude(targetDB) / rms

	ceiling := dbToAmplitude(ceilingDB)
	if peak*gain > ceiling {
		gain = ceiling / peak
	}

	for i, sample := range out {
		out[i] = float32(float64(sample) * gain)
	}

	return out
}

// Levels returns the RMS level and absolute peak of samples, both in dBFS.
// Silence reports negative infinity.
func Levels(samples []float32) (rmsDB, peakDB float64) {
	rms, peak := levels(samples)

	return amplitudeToDB(rms), amplitudeToDB(peak)
}

func levels(samples []float32) (rms, peak float64) {
	if len(samples) == 0 {
		return 0, 0
	}

	var sumSquares float64

	for _, sample := range samples {
		value := float64(sample)
		sumSquares += value * value
		peak = math.Max(peak, math.Abs(value))
	}

	return math.Sqrt(sumSquares / float64(len(samples))), peak
}

func dbToAmplitude(db float64) float64 {
	return math.Pow(10, db/20)
}

func amplitudeToDB(amplitude float64) float64 {
	if amplitude == 0 {
		return math.Inf(-1)
	}

	return 20 * math.Log10(amplitude)
}

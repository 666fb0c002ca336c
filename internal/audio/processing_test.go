package audio_test

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/book-expert/automuse/internal/audio"
	"github.com/book-expert/automuse/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sine(frames, sampleRate int, amplitude float64) []float32 {
	samples := make([]float32, frames)
	for i := range samples {
		samples[i] = float32(amplitude * math.Sin(2*math.Pi*440*float64(i)/float64(sampleRate)))
	}

	return samples
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		track   *core.Audio
		wantErr error
	}{
		{name: "nil", track: nil, wantErr: audio.ErrEmptyAudio},
		{name: "no samples", track: &core.Audio{Samples: nil, SampleRate: 32000, Channels: 1}, wantErr: audio.ErrEmptyAudio},
		{name: "zero sample rate", track: &core.Audio{Samples: []float32{0}, SampleRate: 0, Channels: 1}, wantErr: audio.ErrInvalidAudio},
		{name: "sample rate too high", track: &core.Audio{Samples: []float32{0}, SampleRate: 384000, Channels: 1}, wantErr: audio.ErrInvalidAudio},
		{name: "too many channels", track: &core.Audio{Samples: []float32{0}, SampleRate: 32000, Channels: 9}, wantErr: audio.ErrInvalidAudio},
		{name: "partial frame", track: &core.Audio{Samples: []float32{0, 0, 0}, SampleRate: 32000, Channels: 2}, wantErr: audio.ErrInvalidAudio},
		{name: "NaN sample", track: &core.Audio{Samples: []float32{0, float32(math.NaN())}, SampleRate: 32000, Channels: 1}, wantErr: audio.ErrInvalidAudio},
		{name: "infinite sample", track: &core.Audio{Samples: []float32{float32(math.Inf(-1))}, SampleRate: 32000, Channels: 1}, wantErr: audio.ErrInvalidAudio},
		{name: "valid stereo", track: &core.Audio{Samples: []float32{0, 0}, SampleRate: 32000, Channels: 2}, wantErr: nil},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			err := audio.Validate(testCase.track)
			if testCase.wantErr == nil {
				require.NoError(t, err)

				return
			}

			require.ErrorIs(t, err, testCase.wantErr)
		})
	}
}

func TestNormalize_ReachesTargetLoudness(t *testing.T) {
	t.Parallel()

	quiet := sine(32000, 32000, 0.01)

	normalized := audio.Normalize(quiet, audio.DefaultTargetLoudness, audio.DefaultPeakCeiling)

	rmsDB, peakDB := audio.Levels(normalized)
	assert.InDelta(t, audio.DefaultTargetLoudness, rmsDB, 0.1)
	assert.LessOrEqual(t, peakDB, audio.DefaultPeakCeiling+0.01)

	originalRMS, _ := audio.Levels(quiet)
	assert.Less(t, originalRMS, rmsDB, "input must not be modified in place")
}

func TestNormalize_PeakLimited(t *testing.T) {
	t.Parallel()

	// One spike over near-silence would need huge gain to hit the RMS target.
	spiky := make([]float32, 10000)
	spiky[0] = 0.5

	normalized := audio.Normalize(spiky, audio.DefaultTargetLoudness, audio.DefaultPeakCeiling)

	_, peakDB := audio.Levels(normalized)
	assert.InDelta(t, audio.DefaultPeakCeiling, peakDB, 0.01)
}

func TestNormalize_SilenceUnchanged(t *testing.T) {
	t.Parallel()

	silence := make([]float32, 100)

	assert.Equal(t, silence, audio.Normalize(silence, audio.DefaultTargetLoudness, audio.DefaultPeakCeiling))
}

func TestWAVWriter_RoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "ambient-synth.wav")
	track := &core.Audio{Samples: sine(3200, 32000, 0.5), SampleRate: 32000, Channels: 1}

	writer := audio.NewWAVWriter(false)
	require.NoError(t, writer.Write(path, track))

	decoded, err := audio.ReadWAV(path)
	require.NoError(t, err)

	assert.Equal(t, 32000, decoded.SampleRate)
	assert.Equal(t, 1, decoded.Channels)
	require.Len(t, decoded.Samples, len(track.Samples))

	for i := range track.Samples {
		assert.InDelta(t, track.Samples[i], decoded.Samples[i], 1.0/16384)
	}
}

func TestWAVWriter_RejectsInvalidAudio(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bad.wav")

	err := audio.NewWAVWriter(true).Write(path, &core.Audio{Samples: nil, SampleRate: 32000, Channels: 1})
	require.ErrorIs(t, err, audio.ErrEmptyAudio)
	assert.NoFileExists(t, path)

	err = audio.NewWAVWriter(false).Write(path, &core.Audio{
		Samples:    []float32{0.5, float32(math.NaN()), -0.5},
		SampleRate: 32000,
		Channels:   1,
	})
	require.ErrorIs(t, err, audio.ErrInvalidAudio)
	assert.NoFileExists(t, path)
}

func TestReadWAV_RejectsNonWAV(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "notes.wav")
	require.NoError(t, writeFile(path, []byte("definitely not RIFF data")))

	_, err := audio.ReadWAV(path)
	require.ErrorIs(t, err, audio.ErrNotWAV)
}

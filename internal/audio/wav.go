package audio

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/book-expert/automuse/internal/core"
)

const (
	// DefaultBitDepth is the PCM bit depth used when WAVWriter.BitDepth is zero.
	DefaultBitDepth = 16

	wavFormatPCM    = 1
	filePermissions = 0o600
	dirPermissions  = 0o750
)

// ErrNotWAV is returned when a file is not a readable PCM WAV file.
var ErrNotWAV = errors.New("not a valid WAV file")

// WAVWriter implements core.AudioWriter with PCM WAV output.
type WAVWriter struct {
	BitDepth  int
	Normalize bool
}

// NewWAVWriter returns a 16-bit writer that normalizes loudness when normalize is set.
func NewWAVWriter(normalize bool) *WAVWriter {
	return &WAVWriter{BitDepth: DefaultBitDepth, Normalize: normalize}
}

// Write encodes track to path, creating the parent directory if needed.
func (w *WAVWriter) Write(path string, track *core.Audio) error {
	err := Validate(track)
	if err != nil {
		return err
	}

	bitDepth := w.BitDepth
	if bitDepth == 0 {
		bitDepth = DefaultBitDepth
	}

	samples := track.Samples
	if w.Normalize {
		samples = Normalize(samples, DefaultTargetLoudness, DefaultPeakCeiling)
	}

	err = os.MkdirAll(filepath.Dir(path), dirPermissions)
	if err != nil {
		return fmt.Errorf("failed to create output directory for '%s': %w", path, err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, filePermissions)
	if err != nil {
		return fmt.Errorf("failed to create audio file '%s': %w", path, err)
	}

	encoder := wav.NewEncoder(file, track.SampleRate, bitDepth, track.Channels, wavFormatPCM)
	buffer := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: track.Channels, SampleRate: track.SampleRate},
		Data:           toPCM(samples, bitDepth),
		SourceBitDepth: bitDepth,
	}

	writeErr := encoder.Write(buffer)
	encodeErr := encoder.Close()
	closeErr := file.Close()

	switch {
	case writeErr != nil:
		return fmt.Errorf("failed to encode audio to '%s': %w", path, writeErr)
	case encodeErr != nil:
		return fmt.Errorf("failed to finalize WAV header for '%s': %w", path, encodeErr)
	case closeErr != nil:
		return fmt.Errorf("failed to close audio file '%s': %w", path, closeErr)
	}

	return nil
}

// ReadWAV decodes a PCM WAV file into interleaved float samples.
func ReadWAV(path string) (*core.Audio, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file '%s': %w", path, err)
	}
	defer file.Close()

	decoder := wav.NewDecoder(file)
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("%w: %s", ErrNotWAV, path)
	}

	buffer, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to decode '%s': %w", path, err)
	}

	return &core.Audio{
		Samples:    fromPCM(buffer.Data, int(decoder.BitDepth)),
		SampleRate: int(decoder.SampleRate),
		Channels:   int(decoder.NumChans),
	}, nil
}

func toPCM(samples []float32, bitDepth int) []int {
	scale := fullScale(bitDepth)
	data := make([]int, len(samples))

	for i, sample := range samples {
		clamped := math.Max(-1, math.Min(1, float64(sample)))
		data[i] = int(math.Round(clamped * (scale - 1)))
	}

	return data
}

func fromPCM(data []int, bitDepth int) []float32 {
	scale := fullScale(bitDepth)
	samples := make([]float32, len(data))

	for i, value := range data {
		samples[i] = float32(float64(value) / scale)
	}

	return samples
}

func fullScale(bitDepth int) float64 {
	return math.Exp2(float64(bitDepth - 1))
}

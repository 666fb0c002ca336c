package core_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/book-expert/automuse/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errMockCause = errors.New("mock cause")

func TestGenerationError_UnwrapsThroughWrapping(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("cycle 3: %w", &core.GenerationError{Prompt: "calm piano", Err: errMockCause})

	var genErr *core.GenerationError

	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, "calm piano", genErr.Prompt)
	require.ErrorIs(t, err, errMockCause)
	assert.Contains(t, err.Error(), "calm piano")
}

func TestUploadError_CarriesLocalPath(t *testing.T) {
	t.Parallel()

	err := error(&core.UploadError{Key: "generated_tracks/a.wav", LocalPath: "outputs/a.wav", Err: errMockCause})

	var uploadErr *core.UploadError

	require.ErrorAs(t, err, &uploadErr)
	assert.Equal(t, "outputs/a.wav", uploadErr.LocalPath)
	require.ErrorIs(t, err, errMockCause)

	var genErr *core.GenerationError

	assert.NotErrorAs(t, err, &genErr)
}

func TestPresence_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "found", core.PresenceFound.String())
	assert.Equal(t, "not-found", core.PresenceNotFound.String())
	assert.Equal(t, "check-failed", core.PresenceCheckFailed.String())
}

func TestAudio_Duration(t *testing.T) {
	t.Parallel()

	stereo := &core.Audio{Samples: make([]float32, 64000), SampleRate: 32000, Channels: 2}
	assert.Equal(t, time.Second, stereo.Duration())

	var missing *core.Audio

	assert.Equal(t, time.Duration(0), missing.Duration())
}

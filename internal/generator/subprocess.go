package generator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/book-expert/logger"

	"github.com/book-expert/automuse/internal/audio"
	"github.com/book-expert/automuse/internal/core"
)

// ErrBinaryPathEmpty is returned when no generation binary is configured.
var ErrBinaryPathEmpty = errors.New("generation binary path cannot be empty")

// Subprocess implements core.Generator by running a local generation binary
// that writes a WAV file.
type Subprocess struct {
	binaryPath string
	model      string
	log        *logger.Logger
}

// NewSubprocess creates a generator that runs binaryPath.
func NewSubprocess(binaryPath, model string, log *logger.Logger) (*Subprocess, error) {
	if binaryPath == "" {
		return nil, ErrBinaryPathEmpty
	}

	if model == "" {
		model = DefaultModel
	}

	return &Subprocess{
		binaryPath: binaryPath,
		model:      model,
		log:        log,
	}, nil
}

// Generate runs the binary and decodes its WAV output.
func (p *Subprocess) Generate(ctx context.Context, prompt string, durationSeconds int) (*core.Audio, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrPromptEmpty
	}

	if durationSeconds <= 0 {
		durationSeconds = DefaultDurationSeconds
	}

	tempDir, err := os.MkdirTemp("", "automuse-gen-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir for generator output: %w", err)
	}

	defer func() {
		removeErr := os.RemoveAll(tempDir)
		if removeErr != nil {
			p.log.Warn("Failed to remove temp dir '%s': %v", tempDir, removeErr)
		}
	}()

	outputPath := filepath.Join(tempDir, "output.wav")
	args := []string{
		"--model", p.model,
		"--description", prompt,
		"--duration", strconv.Itoa(durationSeconds),
		"--output", outputPath,
	}

	// #nosec G204 -- binary path comes from configuration, prompt is passed as a single argument
	cmd := exec.CommandContext(ctx, p.binaryPath, args...)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("generation binary execution failed: %w - output: %s", err, string(output))
	}

	track, err := audio.ReadWAV(outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read generator output: %w", err)
	}

	return track, nil
}

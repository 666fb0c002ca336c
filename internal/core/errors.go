package core

import "fmt"

// GenerationError reports a failure before any remote state changed: the model,
// the codec, or the local write. Retrying from scratch is safe.
type GenerationError struct {
	Prompt string
	Err    error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed for prompt %q: %v", e.Prompt, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// UploadError reports a failed upload. LocalPath still holds the artifact, so
// the upload alone can be retried.
type UploadError struct {
	Key       string
	LocalPath string
	Err       error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload of '%s' as '%s' failed: %v", e.LocalPath, e.Key, e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

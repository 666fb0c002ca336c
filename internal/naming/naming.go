// Package naming derives stable, key-safe names from prompts and picks the
// first free numbered variant of a name in a remote namespace.
package naming

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/book-expert/automuse/internal/core"
)

const (
	// FallbackName is used when a prompt sanitizes to nothing.
	FallbackName = "track"
	// DefaultMaxAttempts bounds Resolve when the caller passes a non-positive limit.
	DefaultMaxAttempts = 1000
	// firstSuffix is the counter of the first suffixed candidate.
	firstSuffix = 2
)

var (
	// ErrExistenceCheck indicates the namespace could not say whether a candidate exists.
	ErrExistenceCheck = errors.New("existence check failed")
	// ErrNamespaceExhausted indicates every candidate within the attempt limit is taken.
	ErrNamespaceExhausted = errors.New("namespace exhausted")
)

var disallowedRun = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// ExistsFunc reports whether a candidate stem is already taken.
type ExistsFunc func(ctx context.Context, stem string) (core.Presence, error)

// Sanitize lower-cases text, collapses each run of characters outside
// [a-zA-Z0-9-_] into a single '-', and trims '-' from both ends.
func Sanitize(text string) string {
	sanitized := disallowedRun.ReplaceAllString(strings.ToLower(text), "-")
	sanitized = strings.Trim(sanitized, "-")

	if sanitized == "" {
		return FallbackName
	}

	return sanitized
}

// Candidate returns the n-th candidate stem for base. Counters below 2 yield base itself.
func Candidate(base string, n int) string {
	if n < firstSuffix {
		return base
	}

	return base + "-" + strconv.Itoa(n)
}

// Resolve returns the first candidate of base (base, base-2, base-3, ...) that
// exists reports as not found. It performs no locking: two concurrent callers
// can pick the same stem.
func Resolve(ctx context.Context, base string, exists ExistsFunc, maxAttempts int) (string, error) {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		ctxErr := ctx.Err()
		if ctxErr != nil {
			return "", fmt.Errorf("resolve '%s' interrupted: %w", base, ctxErr)
		}

		// attempt 1 is the bare base, attempt k > 1 maps to suffix k.
		candidate := Candidate(base, attempt)

		presence, err := exists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("%w for '%s': %w", ErrExistenceCheck, candidate, err)
		}

		switch presence {
		case core.PresenceNotFound:
			return candidate, nil
		case core.PresenceFound:
			continue
		case core.PresenceCheckFailed:
			return "", fmt.Errorf("%w for '%s'", ErrExistenceCheck, candidate)
		default:
			return "", fmt.Errorf("%w for '%s': unexpected presence %d", ErrExistenceCheck, candidate, presence)
		}
	}

	return "", fmt.Errorf("%w: '%s' has no free name within %d attempts", ErrNamespaceExhausted, base, maxAttempts)
}

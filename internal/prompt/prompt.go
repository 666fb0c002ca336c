// Package prompt normalizes and validates text prompts before they reach the
// music model.
package prompt

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// MaxBytes is the largest prompt accepted after normalization.
const MaxBytes = 1000

// Punctuation that is folded to ASCII.
const (
	emDash       = "—"
	enDash       = "–"
	figureDash   = "‒"
	ellipsis     = "..."
	ellipsisChar = "…"
)

var (
	// ErrEmpty indicates a prompt that is blank after normalization.
	ErrEmpty = errors.New("prompt cannot be empty")
	// ErrTooLong indicates a prompt over MaxBytes.
	ErrTooLong = errors.New("prompt too long")
)

var (
	whitespacePattern = regexp.MustCompile(`\s+`)
	punctuationFolder = strings.NewReplacer(
		emDash, "-",
		enDash, "-",
		figureDash, "-",
		ellipsisChar, ellipsis,
		"“", `"`, "”", `"`,
		"‘", "'", "’", "'",
	)
)

// Normalize drops control characters, folds typographic quotes and dashes to
// ASCII and collapses every whitespace run into one space.
func Normalize(text string) string {
	text = strings.Map(func(char rune) rune {
		if unicode.IsControl(char) && !unicode.IsSpace(char) {
			return -1
		}

		return char
	}, text)

	text = punctuationFolder.Replace(text)
	text = whitespacePattern.ReplaceAllString(text, " ")

	return strings.TrimSpace(text)
}

// Parse normalizes raw prompt bytes and rejects blank or oversized prompts.
func Parse(data []byte) (string, error) {
	text := Normalize(string(data))

	err := Validate(text)
	if err != nil {
		return "", err
	}

	return text, nil
}

// Validate checks an already normalized prompt against MaxBytes.
func Validate(text string) error {
	return ValidateWithin(text, MaxBytes)
}

// ValidateWithin checks an already normalized prompt against limit bytes.
// A non-positive limit accepts any length.
func ValidateWithin(text string, limit int) error {
	if text == "" {
		return ErrEmpty
	}

	if limit > 0 && len(text) > limit {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrTooLong, len(text), limit)
	}

	return nil
}

// Package core defines the core business logic and interfaces for the music service.
package core

import (
	"context"
	"time"
)

// Presence is the tagged result of an existence check against a remote namespace.
type Presence int

const (
	// PresenceCheckFailed means the store could not answer; the key may or may not exist.
	PresenceCheckFailed Presence = iota
	// PresenceNotFound means the key is free.
	PresenceNotFound
	// PresenceFound means the key is taken.
	PresenceFound
)

// String implements fmt.Stringer.
func (p Presence) String() string {
	switch p {
	case PresenceFound:
		return "found"
	case PresenceNotFound:
		return "not-found"
	case PresenceCheckFailed:
		return "check-failed"
	default:
		return "unknown"
	}
}

// Audio is interleaved PCM in the range [-1, 1].
type Audio struct {
	Samples    []float32
	SampleRate int
	Channels   int
}

// Duration returns the playing time of the audio.
func (a *Audio) Duration() time.Duration {
	if a == nil || a.SampleRate <= 0 || a.Channels <= 0 {
		return 0
	}

	frames := len(a.Samples) / a.Channels

	return time.Duration(frames) * time.Second / time.Duration(a.SampleRate)
}

// Generator turns a prompt into audio using a pretrained model.
type Generator interface {
	Generate(ctx context.Context, prompt string, durationSeconds int) (*Audio, error)
}

// AudioWriter persists audio to a local file.
type AudioWriter interface {
	Write(path string, audio *Audio) error
}

// ObjectInfo describes one object in a remote namespace.
type ObjectInfo struct {
	Key      string
	Size     int64
	Modified time.Time
}

// ObjectStore is the remote namespace tracks are published into.
type ObjectStore interface {
	Stat(ctx context.Context, key string) (Presence, error)
	UploadFile(ctx context.Context, key, localPath string) error
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	URL(key string) string
}

// BlobStore defines the interface for interacting with a key-value blob store.
type BlobStore interface {
	Download(ctx context.Context, key string) ([]byte, error)
	Upload(ctx context.Context, key string, data []byte) error
}

// Publication is the result of one successful publish.
type Publication struct {
	Prompt    string
	Base      string
	Name      string
	Key       string
	LocalPath string
	Locator   string
}

// Track is a published artifact as seen through a listing.
type Track struct {
	Key      string
	Locator  string
	Size     int64
	Modified time.Time
}

// Publisher runs one generate, name and upload cycle.
type Publisher interface {
	Publish(ctx context.Context, prompt string) (*Publication, error)
}

// TrackLister lists published tracks.
type TrackLister interface {
	List(ctx context.Context) ([]Track, error)
}

// Package publisher runs the generate, name, write and upload cycle that turns
// a prompt into a published track.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/book-expert/logger"

	"github.com/book-expert/automuse/internal/core"
	"github.com/book-expert/automuse/internal/fsutil"
	"github.com/book-expert/automuse/internal/naming"
)

const defaultOutputDir = "outputs"

// Log formats.
const (
	logFmtGenerating = "Generating %ds of music for prompt: '%s'"
	logFmtGenerated  = "Generated %s of audio for prompt '%s' in %s"
	logFmtSaved      = "Saved locally to %s (%s)"
	logFmtUploading  = "Uploading %s as %s"
	logFmtPublished  = "Published %s"
	logFmtUploadKept = "Upload failed, local artifact kept at %s for retry: %v"
)

var (
	// ErrGeneratorNil indicates a missing generation capability.
	ErrGeneratorNil = errors.New("generator cannot be nil")
	// ErrWriterNil indicates a missing audio writer.
	ErrWriterNil = errors.New("audio writer cannot be nil")
	// ErrStoreNil indicates a missing object store.
	ErrStoreNil = errors.New("object store cannot be nil")
	// ErrLoggerNil indicates a missing logger.
	ErrLoggerNil = errors.New("logger cannot be nil")
	// ErrNotAudioFile indicates an upload-only request for a non-audio file.
	ErrNotAudioFile = errors.New("not an audio file")
)

// Options configures a Publisher.
type Options struct {
	OutputDir       string
	Prefix          string
	Extension       string
	DurationSeconds int
	MaxAttempts     int
	// SerializePerBase holds a per-base-name lock from name resolution through
	// upload so that concurrent publishes of one prompt get distinct names.
	SerializePerBase bool
}

// Publisher is built once at startup and shared by every entry point.
type Publisher struct {
	generator       core.Generator
	writer          core.AudioWriter
	store           core.ObjectStore
	namespace       Namespace
	outputDir       string
	durationSeconds int
	maxAttempts     int
	locks           *keyedMutex
	log             *logger.Logger
}

// New creates a Publisher.
func New(
	generator core.Generator,
	writer core.AudioWriter,
	store core.ObjectStore,
	opts Options,
	log *logger.Logger,
) (*Publisher, error) {
	switch {
	case generator == nil:
		return nil, ErrGeneratorNil
	case writer == nil:
		return nil, ErrWriterNil
	case store == nil:
		return nil, ErrStoreNil
	case log == nil:
		return nil, ErrLoggerNil
	}

	outputDir := opts.OutputDir
	if outputDir == "" {
		outputDir = defaultOutputDir
	}

	var locks *keyedMutex
	if opts.SerializePerBase {
		locks = newKeyedMutex()
	}

	return &Publisher{
		generator:       generator,
		writer:          writer,
		store:           store,
		namespace:       NewNamespace(opts.Prefix, opts.Extension),
		outputDir:       outputDir,
		durationSeconds: opts.DurationSeconds,
		maxAttempts:     opts.MaxAttempts,
		locks:           locks,
		log:             log,
	}, nil
}

// Namespace returns the namespace tracks are published into.
func (p *Publisher) Namespace() Namespace {
	return p.namespace
}

// Publish generates a track for prompt and uploads it under the first free
// name derived from the prompt. Generation and local write failures are
// returned as *core.GenerationError and never reach the store; upload failures
// are returned as *core.UploadError and leave the local file in place.
// Name resolution errors are returned unclassified.
func (p *Publisher) Publish(ctx context.Context, prompt string) (*core.Publication, error) {
	p.log.Info(logFmtGenerating, p.durationSeconds, prompt)

	started := time.Now()

	track, err := p.generator.Generate(ctx, prompt, p.durationSeconds)
	if err != nil {
		return nil, &core.GenerationError{Prompt: prompt, Err: err}
	}

	p.log.Info(logFmtGenerated, track.Duration(), prompt, time.Since(started).Round(time.Millisecond))

	base := naming.Sanitize(prompt)

	if p.locks != nil {
		unlock := p.locks.Lock(base)
		defer unlock()
	}

	stem, err := naming.Resolve(ctx, base, p.existsLocallyOrRemotely, p.maxAttempts)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve a name for '%s': %w", base, err)
	}

	publication := &core.Publication{
		Prompt:    prompt,
		Base:      base,
		Name:      p.namespace.Filename(stem),
		Key:       p.namespace.Key(stem),
		LocalPath: filepath.Join(p.outputDir, p.namespace.Filename(stem)),
		Locator:   "",
	}

	err = p.writer.Write(publication.LocalPath, track)
	if err != nil {
		return nil, &core.GenerationError{
			Prompt: prompt,
			Err:    fmt.Errorf("failed to write '%s': %w", publication.LocalPath, err),
		}
	}

	p.log.Info(logFmtSaved, publication.LocalPath, fileSize(publication.LocalPath))

	return p.upload(ctx, publication)
}

// UploadFile publishes an existing local file without regenerating it, using
// the sanitized file name as the base name. This is the recovery path after
// an *core.UploadError.
func (p *Publisher) UploadFile(ctx context.Context, localPath string) (*core.Publication, error) {
	if !fsutil.IsAudioFile(localPath) {
		return nil, fmt.Errorf("%w: %s", ErrNotAudioFile, localPath)
	}

	_, err := os.Stat(localPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat '%s': %w", localPath, err)
	}

	base := naming.Sanitize(fsutil.Stem(localPath))

	if p.locks != nil {
		unlock := p.locks.Lock(base)
		defer unlock()
	}

	stem, err := naming.Resolve(ctx, base, p.exists, p.maxAttempts)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve a name for '%s': %w", base, err)
	}

	publication := &core.Publication{
		Prompt:    "",
		Base:      base,
		Name:      p.namespace.Filename(stem),
		Key:       p.namespace.Key(stem),
		LocalPath: localPath,
		Locator:   "",
	}

	return p.upload(ctx, publication)
}

// UploadLatest publishes the most recently modified track in the output directory.
func (p *Publisher) UploadLatest(ctx context.Context) (*core.Publication, error) {
	latest, err := fsutil.LatestFile(p.outputDir, p.namespace.Extension)
	if err != nil {
		return nil, fmt.Errorf("failed to find a track to upload: %w", err)
	}

	return p.UploadFile(ctx, latest)
}

// List returns every published track in the namespace.
func (p *Publisher) List(ctx context.Context) ([]core.Track, error) {
	objects, err := p.store.List(ctx, p.namespace.Prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list tracks: %w", err)
	}

	tracks := make([]core.Track, 0, len(objects))

	for _, object := range objects {
		if !p.namespace.Holds(object.Key) {
			continue
		}

		tracks = append(tracks, core.Track{
			Key:      object.Key,
			Locator:  p.store.URL(object.Key),
			Size:     object.Size,
			Modified: object.Modified,
		})
	}

	return tracks, nil
}

func (p *Publisher) exists(ctx context.Context, stem string) (core.Presence, error) {
	return p.store.Stat(ctx, p.namespace.Key(stem))
}

// existsLocallyOrRemotely also treats a stem as taken while its local file is
// still on disk, so a kept artifact from a failed upload is never overwritten.
func (p *Publisher) existsLocallyOrRemotely(ctx context.Context, stem string) (core.Presence, error) {
	localPath := filepath.Join(p.outputDir, p.namespace.Filename(stem))

	_, err := os.Stat(localPath)
	if err == nil {
		return core.PresenceFound, nil
	}

	if !errors.Is(err, os.ErrNotExist) {
		return core.PresenceCheckFailed, fmt.Errorf("failed to stat '%s': %w", localPath, err)
	}

	return p.exists(ctx, stem)
}

func (p *Publisher) upload(ctx context.Context, publication *core.Publication) (*core.Publication, error) {
	p.log.Info(logFmtUploading, publication.LocalPath, publication.Key)

	err := p.store.UploadFile(ctx, publication.Key, publication.LocalPath)
	if err != nil {
		p.log.Warn(logFmtUploadKept, publication.LocalPath, err)

		return nil, &core.UploadError{Key: publication.Key, LocalPath: publication.LocalPath, Err: err}
	}

	publication.Locator = p.store.URL(publication.Key)
	p.log.Info(logFmtPublished, publication.Locator)

	return publication, nil
}

func fileSize(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		return "size unknown"
	}

	return fsutil.FormatFileSize(info.Size())
}

// String renders options for startup logs.
func (o Options) String() string {
	return fmt.Sprintf("output_dir=%s prefix=%s extension=%s duration=%ds max_attempts=%d serialize=%t",
		o.OutputDir, o.Prefix, o.Extension, o.DurationSeconds, o.MaxAttempts, o.SerializePerBase)
}

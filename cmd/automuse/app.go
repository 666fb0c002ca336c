package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/book-expert/logger"
	"github.com/nats-io/nats.go"

	"github.com/book-expert/automuse/internal/audio"
	"github.com/book-expert/automuse/internal/config"
	"github.com/book-expert/automuse/internal/core"
	"github.com/book-expert/automuse/internal/generator"
	"github.com/book-expert/automuse/internal/objectstore"
	"github.com/book-expert/automuse/internal/publisher"
)

const (
	bootstrapLogFile = "automuse-bootstrap.log"
	serviceLogFile   = "automuse.log"
)

var errNATSDisabled = errors.New("nats is not configured")

// app is the capability bundle every command runs against. It is built once
// per process and closed on exit.
type app struct {
	cfg            *config.Config
	log            *logger.Logger
	natsConnection *nats.Conn
	jetstream      nats.JetStreamContext
	publisher      *publisher.Publisher
}

func setupLogger(logPath, fileName string) (*logger.Logger, error) {
	log, err := logger.New(logPath, fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger in %s: %w", logPath, err)
	}

	return log, nil
}

// loadConfig reads configPath when set and falls back to the central
// configurator otherwise.
func loadConfig(configPath string, log *logger.Logger) (*config.Config, error) {
	if configPath != "" {
		log.Info("Loading configuration from %s", configPath)

		return config.LoadFile(configPath)
	}

	return config.Load(log)
}

// bootstrap creates a temporary logger, loads the configuration and then
// switches to the logger configured in paths.base_logs_dir.
func bootstrap(configPath string) (*config.Config, *logger.Logger, error) {
	bootstrapLog, err := setupLogger(os.TempDir(), bootstrapLogFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create bootstrap logger: %w", err)
	}

	defer func() { _ = bootstrapLog.Close() }()

	bootstrapLog.Info("Bootstrap logger created.")

	cfg, err := loadConfig(configPath, bootstrapLog)
	if err != nil {
		bootstrapLog.Error("Failed to load configuration: %v", err)

		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	bootstrapLog.Info("Configuration loaded successfully.")

	finalLog, err := setupLogger(cfg.Paths.BaseLogsDir, serviceLogFile)
	if err != nil {
		bootstrapLog.Error("Failed to create final logger: %v", err)

		return nil, nil, fmt.Errorf("failed to create final logger: %w", err)
	}

	return cfg, finalLog, nil
}

// newApp builds the full capability bundle from the configuration.
func newApp(ctx context.Context, configPath string) (*app, error) {
	cfg, log, err := bootstrap(configPath)
	if err != nil {
		return nil, err
	}

	application := &app{
		cfg:            cfg,
		log:            log,
		natsConnection: nil,
		jetstream:      nil,
		publisher:      nil,
	}

	err = application.wire(ctx)
	if err != nil {
		application.close()

		return nil, err
	}

	return application, nil
}

func (a *app) wire(ctx context.Context) error {
	if a.cfg.NeedsNATS() {
		err := a.connectNATS()
		if err != nil {
			return err
		}
	}

	store, err := a.buildStore(ctx)
	if err != nil {
		return err
	}

	gen, err := a.buildGenerator()
	if err != nil {
		return err
	}

	opts := publisher.Options{
		OutputDir:        a.cfg.Publisher.OutputDir,
		Prefix:           a.cfg.Store.Prefix,
		Extension:        a.cfg.Store.Extension,
		DurationSeconds:  a.cfg.Generator.DurationSeconds,
		MaxAttempts:      a.cfg.Publisher.MaxAttempts,
		SerializePerBase: a.cfg.Publisher.SerializePerBase,
	}

	pub, err := publisher.New(gen, audio.NewWAVWriter(*a.cfg.Publisher.Normalize), store, opts, a.log)
	if err != nil {
		return fmt.Errorf("failed to create publisher: %w", err)
	}

	a.publisher = pub
	a.log.Info("Publisher ready: backend=%s %s", a.cfg.Store.Backend, opts)

	return nil
}

func (a *app) connectNATS() error {
	natsConnection, err := nats.Connect(a.cfg.NATS.URL, nats.Name("automuse"))
	if err != nil {
		return fmt.Errorf("failed to connect to NATS at %s: %w", a.cfg.NATS.URL, err)
	}

	jetstreamContext, err := natsConnection.JetStream()
	if err != nil {
		natsConnection.Close()

		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	a.natsConnection = natsConnection
	a.jetstream = jetstreamContext
	a.log.Info("Connected to NATS at %s", a.cfg.NATS.URL)

	return nil
}

func (a *app) buildStore(ctx context.Context) (core.ObjectStore, error) {
	switch a.cfg.Store.Backend {
	case config.BackendNATS:
		store, err := objectstore.NewNats(a.jetstream, a.cfg.NATS.TrackBucket)
		if err != nil {
			return nil, fmt.Errorf("failed to open track bucket: %w", err)
		}

		return store, nil
	default:
		store, err := objectstore.NewS3FromConfig(ctx, objectstore.S3Options{
			Bucket:   a.cfg.Store.Bucket,
			Region:   a.cfg.Store.Region,
			Endpoint: a.cfg.Store.Endpoint,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 store: %w", err)
		}

		return store, nil
	}
}

func (a *app) buildGenerator() (core.Generator, error) {
	if a.cfg.Generator.Mode == config.ModeSubprocess {
		gen, err := generator.NewSubprocess(a.cfg.Generator.BinaryPath, a.cfg.Generator.Model, a.log)
		if err != nil {
			return nil, fmt.Errorf("failed to create subprocess generator: %w", err)
		}

		return gen, nil
	}

	return generator.NewHTTPClient(a.cfg.Generator.ServiceURL, a.cfg.Generator.Model, a.cfg.GeneratorTimeout()), nil
}

// promptStore opens the bucket the request worker reads prompts from.
func (a *app) promptStore() (core.BlobStore, error) {
	if a.jetstream == nil {
		return nil, errNATSDisabled
	}

	store, err := objectstore.NewNats(a.jetstream, a.cfg.NATS.PromptBucket)
	if err != nil {
		return nil, fmt.Errorf("failed to open prompt bucket: %w", err)
	}

	return store, nil
}

func (a *app) close() {
	if a.natsConnection != nil {
		a.natsConnection.Close()
	}

	closeErr := a.log.Close()
	if closeErr != nil {
		fmt.Fprintf(os.Stderr, "error closing logger: %v\n", closeErr)
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/book-expert/automuse/internal/clock"
	"github.com/book-expert/automuse/internal/core"
	"github.com/book-expert/automuse/internal/fsutil"
	"github.com/book-expert/automuse/internal/scheduler"
	"github.com/book-expert/automuse/internal/server"
	"github.com/book-expert/automuse/internal/worker"
)

var (
	success = color.New(color.FgGreen)
	detail  = color.New(color.Faint)
)

var errNoHealthCheck = errors.New("generator does not support health checks")

// healthChecker is implemented by generators that run as a separate service.
type healthChecker interface {
	HealthCheck(ctx context.Context) error
}

func configPath(cmd *cobra.Command) string {
	path, _ := cmd.Flags().GetString("config")

	return path
}

// withApp builds the capability bundle, runs fn and closes the bundle.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, application *app) error) error {
	ctx := cmd.Context()

	application, err := newApp(ctx, configPath(cmd))
	if err != nil {
		return err
	}

	defer application.close()

	return fn(ctx, application)
}

// ServeCmd returns the serve command.
func ServeCmd() *cobra.Command {
	var withLoop bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, plus the publish loop and NATS worker when configured",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, application *app) error {
				if cmd.Flags().Changed("loop") {
					application.cfg.Scheduler.Enabled = withLoop
				}

				return serve(ctx, application)
			})
		},
	}

	cmd.Flags().BoolVar(&withLoop, "loop", false, "also run the publish loop (overrides scheduler.enabled)")

	return cmd
}

func serve(ctx context.Context, application *app) error {
	cfg := application.cfg

	srv, err := server.New(application.publisher, application.publisher, server.Config{
		ListenAddress:  cfg.Server.ListenAddress,
		DefaultPrompt:  cfg.Server.DefaultPrompt,
		AllowedOrigin:  cfg.Server.AllowedOrigin,
		MaxPromptBytes: cfg.Server.MaxPromptBytes,
	}, application.log)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	var (
		sched      *scheduler.Scheduler
		natsWorker *worker.NatsWorker
	)

	if cfg.Scheduler.Enabled {
		sched, err = newScheduler(application, cfg.Scheduler.Prompt, cfg.Interval(), true)
		if err != nil {
			return err
		}
	}

	if cfg.NATS.RequestSubject != "" {
		natsWorker, err = newWorker(application)
		if err != nil {
			return err
		}
	}

	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		return srv.Run(egCtx)
	})

	if sched != nil {
		eg.Go(func() error {
			return sched.Run(egCtx)
		})
	}

	if natsWorker != nil {
		eg.Go(func() error {
			return natsWorker.Run(egCtx)
		})
	}

	application.log.System("automuse serving on %s (loop=%t, worker subject=%q)",
		cfg.Server.ListenAddress, cfg.Scheduler.Enabled, cfg.NATS.RequestSubject)

	err = eg.Wait()
	if err != nil {
		return fmt.Errorf("service stopped: %w", err)
	}

	return nil
}

func newScheduler(application *app, prompt string, interval time.Duration, runImmediately bool) (*scheduler.Scheduler, error) {
	sched, err := scheduler.New(application.publisher, scheduler.Config{
		Interval:       interval,
		Prompt:         prompt,
		RunImmediately: runImmediately,
	}, clock.Real(), application.log)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	return sched, nil
}

func newWorker(application *app) (*worker.NatsWorker, error) {
	prompts, err := application.promptStore()
	if err != nil {
		return nil, err
	}

	natsWorker, err := worker.NewNatsWorker(
		application.natsConnection,
		application.cfg.NATS.RequestSubject,
		prompts,
		application.publisher,
		application.cfg.HandleTimeout(),
		application.log,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker: %w", err)
	}

	return natsWorker, nil
}

// LoopCmd returns the loop command.
func LoopCmd() *cobra.Command {
	var (
		prompt    string
		interval  time.Duration
		waitFirst bool
	)

	cmd := &cobra.Command{
		Use:   "loop",
		Short: "Publish a track for a fixed prompt on a fixed interval until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, application *app) error {
				if prompt == "" {
					prompt = application.cfg.Scheduler.Prompt
				}

				if interval == 0 {
					interval = application.cfg.Interval()
				}

				sched, err := newScheduler(application, prompt, interval, !waitFirst)
				if err != nil {
					return err
				}

				return sched.Run(ctx)
			})
		},
	}

	cmd.Flags().StringVarP(&prompt, "prompt", "p", "", "prompt to publish (default scheduler.prompt)")
	cmd.Flags().DurationVarP(&interval, "interval", "i", 0, "wait between cycles (default scheduler.interval_seconds)")
	cmd.Flags().BoolVar(&waitFirst, "wait-first", false, "wait one interval before the first cycle")

	return cmd
}

// GenerateCmd returns the generate command.
func GenerateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "generate [prompt...]",
		Short: "Generate and publish a single track",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, application *app) error {
				prompt := strings.TrimSpace(strings.Join(args, " "))
				if prompt == "" {
					prompt = application.cfg.Scheduler.Prompt
				}

				sched, err := newScheduler(application, prompt, application.cfg.Interval(), true)
				if err != nil {
					return err
				}

				outcome := sched.RunOnce(ctx)
				if outcome.Err != nil {
					printRetryHint(cmd.ErrOrStderr(), outcome.Err)

					return outcome.Err
				}

				printPublication(cmd.OutOrStdout(), outcome.Publication, outcome.Elapsed)

				return nil
			})
		},
	}
}

// UploadCmd returns the upload command.
func UploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload [file]",
		Short: "Publish an existing local track, or the newest one in the output directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, application *app) error {
				var (
					publication *core.Publication
					err         error
				)

				if len(args) == 1 {
					publication, err = application.publisher.UploadFile(ctx, args[0])
				} else {
					publication, err = application.publisher.UploadLatest(ctx)
				}

				if err != nil {
					printRetryHint(cmd.ErrOrStderr(), err)

					return err
				}

				printPublication(cmd.OutOrStdout(), publication, 0)

				return nil
			})
		},
	}
}

// ListCmd returns the list command.
func ListCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List published tracks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, application *app) error {
				tracks, err := application.publisher.List(ctx)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()

				if len(tracks) == 0 {
					_, _ = detail.Fprintln(out, "No tracks published yet.")

					return nil
				}

				for _, track := range tracks {
					if verbose {
						_, _ = fmt.Fprintf(out, "%s  %s\n", track.Locator,
							detail.Sprintf("(%s)", fsutil.FormatFileSize(track.Size)))

						continue
					}

					_, _ = fmt.Fprintln(out, track.Locator)
				}

				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "show track sizes")

	return cmd
}

// HealthCmd returns the health command.
func HealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the music generation service is reachable",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := bootstrap(configPath(cmd))
			if err != nil {
				return err
			}

			application := &app{
				cfg:            cfg,
				log:            log,
				natsConnection: nil,
				jetstream:      nil,
				publisher:      nil,
			}
			defer application.close()

			gen, err := application.buildGenerator()
			if err != nil {
				return err
			}

			checker, ok := gen.(healthChecker)
			if !ok {
				return fmt.Errorf("%w: mode %s", errNoHealthCheck, cfg.Generator.Mode)
			}

			err = checker.HealthCheck(cmd.Context())
			if err != nil {
				return fmt.Errorf("%s is unhealthy: %w", cfg.Generator.ServiceURL, err)
			}

			_, _ = success.Fprintf(cmd.OutOrStdout(), "✓ %s is healthy\n", cfg.Generator.ServiceURL)

			return nil
		},
	}
}

// ConfigCmd returns the config command.
func ConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := bootstrap(configPath(cmd))
			if err != nil {
				return err
			}

			defer func() { _ = log.Close() }()

			data, err := toml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("failed to encode configuration: %w", err)
			}

			_, err = cmd.OutOrStdout().Write(data)
			if err != nil {
				return fmt.Errorf("failed to write configuration: %w", err)
			}

			return nil
		},
	}
}

func printPublication(out io.Writer, publication *core.Publication, elapsed time.Duration) {
	_, _ = success.Fprintf(out, "✓ Published %s\n", publication.Locator)
	_, _ = detail.Fprintf(out, "  key: %s\n  local: %s\n", publication.Key, publication.LocalPath)

	if elapsed > 0 {
		_, _ = detail.Fprintf(out, "  took: %s\n", elapsed.Round(time.Millisecond))
	}
}

// printRetryHint points at the upload command when a publish failed after
// the track was written locally.
func printRetryHint(out io.Writer, err error) {
	var uploadErr *core.UploadError

	if errors.As(err, &uploadErr) {
		_, _ = detail.Fprintf(out, "local file kept; retry with: automuse upload %s\n", uploadErr.LocalPath)
	}
}

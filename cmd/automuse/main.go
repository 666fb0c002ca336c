// Command automuse generates music from text prompts and publishes the
// tracks to an object store, on request or on a fixed interval.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// RootCmd returns the automuse command tree.
func RootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "automuse",
		Short: "Generate music from prompts and publish it",
		Long: `automuse turns text prompts into music tracks with a MusicGen model and
publishes each track under a collision-free name in S3 or a NATS object store.

It runs as an HTTP API (serve), as a fixed-interval publisher (loop), or as
one-shot commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringP("config", "c", "",
		"path to a TOML config file (default: the project configurator)")

	rootCmd.AddCommand(ServeCmd())
	rootCmd.AddCommand(LoopCmd())
	rootCmd.AddCommand(GenerateCmd())
	rootCmd.AddCommand(UploadCmd())
	rootCmd.AddCommand(ListCmd())
	rootCmd.AddCommand(HealthCmd())
	rootCmd.AddCommand(ConfigCmd())

	return rootCmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := RootCmd().ExecuteContext(ctx)

	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

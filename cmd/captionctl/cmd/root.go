// Package cmd implements captionctl, the operator CLI for the live caption
// service.
package cmd

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	serverURL string
	timeout   time.Duration
	verbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "captionctl",
	Short: "Operate the live caption service",
	Long: `captionctl talks to a running live caption service and runs parts of
the caption pipeline locally.

Commands:
  history   - list and delete committed captions
  annotate  - show the emoji chosen for a piece of text
  replay    - feed a transcript file through a local caption pipeline
  stream    - start an utterance and upload a WAV file as audio
  watch     - follow caption events on Kafka
  status    - check HTTP readiness and gRPC health`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		level := zerolog.WarnLevel
		if verbose {
			level = zerolog.DebugLevel
		}
		zerolog.SetGlobalLevel(level)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", envOr("CAPTION_SERVER", "http://localhost:8080"), "Caption service HTTP address")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "Request timeout")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

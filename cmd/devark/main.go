// Package main is the devark CLI: a local sidecar that observes AI coding
// assistants, scores prompts, and turns sessions into coaching and
// progress summaries.
package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/DevArk-AI/devark/internal/config"
)

// Version is set at build time via ldflags.
var Version = "dev"

var debug bool

var rootCmd = &cobra.Command{
	Use:   "devark",
	Short: "Developer productivity sidecar for AI coding assistants",
	Long: `devark observes Claude Code and Cursor sessions on this machine,
scores every prompt, suggests follow-ups, and keeps a local history of
your work with AI coding assistants.`,
	SilenceUsage:     true,
	PersistentPreRun: setupLogging,
}

func setupLogging(cmd *cobra.Command, args []string) {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true})

	level := zerolog.InfoLevel
	if parsed, err := zerolog.ParseLevel(config.Get().LogLevel); err == nil && parsed != zerolog.NoLevel {
		level = parsed
	}
	if debug {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
}

func main() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

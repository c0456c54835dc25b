package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/nanopdf/internal/cli"
	"github.com/jackzampolin/nanopdf/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
	logLevel     string
	logFormat    string
)

var rootCmd = &cobra.Command{
	Use:   "nanopdf",
	Short: "Edit and extend PDF pages with generative image models",
	Long: `nanopdf rewrites PDF pages in place and inserts newly generated pages,
using image generation models steered by per-page prompts.

Each targeted page is rasterized and sent to the backend together with
optional style reference pages and document text context; the generated
image comes back as a fresh single-page PDF that replaces the original
page or is inserted at the requested position.`,
	Version:      version.GitRelease,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.nanopdf/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "nanopdf home directory (default: ~/.nanopdf)",
	)
	rootCmd.PersistentFlags().StringVar(
		&outputFormat, "output-format", "yaml", "report output format: yaml or json",
	)
	rootCmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "info", "log level: debug, info, warn, error",
	)
	rootCmd.PersistentFlags().StringVar(
		&logFormat, "log-format", "text", "log format: text or json",
	)

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		cli.SetOutputFormat(outputFormat)
		slog.SetDefault(newLogger())
	}

	rootCmd.AddCommand(versionCmd)
}

func newLogger() *slog.Logger {
	var level slog.Level
	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if logFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

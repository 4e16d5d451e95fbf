package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string
var logLevel string

var rootCmd = &cobra.Command{
	Use:   "qgate",
	Short: "Quality gate pipeline orchestrator",
	Long: "Qgate runs a project's QA pipeline: it starts the auxiliary services the " +
		"tests need, executes the configured stages in order, extracts metrics from " +
		"their output, and aggregates everything into a pass/fail quality-gate report.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
}

func setupLogger() *slog.Logger {
	level := slog.LevelInfo
	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// Package main provides the aces binary entry point.
// Aces prepares and inspects Earth Engine TFRecord training data for
// agricultural segmentation models and validates the accompanying JATS
// manuscript submissions.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/servir/aces/config"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "aces"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// rootFlags are the persistent flags shared by all commands.
type rootFlags struct {
	configPath string
	logLevel   string
}

func rootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Remote-sensing training data toolkit",
		Long: `Aces prepares, inspects, and augments Earth Engine-exported TFRecord
training data for agricultural segmentation models, and validates the
accompanying JATS manuscript submissions.

It provides:
- TFRecord shard inspection, counting, and spectral-index stacking
- Confusion-matrix evaluation of segmentation outputs
- JATS manuscript integrity checks for journal submissions
- A serve mode that watches directories and stores reports in NATS KV`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(flags.logLevel)
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		paperCmd(flags),
		datasetCmd(flags),
		evaluateCmd(flags),
		serveCmd(flags),
		configCmd(flags),
		versionCmd(),
	)

	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	}
}

// setupLogging configures the default slog logger.
func setupLogging(logLevel string) {
	level := slog.LevelInfo
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadConfig loads an explicit config file, or the layered defaults.
func loadConfig(flags *rootFlags) (*config.Config, error) {
	if flags.configPath != "" {
		cfg, err := config.LoadFromFile(flags.configPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
		return cfg, nil
	}
	return config.NewLoader(slog.Default()).Load()
}

package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

func serveCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the ingest service",
		Long: `Serve watches the submissions and data directories, validates incoming
JATS manuscripts, indexes TFRecord shards into the entity store, and
exposes Prometheus metrics. It runs until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(),
				syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app := NewApp(cfg, slog.Default())
			if err := app.Start(ctx); err != nil {
				return err
			}

			slog.Info("aces service started",
				"version", Version,
				"submissions", cfg.Paper.SubmissionsDir)

			<-ctx.Done()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return app.Shutdown(shutdownCtx)
		},
	}
}

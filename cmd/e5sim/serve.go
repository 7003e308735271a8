package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/thebtf/e5sim/internal/server"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the similarity HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		log.Info().
			Str("version", Version).
			Str("model", cfg.Model.Variant).
			Msg("Starting e5sim server")

		pipeline, cleanup, err := openPipeline(cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		svc := server.NewService(Version, server.Config{
			Addr:           cfg.Addr(),
			MaxBodyBytes:   cfg.Server.MaxBodyBytes,
			RequestTimeout: cfg.Server.RequestTimeout,
		}, pipeline)
		if err := svc.Start(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			<-gctx.Done()
			log.Info().Msg("Received shutdown signal")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return svc.Shutdown(shutdownCtx)
		})

		if err := g.Wait(); err != nil {
			log.Error().Err(err).Msg("Shutdown error")
			return err
		}
		log.Info().Msg("Server shutdown complete")
		return nil
	},
}

package main

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/thebtf/e5sim/internal/config"
	"github.com/thebtf/e5sim/internal/embedding"
	"github.com/thebtf/e5sim/internal/store"
)

// openPipeline loads the model and, when a cache DSN is configured, the embedding store.
// The returned cleanup closes both.
func openPipeline(cfg *config.Config) (*embedding.Pipeline, func(), error) {
	opts, err := cfg.PipelineOptions()
	if err != nil {
		return nil, nil, err
	}

	var (
		cache    *store.Store
		pipeOpts []embedding.Option
	)
	if cfg.Cache.DSN != "" {
		cache, err = store.Open(store.Config{DSN: cfg.Cache.DSN, MaxConns: cfg.Cache.MaxConns})
		if err != nil {
			return nil, nil, fmt.Errorf("open embedding cache: %w", err)
		}
		pipeOpts = append(pipeOpts, embedding.WithCache(cache))
	}

	pipeline, err := embedding.NewPipeline(opts, pipeOpts...)
	if err != nil {
		if cache != nil {
			_ = cache.Close()
		}
		return nil, nil, err
	}

	cleanup := func() {
		if err := pipeline.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close pipeline")
		}
		if cache != nil {
			if err := cache.Close(); err != nil {
				log.Warn().Err(err).Msg("Failed to close embedding cache")
			}
		}
	}
	return pipeline, cleanup, nil
}

// Package server exposes the similarity pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/e5sim/internal/embedding"
)

// Scorer is the subset of embedding.Pipeline the API needs.
type Scorer interface {
	Model() embedding.ModelConfig
	ComputeSimilarity(text1, text2 string) (float32, error)
	ScorePassages(query string, passages []string) []embedding.PassageScore
	Embed(ctx context.Context, text string) (embedding.Vector, error)
}

// Config holds HTTP server settings.
type Config struct {
	Addr           string
	MaxBodyBytes   int64
	RequestTimeout time.Duration
}

// Service is the HTTP front end of the similarity pipeline.
type Service struct {
	version   string
	config    Config
	scorer    Scorer
	router    *chi.Mux
	server    *http.Server
	startTime time.Time
	wg        sync.WaitGroup
}

// NewService creates a service with routes and middleware installed.
func NewService(version string, cfg Config, scorer Scorer) *Service {
	s := &Service{
		version:   version,
		config:    cfg,
		scorer:    scorer,
		router:    chi.NewRouter(),
		startTime: time.Now(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Service) Handler() http.Handler {
	return s.router
}

// setupMiddleware configures HTTP middleware.
func (s *Service) setupMiddleware() {
	s.router.Use(RequestID)
	s.router.Use(RequestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RealIP)
	if s.config.RequestTimeout > 0 {
		s.router.Use(middleware.Timeout(s.config.RequestTimeout))
	}
	if s.config.MaxBodyBytes > 0 {
		s.router.Use(MaxBodySize(s.config.MaxBodyBytes))
	}
}

// setupRoutes configures HTTP routes.
func (s *Service) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/api/health", s.handleHealth)
	s.router.Get("/api/model", s.handleModel)

	s.router.Post("/api/similarity", s.handleSimilarity)
	s.router.Post("/api/score", s.handleScore)
	s.router.Post("/api/embed", s.handleEmbed)
}

// Start begins listening in the background.
func (s *Service) Start() error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return err
	}

	s.server = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server error")
		}
	}()

	log.Info().
		Str("addr", ln.Addr().String()).
		Str("model", s.scorer.Model().Name).
		Msg("Similarity API started")
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Service) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	err := s.server.Shutdown(ctx)
	s.wg.Wait()

	log.Info().Dur("uptime", time.Since(s.startTime)).Msg("Similarity API stopped")
	return err
}

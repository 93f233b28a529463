// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api exposes the story engine over a small HTTP control API.
package api

import (
	"net/http"

	"github.com/ManuGH/storyreel/internal/api/middleware"
	"github.com/ManuGH/storyreel/internal/cache"
	"github.com/ManuGH/storyreel/internal/health"
	xglog "github.com/ManuGH/storyreel/internal/log"
	"github.com/ManuGH/storyreel/internal/playback"
	"github.com/ManuGH/storyreel/internal/queue"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Engine is the part of the viewer the API drives.
type Engine interface {
	Summaries() []queue.UserSummary
	Snapshot() playback.Snapshot
	Open(userID string) error
	Next()
	Previous()
	SetPaused(paused bool)
	Dismiss()
	Store() *cache.Store
}

// Config configures the API server.
type Config struct {
	// Token, when set, is required as a bearer token on mutating routes.
	Token string
	// RateLimit is requests per minute per client IP. Zero disables it.
	RateLimit int
	// Tracing enables server spans.
	Tracing bool
	// Version is reported by /healthz.
	Version string
	// Health serves /healthz and /readyz. Nil selects a manager without
	// checkers.
	Health *health.Manager
}

// Server serves the control API.
type Server struct {
	engine Engine
	cfg    Config
	logger zerolog.Logger
	router *chi.Mux
}

// New builds the server and its routes.
func New(engine Engine, cfg Config) *Server {
	if cfg.Health == nil {
		cfg.Health = health.NewManager(cfg.Version)
	}
	s := &Server{
		engine: engine,
		cfg:    cfg,
		logger: xglog.WithComponent("api"),
	}
	s.router = s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() *chi.Mux {
	stack := middleware.StackConfig{
		EnableMetrics: true,
		EnableLogging: true,
		RateLimit:     s.cfg.RateLimit,
	}
	if s.cfg.Tracing {
		stack.TracingService = "storyreel.api"
	}
	r := middleware.NewRouter(stack)

	r.Get("/healthz", s.cfg.Health.ServeHealth)
	r.Get("/readyz", s.cfg.Health.ServeReady)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/state", s.handleState)
		r.Get("/users", s.handleUsers)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Post("/users/{id}/open", s.handleOpen)
			r.Post("/playback/next", s.handleNext)
			r.Post("/playback/previous", s.handlePrevious)
			r.Post("/playback/pause", s.handlePause)
			r.Post("/playback/resume", s.handleResume)
			r.Post("/playback/close", s.handleClose)

			r.Delete("/cache/{class}", s.handleCacheClear)
			r.Post("/cache/sweep", s.handleCacheSweep)
		})
	})
	return r
}

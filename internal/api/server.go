// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api exposes the job registry over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/ManuGH/loopcast/internal/api/middleware"
	"github.com/ManuGH/loopcast/internal/auth"
	"github.com/ManuGH/loopcast/internal/clock"
	"github.com/ManuGH/loopcast/internal/health"
	"github.com/ManuGH/loopcast/internal/job"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Jobs is the part of the registry the API drives.
type Jobs interface {
	Create(ctx context.Context) job.Record
	Status(id string) (job.StatusView, error)
	Statuses() []job.StatusView
	SetVideo(ctx context.Context, id, name string) (job.Record, error)
	SetThumbnail(ctx context.Context, id, name string) (job.Record, error)
	SetStreamURL(ctx context.Context, id, url string) (job.Record, error)
	SetMetadata(ctx context.Context, id string, patch job.MetadataPatch) (job.Record, error)
	SetSchedule(ctx context.Context, id string, patch job.SchedulePatch) (job.Record, error)
	SetAutoRestart(ctx context.Context, id string, enabled bool) (job.Record, error)
	Start(ctx context.Context, id string) error
	Stop(ctx context.Context, id string) error
}

// Config holds the HTTP surface settings.
type Config struct {
	APIToken      string
	UploadsDir    string
	ThumbnailsDir string

	UploadMaxBytes    int64
	ThumbnailMaxBytes int64

	MetricsEnabled bool
	TracingService string
	RateLimit      int
	RateWindow     time.Duration

	// LogPollInterval paces the server-sent log stream.
	LogPollInterval time.Duration
}

const (
	defaultThumbnailMaxBytes = 5 << 20
	defaultLogPollInterval   = time.Second
	maxJSONBody              = 1 << 20
)

// Server routes HTTP requests to the registry.
type Server struct {
	cfg    Config
	jobs   Jobs
	health *health.Manager
	clock  clock.Clock
	router chi.Router
}

// Option customises a Server.
type Option func(*Server)

// WithClock replaces the clock used to name uploads.
func WithClock(c clock.Clock) Option { return func(s *Server) { s.clock = c } }

// New builds the router. hm may be nil, in which case the health endpoints
// always report healthy.
func New(cfg Config, jobs Jobs, hm *health.Manager, opts ...Option) *Server {
	if cfg.ThumbnailMaxBytes <= 0 {
		cfg.ThumbnailMaxBytes = defaultThumbnailMaxBytes
	}
	if cfg.LogPollInterval <= 0 {
		cfg.LogPollInterval = defaultLogPollInterval
	}
	if hm == nil {
		hm = health.NewManager("")
	}
	s := &Server{cfg: cfg, jobs: jobs, health: hm, clock: clock.Real()}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := middleware.NewRouter(middleware.StackConfig{
		EnableSecurityHeaders: true,
		EnableMetrics:         s.cfg.MetricsEnabled,
		TracingService:        s.cfg.TracingService,
		EnableLogging:         true,
		RateLimit:             s.cfg.RateLimit,
		RateWindow:            s.cfg.RateWindow,
	})

	r.Get("/healthz", s.health.ServeHealth)
	r.Get("/readyz", s.health.ServeReady)
	if s.cfg.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/jobs", s.handleListJobs)
		r.Get("/jobs/{id}", s.handleGetJob)
		r.Get("/logs", s.handleLogs)
		r.Get("/logs/stream", s.handleLogStream)

		r.Group(func(r chi.Router) {
			r.Use(auth.Require(s.cfg.APIToken))
			r.Post("/jobs", s.handleCreateJob)
			r.Post("/jobs/{id}/stream", s.handleSetStream)
			r.Post("/jobs/{id}/metadata", s.handleSetMetadata)
			r.Post("/jobs/{id}/schedule", s.handleSetSchedule)
			r.Post("/jobs/{id}/autorestart", s.handleSetAutoRestart)
			r.Post("/jobs/{id}/video", s.handleUploadVideo)
			r.Post("/jobs/{id}/thumbnail", s.handleUploadThumbnail)
			r.Post("/jobs/{id}/start", s.handleStart)
			r.Post("/jobs/{id}/stop", s.handleStop)
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "method not allowed"})
	})
	return r
}

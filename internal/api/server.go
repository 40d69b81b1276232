// Daybook - Offline-first Journaling Sync Worker
// Copyright 2026 J. Holloway (daybook-hq)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/daybook-hq/daybook

// Package api is the host adapter: it exposes the worker as a local HTTP
// proxy the UI points at, plus control endpoints for the queue, the
// reconciliation drain, and status. It also holds the authoritative Router
// pointer that lifecycle activations swap in.
package api

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/daybook-hq/daybook/internal/cachestore"
	"github.com/daybook-hq/daybook/internal/config"
	"github.com/daybook-hq/daybook/internal/logging"
	"github.com/daybook-hq/daybook/internal/queue"
	"github.com/daybook-hq/daybook/internal/reconcile"
	"github.com/daybook-hq/daybook/internal/worker"
)

// Drainer is the slice of the reconciliation engine the control endpoints
// need.
type Drainer interface {
	Drain(ctx context.Context) (*reconcile.Result, error)
}

// NetworkProbe reports the last observed network failure, for the status
// endpoint.
type NetworkProbe interface {
	LastFailure() time.Time
}

// ServerDeps collects the adapter's collaborators.
type ServerDeps struct {
	Config  *config.Config
	Queue   queue.Queue
	Drainer Drainer
	Store   cachestore.Store
	Probe   NetworkProbe

	// WSHandler serves the notification WebSocket attach endpoint. Optional.
	WSHandler http.Handler
}

// Server is the HTTP adapter. It implements worker.Claimer: each lifecycle
// activation swaps the authoritative Router in atomically and advances the
// control epoch, so new requests route through the new generation without
// any restart while in-flight requests finish on the old one.
type Server struct {
	deps ServerDeps

	router atomic.Pointer[worker.Router]
	epoch  atomic.Int64

	httpServer *http.Server
}

// NewServer creates the adapter and builds its route tree.
func NewServer(deps ServerDeps) *Server {
	s := &Server{deps: deps}
	s.httpServer = &http.Server{
		Addr:              deps.Config.Server.ListenAddr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Claim implements worker.Claimer.
func (s *Server) Claim(router *worker.Router) int64 {
	s.router.Store(router)
	return s.epoch.Add(1)
}

// Epoch returns the current control epoch; zero means no generation has
// activated yet.
func (s *Server) Epoch() int64 {
	return s.epoch.Load()
}

// Handler exposes the route tree for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) routes() http.Handler {
	cfg := s.deps.Config.Server

	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization", s.deps.Config.Origin.ActionHeader},
		MaxAge:         86400,
	}))

	r.Route("/internal", func(r chi.Router) {
		if cfg.RateLimitPerMinute > 0 {
			r.Use(httprate.Limit(cfg.RateLimitPerMinute, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)))
		}

		r.Post("/sync/drain", s.handleDrain)
		r.Get("/queue", s.handleQueueList)
		r.Post("/queue", s.handleEnqueue)
		r.Delete("/queue/{tempID}", s.handleDiscard)
		r.Get("/status", s.handleStatus)
	})

	r.Get("/healthz", s.handleHealthz)
	r.Handle("/metrics", promhttp.Handler())

	if s.deps.WSHandler != nil {
		r.Get("/ws", s.deps.WSHandler.ServeHTTP)
	}

	// Catch-all proxy: everything else is an intercepted app request.
	r.HandleFunc("/*", s.handleProxy)

	return r
}

// Run starts the HTTP server and blocks until the context is canceled, then
// shuts down gracefully within the configured timeout. Designed for suture
// supervision.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", s.httpServer.Addr).Msg("http adapter listening")
		if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	timeout := s.deps.Config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		logging.Warn().Err(err).Msg("http adapter shutdown incomplete")
		return err
	}
	logging.Info().Msg("http adapter stopped")
	return ctx.Err()
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"epoch":  s.Epoch(),
	})
}

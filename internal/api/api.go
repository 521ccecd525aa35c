// Package api provides the HTTP status surface and the top-level service
// wiring for ScreenBot.
//
// The HTTP server is operational only: recruitment status, aggregate
// screening statistics, and the inbound Twilio webhook. All participant
// interaction happens over WhatsApp.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/epimex/screenbot/internal/interview"
	"github.com/epimex/screenbot/internal/messaging"
	"github.com/epimex/screenbot/internal/store"
)

// DefaultAddr is the default listen address for the status server.
const DefaultAddr = ":8080"

// Opts holds configuration options for the API server.
type Opts struct {
	Addr string
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the server listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// Server exposes the operational HTTP endpoints.
type Server struct {
	store      store.Store
	engine     *interview.Engine
	msgService messaging.Service
	httpServer *http.Server
	startedAt  time.Time
}

// NewServer creates the status server. The Twilio webhook route is only
// registered when the messaging service is webhook-driven.
func NewServer(st store.Store, engine *interview.Engine, msgService messaging.Service, opts ...Option) *Server {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}

	s := &Server{
		store:      st,
		engine:     engine,
		msgService: msgService,
		startedAt:  time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.statusHandler)
	mux.HandleFunc("/stats", s.statsHandler)
	if twilioSvc, ok := msgService.(*messaging.TwilioService); ok {
		mux.HandleFunc("/webhook/twilio", twilioSvc.WebhookHandler)
		slog.Debug("Server registered Twilio webhook route")
	}
	s.httpServer = &http.Server{Addr: cfg.Addr, Handler: mux}

	return s
}

// Start begins serving in the background. Errors other than a clean
// shutdown are reported on the returned channel.
func (s *Server) Start() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("Status server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("status server failed: %w", err)
		}
		close(errCh)
	}()
	return errCh
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	slog.Info("Status server shutting down")
	return s.httpServer.Shutdown(ctx)
}

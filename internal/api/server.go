package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"predictengine/internal/config"
)

// Server runs the status/metrics HTTP API: a JSON snapshot endpoint, a
// prometheus /metrics endpoint, and a websocket stream of engine events.
type Server struct {
	cfg      config.DashboardConfig
	provider StatusProvider
	fullCfg  config.Config
	hub      *Hub
	handlers *Handlers
	server   *http.Server
	logger   *slog.Logger
}

// NewServer creates a new status server. collector may be nil for a
// process that does not run a tick collector.
func NewServer(
	cfg config.DashboardConfig,
	mode string,
	provider StatusProvider,
	collector CollectorStatusProvider,
	fullCfg config.Config,
	logger *slog.Logger,
) *Server {
	hub := NewHub(logger)
	handlers := NewHandlers(mode, provider, collector, fullCfg, hub, logger)

	mux := http.NewServeMux()

	mux.HandleFunc("/health", handlers.HandleHealth)
	mux.HandleFunc("/api/snapshot", handlers.HandleSnapshot)
	mux.HandleFunc("/ws", handlers.HandleWebSocket)
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		cfg:      cfg,
		provider: provider,
		fullCfg:  fullCfg,
		hub:      hub,
		handlers: handlers,
		server:   server,
		logger:   logger.With("component", "api-server"),
	}
}

// Start starts the API server and hub
func (s *Server) Start() error {
	// Start WebSocket hub
	go s.hub.Run()

	// Start event consumer
	go s.consumeEvents()

	s.logger.Info("dashboard server starting", "addr", s.server.Addr)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Stop gracefully stops the server
func (s *Server) Stop() error {
	s.logger.Info("stopping dashboard server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}

// eventSource is implemented by a StatusProvider that also emits a live
// event stream; not every provider (e.g. a backtest run) has one.
type eventSource interface {
	DashboardEvents() <-chan DashboardEvent
}

// consumeEvents reads events from the engine and broadcasts them. No-ops
// when the provider does not implement eventSource.
func (s *Server) consumeEvents() {
	src, ok := s.provider.(eventSource)
	if !ok {
		return
	}
	eventsCh := src.DashboardEvents()
	if eventsCh == nil {
		return
	}

	for evt := range eventsCh {
		s.hub.BroadcastEvent(evt)
	}
}

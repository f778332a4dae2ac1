// Package api provides the embedded HTTP REST API and WebSocket server
// for the RS-485 core.
//
// It exposes telemetry history queries, a realtime event stream, the
// serial port command surface, backend supervisor status, and session
// log persistence to the desktop frontend. The server binds loopback by
// default; it is a local IPC surface, not a public one.
//
// The server follows the same lifecycle pattern as other infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Rushikesh-Palande/rs-485/internal/infrastructure/config"
	"github.com/Rushikesh-Palande/rs-485/internal/infrastructure/logging"
	"github.com/Rushikesh-Palande/rs-485/internal/logstore"
	"github.com/Rushikesh-Palande/rs-485/internal/serialport"
	"github.com/Rushikesh-Palande/rs-485/internal/supervisor"
	"github.com/Rushikesh-Palande/rs-485/internal/telemetry"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config      config.APIConfig
	WS          config.WebSocketConfig
	Logger      *logging.Logger
	Store       *telemetry.Store
	Broadcaster *telemetry.Broadcaster
	Serial      *serialport.Manager

	// Supervisor is optional; backend status reports not-managed without it.
	Supervisor *supervisor.Supervisor

	// Logs is optional; POST /api/logs returns 503 without it.
	Logs *logstore.Store

	Version string
}

// Server is the HTTP API server for the RS-485 core.
//
// It manages the HTTP listener, routes, middleware, and the realtime
// WebSocket fan-out. The server is created with New() and started with
// Start().
type Server struct {
	cfg         config.APIConfig
	wsCfg       config.WebSocketConfig
	logger      *logging.Logger
	store       *telemetry.Store
	broadcaster *telemetry.Broadcaster
	serial      *serialport.Manager
	supervisor  *supervisor.Supervisor
	logs        *logstore.Store
	version     string
	server      *http.Server
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("telemetry store is required")
	}
	if deps.Broadcaster == nil {
		return nil, fmt.Errorf("broadcaster is required")
	}
	if deps.Serial == nil {
		return nil, fmt.Errorf("serial manager is required")
	}

	return &Server{
		cfg:         deps.Config,
		wsCfg:       deps.WS,
		logger:      deps.Logger,
		store:       deps.Store,
		broadcaster: deps.Broadcaster,
		serial:      deps.Serial,
		supervisor:  deps.Supervisor,
		logs:        deps.Logs,
		version:     deps.Version,
	}, nil
}

// Start begins listening for HTTP connections.
//
// It builds the router and launches the HTTP listener in a background
// goroutine. The server is stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	_ = ctx // listener lifetime is governed by Close, not the parent context

	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       s.cfg.GetReadTimeout(),
		ReadHeaderTimeout: s.cfg.GetReadTimeout(),
		WriteTimeout:      s.cfg.GetWriteTimeout(),
		IdleTimeout:       s.cfg.GetIdleTimeout(),
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		err := s.server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}

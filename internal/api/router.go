package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Get("/telemetry/{deviceUID}/history", s.handleTelemetryHistory)

		r.Route("/serial", func(r chi.Router) {
			r.Get("/ports", s.handleSerialPorts)
			r.Post("/open", s.handleSerialOpen)
			r.Post("/close", s.handleSerialClose)
			r.Post("/write", s.handleSerialWrite)
			r.Post("/read", s.handleSerialRead)
			r.Get("/status", s.handleSerialStatus)
		})

		r.Get("/backend/status", s.handleBackendStatus)

		r.Post("/logs", s.handleSaveLogs)
	})

	// Realtime telemetry stream
	wsPath := s.wsCfg.Path
	if wsPath == "" {
		wsPath = "/ws/realtime"
	}
	r.Get(wsPath, s.handleRealtime)

	return r
}

// handleHealth returns the server health status. It touches no
// dependencies so a wedged database never masks process liveness.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}

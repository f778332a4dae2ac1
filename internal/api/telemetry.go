package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

// handleTelemetryHistory serves GET /api/telemetry/{deviceUID}/history.
//
// Query parameters:
//   - limit: max rows (clamped by the store; default 1000, cap 10000)
//   - start: RFC 3339 lower bound (inclusive, optional)
//   - end:   RFC 3339 upper bound (inclusive, optional)
func (s *Server) handleTelemetryHistory(w http.ResponseWriter, r *http.Request) {
	deviceUID := chi.URLParam(r, "deviceUID")
	if deviceUID == "" {
		writeBadRequest(w, "device uid is required")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeBadRequest(w, "invalid limit: "+raw)
			return
		}
		limit = parsed
	}

	start, err := parseTimeParam(r, "start")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	end, err := parseTimeParam(r, "end")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	points, err := s.store.History(r.Context(), deviceUID, start, end, limit)
	if err != nil {
		s.logger.Error("history query failed", "device_uid", deviceUID, "error", err)
		writeInternalError(w, "history query failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"device_uid": deviceUID,
		"points":     points,
	})
}

// parseTimeParam reads an optional RFC 3339 query parameter. The error
// names the offending value so the frontend can show it verbatim.
func parseTimeParam(r *http.Request, name string) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, &paramError{name: name, value: raw}
	}
	return &t, nil
}

// paramError reports an unparseable query parameter.
type paramError struct {
	name  string
	value string
}

func (e *paramError) Error() string {
	return "invalid " + e.name + " timestamp: " + e.value
}

package api

import (
	"io"
	"net/http"
)

// handleBackendStatus serves GET /api/backend/status with the
// supervisor's stats snapshot. Without a supervisor the backend is
// externally managed and the core has nothing to report.
func (s *Server) handleBackendStatus(w http.ResponseWriter, _ *http.Request) {
	if s.supervisor == nil {
		writeJSON(w, http.StatusOK, map[string]any{"managed": false})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"managed": true,
		"backend": s.supervisor.Stats(),
	})
}

// handleSaveLogs serves POST /api/logs: the frontend posts its whole
// session log dump as the request body and gets back the path it was
// written to.
func (s *Server) handleSaveLogs(w http.ResponseWriter, r *http.Request) {
	if s.logs == nil {
		writeUnavailable(w, "log persistence not configured")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeBadRequest(w, "reading request body failed")
		return
	}
	if len(body) == 0 {
		writeBadRequest(w, "empty log dump")
		return
	}

	path, err := s.logs.Save(string(body))
	if err != nil {
		s.logger.Error("saving session logs failed", "error", err)
		writeInternalError(w, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"path": path})
}

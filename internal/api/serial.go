package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/Rushikesh-Palande/rs-485/internal/serialport"
)

// serialWriteRequest is the body of POST /api/serial/write.
type serialWriteRequest struct {
	Data   string `json:"data"`
	Format string `json:"format"` // "text" (default) or "hex"
}

// serialReadRequest is the body of POST /api/serial/read.
type serialReadRequest struct {
	MaxBytes int `json:"maxBytes"`
}

// handleSerialPorts serves GET /api/serial/ports.
func (s *Server) handleSerialPorts(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ports": serialport.ListPorts(),
	})
}

// handleSerialOpen serves POST /api/serial/open. The body is a session
// config; a successful open returns the resulting status snapshot.
// Validation failures are 400 and leave any existing session untouched.
func (s *Server) handleSerialOpen(w http.ResponseWriter, r *http.Request) {
	var cfg serialport.Config
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	status, err := s.serial.Open(cfg)
	if err != nil {
		if isSerialValidationError(err) {
			writeBadRequest(w, err.Error())
			return
		}
		s.logger.Error("serial open failed", "port", cfg.Port, "error", err)
		writeConflict(w, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, status)
}

// handleSerialClose serves POST /api/serial/close. Closing when nothing
// is open succeeds.
func (s *Server) handleSerialClose(w http.ResponseWriter, _ *http.Request) {
	if err := s.serial.Close(); err != nil {
		writeInternalError(w, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"closed": true})
}

// handleSerialWrite serves POST /api/serial/write.
func (s *Server) handleSerialWrite(w http.ResponseWriter, r *http.Request) {
	var req serialWriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	n, err := s.serial.Write(req.Data, req.Format)
	if err != nil {
		switch {
		case errors.Is(err, serialport.ErrNotOpen):
			writeConflict(w, err.Error())
		case errors.Is(err, serialport.ErrOddHexDigits), errors.Is(err, serialport.ErrInvalidHex):
			writeBadRequest(w, err.Error())
		default:
			s.logger.Error("serial write failed", "error", err)
			writeInternalError(w, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"bytesWritten": n})
}

// handleSerialRead serves POST /api/serial/read. A timeout with no data
// is a successful empty result, not an error.
func (s *Server) handleSerialRead(w http.ResponseWriter, r *http.Request) {
	var req serialReadRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeBadRequest(w, "invalid request body")
			return
		}
	}

	result, err := s.serial.Read(req.MaxBytes)
	if err != nil {
		if errors.Is(err, serialport.ErrNotOpen) {
			writeConflict(w, err.Error())
			return
		}
		s.logger.Error("serial read failed", "error", err)
		writeInternalError(w, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleSerialStatus serves GET /api/serial/status.
func (s *Server) handleSerialStatus(w http.ResponseWriter, _ *http.Request) {
	status, err := s.serial.Status()
	if err != nil {
		if errors.Is(err, serialport.ErrNotOpen) {
			writeJSON(w, http.StatusOK, map[string]any{"open": false})
			return
		}
		writeInternalError(w, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"open":   true,
		"status": status,
	})
}

// isSerialValidationError reports whether an Open failure was a config
// problem rather than a device one.
func isSerialValidationError(err error) bool {
	return errors.Is(err, serialport.ErrPortRequired) ||
		strings.Contains(err.Error(), "unsupported")
}

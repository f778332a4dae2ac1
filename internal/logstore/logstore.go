// Package logstore persists UI session log dumps to disk.
//
// The desktop frontend collects its own console output and posts the
// whole dump when the user hits "save logs". The store tries a
// preferred location first (typically a fixed operator path) and falls
// back to a HOME-derived one when that isn't writable, so the feature
// works both on the bench appliance and on a developer machine.
package logstore

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Rushikesh-Palande/rs-485/internal/infrastructure/config"
)

const (
	logFileName = "rs485.log"
	dirPerm     = 0o750
	filePerm    = 0o600
)

// Logger defines the logging interface for the store.
type Logger interface {
	Warn(msg string, args ...any)
	Info(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Warn(string, ...any) {}
func (noopLogger) Info(string, ...any) {}

// Store writes session log dumps to one of two candidate locations.
type Store struct {
	preferred string
	fallback  string
	logger    Logger
}

// New creates a Store from config, applying HOME-derived defaults for
// unset paths.
func New(cfg config.LogsConfig) *Store {
	preferred := cfg.PreferredPath
	if preferred == "" {
		preferred = "/home/pi/logs/" + logFileName
	}

	fallback := cfg.FallbackPath
	if fallback == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = os.TempDir()
		}
		fallback = filepath.Join(home, "logs", logFileName)
	}

	return &Store{
		preferred: preferred,
		fallback:  fallback,
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for the store.
func (s *Store) SetLogger(logger Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// Save writes the dump to the preferred path, falling back to the
// secondary location when the preferred one isn't writable. It returns
// the path actually written. Both locations failing is an error naming
// both paths.
func (s *Store) Save(contents string) (string, error) {
	err := writeDump(s.preferred, contents)
	if err == nil {
		return s.preferred, nil
	}

	s.logger.Warn("preferred log path not writable, trying fallback",
		"path", s.preferred,
		"error", err,
	)

	fbErr := writeDump(s.fallback, contents)
	if fbErr == nil {
		return s.fallback, nil
	}

	return "", fmt.Errorf("saving logs failed: %s: %w; %s: %w",
		s.preferred, err, s.fallback, fbErr)
}

// writeDump creates parent directories and writes the file.
func writeDump(path, contents string) error {
	if err := os.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(contents), filePerm)
}

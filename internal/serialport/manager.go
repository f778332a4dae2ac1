package serialport

import (
	"bytes"
	"fmt"
	"sync"
	"time"
)

const (
	// minTimeout is the floor for the effective session timeout. Some
	// drivers busy-loop with a zero timeout, and sub-100ms values give
	// RS-485 half-duplex turnarounds no time to complete.
	minTimeout = 100 * time.Millisecond

	// defaultReadBytes is the read size when the caller doesn't specify one.
	defaultReadBytes = 1024

	defaultBaud     = 9600
	defaultDataBits = 8
)

// Config describes a serial session. Field names mirror the JSON the
// desktop UI sends.
type Config struct {
	Port           string `json:"port"`
	Baud           int    `json:"baud"`
	Parity         string `json:"parity"`
	StopBits       string `json:"stopBits"`
	DataBits       int    `json:"dataBits"`
	ReadTimeoutMs  int    `json:"readTimeoutMs"`
	WriteTimeoutMs int    `json:"writeTimeoutMs"`
}

// Status is a snapshot of the open session.
type Status struct {
	Port      string `json:"port"`
	Baud      int    `json:"baud"`
	Parity    string `json:"parity"`
	StopBits  string `json:"stopBits"`
	DataBits  int    `json:"dataBits"`
	TimeoutMs int64  `json:"timeoutMs"`

	// Descriptor is the OS-level handle, -1 when unknown. Diagnostic only.
	Descriptor int64 `json:"descriptor"`
}

// ReadResult carries one read's payload in both renderings.
type ReadResult struct {
	Len  int    `json:"len"`
	Text string `json:"text"`
	Hex  string `json:"hex"`
}

// Manager owns at most one serial device at a time and serialises all
// access to it. Opening a new port force-closes the previous one, so a
// stuck session can always be recovered by reopening.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Manager struct {
	mu      sync.Mutex
	dev     Device
	cfg     Config
	timeout time.Duration
	open    Opener

	logger Logger
}

// Logger defines the logging interface for the manager.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

// NewManager creates a Manager backed by the real serial driver.
func NewManager() *Manager {
	return &Manager{
		open:   openDevice,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the manager.
func (m *Manager) SetLogger(logger Logger) {
	if logger != nil {
		m.logger = logger
	}
}

// SetOpener replaces the device opener. Used by tests and simulators.
func (m *Manager) SetOpener(open Opener) {
	if open != nil {
		m.open = open
	}
}

// effectiveTimeout derives the session timeout from the configured read
// and write timeouts: the larger of the two, floored at 100ms.
func effectiveTimeout(cfg Config) time.Duration {
	timeout := time.Duration(cfg.ReadTimeoutMs) * time.Millisecond
	if w := time.Duration(cfg.WriteTimeoutMs) * time.Millisecond; w > timeout {
		timeout = w
	}
	if timeout < minTimeout {
		timeout = minTimeout
	}
	return timeout
}

// normalize fills config defaults for fields the UI may omit.
func normalize(cfg Config) Config {
	if cfg.Baud <= 0 {
		cfg.Baud = defaultBaud
	}
	if cfg.Parity == "" {
		cfg.Parity = "None"
	}
	if cfg.StopBits == "" {
		cfg.StopBits = "1"
	}
	if cfg.DataBits == 0 {
		cfg.DataBits = defaultDataBits
	}
	return cfg
}

// validate rejects unsupported line settings before any state changes.
func validate(cfg Config) error {
	if cfg.Port == "" {
		return ErrPortRequired
	}
	if _, err := parseParity(cfg.Parity); err != nil {
		return err
	}
	if _, err := parseStopBits(cfg.StopBits); err != nil {
		return err
	}
	return validateDataBits(cfg.DataBits)
}

// Open establishes a serial session.
//
// The config is validated first: an unsupported parity, stop bit or data
// bit value is rejected without touching an already-open session. Only
// then is any previous device force-closed and the new one opened with
// the effective timeout (max of read/write timeouts, at least 100ms).
func (m *Manager) Open(cfg Config) (Status, error) {
	cfg = normalize(cfg)
	if err := validate(cfg); err != nil {
		return Status{}, err
	}
	timeout := effectiveTimeout(cfg)

	m.mu.Lock()
	defer m.mu.Unlock()

	// Force-close any existing session; a half-dead port must never
	// block a reopen.
	if m.dev != nil {
		if err := m.dev.Close(); err != nil {
			m.logger.Warn("closing previous port failed",
				"port", m.cfg.Port,
				"error", err,
			)
		}
		m.dev = nil
	}

	dev, err := m.open(cfg, timeout)
	if err != nil {
		return Status{}, err
	}

	m.dev = dev
	m.cfg = cfg
	m.timeout = timeout

	m.logger.Info("serial port opened",
		"port", cfg.Port,
		"baud", cfg.Baud,
		"timeout_ms", timeout.Milliseconds(),
		"descriptor", dev.Descriptor(),
	)

	return m.statusLocked(), nil
}

// Close shuts the session down. Closing an already-closed manager is a
// no-op, not an error.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.dev == nil {
		return nil
	}
	if err := m.dev.Close(); err != nil {
		m.logger.Warn("closing port failed", "port", m.cfg.Port, "error", err)
	}
	m.dev = nil
	m.logger.Info("serial port closed", "port", m.cfg.Port)
	return nil
}

// IsOpen reports whether a device is currently held.
func (m *Manager) IsOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dev != nil
}

// Status returns a snapshot of the open session.
func (m *Manager) Status() (Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.dev == nil {
		return Status{}, ErrNotOpen
	}
	return m.statusLocked(), nil
}

// statusLocked builds a Status snapshot. Caller must hold m.mu.
func (m *Manager) statusLocked() Status {
	return Status{
		Port:       m.cfg.Port,
		Baud:       m.cfg.Baud,
		Parity:     m.cfg.Parity,
		StopBits:   m.cfg.StopBits,
		DataBits:   m.cfg.DataBits,
		TimeoutMs:  m.timeout.Milliseconds(),
		Descriptor: m.dev.Descriptor(),
	}
}

// Write sends a payload to the device and returns the byte count.
//
// format "hex" decodes the payload via DecodeHex (whitespace-tolerant,
// even digit count required); any other format sends the raw text bytes.
// Hex validation happens before the device is touched, so a malformed
// payload never causes a partial transmit. The output is drained before
// returning.
func (m *Manager) Write(data, format string) (int, error) {
	var payload []byte
	if format == "hex" {
		decoded, err := DecodeHex(data)
		if err != nil {
			return 0, err
		}
		payload = decoded
	} else {
		payload = []byte(data)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.dev == nil {
		return 0, ErrNotOpen
	}

	written := 0
	for written < len(payload) {
		n, err := m.dev.Write(payload[written:])
		written += n
		if err != nil {
			return written, fmt.Errorf("writing to %s: %w", m.cfg.Port, err)
		}
	}

	if err := m.dev.Drain(); err != nil {
		return written, fmt.Errorf("draining %s: %w", m.cfg.Port, err)
	}

	m.logger.Debug("serial write", "port", m.cfg.Port, "bytes", written)
	return written, nil
}

// Read performs a single read of up to maxBytes (default 1024 when <= 0)
// bounded by the session timeout.
//
// A timeout with nothing received is not an error: the result is simply
// empty. Text is a lossy UTF-8 rendering (invalid sequences replaced),
// Hex the uppercase space-separated byte dump.
func (m *Manager) Read(maxBytes int) (ReadResult, error) {
	if maxBytes <= 0 {
		maxBytes = defaultReadBytes
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.dev == nil {
		return ReadResult{}, ErrNotOpen
	}

	buf := make([]byte, maxBytes)
	n, err := m.dev.Read(buf)
	if err != nil {
		return ReadResult{}, fmt.Errorf("reading from %s: %w", m.cfg.Port, err)
	}

	data := buf[:n]
	return ReadResult{
		Len:  n,
		Text: string(bytes.ToValidUTF8(data, []byte("�"))),
		Hex:  EncodeHex(data),
	}, nil
}

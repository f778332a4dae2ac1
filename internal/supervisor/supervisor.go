package supervisor

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/Rushikesh-Palande/rs-485/internal/probe"
)

// Default watchdog tuning. The probe cadence and threshold are chosen so
// a wedged backend is replaced within ~6 seconds without flapping on a
// single dropped connection.
const (
	defaultProbeInterval    = 2 * time.Second
	defaultProbeTimeout     = 150 * time.Millisecond
	defaultFailureThreshold = 3
	defaultGracefulTimeout  = 5 * time.Second

	// killWaitTimeout bounds the wait after SIGKILL. If the process still
	// hasn't been reaped by then something is wrong with the kernel, not us.
	killWaitTimeout = 3 * time.Second

	outputBufferSize = 4096
)

// Event identifies a lifecycle notification emitted by the supervisor.
type Event string

const (
	// EventSpawned is emitted after the backend process starts.
	EventSpawned Event = "spawned"

	// EventSpawnFailed is emitted when the backend fails to start.
	EventSpawnFailed Event = "spawn_failed"

	// EventAlreadyRunning is emitted when Spawn is called while a live
	// child exists. Spawn is idempotent in that case.
	EventAlreadyRunning Event = "already_running"

	// EventHealthFailed is emitted for each failed probe.
	EventHealthFailed Event = "health_failed"

	// EventRestarting is emitted when the failure threshold is crossed,
	// just before the kill and respawn.
	EventRestarting Event = "restarting"

	// EventExited is emitted when the child process exits for any reason.
	EventExited Event = "exited"
)

// Notifier receives lifecycle notifications. Callbacks run on the
// supervisor's goroutines and must not block.
type Notifier func(event Event, detail string)

// ProbeFunc checks whether the backend's listen port answers.
// Replaceable for testing.
type ProbeFunc func(host string, port int, timeout time.Duration) bool

// Logger defines the logging interface for the supervisor.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Config describes the backend process to supervise.
type Config struct {
	// Name identifies the process in logs and events.
	Name string

	// Binary is the path to the backend executable.
	Binary string

	// Args are extra command-line arguments.
	Args []string

	// WorkDir is the working directory for the child. Empty inherits ours.
	WorkDir string

	// Host and Port locate the backend's health endpoint. They are also
	// exported to the child as HOST and PORT.
	Host string
	Port int

	// Environment is exported to the child as APP_ENV.
	Environment string

	// LogLevel is exported to the child as LOG_LEVEL.
	LogLevel string

	// ExtraEnv holds additional KEY=VALUE pairs for the child.
	ExtraEnv []string

	// ProbeInterval is the watchdog cadence. Default: 2s.
	ProbeInterval time.Duration

	// ProbeTimeout bounds a single TCP probe. Default: 150ms.
	ProbeTimeout time.Duration

	// FailureThreshold is the number of consecutive failed probes that
	// triggers a kill and respawn. Default: 3.
	FailureThreshold int

	// GracefulTimeout is how long Kill waits after SIGTERM before
	// escalating to SIGKILL. Default: 5s.
	GracefulTimeout time.Duration
}

// Supervisor manages the backend child process: spawning it with the
// expected environment, detecting exits, and running the probe watchdog
// that replaces it after consecutive health failures.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Supervisor struct {
	config Config
	logger Logger

	notifyMu sync.RWMutex
	notify   Notifier

	probeMu sync.RWMutex
	probe   ProbeFunc

	mu        sync.Mutex
	cmd       *exec.Cmd
	done      chan struct{}
	startTime time.Time
	failures  int
}

// Stats is a snapshot of the supervised process state.
type Stats struct {
	Name      string    `json:"name"`
	Running   bool      `json:"running"`
	PID       int       `json:"pid"`
	Failures  int       `json:"failures"`
	UptimeSec float64   `json:"uptime_sec"`
	StartedAt time.Time `json:"started_at,omitempty"`
}

// New creates a Supervisor with defaults applied.
func New(cfg Config) *Supervisor {
	if cfg.ProbeInterval <= 0 {
		cfg.ProbeInterval = defaultProbeInterval
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = defaultProbeTimeout
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = defaultFailureThreshold
	}
	if cfg.GracefulTimeout <= 0 {
		cfg.GracefulTimeout = defaultGracefulTimeout
	}

	return &Supervisor{
		config: cfg,
		logger: noopLogger{},
		probe:  probe.PortOpen,
	}
}

// SetLogger sets the logger for the supervisor.
func (s *Supervisor) SetLogger(logger Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// SetNotifier sets the lifecycle notification callback.
func (s *Supervisor) SetNotifier(n Notifier) {
	s.notifyMu.Lock()
	s.notify = n
	s.notifyMu.Unlock()
}

// SetProbe replaces the health probe. Used by tests.
func (s *Supervisor) SetProbe(p ProbeFunc) {
	s.probeMu.Lock()
	if p != nil {
		s.probe = p
	}
	s.probeMu.Unlock()
}

func (s *Supervisor) emit(event Event, detail string) {
	s.notifyMu.RLock()
	notify := s.notify
	s.notifyMu.RUnlock()
	if notify != nil {
		notify(event, detail)
	}
}

func (s *Supervisor) currentProbe() ProbeFunc {
	s.probeMu.RLock()
	defer s.probeMu.RUnlock()
	return s.probe
}

// Spawn starts the backend process. If a live child already exists this
// is a no-op (EventAlreadyRunning is emitted and nil returned).
//
// The child receives APP_ENV, LOG_LEVEL, HOST and PORT in its
// environment, runs in its own process group, and has stdout/stderr
// piped into the supervisor's logger.
func (s *Supervisor) Spawn() error {
	s.mu.Lock()
	if s.runningLocked() {
		s.mu.Unlock()
		s.logger.Info("backend already running", "name", s.config.Name)
		s.emit(EventAlreadyRunning, s.config.Name)
		return nil
	}

	s.logger.Info("spawning backend",
		"name", s.config.Name,
		"binary", s.config.Binary,
		"args", s.config.Args,
	)

	cmd := exec.Command(s.config.Binary, s.config.Args...) //nolint:gosec // Binary path comes from validated config

	// Own process group so Kill can signal the whole tree.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	cmd.Env = append(os.Environ(),
		"APP_ENV="+s.config.Environment,
		"LOG_LEVEL="+s.config.LogLevel,
		"HOST="+s.config.Host,
		fmt.Sprintf("PORT=%d", s.config.Port),
	)
	cmd.Env = append(cmd.Env, s.config.ExtraEnv...)

	if s.config.WorkDir != "" {
		cmd.Dir = s.config.WorkDir
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("creating stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("creating stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		s.mu.Unlock()
		s.logger.Error("backend spawn failed",
			"name", s.config.Name,
			"error", err,
		)
		s.emit(EventSpawnFailed, err.Error())
		return fmt.Errorf("spawning %s: %w", s.config.Name, err)
	}

	done := make(chan struct{})
	s.cmd = cmd
	s.done = done
	s.startTime = time.Now()
	s.mu.Unlock()

	go s.captureOutput("stdout", stdout)
	go s.captureOutput("stderr", stderr)
	go s.reap(cmd, done)

	s.logger.Info("backend started",
		"name", s.config.Name,
		"pid", cmd.Process.Pid,
	)
	s.emit(EventSpawned, fmt.Sprintf("pid=%d", cmd.Process.Pid))

	return nil
}

// reap waits for the child and marks its handle dead. Closing done is
// what runningLocked uses as the liveness signal.
func (s *Supervisor) reap(cmd *exec.Cmd, done chan struct{}) {
	err := cmd.Wait()
	close(done)

	detail := "exit ok"
	if err != nil {
		detail = err.Error()
	}
	s.logger.Info("backend exited",
		"name", s.config.Name,
		"detail", detail,
	)
	s.emit(EventExited, detail)
}

// captureOutput reads from the given reader and logs each chunk.
func (s *Supervisor) captureOutput(stream string, r io.Reader) {
	buf := make([]byte, outputBufferSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			s.logger.Debug("backend output",
				"name", s.config.Name,
				"stream", stream,
				"output", string(buf[:n]),
			)
		}
		if err != nil {
			return
		}
	}
}

// runningLocked reports whether the stored child is still alive,
// clearing the handle when the reaper has signalled exit.
// Caller must hold s.mu.
func (s *Supervisor) runningLocked() bool {
	if s.cmd == nil {
		return false
	}
	select {
	case <-s.done:
		// Process exited since we last looked; clear the stale handle.
		s.cmd = nil
		s.done = nil
		return false
	default:
		return true
	}
}

// IsRunning reports whether the backend child process is alive.
// A stored handle whose process has exited is detected and cleared.
func (s *Supervisor) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runningLocked()
}

// Kill terminates the backend: SIGTERM to the process group, a bounded
// wait, then SIGKILL. The handle is always cleared. Returns nil when no
// child exists.
func (s *Supervisor) Kill() error {
	s.mu.Lock()
	if !s.runningLocked() {
		s.mu.Unlock()
		return nil
	}
	cmd := s.cmd
	done := s.done
	s.cmd = nil
	s.done = nil
	s.mu.Unlock()

	pid := cmd.Process.Pid
	s.logger.Info("stopping backend", "name", s.config.Name, "pid", pid)

	// Negative PID signals the whole process group (created via Setpgid).
	if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil {
		// Process may have exited between the liveness check and here.
		s.logger.Debug("SIGTERM failed", "name", s.config.Name, "error", err)
	}

	select {
	case <-done:
		return nil
	case <-time.After(s.config.GracefulTimeout):
	}

	s.logger.Warn("backend ignored SIGTERM, escalating",
		"name", s.config.Name,
		"pid", pid,
	)
	if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil {
		s.logger.Debug("SIGKILL failed", "name", s.config.Name, "error", err)
	}

	select {
	case <-done:
	case <-time.After(killWaitTimeout):
		s.logger.Error("backend did not exit after SIGKILL",
			"name", s.config.Name,
			"pid", pid,
		)
	}
	return nil
}

// Watch runs the health watchdog until ctx is cancelled.
//
// Every ProbeInterval it probes the backend's port. A successful probe
// resets the failure counter. Each failure increments it (saturating at
// the threshold) and emits EventHealthFailed; at the threshold the
// backend is killed, EventRestarting is emitted, a fresh child is
// spawned and the counter resets to zero. Exactly one kill+respawn
// happens per threshold crossing.
func (s *Supervisor) Watch(ctx context.Context) {
	ticker := time.NewTicker(s.config.ProbeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("watchdog stopped", "name", s.config.Name)
			return
		case <-ticker.C:
			s.checkOnce()
		}
	}
}

// checkOnce performs a single probe cycle.
func (s *Supervisor) checkOnce() {
	ok := s.currentProbe()(s.config.Host, s.config.Port, s.config.ProbeTimeout)

	if ok {
		s.mu.Lock()
		if s.failures != 0 {
			s.logger.Info("backend recovered",
				"name", s.config.Name,
				"failures", s.failures,
			)
		}
		s.failures = 0
		s.mu.Unlock()
		return
	}

	s.mu.Lock()
	if s.failures < s.config.FailureThreshold {
		s.failures++
	}
	n := s.failures
	s.mu.Unlock()

	s.logger.Warn("backend health probe failed",
		"name", s.config.Name,
		"host", s.config.Host,
		"port", s.config.Port,
		"failures", n,
		"threshold", s.config.FailureThreshold,
	)
	s.emit(EventHealthFailed, fmt.Sprintf("%d/%d", n, s.config.FailureThreshold))

	if n < s.config.FailureThreshold {
		return
	}

	s.logger.Error("backend unresponsive, restarting", "name", s.config.Name)
	if err := s.Kill(); err != nil {
		s.logger.Error("killing backend failed", "name", s.config.Name, "error", err)
	}
	s.emit(EventRestarting, s.config.Name)

	if err := s.Spawn(); err != nil {
		s.logger.Error("respawning backend failed", "name", s.config.Name, "error", err)
	}

	s.mu.Lock()
	s.failures = 0
	s.mu.Unlock()
}

// PID returns the child's process ID, or 0 when not running.
func (s *Supervisor) PID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.runningLocked() {
		return 0
	}
	return s.cmd.Process.Pid
}

// Failures returns the current consecutive probe failure count.
func (s *Supervisor) Failures() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failures
}

// Uptime returns how long the current child has been running,
// or 0 when not running.
func (s *Supervisor) Uptime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.runningLocked() {
		return 0
	}
	return time.Since(s.startTime)
}

// Stats returns a snapshot of the supervised process state.
func (s *Supervisor) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := Stats{
		Name:     s.config.Name,
		Failures: s.failures,
	}
	if s.runningLocked() {
		stats.Running = true
		stats.PID = s.cmd.Process.Pid
		stats.StartedAt = s.startTime
		stats.UptimeSec = time.Since(s.startTime).Seconds()
	}
	return stats
}

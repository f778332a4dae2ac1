package supervisor

import (
	"context"
	"sync"
	"testing"
	"time"
)

// eventRecorder collects lifecycle notifications for assertions.
type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) notify(event Event, _ string) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
}

func (r *eventRecorder) count(event Event) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e == event {
			n++
		}
	}
	return n
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestNew_Defaults(t *testing.T) {
	s := New(Config{
		Name:   "backend",
		Binary: "/bin/true",
	})

	if s.config.ProbeInterval != 2*time.Second {
		t.Errorf("ProbeInterval = %v, want %v", s.config.ProbeInterval, 2*time.Second)
	}
	if s.config.ProbeTimeout != 150*time.Millisecond {
		t.Errorf("ProbeTimeout = %v, want %v", s.config.ProbeTimeout, 150*time.Millisecond)
	}
	if s.config.FailureThreshold != 3 {
		t.Errorf("FailureThreshold = %d, want 3", s.config.FailureThreshold)
	}
	if s.config.GracefulTimeout != 5*time.Second {
		t.Errorf("GracefulTimeout = %v, want %v", s.config.GracefulTimeout, 5*time.Second)
	}
}

func TestSupervisor_InitialState(t *testing.T) {
	s := New(Config{Name: "backend", Binary: "/bin/true"})

	if s.IsRunning() {
		t.Error("IsRunning() = true before Spawn()")
	}
	if s.PID() != 0 {
		t.Errorf("PID() = %d, want 0", s.PID())
	}
	if s.Failures() != 0 {
		t.Errorf("Failures() = %d, want 0", s.Failures())
	}
	if s.Uptime() != 0 {
		t.Errorf("Uptime() = %v, want 0", s.Uptime())
	}
}

func TestSpawn_InvalidBinary(t *testing.T) {
	rec := &eventRecorder{}
	s := New(Config{Name: "bad", Binary: "/nonexistent/binary"})
	s.SetNotifier(rec.notify)

	if err := s.Spawn(); err == nil {
		t.Fatal("Spawn() with invalid binary expected error, got nil")
	}
	if rec.count(EventSpawnFailed) != 1 {
		t.Errorf("spawn_failed events = %d, want 1", rec.count(EventSpawnFailed))
	}
	if s.IsRunning() {
		t.Error("IsRunning() = true after failed spawn")
	}
}

func TestSpawn_AndKill(t *testing.T) {
	rec := &eventRecorder{}
	s := New(Config{
		Name:            "sleeper",
		Binary:          "/bin/sleep",
		Args:            []string{"60"},
		GracefulTimeout: 2 * time.Second,
	})
	s.SetNotifier(rec.notify)

	if err := s.Spawn(); err != nil {
		t.Fatalf("Spawn() error: %v", err)
	}
	defer s.Kill()

	if !s.IsRunning() {
		t.Error("IsRunning() = false after Spawn()")
	}
	if s.PID() == 0 {
		t.Error("PID() = 0 after Spawn()")
	}
	if rec.count(EventSpawned) != 1 {
		t.Errorf("spawned events = %d, want 1", rec.count(EventSpawned))
	}

	stats := s.Stats()
	if !stats.Running {
		t.Error("Stats().Running = false, want true")
	}
	if stats.PID == 0 {
		t.Error("Stats().PID = 0, want nonzero")
	}

	if err := s.Kill(); err != nil {
		t.Fatalf("Kill() error: %v", err)
	}
	if s.IsRunning() {
		t.Error("IsRunning() = true after Kill()")
	}
	if s.PID() != 0 {
		t.Errorf("PID() = %d after Kill(), want 0", s.PID())
	}
}

func TestSpawn_Idempotent(t *testing.T) {
	rec := &eventRecorder{}
	s := New(Config{
		Name:            "sleeper",
		Binary:          "/bin/sleep",
		Args:            []string{"60"},
		GracefulTimeout: 2 * time.Second,
	})
	s.SetNotifier(rec.notify)

	if err := s.Spawn(); err != nil {
		t.Fatalf("first Spawn() error: %v", err)
	}
	defer s.Kill()

	pid := s.PID()
	if err := s.Spawn(); err != nil {
		t.Fatalf("second Spawn() error: %v", err)
	}

	if rec.count(EventAlreadyRunning) != 1 {
		t.Errorf("already_running events = %d, want 1", rec.count(EventAlreadyRunning))
	}
	if s.PID() != pid {
		t.Errorf("PID changed from %d to %d on idempotent Spawn()", pid, s.PID())
	}
}

func TestKill_NotRunning(t *testing.T) {
	s := New(Config{Name: "backend", Binary: "/bin/true"})

	if err := s.Kill(); err != nil {
		t.Errorf("Kill() on stopped supervisor error = %v, want nil", err)
	}
}

func TestIsRunning_DetectsExit(t *testing.T) {
	s := New(Config{Name: "oneshot", Binary: "/bin/true"})

	if err := s.Spawn(); err != nil {
		t.Fatalf("Spawn() error: %v", err)
	}

	// /bin/true exits immediately; the reaper should clear the handle.
	waitFor(t, 3*time.Second, func() bool { return !s.IsRunning() })

	if s.PID() != 0 {
		t.Errorf("PID() = %d after exit, want 0", s.PID())
	}
}

func TestWatch_ThresholdTriggersSingleRestart(t *testing.T) {
	rec := &eventRecorder{}
	s := New(Config{
		Name:             "sleeper",
		Binary:           "/bin/sleep",
		Args:             []string{"60"},
		ProbeInterval:    20 * time.Millisecond,
		FailureThreshold: 3,
		GracefulTimeout:  time.Second,
	})
	s.SetNotifier(rec.notify)

	// Fail exactly three probes, then report healthy forever.
	var probeMu sync.Mutex
	probeCalls := 0
	s.SetProbe(func(string, int, time.Duration) bool {
		probeMu.Lock()
		defer probeMu.Unlock()
		probeCalls++
		return probeCalls > 3
	})

	if err := s.Spawn(); err != nil {
		t.Fatalf("Spawn() error: %v", err)
	}
	defer s.Kill()

	ctx, cancel := context.WithCancel(context.Background())
	watchDone := make(chan struct{})
	go func() {
		defer close(watchDone)
		s.Watch(ctx)
	}()

	waitFor(t, 5*time.Second, func() bool { return rec.count(EventRestarting) >= 1 })

	// Let a few healthy probes run, then stop the watchdog.
	waitFor(t, 5*time.Second, func() bool {
		probeMu.Lock()
		defer probeMu.Unlock()
		return probeCalls >= 6
	})
	cancel()
	<-watchDone

	if got := rec.count(EventHealthFailed); got != 3 {
		t.Errorf("health_failed events = %d, want 3", got)
	}
	if got := rec.count(EventRestarting); got != 1 {
		t.Errorf("restarting events = %d, want exactly 1", got)
	}
	if got := rec.count(EventSpawned); got != 2 {
		t.Errorf("spawned events = %d, want 2 (initial + restart)", got)
	}
	if s.Failures() != 0 {
		t.Errorf("Failures() = %d after recovery, want 0", s.Failures())
	}
	if !s.IsRunning() {
		t.Error("IsRunning() = false after restart, want true")
	}
}

func TestWatch_HealthyProbesResetCounter(t *testing.T) {
	s := New(Config{
		Name:             "sleeper",
		Binary:           "/bin/sleep",
		Args:             []string{"60"},
		ProbeInterval:    20 * time.Millisecond,
		FailureThreshold: 3,
	})

	// Alternate fail/ok so the counter never reaches the threshold.
	var probeMu sync.Mutex
	probeCalls := 0
	s.SetProbe(func(string, int, time.Duration) bool {
		probeMu.Lock()
		defer probeMu.Unlock()
		probeCalls++
		return probeCalls%2 == 0
	})

	rec := &eventRecorder{}
	s.SetNotifier(rec.notify)

	ctx, cancel := context.WithCancel(context.Background())
	watchDone := make(chan struct{})
	go func() {
		defer close(watchDone)
		s.Watch(ctx)
	}()

	waitFor(t, 5*time.Second, func() bool {
		probeMu.Lock()
		defer probeMu.Unlock()
		return probeCalls >= 8
	})
	cancel()
	<-watchDone

	if got := rec.count(EventRestarting); got != 0 {
		t.Errorf("restarting events = %d, want 0", got)
	}
}

func TestStats_NotRunning(t *testing.T) {
	s := New(Config{Name: "backend", Binary: "/bin/true"})

	stats := s.Stats()
	if stats.Name != "backend" {
		t.Errorf("Stats.Name = %q, want %q", stats.Name, "backend")
	}
	if stats.Running {
		t.Error("Stats.Running = true, want false")
	}
	if stats.PID != 0 {
		t.Errorf("Stats.PID = %d, want 0", stats.PID)
	}
}

func TestSetLogger_NilIgnored(t *testing.T) {
	s := New(Config{Name: "backend", Binary: "/bin/true"})

	// Should not panic or clear the noop logger.
	s.SetLogger(nil)
	s.SetLogger(noopLogger{})
}

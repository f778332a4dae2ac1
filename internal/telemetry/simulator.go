package telemetry

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// defaultSimInterval paces frame generation when the config gives none.
const defaultSimInterval = 500 * time.Millisecond

// Simulator generates plausible RS-485 telemetry frames for development
// and demos: slow sine waves with jitter on voltage, current,
// temperature and rpm, plus frame-level quality metadata. Frames go
// through the same sink as real ingest so the whole pipeline is
// exercised.
type Simulator struct {
	deviceUID string
	interval  time.Duration
	sink      func(Event)
	logger    Logger

	phase    float64
	frameSeq uint64
	rng      *rand.Rand
}

// NewSimulator creates a Simulator that delivers frames to sink.
func NewSimulator(deviceUID string, interval time.Duration, sink func(Event)) *Simulator {
	if interval <= 0 {
		interval = defaultSimInterval
	}
	return &Simulator{
		deviceUID: deviceUID,
		interval:  interval,
		sink:      sink,
		logger:    noopLogger{},
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec // Simulation jitter, not crypto
	}
}

// SetLogger sets the logger for the simulator.
func (s *Simulator) SetLogger(logger Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// Run generates frames until ctx is cancelled.
func (s *Simulator) Run(ctx context.Context) {
	s.logger.Info("telemetry simulator started",
		"device_uid", s.deviceUID,
		"interval", s.interval,
	)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("telemetry simulator stopped", "device_uid", s.deviceUID)
			return
		case <-ticker.C:
			s.sink(s.nextFrame())
		}
	}
}

// nextFrame advances the waveforms and builds one event.
func (s *Simulator) nextFrame() Event {
	s.phase += 0.08
	s.frameSeq++

	jitter := func(scale float64) float64 {
		return (s.rng.Float64()*2 - 1) * scale
	}

	return Event{
		TS:        time.Now().UTC().Format(time.RFC3339Nano),
		DeviceUID: s.deviceUID,
		Metrics: map[string]any{
			"voltage": round2(48.0 + 2.0*math.Sin(s.phase) + jitter(0.2)),
			"current": round2(3.2 + 0.5*math.Sin(s.phase*1.3) + jitter(0.05)),
			"temp_c":  round2(36.0 + 1.5*math.Sin(s.phase*0.7) + jitter(0.1)),
			"rpm":     round2(1450.0 + 25.0*math.Sin(s.phase*2.1) + jitter(5.0)),
		},
		Quality: map[string]any{
			// The occasional CRC failure keeps the UI's error path honest.
			"crc_ok":    s.rng.Float64() < 0.98,
			"frame_seq": s.frameSeq,
		},
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

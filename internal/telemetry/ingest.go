package telemetry

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/Rushikesh-Palande/rs-485/internal/infrastructure/mqtt"
)

// Logger defines the logging interface for telemetry components.
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

// Bus is the subscription surface the ingestor needs from the MQTT client.
type Bus interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// MetricWriter mirrors numeric sample metrics into a time-series store.
// Implemented by the InfluxDB client; optional.
type MetricWriter interface {
	WriteSampleMetric(deviceUID, metric string, value float64)
}

// Ingestor is the single entry point for telemetry frames: it stamps
// them, fans them out to realtime subscribers, persists them as history
// samples and optionally mirrors numeric metrics to the time-series
// store. Both the MQTT bus and the built-in simulator feed it.
type Ingestor struct {
	store       *Store
	broadcaster *Broadcaster
	metrics     MetricWriter
	logger      Logger
}

// NewIngestor creates an Ingestor.
func NewIngestor(store *Store, broadcaster *Broadcaster) *Ingestor {
	return &Ingestor{
		store:       store,
		broadcaster: broadcaster,
		logger:      noopLogger{},
	}
}

// SetLogger sets the logger for the ingestor.
func (i *Ingestor) SetLogger(logger Logger) {
	if logger != nil {
		i.logger = logger
	}
}

// SetMetricWriter enables time-series mirroring of numeric metrics.
func (i *Ingestor) SetMetricWriter(w MetricWriter) {
	i.metrics = w
}

// Start subscribes the ingestor to the telemetry topics on the bus.
func (i *Ingestor) Start(bus Bus, qos byte) error {
	return bus.Subscribe(mqtt.Topics{}.AllTelemetry(), qos, i.handleMessage)
}

// handleMessage decodes one bus frame. Malformed payloads are logged and
// dropped; they must never take the subscription down.
func (i *Ingestor) handleMessage(topic string, payload []byte) error {
	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		i.logger.Warn("dropping malformed telemetry payload",
			"topic", topic,
			"error", err,
		)
		return nil
	}

	// The topic's last segment is the device UID; use it when the
	// payload doesn't carry one.
	if event.DeviceUID == "" {
		if idx := strings.LastIndex(topic, "/"); idx >= 0 {
			event.DeviceUID = topic[idx+1:]
		}
	}

	i.Process(context.Background(), event, "mqtt")
	return nil
}

// Process runs one event through the full pipeline. Persistence errors
// are logged but don't stop the realtime fan-out; a full disk shouldn't
// blank the live view.
func (i *Ingestor) Process(ctx context.Context, event Event, source string) {
	event.Stamp()

	i.broadcaster.Publish(event)

	if event.DeviceUID == "" {
		i.logger.Warn("telemetry event without device uid, not persisted", "source", source)
		return
	}

	if err := i.store.RecordSample(ctx, event, source); err != nil {
		i.logger.Error("recording telemetry sample failed",
			"device_uid", event.DeviceUID,
			"error", err,
		)
	}

	if i.metrics != nil {
		for name, value := range event.Metrics {
			if f, ok := toFloat(value); ok {
				i.metrics.WriteSampleMetric(event.DeviceUID, name, f)
			}
		}
	}
}

// toFloat extracts a float64 from the JSON-decoded metric value.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

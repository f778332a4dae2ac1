package telemetry

import "time"

// Event is one telemetry frame as it travels through the system: decoded
// from the ingest bus, fanned out to realtime subscribers and persisted
// as a history sample.
//
// Metrics carries the decoded measurement values (voltage, current,
// temp_c, ...). Quality carries frame-level metadata such as crc_ok and
// frame_seq; it is optional and passed through verbatim.
type Event struct {
	// TS is the sample timestamp in RFC 3339. Stamped at ingest when the
	// producer didn't provide one.
	TS string `json:"ts"`

	// DeviceID is the numeric registry id, when known.
	DeviceID string `json:"device_id,omitempty"`

	// DeviceUID is the stable external identifier of the device.
	DeviceUID string `json:"device_uid,omitempty"`

	Metrics map[string]any `json:"metrics"`
	Quality map[string]any `json:"quality,omitempty"`
}

// Stamp fills TS with the current UTC time when empty.
func (e *Event) Stamp() {
	if e.TS == "" {
		e.TS = time.Now().UTC().Format(time.RFC3339Nano)
	}
}

// Time parses TS, falling back to now when missing or malformed.
func (e *Event) Time() time.Time {
	if e.TS != "" {
		if t, err := time.Parse(time.RFC3339, e.TS); err == nil {
			return t
		}
	}
	return time.Now().UTC()
}

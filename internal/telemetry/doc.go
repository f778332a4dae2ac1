// Package telemetry moves RS-485 measurement frames through the core.
//
// The pipeline has one entry point, the Ingestor, fed by the MQTT bus
// and/or the built-in Simulator. Each event is stamped, fanned out to
// realtime subscribers via the Broadcaster (lossy per-subscriber
// buffering: slow consumers see gaps, never disconnects), persisted as
// a history sample in the SQLite Store, and optionally mirrored to
// InfluxDB for dashboarding.
//
//	MQTT bus ─┐
//	          ├─> Ingestor ─> Broadcaster ─> websocket subscribers
//	Simulator ┘       │
//	                  ├─> Store (SQLite history)
//	                  └─> InfluxDB (optional)
//
// History queries run against the Store with bounded limits and
// optional inclusive time windows.
package telemetry

// Package influxdb mirrors telemetry metrics into InfluxDB.
//
// It wraps the official influxdb-client-go v2 library for connection
// management, batched metric writing, and health monitoring. The mirror
// is optional: SQLite remains the source of truth for history queries,
// InfluxDB serves long-range dashboarding (Grafana and friends).
//
// # Usage
//
//	cfg := config.InfluxDBConfig{
//	    Enabled: true,
//	    URL:     "http://localhost:8086",
//	    Token:   "your-token",
//	    Org:     "rs485",
//	    Bucket:  "telemetry",
//	}
//
//	client, err := influxdb.Connect(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteSampleMetric("inverter-01", "voltage", 48.2)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking; batch errors are delivered via the
// SetOnError callback. Connection and health check errors are returned
// directly.
package influxdb

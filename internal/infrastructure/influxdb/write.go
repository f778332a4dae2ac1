package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteSampleMetric mirrors a single decoded telemetry value.
//
// This is the primary write path: the ingest pipeline calls it once per
// numeric metric in each frame. The write is non-blocking; data is
// batched and sent asynchronously, and is silently dropped when the
// client is disconnected so a down InfluxDB can never stall ingest.
//
// Example:
//
//	client.WriteSampleMetric("inverter-01", "voltage", 48.2)
//	client.WriteSampleMetric("inverter-01", "temp_c", 36.4)
func (c *Client) WriteSampleMetric(deviceUID string, metric string, value float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"telemetry",
		map[string]string{
			"device_uid": deviceUID,
			"metric":     metric,
		},
		map[string]interface{}{
			"value": value,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteLinkMetric records serial-link quality indicators such as CRC
// failure counts or frame gaps.
func (c *Client) WriteLinkMetric(deviceUID string, metric string, value float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"link_quality",
		map[string]string{
			"device_uid": deviceUID,
			"metric":     metric,
		},
		map[string]interface{}{
			"value": value,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for measurements that don't fit the helper methods.
//
// Example:
//
//	client.WritePoint("system_stats",
//	    map[string]string{"host": "core-01"},
//	    map[string]interface{}{"cpu_percent": 45.2, "memory_mb": 512})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Use this when the timestamp is not "now" (e.g., replayed or delayed data).
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}

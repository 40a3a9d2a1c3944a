package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteFieldChange records one canonical device field change.
//
// This is the primary method for recording gateway telemetry. The write
// is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - deviceID: Hardware identifier of the device
//   - model: Device model (e.g., "H6159")
//   - field: Canonical field name (e.g., "brightness", "power")
//   - source: Transport that produced the accepted value
//   - value: Numeric rendering of the field (bool as 0/1)
//   - display: Human-readable rendering of the field
//   - timestamp: Observation timestamp of the accepted value
//
// Example:
//
//	client.WriteFieldChange("AA:BB:CC:DD", "H6159", "brightness",
//	    "radio_advertisement", 75, "brightness=75", obs.Timestamp)
func (c *Client) WriteFieldChange(deviceID, model, field, source string, value float64, display string, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"field_changes",
		map[string]string{
			"device_id": deviceID,
			"model":     model,
			"field":     field,
			"source":    source,
		},
		map[string]interface{}{
			"value":   value,
			"display": display,
		},
		timestamp,
	)

	c.writeAPI.WritePoint(point)
}

// WriteAvailability records a device lifecycle transition.
//
// Parameters:
//   - deviceID: Hardware identifier of the device
//   - model: Device model
//   - online: Whether the device became reachable
func (c *Client) WriteAvailability(deviceID, model string, online bool) {
	if !c.IsConnected() {
		return
	}

	value := 0.0
	if online {
		value = 1.0
	}

	point := write.NewPoint(
		"availability",
		map[string]string{
			"device_id": deviceID,
			"model":     model,
		},
		map[string]interface{}{
			"online": value,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for custom measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
//
// Example:
//
//	client.WritePoint("gateway_stats",
//	    map[string]string{"host": "bridge-01"},
//	    map[string]interface{}{"bus_depth": 12, "pending_commands": 3})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Use this when the timestamp is not "now" (e.g., delayed data).
//
// Parameters:
//   - measurement: The measurement name
//   - tags: Key-value pairs for indexing
//   - fields: Key-value pairs for the data
//   - timestamp: The exact time for this data point
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}

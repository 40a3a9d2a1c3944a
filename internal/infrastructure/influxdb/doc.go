// Package influxdb provides InfluxDB connectivity for Lumen Bridge.
//
// It wraps the official influxdb-client-go v2 library with Lumen
// Bridge-specific patterns for connection management, metric writing, and
// health monitoring.
//
// # Purpose
//
// This package handles time-series data storage for:
//   - Canonical device field changes (power, brightness, colour, effects)
//   - Device availability transitions
//   - Gateway operational statistics
//
// # Usage
//
//	cfg := config.InfluxDBConfig{
//	    URL:    "http://localhost:8086",
//	    Token:  "your-token",
//	    Org:    "lumen",
//	    Bucket: "telemetry",
//	}
//
//	client, err := influxdb.Connect(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Record an accepted field change
//	client.WriteFieldChange("AA:BB:CC:DD", "H6159", "power",
//	    "lan_command", 1, "power=on", time.Now())
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are logged via a callback.
// Connection and health check errors are returned directly.
//
// # Performance
//
// Writes are batched according to config.yaml settings (batch_size, flush_interval).
// This reduces network overhead for high-frequency telemetry data.
package influxdb

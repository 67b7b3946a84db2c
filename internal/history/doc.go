// Package history records committed device status values to InfluxDB.
//
// It wraps the official influxdb-client-go v2 library with the
// connection-management and batching patterns used elsewhere in Tuya
// Fusion: a single Connect entry point, non-blocking batched writes,
// an async error callback and an explicit Close that flushes.
//
// # Data Model
//
// One point per committed status value:
//
//	measurement: device_status
//	tags:        device_id, code, source
//	fields:      value (float64) or value_str (string)
//
// Boolean values are stored as 0/1 in the value field so a switch
// timeline can be graphed alongside numeric channels.
//
// # Wiring
//
// The registry notifies listeners with (device id, committed codes).
// Listener adapts that callback shape onto the writer, reading the
// committed values through a DeviceLookup.
//
// # Thread Safety
//
// All methods are safe for concurrent use. Writes are non-blocking;
// batch errors are delivered via the SetOnError callback.
package history

package history

import (
	"fmt"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/tuya-fusion-core/internal/point"
)

// statusMeasurement is the measurement committed status values land in.
const statusMeasurement = "device_status"

// WriteStatus records one committed status value.
//
// Numeric values (and booleans, as 0/1) go into the value field;
// anything else is stringified into value_str. The write is
// non-blocking; data is batched and sent asynchronously.
func (c *Client) WriteStatus(deviceID, source, code string, value any) {
	if !c.IsConnected() {
		return
	}

	tags := map[string]string{
		"device_id": deviceID,
		"code":      code,
		"source":    source,
	}

	fields := make(map[string]interface{}, 1)
	if f, ok := toFloat(value); ok {
		fields["value"] = f
	} else {
		fields["value_str"] = fmt.Sprintf("%v", value)
	}

	c.writeAPI.WritePoint(write.NewPoint(statusMeasurement, tags, fields, time.Now()))
}

// toFloat coerces the value shapes that appear in a status container.
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
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// DeviceLookup resolves a device id to a point-in-time copy of its
// merged state. *registry.Manager satisfies it.
type DeviceLookup interface {
	Snapshot(id string) (*point.Device, bool)
}

// Listener adapts the registry's notification callback onto the
// writer: for each committed code it reads the value from a device
// snapshot and records it. A snapshot rather than the live device;
// the commit path keeps mutating the live containers.
func (c *Client) Listener(devices DeviceLookup) func(deviceID string, codes []string) {
	return func(deviceID string, codes []string) {
		dev, ok := devices.Snapshot(deviceID)
		if !ok {
			return
		}
		for _, code := range codes {
			value, ok := dev.Status[code]
			if !ok {
				continue
			}
			c.WriteStatus(deviceID, dev.Source, code, value)
		}
	}
}

package influxdb

import (
	"math"
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// TelemetryMeasurement is the measurement device telemetry is mirrored to.
const TelemetryMeasurement = "lwm2m_telemetry"

// Telemetry is one telemetry publish for a device.
type Telemetry struct {
	Endpoint string
	Device   string
	Profile  string

	// Values maps telemetry key names to rendered resource values.
	Values map[string]string

	// Time defaults to now.
	Time time.Time
}

// TelemetryPoint builds the point for t.
//
// Values that parse as finite numbers become float fields; everything else
// is written as a string field. Returns false when t has no values.
func TelemetryPoint(t Telemetry) (*write.Point, bool) {
	if len(t.Values) == 0 {
		return nil, false
	}

	fields := make(map[string]interface{}, len(t.Values))
	for key, raw := range t.Values {
		fields[key] = fieldValue(raw)
	}

	tags := map[string]string{
		"endpoint": t.Endpoint,
		"device":   t.Device,
	}
	if t.Profile != "" {
		tags["profile"] = t.Profile
	}

	ts := t.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	return write.NewPoint(TelemetryMeasurement, tags, fields, ts), true
}

func fieldValue(raw string) interface{} {
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return raw
	}
	return f
}

// WriteTelemetry mirrors a telemetry publish. The write is non-blocking;
// failures surface through the SetOnError callback.
//
// Example:
//
//	client.WriteTelemetry(influxdb.Telemetry{
//	    Endpoint: "urn:imei:3520990",
//	    Device:   "tracker-7",
//	    Values:   map[string]string{"batteryLevel": "87"},
//	})
func (c *Client) WriteTelemetry(t Telemetry) {
	if !c.IsConnected() {
		return
	}

	point, ok := TelemetryPoint(t)
	if !ok {
		return
	}
	c.writeAPI.WritePoint(point)
}

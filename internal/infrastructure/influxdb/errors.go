package influxdb

import "errors"

// Sentinel errors for the telemetry mirror. Write failures are asynchronous
// and reach the SetOnError callback instead.
var (
	ErrNotConnected = errors.New("influxdb: not connected")

	// ErrConnectionFailed is returned when the startup ping fails.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrDisabled is returned by Connect when influxdb.enabled is false.
	ErrDisabled = errors.New("influxdb: disabled in configuration")
)

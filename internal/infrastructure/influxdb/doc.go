// Package influxdb provides InfluxDB connectivity for the sync service.
//
// It wraps the official influxdb-client-go v2 library for connection
// management, batched writes and health monitoring. The backend uplink
// mirrors every telemetry publish into the lwm2m_telemetry measurement,
// tagged by endpoint, device and profile.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // telemetry mirroring off
//	}
//	defer client.Close()
//
//	client.WriteTelemetry(influxdb.Telemetry{
//	    Endpoint: "urn:imei:3520990",
//	    Device:   "tracker-7",
//	    Values:   map[string]string{"batteryLevel": "87"},
//	})
//
// # Error Handling
//
// Writes are non-blocking and batched (batch_size, flush_interval); write
// failures are delivered to the SetOnError callback. Connection and health
// check errors are returned directly.
package influxdb

// Package backend is the service's uplink to the device-management backend.
//
// Publisher implements engine.Backend. Session lifecycle, activity and
// reported values leave as JSON on the backend MQTT topics:
//
//	{backend}/{device}/attributes   retained
//	{backend}/{device}/telemetry
//	{backend}/{device}/session      retained, event open|close
//	{backend}/{device}/activity
//
// Telemetry is also mirrored to InfluxDB when enabled, and every report is
// broadcast to websocket clients on the "reports" channel.
//
// CredentialStore implements engine.Authenticator over the
// device_credentials table: a device may register only if its endpoint has
// an enabled credential, which also names its reporting profile.
package backend

// Package engine keeps a backend's view of LwM2M devices in sync with the
// devices' resources and their reporting profiles.
//
// The engine sits between a protocol stack (reads, observations and
// registrations) and a reporting backend (attributes, telemetry, session
// lifecycle). It is driven entirely by events:
//
//	OnRegistered     -> validate, open session, bulk-read declared instances
//	OnReadResponse   -> store values; the last discovery read runs the initial sync
//	OnValueChanged   -> replace one resource, publish it when reported
//	UpdateProfile    -> diff the profile and reconcile every session using it
//	OnDeregistered   -> close the session, drop late responses
//
// Profile snapshots are taken before a session lock and never inside it.
// Requests to the protocol and publishes to the backend are issued after the
// session lock is released.
package engine

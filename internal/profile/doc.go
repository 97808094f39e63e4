// Package profile implements reporting profiles: which resource paths of a
// device class are reported as attributes, which as telemetry, which are
// observed, and the display name each is published under.
//
// Profiles are compiled from a Definition into an immutable Snapshot. A
// Profile holds the current snapshot and is shared by every session of the
// class; replacement goes through Reconcile so the engine can compute the
// read/observe/cancel work for the change before the new snapshot becomes
// visible.
//
// Diff and Intersect are the set operations the reconciliation is built on.
// Diff returns nil for unchanged sets.
package profile

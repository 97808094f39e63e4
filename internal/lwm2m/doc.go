// Package lwm2m holds the device resource tree kept for each session.
//
// A device exposes objects, each object has numbered instances, and each
// instance carries resources. PathKey addresses any level of that tree;
// Model stores the values read from or pushed by the device.
//
// Value updates rebuild the affected Instance instead of mutating it, so
// callers that captured an Instance earlier keep reading a stable snapshot.
//
// Usage:
//
//	m := lwm2m.NewModel()
//	m.Upsert(3, 0, lwm2m.NewSingle(1, lwm2m.TypeString, "v1.0"))
//	v, ok := m.Lookup(lwm2m.MustParsePath("/3/0/1")) // "v1.0", true
package lwm2m

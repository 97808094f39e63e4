// Package lwm2m bridges the sync engine to an external LwM2M server stack
// over MQTT.
//
// The server stack terminates CoAP, runs registrations and sends requests to
// devices. This package is the engine's view of it:
//
//	┌──────────────┐  CBOR over MQTT  ┌─────────────┐   CoAP
//	│  sync engine │◄────────────────►│ LwM2M server│◄────────► devices
//	└──────────────┘                  └─────────────┘
//
// # Topics
//
// Inbound, all CBOR:
//
//	{server}/event/registered          RegistrationEvent
//	{server}/event/{updated|...}       LifecycleEvent
//	{server}/response/{registration}   Response
//	{server}/notify/{registration}     Notification
//	{server}/config/profile/{id}       profile.Definition
//
// Outbound:
//
//	{server}/command/{registration}    Command (CBOR)
//	{server}/bridge/status             HealthMessage (JSON, retained)
//
// # Values
//
// Resource values carry their LwM2M type name. Integers, floats, times and
// object links are normalised on decode so that the engine renders them
// the same way whatever CBOR encoding the server stack picked.
package lwm2m

package lwm2m

import (
	"time"

	"github.com/nerrad567/gray-logic-lwm2m/internal/engine"
)

// CBOR message types exchanged with the LwM2M server stack.

// RegistrationEvent announces a completed registration.
// Topic: {server}/event/registered
type RegistrationEvent struct {
	ID       string `cbor:"id"`
	Endpoint string `cbor:"endpoint"`

	// Identity is the security identity the device authenticated with.
	Identity string `cbor:"identity,omitempty"`

	// Lifetime is the registration lifetime in seconds.
	Lifetime int64  `cbor:"lifetime,omitempty"`
	Version  string `cbor:"version,omitempty"`
	Binding  string `cbor:"binding,omitempty"`

	// Links are the CoRE links of the registration payload.
	Links []string `cbor:"links"`

	Attributes map[string]string `cbor:"attributes,omitempty"`
}

// Registration converts the event into the engine's form.
func (e RegistrationEvent) Registration() engine.Registration {
	return engine.Registration{
		ID:          e.ID,
		Endpoint:    e.Endpoint,
		Identity:    e.Identity,
		Lifetime:    time.Duration(e.Lifetime) * time.Second,
		Version:     e.Version,
		Binding:     e.Binding,
		ObjectLinks: e.Links,
		Attributes:  e.Attributes,
	}
}

// LifecycleEvent carries the registration a lifecycle change applies to.
// Topic: {server}/event/{updated|deregistered|sleeping|awake}
type LifecycleEvent struct {
	ID string `cbor:"id"`
}

// ResourceValue is one resource as carried on the wire. Multi-instance
// resources use Values keyed by resource instance.
type ResourceValue struct {
	ID     int         `cbor:"id"`
	Type   string      `cbor:"type"`
	Value  any         `cbor:"value"`
	Values map[int]any `cbor:"values,omitempty"`
}

// Op is a request kind understood by the server stack.
type Op string

// Request kinds.
const (
	OpRead      Op = "read"
	OpObserve   Op = "observe"
	OpCancel    Op = "cancel"
	OpCancelAll Op = "cancel_all"
	OpExecute   Op = "execute"
)

// Command asks the server stack to send a request to a device.
// Topic: {server}/command/{registration_id}
type Command struct {
	RequestID string    `cbor:"request_id"`
	Timestamp time.Time `cbor:"ts"`
	Op        Op        `cbor:"op"`
	Path      string    `cbor:"path,omitempty"`
	Args      string    `cbor:"args,omitempty"`
}

// Response reports the outcome of a Command.
// Topic: {server}/response/{registration_id}
type Response struct {
	RequestID string          `cbor:"request_id"`
	Op        Op              `cbor:"op"`
	Path      string          `cbor:"path"`
	OK        bool            `cbor:"ok"`
	Error     string          `cbor:"error,omitempty"`
	Resources []ResourceValue `cbor:"resources,omitempty"`
}

// Notification carries observed values.
// Topic: {server}/notify/{registration_id}
type Notification struct {
	Path      string          `cbor:"path"`
	Resources []ResourceValue `cbor:"resources"`
}

// HealthStatus represents the operational status of the bridge.
type HealthStatus string

const (
	// HealthHealthy indicates the bridge is operating normally.
	HealthHealthy HealthStatus = "healthy"

	// HealthDegraded indicates the bridge is running without a broker connection.
	HealthDegraded HealthStatus = "degraded"

	// HealthStarting indicates the bridge is starting up.
	HealthStarting HealthStatus = "starting"

	// HealthStopping indicates the bridge is shutting down.
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage reports the bridge's operational status as JSON.
// Topic: {server}/bridge/status
// QoS: 1, Retained: Yes
type HealthMessage struct {
	Bridge        string       `json:"bridge"`
	Timestamp     time.Time    `json:"timestamp"`
	Status        HealthStatus `json:"status"`
	Version       string       `json:"version"`
	UptimeSeconds int64        `json:"uptime_seconds"`

	// Sessions is the number of sessions the engine currently holds.
	Sessions int `json:"sessions"`

	Statistics Statistics `json:"statistics"`
	Reason     string     `json:"reason,omitempty"`
}

// Statistics contains bridge counters.
type Statistics struct {
	MessagesReceived uint64 `json:"messages_received"`
	CommandsSent     uint64 `json:"commands_sent"`
	Errors           uint64 `json:"errors"`
}

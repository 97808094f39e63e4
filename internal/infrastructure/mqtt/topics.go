package mqtt

import (
	"fmt"

	"github.com/nerrad567/gray-logic-lwm2m/internal/infrastructure/config"
)

// Default topic roots.
//
// The server root carries traffic to and from the external LwM2M server
// stack. The backend root carries what this service reports upstream.
const (
	// DefaultServerPrefix is the root of the LwM2M server stack's topics.
	DefaultServerPrefix = "lwm2m"

	// DefaultBackendPrefix is the root of the backend uplink topics.
	DefaultBackendPrefix = "lwm2msync"
)

// Lifecycle event kinds published by the server stack.
const (
	EventRegistered   = "registered"
	EventUpdated      = "updated"
	EventDeregistered = "deregistered"
	EventSleeping     = "sleeping"
	EventAwake        = "awake"
)

// Topics builds the topics used by the service.
//
// A zero Topics uses the default roots:
//
//	topics := mqtt.Topics{}
//	topics.Command("reg-42")            // "lwm2m/command/reg-42"
//	topics.DeviceTelemetry("tracker-7") // "lwm2msync/tracker-7/telemetry"
type Topics struct {
	ServerPrefix  string
	BackendPrefix string
}

// TopicsFor returns the topic builder for the configured prefixes.
func TopicsFor(cfg config.MQTTConfig) Topics {
	return Topics{
		ServerPrefix:  cfg.Topics.ServerPrefix,
		BackendPrefix: cfg.Topics.BackendPrefix,
	}
}

func (t Topics) server() string {
	if t.ServerPrefix == "" {
		return DefaultServerPrefix
	}
	return t.ServerPrefix
}

func (t Topics) backend() string {
	if t.BackendPrefix == "" {
		return DefaultBackendPrefix
	}
	return t.BackendPrefix
}

// =============================================================================
// Server stack topics
// =============================================================================

// Event returns the topic for one lifecycle event kind.
//
// Example: lwm2m/event/registered
func (t Topics) Event(kind string) string {
	return fmt.Sprintf("%s/event/%s", t.server(), kind)
}

// Command returns the topic the server stack reads device requests from.
//
// Example: lwm2m/command/reg-42
func (t Topics) Command(registrationID string) string {
	return fmt.Sprintf("%s/command/%s", t.server(), registrationID)
}

// Response returns the topic carrying request outcomes for a registration.
//
// Example: lwm2m/response/reg-42
func (t Topics) Response(registrationID string) string {
	return fmt.Sprintf("%s/response/%s", t.server(), registrationID)
}

// Notify returns the topic carrying observation notifications.
//
// Example: lwm2m/notify/reg-42
func (t Topics) Notify(registrationID string) string {
	return fmt.Sprintf("%s/notify/%s", t.server(), registrationID)
}

// ProfileConfig returns the topic a profile definition is pushed on.
//
// Example: lwm2m/config/profile/5b0c...
func (t Topics) ProfileConfig(profileID string) string {
	return fmt.Sprintf("%s/config/profile/%s", t.server(), profileID)
}

// BridgeStatus returns the retained bridge health topic.
//
// Example: lwm2m/bridge/status
func (t Topics) BridgeStatus() string {
	return fmt.Sprintf("%s/bridge/status", t.server())
}

// =============================================================================
// Backend topics
// =============================================================================

// DeviceAttributes returns the attribute topic for a device.
//
// Example: lwm2msync/tracker-7/attributes
func (t Topics) DeviceAttributes(device string) string {
	return fmt.Sprintf("%s/%s/attributes", t.backend(), device)
}

// DeviceTelemetry returns the telemetry topic for a device.
//
// Example: lwm2msync/tracker-7/telemetry
func (t Topics) DeviceTelemetry(device string) string {
	return fmt.Sprintf("%s/%s/telemetry", t.backend(), device)
}

// DeviceSession returns the session lifecycle topic for a device.
//
// Example: lwm2msync/tracker-7/session
func (t Topics) DeviceSession(device string) string {
	return fmt.Sprintf("%s/%s/session", t.backend(), device)
}

// DeviceActivity returns the activity topic for a device.
//
// Example: lwm2msync/tracker-7/activity
func (t Topics) DeviceActivity(device string) string {
	return fmt.Sprintf("%s/%s/activity", t.backend(), device)
}

// SystemStatus returns the service's own online/offline topic.
//
// Example: lwm2msync/system/status
func (t Topics) SystemStatus() string {
	return fmt.Sprintf("%s/system/status", t.backend())
}

// =============================================================================
// Wildcard Patterns for Subscriptions
// =============================================================================

// AllEvents matches every lifecycle event.
//
// Pattern: lwm2m/event/+
func (t Topics) AllEvents() string {
	return fmt.Sprintf("%s/event/+", t.server())
}

// AllResponses matches every request outcome.
//
// Pattern: lwm2m/response/+
func (t Topics) AllResponses() string {
	return fmt.Sprintf("%s/response/+", t.server())
}

// AllNotifications matches every observation notification.
//
// Pattern: lwm2m/notify/+
func (t Topics) AllNotifications() string {
	return fmt.Sprintf("%s/notify/+", t.server())
}

// AllProfileConfigs matches every pushed profile definition.
//
// Pattern: lwm2m/config/profile/+
func (t Topics) AllProfileConfigs() string {
	return fmt.Sprintf("%s/config/profile/+", t.server())
}

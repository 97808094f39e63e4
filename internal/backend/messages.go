package backend

import (
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-lwm2m/internal/engine"
	"github.com/nerrad567/gray-logic-lwm2m/internal/session"
)

// JSON payloads published on the backend topics.

// Device identifies the device a message is about.
type Device struct {
	SessionID      uuid.UUID `json:"session_id"`
	RegistrationID string    `json:"registration_id"`
	Endpoint       string    `json:"endpoint"`
	Name           string    `json:"name"`
	Type           string    `json:"type,omitempty"`
	ProfileID      uuid.UUID `json:"profile_id"`
}

func deviceOf(info session.Info) Device {
	return Device{
		SessionID:      info.SessionID,
		RegistrationID: info.RegistrationID,
		Endpoint:       info.Endpoint,
		Name:           info.DeviceName,
		Type:           info.DeviceType,
		ProfileID:      info.ProfileID,
	}
}

// ReportMessage carries reported values for one category.
// Topic: {backend}/{device}/attributes (retained) or {backend}/{device}/telemetry
type ReportMessage struct {
	Device    Device            `json:"device"`
	Category  engine.Category   `json:"category"`
	Timestamp time.Time         `json:"timestamp"`
	Values    map[string]string `json:"values"`
}

// SessionEvent is the kind of a session lifecycle message.
type SessionEvent string

// Session lifecycle events.
const (
	SessionOpened SessionEvent = "open"
	SessionClosed SessionEvent = "close"
)

// SessionMessage announces a session opening or closing.
// Topic: {backend}/{device}/session (retained)
type SessionMessage struct {
	Device    Device       `json:"device"`
	Event     SessionEvent `json:"event"`
	Timestamp time.Time    `json:"timestamp"`
}

// ActivityMessage says a session is still alive.
// Topic: {backend}/{device}/activity
type ActivityMessage struct {
	Device    Device    `json:"device"`
	Timestamp time.Time `json:"timestamp"`
}

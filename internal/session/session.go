package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-lwm2m/internal/lwm2m"
	"github.com/nerrad567/gray-logic-lwm2m/internal/profile"
)

// Phase is the lifecycle position of a session.
type Phase int

// Session phases, in lifecycle order.
const (
	PhaseRegistering Phase = iota
	PhaseActive
	PhaseClosing
	PhaseClosed
)

// String returns the lowercase phase name.
func (p Phase) String() string {
	switch p {
	case PhaseRegistering:
		return "registering"
	case PhaseActive:
		return "active"
	case PhaseClosing:
		return "closing"
	case PhaseClosed:
		return "closed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// MarshalText lets phases appear by name in JSON.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText parses a phase name produced by MarshalText.
func (p *Phase) UnmarshalText(text []byte) error {
	switch string(text) {
	case "registering":
		*p = PhaseRegistering
	case "active":
		*p = PhaseActive
	case "closing":
		*p = PhaseClosing
	case "closed":
		*p = PhaseClosed
	default:
		return fmt.Errorf("%w: %q", ErrUnknownPhase, text)
	}
	return nil
}

var transitions = map[Phase][]Phase{
	PhaseRegistering: {PhaseActive, PhaseClosing},
	PhaseActive:      {PhaseClosing},
	PhaseClosing:     {PhaseClosed},
}

func (p Phase) canMoveTo(next Phase) bool {
	for _, allowed := range transitions[p] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Identity is what credential validation resolves a device to.
type Identity struct {
	DeviceName string
	DeviceType string
	ProfileID  uuid.UUID
}

// Info identifies a session to the backend.
type Info struct {
	SessionID      uuid.UUID `json:"sessionId"`
	RegistrationID string    `json:"registrationId"`
	Endpoint       string    `json:"endpoint"`
	DeviceName     string    `json:"deviceName"`
	DeviceType     string    `json:"deviceType,omitempty"`
	ProfileID      uuid.UUID `json:"profileId"`
}

// State is the mutable part of a session. It is only reachable through
// Session.Locked.
type State struct {
	Phase Phase

	// Model is owned exclusively by this session.
	Model *lwm2m.Model

	// Observed holds the resource paths with an observation requested.
	Observed profile.Set

	// Reads holds resource paths read on behalf of a profile change that
	// have not completed yet.
	Reads profile.Set

	// Synced is set once the initial extraction pass has run.
	Synced bool

	// Profile is the newest profile snapshot this session has been planned
	// against, and ProfileVersion its version. Zero until first adopted.
	Profile        *profile.Snapshot
	ProfileVersion uint64

	LastActivity time.Time
}

// Transition moves the session to next, enforcing the lifecycle order
// Registering → Active → Closing → Closed.
func (st *State) Transition(next Phase) error {
	if !st.Phase.canMoveTo(next) {
		return fmt.Errorf("%w: %s → %s", ErrInvalidTransition, st.Phase, next)
	}
	st.Phase = next
	return nil
}

// Adopt records snap as the session's profile snapshot unless a newer
// version is already recorded, and returns whichever snapshot is newer.
//
// Snapshots are read outside the session lock, so a reconcile may have
// planned this session against a newer one in between; Adopt keeps such a
// read from acting on the outgoing configuration.
func (st *State) Adopt(snap *profile.Snapshot, version uint64) *profile.Snapshot {
	if st.Profile != nil && st.ProfileVersion >= version {
		return st.Profile
	}
	st.Profile, st.ProfileVersion = snap, version
	return snap
}

// Session is the live server-side state for one registered device.
//
// The identifying fields are fixed at creation. Everything else lives in
// State behind the session's own mutex, so work on one session never waits
// on another.
type Session struct {
	ID             uuid.UUID
	RegistrationID string
	Endpoint       string
	ProfileID      uuid.UUID
	Device         Identity
	CreatedAt      time.Time

	// Attributes are the additional attributes the device sent with its
	// registration. Set before the session is added to a Registry.
	Attributes map[string]string

	mu    sync.Mutex
	state State
}

// New creates a session in the Registering phase with an empty model.
func New(registrationID, endpoint string, device Identity) *Session {
	now := time.Now()
	return &Session{
		ID:             uuid.New(),
		RegistrationID: registrationID,
		Endpoint:       endpoint,
		ProfileID:      device.ProfileID,
		Device:         device,
		CreatedAt:      now,
		state: State{
			Phase:        PhaseRegistering,
			Model:        lwm2m.NewModel(),
			Observed:     profile.Set{},
			Reads:        profile.Set{},
			LastActivity: now,
		},
	}
}

// Locked runs fn inside the session's exclusive section.
// fn must not block on network I/O.
func (s *Session) Locked(fn func(st *State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.state)
}

// Phase returns the current phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Phase
}

// Info returns the backend-facing identity of the session.
func (s *Session) Info() Info {
	return Info{
		SessionID:      s.ID,
		RegistrationID: s.RegistrationID,
		Endpoint:       s.Endpoint,
		DeviceName:     s.Device.DeviceName,
		DeviceType:     s.Device.DeviceType,
		ProfileID:      s.ProfileID,
	}
}

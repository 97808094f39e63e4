package session

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-lwm2m/internal/profile"
)

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry maps registration ids to sessions and profile ids to the shared
// profiles those sessions report with.
//
// A profile stays registered while any session references it. References are
// counted by scanning the sessions on release rather than by a stored
// counter; profile churn is rare next to session churn.
//
// All public methods are thread-safe. The registry lock is never held while
// a session lock is taken.
type Registry struct {
	mu        sync.RWMutex
	sessions  map[string]*Session // by registration id
	endpoints map[string]string   // endpoint → registration id
	profiles  map[uuid.UUID]*profile.Profile
	logger    Logger
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions:  make(map[string]*Session),
		endpoints: make(map[string]string),
		profiles:  make(map[uuid.UUID]*profile.Profile),
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// Add registers s. If another session already holds s.Endpoint, that session
// is unlinked and returned so the caller can tear it down.
func (r *Registry) Add(s *Session) (superseded *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prevReg, ok := r.endpoints[s.Endpoint]; ok && prevReg != s.RegistrationID {
		superseded = r.sessions[prevReg]
		delete(r.sessions, prevReg)
	}
	if prev, ok := r.sessions[s.RegistrationID]; ok && prev != s {
		if r.endpoints[prev.Endpoint] == s.RegistrationID {
			delete(r.endpoints, prev.Endpoint)
		}
		if superseded == nil {
			superseded = prev
		}
	}

	r.sessions[s.RegistrationID] = s
	r.endpoints[s.Endpoint] = s.RegistrationID

	r.logger.Debug("session added",
		"registration_id", s.RegistrationID,
		"endpoint", s.Endpoint,
		"session_id", s.ID.String(),
	)
	return superseded
}

// Get returns the session for a registration id.
func (r *Registry) Get(registrationID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[registrationID]
	return s, ok
}

// Delete unlinks s only if it is still the session registered under its
// registration id. Reports whether it was removed.
func (r *Registry) Delete(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.sessions[s.RegistrationID]; !ok || cur != s {
		return false
	}
	delete(r.sessions, s.RegistrationID)
	if r.endpoints[s.Endpoint] == s.RegistrationID {
		delete(r.endpoints, s.Endpoint)
	}
	return true
}

// Sessions returns every session ordered by endpoint.
func (r *Registry) Sessions() []*Session {
	r.mu.RLock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Endpoint != out[j].Endpoint {
			return out[i].Endpoint < out[j].Endpoint
		}
		return out[i].RegistrationID < out[j].RegistrationID
	})
	return out
}

// SessionsForProfile returns the sessions reporting with profile id.
func (r *Registry) SessionsForProfile(id uuid.UUID) []*Session {
	var out []*Session
	for _, s := range r.Sessions() {
		if s.ProfileID == id {
			out = append(out, s)
		}
	}
	return out
}

// Len returns the number of sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Profile returns a registered profile.
func (r *Registry) Profile(id uuid.UUID) (*profile.Profile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.profiles[id]
	return p, ok
}

// PutProfile registers p unless a profile with the same id is already
// present, and returns the registered one.
func (r *Registry) PutProfile(p *profile.Profile) *profile.Profile {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.profiles[p.ID]; ok {
		return existing
	}
	r.profiles[p.ID] = p
	return p
}

// ReleaseProfile drops the profile when no session references it.
// Reports whether it was removed.
func (r *Registry) ReleaseProfile(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.profiles[id]; !ok {
		return false
	}
	for _, s := range r.sessions {
		if s.ProfileID == id {
			return false
		}
	}
	delete(r.profiles, id)
	r.logger.Debug("profile released", "profile_id", id.String())
	return true
}

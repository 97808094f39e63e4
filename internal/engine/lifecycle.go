package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-lwm2m/internal/session"
)

// OnRegistered handles a completed device registration.
//
// The device is validated first; a rejected device leaves no session behind.
// On success any earlier session for the same endpoint is closed, a new
// session is created, the backend is told the session is open, and one read
// is sent per declared instance. The initial sync runs when the last of
// those reads resolves, or straight away when the device declared no
// instances.
func (e *Engine) OnRegistered(ctx context.Context, reg Registration) error {
	identity, err := e.auth.ValidateCredentials(ctx, reg)
	if err != nil {
		if !errors.Is(err, ErrUnauthorized) {
			err = fmt.Errorf("%w: %w", ErrUnauthorized, err)
		}
		e.logWarn("registration rejected",
			"registration_id", reg.ID,
			"endpoint", reg.Endpoint,
			"error", err,
		)
		return err
	}

	if _, err := e.sessionProfile(ctx, identity.ProfileID); err != nil {
		e.logError("registration dropped", err, "registration_id", reg.ID, "endpoint", reg.Endpoint)
		return err
	}

	s := session.New(reg.ID, reg.Endpoint, identity)
	if len(reg.Attributes) > 0 {
		s.Attributes = make(map[string]string, len(reg.Attributes))
		for k, v := range reg.Attributes {
			s.Attributes[k] = v
		}
	}

	if prev := e.registry.Add(s); prev != nil {
		e.logInfo("replacing session for endpoint",
			"endpoint", reg.Endpoint,
			"previous_registration_id", prev.RegistrationID,
			"registration_id", reg.ID,
		)
		e.closeSession(ctx, prev)
	}

	// A concurrent close may have released the profile between the load
	// above and Add; the session now references it, so re-register.
	if _, err := e.sessionProfile(ctx, identity.ProfileID); err != nil {
		e.logError("profile lost during registration", err, "registration_id", reg.ID)
	}

	paths := reg.DeclaredPaths()
	s.Locked(func(st *session.State) {
		for _, p := range paths {
			st.Model.AddPending(p)
		}
	})

	cctx, cancel := e.bounded(ctx)
	if err := e.backend.SessionOpen(cctx, s.Info()); err != nil {
		e.logError("backend session open failed", err, "endpoint", reg.Endpoint)
	}
	cancel()

	var transErr error
	s.Locked(func(st *session.State) {
		transErr = st.Transition(session.PhaseActive)
	})
	if transErr != nil {
		// Deregistered while the backend was being notified.
		e.logDebug("session closed during registration", "registration_id", reg.ID, "error", transErr)
		return nil
	}

	e.logInfo("session opened",
		"registration_id", reg.ID,
		"endpoint", reg.Endpoint,
		"session_id", s.ID.String(),
		"profile_id", s.ProfileID.String(),
		"instances", len(paths),
	)

	if len(paths) == 0 {
		e.completeDiscovery(ctx, s)
		return nil
	}

	e.armDiscovery(s)
	for _, p := range paths {
		rctx, rcancel := e.bounded(ctx)
		err := e.protocol.Read(rctx, reg.ID, p)
		rcancel()
		if err != nil {
			e.logError("discovery read failed", err, "registration_id", reg.ID, "path", p.String())
			e.resolveDiscovery(ctx, s, p)
		}
	}
	return nil
}

// OnUpdated handles a registration update. It refreshes the session's
// activity timestamp and does not touch the resource model.
func (e *Engine) OnUpdated(_ context.Context, registrationID string) error {
	s, ok := e.registry.Get(registrationID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, registrationID)
	}
	s.Locked(func(st *session.State) { st.LastActivity = time.Now() })
	e.logInfo("registration updated", "registration_id", registrationID, "endpoint", s.Endpoint)
	return nil
}

// OnDeregistered closes the session for registrationID.
//
// Safe to call concurrently with in-flight reads and notifications; those
// are dropped once the registry no longer resolves the registration.
func (e *Engine) OnDeregistered(ctx context.Context, registrationID string) error {
	s, ok := e.registry.Get(registrationID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, registrationID)
	}
	e.closeSession(ctx, s)
	e.logInfo("session closed", "registration_id", registrationID, "endpoint", s.Endpoint)
	return nil
}

// OnSleeping records that a queue-mode device went to sleep.
func (e *Engine) OnSleeping(_ context.Context, registrationID string) error {
	s, ok := e.registry.Get(registrationID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, registrationID)
	}
	e.logInfo("device sleeping", "registration_id", registrationID, "endpoint", s.Endpoint)
	return nil
}

// OnAwake records that a queue-mode device woke up.
func (e *Engine) OnAwake(_ context.Context, registrationID string) error {
	s, ok := e.registry.Get(registrationID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, registrationID)
	}
	s.Locked(func(st *session.State) { st.LastActivity = time.Now() })
	e.logInfo("device awake", "registration_id", registrationID, "endpoint", s.Endpoint)
	return nil
}

// closeSession moves s through Closing to Closed, tells the backend, unlinks
// it from the registry and releases its profile when nothing else uses it.
func (e *Engine) closeSession(ctx context.Context, s *session.Session) {
	var already bool
	s.Locked(func(st *session.State) {
		if st.Phase == session.PhaseClosing || st.Phase == session.PhaseClosed {
			already = true
			return
		}
		_ = st.Transition(session.PhaseClosing) //nolint:errcheck // Registering and Active may both close
	})
	if already {
		return
	}

	e.disarmDiscovery(s.ID)

	cctx, cancel := e.bounded(ctx)
	if err := e.backend.SessionClose(cctx, s.Info()); err != nil {
		e.logError("backend session close failed", err, "endpoint", s.Endpoint)
	}
	cancel()

	e.registry.Delete(s)
	e.registry.ReleaseProfile(s.ProfileID)

	s.Locked(func(st *session.State) {
		_ = st.Transition(session.PhaseClosed) //nolint:errcheck // only this path leaves Closing
	})
}

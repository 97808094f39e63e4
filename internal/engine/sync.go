package engine

import (
	"context"
	"fmt"

	"github.com/nerrad567/gray-logic-lwm2m/internal/lwm2m"
	"github.com/nerrad567/gray-logic-lwm2m/internal/profile"
	"github.com/nerrad567/gray-logic-lwm2m/internal/session"
)

// OnReadResponse applies the outcome of a read sent to a device.
//
// resources holds the instance's resources for an instance read, or the
// single resource for a resource read. A non-nil readErr leaves the target
// absent. Responses for registrations that are no longer known are dropped
// and reported as ErrSessionNotFound.
func (e *Engine) OnReadResponse(ctx context.Context, registrationID string, path lwm2m.PathKey, resources []lwm2m.Resource, readErr error) error {
	s, ok := e.registry.Get(registrationID)
	if !ok {
		e.logDebug("dropping read response", "registration_id", registrationID, "path", path.String())
		return fmt.Errorf("%w: %s", ErrSessionNotFound, registrationID)
	}
	if readErr != nil {
		e.logWarn("read failed", "registration_id", registrationID, "path", path.String(), "error", readErr)
	}
	return e.applyRead(ctx, s, path, resources, readErr)
}

// resolveDiscovery marks a discovery read as finished without a value.
func (e *Engine) resolveDiscovery(ctx context.Context, s *session.Session, path lwm2m.PathKey) {
	_ = e.applyRead(ctx, s, path, nil, errReadNotSent) //nolint:errcheck // inactive sessions are ignored here
}

func (e *Engine) applyRead(ctx context.Context, s *session.Session, path lwm2m.PathKey, resources []lwm2m.Resource, readErr error) error {
	current, version := e.snapshotFor(s)

	var (
		a        actions
		inactive bool
		synced   bool
	)
	s.Locked(func(st *session.State) {
		if st.Phase != session.PhaseActive {
			inactive = true
			return
		}
		snap := st.Adopt(current, version)
		if readErr == nil {
			storeRead(st.Model, path, resources)
		}
		delete(st.Reads, path.String())

		if path.IsInstance() && st.Model.ResolvePending(path) {
			if st.Model.PendingCount() == 0 && !st.Synced {
				a = initialSync(s, st, snap)
				synced = true
			}
			return
		}
		if readErr == nil && st.Synced {
			a = followUp(st, snap, path)
		}
	})

	if inactive {
		return fmt.Errorf("%w: %s", ErrSessionNotActive, s.RegistrationID)
	}
	if synced {
		e.disarmDiscovery(s.ID)
		e.logInfo("initial sync complete", "registration_id", s.RegistrationID, "endpoint", s.Endpoint)
	}
	e.dispatch(ctx, s, a)
	return nil
}

// storeRead upserts the resources returned for path.
func storeRead(m *lwm2m.Model, path lwm2m.PathKey, resources []lwm2m.Resource) {
	switch {
	case path.IsResource():
		for _, r := range resources {
			r.ID = path.ResourceID
			m.Upsert(path.ObjectID, path.InstanceID, r)
		}
	case path.IsInstance():
		for _, r := range resources {
			m.Upsert(path.ObjectID, path.InstanceID, r)
		}
	}
}

// discoveryTimedOut runs the initial sync with whatever has been read so far.
func (e *Engine) discoveryTimedOut(s *session.Session) {
	e.disarmDiscovery(s.ID)
	if cur, ok := e.registry.Get(s.RegistrationID); !ok || cur != s {
		return
	}

	current, version := e.snapshotFor(s)
	var (
		a       actions
		missing []lwm2m.PathKey
		run     bool
	)
	s.Locked(func(st *session.State) {
		if st.Phase != session.PhaseActive || st.Synced {
			return
		}
		missing = st.Model.ClearPending()
		a = initialSync(s, st, st.Adopt(current, version))
		run = true
	})
	if !run {
		return
	}

	e.logWarn("discovery timed out",
		"registration_id", s.RegistrationID,
		"endpoint", s.Endpoint,
		"unanswered", len(missing),
	)
	e.dispatch(e.ctx, s, a)
}

// completeDiscovery runs the initial sync for a session with nothing to read.
func (e *Engine) completeDiscovery(ctx context.Context, s *session.Session) {
	current, version := e.snapshotFor(s)
	var a actions
	s.Locked(func(st *session.State) {
		if st.Phase != session.PhaseActive || st.Synced {
			return
		}
		a = initialSync(s, st, st.Adopt(current, version))
	})
	e.dispatch(ctx, s, a)
}

// initialSync performs the one full extraction pass of a session and plans
// its observations. Pre-existing observations for the registration are
// cancelled unconditionally before any new one is started.
func initialSync(s *session.Session, st *session.State, snap *profile.Snapshot) actions {
	var a actions
	st.Synced = true

	attrs, tele := extract(snap, st.Model, "")
	for k, v := range s.Attributes {
		if _, taken := attrs[k]; !taken {
			attrs[k] = v
		}
	}
	a.addReports(attrs, tele)

	a.cancelAll = true
	st.Observed = profile.Set{}
	for _, p := range snap.DesiredObservations().Sorted() {
		key, err := lwm2m.ParsePath(p)
		if err != nil || !st.Model.Has(key) {
			continue
		}
		st.Observed.Add(p)
		a.observe = append(a.observe, key)
	}
	return a
}

// followUp publishes the reported paths under target and starts any
// observation they now qualify for. Used for reads that complete after the
// initial sync.
func followUp(st *session.State, snap *profile.Snapshot, target lwm2m.PathKey) actions {
	var a actions
	attrs := make(map[string]string)
	tele := make(map[string]string)
	desired := snap.DesiredObservations()

	for _, p := range snap.Reported().Sorted() {
		key, err := lwm2m.ParsePath(p)
		if err != nil || !key.IsResource() || !target.Contains(key) {
			continue
		}
		at, te := extract(snap, st.Model, p)
		mergeInto(attrs, at)
		mergeInto(tele, te)

		if desired.Has(p) && !st.Observed.Has(p) && st.Model.Has(key) {
			st.Observed.Add(p)
			a.observe = append(a.observe, key)
		}
	}
	a.addReports(attrs, tele)
	return a
}

func mergeInto(dst, src map[string]string) {
	for k, v := range src {
		dst[k] = v
	}
}

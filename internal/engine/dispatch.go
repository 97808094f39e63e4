package engine

import (
	"context"

	"github.com/nerrad567/gray-logic-lwm2m/internal/lwm2m"
	"github.com/nerrad567/gray-logic-lwm2m/internal/profile"
	"github.com/nerrad567/gray-logic-lwm2m/internal/session"
)

// report is one category batch ready for the backend.
type report struct {
	category Category
	values   map[string]string
}

// actions is the outbound work decided inside a session's exclusive
// section and carried out after it is released.
type actions struct {
	reports   []report
	cancelAll bool
	cancel    []lwm2m.PathKey
	observe   []lwm2m.PathKey
	reads     []lwm2m.PathKey
}

func (a *actions) addReports(attrs, tele map[string]string) {
	if len(attrs) > 0 {
		a.reports = append(a.reports, report{category: CategoryAttributes, values: attrs})
	}
	if len(tele) > 0 {
		a.reports = append(a.reports, report{category: CategoryTelemetry, values: tele})
	}
}

func (a *actions) empty() bool {
	return len(a.reports) == 0 && !a.cancelAll && len(a.cancel) == 0 &&
		len(a.observe) == 0 && len(a.reads) == 0
}

// extract builds the attribute and telemetry maps from the model.
//
// With only set, the pass is restricted to that single path. Paths that are
// not concrete resources, have no display name or have no stored value are
// skipped.
func extract(snap *profile.Snapshot, m *lwm2m.Model, only string) (attrs, tele map[string]string) {
	return extractSet(snap, snap.Attributes, m, only), extractSet(snap, snap.Telemetry, m, only)
}

func extractSet(snap *profile.Snapshot, paths profile.Set, m *lwm2m.Model, only string) map[string]string {
	out := make(map[string]string)
	for p := range paths {
		if only != "" && p != only {
			continue
		}
		key, err := lwm2m.ParsePath(p)
		if err != nil || !key.IsResource() {
			continue
		}
		name, ok := snap.KeyName(p)
		if !ok {
			continue
		}
		value, ok := m.Lookup(key)
		if !ok {
			continue
		}
		out[name] = value
	}
	return out
}

// dispatch carries out a.
//
// Order: publish, cancel everything, cancel individual paths, observe, read.
// Each call is bounded by the command timeout and failures are logged. A
// failed observe or read is rolled back in the session's bookkeeping so a
// later sync can retry it.
func (e *Engine) dispatch(ctx context.Context, s *session.Session, a actions) {
	if a.empty() {
		return
	}
	info := s.Info()

	for _, r := range a.reports {
		e.publish(ctx, info, r)
	}

	if a.cancelAll {
		cctx, cancel := e.bounded(ctx)
		err := e.protocol.CancelAllObservations(cctx, s.RegistrationID)
		cancel()
		if err != nil {
			e.logError("cancel all observations failed", err, "registration_id", s.RegistrationID)
		}
	}

	for _, p := range a.cancel {
		cctx, cancel := e.bounded(ctx)
		err := e.protocol.CancelObservation(cctx, s.RegistrationID, p)
		cancel()
		if err != nil {
			e.logError("cancel observation failed", err, "registration_id", s.RegistrationID, "path", p.String())
		}
	}

	for _, p := range a.observe {
		cctx, cancel := e.bounded(ctx)
		err := e.protocol.Observe(cctx, s.RegistrationID, p)
		cancel()
		if err != nil {
			e.logError("observe request failed", err, "registration_id", s.RegistrationID, "path", p.String())
			key := p.String()
			s.Locked(func(st *session.State) { delete(st.Observed, key) })
		}
	}

	for _, p := range a.reads {
		cctx, cancel := e.bounded(ctx)
		err := e.protocol.Read(cctx, s.RegistrationID, p)
		cancel()
		if err != nil {
			e.logError("read request failed", err, "registration_id", s.RegistrationID, "path", p.String())
			key := p.String()
			s.Locked(func(st *session.State) { delete(st.Reads, key) })
		}
	}
}

func (e *Engine) publish(ctx context.Context, info session.Info, r report) {
	cctx, cancel := e.bounded(ctx)
	defer cancel()

	if err := e.backend.Publish(cctx, r.category, r.values, info); err != nil {
		e.logError("backend publish failed", err,
			"endpoint", info.Endpoint,
			"category", string(r.category),
			"keys", len(r.values),
		)
		return
	}
	e.logDebug("published", "endpoint", info.Endpoint, "category", string(r.category), "keys", len(r.values))
}

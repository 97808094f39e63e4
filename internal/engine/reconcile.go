package engine

import (
	"context"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-lwm2m/internal/lwm2m"
	"github.com/nerrad567/gray-logic-lwm2m/internal/profile"
	"github.com/nerrad567/gray-logic-lwm2m/internal/session"
)

// ReconcileResult summarises the work a profile update issued.
type ReconcileResult struct {
	Changed  bool `json:"changed"`
	Sessions int  `json:"sessions"`
	Reads    int  `json:"reads"`
	Observes int  `json:"observes"`
	Cancels  int  `json:"cancels"`
	Skipped  int  `json:"skipped"`
}

// UpdateProfile replaces the profile id with def and brings every session
// that reports with it in line.
//
// Per session:
//   - paths newly reported that have no stored value and were not reported
//     before are read once; a path moving between attributes and telemetry
//     is only republished
//   - newly reported paths that already have a value are published under
//     every category that now holds them
//   - the desired observations are observe ∩ (attributes ∪ telemetry);
//     observations outside that set are cancelled once, missing ones with a
//     value are started
//
// Malformed entries in def are skipped individually. Every session is planned
// against the new snapshot before it becomes visible; the requests are issued
// after the swap, outside the profile lock. Updates are applied one at a time.
// When no session uses the profile there is nothing to reconcile and the next
// registration loads def from the profile source.
func (e *Engine) UpdateProfile(ctx context.Context, id uuid.UUID, def profile.Definition) (ReconcileResult, error) {
	next, skipped := profile.Compile(def)
	for _, err := range skipped {
		e.logWarn("skipping profile entry", "profile_id", id.String(), "error", err)
	}
	res := ReconcileResult{Skipped: len(skipped)}

	e.reconcileMu.Lock()
	defer e.reconcileMu.Unlock()

	prof, ok := e.registry.Profile(id)
	if !ok {
		e.logDebug("profile not in use, nothing to reconcile", "profile_id", id.String())
		return res, nil
	}

	type pending struct {
		s *session.Session
		a actions
	}
	var work []pending

	res.Changed = prof.Reconcile(next, func(old, next *profile.Snapshot, version uint64) {
		plan := newReconcilePlan(old, next)
		for _, s := range e.registry.SessionsForProfile(id) {
			var a actions
			s.Locked(func(st *session.State) {
				st.Adopt(next, version)
				if st.Phase != session.PhaseActive {
					return
				}
				a = plan.apply(st)
			})
			if !a.empty() {
				work = append(work, pending{s: s, a: a})
			}
		}
	})

	for _, w := range work {
		res.Sessions++
		res.Reads += len(w.a.reads)
		res.Observes += len(w.a.observe)
		res.Cancels += len(w.a.cancel)
		e.dispatch(ctx, w.s, w.a)
	}

	if res.Changed {
		e.logInfo("profile reconciled",
			"profile_id", id.String(),
			"sessions", res.Sessions,
			"reads", res.Reads,
			"observes", res.Observes,
			"cancels", res.Cancels,
		)
	}
	return res, nil
}

// reconcilePlan holds the session-independent part of a profile change.
type reconcilePlan struct {
	noop        bool
	next        *profile.Snapshot
	oldReported profile.Set
	added       []string // attribute or telemetry additions, sorted
	desired     profile.Set
}

func newReconcilePlan(old, next *profile.Snapshot) reconcilePlan {
	attrDiff := profile.Diff(old.Attributes, next.Attributes)
	teleDiff := profile.Diff(old.Telemetry, next.Telemetry)
	obsDiff := profile.Diff(old.Observe, next.Observe)
	if attrDiff == nil && teleDiff == nil && obsDiff == nil {
		// only display names changed
		return reconcilePlan{noop: true}
	}

	return reconcilePlan{
		next:        next,
		oldReported: old.Reported(),
		added:       attrDiff.AddedPaths().Union(teleDiff.AddedPaths()).Sorted(),
		desired:     next.DesiredObservations(),
	}
}

// apply plans one session's reads, publishes, observes and cancels.
// It runs inside the session's exclusive section.
func (p reconcilePlan) apply(st *session.State) actions {
	var a actions
	if p.noop {
		return a
	}

	var publish []string
	for _, path := range p.added {
		key, err := lwm2m.ParsePath(path)
		if err != nil || !key.IsResource() {
			continue
		}
		switch {
		case st.Model.Has(key):
			publish = append(publish, path)
		case p.oldReported.Has(path), st.Reads.Has(path):
			// moved between categories, or already being read
		default:
			st.Reads.Add(path)
			a.reads = append(a.reads, key)
		}
	}

	if len(publish) > 0 {
		attrs := make(map[string]string)
		tele := make(map[string]string)
		for _, path := range publish {
			at, te := extract(p.next, st.Model, path)
			mergeInto(attrs, at)
			mergeInto(tele, te)
		}
		a.addReports(attrs, tele)
	}

	// Before the initial sync the observation set is decided there.
	if !st.Synced {
		return a
	}

	for _, path := range st.Observed.Sorted() {
		if p.desired.Has(path) {
			continue
		}
		key, err := lwm2m.ParsePath(path)
		delete(st.Observed, path)
		if err != nil {
			continue
		}
		a.cancel = append(a.cancel, key)
	}

	for _, path := range p.desired.Sorted() {
		if st.Observed.Has(path) {
			continue
		}
		key, err := lwm2m.ParsePath(path)
		if err != nil || !st.Model.Has(key) {
			continue
		}
		st.Observed.Add(path)
		a.observe = append(a.observe, key)
	}

	return a
}

package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-lwm2m/internal/lwm2m"
	"github.com/nerrad567/gray-logic-lwm2m/internal/session"
)

// ResourceView is one rendered resource of a session.
type ResourceView struct {
	Path  string             `json:"path"`
	Type  lwm2m.ResourceType `json:"type"`
	Value string             `json:"value"`
}

// SessionView is a read-only snapshot of a session for operators.
type SessionView struct {
	session.Info
	Phase        session.Phase  `json:"phase"`
	Synced       bool           `json:"synced"`
	CreatedAt    time.Time      `json:"createdAt"`
	LastActivity time.Time      `json:"lastActivity"`
	Pending      int            `json:"pending"`
	Observed     []string       `json:"observed"`
	Resources    []ResourceView `json:"resources,omitempty"`
}

// Sessions returns a summary of every session, without resources.
func (e *Engine) Sessions() []SessionView {
	all := e.registry.Sessions()
	out := make([]SessionView, 0, len(all))
	for _, s := range all {
		v, _ := view(s)
		out = append(out, v)
	}
	return out
}

// Session returns one session with its rendered resources.
func (e *Engine) Session(registrationID string) (SessionView, error) {
	s, ok := e.registry.Get(registrationID)
	if !ok {
		return SessionView{}, fmt.Errorf("%w: %s", ErrSessionNotFound, registrationID)
	}

	v, instances := view(s)
	// Instances are immutable, so rendering happens outside the session lock.
	for _, ref := range instances {
		for _, r := range ref.Instance.Resources() {
			v.Resources = append(v.Resources, ResourceView{
				Path:  lwm2m.NewPath(ref.ObjectID, ref.Instance.ID(), r.ID).String(),
				Type:  r.Type,
				Value: r.Render(),
			})
		}
	}
	return v, nil
}

func view(s *session.Session) (SessionView, []lwm2m.InstanceRef) {
	v := SessionView{Info: s.Info(), CreatedAt: s.CreatedAt}
	var instances []lwm2m.InstanceRef
	s.Locked(func(st *session.State) {
		v.Phase = st.Phase
		v.Synced = st.Synced
		v.LastActivity = st.LastActivity
		v.Pending = st.Model.PendingCount()
		v.Observed = st.Observed.Sorted()
		instances = st.Model.Instances()
	})
	return v, instances
}

// Execute sends an execute request for a resource of an active session,
// e.g. "/3/0/4" to reboot the device.
func (e *Engine) Execute(ctx context.Context, registrationID string, path lwm2m.PathKey, args string) error {
	if !path.IsResource() {
		return fmt.Errorf("%w: %s", lwm2m.ErrNotResourcePath, path)
	}
	s, ok := e.registry.Get(registrationID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, registrationID)
	}
	if s.Phase() != session.PhaseActive {
		return fmt.Errorf("%w: %s", ErrSessionNotActive, registrationID)
	}

	cctx, cancel := e.bounded(ctx)
	defer cancel()
	if err := e.protocol.Execute(cctx, registrationID, path, args); err != nil {
		return fmt.Errorf("executing %s: %w", path, err)
	}
	e.logInfo("execute sent", "registration_id", registrationID, "path", path.String())
	return nil
}

package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-lwm2m/internal/lwm2m"
	"github.com/nerrad567/gray-logic-lwm2m/internal/session"
)

// OnValueChanged applies an observed value to the session's model and
// publishes it when the path is reported.
//
// The instance holding the resource is rebuilt rather than mutated. Two
// changes to the same path are applied in the order this method is called.
// A change for an object or instance the model has not seen yet is dropped
// with a warning; it means an observation outran discovery.
func (e *Engine) OnValueChanged(ctx context.Context, registrationID string, path lwm2m.PathKey, res lwm2m.Resource) error {
	if !path.IsResource() {
		return fmt.Errorf("%w: %s", lwm2m.ErrNotResourcePath, path)
	}

	s, ok := e.registry.Get(registrationID)
	if !ok {
		e.logDebug("dropping value change", "registration_id", registrationID, "path", path.String())
		return fmt.Errorf("%w: %s", ErrSessionNotFound, registrationID)
	}

	current, version := e.snapshotFor(s)

	var (
		attrs, tele map[string]string
		applyErr    error
	)
	s.Locked(func(st *session.State) {
		if st.Phase != session.PhaseActive {
			applyErr = fmt.Errorf("%w: %s", ErrSessionNotActive, registrationID)
			return
		}
		if _, _, err := st.Model.Replace(path, res); err != nil {
			applyErr = err
			return
		}
		st.LastActivity = time.Now()
		attrs, tele = extract(st.Adopt(current, version), st.Model, path.String())
	})

	if applyErr != nil {
		if errors.Is(applyErr, lwm2m.ErrObjectNotFound) || errors.Is(applyErr, lwm2m.ErrInstanceNotFound) {
			e.logWarn("value change before discovery",
				"registration_id", registrationID,
				"path", path.String(),
				"error", applyErr,
			)
		}
		return applyErr
	}

	var a actions
	a.addReports(attrs, tele)
	e.dispatch(ctx, s, a)
	return nil
}

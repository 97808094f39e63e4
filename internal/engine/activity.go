package engine

import (
	"context"

	"github.com/nerrad567/gray-logic-lwm2m/internal/session"
)

// ReportActivity tells the backend that every active session is still
// alive. It runs on the activity sweep and returns the number of sessions
// reported. The resource models are not touched.
func (e *Engine) ReportActivity(ctx context.Context) int {
	reported := 0
	for _, s := range e.registry.Sessions() {
		if s.Phase() != session.PhaseActive {
			continue
		}
		cctx, cancel := e.bounded(ctx)
		err := e.backend.ReportActivity(cctx, s.Info())
		cancel()
		if err != nil {
			e.logError("activity report failed", err, "endpoint", s.Endpoint)
			continue
		}
		reported++
	}
	e.logDebug("activity sweep", "reported", reported)
	return reported
}

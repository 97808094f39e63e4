package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "no such route")
	})

	wsPath := s.wsCfg.Path
	if wsPath == "" {
		wsPath = "/ws"
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// WebSocket authenticates with a ticket, validated in the handler
		r.Get(wsPath, s.handleWebSocket)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Post(wsPath+"/ticket", s.handleWSTicket)

			r.Route("/sessions", func(r chi.Router) {
				r.Get("/", s.handleListSessions)
				r.Route("/{regID}", func(r chi.Router) {
					r.Get("/", s.handleGetSession)
					r.Post("/execute", s.handleExecute)
				})
			})

			r.Route("/profiles", func(r chi.Router) {
				r.Get("/", s.handleListProfiles)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetProfile)
					r.Put("/", s.handlePutProfile)
				})
			})
		})
	})

	return r
}

// handleHealth reports "degraded" while migrations are pending and 503
// when the schema cannot be read.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status":   "ok",
		"version":  s.version,
		"sessions": len(s.engine.Sessions()),
	}
	code := http.StatusOK

	if s.schema != nil {
		status, err := s.schema.SchemaStatus(r.Context())
		if err != nil {
			s.logger.Error("schema status failed", "error", err)
			body["status"] = "unavailable"
			code = http.StatusServiceUnavailable
		} else {
			body["schema"] = map[string]any{
				"version": status.Version,
				"pending": len(status.Pending),
			}
			if !status.Current() {
				body["status"] = "degraded"
			}
		}
	}
	writeJSON(w, code, body)
}

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-lwm2m/internal/engine"
	"github.com/nerrad567/gray-logic-lwm2m/internal/lwm2m"
)

// executeRequest is the body of POST /sessions/{regID}/execute.
type executeRequest struct {
	Path string `json:"path"`
	Args string `json:"args,omitempty"`
}

// handleListSessions returns every live session without resources,
// ordered by endpoint.
func (s *Server) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	sessions := s.engine.Sessions()
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].Endpoint < sessions[j].Endpoint
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// handleGetSession returns one session with its rendered resources.
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	v, err := s.engine.Session(chi.URLParam(r, "regID"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// handleExecute triggers an execute operation on a resource of an active
// session. The request is accepted once the bridge has queued it; the
// device's answer is not awaited.
func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	regID := chi.URLParam(r, "regID")

	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	path, err := lwm2m.ParsePath(req.Path)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	if err := s.engine.Execute(r.Context(), regID, path, req.Args); err != nil {
		if isDomainError(err) {
			s.writeDomainError(w, r, err)
			return
		}
		s.logger.Warn("execute failed",
			"registration_id", regID,
			"path", path.String(),
			"error", err,
		)
		writeError(w, http.StatusBadGateway, ErrCodeUpstream, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"registration_id": regID,
		"path":            path.String(),
		"status":          "queued",
	})
}

// isDomainError reports whether err carries an engine or model sentinel
// rather than a transport failure.
func isDomainError(err error) bool {
	return errors.Is(err, engine.ErrSessionNotFound) ||
		errors.Is(err, engine.ErrSessionNotActive) ||
		errors.Is(err, lwm2m.ErrNotResourcePath) ||
		errors.Is(err, lwm2m.ErrMalformedPath)
}

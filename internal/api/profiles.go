package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-lwm2m/internal/engine"
	"github.com/nerrad567/gray-logic-lwm2m/internal/profile"
)

// profileUpdateResponse is returned by PUT /profiles/{id}.
type profileUpdateResponse struct {
	ID         uuid.UUID              `json:"id"`
	Definition profile.Definition     `json:"definition"`
	Reconcile  engine.ReconcileResult `json:"reconcile"`
}

func profileID(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %q", profile.ErrInvalidID, raw)
	}
	return id, nil
}

// handleListProfiles returns every stored profile.
func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	records, err := s.profiles.List(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if records == nil {
		records = []profile.Record{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"profiles": records,
		"count":    len(records),
	})
}

// handleGetProfile returns one stored profile definition.
func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	id, err := profileID(r)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	def, err := s.profiles.Get(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":         id,
		"definition": def,
	})
}

// handlePutProfile stores a profile definition and reconciles every live
// session that reports with it. The definition is persisted first so a
// session registering mid-update loads the new version.
func (s *Server) handlePutProfile(w http.ResponseWriter, r *http.Request) {
	id, err := profileID(r)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	var def profile.Definition
	if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if def.Name == "" {
		s.writeDomainError(w, r, fmt.Errorf("%w: name is required", profile.ErrInvalidProfile))
		return
	}

	if err := s.profiles.Save(r.Context(), id, def); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	res, err := s.engine.UpdateProfile(r.Context(), id, def)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	s.logger.Info("profile updated via api",
		"profile_id", id.String(),
		"sessions", res.Sessions,
		"skipped", res.Skipped,
	)
	writeJSON(w, http.StatusOK, profileUpdateResponse{
		ID:         id,
		Definition: def,
		Reconcile:  res,
	})
}

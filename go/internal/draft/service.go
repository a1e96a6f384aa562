package draft

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/mcdev12/leaguedraft/go/internal/models"
	"github.com/rs/zerolog/log"
)

// UserIDHeader carries the authenticated user making a pick.
const UserIDHeader = "X-User-ID"

// DraftApp defines what the service layer needs from the engine
type DraftApp interface {
	StartDraft(ctx context.Context, leagueID uuid.UUID) (*models.League, error)
	MakePick(ctx context.Context, leagueID, actorUserID, teamID uuid.UUID) (*models.Pick, error)
	ToggleAutoDraft(ctx context.Context, leagueID, participantID uuid.UUID, enabled bool) error
	UpdatePreferences(ctx context.Context, leagueID, participantID uuid.UUID, ranked []uuid.UUID, autoDraft bool) (*models.DraftPreferences, error)
	GetDraftState(ctx context.Context, leagueID uuid.UUID) (*DraftState, error)
	ResetDraft(ctx context.Context, leagueID uuid.UUID) error
}

// Service exposes the draft engine over JSON HTTP
type Service struct {
	app DraftApp
}

// NewService creates a new draft service
func NewService(app DraftApp) *Service {
	return &Service{app: app}
}

type makePickRequest struct {
	TeamID uuid.UUID `json:"team_id"`
}

type toggleAutoDraftRequest struct {
	Enabled bool `json:"enabled"`
}

type updatePreferencesRequest struct {
	RankedTeamIDs []uuid.UUID `json:"ranked_team_ids"`
	AutoDraft     bool        `json:"auto_draft"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

// Register mounts the draft routes on mux.
func (s *Service) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /leagues/{id}/draft/start", s.handleStartDraft)
	mux.HandleFunc("POST /leagues/{id}/draft/picks", s.handleMakePick)
	mux.HandleFunc("POST /leagues/{id}/draft/reset", s.handleResetDraft)
	mux.HandleFunc("GET /leagues/{id}/draft", s.handleGetDraftState)
	mux.HandleFunc("PUT /leagues/{id}/participants/{pid}/autodraft", s.handleToggleAutoDraft)
	mux.HandleFunc("PUT /leagues/{id}/participants/{pid}/preferences", s.handleUpdatePreferences)
}

func (s *Service) handleStartDraft(w http.ResponseWriter, r *http.Request) {
	leagueID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	league, err := s.app.StartDraft(r.Context(), leagueID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, league)
}

func (s *Service) handleMakePick(w http.ResponseWriter, r *http.Request) {
	leagueID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	userID, err := uuid.Parse(r.Header.Get(UserIDHeader))
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing or invalid " + UserIDHeader})
		return
	}

	var req makePickRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	pick, err := s.app.MakePick(r.Context(), leagueID, userID, req.TeamID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, pick)
}

func (s *Service) handleResetDraft(w http.ResponseWriter, r *http.Request) {
	leagueID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	if err := s.app.ResetDraft(r.Context(), leagueID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleGetDraftState(w http.ResponseWriter, r *http.Request) {
	leagueID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	state, err := s.app.GetDraftState(r.Context(), leagueID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Service) handleToggleAutoDraft(w http.ResponseWriter, r *http.Request) {
	leagueID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	participantID, ok := pathUUID(w, r, "pid")
	if !ok {
		return
	}

	var req toggleAutoDraftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if err := s.app.ToggleAutoDraft(r.Context(), leagueID, participantID, req.Enabled); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleUpdatePreferences(w http.ResponseWriter, r *http.Request) {
	leagueID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	participantID, ok := pathUUID(w, r, "pid")
	if !ok {
		return
	}

	var req updatePreferencesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	prefs, err := s.app.UpdatePreferences(r.Context(), leagueID, participantID, req.RankedTeamIDs, req.AutoDraft)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid " + name})
		return uuid.Nil, false
	}
	return id, true
}

func writeError(w http.ResponseWriter, err error) {
	if rej, ok := AsRejection(err); ok {
		writeJSON(w, http.StatusConflict, errorResponse{Error: rej.Error(), Reason: rej.Reason})
		return
	}
	if errors.Is(err, ErrLeagueNotFound) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to write response")
	}
}

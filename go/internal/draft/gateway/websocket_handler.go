package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/leaguedraft/go/internal/draft"
)

// WebSocketHandler handles WebSocket upgrade requests for league draft rooms
type WebSocketHandler struct {
	connectionManager *ConnectionManager
	state             StateProvider
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(cm *ConnectionManager, state StateProvider) *WebSocketHandler {
	return &WebSocketHandler{
		connectionManager: cm,
		state:             state,
	}
}

// HandleLeagueConnection upgrades the request and sends the current draft state first.
func (h *WebSocketHandler) HandleLeagueConnection(w http.ResponseWriter, r *http.Request) {
	leagueID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid league id", http.StatusBadRequest)
		return
	}

	userID := r.Header.Get(draft.UserIDHeader)
	if userID == "" {
		userID = r.URL.Query().Get("user_id")
	}
	if userID == "" {
		userID = "anonymous"
	}

	state, err := h.state.GetDraftState(r.Context(), leagueID)
	if errors.Is(err, draft.ErrLeagueNotFound) {
		http.Error(w, "league not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Error().Err(err).Str("league_id", leagueID.String()).Msg("failed to load draft state")
		http.Error(w, "failed to load draft state", http.StatusInternalServerError)
		return
	}

	snapshot, err := snapshotEvent(leagueID, state)
	if err != nil {
		log.Error().Err(err).Str("league_id", leagueID.String()).Msg("failed to build snapshot")
		http.Error(w, "failed to load draft state", http.StatusInternalServerError)
		return
	}

	// The upgrader writes its own error response on failure.
	if err := h.connectionManager.UpgradeConnection(w, r, userID, leagueID, snapshot); err != nil {
		log.Error().
			Err(err).
			Str("league_id", leagueID.String()).
			Str("user_id", userID).
			Msg("failed to upgrade WebSocket connection")
	}
}

// HandleConnectionStats returns statistics about active connections
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.connectionManager.Stats()); err != nil {
		log.Error().Err(err).Msg("failed to write stats response")
	}
}

// RegisterRoutes registers WebSocket routes with an HTTP mux
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws/leagues/{id}", h.HandleLeagueConnection)
	mux.HandleFunc("GET /ws/stats", h.HandleConnectionStats)
}

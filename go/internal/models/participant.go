package models

import (
	"time"

	"github.com/google/uuid"
)

// Participant is a league member holding a fixed draft seat.
type Participant struct {
	ID          uuid.UUID `json:"id"`
	LeagueID    uuid.UUID `json:"league_id"`
	UserID      uuid.UUID `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Seat        int       `json:"seat"`
	AutoDraft   bool      `json:"auto_draft"`
	CreatedAt   time.Time `json:"created_at"`
}

// DraftPreferences is a participant's ranked team list, editable only before the draft starts.
type DraftPreferences struct {
	LeagueID      uuid.UUID   `json:"league_id"`
	ParticipantID uuid.UUID   `json:"participant_id"`
	RankedTeamIDs []uuid.UUID `json:"ranked_team_ids"`
	AutoDraft     bool        `json:"auto_draft"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

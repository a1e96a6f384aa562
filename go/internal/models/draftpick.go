package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/leaguedraft/go/internal/draft/events"
)

// Pick is the immutable record of one resolved turn.
type Pick struct {
	ID            uuid.UUID              `json:"id"`
	LeagueID      uuid.UUID              `json:"league_id"`
	PickNumber    int                    `json:"pick_number"` // 1-based, overall
	Round         int                    `json:"round"`       // 1-based
	Seat          int                    `json:"seat"`
	ParticipantID uuid.UUID              `json:"participant_id"`
	TeamID        uuid.UUID              `json:"team_id"`
	PickedAt      time.Time              `json:"picked_at"`
	Auto          bool                   `json:"auto"`
	AutoReason    *events.AutoPickReason `json:"auto_reason,omitempty"`
}

package events

import (
	"time"
)

// Event types written to the outbox and published on draft.events.<type>.
const (
	EventTypeDraftStarted     = "DraftStarted"
	EventTypePickStarted      = "PickStarted"
	EventTypePickMade         = "PickMade"
	EventTypeTurnAutoResolved = "TurnAutoResolved"
	EventTypeDraftCompleted   = "DraftCompleted"
	EventTypeDraftReset       = "DraftReset"
)

// DraftStartedPayload is the payload for a DraftStarted event
type DraftStartedPayload struct {
	LeagueID    string    `json:"league_id"`
	StartedAt   time.Time `json:"started_at"`
	SeatCount   int       `json:"seat_count"`
	TotalRounds int       `json:"total_rounds"`
	TotalPicks  int       `json:"total_picks"`
}

// PickStartedPayload is the payload for a PickStarted event
type PickStartedPayload struct {
	LeagueID        string    `json:"league_id"`
	PickIndex       int       `json:"pick_index"`
	Round           int       `json:"round"`
	Seat            int       `json:"seat"`
	ParticipantID   string    `json:"participant_id"`
	StartedAt       time.Time `json:"started_at"`
	TimeoutAt       time.Time `json:"timeout_at"`
	PickTimeLimitMs int64     `json:"pick_time_limit_ms"`
	AutoDraft       bool      `json:"auto_draft"`
}

// PickMadePayload is the payload for a PickMade event
type PickMadePayload struct {
	LeagueID      string          `json:"league_id"`
	PickID        string          `json:"pick_id"`
	PickNumber    int             `json:"pick_number"`
	Round         int             `json:"round"`
	Seat          int             `json:"seat"`
	ParticipantID string          `json:"participant_id"`
	TeamID        string          `json:"team_id"`
	TeamName      string          `json:"team_name"`
	MadeAt        time.Time       `json:"made_at"`
	AutoReason    *AutoPickReason `json:"auto_reason,omitempty"`
}

// TurnAutoResolvedPayload is the payload for a TurnAutoResolved event.
// It is emitted alongside PickMade whenever the system picked on a participant's behalf.
type TurnAutoResolvedPayload struct {
	LeagueID        string         `json:"league_id"`
	PickNumber      int            `json:"pick_number"`
	ParticipantID   string         `json:"participant_id"`
	ParticipantName string         `json:"participant_name"`
	TeamID          string         `json:"team_id"`
	TeamName        string         `json:"team_name"`
	Reason          AutoPickReason `json:"reason"`
	Message         string         `json:"message"`
}

// DraftCompletedPayload is the payload for a DraftCompleted event
type DraftCompletedPayload struct {
	LeagueID    string    `json:"league_id"`
	CompletedAt time.Time `json:"completed_at"`
	TotalPicks  int       `json:"total_picks"`
}

// DraftResetPayload is the payload for a DraftReset event
type DraftResetPayload struct {
	LeagueID     string    `json:"league_id"`
	ResetAt      time.Time `json:"reset_at"`
	DeletedPicks int       `json:"deleted_picks"`
}

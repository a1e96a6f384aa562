package models

import (
	"time"

	"github.com/google/uuid"
)

type LeagueStatus string

const (
	LeagueStatusSetup     LeagueStatus = "setup"
	LeagueStatusDraft     LeagueStatus = "draft"
	LeagueStatusLive      LeagueStatus = "live"
	LeagueStatusCompleted LeagueStatus = "completed"
)

// DefaultPickTimeLimitMs is the turn duration used when a league does not configure one.
const DefaultPickTimeLimitMs int64 = 180000

// League is the subset of a league record the draft engine reads and writes.
// CurrentPickIndex is nil whenever no turn is active (before the draft and after it completes).
type League struct {
	ID                   uuid.UUID    `json:"id"`
	Name                 string       `json:"name"`
	Status               LeagueStatus `json:"status"`
	SeatCount            int          `json:"seat_count"`
	PickTimeLimitMs      int64        `json:"pick_time_limit_ms"`
	CurrentPickIndex     *int         `json:"current_pick_index,omitempty"`
	CurrentPickStartedAt *time.Time   `json:"current_pick_started_at,omitempty"`
	ScheduledAutopickID  *string      `json:"scheduled_autopick_id,omitempty"`
	CreatedAt            time.Time    `json:"created_at"`
	UpdatedAt            time.Time    `json:"updated_at"`
}

// PickTimeLimit returns the configured turn duration, falling back to the default.
func (l *League) PickTimeLimit() time.Duration {
	ms := l.PickTimeLimitMs
	if ms <= 0 {
		ms = DefaultPickTimeLimitMs
	}
	return time.Duration(ms) * time.Millisecond
}

// HasActiveTurn reports whether the league is mid-draft with an unresolved turn.
func (l *League) HasActiveTurn() bool {
	return l.Status == LeagueStatusDraft && l.CurrentPickIndex != nil
}

package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Activity is a draft event recorded in the same transaction as the state change it describes.
// It doubles as the outbox row relayed to the event bus.
type Activity struct {
	ID        uuid.UUID       `json:"id"`
	LeagueID  uuid.UUID       `json:"league_id"`
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
	SentAt    *time.Time      `json:"sent_at,omitempty"`
}

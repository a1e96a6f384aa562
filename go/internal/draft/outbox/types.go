package outbox

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/leaguedraft/go/internal/models"
)

// OutboxEvent is a committed draft activity waiting to be relayed
type OutboxEvent struct {
	ID        uuid.UUID       `json:"id"`
	LeagueID  uuid.UUID       `json:"league_id"`
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
	SentAt    *time.Time      `json:"sent_at,omitempty"`
}

// FromActivity converts a stored activity row into an outbox event.
func FromActivity(a models.Activity) OutboxEvent {
	return OutboxEvent{
		ID:        a.ID,
		LeagueID:  a.LeagueID,
		EventType: a.EventType,
		Payload:   a.Payload,
		CreatedAt: a.CreatedAt,
		SentAt:    a.SentAt,
	}
}

// Envelope is the wire format published for every event.
type Envelope struct {
	EventID   string          `json:"eventId"`
	EventType string          `json:"eventType"`
	LeagueID  string          `json:"leagueId"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// Publisher delivers outbox events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, event OutboxEvent) error
}

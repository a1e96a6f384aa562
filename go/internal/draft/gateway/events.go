package gateway

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mcdev12/leaguedraft/go/internal/draft/events"
	"github.com/mcdev12/leaguedraft/go/internal/draft/outbox"
)

// EventTypeDraftSnapshot is sent once to every new connection with the full draft state.
const EventTypeDraftSnapshot = "DraftSnapshot"

var knownEventTypes = map[string]bool{
	events.EventTypeDraftStarted:     true,
	events.EventTypePickStarted:      true,
	events.EventTypePickMade:         true,
	events.EventTypeTurnAutoResolved: true,
	events.EventTypeDraftCompleted:   true,
	events.EventTypeDraftReset:       true,
}

// LeagueEvent is the frame written to WebSocket clients
type LeagueEvent struct {
	ID        string          `json:"id"`
	LeagueID  string          `json:"league_id"`
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// fromEnvelope converts a relayed envelope into a client frame.
func fromEnvelope(env outbox.Envelope) (uuid.UUID, *LeagueEvent, error) {
	if !knownEventTypes[env.EventType] {
		return uuid.Nil, nil, fmt.Errorf("unknown event type: %s", env.EventType)
	}
	leagueID, err := uuid.Parse(env.LeagueID)
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("parse league ID: %w", err)
	}
	return leagueID, &LeagueEvent{
		ID:        env.EventID,
		LeagueID:  env.LeagueID,
		Type:      env.EventType,
		Timestamp: env.Timestamp,
		Data:      env.Payload,
	}, nil
}

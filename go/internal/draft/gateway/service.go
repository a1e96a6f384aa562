package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/mcdev12/leaguedraft/go/internal/draft"
	"github.com/mcdev12/leaguedraft/go/internal/draft/outbox"
)

// StateProvider loads the state sent to clients when they connect
type StateProvider interface {
	GetDraftState(ctx context.Context, leagueID uuid.UUID) (*draft.DraftState, error)
}

// Config holds configuration for the draft gateway service
type Config struct {
	ConnectionConfig ConnectionConfig
	JetStreamConfig  JetStreamConsumerConfig
}

// DefaultConfig returns default configuration for the draft gateway
func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
		JetStreamConfig:  DefaultJetStreamConsumerConfig(),
	}
}

// Service fans draft events out to WebSocket clients. Events arrive either
// from JetStream or, without a broker, directly through Publish.
type Service struct {
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	eventConsumer     *EventConsumer
}

// NewService creates a gateway. nc may be nil, in which case events must be
// delivered with Publish.
func NewService(ctx context.Context, config Config, state StateProvider, nc *nats.Conn) (*Service, error) {
	connectionManager := NewConnectionManager(config.ConnectionConfig)

	s := &Service{
		connectionManager: connectionManager,
		wsHandler:         NewWebSocketHandler(connectionManager, state),
	}

	if nc != nil {
		consumer, err := NewEventConsumer(ctx, connectionManager, nc, config.JetStreamConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to create event consumer: %w", err)
		}
		s.eventConsumer = consumer
	}
	return s, nil
}

// Start runs the gateway until ctx is cancelled
func (s *Service) Start(ctx context.Context) error {
	log.Info().Bool("jetstream", s.eventConsumer != nil).Msg("starting draft gateway service")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.connectionManager.Start(gctx)
		return nil
	})
	if s.eventConsumer != nil {
		g.Go(func() error {
			return s.eventConsumer.Start(gctx)
		})
	}

	err := g.Wait()
	log.Info().Msg("draft gateway service stopped")
	return err
}

// Publish broadcasts an outbox event to the league's connections.
func (s *Service) Publish(ctx context.Context, event outbox.OutboxEvent) error {
	_, frame, err := fromEnvelope(outbox.Envelope{
		EventID:   event.ID.String(),
		EventType: event.EventType,
		LeagueID:  event.LeagueID.String(),
		Timestamp: event.CreatedAt,
		Payload:   event.Payload,
	})
	if err != nil {
		return err
	}
	s.connectionManager.BroadcastToLeague(event.LeagueID, frame)
	return nil
}

// RegisterRoutes registers the WebSocket HTTP routes
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
	log.Info().Msg("draft gateway routes registered")
}

// Stats returns statistics about the gateway service
func (s *Service) Stats() ConnectionStats {
	return s.connectionManager.Stats()
}

func snapshotEvent(leagueID uuid.UUID, state *draft.DraftState) (*LeagueEvent, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("marshal draft state: %w", err)
	}
	return &LeagueEvent{
		ID:        uuid.New().String(),
		LeagueID:  leagueID.String(),
		Type:      EventTypeDraftSnapshot,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}, nil
}

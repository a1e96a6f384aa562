package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/leaguedraft/go/internal/draft/outbox"
)

// JetStreamConsumerConfig configures the gateway's stream subscription.
type JetStreamConsumerConfig struct {
	StreamName     string
	ConsumerPrefix string
	// InstanceID distinguishes gateway processes. Each instance needs every
	// event, so each gets its own consumer. Generated when empty.
	InstanceID        string
	SubjectFilter     string
	AckWait           time.Duration
	MaxAckPending     int
	InactiveThreshold time.Duration // consumer is removed this long after its gateway stops
}

func DefaultJetStreamConsumerConfig() JetStreamConsumerConfig {
	return JetStreamConsumerConfig{
		StreamName:        "DRAFT_EVENTS",
		ConsumerPrefix:    "draft-gateway",
		SubjectFilter:     "draft.events.>",
		AckWait:           30 * time.Second,
		MaxAckPending:     256,
		InactiveThreshold: 5 * time.Minute,
	}
}

func (c JetStreamConsumerConfig) consumerName() string {
	return c.ConsumerPrefix + "-" + c.InstanceID
}

// EventConsumer forwards stream events to the league's WebSocket connections.
type EventConsumer struct {
	connectionManager *ConnectionManager
	consumer          jetstream.Consumer
	name              string
}

// NewEventConsumer creates this instance's consumer on an existing stream.
func NewEventConsumer(ctx context.Context, cm *ConnectionManager, nc *nats.Conn, config JetStreamConsumerConfig) (*EventConsumer, error) {
	if config.InstanceID == "" {
		config.InstanceID = uuid.NewString()[:8]
	}

	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}
	stream, err := js.Stream(ctx, config.StreamName)
	if err != nil {
		return nil, fmt.Errorf("get stream %s: %w", config.StreamName, err)
	}

	// Clients receive a snapshot on connect, so history before startup is not replayed.
	name := config.consumerName()
	consumer, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Name:              name,
		Description:       "draft gateway fan-out",
		FilterSubject:     config.SubjectFilter,
		DeliverPolicy:     jetstream.DeliverNewPolicy,
		AckPolicy:         jetstream.AckExplicitPolicy,
		AckWait:           config.AckWait,
		MaxAckPending:     config.MaxAckPending,
		InactiveThreshold: config.InactiveThreshold,
	})
	if err != nil {
		return nil, fmt.Errorf("create consumer %s: %w", name, err)
	}

	log.Info().Str("consumer", name).Str("stream", config.StreamName).Msg("JetStream consumer ready")
	return &EventConsumer{connectionManager: cm, consumer: consumer, name: name}, nil
}

// Start consumes events until ctx is cancelled
func (ec *EventConsumer) Start(ctx context.Context) error {
	cc, err := ec.consumer.Consume(ec.handle, jetstream.ConsumeErrHandler(func(_ jetstream.ConsumeContext, err error) {
		log.Warn().Err(err).Str("consumer", ec.name).Msg("JetStream consume error")
	}))
	if err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}

	<-ctx.Done()
	cc.Stop()
	log.Info().Str("consumer", ec.name).Msg("event consumer stopped")
	return nil
}

func (ec *EventConsumer) handle(msg jetstream.Msg) {
	leagueID, event, err := decodeMessage(msg.Data())
	if err != nil {
		// Redelivery cannot fix a malformed event.
		log.Error().Err(err).Str("subject", msg.Subject()).Msg("dropping undeliverable event")
		if err := msg.Term(); err != nil {
			log.Error().Err(err).Msg("failed to terminate message")
		}
		return
	}

	ec.connectionManager.BroadcastToLeague(leagueID, event)
	if err := msg.Ack(); err != nil {
		log.Error().Err(err).Str("event_id", event.ID).Msg("failed to ack message")
	}
	log.Debug().
		Str("event_id", event.ID).
		Str("league_id", event.LeagueID).
		Str("event_type", event.Type).
		Msg("event forwarded to league connections")
}

func decodeMessage(data []byte) (uuid.UUID, *LeagueEvent, error) {
	var envelope outbox.Envelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return uuid.Nil, nil, fmt.Errorf("unmarshal event envelope: %w", err)
	}
	return fromEnvelope(envelope)
}

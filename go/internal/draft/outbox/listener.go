package outbox

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

type ListenerConfig struct {
	DatabaseURL      string        // DSN for the dedicated LISTEN connection
	NotifyChannel    string        // must match the channel in the outbox trigger
	FallbackInterval time.Duration // sweep for rows whose notification was missed
	MaxRetries       int
	RetryDelay       time.Duration
	PingInterval     time.Duration
	BatchSize        int
}

func DefaultListenerConfig() ListenerConfig {
	return ListenerConfig{
		NotifyChannel:    "draft_outbox_events",
		FallbackInterval: 30 * time.Second,
		MaxRetries:       5,
		RetryDelay:       200 * time.Millisecond,
		PingInterval:     90 * time.Second,
		BatchSize:        100,
	}
}

// Listener relays each outbox row as soon as its insert trigger notifies, and
// sweeps for unsent rows at startup, after a reconnect and on a fallback timer.
type Listener struct {
	repo      *Repository
	conn      *pq.Listener
	publisher Publisher
	cfg       ListenerConfig
	retry     RetryPolicy

	mu        sync.Mutex
	processed uint64
	lastEvent time.Time
	running   bool
}

func NewListener(db *sql.DB, publisher Publisher, cfg ListenerConfig) (*Listener, error) {
	conn := pq.NewListener(cfg.DatabaseURL, 10*time.Second, time.Minute, logListenerEvent)
	if err := conn.Listen(cfg.NotifyChannel); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to listen on %s: %w", cfg.NotifyChannel, err)
	}

	return &Listener{
		repo:      NewRepository(db),
		conn:      conn,
		publisher: publisher,
		cfg:       cfg,
		retry:     RetryPolicy{MaxRetries: cfg.MaxRetries, RetryDelay: cfg.RetryDelay},
	}, nil
}

func logListenerEvent(ev pq.ListenerEventType, err error) {
	switch ev {
	case pq.ListenerEventConnected:
		log.Info().Msg("outbox listener connected")
	case pq.ListenerEventDisconnected:
		log.Warn().Err(err).Msg("outbox listener disconnected")
	case pq.ListenerEventReconnected:
		log.Info().Msg("outbox listener reconnected")
	case pq.ListenerEventConnectionAttemptFailed:
		log.Error().Err(err).Msg("outbox listener connection attempt failed")
	}
}

// Start relays events until ctx is cancelled, then closes the LISTEN connection.
func (l *Listener) Start(ctx context.Context) error {
	log.Info().
		Str("channel", l.cfg.NotifyChannel).
		Dur("fallback_interval", l.cfg.FallbackInterval).
		Msg("outbox listener started")

	l.setRunning(true)
	defer l.setRunning(false)

	l.drain(ctx, "startup")

	ping := time.NewTicker(l.cfg.PingInterval)
	fallback := time.NewTicker(l.cfg.FallbackInterval)
	defer ping.Stop()
	defer fallback.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("outbox listener stopping")
			return l.Stop()
		case note := <-l.conn.Notify:
			// pq sends nil after a reconnect; anything inserted meanwhile was not announced.
			if note == nil {
				l.drain(ctx, "reconnect")
				continue
			}
			if err := l.relayNotified(ctx, note.Extra); err != nil {
				log.Error().Err(err).Str("payload", note.Extra).Msg("failed to relay notified event")
			}
		case <-fallback.C:
			l.drain(ctx, "fallback")
		case <-ping.C:
			if err := l.conn.Ping(); err != nil {
				log.Warn().Err(err).Msg("outbox listener ping failed")
			}
		}
	}
}

func (l *Listener) Stop() error {
	return l.conn.Close()
}

// Stats returns the number of relayed events and when the last one went out.
func (l *Listener) Stats() (uint64, time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.processed, l.lastEvent
}

// Running reports whether Start is looping.
func (l *Listener) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

func (l *Listener) relayNotified(ctx context.Context, payload string) error {
	id, err := uuid.Parse(payload)
	if err != nil {
		return fmt.Errorf("invalid event ID in notification: %w", err)
	}
	relayed, err := l.repo.RelayByID(ctx, id, l.publish)
	if err != nil {
		return err
	}
	if relayed {
		l.recordRelayed(1)
		log.Debug().Str("event_id", id.String()).Msg("relayed notified event")
	}
	return nil
}

// drain relays unsent rows batch by batch until a batch comes back short or
// makes no progress.
func (l *Listener) drain(ctx context.Context, reason string) {
	total := 0
	for ctx.Err() == nil {
		sent, err := l.repo.RelayUnsent(ctx, l.cfg.BatchSize, l.publish)
		if err != nil {
			log.Error().Err(err).Str("reason", reason).Msg("failed to relay unsent events")
			break
		}
		total += sent
		l.recordRelayed(sent)
		if sent < l.cfg.BatchSize {
			break
		}
	}
	if total > 0 {
		log.Info().Int("count", total).Str("reason", reason).Msg("relayed unsent outbox events")
	}
}

func (l *Listener) publish(ctx context.Context, event OutboxEvent) error {
	return publishWithRetry(ctx, l.publisher, l.retry, event)
}

func (l *Listener) recordRelayed(n int) {
	if n == 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.processed += uint64(n)
	l.lastEvent = time.Now()
}

func (l *Listener) setRunning(running bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.running = running
}

package outbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/sqlc-dev/pqtype"

	"github.com/mcdev12/leaguedraft/go/internal/sqlutil"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Queries holds the outbox statements bound to a connection or transaction.
type Queries struct {
	db DBTX
}

func NewQueries(db DBTX) *Queries {
	return &Queries{db: db}
}

const outboxColumns = `id, league_id, event_type, payload, created_at, sent_at`

const fetchUnsentOutbox = `SELECT ` + outboxColumns + `
FROM draft_outbox
WHERE sent_at IS NULL
ORDER BY created_at
LIMIT $1
FOR UPDATE SKIP LOCKED`

func (q *Queries) FetchUnsent(ctx context.Context, limit int) ([]OutboxEvent, error) {
	rows, err := q.db.QueryContext(ctx, fetchUnsentOutbox, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []OutboxEvent
	for rows.Next() {
		event, err := scanOutbox(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

const fetchUnsentOutboxByID = `SELECT ` + outboxColumns + `
FROM draft_outbox
WHERE id = $1 AND sent_at IS NULL
FOR UPDATE SKIP LOCKED`

// FetchUnsentByID returns sql.ErrNoRows when the event is already sent or
// being relayed by another worker.
func (q *Queries) FetchUnsentByID(ctx context.Context, id uuid.UUID) (OutboxEvent, error) {
	return scanOutbox(q.db.QueryRowContext(ctx, fetchUnsentOutboxByID, id))
}

const markOutboxSent = `UPDATE draft_outbox SET sent_at = now() WHERE id = $1`

func (q *Queries) MarkSent(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.ExecContext(ctx, markOutboxSent, id)
	return err
}

const countPendingOutbox = `SELECT COUNT(*) FROM draft_outbox WHERE sent_at IS NULL`

func (q *Queries) CountPending(ctx context.Context) (int, error) {
	var count int
	err := q.db.QueryRowContext(ctx, countPendingOutbox).Scan(&count)
	return count, err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOutbox(row rowScanner) (OutboxEvent, error) {
	var (
		event   OutboxEvent
		payload pqtype.NullRawMessage
		sentAt  sql.NullTime
	)
	if err := row.Scan(&event.ID, &event.LeagueID, &event.EventType, &payload, &event.CreatedAt, &sentAt); err != nil {
		return OutboxEvent{}, err
	}
	event.Payload = sqlutil.FromNullRawMessage(payload)
	event.SentAt = sqlutil.FromNullTime(sentAt)
	return event, nil
}

// PublishFunc delivers a single event; a nil return marks it sent.
type PublishFunc func(ctx context.Context, event OutboxEvent) error

// Repository relays outbox rows. Each relay runs in a transaction that holds
// row locks until the events are marked sent, so concurrent relays never
// claim the same row.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// RelayUnsent publishes up to limit unsent events in creation order and
// returns how many were marked sent. Events whose publish fails stay unsent.
func (r *Repository) RelayUnsent(ctx context.Context, limit int, publish PublishFunc) (int, error) {
	sent := 0
	err := sqlutil.Run(ctx, r.db, newTxQueries, func(q *Queries) error {
		events, err := q.FetchUnsent(ctx, limit)
		if err != nil {
			return fmt.Errorf("failed to fetch unsent outbox events: %w", err)
		}
		for _, event := range events {
			if err := publish(ctx, event); err != nil {
				log.Error().Err(err).Str("event_id", event.ID.String()).Msg("failed to publish event")
				continue
			}
			if err := q.MarkSent(ctx, event.ID); err != nil {
				return fmt.Errorf("failed to mark outbox event %s as sent: %w", event.ID, err)
			}
			sent++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return sent, nil
}

// RelayByID publishes one event. It reports false when the event was already
// sent or is locked by another relay.
func (r *Repository) RelayByID(ctx context.Context, id uuid.UUID, publish PublishFunc) (bool, error) {
	relayed := false
	err := sqlutil.Run(ctx, r.db, newTxQueries, func(q *Queries) error {
		event, err := q.FetchUnsentByID(ctx, id)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to fetch outbox event: %w", err)
		}
		if err := publish(ctx, event); err != nil {
			return fmt.Errorf("failed to publish event: %w", err)
		}
		if err := q.MarkSent(ctx, id); err != nil {
			return fmt.Errorf("failed to mark outbox event as sent: %w", err)
		}
		relayed = true
		return nil
	})
	return relayed, err
}

func (r *Repository) CountPending(ctx context.Context) (int, error) {
	return NewQueries(r.db).CountPending(ctx)
}

func newTxQueries(tx *sql.Tx) *Queries {
	return NewQueries(tx)
}

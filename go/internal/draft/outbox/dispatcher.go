package outbox

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/leaguedraft/go/internal/models"
)

// Dispatcher relays activities handed over in-process, for stores that have
// no outbox table. Events are published in the order they were enqueued.
type Dispatcher struct {
	publisher Publisher
	policy    RetryPolicy

	mu    sync.Mutex
	queue []OutboxEvent
	wake  chan struct{}
}

func NewDispatcher(publisher Publisher, policy RetryPolicy) *Dispatcher {
	return &Dispatcher{
		publisher: publisher,
		policy:    policy,
		wake:      make(chan struct{}, 1),
	}
}

// Enqueue never blocks; it is safe to call while holding store locks.
func (d *Dispatcher) Enqueue(activities []models.Activity) {
	d.mu.Lock()
	for _, a := range activities {
		d.queue = append(d.queue, FromActivity(a))
	}
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Pending returns the number of events not yet handed to the publisher.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

// Run publishes queued events until ctx is cancelled. An event that exhausts
// its retries is logged and dropped.
func (d *Dispatcher) Run(ctx context.Context) error {
	log.Info().Msg("outbox dispatcher started")
	for {
		for {
			event, ok := d.next()
			if !ok {
				break
			}
			if err := publishWithRetry(ctx, d.publisher, d.policy, event); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				log.Error().
					Err(err).
					Str("event_id", event.ID.String()).
					Str("event_type", event.EventType).
					Msg("dropping event after failed publish")
			}
		}

		select {
		case <-ctx.Done():
			log.Info().Int("pending", d.Pending()).Msg("outbox dispatcher shutting down")
			return nil
		case <-d.wake:
		}
	}
}

func (d *Dispatcher) next() (OutboxEvent, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.queue) == 0 {
		return OutboxEvent{}, false
	}
	event := d.queue[0]
	d.queue = d.queue[1:]
	return event, true
}

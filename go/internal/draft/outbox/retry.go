package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// RetryPolicy bounds publish attempts. The delay grows linearly per attempt.
type RetryPolicy struct {
	MaxRetries int
	RetryDelay time.Duration
}

// publishWithRetry attempts to publish an outbox event with a given retry delay and max retries.
func publishWithRetry(ctx context.Context, p Publisher, policy RetryPolicy, event OutboxEvent) error {
	var lastErr error

	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := policy.RetryDelay * time.Duration(attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		if err := p.Publish(ctx, event); err != nil {
			lastErr = err
			log.Error().
				Err(err).
				Int("attempt", attempt+1).
				Str("event_id", event.ID.String()).
				Msg("failed to publish, retrying")
			continue
		}

		if attempt > 0 {
			log.Info().
				Int("attempt", attempt+1).
				Str("event_id", event.ID.String()).
				Msg("publish succeeded after retry")
		}
		return nil
	}

	return fmt.Errorf("publish failed after %d attempts: %w", policy.MaxRetries+1, lastErr)
}

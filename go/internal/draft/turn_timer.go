package draft

import (
	"context"
	"fmt"
	"time"

	"github.com/mcdev12/leaguedraft/go/internal/models"
	"github.com/rs/zerolog/log"
)

// TurnTimer keeps at most one scheduled resolve task per league and records its handle
// on the league. Callers persist the league afterwards.
type TurnTimer struct {
	scheduler Scheduler
}

func NewTurnTimer(scheduler Scheduler) *TurnTimer {
	return &TurnTimer{scheduler: scheduler}
}

// Schedule replaces the league's outstanding task with one for pickIndex firing after delay.
func (t *TurnTimer) Schedule(ctx context.Context, league *models.League, pickIndex int, delay time.Duration) error {
	t.cancel(ctx, league)

	if delay < 0 {
		delay = 0
	}
	handle, err := t.scheduler.Schedule(ctx, delay, ResolveTask{LeagueID: league.ID, ExpectedPickIndex: pickIndex})
	if err != nil {
		return fmt.Errorf("failed to schedule turn %d: %w", pickIndex, err)
	}
	league.ScheduledAutopickID = &handle

	log.Debug().
		Str("league_id", league.ID.String()).
		Int("pick_index", pickIndex).
		Dur("delay", delay).
		Str("handle", handle).
		Msg("scheduled turn timer")
	return nil
}

// Clear cancels the outstanding task, if any, and forgets its handle.
func (t *TurnTimer) Clear(ctx context.Context, league *models.League) {
	t.cancel(ctx, league)
}

func (t *TurnTimer) cancel(ctx context.Context, league *models.League) {
	if league.ScheduledAutopickID == nil {
		return
	}
	handle := *league.ScheduledAutopickID
	league.ScheduledAutopickID = nil

	if err := t.scheduler.Cancel(ctx, handle); err != nil {
		// The task may have fired already; the pick index guard covers it.
		log.Debug().
			Err(err).
			Str("league_id", league.ID.String()).
			Str("handle", handle).
			Msg("turn timer cancel failed")
	}
}

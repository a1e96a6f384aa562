package timer

import (
	"context"
	"sync"

	"github.com/mcdev12/leaguedraft/go/internal/draft"
	"github.com/rs/zerolog/log"
)

// runWorker resolves tasks from workCh until ctx is cancelled.
func runWorker(ctx context.Context, wg *sync.WaitGroup, instanceID string, workerID int, workCh <-chan draft.ResolveTask, handler draft.ResolveFunc) {
	defer wg.Done()

	for {
		select {
		case <-ctx.Done():
			log.Debug().
				Str("instance", instanceID).
				Int("worker_id", workerID).
				Msg("worker shutting down")
			return
		case task := <-workCh:
			dispatch(ctx, instanceID, workerID, task, handler)
		}
	}
}

func dispatch(ctx context.Context, instanceID string, workerID int, task draft.ResolveTask, handler draft.ResolveFunc) {
	if err := handler(ctx, task); err != nil {
		log.Error().
			Err(err).
			Bool("integrity", draft.IsIntegrity(err)).
			Str("league_id", task.LeagueID.String()).
			Int("pick_index", task.ExpectedPickIndex).
			Str("instance", instanceID).
			Int("worker_id", workerID).
			Msg("turn timer handling failed")
	}
}

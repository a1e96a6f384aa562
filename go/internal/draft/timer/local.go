package timer

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/leaguedraft/go/internal/draft"
	"github.com/rs/zerolog/log"
)

const DefaultWorkers = 10

// Local fires resolve tasks from in-process one-shot timers. Pending tasks are lost on
// restart; the sweep picks those turns up.
type Local struct {
	clock      clockwork.Clock
	numWorkers int
	instanceID string

	activeTimers   map[string]*localTimer
	activeTimersMu sync.Mutex

	workCh chan draft.ResolveTask
	done   chan struct{}
	once   sync.Once
}

type localTimer struct {
	timer clockwork.Timer
	stop  chan struct{}
}

func NewLocal(clock clockwork.Clock, numWorkers int) *Local {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if numWorkers <= 0 {
		numWorkers = DefaultWorkers
	}
	return &Local{
		clock:        clock,
		numWorkers:   numWorkers,
		instanceID:   uuid.New().String()[:8],
		activeTimers: make(map[string]*localTimer),
		workCh:       make(chan draft.ResolveTask, numWorkers*2),
		done:         make(chan struct{}),
	}
}

func (l *Local) Schedule(_ context.Context, delay time.Duration, task draft.ResolveTask) (string, error) {
	handle := uuid.NewString()
	lt := &localTimer{timer: l.clock.NewTimer(delay), stop: make(chan struct{})}

	l.activeTimersMu.Lock()
	l.activeTimers[handle] = lt
	l.activeTimersMu.Unlock()

	go func() {
		select {
		case <-lt.timer.Chan():
			if !l.removeTimer(handle) {
				return
			}
			select {
			case l.workCh <- task:
				log.Debug().
					Str("league_id", task.LeagueID.String()).
					Int("pick_index", task.ExpectedPickIndex).
					Msg("timer fired - enqueued for processing")
			case <-l.done:
			}
		case <-lt.stop:
			stopAndDrainTimer(lt.timer)
		case <-l.done:
			stopAndDrainTimer(lt.timer)
		}
	}()

	return handle, nil
}

func (l *Local) Cancel(_ context.Context, handle string) error {
	l.activeTimersMu.Lock()
	lt, ok := l.activeTimers[handle]
	delete(l.activeTimers, handle)
	l.activeTimersMu.Unlock()

	if !ok {
		return ErrUnknownHandle
	}
	close(lt.stop)
	return nil
}

// Pending returns the number of scheduled tasks that have not fired or been cancelled.
func (l *Local) Pending() int {
	l.activeTimersMu.Lock()
	defer l.activeTimersMu.Unlock()
	return len(l.activeTimers)
}

// Run dispatches fired tasks to handler on a worker pool until ctx is cancelled.
func (l *Local) Run(ctx context.Context, handler draft.ResolveFunc) error {
	log.Info().
		Str("instance", l.instanceID).
		Int("workers", l.numWorkers).
		Msg("local turn timer started")

	var wg sync.WaitGroup
	for i := 0; i < l.numWorkers; i++ {
		wg.Add(1)
		go runWorker(ctx, &wg, l.instanceID, i, l.workCh, handler)
	}

	<-ctx.Done()
	log.Info().Str("instance", l.instanceID).Msg("shutting down turn timer")
	l.once.Do(func() { close(l.done) })
	wg.Wait()

	l.activeTimersMu.Lock()
	l.activeTimers = make(map[string]*localTimer)
	l.activeTimersMu.Unlock()
	return nil
}

func (l *Local) removeTimer(handle string) bool {
	l.activeTimersMu.Lock()
	defer l.activeTimersMu.Unlock()
	if _, ok := l.activeTimers[handle]; !ok {
		return false
	}
	delete(l.activeTimers, handle)
	return true
}

// stopAndDrainTimer stops a timer and drains its channel so nothing is left blocked on it.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}

package draft

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultSweepInterval  = time.Minute
	DefaultSweepWorkers   = 4
	DefaultSweepBatchSize = 100
)

// TurnResolver is the engine entry point the sweep drives.
type TurnResolver interface {
	ResolveTurn(ctx context.Context, leagueID uuid.UUID, expectedPickIndex int, trigger Trigger) (Resolution, error)
}

// SweeperConfig tunes the sweep.
type SweeperConfig struct {
	Interval  time.Duration
	Workers   int
	BatchSize int
}

// Sweeper periodically re-evaluates every active turn and resolves the due ones.
// It backs up the turn timer when a scheduled callback is lost.
type Sweeper struct {
	store      Store
	resolver   TurnResolver
	clock      clockwork.Clock
	interval   time.Duration
	workers    int
	batchSize  int
	instanceID string
}

func NewSweeper(store Store, resolver TurnResolver, clock clockwork.Clock, cfg SweeperConfig) *Sweeper {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultSweepInterval
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultSweepWorkers
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultSweepBatchSize
	}
	return &Sweeper{
		store:      store,
		resolver:   resolver,
		clock:      clock,
		interval:   cfg.Interval,
		workers:    cfg.Workers,
		batchSize:  cfg.BatchSize,
		instanceID: uuid.New().String()[:8],
	}
}

// Run sweeps once per interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	log.Info().
		Str("instance", s.instanceID).
		Dur("interval", s.interval).
		Int("workers", s.workers).
		Msg("sweeper started")

	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("instance", s.instanceID).Msg("sweeper shutting down")
			return nil
		case <-ticker.Chan():
			if _, err := s.Sweep(ctx); err != nil {
				log.Error().Err(err).Str("instance", s.instanceID).Msg("sweep failed")
			}
		}
	}
}

// Sweep resolves every due turn once and returns how many picks it made.
// A failure on one league does not stop the others.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	turns, err := s.store.ListActiveTurns(ctx, s.batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list active turns: %w", err)
	}

	now := s.clock.Now()
	results := make(chan bool, len(turns))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, turn := range turns {
		if !turn.Due(now) {
			continue
		}
		g.Go(func() error {
			res, err := s.resolver.ResolveTurn(gctx, turn.LeagueID, turn.PickIndex, TriggerSweep)
			if err != nil {
				log.Error().
					Err(err).
					Bool("integrity", IsIntegrity(err)).
					Str("league_id", turn.LeagueID.String()).
					Int("pick_index", turn.PickIndex).
					Str("instance", s.instanceID).
					Msg("sweep failed to resolve turn")
				return nil
			}
			results <- res.Outcome == OutcomeResolved
			return nil
		})
	}
	_ = g.Wait()
	close(results)

	resolved := 0
	for ok := range results {
		if ok {
			resolved++
		}
	}

	log.Debug().
		Str("instance", s.instanceID).
		Int("active", len(turns)).
		Int("resolved", resolved).
		Msg("sweep finished")
	return resolved, nil
}

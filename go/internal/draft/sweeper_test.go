package draft_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/leaguedraft/go/internal/draft"
	"github.com/mcdev12/leaguedraft/go/internal/draft/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweepResolvesOnlyDueTurns(t *testing.T) {
	h := newHarness(t, 2, 2)
	_, err := h.engine.StartDraft(h.ctx, h.leagueID)
	require.NoError(t, err)

	sweeper := draft.NewSweeper(h.store, h.engine, h.clock, draft.SweeperConfig{Workers: 2})

	resolved, err := sweeper.Sweep(h.ctx)
	require.NoError(t, err)
	assert.Zero(t, resolved)

	h.clock.Advance(pickLimit)
	resolved, err = sweeper.Sweep(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, resolved)

	resolved, err = sweeper.Sweep(h.ctx)
	require.NoError(t, err)
	assert.Zero(t, resolved, "the next turn just started")

	state := h.state()
	require.Len(t, state.Picks, 1)
	assert.Equal(t, events.TriggerTimeout, state.Picks[0].AutoReason.Trigger)
}

func TestSweepResolvesAutoDraftSeatImmediately(t *testing.T) {
	h := newHarness(t, 2, 2)
	_, err := h.engine.StartDraft(h.ctx, h.leagueID)
	require.NoError(t, err)
	require.NoError(t, h.engine.ToggleAutoDraft(h.ctx, h.leagueID, h.participants[0].ID, true))

	sweeper := draft.NewSweeper(h.store, h.engine, h.clock, draft.SweeperConfig{})
	resolved, err := sweeper.Sweep(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, resolved)
	assert.Equal(t, 2, h.onClock().Seat)
}

type countingResolver struct {
	calls chan uuid.UUID
}

func (r *countingResolver) ResolveTurn(_ context.Context, leagueID uuid.UUID, _ int, trigger draft.Trigger) (draft.Resolution, error) {
	if trigger != draft.TriggerSweep {
		return draft.Resolution{}, nil
	}
	r.calls <- leagueID
	return draft.Resolution{Outcome: draft.OutcomeResolved}, nil
}

func TestSweeperRunTicks(t *testing.T) {
	h := newHarness(t, 2, 2)
	_, err := h.engine.StartDraft(h.ctx, h.leagueID)
	require.NoError(t, err)
	h.clock.Advance(pickLimit)

	resolver := &countingResolver{calls: make(chan uuid.UUID, 4)}
	sweeper := draft.NewSweeper(h.store, resolver, h.clock, draft.SweeperConfig{Interval: time.Minute})

	ctx, cancel := context.WithCancel(h.ctx)
	done := make(chan error, 1)
	go func() { done <- sweeper.Run(ctx) }()

	require.NoError(t, h.clock.BlockUntilContext(ctx, 1))
	h.clock.Advance(time.Minute)

	select {
	case leagueID := <-resolver.calls:
		assert.Equal(t, h.leagueID, leagueID)
	case <-time.After(2 * time.Second):
		t.Fatal("sweep did not run on tick")
	}

	cancel()
	require.NoError(t, <-done)
}

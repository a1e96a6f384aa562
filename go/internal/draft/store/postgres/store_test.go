package postgres

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/leaguedraft/go/internal/draft"
	"github.com/mcdev12/leaguedraft/go/internal/draft/events"
	"github.com/mcdev12/leaguedraft/go/internal/draft/timer"
	"github.com/mcdev12/leaguedraft/go/internal/models"
	"github.com/mcdev12/leaguedraft/go/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupLeague(t *testing.T, s *Store, seats, rounds int) (draft.LeagueSetup, uuid.UUID) {
	t.Helper()
	setup := draft.LeagueSetup{League: models.League{
		ID:              uuid.New(),
		Name:            "pg league",
		SeatCount:       seats,
		PickTimeLimitMs: 60000,
	}}
	for seat := 1; seat <= seats; seat++ {
		setup.Participants = append(setup.Participants, models.Participant{
			ID: uuid.New(), UserID: uuid.New(), DisplayName: fmt.Sprintf("P%d", seat), Seat: seat,
		})
	}
	for i := 0; i < seats*rounds; i++ {
		setup.Teams = append(setup.Teams, models.Team{ID: uuid.New(), Name: fmt.Sprintf("Team %02d", i), Code: fmt.Sprintf("T%02d", i)})
	}
	require.NoError(t, s.CreateLeague(context.Background(), setup))
	return setup, setup.League.ID
}

func TestPostgresStoreDraftLifecycle(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()

	s := New(db.Pool)
	require.NoError(t, s.Migrate(ctx))
	require.NoError(t, s.Migrate(ctx), "migrations are idempotent")

	// Real clock: row timestamps come back from Postgres with microsecond precision.
	clock := clockwork.NewRealClock()
	engine := draft.NewEngine(s, timer.NewLocal(clock, 1), nil, clock, draft.Config{})
	setup, leagueID := setupLeague(t, s, 2, 2)

	_, err := engine.UpdatePreferences(ctx, leagueID, setup.Participants[0].ID,
		[]uuid.UUID{setup.Teams[3].ID, setup.Teams[1].ID}, true)
	require.NoError(t, err)

	_, err = engine.StartDraft(ctx, leagueID)
	require.NoError(t, err)

	turns, err := s.ListActiveTurns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, leagueID, turns[0].LeagueID)
	assert.Equal(t, []int{1}, turns[0].AutoDraftSeats)
	assert.True(t, turns[0].Due(time.Now()))

	const triggers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	resolved := 0
	for i := 0; i < triggers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := engine.ResolveTurn(ctx, leagueID, 0, draft.TriggerSweep)
			assert.NoError(t, err)
			if res.Outcome == draft.OutcomeResolved {
				mu.Lock()
				resolved++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, resolved)

	state, err := engine.GetDraftState(ctx, leagueID)
	require.NoError(t, err)
	require.Len(t, state.Picks, 1)
	assert.Equal(t, setup.Teams[3].ID, state.Picks[0].TeamID)
	require.NotNil(t, state.Picks[0].AutoReason)
	assert.Equal(t, events.AutoPickReason{Trigger: events.TriggerAutoEnabled, Source: events.SourcePreferences}, *state.Picks[0].AutoReason)
	assert.Equal(t, 1, *state.CurrentPickIndex)
	assert.Equal(t, 2, state.CurrentSeat)

	_, err = engine.MakePick(ctx, leagueID, setup.Participants[1].UserID, setup.Teams[3].ID)
	rej, ok := draft.AsRejection(err)
	require.True(t, ok)
	assert.Equal(t, draft.ReasonTeamAlreadyDrafted, rej.Reason)

	_, err = engine.MakePick(ctx, leagueID, setup.Participants[1].UserID, setup.Teams[0].ID)
	require.NoError(t, err)

	var outbox map[string]int
	rows, err := db.Pool.Query(ctx, `SELECT event_type, count(*) FROM draft_outbox WHERE league_id = $1 GROUP BY event_type`, leagueID)
	require.NoError(t, err)
	outbox = make(map[string]int)
	for rows.Next() {
		var eventType string
		var n int
		require.NoError(t, rows.Scan(&eventType, &n))
		outbox[eventType] = n
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, 1, outbox[events.EventTypeDraftStarted])
	assert.Equal(t, 2, outbox[events.EventTypePickMade])
	assert.Equal(t, 1, outbox[events.EventTypeTurnAutoResolved])
	assert.Equal(t, 3, outbox[events.EventTypePickStarted])

	require.NoError(t, engine.ResetDraft(ctx, leagueID))
	state, err = engine.GetDraftState(ctx, leagueID)
	require.NoError(t, err)
	assert.Equal(t, models.LeagueStatusSetup, state.Status)
	assert.Empty(t, state.Picks)
}

func TestPostgresStoreUnknownLeague(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	s := New(db.Pool)
	require.NoError(t, s.Migrate(ctx))

	err := s.WithinLeague(ctx, uuid.New(), func(tx draft.LeagueTx) error { return nil })
	assert.ErrorIs(t, err, draft.ErrLeagueNotFound)
}

func TestPostgresInsertPickDuplicate(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	s := New(db.Pool)
	require.NoError(t, s.Migrate(ctx))
	setup, leagueID := setupLeague(t, s, 2, 1)

	err := s.WithinLeague(ctx, leagueID, func(tx draft.LeagueTx) error {
		pick := models.Pick{
			ID: uuid.New(), PickNumber: 1, Round: 1, Seat: 1,
			ParticipantID: setup.Participants[0].ID, TeamID: setup.Teams[0].ID, PickedAt: time.Now(),
		}
		require.NoError(t, tx.InsertPick(ctx, pick))
		pick.ID = uuid.New()
		pick.PickNumber = 2
		return tx.InsertPick(ctx, pick)
	})
	assert.ErrorIs(t, err, ErrDuplicatePick)
}

func TestPostgresCreateLeagueDuplicate(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	s := New(db.Pool)
	require.NoError(t, s.Migrate(ctx))
	setup, _ := setupLeague(t, s, 2, 1)

	err := s.CreateLeague(ctx, setup)
	assert.ErrorIs(t, err, draft.ErrLeagueExists)
}

func TestPostgresListActiveTurnsOrdersByDeadline(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	s := New(db.Pool)
	require.NoError(t, s.Migrate(ctx))

	now := time.Now().UTC().Truncate(time.Millisecond)
	activeLeague := func(limit time.Duration, startedAt time.Time, idx int, autoSeat int) uuid.UUID {
		setup := draft.LeagueSetup{League: models.League{
			ID:                   uuid.New(),
			Name:                 "timed",
			Status:               models.LeagueStatusDraft,
			SeatCount:            2,
			PickTimeLimitMs:      limit.Milliseconds(),
			CurrentPickIndex:     &idx,
			CurrentPickStartedAt: &startedAt,
		}}
		for seat := 1; seat <= 2; seat++ {
			setup.Participants = append(setup.Participants, models.Participant{
				ID: uuid.New(), UserID: uuid.New(), DisplayName: fmt.Sprintf("P%d", seat), Seat: seat,
				AutoDraft: seat == autoSeat,
			})
		}
		require.NoError(t, s.CreateLeague(ctx, setup))
		return setup.League.ID
	}

	slow := activeLeague(time.Hour, now.Add(-10*time.Minute), 0, 0)
	fast := activeLeague(30*time.Second, now.Add(-time.Minute), 0, 0)
	// Pick index 2 opens round two, where seat 2 picks first.
	auto := activeLeague(time.Hour, now.Add(-time.Second), 2, 2)
	// Seat 1 is on autodraft but seat 2 is on the clock.
	waiting := activeLeague(2*time.Hour, now.Add(-20*time.Minute), 2, 1)

	first, err := s.ListActiveTurns(ctx, 1)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, fast, first[0].LeagueID)

	turns, err := s.ListActiveTurns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, turns, 4)
	var order []uuid.UUID
	for _, turn := range turns {
		order = append(order, turn.LeagueID)
	}
	assert.Equal(t, []uuid.UUID{fast, auto, slow, waiting}, order)
	assert.True(t, turns[1].Due(now))
	assert.False(t, turns[2].Due(now))
}

package draft_test

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/leaguedraft/go/internal/draft"
	"github.com/mcdev12/leaguedraft/go/internal/draft/events"
	"github.com/mcdev12/leaguedraft/go/internal/draft/store/memory"
	"github.com/mcdev12/leaguedraft/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pickLimit = 90 * time.Second

type scheduledTask struct {
	task  draft.ResolveTask
	delay time.Duration
}

type fakeScheduler struct {
	mu        sync.Mutex
	next      int
	live      map[string]scheduledTask
	cancelled []string
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{live: make(map[string]scheduledTask)}
}

func (s *fakeScheduler) Schedule(_ context.Context, delay time.Duration, task draft.ResolveTask) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	handle := fmt.Sprintf("task-%d", s.next)
	s.live[handle] = scheduledTask{task: task, delay: delay}
	return handle, nil
}

func (s *fakeScheduler) Cancel(_ context.Context, handle string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled = append(s.cancelled, handle)
	if _, ok := s.live[handle]; !ok {
		return fmt.Errorf("unknown handle %s", handle)
	}
	delete(s.live, handle)
	return nil
}

func (s *fakeScheduler) get(handle string) (scheduledTask, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.live[handle]
	return st, ok
}

func (s *fakeScheduler) liveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}

type harness struct {
	t            *testing.T
	ctx          context.Context
	clock        *clockwork.FakeClock
	store        *memory.Store
	sched        *fakeScheduler
	engine       *draft.Engine
	leagueID     uuid.UUID
	participants []models.Participant
	teams        []models.Team
}

func newHarness(t *testing.T, seats, rounds int) *harness {
	t.Helper()
	h := &harness{
		t:        t,
		ctx:      context.Background(),
		clock:    clockwork.NewFakeClock(),
		sched:    newFakeScheduler(),
		leagueID: uuid.New(),
	}
	h.store = memory.New(h.clock)
	h.engine = draft.NewEngine(h.store, h.sched, draft.NewSelector(rand.New(rand.NewSource(7))), h.clock, draft.Config{})

	for seat := 1; seat <= seats; seat++ {
		h.participants = append(h.participants, models.Participant{
			ID:          uuid.New(),
			UserID:      uuid.New(),
			DisplayName: fmt.Sprintf("Manager %d", seat),
			Seat:        seat,
		})
	}
	for i := 0; i < seats*rounds; i++ {
		h.teams = append(h.teams, models.Team{ID: uuid.New(), Name: fmt.Sprintf("Team %02d", i), Code: fmt.Sprintf("T%02d", i)})
	}

	require.NoError(t, h.store.CreateLeague(h.ctx, draft.LeagueSetup{
		League: models.League{
			ID:              h.leagueID,
			Name:            "Test League",
			SeatCount:       seats,
			PickTimeLimitMs: pickLimit.Milliseconds(),
		},
		Teams:        h.teams,
		Participants: h.participants,
	}))
	return h
}

func (h *harness) state() *draft.DraftState {
	h.t.Helper()
	st, err := h.engine.GetDraftState(h.ctx, h.leagueID)
	require.NoError(h.t, err)
	return st
}

func (h *harness) league() models.League {
	h.t.Helper()
	var out models.League
	require.NoError(h.t, h.store.WithinLeague(h.ctx, h.leagueID, func(tx draft.LeagueTx) error {
		l, err := tx.League(h.ctx)
		if err != nil {
			return err
		}
		out = *l
		return nil
	}))
	return out
}

func (h *harness) onClock() models.Participant {
	h.t.Helper()
	st := h.state()
	require.NotNil(h.t, st.CurrentParticipant)
	return *st.CurrentParticipant
}

func (h *harness) eventCount(eventType string) int {
	n := 0
	for _, a := range h.store.Activities(h.leagueID) {
		if a.EventType == eventType {
			n++
		}
	}
	return n
}

func requireReason(t *testing.T, err error, reason string) {
	t.Helper()
	rej, ok := draft.AsRejection(err)
	require.True(t, ok, "expected rejection, got %v", err)
	assert.Equal(t, reason, rej.Reason)
}

func TestStartDraft(t *testing.T) {
	h := newHarness(t, 4, 2)

	league, err := h.engine.StartDraft(h.ctx, h.leagueID)
	require.NoError(t, err)
	assert.Equal(t, models.LeagueStatusDraft, league.Status)
	require.NotNil(t, league.CurrentPickIndex)
	assert.Equal(t, 0, *league.CurrentPickIndex)
	assert.Equal(t, h.clock.Now(), *league.CurrentPickStartedAt)

	stored := h.league()
	require.NotNil(t, stored.ScheduledAutopickID)
	st, ok := h.sched.get(*stored.ScheduledAutopickID)
	require.True(t, ok)
	assert.Equal(t, draft.ResolveTask{LeagueID: h.leagueID, ExpectedPickIndex: 0}, st.task)
	assert.Equal(t, pickLimit, st.delay)

	assert.Equal(t, 1, h.eventCount(events.EventTypeDraftStarted))
	assert.Equal(t, 1, h.eventCount(events.EventTypePickStarted))
	assert.Equal(t, 1, h.onClock().Seat)

	_, err = h.engine.StartDraft(h.ctx, h.leagueID)
	requireReason(t, err, draft.ReasonDraftAlreadyStarted)
}

func TestStartDraftRejectsInvalidLeagues(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name  string
		seats int
		teams int
		users int
	}{
		{name: "no teams", seats: 2, teams: 0, users: 2},
		{name: "teams not divisible by seats", seats: 3, teams: 7, users: 3},
		{name: "fewer teams than seats", seats: 4, teams: 2, users: 4},
		{name: "missing participant", seats: 3, teams: 6, users: 2},
		{name: "single seat", seats: 1, teams: 3, users: 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := memory.New(nil)
			engine := draft.NewEngine(store, newFakeScheduler(), nil, nil, draft.Config{})

			setup := draft.LeagueSetup{League: models.League{ID: uuid.New(), SeatCount: tc.seats}}
			for i := 0; i < tc.teams; i++ {
				setup.Teams = append(setup.Teams, models.Team{ID: uuid.New()})
			}
			for seat := 1; seat <= tc.users; seat++ {
				setup.Participants = append(setup.Participants, models.Participant{ID: uuid.New(), UserID: uuid.New(), Seat: seat})
			}
			require.NoError(t, store.CreateLeague(ctx, setup))

			_, err := engine.StartDraft(ctx, setup.League.ID)
			requireReason(t, err, draft.ReasonInvalidLeague)
			assert.ErrorIs(t, err, draft.ErrInvalidLeague)
		})
	}
}

func TestStartDraftUnknownLeague(t *testing.T) {
	h := newHarness(t, 2, 1)
	_, err := h.engine.StartDraft(h.ctx, uuid.New())
	assert.ErrorIs(t, err, draft.ErrLeagueNotFound)
}

func TestStartDraftAppliesAutoDraftOptIn(t *testing.T) {
	h := newHarness(t, 2, 2)
	first := h.participants[0]

	_, err := h.engine.UpdatePreferences(h.ctx, h.leagueID, first.ID, []uuid.UUID{h.teams[3].ID}, true)
	require.NoError(t, err)

	_, err = h.engine.StartDraft(h.ctx, h.leagueID)
	require.NoError(t, err)

	assert.True(t, h.onClock().AutoDraft)
	st, ok := h.sched.get(*h.league().ScheduledAutopickID)
	require.True(t, ok)
	assert.Equal(t, draft.DefaultAutoDraftDelay, st.delay)
}

func TestStartDraftAppliesOptOutAfterReset(t *testing.T) {
	h := newHarness(t, 2, 2)
	first := h.participants[0]

	_, err := h.engine.UpdatePreferences(h.ctx, h.leagueID, first.ID, nil, true)
	require.NoError(t, err)
	_, err = h.engine.StartDraft(h.ctx, h.leagueID)
	require.NoError(t, err)
	require.True(t, h.onClock().AutoDraft)

	require.NoError(t, h.engine.ResetDraft(h.ctx, h.leagueID))
	_, err = h.engine.UpdatePreferences(h.ctx, h.leagueID, first.ID, nil, false)
	require.NoError(t, err)
	_, err = h.engine.StartDraft(h.ctx, h.leagueID)
	require.NoError(t, err)

	assert.False(t, h.onClock().AutoDraft)
	res, err := h.engine.ResolveTurn(h.ctx, h.leagueID, 0, draft.TriggerSweep)
	require.NoError(t, err)
	assert.Equal(t, draft.OutcomeNotDue, res.Outcome)

	st, ok := h.sched.get(*h.league().ScheduledAutopickID)
	require.True(t, ok)
	assert.Equal(t, pickLimit, st.delay)
}

func TestMakePickRejections(t *testing.T) {
	h := newHarness(t, 3, 2)

	_, err := h.engine.MakePick(h.ctx, h.leagueID, h.participants[0].UserID, h.teams[0].ID)
	requireReason(t, err, draft.ReasonDraftNotActive)

	_, err = h.engine.StartDraft(h.ctx, h.leagueID)
	require.NoError(t, err)

	_, err = h.engine.MakePick(h.ctx, h.leagueID, h.participants[0].UserID, h.teams[0].ID)
	require.NoError(t, err)

	cases := []struct {
		name   string
		user   uuid.UUID
		team   uuid.UUID
		reason string
	}{
		{name: "stranger", user: uuid.New(), team: h.teams[1].ID, reason: draft.ReasonNotParticipant},
		{name: "wrong seat", user: h.participants[2].UserID, team: h.teams[1].ID, reason: draft.ReasonNotYourTurn},
		{name: "team outside pool", user: h.participants[1].UserID, team: uuid.New(), reason: draft.ReasonUnknownTeam},
		{name: "team already drafted", user: h.participants[1].UserID, team: h.teams[0].ID, reason: draft.ReasonTeamAlreadyDrafted},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			before := h.league()
			_, err := h.engine.MakePick(h.ctx, h.leagueID, tc.user, tc.team)
			requireReason(t, err, tc.reason)

			after := h.league()
			assert.Equal(t, *before.CurrentPickIndex, *after.CurrentPickIndex)
			assert.Equal(t, *before.ScheduledAutopickID, *after.ScheduledAutopickID)
			assert.Len(t, h.state().Picks, 1)
		})
	}
}

func TestMakePickAdvancesTurn(t *testing.T) {
	h := newHarness(t, 3, 2)
	_, err := h.engine.StartDraft(h.ctx, h.leagueID)
	require.NoError(t, err)
	firstHandle := *h.league().ScheduledAutopickID

	h.clock.Advance(10 * time.Second)
	pick, err := h.engine.MakePick(h.ctx, h.leagueID, h.participants[0].UserID, h.teams[5].ID)
	require.NoError(t, err)
	assert.Equal(t, 1, pick.PickNumber)
	assert.Equal(t, 1, pick.Round)
	assert.Equal(t, 1, pick.Seat)
	assert.False(t, pick.Auto)
	assert.Nil(t, pick.AutoReason)

	league := h.league()
	assert.Equal(t, 1, *league.CurrentPickIndex)
	assert.Equal(t, h.clock.Now(), *league.CurrentPickStartedAt)
	assert.Contains(t, h.sched.cancelled, firstHandle)
	assert.Equal(t, 1, h.sched.liveCount())

	st, ok := h.sched.get(*league.ScheduledAutopickID)
	require.True(t, ok)
	assert.Equal(t, 1, st.task.ExpectedPickIndex)
	assert.Equal(t, 2, h.onClock().Seat)

	state := h.state()
	assert.Len(t, state.UndraftedTeams, 5)
	assert.NotContains(t, state.UndraftedTeams, h.teams[5])
}

func TestResolveTurnExactlyOnceUnderConcurrency(t *testing.T) {
	h := newHarness(t, 4, 2)
	_, err := h.engine.StartDraft(h.ctx, h.leagueID)
	require.NoError(t, err)
	h.clock.Advance(pickLimit)

	const triggers = 16
	outcomes := make(chan draft.Outcome, triggers)
	var wg sync.WaitGroup
	for i := 0; i < triggers; i++ {
		wg.Add(1)
		go func(trigger draft.Trigger) {
			defer wg.Done()
			res, err := h.engine.ResolveTurn(h.ctx, h.leagueID, 0, trigger)
			assert.NoError(t, err)
			outcomes <- res.Outcome
		}([]draft.Trigger{draft.TriggerTimer, draft.TriggerSweep}[i%2])
	}
	wg.Wait()
	close(outcomes)

	resolved := 0
	for o := range outcomes {
		if o == draft.OutcomeResolved {
			resolved++
		} else {
			assert.Equal(t, draft.OutcomeStale, o)
		}
	}
	assert.Equal(t, 1, resolved)

	state := h.state()
	require.Len(t, state.Picks, 1)
	assert.Equal(t, 1, *state.CurrentPickIndex)
	assert.Equal(t, 1, h.eventCount(events.EventTypePickMade))
	assert.Equal(t, 1, h.eventCount(events.EventTypeTurnAutoResolved))
}

func TestResolveTurnStaleAfterManualPick(t *testing.T) {
	h := newHarness(t, 2, 2)
	_, err := h.engine.StartDraft(h.ctx, h.leagueID)
	require.NoError(t, err)

	_, err = h.engine.MakePick(h.ctx, h.leagueID, h.participants[0].UserID, h.teams[0].ID)
	require.NoError(t, err)
	before := h.league()

	h.clock.Advance(2 * pickLimit)
	res, err := h.engine.ResolveTurn(h.ctx, h.leagueID, 0, draft.TriggerTimer)
	require.NoError(t, err)
	assert.Equal(t, draft.OutcomeStale, res.Outcome)
	assert.Nil(t, res.Pick)

	after := h.league()
	assert.Equal(t, before, after)
	assert.Len(t, h.state().Picks, 1)
}

func TestResolveTurnNotDueBeforeLimit(t *testing.T) {
	h := newHarness(t, 2, 2)
	_, err := h.engine.StartDraft(h.ctx, h.leagueID)
	require.NoError(t, err)

	h.clock.Advance(pickLimit - time.Second)
	res, err := h.engine.ResolveTurn(h.ctx, h.leagueID, 0, draft.TriggerSweep)
	require.NoError(t, err)
	assert.Equal(t, draft.OutcomeNotDue, res.Outcome)
	assert.Empty(t, h.state().Picks)
}

func TestResolveTurnOnTimeoutUsesPreferences(t *testing.T) {
	h := newHarness(t, 2, 2)
	_, err := h.engine.UpdatePreferences(h.ctx, h.leagueID, h.participants[0].ID,
		[]uuid.UUID{h.teams[2].ID, h.teams[0].ID}, false)
	require.NoError(t, err)
	_, err = h.engine.StartDraft(h.ctx, h.leagueID)
	require.NoError(t, err)

	h.clock.Advance(pickLimit)
	res, err := h.engine.ResolveTurn(h.ctx, h.leagueID, 0, draft.TriggerTimer)
	require.NoError(t, err)
	require.Equal(t, draft.OutcomeResolved, res.Outcome)
	assert.Equal(t, h.teams[2].ID, res.Pick.TeamID)
	assert.True(t, res.Pick.Auto)
	assert.Equal(t, events.AutoPickReason{Trigger: events.TriggerTimeout, Source: events.SourcePreferences}, *res.Reason)

	var payload events.TurnAutoResolvedPayload
	for _, a := range h.store.Activities(h.leagueID) {
		if a.EventType == events.EventTypeTurnAutoResolved {
			require.NoError(t, json.Unmarshal(a.Payload, &payload))
		}
	}
	assert.Equal(t, "Manager 1 ran out of time; drafted Team 02 from their rankings", payload.Message)
	assert.Equal(t, events.TriggerTimeout, payload.Reason.Trigger)
}

func TestResolveTurnAutoDraftRandomFallback(t *testing.T) {
	h := newHarness(t, 2, 2)
	_, err := h.engine.StartDraft(h.ctx, h.leagueID)
	require.NoError(t, err)
	require.NoError(t, h.engine.ToggleAutoDraft(h.ctx, h.leagueID, h.participants[0].ID, true))

	res, err := h.engine.ResolveTurn(h.ctx, h.leagueID, 0, draft.TriggerTimer)
	require.NoError(t, err)
	require.Equal(t, draft.OutcomeResolved, res.Outcome)
	assert.Equal(t, events.AutoPickReason{Trigger: events.TriggerAutoEnabled, Source: events.SourceRandom}, *res.Reason)

	pool := make(map[uuid.UUID]bool)
	for _, team := range h.teams {
		pool[team.ID] = true
	}
	assert.True(t, pool[res.Pick.TeamID])
}

func TestDraftCompletes(t *testing.T) {
	h := newHarness(t, 8, 4)
	_, err := h.engine.StartDraft(h.ctx, h.leagueID)
	require.NoError(t, err)

	for i := 0; i < 32; i++ {
		seat := draft.SeatForPickIndex(i, 8)
		actor := h.participants[seat-1]
		pick, err := h.engine.MakePick(h.ctx, h.leagueID, actor.UserID, h.teams[i].ID)
		require.NoError(t, err, "pick %d", i)
		assert.Equal(t, i+1, pick.PickNumber)
		assert.Equal(t, i/8+1, pick.Round)
		assert.Equal(t, seat, pick.Seat)
	}

	league := h.league()
	assert.Equal(t, models.LeagueStatusLive, league.Status)
	assert.Nil(t, league.CurrentPickIndex)
	assert.Nil(t, league.CurrentPickStartedAt)
	assert.Nil(t, league.ScheduledAutopickID)
	assert.Equal(t, 0, h.sched.liveCount())
	assert.Equal(t, 1, h.eventCount(events.EventTypeDraftCompleted))
	assert.Equal(t, 32, h.eventCount(events.EventTypePickStarted))

	state := h.state()
	assert.Len(t, state.Picks, 32)
	assert.Empty(t, state.UndraftedTeams)

	_, err = h.engine.MakePick(h.ctx, h.leagueID, h.participants[0].UserID, h.teams[0].ID)
	requireReason(t, err, draft.ReasonDraftNotActive)

	res, err := h.engine.ResolveTurn(h.ctx, h.leagueID, 32, draft.TriggerSweep)
	require.NoError(t, err)
	assert.Equal(t, draft.OutcomeStale, res.Outcome)
}

func TestToggleAutoDraftReschedulesCurrentTurn(t *testing.T) {
	h := newHarness(t, 2, 2)
	_, err := h.engine.StartDraft(h.ctx, h.leagueID)
	require.NoError(t, err)
	original := *h.league().ScheduledAutopickID

	h.clock.Advance(30 * time.Second)
	require.NoError(t, h.engine.ToggleAutoDraft(h.ctx, h.leagueID, h.participants[0].ID, true))

	enabled := *h.league().ScheduledAutopickID
	assert.NotEqual(t, original, enabled)
	assert.Contains(t, h.sched.cancelled, original)
	st, ok := h.sched.get(enabled)
	require.True(t, ok)
	assert.Equal(t, draft.DefaultAutoDraftDelay, st.delay)
	assert.Equal(t, 0, st.task.ExpectedPickIndex)

	require.NoError(t, h.engine.ToggleAutoDraft(h.ctx, h.leagueID, h.participants[0].ID, false))
	disabled := *h.league().ScheduledAutopickID
	st, ok = h.sched.get(disabled)
	require.True(t, ok)
	assert.Equal(t, pickLimit-30*time.Second, st.delay)
	assert.Equal(t, 1, h.sched.liveCount())
}

func TestToggleAutoDraftOffTurnLeavesTimer(t *testing.T) {
	h := newHarness(t, 2, 2)
	_, err := h.engine.StartDraft(h.ctx, h.leagueID)
	require.NoError(t, err)
	handle := *h.league().ScheduledAutopickID

	require.NoError(t, h.engine.ToggleAutoDraft(h.ctx, h.leagueID, h.participants[1].ID, true))
	assert.Equal(t, handle, *h.league().ScheduledAutopickID)
	assert.True(t, h.state().Participants[1].AutoDraft)

	err = h.engine.ToggleAutoDraft(h.ctx, h.leagueID, uuid.New(), true)
	requireReason(t, err, draft.ReasonNotParticipant)
}

func TestUpdatePreferences(t *testing.T) {
	h := newHarness(t, 2, 2)
	p := h.participants[0]

	prefs, err := h.engine.UpdatePreferences(h.ctx, h.leagueID, p.ID,
		[]uuid.UUID{h.teams[1].ID, h.teams[0].ID, h.teams[1].ID}, false)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{h.teams[1].ID, h.teams[0].ID}, prefs.RankedTeamIDs)

	_, err = h.engine.UpdatePreferences(h.ctx, h.leagueID, p.ID, []uuid.UUID{uuid.New()}, false)
	requireReason(t, err, draft.ReasonUnknownTeam)

	_, err = h.engine.StartDraft(h.ctx, h.leagueID)
	require.NoError(t, err)
	_, err = h.engine.UpdatePreferences(h.ctx, h.leagueID, p.ID, nil, true)
	requireReason(t, err, draft.ReasonDraftAlreadyStarted)
}

func TestResetDraft(t *testing.T) {
	h := newHarness(t, 2, 2)
	_, err := h.engine.StartDraft(h.ctx, h.leagueID)
	require.NoError(t, err)
	_, err = h.engine.MakePick(h.ctx, h.leagueID, h.participants[0].UserID, h.teams[0].ID)
	require.NoError(t, err)

	require.NoError(t, h.engine.ResetDraft(h.ctx, h.leagueID))

	league := h.league()
	assert.Equal(t, models.LeagueStatusSetup, league.Status)
	assert.Nil(t, league.CurrentPickIndex)
	assert.Nil(t, league.ScheduledAutopickID)
	assert.Equal(t, 0, h.sched.liveCount())
	assert.Empty(t, h.state().Picks)
	assert.Equal(t, 1, h.eventCount(events.EventTypeDraftReset))

	_, err = h.engine.StartDraft(h.ctx, h.leagueID)
	require.NoError(t, err)
}

func TestGetDraftStateTimeRemaining(t *testing.T) {
	h := newHarness(t, 2, 2)
	_, err := h.engine.StartDraft(h.ctx, h.leagueID)
	require.NoError(t, err)

	h.clock.Advance(20 * time.Second)
	state := h.state()
	assert.Equal(t, models.LeagueStatusDraft, state.Status)
	assert.Equal(t, 4, state.TotalPicks)
	assert.Equal(t, 1, state.CurrentRound)
	assert.Equal(t, 1, state.CurrentSeat)
	assert.Equal(t, (pickLimit - 20*time.Second).Milliseconds(), state.TimeRemainingMs)

	h.clock.Advance(pickLimit)
	assert.Zero(t, h.state().TimeRemainingMs)
}

func TestResolveTurnIntegrityViolations(t *testing.T) {
	ctx := context.Background()
	started := time.Now().Add(-time.Hour)
	idx := 0

	cases := []struct {
		name         string
		teams        []models.Team
		participants []models.Participant
	}{
		{
			name:         "no participant at seat",
			teams:        []models.Team{{ID: uuid.New()}, {ID: uuid.New()}},
			participants: []models.Participant{{ID: uuid.New(), UserID: uuid.New(), Seat: 2}},
		},
		{
			name:  "empty pool",
			teams: nil,
			participants: []models.Participant{
				{ID: uuid.New(), UserID: uuid.New(), Seat: 1},
				{ID: uuid.New(), UserID: uuid.New(), Seat: 2},
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := memory.New(nil)
			engine := draft.NewEngine(store, newFakeScheduler(), nil, nil, draft.Config{})
			leagueID := uuid.New()
			require.NoError(t, store.CreateLeague(ctx, draft.LeagueSetup{
				League: models.League{
					ID:                   leagueID,
					Status:               models.LeagueStatusDraft,
					SeatCount:            2,
					CurrentPickIndex:     &idx,
					CurrentPickStartedAt: &started,
				},
				Teams:        tc.teams,
				Participants: tc.participants,
			}))

			_, err := engine.ResolveTurn(ctx, leagueID, 0, draft.TriggerSweep)
			require.Error(t, err)
			assert.True(t, draft.IsIntegrity(err))
			assert.Empty(t, store.Activities(leagueID))
		})
	}
}

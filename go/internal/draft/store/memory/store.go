package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/leaguedraft/go/internal/draft"
	"github.com/mcdev12/leaguedraft/go/internal/models"
)

var (
	ErrDuplicatePick      = errors.New("pick number or team already drafted")
	ErrUnknownParticipant = errors.New("participant not in league")
)

// ActivitySink receives activities once the transaction that recorded them commits,
// while the league is still locked. It must not block or call back into the store.
type ActivitySink func(activities []models.Activity)

// Store keeps leagues in process memory. A per-league mutex serializes transactions,
// which is enough for a single-process deployment.
type Store struct {
	mu      sync.RWMutex
	leagues map[uuid.UUID]*record
	clock   clockwork.Clock
	sink    ActivitySink
}

type record struct {
	mu    sync.Mutex
	state snapshot
}

type snapshot struct {
	league       models.League
	teams        []models.Team
	participants []models.Participant
	prefs        map[uuid.UUID]models.DraftPreferences
	picks        []models.Pick
	activities   []models.Activity
}

func New(clock clockwork.Clock) *Store {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Store{
		leagues: make(map[uuid.UUID]*record),
		clock:   clock,
	}
}

// SetActivitySink registers the receiver of committed activities.
func (s *Store) SetActivitySink(sink ActivitySink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sink = sink
}

func (s *Store) CreateLeague(_ context.Context, setup draft.LeagueSetup) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.leagues[setup.League.ID]; exists {
		return fmt.Errorf("%w: %s", draft.ErrLeagueExists, setup.League.ID)
	}

	league := setup.League
	if league.Status == "" {
		league.Status = models.LeagueStatusSetup
	}
	if league.PickTimeLimitMs <= 0 {
		league.PickTimeLimitMs = models.DefaultPickTimeLimitMs
	}
	now := s.clock.Now()
	if league.CreatedAt.IsZero() {
		league.CreatedAt = now
	}
	league.UpdatedAt = now

	participants := slices.Clone(setup.Participants)
	for i := range participants {
		participants[i].LeagueID = league.ID
		if participants[i].CreatedAt.IsZero() {
			participants[i].CreatedAt = now
		}
	}

	s.leagues[league.ID] = &record{state: snapshot{
		league:       league,
		teams:        slices.Clone(setup.Teams),
		participants: participants,
		prefs:        make(map[uuid.UUID]models.DraftPreferences),
	}}
	return nil
}

func (s *Store) WithinLeague(ctx context.Context, leagueID uuid.UUID, fn func(tx draft.LeagueTx) error) error {
	s.mu.RLock()
	rec, ok := s.leagues[leagueID]
	sink := s.sink
	s.mu.RUnlock()
	if !ok {
		return draft.ErrLeagueNotFound
	}

	rec.mu.Lock()
	tx := &leagueTx{store: s, state: rec.state.clone()}
	if err := fn(tx); err != nil {
		rec.mu.Unlock()
		return err
	}
	tx.state.activities = append(tx.state.activities, tx.pending...)
	rec.state = tx.state
	// Handed over before the league unlocks so sinks see commit order.
	if sink != nil && len(tx.pending) > 0 {
		sink(tx.pending)
	}
	rec.mu.Unlock()
	return nil
}

func (s *Store) ListActiveTurns(_ context.Context, limit int) ([]draft.ActiveTurn, error) {
	s.mu.RLock()
	records := make([]*record, 0, len(s.leagues))
	for _, rec := range s.leagues {
		records = append(records, rec)
	}
	s.mu.RUnlock()

	var turns []draft.ActiveTurn
	for _, rec := range records {
		rec.mu.Lock()
		league := rec.state.league
		if league.HasActiveTurn() {
			turn := draft.ActiveTurn{
				LeagueID:      league.ID,
				PickIndex:     *league.CurrentPickIndex,
				SeatCount:     league.SeatCount,
				PickTimeLimit: league.PickTimeLimit(),
			}
			if league.CurrentPickStartedAt != nil {
				turn.StartedAt = *league.CurrentPickStartedAt
			}
			for _, p := range rec.state.participants {
				if p.AutoDraft {
					turn.AutoDraftSeats = append(turn.AutoDraftSeats, p.Seat)
				}
			}
			turns = append(turns, turn)
		}
		rec.mu.Unlock()
	}

	sort.Slice(turns, func(i, j int) bool {
		return turns[i].DueAt().Before(turns[j].DueAt())
	})
	if limit > 0 && len(turns) > limit {
		turns = turns[:limit]
	}
	return turns, nil
}

// Activities returns every committed activity for a league in the order recorded.
func (s *Store) Activities(leagueID uuid.UUID) []models.Activity {
	s.mu.RLock()
	rec, ok := s.leagues[leagueID]
	s.mu.RUnlock()
	if !ok {
		return nil
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return slices.Clone(rec.state.activities)
}

func (sn snapshot) clone() snapshot {
	out := snapshot{
		league:       cloneLeague(sn.league),
		teams:        slices.Clone(sn.teams),
		participants: slices.Clone(sn.participants),
		prefs:        make(map[uuid.UUID]models.DraftPreferences, len(sn.prefs)),
		picks:        slices.Clone(sn.picks),
		activities:   sn.activities,
	}
	for k, v := range sn.prefs {
		v.RankedTeamIDs = slices.Clone(v.RankedTeamIDs)
		out.prefs[k] = v
	}
	return out
}

func cloneLeague(l models.League) models.League {
	if l.CurrentPickIndex != nil {
		idx := *l.CurrentPickIndex
		l.CurrentPickIndex = &idx
	}
	if l.CurrentPickStartedAt != nil {
		at := *l.CurrentPickStartedAt
		l.CurrentPickStartedAt = &at
	}
	if l.ScheduledAutopickID != nil {
		handle := *l.ScheduledAutopickID
		l.ScheduledAutopickID = &handle
	}
	return l
}

type leagueTx struct {
	store   *Store
	state   snapshot
	pending []models.Activity
}

func (tx *leagueTx) League(context.Context) (*models.League, error) {
	l := cloneLeague(tx.state.league)
	return &l, nil
}

func (tx *leagueTx) SaveDraftState(_ context.Context, league *models.League) error {
	cur := &tx.state.league
	cur.Status = league.Status
	cur.UpdatedAt = league.UpdatedAt
	saved := cloneLeague(*league)
	cur.CurrentPickIndex = saved.CurrentPickIndex
	cur.CurrentPickStartedAt = saved.CurrentPickStartedAt
	cur.ScheduledAutopickID = saved.ScheduledAutopickID
	return nil
}

func (tx *leagueTx) Participants(context.Context) ([]models.Participant, error) {
	out := slices.Clone(tx.state.participants)
	sort.Slice(out, func(i, j int) bool { return out[i].Seat < out[j].Seat })
	return out, nil
}

func (tx *leagueTx) SetParticipantAutoDraft(_ context.Context, participantID uuid.UUID, enabled bool) error {
	for i := range tx.state.participants {
		if tx.state.participants[i].ID == participantID {
			tx.state.participants[i].AutoDraft = enabled
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownParticipant, participantID)
}

func (tx *leagueTx) Preferences(_ context.Context, participantID uuid.UUID) (*models.DraftPreferences, error) {
	prefs, ok := tx.state.prefs[participantID]
	if !ok {
		return nil, nil
	}
	prefs.RankedTeamIDs = slices.Clone(prefs.RankedTeamIDs)
	return &prefs, nil
}

func (tx *leagueTx) SavePreferences(_ context.Context, prefs models.DraftPreferences) error {
	prefs.RankedTeamIDs = slices.Clone(prefs.RankedTeamIDs)
	tx.state.prefs[prefs.ParticipantID] = prefs
	return nil
}

func (tx *leagueTx) Teams(context.Context) ([]models.Team, error) {
	return slices.Clone(tx.state.teams), nil
}

func (tx *leagueTx) Picks(context.Context) ([]models.Pick, error) {
	return slices.Clone(tx.state.picks), nil
}

func (tx *leagueTx) InsertPick(_ context.Context, pick models.Pick) error {
	for _, p := range tx.state.picks {
		if p.PickNumber == pick.PickNumber || p.TeamID == pick.TeamID {
			return ErrDuplicatePick
		}
	}
	tx.state.picks = append(tx.state.picks, pick)
	return nil
}

func (tx *leagueTx) DeletePicks(context.Context) (int, error) {
	n := len(tx.state.picks)
	tx.state.picks = nil
	return n, nil
}

func (tx *leagueTx) AppendActivity(_ context.Context, eventType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	tx.pending = append(tx.pending, models.Activity{
		ID:        uuid.New(),
		LeagueID:  tx.state.league.ID,
		EventType: eventType,
		Payload:   data,
		CreatedAt: tx.store.clock.Now().In(time.UTC),
	})
	return nil
}

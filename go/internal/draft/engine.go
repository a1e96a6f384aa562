package draft

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/leaguedraft/go/internal/draft/events"
	"github.com/mcdev12/leaguedraft/go/internal/models"
	"github.com/rs/zerolog/log"
)

// DefaultAutoDraftDelay lets clients render a turn before an autodrafting seat picks.
const DefaultAutoDraftDelay = 100 * time.Millisecond

// Trigger names the caller of ResolveTurn.
type Trigger string

const (
	TriggerTimer Trigger = "timer"
	TriggerSweep Trigger = "sweep"
)

// Outcome is the result of a ResolveTurn attempt.
type Outcome int

const (
	OutcomeResolved Outcome = iota + 1
	// OutcomeStale means the turn already advanced or the draft is no longer active.
	OutcomeStale
	// OutcomeNotDue means the turn is current but neither expired nor on autodraft.
	OutcomeNotDue
)

func (o Outcome) String() string {
	switch o {
	case OutcomeResolved:
		return "resolved"
	case OutcomeStale:
		return "stale"
	case OutcomeNotDue:
		return "not_due"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Resolution describes what ResolveTurn did.
type Resolution struct {
	Outcome Outcome
	Pick    *models.Pick
	Reason  *events.AutoPickReason
}

// Config tunes the engine.
type Config struct {
	AutoDraftDelay time.Duration
}

// Engine is the single authority for mutating a league's draft state.
type Engine struct {
	store          Store
	timer          *TurnTimer
	selector       *Selector
	clock          clockwork.Clock
	autoDraftDelay time.Duration
}

func NewEngine(store Store, scheduler Scheduler, selector *Selector, clock clockwork.Clock, cfg Config) *Engine {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if selector == nil {
		selector = NewSelector(nil)
	}
	if cfg.AutoDraftDelay <= 0 {
		cfg.AutoDraftDelay = DefaultAutoDraftDelay
	}
	return &Engine{
		store:          store,
		timer:          NewTurnTimer(scheduler),
		selector:       selector,
		clock:          clock,
		autoDraftDelay: cfg.AutoDraftDelay,
	}
}

// turn bundles the records a transition reads once per transaction.
type turn struct {
	league       *models.League
	participants []models.Participant
	teams        []models.Team
	picks        []models.Pick
}

func loadTurn(ctx context.Context, tx LeagueTx) (*turn, error) {
	league, err := tx.League(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load league: %w", err)
	}
	participants, err := tx.Participants(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load participants: %w", err)
	}
	teams, err := tx.Teams(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load teams: %w", err)
	}
	picks, err := tx.Picks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load picks: %w", err)
	}
	return &turn{league: league, participants: participants, teams: teams, picks: picks}, nil
}

func (t *turn) participantAtSeat(seat int) *models.Participant {
	for i := range t.participants {
		if t.participants[i].Seat == seat {
			return &t.participants[i]
		}
	}
	return nil
}

func (t *turn) participantByUser(userID uuid.UUID) *models.Participant {
	for i := range t.participants {
		if t.participants[i].UserID == userID {
			return &t.participants[i]
		}
	}
	return nil
}

func (t *turn) participantByID(id uuid.UUID) *models.Participant {
	for i := range t.participants {
		if t.participants[i].ID == id {
			return &t.participants[i]
		}
	}
	return nil
}

func (t *turn) team(id uuid.UUID) *models.Team {
	for i := range t.teams {
		if t.teams[i].ID == id {
			return &t.teams[i]
		}
	}
	return nil
}

func (t *turn) drafted() map[uuid.UUID]bool {
	drafted := make(map[uuid.UUID]bool, len(t.picks))
	for _, p := range t.picks {
		drafted[p.TeamID] = true
	}
	return drafted
}

func (t *turn) undrafted() []models.Team {
	drafted := t.drafted()
	out := make([]models.Team, 0, len(t.teams)-len(drafted))
	for _, team := range t.teams {
		if !drafted[team.ID] {
			out = append(out, team)
		}
	}
	return out
}

func (t *turn) integrity(detail string, args ...any) error {
	idx := -1
	if t.league.CurrentPickIndex != nil {
		idx = *t.league.CurrentPickIndex
	}
	return &IntegrityError{LeagueID: t.league.ID, PickIndex: idx, Detail: fmt.Sprintf(detail, args...)}
}

// turnDelay is how long the seat's participant gets before the engine resolves the turn.
func (e *Engine) turnDelay(league *models.League, p *models.Participant) time.Duration {
	if p.AutoDraft {
		return e.autoDraftDelay
	}
	return league.PickTimeLimit()
}

// StartDraft moves a league from setup to its first turn.
func (e *Engine) StartDraft(ctx context.Context, leagueID uuid.UUID) (*models.League, error) {
	var started *models.League

	err := e.store.WithinLeague(ctx, leagueID, func(tx LeagueTx) error {
		t, err := loadTurn(ctx, tx)
		if err != nil {
			return err
		}
		league := t.league

		if league.Status != models.LeagueStatusSetup {
			return reject(ErrDraftAlreadyStarted)
		}
		if err := validateLeague(t); err != nil {
			return err
		}

		for i := range t.participants {
			p := &t.participants[i]
			prefs, err := tx.Preferences(ctx, p.ID)
			if err != nil {
				return fmt.Errorf("failed to load preferences for participant %s: %w", p.ID, err)
			}
			// Saved preferences are the pre-draft choice and win over any
			// flag left from an earlier draft.
			if prefs == nil || prefs.AutoDraft == p.AutoDraft {
				continue
			}
			if err := tx.SetParticipantAutoDraft(ctx, p.ID, prefs.AutoDraft); err != nil {
				return fmt.Errorf("failed to set autodraft for participant %s: %w", p.ID, err)
			}
			p.AutoDraft = prefs.AutoDraft
		}

		now := e.clock.Now()
		first := 0
		league.Status = models.LeagueStatusDraft
		league.CurrentPickIndex = &first
		league.CurrentPickStartedAt = &now
		league.UpdatedAt = now

		onClock := t.participantAtSeat(SeatForPickIndex(first, league.SeatCount))
		if onClock == nil {
			return t.integrity("no participant at seat %d", SeatForPickIndex(first, league.SeatCount))
		}
		delay := e.turnDelay(league, onClock)
		if err := e.timer.Schedule(ctx, league, first, delay); err != nil {
			return err
		}
		if err := tx.SaveDraftState(ctx, league); err != nil {
			return fmt.Errorf("failed to save draft state: %w", err)
		}

		if err := tx.AppendActivity(ctx, events.EventTypeDraftStarted, events.DraftStartedPayload{
			LeagueID:    league.ID.String(),
			StartedAt:   now,
			SeatCount:   league.SeatCount,
			TotalRounds: len(t.teams) / league.SeatCount,
			TotalPicks:  len(t.teams),
		}); err != nil {
			return fmt.Errorf("failed to record DraftStarted: %w", err)
		}
		if err := e.appendPickStarted(ctx, tx, league, onClock, delay); err != nil {
			return err
		}

		started = league
		return nil
	})
	if err != nil {
		e.logFailure(err, leagueID, "start draft")
		return nil, err
	}

	log.Info().
		Str("league_id", leagueID.String()).
		Int("seat_count", started.SeatCount).
		Msg("draft started")
	return started, nil
}

func validateLeague(t *turn) error {
	n := t.league.SeatCount
	if n < 2 {
		return reject(ErrInvalidLeague)
	}
	if len(t.participants) != n {
		return reject(ErrInvalidLeague)
	}
	seats := make(map[int]bool, n)
	for _, p := range t.participants {
		if p.Seat < 1 || p.Seat > n || seats[p.Seat] {
			return reject(ErrInvalidLeague)
		}
		seats[p.Seat] = true
	}
	if len(t.teams) == 0 || len(t.teams)%n != 0 {
		return reject(ErrInvalidLeague)
	}
	if len(t.picks) > 0 {
		return reject(ErrInvalidLeague)
	}
	return nil
}

// MakePick records a manual pick by the participant belonging to actorUserID.
func (e *Engine) MakePick(ctx context.Context, leagueID, actorUserID, teamID uuid.UUID) (*models.Pick, error) {
	var made *models.Pick

	err := e.store.WithinLeague(ctx, leagueID, func(tx LeagueTx) error {
		t, err := loadTurn(ctx, tx)
		if err != nil {
			return err
		}
		if !t.league.HasActiveTurn() {
			return reject(ErrDraftNotActive)
		}

		actor := t.participantByUser(actorUserID)
		if actor == nil {
			return reject(ErrNotParticipant)
		}
		if actor.Seat != SeatForPickIndex(*t.league.CurrentPickIndex, t.league.SeatCount) {
			return reject(ErrNotYourTurn)
		}
		team := t.team(teamID)
		if team == nil {
			return reject(ErrUnknownTeam)
		}
		if t.drafted()[teamID] {
			return reject(ErrTeamAlreadyDrafted)
		}

		made, err = e.commitPick(ctx, tx, t, actor, *team, nil)
		return err
	})
	if err != nil {
		e.logFailure(err, leagueID, "make pick")
		return nil, err
	}

	log.Info().
		Str("league_id", leagueID.String()).
		Int("pick_number", made.PickNumber).
		Str("team_id", made.TeamID.String()).
		Msg("pick made")
	return made, nil
}

// ResolveTurn is the guarded entry point shared by the turn timer and the sweep.
// Stale or premature invocations return a non-resolved Outcome and a nil error.
func (e *Engine) ResolveTurn(ctx context.Context, leagueID uuid.UUID, expectedPickIndex int, trigger Trigger) (Resolution, error) {
	var res Resolution

	err := e.store.WithinLeague(ctx, leagueID, func(tx LeagueTx) error {
		league, err := tx.League(ctx)
		if err != nil {
			return fmt.Errorf("failed to load league: %w", err)
		}
		if !league.HasActiveTurn() || *league.CurrentPickIndex != expectedPickIndex {
			res.Outcome = OutcomeStale
			return nil
		}

		t, err := loadTurn(ctx, tx)
		if err != nil {
			return err
		}
		league = t.league

		seat := SeatForPickIndex(expectedPickIndex, league.SeatCount)
		onClock := t.participantAtSeat(seat)
		if onClock == nil {
			return t.integrity("no participant at seat %d", seat)
		}

		var reason events.AutoPickReason
		switch {
		case onClock.AutoDraft:
			reason.Trigger = events.TriggerAutoEnabled
		case e.expired(league):
			reason.Trigger = events.TriggerTimeout
		default:
			res.Outcome = OutcomeNotDue
			return nil
		}

		prefs, err := tx.Preferences(ctx, onClock.ID)
		if err != nil {
			return fmt.Errorf("failed to load preferences: %w", err)
		}
		var ranked []uuid.UUID
		if prefs != nil {
			ranked = prefs.RankedTeamIDs
		}

		team, source, err := e.selector.Select(ranked, t.undrafted())
		if errors.Is(err, ErrEmptyPool) {
			return t.integrity("turn is active but no undrafted teams remain")
		}
		if err != nil {
			return err
		}
		reason.Source = source

		pick, err := e.commitPick(ctx, tx, t, onClock, team, &reason)
		if err != nil {
			return err
		}
		res = Resolution{Outcome: OutcomeResolved, Pick: pick, Reason: &reason}
		return nil
	})
	if errors.Is(err, ErrLeagueNotFound) {
		res.Outcome = OutcomeStale
		err = nil
	}
	if err != nil {
		e.logFailure(err, leagueID, "resolve turn")
		return Resolution{}, err
	}

	logger := log.With().
		Str("league_id", leagueID.String()).
		Int("pick_index", expectedPickIndex).
		Str("trigger", string(trigger)).
		Logger()
	if res.Outcome != OutcomeResolved {
		logger.Debug().Str("outcome", res.Outcome.String()).Msg("turn resolution skipped")
		return res, nil
	}
	logger.Info().
		Str("team_id", res.Pick.TeamID.String()).
		Str("reason_trigger", res.Reason.Trigger.String()).
		Str("reason_source", res.Reason.Source.String()).
		Msg("turn auto-resolved")
	return res, nil
}

// HandleResolveTask adapts ResolveTurn to the scheduler callback shape.
func (e *Engine) HandleResolveTask(ctx context.Context, task ResolveTask) error {
	_, err := e.ResolveTurn(ctx, task.LeagueID, task.ExpectedPickIndex, TriggerTimer)
	return err
}

func (e *Engine) expired(league *models.League) bool {
	if league.CurrentPickStartedAt == nil {
		return true
	}
	return e.clock.Since(*league.CurrentPickStartedAt) >= league.PickTimeLimit()
}

// commitPick appends the pick and either advances to the next turn or completes the draft.
// Callers have already validated the turn and team.
func (e *Engine) commitPick(ctx context.Context, tx LeagueTx, t *turn, p *models.Participant, team models.Team, reason *events.AutoPickReason) (*models.Pick, error) {
	league := t.league
	idx := *league.CurrentPickIndex
	now := e.clock.Now()

	pick := models.Pick{
		ID:            uuid.New(),
		LeagueID:      league.ID,
		PickNumber:    idx + 1,
		Round:         RoundForPickIndex(idx, league.SeatCount),
		Seat:          p.Seat,
		ParticipantID: p.ID,
		TeamID:        team.ID,
		PickedAt:      now,
		Auto:          reason != nil,
		AutoReason:    reason,
	}
	if err := tx.InsertPick(ctx, pick); err != nil {
		return nil, fmt.Errorf("failed to insert pick: %w", err)
	}
	t.picks = append(t.picks, pick)

	if err := tx.AppendActivity(ctx, events.EventTypePickMade, events.PickMadePayload{
		LeagueID:      league.ID.String(),
		PickID:        pick.ID.String(),
		PickNumber:    pick.PickNumber,
		Round:         pick.Round,
		Seat:          pick.Seat,
		ParticipantID: p.ID.String(),
		TeamID:        team.ID.String(),
		TeamName:      team.Name,
		MadeAt:        now,
		AutoReason:    reason,
	}); err != nil {
		return nil, fmt.Errorf("failed to record PickMade: %w", err)
	}
	if reason != nil {
		if err := tx.AppendActivity(ctx, events.EventTypeTurnAutoResolved, events.TurnAutoResolvedPayload{
			LeagueID:        league.ID.String(),
			PickNumber:      pick.PickNumber,
			ParticipantID:   p.ID.String(),
			ParticipantName: p.DisplayName,
			TeamID:          team.ID.String(),
			TeamName:        team.Name,
			Reason:          *reason,
			Message:         reason.Describe(p.DisplayName, team.Name),
		}); err != nil {
			return nil, fmt.Errorf("failed to record TurnAutoResolved: %w", err)
		}
	}

	next := idx + 1
	league.UpdatedAt = now

	if next >= len(t.teams) {
		league.Status = models.LeagueStatusLive
		league.CurrentPickIndex = nil
		league.CurrentPickStartedAt = nil
		e.timer.Clear(ctx, league)
		if err := tx.SaveDraftState(ctx, league); err != nil {
			return nil, fmt.Errorf("failed to save draft state: %w", err)
		}
		if err := tx.AppendActivity(ctx, events.EventTypeDraftCompleted, events.DraftCompletedPayload{
			LeagueID:    league.ID.String(),
			CompletedAt: now,
			TotalPicks:  len(t.picks),
		}); err != nil {
			return nil, fmt.Errorf("failed to record DraftCompleted: %w", err)
		}
		log.Info().Str("league_id", league.ID.String()).Int("total_picks", len(t.picks)).Msg("draft completed")
		return &pick, nil
	}

	nextSeat := SeatForPickIndex(next, league.SeatCount)
	onClock := t.participantAtSeat(nextSeat)
	if onClock == nil {
		return nil, t.integrity("no participant at seat %d", nextSeat)
	}

	league.CurrentPickIndex = &next
	league.CurrentPickStartedAt = &now
	delay := e.turnDelay(league, onClock)
	if err := e.timer.Schedule(ctx, league, next, delay); err != nil {
		return nil, err
	}
	if err := tx.SaveDraftState(ctx, league); err != nil {
		return nil, fmt.Errorf("failed to save draft state: %w", err)
	}
	if err := e.appendPickStarted(ctx, tx, league, onClock, delay); err != nil {
		return nil, err
	}
	return &pick, nil
}

func (e *Engine) appendPickStarted(ctx context.Context, tx LeagueTx, league *models.League, p *models.Participant, delay time.Duration) error {
	idx := *league.CurrentPickIndex
	started := *league.CurrentPickStartedAt
	err := tx.AppendActivity(ctx, events.EventTypePickStarted, events.PickStartedPayload{
		LeagueID:        league.ID.String(),
		PickIndex:       idx,
		Round:           RoundForPickIndex(idx, league.SeatCount),
		Seat:            p.Seat,
		ParticipantID:   p.ID.String(),
		StartedAt:       started,
		TimeoutAt:       started.Add(delay),
		PickTimeLimitMs: league.PickTimeLimit().Milliseconds(),
		AutoDraft:       p.AutoDraft,
	})
	if err != nil {
		return fmt.Errorf("failed to record PickStarted: %w", err)
	}
	return nil
}

// ToggleAutoDraft flips a participant's autodraft flag. When the participant is on the
// clock the turn timer is rescheduled: enabling resolves the turn after the autodraft
// delay, disabling restores whatever remains of the pick time limit.
func (e *Engine) ToggleAutoDraft(ctx context.Context, leagueID, participantID uuid.UUID, enabled bool) error {
	rescheduled := false

	err := e.store.WithinLeague(ctx, leagueID, func(tx LeagueTx) error {
		league, err := tx.League(ctx)
		if err != nil {
			return fmt.Errorf("failed to load league: %w", err)
		}
		participants, err := tx.Participants(ctx)
		if err != nil {
			return fmt.Errorf("failed to load participants: %w", err)
		}
		t := &turn{league: league, participants: participants}

		p := t.participantByID(participantID)
		if p == nil {
			return reject(ErrNotParticipant)
		}
		if p.AutoDraft == enabled {
			return nil
		}
		if err := tx.SetParticipantAutoDraft(ctx, p.ID, enabled); err != nil {
			return fmt.Errorf("failed to update autodraft: %w", err)
		}
		p.AutoDraft = enabled

		if !league.HasActiveTurn() || SeatForPickIndex(*league.CurrentPickIndex, league.SeatCount) != p.Seat {
			return nil
		}

		delay := e.autoDraftDelay
		if !enabled {
			delay = league.PickTimeLimit()
			if league.CurrentPickStartedAt != nil {
				delay -= e.clock.Since(*league.CurrentPickStartedAt)
			}
		}
		if err := e.timer.Schedule(ctx, league, *league.CurrentPickIndex, delay); err != nil {
			return err
		}
		if err := tx.SaveDraftState(ctx, league); err != nil {
			return fmt.Errorf("failed to save draft state: %w", err)
		}
		rescheduled = true
		return nil
	})
	if err != nil {
		e.logFailure(err, leagueID, "toggle autodraft")
		return err
	}

	log.Info().
		Str("league_id", leagueID.String()).
		Str("participant_id", participantID.String()).
		Bool("enabled", enabled).
		Bool("rescheduled", rescheduled).
		Msg("autodraft toggled")
	return nil
}

// UpdatePreferences replaces a participant's ranking. Rankings are frozen once the draft starts.
func (e *Engine) UpdatePreferences(ctx context.Context, leagueID, participantID uuid.UUID, ranked []uuid.UUID, autoDraft bool) (*models.DraftPreferences, error) {
	var saved *models.DraftPreferences

	err := e.store.WithinLeague(ctx, leagueID, func(tx LeagueTx) error {
		league, err := tx.League(ctx)
		if err != nil {
			return fmt.Errorf("failed to load league: %w", err)
		}
		if league.Status != models.LeagueStatusSetup {
			return reject(ErrDraftAlreadyStarted)
		}
		participants, err := tx.Participants(ctx)
		if err != nil {
			return fmt.Errorf("failed to load participants: %w", err)
		}
		teams, err := tx.Teams(ctx)
		if err != nil {
			return fmt.Errorf("failed to load teams: %w", err)
		}
		t := &turn{league: league, participants: participants, teams: teams}
		if t.participantByID(participantID) == nil {
			return reject(ErrNotParticipant)
		}

		seen := make(map[uuid.UUID]bool, len(ranked))
		ordered := make([]uuid.UUID, 0, len(ranked))
		for _, id := range ranked {
			if t.team(id) == nil {
				return reject(ErrUnknownTeam)
			}
			if seen[id] {
				continue
			}
			seen[id] = true
			ordered = append(ordered, id)
		}

		prefs := models.DraftPreferences{
			LeagueID:      leagueID,
			ParticipantID: participantID,
			RankedTeamIDs: ordered,
			AutoDraft:     autoDraft,
			UpdatedAt:     e.clock.Now(),
		}
		if err := tx.SavePreferences(ctx, prefs); err != nil {
			return fmt.Errorf("failed to save preferences: %w", err)
		}
		saved = &prefs
		return nil
	})
	if err != nil {
		e.logFailure(err, leagueID, "update preferences")
		return nil, err
	}
	return saved, nil
}

// ResetDraft deletes every pick and returns the league to setup.
func (e *Engine) ResetDraft(ctx context.Context, leagueID uuid.UUID) error {
	deleted := 0

	err := e.store.WithinLeague(ctx, leagueID, func(tx LeagueTx) error {
		league, err := tx.League(ctx)
		if err != nil {
			return fmt.Errorf("failed to load league: %w", err)
		}

		deleted, err = tx.DeletePicks(ctx)
		if err != nil {
			return fmt.Errorf("failed to delete picks: %w", err)
		}

		now := e.clock.Now()
		e.timer.Clear(ctx, league)
		league.Status = models.LeagueStatusSetup
		league.CurrentPickIndex = nil
		league.CurrentPickStartedAt = nil
		league.UpdatedAt = now
		if err := tx.SaveDraftState(ctx, league); err != nil {
			return fmt.Errorf("failed to save draft state: %w", err)
		}

		if err := tx.AppendActivity(ctx, events.EventTypeDraftReset, events.DraftResetPayload{
			LeagueID:     league.ID.String(),
			ResetAt:      now,
			DeletedPicks: deleted,
		}); err != nil {
			return fmt.Errorf("failed to record DraftReset: %w", err)
		}
		return nil
	})
	if err != nil {
		e.logFailure(err, leagueID, "reset draft")
		return err
	}

	log.Info().Str("league_id", leagueID.String()).Int("deleted_picks", deleted).Msg("draft reset")
	return nil
}

func (e *Engine) logFailure(err error, leagueID uuid.UUID, op string) {
	if rej, ok := AsRejection(err); ok {
		log.Info().
			Str("league_id", leagueID.String()).
			Str("op", op).
			Str("reason", rej.Reason).
			Msg("request rejected")
		return
	}
	if errors.Is(err, ErrLeagueNotFound) {
		log.Debug().Str("league_id", leagueID.String()).Str("op", op).Msg("league not found")
		return
	}
	log.Error().
		Err(err).
		Bool("integrity", IsIntegrity(err)).
		Str("league_id", leagueID.String()).
		Str("op", op).
		Msg("draft operation failed")
}

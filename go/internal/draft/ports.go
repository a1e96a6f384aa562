package draft

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/leaguedraft/go/internal/models"
)

// Store is the durable home of league draft state.
type Store interface {
	// WithinLeague runs fn in a transaction that holds the league's draft fields exclusively.
	// Attempts on the same league are serialized; different leagues proceed in parallel.
	// Returns ErrLeagueNotFound when the league does not exist.
	WithinLeague(ctx context.Context, leagueID uuid.UUID, fn func(tx LeagueTx) error) error

	// ListActiveTurns returns up to limit leagues in draft status with an unresolved turn,
	// earliest DueAt first.
	ListActiveTurns(ctx context.Context, limit int) ([]ActiveTurn, error)
}

// LeagueTx exposes one league's records inside a WithinLeague transaction.
type LeagueTx interface {
	League(ctx context.Context) (*models.League, error)
	SaveDraftState(ctx context.Context, league *models.League) error

	Participants(ctx context.Context) ([]models.Participant, error)
	SetParticipantAutoDraft(ctx context.Context, participantID uuid.UUID, enabled bool) error

	// Preferences returns nil when the participant never saved any.
	Preferences(ctx context.Context, participantID uuid.UUID) (*models.DraftPreferences, error)
	SavePreferences(ctx context.Context, prefs models.DraftPreferences) error

	Teams(ctx context.Context) ([]models.Team, error)

	// Picks are returned in pick number order.
	Picks(ctx context.Context) ([]models.Pick, error)
	InsertPick(ctx context.Context, pick models.Pick) error
	DeletePicks(ctx context.Context) (int, error)

	// AppendActivity records an event that becomes visible only if the transaction commits.
	AppendActivity(ctx context.Context, eventType string, payload any) error
}

// ActiveTurn is the sweep's view of a league with a turn on the clock.
type ActiveTurn struct {
	LeagueID       uuid.UUID
	PickIndex      int
	SeatCount      int
	StartedAt      time.Time
	PickTimeLimit  time.Duration
	AutoDraftSeats []int
}

// Seat returns the seat on the clock.
func (t ActiveTurn) Seat() int {
	return SeatForPickIndex(t.PickIndex, t.SeatCount)
}

// DueAt is when the turn becomes resolvable: immediately for a seat on
// autodraft, otherwise when the pick time limit runs out.
func (t ActiveTurn) DueAt() time.Time {
	seat := t.Seat()
	for _, s := range t.AutoDraftSeats {
		if s == seat {
			return t.StartedAt
		}
	}
	return t.StartedAt.Add(t.PickTimeLimit)
}

// Due reports whether the turn should be resolved automatically at now.
func (t ActiveTurn) Due(now time.Time) bool {
	return !now.Before(t.DueAt())
}

// ResolveTask is the payload of a scheduled turn timeout.
type ResolveTask struct {
	LeagueID          uuid.UUID `json:"league_id"`
	ExpectedPickIndex int       `json:"expected_pick_index"`
}

// ResolveFunc handles a fired ResolveTask.
type ResolveFunc func(ctx context.Context, task ResolveTask) error

// Scheduler issues single-shot delayed resolve tasks.
type Scheduler interface {
	Schedule(ctx context.Context, delay time.Duration, task ResolveTask) (string, error)
	// Cancel is best effort. The task may already be running.
	Cancel(ctx context.Context, handle string) error
}

// LeagueSetup describes a league ready to draft.
type LeagueSetup struct {
	League       models.League
	Teams        []models.Team
	Participants []models.Participant
}

// Provisioner creates leagues. League management lives outside the engine;
// this is how fixtures and tests get a league into a store.
type Provisioner interface {
	CreateLeague(ctx context.Context, setup LeagueSetup) error
}

package draft

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/leaguedraft/go/internal/models"
)

// DraftState is a read-only projection of a league's draft for clients.
type DraftState struct {
	LeagueID           uuid.UUID            `json:"league_id"`
	Status             models.LeagueStatus  `json:"status"`
	SeatCount          int                  `json:"seat_count"`
	TotalPicks         int                  `json:"total_picks"`
	CurrentPickIndex   *int                 `json:"current_pick_index,omitempty"`
	CurrentRound       int                  `json:"current_round,omitempty"`
	CurrentSeat        int                  `json:"current_seat,omitempty"`
	CurrentParticipant *models.Participant  `json:"current_participant,omitempty"`
	TurnStartedAt      *time.Time           `json:"turn_started_at,omitempty"`
	Deadline           *time.Time           `json:"deadline,omitempty"`
	TimeRemainingMs    int64                `json:"time_remaining_ms"`
	Participants       []models.Participant `json:"participants"`
	UndraftedTeams     []models.Team        `json:"undrafted_teams"`
	Picks              []models.Pick        `json:"picks"`
}

// GetDraftState reads the league's current turn, remaining time, pool and pick history.
func (e *Engine) GetDraftState(ctx context.Context, leagueID uuid.UUID) (*DraftState, error) {
	var state *DraftState

	err := e.store.WithinLeague(ctx, leagueID, func(tx LeagueTx) error {
		t, err := loadTurn(ctx, tx)
		if err != nil {
			return err
		}
		state = e.project(t)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

func (e *Engine) project(t *turn) *DraftState {
	league := t.league
	state := &DraftState{
		LeagueID:       league.ID,
		Status:         league.Status,
		SeatCount:      league.SeatCount,
		TotalPicks:     len(t.teams),
		Participants:   t.participants,
		UndraftedTeams: t.undrafted(),
		Picks:          t.picks,
	}
	if !league.HasActiveTurn() {
		return state
	}

	idx := *league.CurrentPickIndex
	state.CurrentPickIndex = &idx
	state.CurrentRound = RoundForPickIndex(idx, league.SeatCount)
	state.CurrentSeat = SeatForPickIndex(idx, league.SeatCount)
	state.CurrentParticipant = t.participantAtSeat(state.CurrentSeat)

	if league.CurrentPickStartedAt != nil {
		started := *league.CurrentPickStartedAt
		deadline := started.Add(league.PickTimeLimit())
		state.TurnStartedAt = &started
		state.Deadline = &deadline
		if remaining := deadline.Sub(e.clock.Now()); remaining > 0 {
			state.TimeRemainingMs = remaining.Milliseconds()
		}
	}
	return state
}

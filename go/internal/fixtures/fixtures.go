// Package fixtures describes leagues seeded from YAML and provisions them into a store.
package fixtures

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/leaguedraft/go/internal/draft"
	"github.com/mcdev12/leaguedraft/go/internal/models"
)

// League seeds a league at startup. IDs are fixed so restarts are idempotent.
type League struct {
	ID            uuid.UUID     `yaml:"id"`
	Name          string        `yaml:"name"`
	SeatCount     int           `yaml:"seat_count"`
	PickTimeLimit time.Duration `yaml:"pick_time_limit,omitempty"`
	Participants  []Participant `yaml:"participants"`
	Teams         []Team        `yaml:"teams"`
}

type Team struct {
	ID   uuid.UUID `yaml:"id"`
	Name string    `yaml:"name"`
	Code string    `yaml:"code"`
	City string    `yaml:"city,omitempty"`
}

type Participant struct {
	ID          uuid.UUID `yaml:"id"`
	UserID      uuid.UUID `yaml:"user_id"`
	DisplayName string    `yaml:"display_name"`
	Seat        int       `yaml:"seat"`
}

// Setup converts a fixture into the shape stores provision.
func (f League) Setup(defaultPickTimeLimit time.Duration) draft.LeagueSetup {
	limit := f.PickTimeLimit
	if limit <= 0 {
		limit = defaultPickTimeLimit
	}

	setup := draft.LeagueSetup{
		League: models.League{
			ID:              f.ID,
			Name:            f.Name,
			Status:          models.LeagueStatusSetup,
			SeatCount:       f.SeatCount,
			PickTimeLimitMs: limit.Milliseconds(),
		},
	}
	for _, t := range f.Teams {
		setup.Teams = append(setup.Teams, models.Team{ID: t.ID, Name: t.Name, Code: t.Code, City: t.City})
	}
	for _, p := range f.Participants {
		setup.Participants = append(setup.Participants, models.Participant{
			ID:          p.ID,
			LeagueID:    f.ID,
			UserID:      p.UserID,
			DisplayName: p.DisplayName,
			Seat:        p.Seat,
		})
	}
	return setup
}

// Provision creates each league, skipping ones that already exist.
func Provision(ctx context.Context, provisioner draft.Provisioner, leagues []League, defaultPickTimeLimit time.Duration) error {
	for _, f := range leagues {
		err := provisioner.CreateLeague(ctx, f.Setup(defaultPickTimeLimit))
		if errors.Is(err, draft.ErrLeagueExists) {
			log.Debug().Str("league_id", f.ID.String()).Msg("fixture league already exists")
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to provision league %s: %w", f.Name, err)
		}
		log.Info().
			Str("league_id", f.ID.String()).
			Str("name", f.Name).
			Int("seats", f.SeatCount).
			Int("teams", len(f.Teams)).
			Msg("provisioned fixture league")
	}
	return nil
}

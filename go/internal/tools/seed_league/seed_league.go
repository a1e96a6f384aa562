// Command seed_league builds a league fixture from a team list and either
// prints it as engine YAML or provisions it straight into Postgres.
//
// Teams come from a JSON file (-teams-file) or, without one, from the sports
// API using SPORTS_API_KEY.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/mcdev12/leaguedraft/go/clients/sports_api_client"
	"github.com/mcdev12/leaguedraft/go/internal/dbconfig"
	"github.com/mcdev12/leaguedraft/go/internal/draft/store/postgres"
	"github.com/mcdev12/leaguedraft/go/internal/fixtures"
)

// seedNamespace makes generated IDs stable across runs.
var seedNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("leaguedraft/seed"))

type sourceTeam struct {
	Name string `json:"name"`
	Code string `json:"code"`
	City string `json:"city"`
}

type engineFile struct {
	Fixtures []fixtures.League `yaml:"fixtures"`
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	var (
		name      = flag.String("name", "Dynasty Draft League", "league name")
		seats     = flag.Int("seats", 4, "number of draft seats")
		limit     = flag.Duration("pick-time-limit", 0, "turn duration; 0 uses the engine default")
		teamsFile = flag.String("teams-file", "", "JSON array of {name, code, city}; empty fetches from the sports API")
		season    = flag.String("season", sports_api_client.DefaultSeason, "season to fetch teams for")
		out       = flag.String("out", "-", "where to write the engine YAML; - for stdout")
		provision = flag.Bool("provision", false, "insert the league into Postgres instead of writing YAML")
	)
	flag.Parse()

	ctx := context.Background()

	teams, err := loadTeams(ctx, *teamsFile, *season)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load teams")
	}

	league, err := buildLeague(*name, *seats, *limit, teams)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build league")
	}

	if *provision {
		if err := provisionLeague(ctx, league); err != nil {
			log.Fatal().Err(err).Msg("failed to provision league")
		}
		return
	}

	data, err := yaml.Marshal(engineFile{Fixtures: []fixtures.League{league}})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to encode fixture")
	}
	if *out == "-" {
		_, err = os.Stdout.Write(data)
	} else {
		err = os.WriteFile(*out, data, 0o644)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("failed to write fixture")
	}
	log.Info().Str("league_id", league.ID.String()).Int("teams", len(league.Teams)).Msg("league fixture written")
}

func loadTeams(ctx context.Context, path, season string) ([]sourceTeam, error) {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read teams file: %w", err)
		}
		var teams []sourceTeam
		if err := json.Unmarshal(data, &teams); err != nil {
			return nil, fmt.Errorf("unmarshal teams file: %w", err)
		}
		return teams, nil
	}

	apiKey := os.Getenv("SPORTS_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("SPORTS_API_KEY environment variable is required without -teams-file")
	}
	client := sports_api_client.NewSportsApiClient(apiKey)
	apiTeams, err := client.GetTeamsByLeagueAndSeason(ctx, sports_api_client.NFLLeagueID, season)
	if err != nil {
		return nil, err
	}

	teams := make([]sourceTeam, 0, len(apiTeams))
	for _, t := range apiTeams {
		teams = append(teams, sourceTeam{Name: t.Name, Code: t.Code, City: t.City})
	}
	return teams, nil
}

// buildLeague trims the pool to a multiple of the seat count and assigns stable IDs.
func buildLeague(name string, seats int, limit time.Duration, teams []sourceTeam) (fixtures.League, error) {
	if seats < 2 {
		return fixtures.League{}, fmt.Errorf("need at least 2 seats, got %d", seats)
	}
	if len(teams) < seats {
		return fixtures.League{}, fmt.Errorf("need at least %d teams, got %d", seats, len(teams))
	}
	if extra := len(teams) % seats; extra != 0 {
		log.Warn().Int("dropped", extra).Int("seats", seats).Msg("dropping teams so every seat drafts the same number")
		teams = teams[:len(teams)-extra]
	}

	leagueID := uuid.NewSHA1(seedNamespace, []byte("league:"+name))
	league := fixtures.League{
		ID:            leagueID,
		Name:          name,
		SeatCount:     seats,
		PickTimeLimit: limit,
	}
	for seat := 1; seat <= seats; seat++ {
		key := fmt.Sprintf("%s:seat:%d", leagueID, seat)
		league.Participants = append(league.Participants, fixtures.Participant{
			ID:          uuid.NewSHA1(seedNamespace, []byte("participant:"+key)),
			UserID:      uuid.NewSHA1(seedNamespace, []byte("user:"+key)),
			DisplayName: fmt.Sprintf("Manager %d", seat),
			Seat:        seat,
		})
	}
	for _, t := range teams {
		code := strings.ToUpper(t.Code)
		league.Teams = append(league.Teams, fixtures.Team{
			ID:   uuid.NewSHA1(seedNamespace, []byte("team:"+code+":"+t.Name)),
			Name: t.Name,
			Code: code,
			City: t.City,
		})
	}
	return league, nil
}

func provisionLeague(ctx context.Context, league fixtures.League) error {
	cfg := dbconfig.NewConfigFromEnv()
	pool, err := postgres.Connect(ctx, cfg.DSN())
	if err != nil {
		return err
	}
	defer pool.Close()

	store := postgres.New(pool)
	if err := store.Migrate(ctx); err != nil {
		return err
	}
	return fixtures.Provision(ctx, store, []fixtures.League{league}, 0)
}

package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mcdev12/leaguedraft/go/internal/draft"
	"github.com/mcdev12/leaguedraft/go/internal/draft/events"
	"github.com/mcdev12/leaguedraft/go/internal/models"
	"github.com/rs/zerolog/log"
)

//go:embed schema.sql
var schema string

// ErrDuplicatePick is returned when a pick collides on pick number or team.
var ErrDuplicatePick = errors.New("pick number or team already drafted")

const uniqueViolation = "23505"

// Store keeps draft state in Postgres. WithinLeague takes a row lock on the league,
// so concurrent attempts on one league serialize across every process sharing the database.
type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Connect opens a pool and verifies the connection.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse pgx config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}
	return pool, nil
}

// Migrate creates the draft tables, the outbox and its notify trigger.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	log.Info().Msg("draft schema applied")
	return nil
}

func (s *Store) CreateLeague(ctx context.Context, setup draft.LeagueSetup) error {
	l := setup.League
	if l.Status == "" {
		l.Status = models.LeagueStatusSetup
	}
	if l.PickTimeLimitMs <= 0 {
		l.PickTimeLimitMs = models.DefaultPickTimeLimitMs
	}

	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO leagues (id, name, status, seat_count, pick_time_limit_ms,
				current_pick_index, current_pick_started_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, l.ID, l.Name, string(l.Status), l.SeatCount, l.PickTimeLimitMs, l.CurrentPickIndex, l.CurrentPickStartedAt)
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", draft.ErrLeagueExists, l.ID)
		}
		if err != nil {
			return fmt.Errorf("failed to insert league: %w", err)
		}

		for _, t := range setup.Teams {
			if _, err := tx.Exec(ctx, `
				INSERT INTO teams (id, name, code, city) VALUES ($1, $2, $3, $4)
				ON CONFLICT (id) DO NOTHING
			`, t.ID, t.Name, t.Code, t.City); err != nil {
				return fmt.Errorf("failed to insert team %s: %w", t.ID, err)
			}
			if _, err := tx.Exec(ctx, `
				INSERT INTO league_teams (league_id, team_id) VALUES ($1, $2)
			`, l.ID, t.ID); err != nil {
				return fmt.Errorf("failed to attach team %s: %w", t.ID, err)
			}
		}

		for _, p := range setup.Participants {
			if _, err := tx.Exec(ctx, `
				INSERT INTO participants (id, league_id, user_id, display_name, seat, auto_draft)
				VALUES ($1, $2, $3, $4, $5, $6)
			`, p.ID, l.ID, p.UserID, p.DisplayName, p.Seat, p.AutoDraft); err != nil {
				return fmt.Errorf("failed to insert participant %s: %w", p.ID, err)
			}
		}
		return nil
	})
}

func (s *Store) WithinLeague(ctx context.Context, leagueID uuid.UUID, fn func(tx draft.LeagueTx) error) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		var locked uuid.UUID
		err := tx.QueryRow(ctx, `SELECT id FROM leagues WHERE id = $1 FOR UPDATE`, leagueID).Scan(&locked)
		if errors.Is(err, pgx.ErrNoRows) {
			return draft.ErrLeagueNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to lock league: %w", err)
		}
		return fn(&leagueTx{tx: tx, leagueID: leagueID})
	})
}

func (s *Store) ListActiveTurns(ctx context.Context, limit int) ([]draft.ActiveTurn, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT l.id, l.current_pick_index, l.seat_count, l.current_pick_started_at, l.pick_time_limit_ms,
			COALESCE(array_agg(p.seat) FILTER (WHERE p.auto_draft), '{}')::int[]
		FROM leagues l
		LEFT JOIN participants p ON p.league_id = l.id
		WHERE l.status = 'draft' AND l.current_pick_index IS NOT NULL
		GROUP BY l.id
		ORDER BY CASE
			WHEN bool_or(p.auto_draft AND p.seat = CASE
				WHEN (l.current_pick_index / l.seat_count) % 2 = 0 THEN l.current_pick_index % l.seat_count + 1
				ELSE l.seat_count - l.current_pick_index % l.seat_count
			END) THEN l.current_pick_started_at
			ELSE l.current_pick_started_at + l.pick_time_limit_ms * interval '1 millisecond'
		END NULLS FIRST
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query active turns: %w", err)
	}
	defer rows.Close()

	var turns []draft.ActiveTurn
	for rows.Next() {
		var (
			t         draft.ActiveTurn
			startedAt *time.Time
			limitMs   int64
			autoSeats []int32
		)
		if err := rows.Scan(&t.LeagueID, &t.PickIndex, &t.SeatCount, &startedAt, &limitMs, &autoSeats); err != nil {
			return nil, fmt.Errorf("failed to scan active turn: %w", err)
		}
		if startedAt != nil {
			t.StartedAt = *startedAt
		}
		t.PickTimeLimit = time.Duration(limitMs) * time.Millisecond
		for _, seat := range autoSeats {
			t.AutoDraftSeats = append(t.AutoDraftSeats, int(seat))
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

type leagueTx struct {
	tx       pgx.Tx
	leagueID uuid.UUID
}

func (t *leagueTx) League(ctx context.Context) (*models.League, error) {
	var (
		l      models.League
		status string
	)
	err := t.tx.QueryRow(ctx, `
		SELECT id, name, status, seat_count, pick_time_limit_ms, current_pick_index,
			current_pick_started_at, scheduled_autopick_id, created_at, updated_at
		FROM leagues WHERE id = $1
	`, t.leagueID).Scan(&l.ID, &l.Name, &status, &l.SeatCount, &l.PickTimeLimitMs, &l.CurrentPickIndex,
		&l.CurrentPickStartedAt, &l.ScheduledAutopickID, &l.CreatedAt, &l.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, draft.ErrLeagueNotFound
	}
	if err != nil {
		return nil, err
	}
	l.Status = models.LeagueStatus(status)
	return &l, nil
}

func (t *leagueTx) SaveDraftState(ctx context.Context, l *models.League) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE leagues
		SET status = $2, current_pick_index = $3, current_pick_started_at = $4,
			scheduled_autopick_id = $5, updated_at = $6
		WHERE id = $1
	`, t.leagueID, string(l.Status), l.CurrentPickIndex, l.CurrentPickStartedAt, l.ScheduledAutopickID, l.UpdatedAt)
	return err
}

func (t *leagueTx) Participants(ctx context.Context) ([]models.Participant, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id, league_id, user_id, display_name, seat, auto_draft, created_at
		FROM participants WHERE league_id = $1
		ORDER BY seat
	`, t.leagueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Participant
	for rows.Next() {
		var p models.Participant
		if err := rows.Scan(&p.ID, &p.LeagueID, &p.UserID, &p.DisplayName, &p.Seat, &p.AutoDraft, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (t *leagueTx) SetParticipantAutoDraft(ctx context.Context, participantID uuid.UUID, enabled bool) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE participants SET auto_draft = $3 WHERE id = $2 AND league_id = $1
	`, t.leagueID, participantID, enabled)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("participant %s not in league %s", participantID, t.leagueID)
	}
	return nil
}

func (t *leagueTx) Preferences(ctx context.Context, participantID uuid.UUID) (*models.DraftPreferences, error) {
	var p models.DraftPreferences
	err := t.tx.QueryRow(ctx, `
		SELECT league_id, participant_id, ranked_team_ids, auto_draft, updated_at
		FROM draft_preferences WHERE league_id = $1 AND participant_id = $2
	`, t.leagueID, participantID).Scan(&p.LeagueID, &p.ParticipantID, &p.RankedTeamIDs, &p.AutoDraft, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (t *leagueTx) SavePreferences(ctx context.Context, p models.DraftPreferences) error {
	ranked := p.RankedTeamIDs
	if ranked == nil {
		ranked = []uuid.UUID{}
	}
	_, err := t.tx.Exec(ctx, `
		INSERT INTO draft_preferences (participant_id, league_id, ranked_team_ids, auto_draft, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (participant_id) DO UPDATE
		SET ranked_team_ids = EXCLUDED.ranked_team_ids,
			auto_draft = EXCLUDED.auto_draft,
			updated_at = EXCLUDED.updated_at
	`, p.ParticipantID, t.leagueID, ranked, p.AutoDraft, p.UpdatedAt)
	return err
}

func (t *leagueTx) Teams(ctx context.Context) ([]models.Team, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT t.id, t.name, t.code, t.city
		FROM league_teams lt
		JOIN teams t ON t.id = lt.team_id
		WHERE lt.league_id = $1
		ORDER BY t.name, t.id
	`, t.leagueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Team
	for rows.Next() {
		var team models.Team
		if err := rows.Scan(&team.ID, &team.Name, &team.Code, &team.City); err != nil {
			return nil, err
		}
		out = append(out, team)
	}
	return out, rows.Err()
}

func (t *leagueTx) Picks(ctx context.Context) ([]models.Pick, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id, league_id, pick_number, round, seat, participant_id, team_id, picked_at, auto, auto_reason
		FROM picks WHERE league_id = $1
		ORDER BY pick_number
	`, t.leagueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Pick
	for rows.Next() {
		var (
			p      models.Pick
			reason []byte
		)
		if err := rows.Scan(&p.ID, &p.LeagueID, &p.PickNumber, &p.Round, &p.Seat, &p.ParticipantID,
			&p.TeamID, &p.PickedAt, &p.Auto, &reason); err != nil {
			return nil, err
		}
		if len(reason) > 0 {
			var r events.AutoPickReason
			if err := json.Unmarshal(reason, &r); err != nil {
				return nil, fmt.Errorf("failed to decode auto reason for pick %s: %w", p.ID, err)
			}
			p.AutoReason = &r
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (t *leagueTx) InsertPick(ctx context.Context, p models.Pick) error {
	var reason []byte
	if p.AutoReason != nil {
		var err error
		if reason, err = json.Marshal(p.AutoReason); err != nil {
			return fmt.Errorf("failed to encode auto reason: %w", err)
		}
	}

	_, err := t.tx.Exec(ctx, `
		INSERT INTO picks (id, league_id, pick_number, round, seat, participant_id, team_id, picked_at, auto, auto_reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, p.ID, t.leagueID, p.PickNumber, p.Round, p.Seat, p.ParticipantID, p.TeamID, p.PickedAt, p.Auto, reason)

	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %v", ErrDuplicatePick, err)
	}
	return err
}

func (t *leagueTx) DeletePicks(ctx context.Context) (int, error) {
	tag, err := t.tx.Exec(ctx, `DELETE FROM picks WHERE league_id = $1`, t.leagueID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (t *leagueTx) AppendActivity(ctx context.Context, eventType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	_, err = t.tx.Exec(ctx, `
		INSERT INTO draft_outbox (id, league_id, event_type, payload)
		VALUES ($1, $2, $3, $4)
	`, uuid.New(), t.leagueID, eventType, data)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

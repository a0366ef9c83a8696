package pick

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mcdev12/draftroom/go/internal/models"
)

const pgUniqueViolation = "23505"

// Repository is the Postgres implementation of PickRepository.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new pick repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{
		pool: pool,
	}
}

const leagueColumns = `id, name, draft_order_type, third_round_reversal, rounds, time_limit_seconds,
	status, current_pick_index, current_pick_started_at, created_at, updated_at`

func scanLeague(row pgx.Row) (*models.League, error) {
	var l models.League
	err := row.Scan(
		&l.ID, &l.Name, &l.DraftOrderType, &l.ThirdRoundReversal, &l.Rounds, &l.TimeLimitSeconds,
		&l.Status, &l.CurrentPickIndex, &l.CurrentPickStartedAt, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// GetLeague fetches a league with its draft order.
func (r *Repository) GetLeague(ctx context.Context, leagueID uuid.UUID) (*models.League, error) {
	league, err := scanLeague(r.pool.QueryRow(ctx,
		`SELECT `+leagueColumns+` FROM leagues WHERE id = $1`, leagueID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get league: %w", err)
	}

	order, err := r.draftOrder(ctx, leagueID)
	if err != nil {
		return nil, err
	}
	league.DraftOrder = order
	return league, nil
}

// ListLeaguesByStatus returns every league in status, with draft orders loaded.
func (r *Repository) ListLeaguesByStatus(ctx context.Context, status models.LeagueStatus) ([]models.League, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+leagueColumns+` FROM leagues WHERE status = $1 ORDER BY created_at`, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list leagues: %w", err)
	}
	defer rows.Close()

	var leagues []models.League
	for rows.Next() {
		league, err := scanLeague(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan league: %w", err)
		}
		leagues = append(leagues, *league)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list leagues: %w", err)
	}

	for i := range leagues {
		order, err := r.draftOrder(ctx, leagues[i].ID)
		if err != nil {
			return nil, err
		}
		leagues[i].DraftOrder = order
	}
	return leagues, nil
}

func (r *Repository) draftOrder(ctx context.Context, leagueID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id FROM captains WHERE league_id = $1 ORDER BY draft_position`, leagueID)
	if err != nil {
		return nil, fmt.Errorf("failed to load draft order: %w", err)
	}
	order, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("failed to load draft order: %w", err)
	}
	return order, nil
}

// ListCaptains returns a league's captains ordered by draft position.
func (r *Repository) ListCaptains(ctx context.Context, leagueID uuid.UUID) ([]models.Captain, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, league_id, name, draft_position, auto_pick_enabled, consecutive_timeout_picks
		FROM captains WHERE league_id = $1 ORDER BY draft_position`, leagueID)
	if err != nil {
		return nil, fmt.Errorf("failed to list captains: %w", err)
	}
	captains, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Captain, error) {
		var c models.Captain
		err := row.Scan(&c.ID, &c.LeagueID, &c.Name, &c.DraftPosition, &c.AutoPickEnabled, &c.ConsecutiveTimeoutPicks)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan captains: %w", err)
	}
	return captains, nil
}

const playerColumns = `id, league_id, full_name, rank, drafted_by_captain_id, draft_pick_number, created_at`

func scanPlayer(row pgx.Row) (models.Player, error) {
	var p models.Player
	err := row.Scan(&p.ID, &p.LeagueID, &p.FullName, &p.Rank, &p.DraftedByCaptainID, &p.DraftPickNumber, &p.CreatedAt)
	return p, err
}

// GetPlayer fetches a player by id.
func (r *Repository) GetPlayer(ctx context.Context, playerID uuid.UUID) (*models.Player, error) {
	p, err := scanPlayer(r.pool.QueryRow(ctx, `SELECT `+playerColumns+` FROM players WHERE id = $1`, playerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get player: %w", err)
	}
	return &p, nil
}

// ListAvailablePlayers returns undrafted players ordered by rank, then name.
func (r *Repository) ListAvailablePlayers(ctx context.Context, leagueID uuid.UUID) ([]models.Player, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+playerColumns+` FROM players
		WHERE league_id = $1 AND drafted_by_captain_id IS NULL
		ORDER BY rank, full_name, id`, leagueID)
	if err != nil {
		return nil, fmt.Errorf("failed to list available players: %w", err)
	}
	players, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Player, error) {
		return scanPlayer(row)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan players: %w", err)
	}
	return players, nil
}

const pickColumns = `league_id, pick_number, round, captain_id, player_id, auto_pick, created_at`

func scanPick(row pgx.Row) (models.DraftPick, error) {
	var p models.DraftPick
	err := row.Scan(&p.LeagueID, &p.PickNumber, &p.Round, &p.CaptainID, &p.PlayerID, &p.AutoPick, &p.CreatedAt)
	return p, err
}

// GetPick fetches the pick recorded for a slot.
func (r *Repository) GetPick(ctx context.Context, leagueID uuid.UUID, pickNumber int) (*models.DraftPick, error) {
	p, err := scanPick(r.pool.QueryRow(ctx,
		`SELECT `+pickColumns+` FROM draft_picks WHERE league_id = $1 AND pick_number = $2`, leagueID, pickNumber))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get pick: %w", err)
	}
	return &p, nil
}

// ListPicks returns a league's picks in pick order.
func (r *Repository) ListPicks(ctx context.Context, leagueID uuid.UUID) ([]models.DraftPick, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+pickColumns+` FROM draft_picks WHERE league_id = $1 ORDER BY pick_number`, leagueID)
	if err != nil {
		return nil, fmt.Errorf("failed to list picks: %w", err)
	}
	picks, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.DraftPick, error) {
		return scanPick(row)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan picks: %w", err)
	}
	return picks, nil
}

// InsertPick appends a pick record. A duplicate slot returns ErrPickExists.
func (r *Repository) InsertPick(ctx context.Context, pick models.DraftPick) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO draft_picks (`+pickColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		pick.LeagueID, pick.PickNumber, pick.Round, pick.CaptainID, pick.PlayerID, pick.AutoPick, pick.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrPickExists
		}
		return fmt.Errorf("failed to insert pick: %w", err)
	}
	return nil
}

// MarkPlayerDrafted assigns an undrafted player to a captain. It reports false when the
// player was already drafted or does not belong to the league.
func (r *Repository) MarkPlayerDrafted(ctx context.Context, leagueID, playerID, captainID uuid.UUID, pickNumber int) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE players SET drafted_by_captain_id = $3, draft_pick_number = $4
		WHERE id = $1 AND league_id = $2 AND drafted_by_captain_id IS NULL`,
		playerID, leagueID, captainID, pickNumber)
	if err != nil {
		return false, fmt.Errorf("failed to mark player drafted: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// UpdateTurn applies the conditional league update. Zero affected rows means the league
// moved past ExpectedIndex or left ExpectedStatus.
func (r *Repository) UpdateTurn(ctx context.Context, upd TurnUpdate) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leagues
		SET current_pick_index = $4, status = $5, current_pick_started_at = $6, updated_at = now()
		WHERE id = $1 AND current_pick_index = $2 AND status = $3`,
		upd.LeagueID, upd.ExpectedIndex, upd.ExpectedStatus, upd.NextIndex, upd.NextStatus, upd.PickStartedAt)
	if err != nil {
		return false, fmt.Errorf("failed to update turn: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// DeletePick removes the pick recorded for a slot. Deleting a missing row is not an error.
func (r *Repository) DeletePick(ctx context.Context, leagueID uuid.UUID, pickNumber int) error {
	if _, err := r.pool.Exec(ctx,
		`DELETE FROM draft_picks WHERE league_id = $1 AND pick_number = $2`, leagueID, pickNumber); err != nil {
		return fmt.Errorf("failed to delete pick: %w", err)
	}
	return nil
}

// ClearPlayerDrafted reverts a player to undrafted if the given pick still owns it.
func (r *Repository) ClearPlayerDrafted(ctx context.Context, playerID, captainID uuid.UUID, pickNumber int) error {
	if _, err := r.pool.Exec(ctx, `
		UPDATE players SET drafted_by_captain_id = NULL, draft_pick_number = NULL
		WHERE id = $1 AND drafted_by_captain_id = $2 AND draft_pick_number = $3`,
		playerID, captainID, pickNumber); err != nil {
		return fmt.Errorf("failed to clear drafted player: %w", err)
	}
	return nil
}

// UpdateCaptainTimeouts increments or resets a captain's consecutive timeout counter.
func (r *Repository) UpdateCaptainTimeouts(ctx context.Context, captainID uuid.UUID, timedOut bool) error {
	if _, err := r.pool.Exec(ctx, `
		UPDATE captains
		SET consecutive_timeout_picks = CASE WHEN $2 THEN consecutive_timeout_picks + 1 ELSE 0 END
		WHERE id = $1`, captainID, timedOut); err != nil {
		return fmt.Errorf("failed to update captain timeouts: %w", err)
	}
	return nil
}

// DecrementCaptainTimeouts undoes one timed-out pick on the captain's counter.
func (r *Repository) DecrementCaptainTimeouts(ctx context.Context, captainID uuid.UUID) error {
	if _, err := r.pool.Exec(ctx, `
		UPDATE captains
		SET consecutive_timeout_picks = GREATEST(consecutive_timeout_picks - 1, 0)
		WHERE id = $1`, captainID); err != nil {
		return fmt.Errorf("failed to decrement captain timeouts: %w", err)
	}
	return nil
}

// CreateLeague inserts a league with its captains and player pool in one transaction.
func (r *Repository) CreateLeague(ctx context.Context, league models.League, captains []models.Captain, players []models.Player) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		now := time.Now().UTC()
		if _, err := tx.Exec(ctx, `
			INSERT INTO leagues (id, name, draft_order_type, third_round_reversal, rounds, time_limit_seconds,
				status, current_pick_index, current_pick_started_at, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, 0, NULL, $8, $8)`,
			league.ID, league.Name, league.DraftOrderType, league.ThirdRoundReversal, league.Rounds,
			league.TimeLimitSeconds, models.LeagueStatusNotStarted, now); err != nil {
			return fmt.Errorf("failed to insert league: %w", err)
		}

		batch := &pgx.Batch{}
		for _, c := range captains {
			batch.Queue(`
				INSERT INTO captains (id, league_id, name, draft_position, auto_pick_enabled, consecutive_timeout_picks)
				VALUES ($1, $2, $3, $4, $5, 0)`,
				c.ID, league.ID, c.Name, c.DraftPosition, c.AutoPickEnabled)
		}
		for _, p := range players {
			batch.Queue(`
				INSERT INTO players (id, league_id, full_name, rank, created_at)
				VALUES ($1, $2, $3, $4, $5)`,
				p.ID, league.ID, p.FullName, p.Rank, now)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to insert league members: %w", err)
		}
		return nil
	})
}

var _ PickRepository = (*Repository)(nil)

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"chess-coach-backend/internal/models"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("repository: not found")

// GameRepository persists imported games.
type GameRepository struct {
	db *sqlx.DB
}

func NewGameRepository(db *sqlx.DB) *GameRepository {
	return &GameRepository{db: db}
}

// Insert stores a game. Returns (0, false, nil) when the game already exists
// for this user, keyed on either the platform game id or the move-list hash.
func (r *GameRepository) Insert(ctx context.Context, g *models.Game) (int64, bool, error) {
	res, err := r.db.NamedExecContext(ctx, `
		INSERT OR IGNORE INTO games
			(user_id, platform, platform_game_id, game_hash, played_at, player_color,
			 result, opening_name, eco, time_control, player_rating, opponent_rating,
			 move_count, moves_san, clocks)
		VALUES
			(:user_id, :platform, :platform_game_id, :game_hash, :played_at, :player_color,
			 :result, :opening_name, :eco, :time_control, :player_rating, :opponent_rating,
			 :move_count, :moves_san, :clocks)`, g)
	if err != nil {
		return 0, false, fmt.Errorf("insert game: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, false, err
	}
	if affected == 0 {
		return 0, false, nil
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// Get fetches one game by id.
func (r *GameRepository) Get(ctx context.Context, id int64) (*models.Game, error) {
	var g models.Game
	err := r.db.GetContext(ctx, &g, `SELECT * FROM games WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get game %d: %w", id, err)
	}
	return &g, nil
}

// ListByUser returns a user's games, newest first.
func (r *GameRepository) ListByUser(ctx context.Context, userID string, limit int) ([]models.Game, error) {
	if limit <= 0 {
		limit = 100
	}
	var games []models.Game
	err := r.db.SelectContext(ctx, &games, `
		SELECT * FROM games WHERE user_id = ? ORDER BY played_at DESC LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}
	return games, nil
}

// ListUnanalyzed returns the user's games that have no analysis yet,
// optionally restricted to the given ids.
func (r *GameRepository) ListUnanalyzed(ctx context.Context, userID string, ids []int64) ([]models.Game, error) {
	query := `
		SELECT g.* FROM games g
		LEFT JOIN game_analyses a ON a.game_id = g.id
		WHERE g.user_id = ? AND a.id IS NULL`
	args := []interface{}{userID}

	if len(ids) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
		query += " AND g.id IN (" + placeholders + ")"
		for _, id := range ids {
			args = append(args, id)
		}
	}
	query += " ORDER BY g.played_at ASC"

	var games []models.Game
	if err := r.db.SelectContext(ctx, &games, query, args...); err != nil {
		return nil, fmt.Errorf("list unanalyzed games: %w", err)
	}
	return games, nil
}

// ListByIDs fetches the user's games matching ids, in played order.
func (r *GameRepository) ListByIDs(ctx context.Context, userID string, ids []int64) ([]models.Game, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(
		`SELECT * FROM games WHERE user_id = ? AND id IN (?) ORDER BY played_at ASC`,
		userID, ids)
	if err != nil {
		return nil, err
	}
	var games []models.Game
	if err := r.db.SelectContext(ctx, &games, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list games by ids: %w", err)
	}
	return games, nil
}

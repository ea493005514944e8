package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"chess-coach-backend/internal/models"
)

// PuzzleRepository persists puzzles and attempts. Puzzle inserts are
// idempotent on the content-addressed puzzle key.
type PuzzleRepository struct {
	db *sqlx.DB
}

func NewPuzzleRepository(db *sqlx.DB) *PuzzleRepository {
	return &PuzzleRepository{db: db}
}

// Insert stores a puzzle and its theme rows. A duplicate key is a no-op;
// the existing row's id is returned either way.
func (r *PuzzleRepository) Insert(ctx context.Context, p *models.Puzzle) (int64, bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, false, fmt.Errorf("begin puzzle tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.NamedExecContext(ctx, `
		INSERT OR IGNORE INTO puzzles
			(puzzle_key, fen, side_to_move, best_move_san, best_move_uci, played_san,
			 eval_loss, phase, puzzle_type, solution_line, themes)
		VALUES
			(:puzzle_key, :fen, :side_to_move, :best_move_san, :best_move_uci, :played_san,
			 :eval_loss, :phase, :puzzle_type, :solution_line, :themes)`, p)
	if err != nil {
		return 0, false, fmt.Errorf("insert puzzle: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		var id int64
		if err := tx.GetContext(ctx, &id,
			`SELECT id FROM puzzles WHERE puzzle_key = ?`, p.Key); err != nil {
			return 0, false, fmt.Errorf("lookup existing puzzle: %w", err)
		}
		return id, false, tx.Commit()
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, false, err
	}
	for _, theme := range p.ThemeList() {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO puzzle_themes (puzzle_id, theme) VALUES (?, ?)`,
			id, theme); err != nil {
			return 0, false, fmt.Errorf("insert puzzle theme %q: %w", theme, err)
		}
	}
	return id, true, tx.Commit()
}

// Get fetches one puzzle.
func (r *PuzzleRepository) Get(ctx context.Context, id int64) (*models.Puzzle, error) {
	var p models.Puzzle
	err := r.db.GetContext(ctx, &p, `SELECT * FROM puzzles WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get puzzle %d: %w", id, err)
	}
	return &p, nil
}

// PuzzleFilter narrows puzzle listings. A non-empty UserID restricts the
// result to puzzles born from that user's own games, matched back through
// the content address (position plus played move).
type PuzzleFilter struct {
	UserID string
	Phase  string
	Type   string
	Themes []string
	Limit  int
}

// List returns puzzles matching the filter, newest first. Theme filtering
// goes through the puzzle_themes table so it stays on the theme index.
func (r *PuzzleRepository) List(ctx context.Context, f PuzzleFilter) ([]models.Puzzle, error) {
	var (
		clauses []string
		args    []interface{}
	)
	query := `SELECT DISTINCT p.* FROM puzzles p`
	if len(f.Themes) > 0 {
		query += ` JOIN puzzle_themes t ON t.puzzle_id = p.id`
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(f.Themes)), ",")
		clauses = append(clauses, "t.theme IN ("+placeholders+")")
		for _, th := range f.Themes {
			args = append(args, th)
		}
	}
	if f.UserID != "" {
		clauses = append(clauses, `EXISTS (
			SELECT 1 FROM move_evaluations m
			JOIN games g ON g.id = m.game_id
			WHERE g.user_id = ? AND m.fen_before = p.fen AND m.san = p.played_san)`)
		args = append(args, f.UserID)
	}
	if f.Phase != "" {
		clauses = append(clauses, "p.phase = ?")
		args = append(args, f.Phase)
	}
	if f.Type != "" {
		clauses = append(clauses, "p.puzzle_type = ?")
		args = append(args, f.Type)
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	query += " ORDER BY p.created_at DESC LIMIT ?"
	args = append(args, limit)

	var puzzles []models.Puzzle
	if err := r.db.SelectContext(ctx, &puzzles, query, args...); err != nil {
		return nil, fmt.Errorf("list puzzles: %w", err)
	}
	return puzzles, nil
}

// ReviewQueue returns puzzles whose latest attempt by the user is due, plus
// puzzles the user has never attempted, oldest due first.
func (r *PuzzleRepository) ReviewQueue(ctx context.Context, userID string, now time.Time, limit int) ([]models.Puzzle, error) {
	if limit <= 0 {
		limit = 20
	}
	var puzzles []models.Puzzle
	err := r.db.SelectContext(ctx, &puzzles, `
		SELECT p.* FROM puzzles p
		JOIN (
			SELECT puzzle_id, MAX(attempted_at) AS last_at
			FROM puzzle_attempts WHERE user_id = ?
			GROUP BY puzzle_id
		) latest ON latest.puzzle_id = p.id
		JOIN puzzle_attempts a
			ON a.puzzle_id = latest.puzzle_id AND a.attempted_at = latest.last_at AND a.user_id = ?
		WHERE a.next_review <= ?
		ORDER BY a.next_review ASC
		LIMIT ?`, userID, userID, now, limit)
	if err != nil {
		return nil, fmt.Errorf("review queue: %w", err)
	}
	return puzzles, nil
}

// LatestAttempt returns the user's most recent attempt on a puzzle, or
// ErrNotFound on the first attempt.
func (r *PuzzleRepository) LatestAttempt(ctx context.Context, userID string, puzzleID int64) (*models.PuzzleAttempt, error) {
	var a models.PuzzleAttempt
	err := r.db.GetContext(ctx, &a, `
		SELECT * FROM puzzle_attempts
		WHERE user_id = ? AND puzzle_id = ?
		ORDER BY attempted_at DESC LIMIT 1`, userID, puzzleID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest attempt: %w", err)
	}
	return &a, nil
}

// RecordAttempt appends an attempt row.
func (r *PuzzleRepository) RecordAttempt(ctx context.Context, a *models.PuzzleAttempt) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO puzzle_attempts
			(user_id, puzzle_id, correct, time_taken, attempted_at, next_review, repetition, easiness)
		VALUES
			(:user_id, :puzzle_id, :correct, :time_taken, :attempted_at, :next_review, :repetition, :easiness)`, a)
	if err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}
	return nil
}

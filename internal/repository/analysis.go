package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"chess-coach-backend/internal/models"
)

// AnalysisRepository persists per-game analyses and per-ply evaluations.
// Writes for one game go through SaveGameAnalysis, which keeps the summary
// row and its ply rows in a single transaction.
type AnalysisRepository struct {
	db *sqlx.DB
}

func NewAnalysisRepository(db *sqlx.DB) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

// Exists reports whether the game already has an analysis at >= depth.
func (r *AnalysisRepository) Exists(ctx context.Context, gameID int64, depth int) (bool, error) {
	var n int
	err := r.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM game_analyses WHERE game_id = ? AND depth >= ?`, gameID, depth)
	if err != nil {
		return false, fmt.Errorf("check analysis exists: %w", err)
	}
	return n > 0, nil
}

// SaveGameAnalysis writes the analysis summary and all ply rows atomically.
// Any prior analysis of the game is replaced in the same transaction, which
// is what makes re-analysis idempotent.
func (r *AnalysisRepository) SaveGameAnalysis(ctx context.Context, analysis *models.GameAnalysis, moves []models.MoveEvaluation) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin analysis tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM move_evaluations WHERE game_id = ?`, analysis.GameID); err != nil {
		return fmt.Errorf("clear prior evaluations: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM game_analyses WHERE game_id = ?`, analysis.GameID); err != nil {
		return fmt.Errorf("clear prior analysis: %w", err)
	}

	for i := range moves {
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO move_evaluations
				(game_id, ply, color, san, uci, piece, cp_loss, weighted_cp_loss, phase,
				 quality, blunder_subtype, eval_before, eval_after, mate_before, mate_after,
				 best_move_san, best_move_uci, fen_before, win_prob_before, win_prob_after,
				 accuracy, clock_seconds, degraded)
			VALUES
				(:game_id, :ply, :color, :san, :uci, :piece, :cp_loss, :weighted_cp_loss, :phase,
				 :quality, :blunder_subtype, :eval_before, :eval_after, :mate_before, :mate_after,
				 :best_move_san, :best_move_uci, :fen_before, :win_prob_before, :win_prob_after,
				 :accuracy, :clock_seconds, :degraded)`, &moves[i]); err != nil {
			return fmt.Errorf("insert evaluation ply %d: %w", moves[i].Ply, err)
		}
	}

	if _, err := tx.NamedExecContext(ctx, `
		INSERT INTO game_analyses
			(game_id, user_id, overall_cpl, opening_cpl, middlegame_cpl, endgame_cpl,
			 best_count, excellent_count, good_count, inaccuracy_count, mistake_count,
			 blunder_count, accuracy, depth, analyzed_at)
		VALUES
			(:game_id, :user_id, :overall_cpl, :opening_cpl, :middlegame_cpl, :endgame_cpl,
			 :best_count, :excellent_count, :good_count, :inaccuracy_count, :mistake_count,
			 :blunder_count, :accuracy, :depth, :analyzed_at)`, analysis); err != nil {
		return fmt.Errorf("insert game analysis: %w", err)
	}

	return tx.Commit()
}

// GetByGame fetches the analysis summary for a game.
func (r *AnalysisRepository) GetByGame(ctx context.Context, gameID int64) (*models.GameAnalysis, error) {
	var a models.GameAnalysis
	err := r.db.GetContext(ctx, &a, `SELECT * FROM game_analyses WHERE game_id = ?`, gameID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get analysis for game %d: %w", gameID, err)
	}
	return &a, nil
}

// MovesByGame returns the ply rows of one game in ply order.
func (r *AnalysisRepository) MovesByGame(ctx context.Context, gameID int64) ([]models.MoveEvaluation, error) {
	var moves []models.MoveEvaluation
	err := r.db.SelectContext(ctx, &moves,
		`SELECT * FROM move_evaluations WHERE game_id = ? ORDER BY ply ASC`, gameID)
	if err != nil {
		return nil, fmt.Errorf("list evaluations for game %d: %w", gameID, err)
	}
	return moves, nil
}

// MistakeRows returns a user's player-side mistakes and blunders, the raw
// material of puzzle extraction.
func (r *AnalysisRepository) MistakeRows(ctx context.Context, userID string, gameID int64) ([]models.MoveEvaluation, error) {
	var moves []models.MoveEvaluation
	err := r.db.SelectContext(ctx, &moves, `
		SELECT m.* FROM move_evaluations m
		JOIN games g ON g.id = m.game_id
		WHERE g.user_id = ? AND m.game_id = ? AND m.color = g.player_color
		  AND m.quality IN ('mistake', 'blunder')
		ORDER BY m.ply ASC`, userID, gameID)
	if err != nil {
		return nil, fmt.Errorf("list mistakes for game %d: %w", gameID, err)
	}
	return moves, nil
}

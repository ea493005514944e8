package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"chess-coach-backend/internal/models"
)

// RepertoireRepository maintains the per-opening aggregate mirror. It is the
// only materialized aggregate in the system; everything else is computed at
// query time.
type RepertoireRepository struct {
	db *sqlx.DB
}

func NewRepertoireRepository(db *sqlx.DB) *RepertoireRepository {
	return &RepertoireRepository{db: db}
}

// Record folds one analyzed game into the user's repertoire row for its
// opening and color. The running CPL average is weighted by games seen.
func (r *RepertoireRepository) Record(ctx context.Context, userID string, g *models.Game, overallCPL float64) error {
	opening := g.OpeningName
	if opening == "" {
		opening = "Unknown"
	}
	wins, draws, losses := 0, 0, 0
	switch g.Result {
	case models.ResultWin:
		wins = 1
	case models.ResultDraw:
		draws = 1
	default:
		losses = 1
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO opening_repertoire
			(user_id, opening_name, eco, color, wins, draws, losses, avg_cpl, last_played)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, opening_name, color) DO UPDATE SET
			wins = wins + excluded.wins,
			draws = draws + excluded.draws,
			losses = losses + excluded.losses,
			avg_cpl = (avg_cpl * (wins + draws + losses) + excluded.avg_cpl)
				/ (wins + draws + losses + 1),
			last_played = MAX(last_played, excluded.last_played),
			eco = CASE WHEN excluded.eco != '' THEN excluded.eco ELSE eco END`,
		userID, opening, g.ECO, g.PlayerColor, wins, draws, losses, overallCPL, g.PlayedAt)
	if err != nil {
		return fmt.Errorf("record repertoire: %w", err)
	}
	return nil
}

// ListByUser returns the user's repertoire rows, most recently played first.
func (r *RepertoireRepository) ListByUser(ctx context.Context, userID string, limit int) ([]models.OpeningRepertoire, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.OpeningRepertoire
	err := r.db.SelectContext(ctx, &rows, `
		SELECT * FROM opening_repertoire
		WHERE user_id = ?
		ORDER BY last_played DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list repertoire: %w", err)
	}
	return rows, nil
}

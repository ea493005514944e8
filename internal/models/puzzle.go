package models

import (
	"strings"
	"time"
)

// PuzzleType distinguishes puzzles born from blunders and from mistakes.
type PuzzleType string

const (
	PuzzleBlunder PuzzleType = "blunder"
	PuzzleMistake PuzzleType = "mistake"
)

// Puzzle is a tactical training position extracted from an analyzed game.
// Puzzles are content-addressed by Key, a 128-bit hash of (FEN before the
// mistake, played SAN), and shared across users.
type Puzzle struct {
	ID          int64      `db:"id" json:"id"`
	Key         string     `db:"puzzle_key" json:"key"`
	FEN         string     `db:"fen" json:"fen"`
	SideToMove  Color      `db:"side_to_move" json:"sideToMove"`
	BestMoveSAN string     `db:"best_move_san" json:"bestMoveSan"`
	BestMoveUCI string     `db:"best_move_uci" json:"bestMoveUci"`
	PlayedSAN   string     `db:"played_san" json:"playedSan"`
	EvalLoss    int        `db:"eval_loss" json:"evalLoss"`
	Phase       GamePhase  `db:"phase" json:"phase"`
	Type        PuzzleType `db:"puzzle_type" json:"puzzleType"`
	Solution    string     `db:"solution_line" json:"-"`
	Themes      string     `db:"themes" json:"-"`
	CreatedAt   time.Time  `db:"created_at" json:"createdAt"`
}

// SolutionLine returns the solution as an ordered list of UCI moves.
func (p *Puzzle) SolutionLine() []string {
	if p.Solution == "" {
		return nil
	}
	return strings.Fields(p.Solution)
}

// ThemeList returns the theme tags.
func (p *Puzzle) ThemeList() []string {
	if p.Themes == "" {
		return nil
	}
	return strings.Split(p.Themes, ",")
}

// PuzzleAttempt is one user attempt on a puzzle, append-only. The scheduling
// fields carry the SM-2 state forward: Repetition counts consecutive correct
// answers and Easiness is the SM-2 easiness factor (floor 1.3).
type PuzzleAttempt struct {
	ID          int64     `db:"id" json:"id"`
	UserID      string    `db:"user_id" json:"userId"`
	PuzzleID    int64     `db:"puzzle_id" json:"puzzleId"`
	Correct     bool      `db:"correct" json:"correct"`
	TimeTaken   float64   `db:"time_taken" json:"timeTaken"`
	AttemptedAt time.Time `db:"attempted_at" json:"attemptedAt"`
	NextReview  time.Time `db:"next_review" json:"nextReview"`
	Repetition  int       `db:"repetition" json:"repetition"`
	Easiness    float64   `db:"easiness" json:"easiness"`
}

// OpeningRepertoire is the aggregated per-opening record for a user and color.
type OpeningRepertoire struct {
	UserID      string    `db:"user_id" json:"userId"`
	OpeningName string    `db:"opening_name" json:"openingName"`
	ECO         string    `db:"eco" json:"eco"`
	Color       Color     `db:"color" json:"color"`
	Wins        int       `db:"wins" json:"wins"`
	Draws       int       `db:"draws" json:"draws"`
	Losses      int       `db:"losses" json:"losses"`
	AvgCPL      float64   `db:"avg_cpl" json:"avgCpl"`
	LastPlayed  time.Time `db:"last_played" json:"lastPlayed"`
}

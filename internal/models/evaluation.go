package models

import (
	"database/sql"
	"time"
)

// GamePhase tags a position as opening, middlegame or endgame.
type GamePhase string

const (
	PhaseOpening    GamePhase = "opening"
	PhaseMiddlegame GamePhase = "middlegame"
	PhaseEndgame    GamePhase = "endgame"
)

// MoveQuality is the primary classification of a played move.
type MoveQuality string

const (
	QualityBest       MoveQuality = "best"
	QualityExcellent  MoveQuality = "excellent"
	QualityGood       MoveQuality = "good"
	QualityInaccuracy MoveQuality = "inaccuracy"
	QualityMistake    MoveQuality = "mistake"
	QualityBlunder    MoveQuality = "blunder"
)

// BlunderSubtype explains why a mistake or blunder happened. Ordered from most
// to least specific; the classifier assigns the first matching one.
type BlunderSubtype string

const (
	SubtypeHangingPiece     BlunderSubtype = "hanging_piece"
	SubtypeMissedMate       BlunderSubtype = "missed_mate"
	SubtypeMissedFork       BlunderSubtype = "missed_fork"
	SubtypeMissedPin        BlunderSubtype = "missed_pin"
	SubtypeMissedSkewer     BlunderSubtype = "missed_skewer"
	SubtypeMissedDiscovery  BlunderSubtype = "missed_discovery"
	SubtypeMissedCapture    BlunderSubtype = "missed_capture"
	SubtypeBackRank         BlunderSubtype = "back_rank"
	SubtypeKingSafety       BlunderSubtype = "king_safety"
	SubtypeEndgameTechnique BlunderSubtype = "endgame_technique"
	SubtypePositional       BlunderSubtype = "positional"
)

// MoveEvaluation is one analyzed ply of a game. Evals are white-perspective
// centipawns clamped to ±1500; mate flags record when the engine reported a
// forced mate rather than a material score.
type MoveEvaluation struct {
	ID             int64           `db:"id" json:"id"`
	GameID         int64           `db:"game_id" json:"gameId"`
	Ply            int             `db:"ply" json:"ply"`
	Color          Color           `db:"color" json:"color"`
	SAN            string          `db:"san" json:"san"`
	UCI            string          `db:"uci" json:"uci"`
	Piece          string          `db:"piece" json:"piece"`
	CPLoss         int             `db:"cp_loss" json:"cpLoss"`
	WeightedCPLoss float64         `db:"weighted_cp_loss" json:"weightedCpLoss"`
	Phase          GamePhase       `db:"phase" json:"phase"`
	Quality        MoveQuality     `db:"quality" json:"quality"`
	BlunderSubtype sql.NullString  `db:"blunder_subtype" json:"blunderSubtype,omitempty"`
	EvalBefore     int             `db:"eval_before" json:"evalBefore"`
	EvalAfter      int             `db:"eval_after" json:"evalAfter"`
	MateBefore     bool            `db:"mate_before" json:"mateBefore"`
	MateAfter      bool            `db:"mate_after" json:"mateAfter"`
	BestMoveSAN    string          `db:"best_move_san" json:"bestMoveSan"`
	BestMoveUCI    string          `db:"best_move_uci" json:"bestMoveUci"`
	FENBefore      string          `db:"fen_before" json:"fenBefore"`
	WinProbBefore  float64         `db:"win_prob_before" json:"winProbBefore"`
	WinProbAfter   float64         `db:"win_prob_after" json:"winProbAfter"`
	Accuracy       float64         `db:"accuracy" json:"accuracy"`
	ClockSeconds   sql.NullFloat64 `db:"clock_seconds" json:"clockSeconds,omitempty"`
	Degraded       bool            `db:"degraded" json:"degraded"`
}

// GameAnalysis summarizes one analyzed game over the player's moves only.
// OverallCPL is null when the player made no moves.
type GameAnalysis struct {
	ID              int64           `db:"id" json:"id"`
	GameID          int64           `db:"game_id" json:"gameId"`
	UserID          string          `db:"user_id" json:"userId"`
	OverallCPL      sql.NullFloat64 `db:"overall_cpl" json:"overallCpl"`
	OpeningCPL      sql.NullFloat64 `db:"opening_cpl" json:"openingCpl"`
	MiddlegameCPL   sql.NullFloat64 `db:"middlegame_cpl" json:"middlegameCpl"`
	EndgameCPL      sql.NullFloat64 `db:"endgame_cpl" json:"endgameCpl"`
	BestCount       int             `db:"best_count" json:"bestCount"`
	ExcellentCount  int             `db:"excellent_count" json:"excellentCount"`
	GoodCount       int             `db:"good_count" json:"goodCount"`
	InaccuracyCount int             `db:"inaccuracy_count" json:"inaccuracyCount"`
	MistakeCount    int             `db:"mistake_count" json:"mistakeCount"`
	BlunderCount    int             `db:"blunder_count" json:"blunderCount"`
	Accuracy        sql.NullFloat64 `db:"accuracy" json:"accuracy"`
	Depth           int             `db:"depth" json:"depth"`
	AnalyzedAt      time.Time       `db:"analyzed_at" json:"analyzedAt"`
}

// QualityCount returns the stored counter for a quality label.
func (a *GameAnalysis) QualityCount(q MoveQuality) int {
	switch q {
	case QualityBest:
		return a.BestCount
	case QualityExcellent:
		return a.ExcellentCount
	case QualityGood:
		return a.GoodCount
	case QualityInaccuracy:
		return a.InaccuracyCount
	case QualityMistake:
		return a.MistakeCount
	case QualityBlunder:
		return a.BlunderCount
	}
	return 0
}

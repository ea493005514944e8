package models

import (
	"database/sql"
	"time"
)

// Color is the side a player held in a game.
type Color string

const (
	ColorWhite Color = "white"
	ColorBlack Color = "black"
)

// Opponent returns the other side.
func (c Color) Opponent() Color {
	if c == ColorWhite {
		return ColorBlack
	}
	return ColorWhite
}

// Result is the game outcome from the owning player's perspective.
type Result string

const (
	ResultWin  Result = "win"
	ResultLoss Result = "loss"
	ResultDraw Result = "draw"
)

// Game is an imported game. Immutable after import.
//
// PlatformGameID is the id assigned by the source platform when known;
// otherwise GameHash (a 128-bit fingerprint of the canonicalized move list)
// stands in for duplicate detection.
type Game struct {
	ID             int64          `db:"id" json:"id"`
	UserID         string         `db:"user_id" json:"userId"`
	Platform       string         `db:"platform" json:"platform"`
	PlatformGameID sql.NullString `db:"platform_game_id" json:"platformGameId,omitempty"`
	GameHash       string         `db:"game_hash" json:"-"`
	PlayedAt       time.Time      `db:"played_at" json:"playedAt"`
	PlayerColor    Color          `db:"player_color" json:"playerColor"`
	Result         Result         `db:"result" json:"result"`
	OpeningName    string         `db:"opening_name" json:"openingName"`
	ECO            string         `db:"eco" json:"eco"`
	TimeControl    string         `db:"time_control" json:"timeControl"`
	PlayerRating   sql.NullInt64  `db:"player_rating" json:"playerRating,omitempty"`
	OpponentRating sql.NullInt64  `db:"opponent_rating" json:"opponentRating,omitempty"`
	MoveCount      int            `db:"move_count" json:"moveCount"`
	MovesSAN       string         `db:"moves_san" json:"-"`
	Clocks         string         `db:"clocks" json:"-"`
	ImportedAt     time.Time      `db:"imported_at" json:"importedAt"`
}

// Label renders a short human label for progress events, e.g. "white vs 1850 (Sicilian)".
func (g *Game) Label() string {
	label := string(g.PlayerColor)
	if g.OpeningName != "" {
		label += " - " + g.OpeningName
	}
	return label
}

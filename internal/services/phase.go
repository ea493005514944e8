package services

import (
	"github.com/notnil/chess"

	"chess-coach-backend/internal/models"
)

// minorHomeSquares are where knights and bishops start; a minor anywhere
// else counts as developed.
var minorHomeSquares = map[chess.Square]chess.PieceType{
	chess.B1: chess.Knight, chess.G1: chess.Knight,
	chess.B8: chess.Knight, chess.G8: chess.Knight,
	chess.C1: chess.Bishop, chess.F1: chess.Bishop,
	chess.C8: chess.Bishop, chess.F8: chess.Bishop,
}

// DetectPhase tags the position after a move as opening, middlegame or
// endgame. Ply is 1-based. The castling booleans are part of the detector's
// input contract alongside position and ply; the current rules decide on
// material, move number and minor development.
func DetectPhase(pos *chess.Position, ply int, whiteCastled, blackCastled bool) models.GamePhase {
	var (
		material  int
		queens    int
		developed int
	)
	for sq, piece := range pos.Board().SquareMap() {
		switch piece.Type() {
		case chess.Knight, chess.Bishop:
			material += 3
			if home, ok := minorHomeSquares[sq]; !ok || home != piece.Type() {
				developed++
			}
		case chess.Rook:
			material += 5
		case chess.Queen:
			material += 9
			queens++
		}
	}

	moveNum := ply / 2

	switch {
	case material <= 13:
		return models.PhaseEndgame
	case queens == 0 && material <= 20:
		return models.PhaseEndgame
	case moveNum >= 40 && material <= 24:
		return models.PhaseEndgame
	case moveNum >= 50 && material <= 30:
		return models.PhaseEndgame
	case moveNum <= 15 && material > 26 && developed < 6:
		return models.PhaseOpening
	default:
		return models.PhaseMiddlegame
	}
}

// PhaseWeight is the multiplier map used for cross-phase comparison and the
// weighted_cp_loss column. Raw phase values are reported unweighted.
var PhaseWeight = map[models.GamePhase]float64{
	models.PhaseOpening:    1.0,
	models.PhaseMiddlegame: 1.0,
	models.PhaseEndgame:    0.7,
}

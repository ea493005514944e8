package services

import (
	"math"

	"github.com/notnil/chess"

	"chess-coach-backend/internal/models"
	"chess-coach-backend/pkg/uci"
)

// Move classifier. Everything here is pure: evals in, labels out. Engine
// scores arrive already normalized to white-perspective centipawns.

const maxCPLoss = 800

// CentipawnLoss is how much the mover gave away on one ply, from the
// mover's side. Two mate-flagged endpoints cancel to zero so a mate-in-3
// that becomes a mate-in-2 is not punished.
func CentipawnLoss(prev, curr uci.Score, whiteMoved bool) int {
	if prev.IsMate && curr.IsMate {
		return 0
	}
	loss := prev.CP - curr.CP
	if !whiteMoved {
		loss = curr.CP - prev.CP
	}
	if loss < 0 {
		return 0
	}
	if loss > maxCPLoss {
		return maxCPLoss
	}
	return loss
}

// QualityFor maps a centipawn loss to its quality label. A forced move is
// Best regardless of the swing; the caller signals that with onlyMove.
func QualityFor(cpLoss int, onlyMove bool) models.MoveQuality {
	if onlyMove {
		return models.QualityBest
	}
	switch {
	case cpLoss == 0:
		return models.QualityBest
	case cpLoss <= 10:
		return models.QualityExcellent
	case cpLoss <= 25:
		return models.QualityGood
	case cpLoss <= 100:
		return models.QualityInaccuracy
	case cpLoss <= 300:
		return models.QualityMistake
	default:
		return models.QualityBlunder
	}
}

// WinProbability converts a white-perspective score to white's win
// probability. A mate score collapses to exactly 0 or 1.
func WinProbability(s uci.Score) float64 {
	if s.IsMate {
		if s.CP > 0 {
			return 1
		}
		return 0
	}
	return 1 / (1 + math.Pow(10, -float64(s.CP)/400))
}

// MoveAccuracy scores one ply 0..100 from the mover's perspective, using
// the win-probability drop the move caused.
func MoveAccuracy(wpBefore, wpAfter float64, whiteMoved bool) float64 {
	drop := wpBefore - wpAfter
	if !whiteMoved {
		drop = wpAfter - wpBefore
	}
	acc := 103.1668*math.Exp(-0.04354*drop*100) - 3.1668
	if acc > 100 {
		return 100
	}
	if acc < 0 {
		return 0
	}
	return acc
}

// SubtypeInput is everything the sub-typer looks at for one ply.
type SubtypeInput struct {
	Position   *chess.Position // before the move
	Played     *chess.Move
	Best       *chess.Move // engine-best decoded on Position; nil if unavailable
	BestScore  uci.Score   // top multi-PV score before the move
	AfterScore uci.Score   // score after the played move
	Phase      models.GamePhase
}

// mateWithinPlies reports a forced mate for the mover within n plies. UCI
// mate counts are full moves, so mate-in-m for the mover spans 2m−1 plies.
func mateWithinPlies(s uci.Score, whiteMoved bool, plies int) bool {
	if !s.IsMate || s.Mate == 0 {
		return false
	}
	moverMates := (s.CP > 0) == whiteMoved
	if !moverMates {
		return false
	}
	m := s.Mate
	if m < 0 {
		m = -m
	}
	return 2*m-1 <= plies
}

// ClassifySubtype explains a Mistake or Blunder. Rules are evaluated in a
// fixed order; the first match wins.
func ClassifySubtype(in SubtypeInput) models.BlunderSubtype {
	pos, played := in.Position, in.Played
	if pos == nil || played == nil {
		return models.SubtypePositional
	}
	mover := pos.Turn()
	whiteMoved := mover == chess.White
	before := pos.Board()
	after := pos.Update(played)
	if after == nil {
		return models.SubtypePositional
	}
	afterBoard := after.Board()

	// 1. The moved piece or another friendly piece is left en prise.
	dest := afterBoard.Piece(played.S2())
	if dest != chess.NoPiece && isAttacked(afterBoard, played.S2(), mover.Other()) &&
		!isDefended(afterBoard, played.S2()) {
		return models.SubtypeHangingPiece
	}
	hungBefore := make(map[chess.Square]bool)
	for _, sq := range hangingSquares(before, mover, 3) {
		hungBefore[sq] = true
	}
	for _, sq := range hangingSquares(afterBoard, mover, 3) {
		if !hungBefore[sq] && sq != played.S2() {
			return models.SubtypeHangingPiece
		}
	}

	// 2. A forced mate was on the board and the played move let it go.
	if mateWithinPlies(in.BestScore, whiteMoved, 4) {
		moverStillMates := in.AfterScore.IsMate && (in.AfterScore.CP > 0) == whiteMoved
		if !moverStillMates {
			return models.SubtypeMissedMate
		}
	}

	// 3. The best move carried a motif the played move lacks.
	if in.Best != nil {
		bestMotifs := map[string]bool{}
		for _, motif := range Motifs(pos, in.Best) {
			bestMotifs[motif] = true
		}
		playedMotifs := map[string]bool{}
		for _, motif := range Motifs(pos, played) {
			playedMotifs[motif] = true
		}
		missed := []struct {
			motif   string
			subtype models.BlunderSubtype
		}{
			{MotifFork, models.SubtypeMissedFork},
			{MotifPin, models.SubtypeMissedPin},
			{MotifSkewer, models.SubtypeMissedSkewer},
			{MotifDiscovery, models.SubtypeMissedDiscovery},
		}
		for _, mm := range missed {
			if bestMotifs[mm.motif] && !playedMotifs[mm.motif] {
				return mm.subtype
			}
		}

		// 4. A winning capture was available and not taken.
		if in.Best.HasTag(chess.Capture) && !played.HasTag(chess.Capture) {
			victim := before.Piece(in.Best.S2())
			if victim != chess.NoPiece && pieceValue(victim.Type()) >= 3 {
				return models.SubtypeMissedCapture
			}
		}

		// 5. The best move was a back-rank mate.
		if IsBackRankMate(pos, in.Best) {
			return models.SubtypeBackRank
		}
	}

	// 6. The played move weakened the mover's own king.
	ownKingBefore := kingSquare(before, mover)
	ownKingAfter := kingSquare(afterBoard, mover)
	if ownKingBefore != chess.NoSquare && ownKingAfter != chess.NoSquare {
		if len(attackers(afterBoard, ownKingAfter, mover.Other())) >
			len(attackers(before, ownKingBefore, mover.Other())) {
			return models.SubtypeKingSafety
		}
	}
	if castlingRightLost(pos, after, mover) && !isCastle(played) {
		return models.SubtypeKingSafety
	}

	// 7/8. Fallbacks.
	if in.Phase == models.PhaseEndgame {
		return models.SubtypeEndgameTechnique
	}
	return models.SubtypePositional
}

func isCastle(m *chess.Move) bool {
	return m.HasTag(chess.KingSideCastle) || m.HasTag(chess.QueenSideCastle)
}

func castlingRightLost(before, after *chess.Position, color chess.Color) bool {
	had := before.CastleRights().CanCastle(color, chess.KingSide) ||
		before.CastleRights().CanCastle(color, chess.QueenSide)
	has := after.CastleRights().CanCastle(color, chess.KingSide) ||
		after.CastleRights().CanCastle(color, chess.QueenSide)
	return had && !has
}

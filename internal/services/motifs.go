package services

import (
	"github.com/notnil/chess"
)

// Tactical motif predicates. Each is a pure boolean on the position before
// the move and the candidate move itself.

const (
	MotifFork       = "fork"
	MotifPin        = "pin"
	MotifSkewer     = "skewer"
	MotifDiscovery  = "discovered_attack"
	MotifBackRank   = "back_rank_mate"
	MotifDeflection = "deflection"
)

// IsFork reports whether after the move the moved piece attacks two or more
// opponent targets, each worth at least 3 points or the king.
func IsFork(pos *chess.Position, m *chess.Move) bool {
	after := pos.Update(m)
	if after == nil {
		return false
	}
	board := after.Board()
	mover := pos.Turn()

	targets := 0
	for _, sq := range attacksFrom(board, m.S2()) {
		piece := board.Piece(sq)
		if piece == chess.NoPiece || piece.Color() == mover {
			continue
		}
		if piece.Type() == chess.King || pieceValue(piece.Type()) >= 3 {
			targets++
		}
	}
	return targets >= 2
}

// IsPin reports whether the moved piece, if a slider, now pins an opponent
// piece against a higher-value piece or the king on the same line.
func IsPin(pos *chess.Position, m *chess.Move) bool {
	after := pos.Update(m)
	if after == nil {
		return false
	}
	board := after.Board()
	mover := pos.Turn()
	piece := board.Piece(m.S2())
	if piece == chess.NoPiece {
		return false
	}

	var rays []delta
	switch piece.Type() {
	case chess.Bishop:
		rays = bishopRays
	case chess.Rook:
		rays = rookRays
	case chess.Queen:
		rays = append(append([]delta{}, bishopRays...), rookRays...)
	default:
		return false
	}

	f, r := fileOf(m.S2()), rankOf(m.S2())
	for _, d := range rays {
		front := chess.NoPiece
		for step := 1; ; step++ {
			sq, ok := squareAt(f+d.df*step, r+d.dr*step)
			if !ok {
				break
			}
			occ := board.Piece(sq)
			if occ == chess.NoPiece {
				continue
			}
			if front == chess.NoPiece {
				if occ.Color() == mover {
					break
				}
				front = occ
				continue
			}
			// Second blocker on the ray.
			if occ.Color() != mover &&
				(occ.Type() == chess.King || pieceValue(occ.Type()) > pieceValue(front.Type())) {
				return true
			}
			break
		}
	}
	return false
}

// IsSkewer reports whether a sliding piece gives check and the first
// opponent piece behind the king on the same ray is worth at least 3 points.
func IsSkewer(pos *chess.Position, m *chess.Move) bool {
	if !m.HasTag(chess.Check) {
		return false
	}
	after := pos.Update(m)
	if after == nil {
		return false
	}
	board := after.Board()
	mover := pos.Turn()
	piece := board.Piece(m.S2())
	if piece == chess.NoPiece {
		return false
	}
	switch piece.Type() {
	case chess.Bishop, chess.Rook, chess.Queen:
	default:
		return false
	}

	king := kingSquare(board, mover.Other())
	if king == chess.NoSquare {
		return false
	}
	behind, ok := rayThrough(board, m.S2(), king)
	if !ok {
		return false
	}
	target := board.Piece(behind)
	return target.Color() != mover && pieceValue(target.Type()) >= 3
}

// IsDiscoveredAttack reports whether the move uncovers an attack: an
// opponent piece worth at least 3 points is now attacked by a mover-side
// piece other than the one that just moved, and was not attacked by that
// piece before.
func IsDiscoveredAttack(pos *chess.Position, m *chess.Move) bool {
	after := pos.Update(m)
	if after == nil {
		return false
	}
	before := pos.Board()
	board := after.Board()
	mover := pos.Turn()

	for sq, piece := range board.SquareMap() {
		if piece.Color() == mover || pieceValue(piece.Type()) < 3 {
			continue
		}
		for _, attacker := range attackers(board, sq, mover) {
			if attacker == m.S2() {
				continue
			}
			attackedBefore := false
			for _, target := range attacksFrom(before, attacker) {
				if target == sq {
					attackedBefore = true
					break
				}
			}
			if !attackedBefore {
				return true
			}
		}
	}
	return false
}

// IsBackRankMate reports whether the move mates the opponent king on its
// own back rank.
func IsBackRankMate(pos *chess.Position, m *chess.Move) bool {
	after := pos.Update(m)
	if after == nil || after.Status() != chess.Checkmate {
		return false
	}
	loser := pos.Turn().Other()
	king := kingSquare(after.Board(), loser)
	if king == chess.NoSquare {
		return false
	}
	if loser == chess.White {
		return rankOf(king) == 0
	}
	return rankOf(king) == 7
}

// IsDeflection reports whether the move captures a defender, leaving an
// opponent piece worth at least 3 points attacked and newly undefended.
func IsDeflection(pos *chess.Position, m *chess.Move) bool {
	if !m.HasTag(chess.Capture) {
		return false
	}
	after := pos.Update(m)
	if after == nil {
		return false
	}
	before := pos.Board()
	board := after.Board()
	mover := pos.Turn()

	for sq, piece := range board.SquareMap() {
		if piece.Color() == mover || pieceValue(piece.Type()) < 3 || sq == m.S2() {
			continue
		}
		if before.Piece(sq) != piece {
			continue
		}
		if isDefended(before, sq) && !isDefended(board, sq) && isAttacked(board, sq, mover) {
			return true
		}
	}
	return false
}

// Motifs returns the motif tags a move satisfies on the given position.
func Motifs(pos *chess.Position, m *chess.Move) []string {
	if m == nil {
		return nil
	}
	var out []string
	if IsFork(pos, m) {
		out = append(out, MotifFork)
	}
	if IsPin(pos, m) {
		out = append(out, MotifPin)
	}
	if IsSkewer(pos, m) {
		out = append(out, MotifSkewer)
	}
	if IsDiscoveredAttack(pos, m) {
		out = append(out, MotifDiscovery)
	}
	if IsBackRankMate(pos, m) {
		out = append(out, MotifBackRank)
	}
	if IsDeflection(pos, m) {
		out = append(out, MotifDeflection)
	}
	return out
}

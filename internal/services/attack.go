package services

import (
	"github.com/notnil/chess"
)

// Board attack queries used by the blunder sub-typer and the motif
// predicates. notnil/chess answers legality questions but not "who attacks
// this square", so the movement rules live here.

// pieceValue is the conventional material value in pawns. The king scores 0;
// predicates that care about the king test for it explicitly.
func pieceValue(t chess.PieceType) int {
	switch t {
	case chess.Pawn:
		return 1
	case chess.Knight, chess.Bishop:
		return 3
	case chess.Rook:
		return 5
	case chess.Queen:
		return 9
	default:
		return 0
	}
}

type delta struct{ df, dr int }

var (
	knightDeltas = []delta{{1, 2}, {2, 1}, {2, -1}, {1, -2}, {-1, -2}, {-2, -1}, {-2, 1}, {-1, 2}}
	kingDeltas   = []delta{{1, 0}, {1, 1}, {0, 1}, {-1, 1}, {-1, 0}, {-1, -1}, {0, -1}, {1, -1}}
	bishopRays   = []delta{{1, 1}, {1, -1}, {-1, 1}, {-1, -1}}
	rookRays     = []delta{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}
)

func squareAt(file, rank int) (chess.Square, bool) {
	if file < 0 || file > 7 || rank < 0 || rank > 7 {
		return chess.NoSquare, false
	}
	return chess.Square(rank*8 + file), true
}

func fileOf(sq chess.Square) int { return int(sq) % 8 }
func rankOf(sq chess.Square) int { return int(sq) / 8 }

// attacksFrom returns every square the piece on from attacks, occupancy
// included (a defended friendly piece counts as attacked).
func attacksFrom(b *chess.Board, from chess.Square) []chess.Square {
	piece := b.Piece(from)
	if piece == chess.NoPiece {
		return nil
	}
	f, r := fileOf(from), rankOf(from)

	switch piece.Type() {
	case chess.Pawn:
		dir := 1
		if piece.Color() == chess.Black {
			dir = -1
		}
		var out []chess.Square
		for _, df := range []int{-1, 1} {
			if sq, ok := squareAt(f+df, r+dir); ok {
				out = append(out, sq)
			}
		}
		return out
	case chess.Knight:
		return stepTargets(f, r, knightDeltas)
	case chess.King:
		return stepTargets(f, r, kingDeltas)
	case chess.Bishop:
		return slideTargets(b, f, r, bishopRays)
	case chess.Rook:
		return slideTargets(b, f, r, rookRays)
	case chess.Queen:
		return append(slideTargets(b, f, r, bishopRays), slideTargets(b, f, r, rookRays)...)
	}
	return nil
}

func stepTargets(f, r int, deltas []delta) []chess.Square {
	out := make([]chess.Square, 0, len(deltas))
	for _, d := range deltas {
		if sq, ok := squareAt(f+d.df, r+d.dr); ok {
			out = append(out, sq)
		}
	}
	return out
}

func slideTargets(b *chess.Board, f, r int, rays []delta) []chess.Square {
	var out []chess.Square
	for _, d := range rays {
		for step := 1; ; step++ {
			sq, ok := squareAt(f+d.df*step, r+d.dr*step)
			if !ok {
				break
			}
			out = append(out, sq)
			if b.Piece(sq) != chess.NoPiece {
				break
			}
		}
	}
	return out
}

// attackers returns the squares of all pieces of color by that attack sq.
func attackers(b *chess.Board, sq chess.Square, by chess.Color) []chess.Square {
	var out []chess.Square
	for from, piece := range b.SquareMap() {
		if piece.Color() != by {
			continue
		}
		for _, target := range attacksFrom(b, from) {
			if target == sq {
				out = append(out, from)
				break
			}
		}
	}
	return out
}

func isAttacked(b *chess.Board, sq chess.Square, by chess.Color) bool {
	return len(attackers(b, sq, by)) > 0
}

// isDefended reports whether the piece on sq has at least one friendly
// piece covering it.
func isDefended(b *chess.Board, sq chess.Square) bool {
	piece := b.Piece(sq)
	if piece == chess.NoPiece {
		return false
	}
	return len(attackers(b, sq, piece.Color())) > 0
}

// hangingSquares returns the squares of color's pieces worth at least
// minValue that are attacked by the opponent and not defended.
func hangingSquares(b *chess.Board, color chess.Color, minValue int) []chess.Square {
	var out []chess.Square
	for sq, piece := range b.SquareMap() {
		if piece.Color() != color || piece.Type() == chess.King {
			continue
		}
		if pieceValue(piece.Type()) < minValue {
			continue
		}
		if isAttacked(b, sq, color.Other()) && !isDefended(b, sq) {
			out = append(out, sq)
		}
	}
	return out
}

// kingSquare finds the king of a color.
func kingSquare(b *chess.Board, color chess.Color) chess.Square {
	for sq, piece := range b.SquareMap() {
		if piece.Type() == chess.King && piece.Color() == color {
			return sq
		}
	}
	return chess.NoSquare
}

// rayThrough steps from from toward to and beyond, returning the first
// occupied square strictly past to, provided from, to are aligned on a
// queen line with nothing between them. Used by the skewer predicate.
func rayThrough(b *chess.Board, from, to chess.Square) (chess.Square, bool) {
	df := sign(fileOf(to) - fileOf(from))
	dr := sign(rankOf(to) - rankOf(from))
	if df == 0 && dr == 0 {
		return chess.NoSquare, false
	}
	aligned := fileOf(to)-fileOf(from) == 0 || rankOf(to)-rankOf(from) == 0 ||
		abs(fileOf(to)-fileOf(from)) == abs(rankOf(to)-rankOf(from))
	if !aligned {
		return chess.NoSquare, false
	}
	// Walk from -> to checking emptiness in between.
	f, r := fileOf(from)+df, rankOf(from)+dr
	for {
		sq, ok := squareAt(f, r)
		if !ok {
			return chess.NoSquare, false
		}
		if sq == to {
			break
		}
		if b.Piece(sq) != chess.NoPiece {
			return chess.NoSquare, false
		}
		f, r = f+df, r+dr
	}
	// Continue past to.
	f, r = fileOf(to)+df, rankOf(to)+dr
	for {
		sq, ok := squareAt(f, r)
		if !ok {
			return chess.NoSquare, false
		}
		if b.Piece(sq) != chess.NoPiece {
			return sq, true
		}
		f, r = f+df, r+dr
	}
}

func sign(n int) int {
	switch {
	case n > 0:
		return 1
	case n < 0:
		return -1
	default:
		return 0
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

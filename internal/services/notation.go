package services

import (
	"fmt"

	"github.com/notnil/chess"
)

// moveFromUCI resolves a UCI string against the position's legal moves so
// the returned move carries its capture and check tags; a bare notation
// decode loses them.
func moveFromUCI(pos *chess.Position, s string) (*chess.Move, error) {
	notation := chess.UCINotation{}
	for _, m := range pos.ValidMoves() {
		if notation.Encode(pos, m) == s {
			return m, nil
		}
	}
	return nil, fmt.Errorf("no legal move %q", s)
}

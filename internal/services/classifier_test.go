package services

import (
	"testing"

	"github.com/notnil/chess"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chess-coach-backend/internal/models"
	"chess-coach-backend/pkg/uci"
)

func cp(n int) uci.Score    { return uci.Score{CP: n} }
func mate(cp int) uci.Score { return uci.Score{CP: cp, IsMate: true} }

func TestCentipawnLoss(t *testing.T) {
	// White drops from +60 to -250: the full swing is charged.
	assert.Equal(t, 310, CentipawnLoss(cp(60), cp(-250), true))

	// Black's loss runs the other way.
	assert.Equal(t, 310, CentipawnLoss(cp(-60), cp(250), false))

	// An improving move never scores negative loss.
	assert.Equal(t, 0, CentipawnLoss(cp(20), cp(80), true))
	assert.Equal(t, 0, CentipawnLoss(cp(20), cp(-40), false))

	// Losing a mate for a -120 eval: 1500 - (-120) clamps at 800.
	assert.Equal(t, 800, CentipawnLoss(mate(1500), cp(-120), true))

	// Mate-in-3 to mate-in-2 is noise, not loss.
	assert.Equal(t, 0, CentipawnLoss(mate(1500), mate(1500), true))
	assert.Equal(t, 0, CentipawnLoss(mate(-1500), mate(-1500), false))
}

func TestQualityThresholds(t *testing.T) {
	cases := []struct {
		loss int
		want models.MoveQuality
	}{
		{0, models.QualityBest},
		{1, models.QualityExcellent},
		{10, models.QualityExcellent},
		{11, models.QualityGood},
		{25, models.QualityGood},
		{26, models.QualityInaccuracy},
		{100, models.QualityInaccuracy},
		{101, models.QualityMistake},
		{300, models.QualityMistake},
		{301, models.QualityBlunder},
		{800, models.QualityBlunder},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, QualityFor(tc.loss, false), "loss %d", tc.loss)
	}
}

func TestQualityOnlyMove(t *testing.T) {
	// A forced move is Best whatever the eval swing.
	assert.Equal(t, models.QualityBest, QualityFor(500, true))
}

func TestWinProbability(t *testing.T) {
	assert.InDelta(t, 0.5, WinProbability(cp(0)), 1e-9)
	assert.Greater(t, WinProbability(cp(200)), 0.7)
	assert.Less(t, WinProbability(cp(-200)), 0.3)

	// Mate collapses to the extremes.
	assert.Equal(t, 1.0, WinProbability(mate(1500)))
	assert.Equal(t, 0.0, WinProbability(mate(-1500)))

	// Symmetry around zero.
	assert.InDelta(t, 1, WinProbability(cp(120))+WinProbability(cp(-120)), 1e-9)
}

func TestMoveAccuracy(t *testing.T) {
	// No drop is full marks.
	assert.InDelta(t, 100, MoveAccuracy(0.5, 0.5, true), 0.01)

	// An improvement clamps at 100.
	assert.Equal(t, 100.0, MoveAccuracy(0.4, 0.6, true))

	// A catastrophic drop bottoms out near zero.
	assert.Less(t, MoveAccuracy(0.9, 0.1, true), 10.0)

	// Black's perspective flips the drop.
	assert.Equal(t, 100.0, MoveAccuracy(0.6, 0.4, false))
	assert.Less(t, MoveAccuracy(0.1, 0.9, false), 10.0)
}

func positionFromFEN(t *testing.T, fen string) *chess.Position {
	t.Helper()
	game := gameFromFEN(fen)
	require.NotNil(t, game, "bad fen %s", fen)
	return game.Position()
}

// legalMove finds the position's legal move with the given UCI string, so
// the move carries its tags.
func legalMove(t *testing.T, pos *chess.Position, uciStr string) *chess.Move {
	t.Helper()
	m, err := moveFromUCI(pos, uciStr)
	require.NoError(t, err)
	return m
}

func TestClassifySubtypeHangingPiece(t *testing.T) {
	// Qg4 walks into the f5 pawn with no defender.
	pos := positionFromFEN(t, "4k3/8/8/5p2/8/8/8/3QK3 w - - 0 1")
	played := legalMove(t, pos, "d1g4")

	subtype := ClassifySubtype(SubtypeInput{
		Position: pos,
		Played:   played,
		Phase:    models.PhaseMiddlegame,
	})
	assert.Equal(t, models.SubtypeHangingPiece, subtype)
}

func TestClassifySubtypeMissedMate(t *testing.T) {
	// Back-rank mate in one was available; the played move lets it go.
	pos := positionFromFEN(t, "6k1/5ppp/8/8/8/8/8/R5K1 w - - 0 1")
	played := legalMove(t, pos, "a1a2")
	best := legalMove(t, pos, "a1a8")

	subtype := ClassifySubtype(SubtypeInput{
		Position:   pos,
		Played:     played,
		Best:       best,
		BestScore:  uci.Score{CP: uci.MateCP, Mate: 1, IsMate: true},
		AfterScore: cp(200),
		Phase:      models.PhaseEndgame,
	})
	assert.Equal(t, models.SubtypeMissedMate, subtype)
}

func TestClassifySubtypeMissedCapture(t *testing.T) {
	// Best wins the undefended rook on a8; the played king shuffle does not.
	pos := positionFromFEN(t, "r3k3/8/8/8/8/8/8/R3K3 w - - 0 1")
	played := legalMove(t, pos, "e1d1")
	best := legalMove(t, pos, "a1a8")

	subtype := ClassifySubtype(SubtypeInput{
		Position:   pos,
		Played:     played,
		Best:       best,
		BestScore:  cp(500),
		AfterScore: cp(0),
		Phase:      models.PhaseMiddlegame,
	})
	assert.Equal(t, models.SubtypeMissedCapture, subtype)
}

func TestClassifySubtypeEndgameFallback(t *testing.T) {
	pos := positionFromFEN(t, "4k3/8/8/8/8/8/4P3/4K3 w - - 0 1")
	played := legalMove(t, pos, "e1d1")

	subtype := ClassifySubtype(SubtypeInput{
		Position: pos,
		Played:   played,
		Phase:    models.PhaseEndgame,
	})
	assert.Equal(t, models.SubtypeEndgameTechnique, subtype)
}

func TestClassifySubtypePositionalFallback(t *testing.T) {
	pos := positionFromFEN(t, "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1")
	played := legalMove(t, pos, "e2e4")

	subtype := ClassifySubtype(SubtypeInput{
		Position: pos,
		Played:   played,
		Phase:    models.PhaseOpening,
	})
	assert.Equal(t, models.SubtypePositional, subtype)
}

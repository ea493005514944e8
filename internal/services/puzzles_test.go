package services

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chess-coach-backend/internal/models"
	"chess-coach-backend/internal/repository"
	"chess-coach-backend/pkg/uci"
)

func TestPuzzleKey(t *testing.T) {
	fen := "6k1/5ppp/8/8/8/8/8/R5K1 w - - 0 1"

	key := PuzzleKey(fen, "Ra2")
	assert.Len(t, key, 32)
	assert.Equal(t, key, PuzzleKey(fen, "Ra2"))
	assert.Equal(t, key, PuzzleKey("  "+fen+"  ", "Ra2 "))

	assert.NotEqual(t, key, PuzzleKey(fen, "Ra3"))
	assert.NotEqual(t, key, PuzzleKey("8/8/8/8/8/8/8/K6k w - - 0 1", "Ra2"))
}

func TestHasRealTactic(t *testing.T) {
	assert.True(t, hasRealTactic([]string{"endgame", "rook", MotifFork}))
	assert.True(t, hasRealTactic([]string{ThemeMateInOne}))
	assert.False(t, hasRealTactic([]string{"endgame", "rook", "queen"}))
	assert.False(t, hasRealTactic(nil))
}

func TestOneGoodMove(t *testing.T) {
	svc := &PuzzleService{}
	twoLines := func(bestCP, secondCP int) *uci.AnalysisResult {
		return &uci.AnalysisResult{
			BestMove: "e2e4",
			Variations: []uci.Variation{
				{Score: uci.Score{CP: bestCP}, Depth: 14, PV: []string{"e2e4"}},
				{Score: uci.Score{CP: secondCP}, Depth: 14, PV: []string{"d2d4"}},
			},
		}
	}
	start := positionFromFEN(t, "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1")

	assert.True(t, svc.oneGoodMove(twoLines(350, 20), start, true))
	assert.False(t, svc.oneGoodMove(twoLines(120, 20), start, true))

	// Black to move: the gap flips sign.
	blackStart := positionFromFEN(t, "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1")
	assert.True(t, svc.oneGoodMove(twoLines(-350, -20), blackStart, false))
	assert.False(t, svc.oneGoodMove(twoLines(-120, -20), blackStart, false))

	// A single legal move is no puzzle unless it mates.
	forced := positionFromFEN(t, "k7/8/8/8/8/8/7r/K7 w - - 0 1")
	require.Len(t, forced.ValidMoves(), 1)
	assert.False(t, svc.oneGoodMove(twoLines(350, 20), forced, true))

	mating := &uci.AnalysisResult{
		BestMove: "b1a1",
		Variations: []uci.Variation{
			{Score: uci.Score{CP: uci.MateCP, Mate: 1, IsMate: true}, Depth: 14, PV: []string{"b1a1"}},
		},
	}
	assert.True(t, svc.oneGoodMove(mating, forced, true))
}

func TestExtractFromGameBackRankBlunder(t *testing.T) {
	db := newTestDB(t)
	fen := "6k1/5ppp/8/8/8/8/8/R5K1 w - - 0 1"

	rows := []models.MoveEvaluation{{
		Color:          models.ColorWhite,
		SAN:            "Ra2",
		UCI:            "a1a2",
		Piece:          "R",
		CPLoss:         450,
		Phase:          models.PhaseEndgame,
		Quality:        models.QualityBlunder,
		BlunderSubtype: sql.NullString{String: string(models.SubtypeMissedMate), Valid: true},
		EvalBefore:     200,
		BestMoveSAN:    "Ra8#",
		BestMoveUCI:    "a1a8",
		FENBefore:      fen,
	}}
	gameID := seedAnalyzedGame(t, db, "u1", time.Now().UTC(), models.ResultDraw, 120, rows)

	mate := uci.Score{CP: uci.MateCP, Mate: 1, IsMate: true}
	eng := &fakeEngine{results: []*uci.AnalysisResult{
		// Gap check on the pre-mistake position, two lines.
		{BestMove: "a1a8", Variations: []uci.Variation{
			{Score: mate, Depth: 14, PV: []string{"a1a8"}},
			{Score: uci.Score{CP: 150}, Depth: 14, PV: []string{"a1a2"}},
		}},
		// Solution line: Ra8 mates, the walk stops there.
		scored(uci.MateCP, "a1a8"),
	}}

	puzzles := repository.NewPuzzleRepository(db)
	svc := NewPuzzleService(puzzles, repository.NewAnalysisRepository(db), fakeProvider{eng: eng}, 14)

	inserted, err := svc.ExtractFromGame(context.Background(), "u1", gameID)
	require.NoError(t, err)
	assert.Equal(t, 1, inserted)

	list, err := svc.List(context.Background(), repository.PuzzleFilter{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, list, 1)

	p := list[0]
	assert.Equal(t, PuzzleKey(fen, "Ra2"), p.Key)
	assert.Equal(t, models.PuzzleBlunder, p.Type)
	assert.Equal(t, "a1a8", p.BestMoveUCI)
	assert.Equal(t, []string{"a1a8"}, p.SolutionLine())
	assert.Contains(t, p.ThemeList(), MotifBackRank)
	assert.Contains(t, p.ThemeList(), ThemeMateInOne)
	assert.Contains(t, p.ThemeList(), ThemeCheckmatePattern)

	// Re-extraction hits the content address and inserts nothing.
	eng.mu.Lock()
	eng.results = []*uci.AnalysisResult{
		{BestMove: "a1a8", Variations: []uci.Variation{
			{Score: mate, Depth: 14, PV: []string{"a1a8"}},
			{Score: uci.Score{CP: 150}, Depth: 14, PV: []string{"a1a2"}},
		}},
		scored(uci.MateCP, "a1a8"),
	}
	eng.mu.Unlock()
	inserted, err = svc.ExtractFromGame(context.Background(), "u1", gameID)
	require.NoError(t, err)
	assert.Equal(t, 0, inserted)
}

func TestExtractSkipsDecidedPositions(t *testing.T) {
	db := newTestDB(t)
	rows := []models.MoveEvaluation{{
		Color:       models.ColorWhite,
		SAN:         "Ra2",
		UCI:         "a1a2",
		Piece:       "R",
		CPLoss:      320,
		Phase:       models.PhaseEndgame,
		Quality:     models.QualityBlunder,
		EvalBefore:  900, // already winning by far too much
		BestMoveSAN: "Ra8#",
		BestMoveUCI: "a1a8",
		FENBefore:   "6k1/5ppp/8/8/8/8/8/R5K1 w - - 0 1",
	}, {
		Color:       models.ColorWhite,
		SAN:         "Ra2",
		UCI:         "a1a2",
		Piece:       "R",
		CPLoss:      320,
		Phase:       models.PhaseEndgame,
		Quality:     models.QualityBlunder,
		EvalBefore:  600, // boundary is exclusive
		BestMoveSAN: "Ra8#",
		BestMoveUCI: "a1a8",
		FENBefore:   "6k1/5ppp/8/8/8/8/8/R5K1 w - - 0 1",
	}, {
		Color:       models.ColorWhite,
		SAN:         "Ra2",
		UCI:         "a1a2",
		Piece:       "R",
		CPLoss:      320,
		Phase:       models.PhaseEndgame,
		Quality:     models.QualityBlunder,
		EvalBefore:  -600,
		BestMoveSAN: "Ra8#",
		BestMoveUCI: "a1a8",
		FENBefore:   "6k1/5ppp/8/8/8/8/8/R5K1 w - - 0 1",
	}}
	gameID := seedAnalyzedGame(t, db, "u1", time.Now().UTC(), models.ResultWin, 80, rows)

	eng := &fakeEngine{}
	svc := NewPuzzleService(repository.NewPuzzleRepository(db), repository.NewAnalysisRepository(db), fakeProvider{eng: eng}, 14)

	inserted, err := svc.ExtractFromGame(context.Background(), "u1", gameID)
	require.NoError(t, err)
	assert.Equal(t, 0, inserted)
	assert.Equal(t, 0, eng.callCount(), "filtered rows never reach the engine")
}

func TestRecordAttemptCarriesSRSState(t *testing.T) {
	db := newTestDB(t)
	puzzles := repository.NewPuzzleRepository(db)
	id, fresh, err := puzzles.Insert(context.Background(), &models.Puzzle{
		Key:         "test-key-000000000000000000000000",
		FEN:         "6k1/5ppp/8/8/8/8/8/R5K1 w - - 0 1",
		SideToMove:  models.ColorWhite,
		BestMoveSAN: "Ra8#",
		BestMoveUCI: "a1a8",
		PlayedSAN:   "Ra2",
		EvalLoss:    450,
		Phase:       models.PhaseEndgame,
		Type:        models.PuzzleBlunder,
		Solution:    "a1a8",
		Themes:      "back_rank_mate,mate_in_1",
	})
	require.NoError(t, err)
	require.True(t, fresh)

	svc := NewPuzzleService(puzzles, repository.NewAnalysisRepository(db), fakeProvider{eng: &fakeEngine{}}, 14)

	first, err := svc.RecordAttempt(context.Background(), "u1", id, true, 12.5)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Repetition)
	assert.InDelta(t, 24*time.Hour, first.NextReview.Sub(first.AttemptedAt), float64(time.Second))

	second, err := svc.RecordAttempt(context.Background(), "u1", id, true, 8.0)
	require.NoError(t, err)
	assert.Equal(t, 2, second.Repetition)
	assert.InDelta(t, 6*24*time.Hour, second.NextReview.Sub(second.AttemptedAt), float64(time.Second))

	third, err := svc.RecordAttempt(context.Background(), "u1", id, false, 30.0)
	require.NoError(t, err)
	assert.Equal(t, 0, third.Repetition)
	assert.Less(t, third.Easiness, second.Easiness)

	_, err = svc.RecordAttempt(context.Background(), "u1", id+99, true, 1.0)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestReviewQueueReturnsDuePuzzles(t *testing.T) {
	db := newTestDB(t)
	puzzles := repository.NewPuzzleRepository(db)
	id, _, err := puzzles.Insert(context.Background(), &models.Puzzle{
		Key:        "due-key-0000000000000000000000000",
		FEN:        "6k1/5ppp/8/8/8/8/8/R5K1 w - - 0 1",
		SideToMove: models.ColorWhite,
		PlayedSAN:  "Ra2",
		Phase:      models.PhaseEndgame,
		Type:       models.PuzzleMistake,
	})
	require.NoError(t, err)

	// A past-due attempt puts the puzzle in the queue.
	past := time.Now().UTC().Add(-48 * time.Hour)
	require.NoError(t, puzzles.RecordAttempt(context.Background(), &models.PuzzleAttempt{
		UserID:      "u1",
		PuzzleID:    id,
		Correct:     true,
		AttemptedAt: past,
		NextReview:  past.Add(24 * time.Hour),
		Repetition:  1,
		Easiness:    2.5,
	}))

	svc := NewPuzzleService(puzzles, repository.NewAnalysisRepository(db), fakeProvider{eng: &fakeEngine{}}, 14)
	due, err := svc.ReviewQueue(context.Background(), "u1", 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, id, due[0].ID)

	// Another user sees nothing.
	due, err = svc.ReviewQueue(context.Background(), "u2", 10)
	require.NoError(t, err)
	assert.Empty(t, due)
}

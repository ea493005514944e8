package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chess-coach-backend/internal/database"
	"chess-coach-backend/internal/models"
)

func testDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "repo.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleGame(userID, hash string) *models.Game {
	return &models.Game{
		UserID:      userID,
		Platform:    "pgn",
		GameHash:    hash,
		PlayedAt:    time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC),
		PlayerColor: models.ColorWhite,
		Result:      models.ResultWin,
		TimeControl: "600",
		MoveCount:   1,
		MovesSAN:    "e4",
	}
}

func TestGameInsertDeduplicates(t *testing.T) {
	db := testDB(t)
	repo := NewGameRepository(db)
	ctx := context.Background()

	id, inserted, err := repo.Insert(ctx, sampleGame("u1", "hash-a"))
	require.NoError(t, err)
	require.True(t, inserted)
	require.NotZero(t, id)

	// Same hash, same user: ignored.
	_, inserted, err = repo.Insert(ctx, sampleGame("u1", "hash-a"))
	require.NoError(t, err)
	assert.False(t, inserted)

	// Same hash for another user is a distinct game.
	_, inserted, err = repo.Insert(ctx, sampleGame("u2", "hash-a"))
	require.NoError(t, err)
	assert.True(t, inserted)

	got, err := repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)

	_, err = repo.Get(ctx, 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListUnanalyzedExcludesAnalyzedGames(t *testing.T) {
	db := testDB(t)
	games := NewGameRepository(db)
	analyses := NewAnalysisRepository(db)
	ctx := context.Background()

	idA, _, err := games.Insert(ctx, sampleGame("u1", "hash-a"))
	require.NoError(t, err)
	idB, _, err := games.Insert(ctx, sampleGame("u1", "hash-b"))
	require.NoError(t, err)

	require.NoError(t, analyses.SaveGameAnalysis(ctx, &models.GameAnalysis{
		GameID:     idA,
		UserID:     "u1",
		Depth:      14,
		AnalyzedAt: time.Now().UTC(),
	}, nil))

	pending, err := games.ListUnanalyzed(ctx, "u1", nil)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, idB, pending[0].ID)
}

func TestSaveGameAnalysisReplacesPriorRun(t *testing.T) {
	db := testDB(t)
	games := NewGameRepository(db)
	analyses := NewAnalysisRepository(db)
	ctx := context.Background()

	id, _, err := games.Insert(ctx, sampleGame("u1", "hash-a"))
	require.NoError(t, err)

	row := func(ply int) models.MoveEvaluation {
		return models.MoveEvaluation{
			GameID:  id,
			Ply:     ply,
			Color:   models.ColorWhite,
			SAN:     "e4",
			UCI:     "e2e4",
			Piece:   "P",
			Phase:   models.PhaseOpening,
			Quality: models.QualityGood,
		}
	}
	summary := func(depth int) *models.GameAnalysis {
		return &models.GameAnalysis{GameID: id, UserID: "u1", Depth: depth, AnalyzedAt: time.Now().UTC()}
	}

	require.NoError(t, analyses.SaveGameAnalysis(ctx, summary(12), []models.MoveEvaluation{row(1), row(2)}))
	require.NoError(t, analyses.SaveGameAnalysis(ctx, summary(18), []models.MoveEvaluation{row(1)}))

	moves, err := analyses.MovesByGame(ctx, id)
	require.NoError(t, err)
	assert.Len(t, moves, 1, "re-analysis replaces prior ply rows")

	got, err := analyses.GetByGame(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 18, got.Depth)

	exists, err := analyses.Exists(ctx, id, 14)
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = analyses.Exists(ctx, id, 20)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestJobTransitionsAreGuarded(t *testing.T) {
	db := testDB(t)
	jobs := NewJobRepository(db)
	ctx := context.Background()

	job := &models.AnalysisJob{ID: "j1", UserID: "u1", TotalGames: 2, Depth: 14}
	require.NoError(t, jobs.Create(ctx, job))
	assert.Equal(t, models.JobPending, job.Status)

	// Completing a pending job is a no-op; it must pass through processing.
	require.NoError(t, jobs.MarkCompleted(ctx, job.ID))
	got, err := jobs.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobPending, got.Status)

	require.NoError(t, jobs.MarkProcessing(ctx, job.ID))
	require.NoError(t, jobs.IncrementCompleted(ctx, job.ID))
	require.NoError(t, jobs.IncrementCompleted(ctx, job.ID))
	require.NoError(t, jobs.IncrementCompleted(ctx, job.ID))
	got, err = jobs.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.GamesCompleted, "completed count caps at total")

	require.NoError(t, jobs.MarkCompleted(ctx, job.ID))

	// Terminal states absorb every later transition.
	require.NoError(t, jobs.MarkFailed(ctx, job.ID, "too late"))
	got, err = jobs.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobCompleted, got.Status)
	assert.False(t, got.Error.Valid)
}

func TestNextPendingClaimsOldest(t *testing.T) {
	db := testDB(t)
	jobs := NewJobRepository(db)
	ctx := context.Background()

	_, err := jobs.NextPending(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	first := &models.AnalysisJob{ID: "j1", UserID: "u1", TotalGames: 1, Depth: 14}
	require.NoError(t, jobs.Create(ctx, first))
	// Force distinct created_at ordering.
	_, err = db.Exec(`UPDATE analysis_jobs SET created_at = ? WHERE id = 'j1'`,
		time.Now().UTC().Add(-time.Minute))
	require.NoError(t, err)
	second := &models.AnalysisJob{ID: "j2", UserID: "u1", TotalGames: 1, Depth: 14}
	require.NoError(t, jobs.Create(ctx, second))

	got, err := jobs.NextPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, "j1", got.ID)
}

func TestPuzzleInsertIdempotent(t *testing.T) {
	db := testDB(t)
	puzzles := NewPuzzleRepository(db)
	ctx := context.Background()

	p := &models.Puzzle{
		Key:         "0123456789abcdef0123456789abcdef",
		FEN:         "6k1/5ppp/8/8/8/8/8/R5K1 w - - 0 1",
		SideToMove:  models.ColorWhite,
		BestMoveSAN: "Ra8#",
		BestMoveUCI: "a1a8",
		PlayedSAN:   "Ra2",
		EvalLoss:    450,
		Phase:       models.PhaseEndgame,
		Type:        models.PuzzleBlunder,
		Solution:    "a1a8",
		Themes:      "back_rank_mate,mate_in_1,rook",
	}
	id, fresh, err := puzzles.Insert(ctx, p)
	require.NoError(t, err)
	require.True(t, fresh)

	again, fresh, err := puzzles.Insert(ctx, p)
	require.NoError(t, err)
	assert.False(t, fresh)
	assert.Equal(t, id, again)

	// Theme rows landed and drive filtering.
	list, err := puzzles.List(ctx, PuzzleFilter{Themes: []string{"back_rank_mate"}})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, id, list[0].ID)

	list, err = puzzles.List(ctx, PuzzleFilter{Themes: []string{"fork"}})
	require.NoError(t, err)
	assert.Empty(t, list)

	list, err = puzzles.List(ctx, PuzzleFilter{Phase: "endgame", Type: "blunder"})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestRepertoireRecordAccumulates(t *testing.T) {
	db := testDB(t)
	games := NewGameRepository(db)
	repertoire := NewRepertoireRepository(db)
	ctx := context.Background()

	g := sampleGame("u1", "hash-a")
	g.OpeningName = "Italian Game"
	g.ECO = "C50"
	_, _, err := games.Insert(ctx, g)
	require.NoError(t, err)

	require.NoError(t, repertoire.Record(ctx, "u1", g, 40))
	g.Result = models.ResultLoss
	require.NoError(t, repertoire.Record(ctx, "u1", g, 80))

	rows, err := repertoire.ListByUser(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Italian Game", rows[0].OpeningName)
	assert.Equal(t, 1, rows[0].Wins)
	assert.Equal(t, 1, rows[0].Losses)
	assert.InDelta(t, 60, rows[0].AvgCPL, 1e-9)
}

package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chess-coach-backend/internal/models"
	"chess-coach-backend/internal/repository"
	"chess-coach-backend/pkg/uci"
)

func newTestJobService(db *sqlx.DB, eng EngineClient) *JobService {
	analyzer := newTestAnalyzer(db, eng)
	return NewJobService(
		context.Background(),
		repository.NewJobRepository(db),
		repository.NewGameRepository(db),
		analyzer,
		nil,
	)
}

func quietGameResults() []*uci.AnalysisResult {
	return []*uci.AnalysisResult{
		scored(30, "e7e5"),
		scored(25, "g1f3"),
		scored(28, "b8c6"),
	}
}

func TestStreamEmitsLifecycleEvents(t *testing.T) {
	db := newTestDB(t)
	game := insertTestGame(t, db, "u1", "e4 e5 Nf3", models.ColorWhite)

	svc := newTestJobService(db, &fakeEngine{results: quietGameResults()})

	var events []models.StreamEvent
	err := svc.Stream(context.Background(), "u1", nil, 14, false, func(e models.StreamEvent) error {
		events = append(events, e)
		return nil
	})
	require.NoError(t, err)

	require.Len(t, events, 3)
	assert.Equal(t, models.EventStart, events[0].Type)
	assert.Equal(t, 1, events[0].Total)

	assert.Equal(t, models.EventProgress, events[1].Type)
	assert.Equal(t, 1, events[1].Completed)
	assert.Equal(t, game.ID, events[1].GameID)
	assert.Equal(t, 0.0, events[1].OverallCPL)

	assert.Equal(t, models.EventComplete, events[2].Type)
	assert.Equal(t, 1, events[2].Analyzed)
}

func TestStreamNoCandidates(t *testing.T) {
	db := newTestDB(t)
	svc := newTestJobService(db, &fakeEngine{})

	err := svc.Stream(context.Background(), "nobody", nil, 14, false, func(models.StreamEvent) error {
		t.Fatal("no events expected")
		return nil
	})
	assert.ErrorIs(t, err, ErrNoCandidates)
}

func TestStreamReportsUnparseableGame(t *testing.T) {
	db := newTestDB(t)
	insertTestGame(t, db, "u1", "e4 zz9", models.ColorWhite)

	svc := newTestJobService(db, &fakeEngine{})

	var events []models.StreamEvent
	err := svc.Stream(context.Background(), "u1", nil, 14, false, func(e models.StreamEvent) error {
		events = append(events, e)
		return nil
	})
	require.NoError(t, err)

	require.Len(t, events, 3)
	assert.Equal(t, models.EventGameError, events[1].Type)
	assert.NotEmpty(t, events[1].Message)
	assert.Equal(t, models.EventComplete, events[2].Type)
	assert.Equal(t, 0, events[2].Analyzed)
}

func TestStreamStopsWhenSubscriberLeaves(t *testing.T) {
	db := newTestDB(t)
	insertTestGame(t, db, "u1", "e4 e5 Nf3", models.ColorWhite)

	svc := newTestJobService(db, &fakeEngine{results: quietGameResults()})

	gone := errors.New("subscriber disconnected")
	err := svc.Stream(context.Background(), "u1", nil, 14, false, func(models.StreamEvent) error {
		return gone
	})
	assert.ErrorIs(t, err, gone)
}

func TestEnqueueCreatesPendingJob(t *testing.T) {
	db := newTestDB(t)
	insertTestGame(t, db, "u1", "e4 e5 Nf3", models.ColorWhite)

	svc := newTestJobService(db, &fakeEngine{results: quietGameResults()})
	job, err := svc.Enqueue(context.Background(), "u1", nil, 5, false)
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, 1, job.TotalGames)
	assert.Equal(t, minDepth, job.Depth, "requested depth clamps up")

	// The background worker owns the job from here; wait for a terminal or
	// completed-progress state rather than racing it.
	deadline := time.Now().Add(5 * time.Second)
	for {
		snapshot, err := svc.Get(context.Background(), job.ID)
		require.NoError(t, err)
		if snapshot.Status == models.JobCompleted {
			assert.Equal(t, 1, snapshot.GamesCompleted)
			break
		}
		require.False(t, time.Now().After(deadline), "job never completed, status %s", snapshot.Status)
		time.Sleep(10 * time.Millisecond)
	}
}

func TestEnqueueNoCandidates(t *testing.T) {
	db := newTestDB(t)
	svc := newTestJobService(db, &fakeEngine{})

	_, err := svc.Enqueue(context.Background(), "nobody", nil, 14, false)
	assert.ErrorIs(t, err, ErrNoCandidates)
}

func TestRunNextPending(t *testing.T) {
	db := newTestDB(t)
	game := insertTestGame(t, db, "u1", "e4 e5 Nf3", models.ColorWhite)

	jobs := repository.NewJobRepository(db)
	job := &models.AnalysisJob{ID: "job-1", UserID: "u1", TotalGames: 1, Depth: 14}
	require.NoError(t, jobs.Create(context.Background(), job))

	svc := newTestJobService(db, &fakeEngine{results: quietGameResults()})
	require.NoError(t, svc.RunNextPending(context.Background(), false))

	done, err := jobs.Get(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.JobCompleted, done.Status)
	assert.Equal(t, 1, done.GamesCompleted)

	_, err = repository.NewAnalysisRepository(db).GetByGame(context.Background(), game.ID)
	assert.NoError(t, err)

	// Queue is drained.
	assert.ErrorIs(t, svc.RunNextPending(context.Background(), false), ErrNotFound)
}

func TestJanitorSweepsStaleJobs(t *testing.T) {
	db := newTestDB(t)
	jobs := repository.NewJobRepository(db)

	job := &models.AnalysisJob{ID: "stale-1", UserID: "u1", TotalGames: 3, Depth: 14}
	require.NoError(t, jobs.Create(context.Background(), job))
	require.NoError(t, jobs.MarkProcessing(context.Background(), job.ID))

	// Age the job past the deadline.
	_, err := db.Exec(`UPDATE analysis_jobs SET updated_at = ? WHERE id = ?`,
		time.Now().UTC().Add(-time.Hour), job.ID)
	require.NoError(t, err)

	n, err := jobs.SweepStale(context.Background(), 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	swept, err := jobs.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobFailed, swept.Status)
	assert.Equal(t, "abandoned: no progress", swept.Error.String)
}

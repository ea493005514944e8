package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"chess-coach-backend/internal/models"
	"chess-coach-backend/internal/repository"
)

// ErrNoCandidates means an analysis request matched no unanalyzed games.
var ErrNoCandidates = errors.New("no games to analyze")

// JobService owns the analysis job lifecycle: enqueue, background
// dispatch, the inline streaming variant, and the stale-job janitor.
type JobService struct {
	jobs     *repository.JobRepository
	games    *repository.GameRepository
	analyzer *Analyzer
	puzzles  *PuzzleService

	// baseCtx bounds background jobs so server shutdown stops them.
	baseCtx context.Context
}

func NewJobService(baseCtx context.Context, jobs *repository.JobRepository, games *repository.GameRepository, analyzer *Analyzer, puzzles *PuzzleService) *JobService {
	return &JobService{jobs: jobs, games: games, analyzer: analyzer, puzzles: puzzles, baseCtx: baseCtx}
}

// extractPuzzles is best-effort: a failed extraction never fails the game.
func (s *JobService) extractPuzzles(ctx context.Context, userID string, gameID int64) {
	if s.puzzles == nil {
		return
	}
	if _, err := s.puzzles.ExtractFromGame(ctx, userID, gameID); err != nil {
		logrus.Warnf("Puzzle extraction for game %d: %v", gameID, err)
	}
}

// resolveGames turns a request's game-id list (nil means "all unanalyzed")
// into concrete game rows owned by the user.
func (s *JobService) resolveGames(ctx context.Context, userID string, gameIDs []int64) ([]models.Game, error) {
	var (
		games []models.Game
		err   error
	)
	if len(gameIDs) == 0 {
		games, err = s.games.ListUnanalyzed(ctx, userID, nil)
	} else {
		games, err = s.games.ListByIDs(ctx, userID, gameIDs)
	}
	if err != nil {
		return nil, err
	}
	if len(games) == 0 {
		return nil, ErrNoCandidates
	}
	return games, nil
}

// Enqueue creates a pending job and dispatches it to a background worker
// goroutine. The returned row is the client's handle for polling.
func (s *JobService) Enqueue(ctx context.Context, userID string, gameIDs []int64, depth int, reanalyze bool) (*models.AnalysisJob, error) {
	games, err := s.resolveGames(ctx, userID, gameIDs)
	if err != nil {
		return nil, err
	}

	job := &models.AnalysisJob{
		ID:         uuid.NewString(),
		UserID:     userID,
		TotalGames: len(games),
		Depth:      ClampDepth(depth),
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, err
	}

	go s.process(s.baseCtx, job, games, reanalyze)
	return job, nil
}

// Get returns a job snapshot.
func (s *JobService) Get(ctx context.Context, id string) (*models.AnalysisJob, error) {
	return s.jobs.Get(ctx, id)
}

// process runs the job: games strictly in order, one transaction per game.
// A game that fails to parse is logged and skipped; only infrastructure
// failures fail the job.
func (s *JobService) process(ctx context.Context, job *models.AnalysisJob, games []models.Game, reanalyze bool) {
	if err := s.jobs.MarkProcessing(ctx, job.ID); err != nil {
		logrus.Errorf("Job %s: mark processing: %v", job.ID, err)
		return
	}
	logrus.Infof("Job %s: analyzing %d games at depth %d", job.ID, len(games), job.Depth)

	for i := range games {
		game := &games[i]
		_, skipped, err := s.analyzer.AnalyzeGame(ctx, game, job.Depth, reanalyze)
		switch {
		case err == nil:
			if skipped {
				logrus.Debugf("Job %s: game %d already analyzed", job.ID, game.ID)
			} else {
				s.extractPuzzles(ctx, job.UserID, game.ID)
			}
		case errors.Is(err, ErrGameParse):
			logrus.Warnf("Job %s: game %d unparseable: %v", job.ID, game.ID, err)
		case errors.Is(err, context.Canceled):
			// Cancelled jobs stay in processing for the janitor.
			return
		default:
			if ferr := s.jobs.MarkFailed(ctx, job.ID, err.Error()); ferr != nil {
				logrus.Errorf("Job %s: mark failed: %v", job.ID, ferr)
			}
			logrus.Errorf("Job %s: fatal on game %d: %v", job.ID, game.ID, err)
			return
		}
		if err := s.jobs.IncrementCompleted(ctx, job.ID); err != nil {
			logrus.Errorf("Job %s: increment: %v", job.ID, err)
		}
	}

	if err := s.jobs.MarkCompleted(ctx, job.ID); err != nil {
		logrus.Errorf("Job %s: mark completed: %v", job.ID, err)
		return
	}
	logrus.Infof("Job %s: completed", job.ID)
}

// Stream runs the same pipeline inline, pushing one event per state change
// to emit. An emit error means the subscriber went away; the stream stops
// and in-flight work is abandoned mid-game (the per-game transaction rolls
// back with the context).
func (s *JobService) Stream(ctx context.Context, userID string, gameIDs []int64, depth int, reanalyze bool, emit func(models.StreamEvent) error) error {
	games, err := s.resolveGames(ctx, userID, gameIDs)
	if err != nil {
		return err
	}
	depth = ClampDepth(depth)

	if err := emit(models.StreamEvent{Type: models.EventStart, Total: len(games)}); err != nil {
		return err
	}

	completed, analyzed := 0, 0
	for i := range games {
		game := &games[i]
		analysis, skipped, err := s.analyzer.AnalyzeGame(ctx, game, depth, reanalyze)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			if errors.Is(err, ErrGameParse) {
				completed++
				if eerr := emit(models.StreamEvent{
					Type:    models.EventGameError,
					GameID:  game.ID,
					Message: err.Error(),
				}); eerr != nil {
					return eerr
				}
				continue
			}
			// Fatal: surface and close.
			emit(models.StreamEvent{Type: models.EventError, Message: err.Error()})
			return err
		}
		completed++
		if !skipped {
			analyzed++
			s.extractPuzzles(ctx, userID, game.ID)
		}
		event := models.StreamEvent{
			Type:      models.EventProgress,
			Completed: completed,
			Total:     len(games),
			GameID:    game.ID,
			GameLabel: game.Label(),
			Blunders:  analysis.BlunderCount,
			Mistakes:  analysis.MistakeCount,
		}
		if analysis.OverallCPL.Valid {
			event.OverallCPL = analysis.OverallCPL.Float64
		}
		if err := emit(event); err != nil {
			return err
		}
	}
	return emit(models.StreamEvent{Type: models.EventComplete, Analyzed: analyzed})
}

// RunNextPending claims and runs the oldest pending job. The standalone
// worker loops on this; ErrNotFound means the queue is empty.
func (s *JobService) RunNextPending(ctx context.Context, reanalyze bool) error {
	job, err := s.jobs.NextPending(ctx)
	if err != nil {
		return err
	}
	games, err := s.resolveGames(ctx, job.UserID, nil)
	if err != nil {
		if errors.Is(err, ErrNoCandidates) {
			return s.jobs.MarkCompleted(ctx, job.ID)
		}
		return err
	}
	if len(games) > job.TotalGames {
		games = games[:job.TotalGames]
	}
	s.process(ctx, job, games, reanalyze)
	return nil
}

// StartJanitor periodically fails processing jobs that stopped making
// progress, the fate of jobs whose worker was cancelled mid-run.
func (s *JobService) StartJanitor(ctx context.Context, interval, staleAfter time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := s.jobs.SweepStale(ctx, staleAfter)
				if err != nil {
					logrus.Warnf("Job janitor: %v", err)
					continue
				}
				if n > 0 {
					logrus.Infof("Job janitor: failed %d stale jobs", n)
				}
			}
		}
	}()
}

var ErrNotFound = repository.ErrNotFound

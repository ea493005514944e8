package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"chess-coach-backend/internal/config"
	"chess-coach-backend/internal/database"
	"chess-coach-backend/internal/repository"
	"chess-coach-backend/internal/services"
	"chess-coach-backend/pkg/uci"
)

// The standalone worker drains the pending job queue. Exit code 0 means a
// clean shutdown; 1 means the engine subprocesses could not be kept alive.
func main() {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logrus.Errorf("Load config: %v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		logrus.Errorf("Open database: %v", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := database.Migrate(db); err != nil {
		logrus.Errorf("Migrate: %v", err)
		os.Exit(1)
	}

	pool, err := services.NewEnginePool(cfg.EngineWorkers, services.StockfishFactory(cfg.EnginePath, uci.Options{
		Threads: cfg.EngineThreads,
		Hash:    cfg.EngineHash,
	}))
	if err != nil {
		logrus.Errorf("Start engine pool: %v", err)
		os.Exit(1)
	}
	defer pool.Close()

	games := repository.NewGameRepository(db)
	analyses := repository.NewAnalysisRepository(db)
	jobs := repository.NewJobRepository(db)
	puzzleRepo := repository.NewPuzzleRepository(db)
	repertoire := repository.NewRepertoireRepository(db)

	analyzer := services.NewAnalyzer(pool, analyses, repertoire)
	puzzles := services.NewPuzzleService(puzzleRepo, analyses, pool, cfg.DefaultDepth)
	jobService := services.NewJobService(ctx, jobs, games, analyzer, puzzles)
	jobService.StartJanitor(ctx, time.Minute, 30*time.Minute)

	logrus.Info("Worker polling for pending jobs")
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logrus.Info("Worker shutting down")
			return
		case <-ticker.C:
			err := jobService.RunNextPending(ctx, false)
			switch {
			case err == nil:
			case errors.Is(err, repository.ErrNotFound):
				// Queue empty.
			case errors.Is(err, services.ErrPoolClosed):
				logrus.Error("Engine pool lost; giving up")
				os.Exit(1)
			case errors.Is(err, context.Canceled):
				return
			default:
				logrus.Errorf("Job run failed: %v", err)
			}
		}
	}
}

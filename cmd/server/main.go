package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"chess-coach-backend/internal/config"
	"chess-coach-backend/internal/database"
	"chess-coach-backend/internal/handlers"
	"chess-coach-backend/internal/repository"
	"chess-coach-backend/internal/services"
	"chess-coach-backend/pkg/uci"
)

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if err := run(); err != nil {
		logrus.Fatalf("Server exited: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	pool, err := services.NewEnginePool(cfg.EngineWorkers, services.StockfishFactory(cfg.EnginePath, uci.Options{
		Threads: cfg.EngineThreads,
		Hash:    cfg.EngineHash,
	}))
	if err != nil {
		return fmt.Errorf("start engine pool: %w", err)
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

	aggregator := services.NewAggregator(db)
	persona := services.NewPersonaService(aggregator)
	importer := services.NewImportService(games)
	positions := services.NewPositionService(pool)

	router := handlers.NewRouter(cfg, handlers.Handlers{
		Analysis: handlers.NewAnalysisHandler(jobService, analyses, games, positions, cfg),
		Games:    handlers.NewGamesHandler(importer, games),
		Puzzles:  handlers.NewPuzzlesHandler(puzzles),
		Insights: handlers.NewInsightsHandler(aggregator, persona, repertoire),
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.ServerPort),
		Handler: router,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logrus.Infof("Listening on %s", server.Addr)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logrus.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logrus.Info("Shutdown complete")
	return nil
}

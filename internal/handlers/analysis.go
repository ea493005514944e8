package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"chess-coach-backend/internal/config"
	"chess-coach-backend/internal/models"
	"chess-coach-backend/internal/repository"
	"chess-coach-backend/internal/services"
)

// AnalysisHandler handles analysis jobs, the streaming endpoint and
// per-game analysis reads.
type AnalysisHandler struct {
	jobs      *services.JobService
	analyses  *repository.AnalysisRepository
	games     *repository.GameRepository
	positions *services.PositionService
	cfg       *config.Config
}

func NewAnalysisHandler(jobs *services.JobService, analyses *repository.AnalysisRepository, games *repository.GameRepository, positions *services.PositionService, cfg *config.Config) *AnalysisHandler {
	return &AnalysisHandler{jobs: jobs, analyses: analyses, games: games, positions: positions, cfg: cfg}
}

// StartAnalysis enqueues a background analysis job
// POST /api/analysis/start
func (h *AnalysisHandler) StartAnalysis(c *gin.Context) {
	var request models.StartAnalysisRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		logrus.Errorf("Invalid start analysis request: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request format",
			"details": err.Error(),
		})
		return
	}
	if request.Depth == 0 {
		request.Depth = h.cfg.DefaultDepth
	}

	job, err := h.jobs.Enqueue(c.Request.Context(), userID(c), request.GameIDs, request.Depth, false)
	if err != nil {
		if errors.Is(err, services.ErrNoCandidates) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "No unanalyzed games match the request",
			})
			return
		}
		logrus.Errorf("Failed to enqueue analysis job: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to start analysis",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"job_id":          job.ID,
		"status":          job.Status,
		"total_games":     job.TotalGames,
		"games_completed": job.GamesCompleted,
	})
}

// GetJob returns a job status snapshot
// GET /api/analysis/job/:id
func (h *AnalysisHandler) GetJob(c *gin.Context) {
	job, err := h.jobs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
			return
		}
		logrus.Errorf("Failed to get job %s: %v", c.Param("id"), err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to load job",
			"details": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, job)
}

// RunAnalysis runs the pipeline inline and streams progress as SSE
// POST /api/analysis/run
func (h *AnalysisHandler) RunAnalysis(c *gin.Context) {
	var request models.RunAnalysisRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		logrus.Errorf("Invalid run analysis request: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request format",
			"details": err.Error(),
		})
		return
	}
	if request.Depth == 0 {
		request.Depth = h.cfg.DefaultDepth
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Streaming unsupported"})
		return
	}

	emit := func(event models.StreamEvent) error {
		payload, err := json.Marshal(event)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", payload); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	err := h.jobs.Stream(c.Request.Context(), userID(c), request.GameIDs, request.Depth, request.Reanalyze, emit)
	if err != nil {
		if errors.Is(err, services.ErrNoCandidates) {
			emit(models.StreamEvent{Type: models.EventError, Message: "no games to analyze"})
			return
		}
		logrus.Warnf("Analysis stream ended: %v", err)
	}
}

// GetGameAnalysis returns the stored summary and ply rows for one game
// GET /api/analysis/game/:id
func (h *AnalysisHandler) GetGameAnalysis(c *gin.Context) {
	gameID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid game id"})
		return
	}

	game, err := h.games.Get(c.Request.Context(), gameID)
	if err != nil || game.UserID != userID(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Game not found"})
		return
	}

	summary, err := h.analyses.GetByGame(c.Request.Context(), gameID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Game not analyzed yet"})
			return
		}
		logrus.Errorf("Failed to load analysis for game %d: %v", gameID, err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to load analysis",
			"details": err.Error(),
		})
		return
	}
	moves, err := h.analyses.MovesByGame(c.Request.Context(), gameID)
	if err != nil {
		logrus.Errorf("Failed to load evaluations for game %d: %v", gameID, err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to load evaluations",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, models.GameAnalysisResponse{Summary: *summary, Moves: moves})
}

// AnalyzePosition runs a one-off engine evaluation of a FEN
// POST /api/position/analyze
func (h *AnalysisHandler) AnalyzePosition(c *gin.Context) {
	var request models.AnalyzePositionRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		logrus.Errorf("Invalid position analysis request: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request format",
			"details": err.Error(),
		})
		return
	}
	if request.Depth == 0 {
		request.Depth = h.cfg.DefaultDepth
	}

	result, err := h.positions.Analyze(c.Request.Context(), request.FEN, request.Depth, request.MultiPV)
	if err != nil {
		logrus.Errorf("Position analysis failed: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Position analysis failed",
			"details": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetEngineConfig reports the engine setup the server runs with
// GET /api/engine/config
func (h *AnalysisHandler) GetEngineConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"engine_path":   h.cfg.EnginePath,
		"workers":       h.cfg.EngineWorkers,
		"threads":       h.cfg.EngineThreads,
		"hash_mb":       h.cfg.EngineHash,
		"default_depth": h.cfg.DefaultDepth,
	})
}

package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"chess-coach-backend/internal/models"
	"chess-coach-backend/internal/repository"
	"chess-coach-backend/internal/services"
)

// PuzzlesHandler serves puzzle listings, the review queue and attempts.
type PuzzlesHandler struct {
	puzzles *services.PuzzleService
}

func NewPuzzlesHandler(puzzles *services.PuzzleService) *PuzzlesHandler {
	return &PuzzlesHandler{puzzles: puzzles}
}

func puzzleFilter(c *gin.Context) repository.PuzzleFilter {
	f := repository.PuzzleFilter{
		Phase: c.Query("phase"),
		Type:  c.Query("type"),
	}
	if themes := c.Query("themes"); themes != "" {
		f.Themes = strings.Split(themes, ",")
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "50")); err == nil {
		f.Limit = limit
	}
	return f
}

// ListPuzzles returns puzzles extracted from the user's own games
// GET /api/puzzles
func (h *PuzzlesHandler) ListPuzzles(c *gin.Context) {
	f := puzzleFilter(c)
	f.UserID = userID(c)
	h.respondList(c, f)
}

// ListGlobalPuzzles returns the shared puzzle pool
// GET /api/puzzles/global
func (h *PuzzlesHandler) ListGlobalPuzzles(c *gin.Context) {
	h.respondList(c, puzzleFilter(c))
}

func (h *PuzzlesHandler) respondList(c *gin.Context, f repository.PuzzleFilter) {
	puzzles, err := h.puzzles.List(c.Request.Context(), f)
	if err != nil {
		logrus.Errorf("Failed to list puzzles: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to list puzzles",
			"details": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"puzzles": renderPuzzles(puzzles), "count": len(puzzles)})
}

// renderPuzzles expands the packed solution and theme columns for clients.
func renderPuzzles(puzzles []models.Puzzle) []gin.H {
	out := make([]gin.H, 0, len(puzzles))
	for i := range puzzles {
		p := &puzzles[i]
		out = append(out, gin.H{
			"id":          p.ID,
			"key":         p.Key,
			"fen":         p.FEN,
			"sideToMove":  p.SideToMove,
			"bestMoveSan": p.BestMoveSAN,
			"bestMoveUci": p.BestMoveUCI,
			"playedSan":   p.PlayedSAN,
			"evalLoss":    p.EvalLoss,
			"phase":       p.Phase,
			"puzzleType":  p.Type,
			"solution":    p.SolutionLine(),
			"themes":      p.ThemeList(),
			"createdAt":   p.CreatedAt,
		})
	}
	return out
}

// ReviewQueue returns puzzles due for review
// GET /api/puzzles/review-queue
func (h *PuzzlesHandler) ReviewQueue(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	puzzles, err := h.puzzles.ReviewQueue(c.Request.Context(), userID(c), limit)
	if err != nil {
		logrus.Errorf("Failed to build review queue: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to build review queue",
			"details": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"puzzles": renderPuzzles(puzzles), "count": len(puzzles)})
}

// RecordAttempt stores an attempt and returns the updated schedule
// POST /api/puzzles/:id/attempt
func (h *PuzzlesHandler) RecordAttempt(c *gin.Context) {
	puzzleID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid puzzle id"})
		return
	}
	var request models.AttemptRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		logrus.Errorf("Invalid attempt request: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request format",
			"details": err.Error(),
		})
		return
	}

	attempt, err := h.puzzles.RecordAttempt(c.Request.Context(), userID(c), puzzleID, *request.Correct, request.TimeTaken)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Puzzle not found"})
			return
		}
		logrus.Errorf("Failed to record attempt on puzzle %d: %v", puzzleID, err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to record attempt",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, models.AttemptResponse{
		Correct:    attempt.Correct,
		Repetition: attempt.Repetition,
		Easiness:   attempt.Easiness,
		NextReview: attempt.NextReview.Format(time.RFC3339),
	})
}

package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"chess-coach-backend/internal/models"
	"chess-coach-backend/internal/repository"
	"chess-coach-backend/internal/services"
)

// GamesHandler handles PGN import and game listing.
type GamesHandler struct {
	importer *services.ImportService
	games    *repository.GameRepository
}

func NewGamesHandler(importer *services.ImportService, games *repository.GameRepository) *GamesHandler {
	return &GamesHandler{importer: importer, games: games}
}

// ImportGames imports one or more PGN games
// POST /api/games/import
func (h *GamesHandler) ImportGames(c *gin.Context) {
	var request models.ImportGamesRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		logrus.Errorf("Invalid import request: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request format",
			"details": err.Error(),
		})
		return
	}

	result, err := h.importer.Import(c.Request.Context(), userID(c), request.Platform, request.PGN)
	if err != nil {
		logrus.Errorf("PGN import failed: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Import failed",
			"details": err.Error(),
		})
		return
	}
	logrus.Infof("Imported %d games for %s (%d duplicates, %d failed)",
		result.Imported, userID(c), result.Duplicates, result.Failed)
	c.JSON(http.StatusOK, result)
}

// ListGames returns the user's games, newest first
// GET /api/games
func (h *GamesHandler) ListGames(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	games, err := h.games.ListByUser(c.Request.Context(), userID(c), limit)
	if err != nil {
		logrus.Errorf("Failed to list games: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to list games",
			"details": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"games": games, "count": len(games)})
}

// GetGame returns one game
// GET /api/games/:id
func (h *GamesHandler) GetGame(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid game id"})
		return
	}
	game, err := h.games.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Game not found"})
			return
		}
		logrus.Errorf("Failed to get game %d: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to load game",
			"details": err.Error(),
		})
		return
	}
	if game.UserID != userID(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Game not found"})
		return
	}
	c.JSON(http.StatusOK, game)
}

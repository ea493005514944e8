package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"chess-coach-backend/internal/repository"
	"chess-coach-backend/internal/services"
)

// InsightsHandler serves the aggregator and persona read surfaces.
type InsightsHandler struct {
	aggregator *services.Aggregator
	persona    *services.PersonaService
	repertoire *repository.RepertoireRepository
}

func NewInsightsHandler(aggregator *services.Aggregator, persona *services.PersonaService, repertoire *repository.RepertoireRepository) *InsightsHandler {
	return &InsightsHandler{aggregator: aggregator, persona: persona, repertoire: repertoire}
}

func (h *InsightsHandler) respond(c *gin.Context, what string, result interface{}, err error) {
	if err != nil {
		logrus.Errorf("Failed to compute %s: %v", what, err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to compute " + what,
			"details": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, result)
}

// Overview returns the headline aggregate
// GET /api/insights/overview
func (h *InsightsHandler) Overview(c *gin.Context) {
	result, err := h.aggregator.Overview(c.Request.Context(), userID(c))
	h.respond(c, "overview", result, err)
}

// Radar returns the six-axis skill radar
// GET /api/insights/radar
func (h *InsightsHandler) Radar(c *gin.Context) {
	result, err := h.aggregator.Radar(c.Request.Context(), userID(c))
	h.respond(c, "skill radar", result, err)
}

// Weaknesses returns the detected recurring problems
// GET /api/insights/weaknesses
func (h *InsightsHandler) Weaknesses(c *gin.Context) {
	result, err := h.aggregator.Weaknesses(c.Request.Context(), userID(c))
	h.respond(c, "weaknesses", gin.H{"weaknesses": result}, err)
}

// TimePressure returns the under-30-seconds slice
// GET /api/insights/time-pressure
func (h *InsightsHandler) TimePressure(c *gin.Context) {
	result, err := h.aggregator.TimePressure(c.Request.Context(), userID(c))
	h.respond(c, "time pressure slice", result, err)
}

// Pieces returns per-piece performance
// GET /api/insights/pieces
func (h *InsightsHandler) Pieces(c *gin.Context) {
	result, err := h.aggregator.PieceStats(c.Request.Context(), userID(c))
	h.respond(c, "piece stats", gin.H{"pieces": result}, err)
}

// Blunders returns the blunder subtype distribution
// GET /api/insights/blunders
func (h *InsightsHandler) Blunders(c *gin.Context) {
	result, err := h.aggregator.BlunderProfile(c.Request.Context(), userID(c))
	h.respond(c, "blunder profile", gin.H{"subtypes": result}, err)
}

// Openings returns the opening repertoire mirror
// GET /api/insights/openings
func (h *InsightsHandler) Openings(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	result, err := h.repertoire.ListByUser(c.Request.Context(), userID(c), limit)
	h.respond(c, "openings", gin.H{"openings": result}, err)
}

// Persona returns the narrative persona report
// GET /api/insights/persona
func (h *InsightsHandler) Persona(c *gin.Context) {
	result, err := h.persona.Report(c.Request.Context(), userID(c))
	h.respond(c, "persona report", result, err)
}

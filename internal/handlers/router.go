package handlers

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"chess-coach-backend/internal/config"
)

// Handlers bundles everything the router mounts.
type Handlers struct {
	Analysis *AnalysisHandler
	Games    *GamesHandler
	Puzzles  *PuzzlesHandler
	Insights *InsightsHandler
}

// NewRouter wires the HTTP surface: CORS, rate limiting, the health probe
// and the /api groups.
func NewRouter(cfg *config.Config, h Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", userIDHeader},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	})

	api := router.Group("/api")
	api.Use(RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))

	api.GET("/engine/config", h.Analysis.GetEngineConfig)

	user := api.Group("")
	user.Use(RequireUser())
	{
		user.POST("/games/import", h.Games.ImportGames)
		user.GET("/games", h.Games.ListGames)
		user.GET("/games/:id", h.Games.GetGame)

		user.POST("/analysis/start", h.Analysis.StartAnalysis)
		user.GET("/analysis/job/:id", h.Analysis.GetJob)
		user.POST("/analysis/run", h.Analysis.RunAnalysis)
		user.GET("/analysis/game/:id", h.Analysis.GetGameAnalysis)
		user.POST("/position/analyze", h.Analysis.AnalyzePosition)

		user.GET("/puzzles", h.Puzzles.ListPuzzles)
		user.GET("/puzzles/global", h.Puzzles.ListGlobalPuzzles)
		user.GET("/puzzles/review-queue", h.Puzzles.ReviewQueue)
		user.POST("/puzzles/:id/attempt", h.Puzzles.RecordAttempt)

		user.GET("/insights/overview", h.Insights.Overview)
		user.GET("/insights/radar", h.Insights.Radar)
		user.GET("/insights/weaknesses", h.Insights.Weaknesses)
		user.GET("/insights/time-pressure", h.Insights.TimePressure)
		user.GET("/insights/pieces", h.Insights.Pieces)
		user.GET("/insights/blunders", h.Insights.Blunders)
		user.GET("/insights/openings", h.Insights.Openings)
		user.GET("/insights/persona", h.Insights.Persona)
	}

	return router
}

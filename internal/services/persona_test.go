package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chess-coach-backend/internal/models"
)

func TestScorePersonasDeterministicOrder(t *testing.T) {
	v := &models.MetricVector{}

	first := scorePersonas(v)
	second := scorePersonas(v)
	require.Len(t, first, len(personaTable))
	for i := range first {
		assert.Equal(t, first[i].Name, second[i].Name)
		assert.Equal(t, first[i].Score, second[i].Score)
	}

	// Descending scores throughout.
	for i := 1; i < len(first); i++ {
		assert.GreaterOrEqual(t, first[i-1].Score, first[i].Score)
	}
}

func TestScorePersonasTacticianProfile(t *testing.T) {
	v := &models.MetricVector{
		TotalGames:    50,
		WinRate:       55,
		OverallCPL:    35,
		OpeningCPL:    40,
		MiddlegameCPL: 25,
		EndgameCPL:    45,
		BestMoveRate:  48,
		Accuracy:      88,
		MissedTactics: 1,
	}
	ranked := scorePersonas(v)
	assert.Equal(t, "Tactician", ranked[0].Name)
}

func TestScorePersonasGrinderNeedsEndgameEdge(t *testing.T) {
	v := &models.MetricVector{
		OpeningCPL:    60,
		MiddlegameCPL: 55,
		EndgameCPL:    20,
		AvgGameLength: 55,
	}
	ranked := scorePersonas(v)

	var grinder float64
	for _, r := range ranked {
		if r.Name == "Grinder" {
			grinder = r.Score
		}
	}
	assert.Greater(t, grinder, 50.0)
}

func TestSignatureStatsBounds(t *testing.T) {
	v := &models.MetricVector{WinRate: 52.34, OverallCPL: 41.27, Accuracy: 86.5}
	stats := signatureStats(v)
	require.GreaterOrEqual(t, len(stats), 3)
	require.LessOrEqual(t, len(stats), 6)
	assert.Equal(t, 52.3, stats[0].Value)

	v.BlundersPer100 = 3.2
	v.Comebacks = 2
	v.BestMoveRate = 30
	assert.Len(t, signatureStats(v), 6)
}

func TestKryptonitePicksWorstSeverity(t *testing.T) {
	assert.Equal(t, "No single recurring weakness stands out yet.", kryptonite(nil))

	got := kryptonite([]models.Weakness{
		{Kind: "phase", Description: "mild", Severity: 1.2},
		{Kind: "time_pressure", Description: "severe", Severity: 40},
		{Kind: "blunder_pattern", Description: "middling", Severity: 5},
	})
	assert.Equal(t, "severe", got)
}

func TestGrowthPathAlwaysThreeToFive(t *testing.T) {
	v := &models.MetricVector{}
	path := growthPath(v, nil)
	require.Len(t, path, 3)

	many := []models.Weakness{
		{Kind: "phase"},
		{Kind: "blunder_pattern"},
		{Kind: "converting_advantages"},
		{Kind: "time_pressure"},
		{Kind: "time_control"},
		{Kind: "phase"},
	}
	v.MissedTactics = 9
	path = growthPath(v, many)
	assert.Len(t, path, 5)
}

func TestPhaseObservationTemplates(t *testing.T) {
	assert.Contains(t, phaseObservation(models.PhaseEndgame, 70, 50), "slip")
	assert.Contains(t, phaseObservation(models.PhaseOpening, 30, 50), "strength")
	assert.Contains(t, phaseObservation(models.PhaseMiddlegame, 50, 50), "steady")
}

func TestPersonaReportEndToEnd(t *testing.T) {
	db := newTestDB(t)
	base := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 6; i++ {
		seedAnalyzedGame(t, db, "u1", base.Add(time.Duration(i)*time.Hour), models.ResultWin, 30, []models.MoveEvaluation{
			{Quality: models.QualityBest},
			{Quality: models.QualityBest},
		})
	}

	svc := NewPersonaService(NewAggregator(db))
	report, err := svc.Report(context.Background(), "u1")
	require.NoError(t, err)
	assert.NotEmpty(t, report.Persona)
	assert.NotEmpty(t, report.Story)
	require.Len(t, report.PhaseBreakdown, 3)
	assert.GreaterOrEqual(t, len(report.GrowthPath), 3)
	assert.GreaterOrEqual(t, len(report.SignatureStats), 3)

	if report.SecondaryPersona != "" {
		assert.NotEqual(t, report.Persona, report.SecondaryPersona)
	}
}

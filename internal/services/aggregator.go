package services

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"

	"chess-coach-backend/internal/models"
)

// Aggregator computes read-only corpus statistics for one user. Everything
// is derived at query time from move_evaluations and game_analyses; the
// opening repertoire mirror is the only materialized aggregate.
type Aggregator struct {
	db *sqlx.DB
}

func NewAggregator(db *sqlx.DB) *Aggregator {
	return &Aggregator{db: db}
}

// trendBand is the CPL margin around the overall mean inside which recent
// form counts as stable.
const trendBand = 5.0

// eval threshold (white-perspective cp) for "clearly winning/losing", used
// by comeback, collapse and converting-advantages detection.
const decisiveEval = 200

// Overview returns the headline aggregate.
func (a *Aggregator) Overview(ctx context.Context, userID string) (*models.Overview, error) {
	o := &models.Overview{}

	var games struct {
		Total  int `db:"total"`
		Wins   int `db:"wins"`
		Draws  int `db:"draws"`
		Losses int `db:"losses"`
	}
	err := a.db.GetContext(ctx, &games, `
		SELECT COUNT(*) AS total,
		       COALESCE(SUM(result = 'win'), 0)  AS wins,
		       COALESCE(SUM(result = 'draw'), 0) AS draws,
		       COALESCE(SUM(result = 'loss'), 0) AS losses
		FROM games WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("overview games: %w", err)
	}
	o.TotalGames = games.Total
	o.Wins, o.Draws, o.Losses = games.Wins, games.Draws, games.Losses
	if games.Total > 0 {
		o.WinRate = 100 * float64(games.Wins) / float64(games.Total)
	}

	var analyses struct {
		Analyzed   int     `db:"analyzed"`
		MeanCPL    float64 `db:"mean_cpl"`
		Opening    float64 `db:"opening_cpl"`
		Middlegame float64 `db:"middlegame_cpl"`
		Endgame    float64 `db:"endgame_cpl"`
		Accuracy   float64 `db:"accuracy"`
		Blunders   int     `db:"blunders"`
		PlayerPlys int     `db:"player_plys"`
	}
	err = a.db.GetContext(ctx, &analyses, `
		SELECT COUNT(*) AS analyzed,
		       COALESCE(AVG(overall_cpl), 0)    AS mean_cpl,
		       COALESCE(AVG(opening_cpl), 0)    AS opening_cpl,
		       COALESCE(AVG(middlegame_cpl), 0) AS middlegame_cpl,
		       COALESCE(AVG(endgame_cpl), 0)    AS endgame_cpl,
		       COALESCE(AVG(accuracy), 0)       AS accuracy,
		       COALESCE(SUM(blunder_count), 0)  AS blunders,
		       COALESCE(SUM(best_count + excellent_count + good_count +
		                    inaccuracy_count + mistake_count + blunder_count), 0) AS player_plys
		FROM game_analyses WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("overview analyses: %w", err)
	}
	o.AnalyzedGames = analyses.Analyzed
	o.MeanCPL = analyses.MeanCPL
	o.OpeningCPL = analyses.Opening
	o.MiddlegameCPL = analyses.Middlegame
	o.EndgameCPL = analyses.Endgame
	o.MeanAccuracy = analyses.Accuracy
	o.TotalPlayerPlys = analyses.PlayerPlys
	if analyses.PlayerPlys > 0 {
		o.BlundersPer100 = 100 * float64(analyses.Blunders) / float64(analyses.PlayerPlys)
	}

	err = a.db.GetContext(ctx, &o.RecentCPL, `
		SELECT COALESCE(AVG(overall_cpl), 0) FROM (
			SELECT ga.overall_cpl FROM game_analyses ga
			JOIN games g ON g.id = ga.game_id
			WHERE ga.user_id = ? AND ga.overall_cpl IS NOT NULL
			ORDER BY g.played_at DESC LIMIT 10)`, userID)
	if err != nil {
		return nil, fmt.Errorf("overview recent: %w", err)
	}

	switch {
	case o.AnalyzedGames == 0:
		o.Trend = models.TrendStable
	case o.RecentCPL < o.MeanCPL-trendBand:
		o.Trend = models.TrendImproving
	case o.RecentCPL > o.MeanCPL+trendBand:
		o.Trend = models.TrendDeclining
	default:
		o.Trend = models.TrendStable
	}
	return o, nil
}

// Radar maps the corpus onto six 0..100 axes. Each transform is monotone
// in its source aggregate; the constants set the curve, not the ordering.
func (a *Aggregator) Radar(ctx context.Context, userID string) (*models.SkillRadar, error) {
	o, err := a.Overview(ctx, userID)
	if err != nil {
		return nil, err
	}
	if o.AnalyzedGames == 0 {
		return &models.SkillRadar{}, nil
	}

	var cplStddev float64
	err = a.db.GetContext(ctx, &cplStddev, `
		SELECT COALESCE(
			AVG(overall_cpl * overall_cpl) - AVG(overall_cpl) * AVG(overall_cpl), 0)
		FROM game_analyses WHERE user_id = ? AND overall_cpl IS NOT NULL`, userID)
	if err != nil {
		return nil, fmt.Errorf("radar variance: %w", err)
	}
	cplStddev = math.Sqrt(math.Max(0, cplStddev))

	tp, err := a.TimePressure(ctx, userID)
	if err != nil {
		return nil, err
	}
	missed, err := a.missedTactics(ctx, userID)
	if err != nil {
		return nil, err
	}
	missedPerGame := float64(missed) / float64(o.AnalyzedGames)

	curve := func(x, scale float64) float64 {
		return 100 * math.Exp(-math.Max(0, x)/scale)
	}
	return &models.SkillRadar{
		Opening:     curve(o.OpeningCPL, 60),
		Middlegame:  curve(o.MiddlegameCPL, 60),
		Endgame:     curve(o.EndgameCPL*PhaseWeight[models.PhaseEndgame], 60),
		Tactics:     curve(missedPerGame*20+o.BlundersPer100*5, 60),
		Composure:   curve(tp.PressurePenalty, 40),
		Consistency: curve(cplStddev, 40),
	}, nil
}

func (a *Aggregator) missedTactics(ctx context.Context, userID string) (int, error) {
	var n int
	err := a.db.GetContext(ctx, &n, `
		SELECT COUNT(*) FROM move_evaluations m
		JOIN games g ON g.id = m.game_id
		WHERE g.user_id = ? AND m.color = g.player_color
		  AND m.blunder_subtype IN
		      ('missed_fork', 'missed_pin', 'missed_skewer', 'missed_discovery',
		       'missed_mate', 'missed_capture')`, userID)
	if err != nil {
		return 0, fmt.Errorf("missed tactics: %w", err)
	}
	return n, nil
}

// BlunderProfile returns the user's blunder subtype distribution, most
// frequent first.
func (a *Aggregator) BlunderProfile(ctx context.Context, userID string) ([]models.BlunderProfile, error) {
	var rows []models.BlunderProfile
	err := a.db.SelectContext(ctx, &rows, `
		SELECT m.blunder_subtype AS subtype, COUNT(*) AS count
		FROM move_evaluations m
		JOIN games g ON g.id = m.game_id
		WHERE g.user_id = ? AND m.color = g.player_color AND m.blunder_subtype IS NOT NULL
		GROUP BY m.blunder_subtype
		ORDER BY count DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("blunder profile: %w", err)
	}
	return rows, nil
}

// TimePressure aggregates player moves made with under 30 seconds left.
func (a *Aggregator) TimePressure(ctx context.Context, userID string) (*models.TimePressureSlice, error) {
	var slice struct {
		Moves    int     `db:"moves"`
		MeanCPL  float64 `db:"mean_cpl"`
		Blunders int     `db:"blunders"`
		Mistakes int     `db:"mistakes"`
	}
	err := a.db.GetContext(ctx, &slice, `
		SELECT COUNT(*) AS moves,
		       COALESCE(AVG(m.cp_loss), 0)         AS mean_cpl,
		       COALESCE(SUM(m.quality = 'blunder'), 0) AS blunders,
		       COALESCE(SUM(m.quality = 'mistake'), 0) AS mistakes
		FROM move_evaluations m
		JOIN games g ON g.id = m.game_id
		WHERE g.user_id = ? AND m.color = g.player_color
		  AND m.clock_seconds IS NOT NULL AND m.clock_seconds < 30`, userID)
	if err != nil {
		return nil, fmt.Errorf("time pressure slice: %w", err)
	}

	var baseline float64
	err = a.db.GetContext(ctx, &baseline, `
		SELECT COALESCE(AVG(m.cp_loss), 0)
		FROM move_evaluations m
		JOIN games g ON g.id = m.game_id
		WHERE g.user_id = ? AND m.color = g.player_color`, userID)
	if err != nil {
		return nil, fmt.Errorf("time pressure baseline: %w", err)
	}

	out := &models.TimePressureSlice{
		Moves:       slice.Moves,
		MeanCPL:     slice.MeanCPL,
		Blunders:    slice.Blunders,
		Mistakes:    slice.Mistakes,
		BaselineCPL: baseline,
	}
	if slice.Moves > 0 {
		out.PressurePenalty = slice.MeanCPL - baseline
	}
	return out, nil
}

// PieceStats returns per-moved-piece averages over the player's moves.
func (a *Aggregator) PieceStats(ctx context.Context, userID string) ([]models.PieceStats, error) {
	var rows []models.PieceStats
	err := a.db.SelectContext(ctx, &rows, `
		SELECT m.piece AS piece,
		       COUNT(*) AS moves,
		       COALESCE(AVG(m.cp_loss), 0) AS meancpl,
		       COALESCE(SUM(m.quality = 'best'), 0)    AS best,
		       COALESCE(SUM(m.quality = 'good'), 0)    AS good,
		       COALESCE(SUM(m.quality = 'mistake'), 0) AS mistakes,
		       COALESCE(SUM(m.quality = 'blunder'), 0) AS blunders
		FROM move_evaluations m
		JOIN games g ON g.id = m.game_id
		WHERE g.user_id = ? AND m.color = g.player_color
		GROUP BY m.piece
		ORDER BY moves DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("piece stats: %w", err)
	}
	return rows, nil
}

// swingGames counts games matching a result where the player's eval crossed
// the decisive threshold the wrong way at some player ply. sign is +1 for
// "was winning" and -1 for "was losing", in the player's perspective.
func (a *Aggregator) swingGames(ctx context.Context, userID string, result models.Result, sign int) (int, error) {
	threshold := decisiveEval * sign
	var n int
	// eval_before is white-perspective; mirror for black players.
	err := a.db.GetContext(ctx, &n, `
		SELECT COUNT(DISTINCT m.game_id)
		FROM move_evaluations m
		JOIN games g ON g.id = m.game_id
		WHERE g.user_id = ? AND g.result = ? AND m.color = g.player_color
		  AND ((g.player_color = 'white' AND ? > 0 AND m.eval_before > ?)
		    OR (g.player_color = 'white' AND ? < 0 AND m.eval_before < ?)
		    OR (g.player_color = 'black' AND ? > 0 AND m.eval_before < ?)
		    OR (g.player_color = 'black' AND ? < 0 AND m.eval_before > ?))`,
		userID, result,
		sign, threshold,
		sign, threshold,
		sign, -threshold,
		sign, -threshold)
	if err != nil {
		return 0, fmt.Errorf("swing games: %w", err)
	}
	return n, nil
}

// Comebacks counts wins from clearly losing positions.
func (a *Aggregator) Comebacks(ctx context.Context, userID string) (int, error) {
	return a.swingGames(ctx, userID, models.ResultWin, -1)
}

// Collapses counts losses from clearly winning positions.
func (a *Aggregator) Collapses(ctx context.Context, userID string) (int, error) {
	return a.swingGames(ctx, userID, models.ResultLoss, +1)
}

// Weaknesses runs the weakness detectors over the corpus.
func (a *Aggregator) Weaknesses(ctx context.Context, userID string) ([]models.Weakness, error) {
	o, err := a.Overview(ctx, userID)
	if err != nil {
		return nil, err
	}
	if o.AnalyzedGames == 0 {
		return nil, nil
	}

	var out []models.Weakness

	phases := []struct {
		phase models.GamePhase
		cpl   float64
	}{
		{models.PhaseOpening, o.OpeningCPL},
		{models.PhaseMiddlegame, o.MiddlegameCPL},
		{models.PhaseEndgame, o.EndgameCPL},
	}
	for _, p := range phases {
		if o.MeanCPL > 0 && p.cpl > 1.15*o.MeanCPL {
			out = append(out, models.Weakness{
				Kind:        "phase",
				Description: fmt.Sprintf("%s play runs %.0f%% above your overall centipawn loss", p.phase, 100*(p.cpl/o.MeanCPL-1)),
				Severity:    p.cpl / o.MeanCPL,
			})
		}
	}

	profile, err := a.BlunderProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(profile) > 0 && profile[0].Count >= 3 {
		out = append(out, models.Weakness{
			Kind:        "blunder_pattern",
			Description: fmt.Sprintf("recurring %s errors", strings.ReplaceAll(profile[0].Subtype, "_", " ")),
			Severity:    float64(profile[0].Count),
			Count:       profile[0].Count,
		})
	}

	converting, err := a.Collapses(ctx, userID)
	if err != nil {
		return nil, err
	}
	if converting > 0 {
		out = append(out, models.Weakness{
			Kind:        "converting_advantages",
			Description: fmt.Sprintf("lost %d games after holding a winning position", converting),
			Severity:    float64(converting),
			Count:       converting,
		})
	}

	underperforming, err := a.weakTimeControls(ctx, userID, o.WinRate)
	if err != nil {
		return nil, err
	}
	out = append(out, underperforming...)

	tp, err := a.TimePressure(ctx, userID)
	if err != nil {
		return nil, err
	}
	if tp.Moves >= 10 && tp.PressurePenalty > 15 {
		out = append(out, models.Weakness{
			Kind:        "time_pressure",
			Description: fmt.Sprintf("centipawn loss rises by %.0f under 30 seconds", tp.PressurePenalty),
			Severity:    tp.PressurePenalty,
			Count:       tp.Moves,
		})
	}
	return out, nil
}

// weakTimeControls flags time controls where the user scores well below
// their overall win rate, over at least five games.
func (a *Aggregator) weakTimeControls(ctx context.Context, userID string, overallWinRate float64) ([]models.Weakness, error) {
	var rows []struct {
		TimeControl string  `db:"time_control"`
		Games       int     `db:"games"`
		WinRate     float64 `db:"win_rate"`
	}
	err := a.db.SelectContext(ctx, &rows, `
		SELECT time_control,
		       COUNT(*) AS games,
		       100.0 * SUM(result = 'win') / COUNT(*) AS win_rate
		FROM games WHERE user_id = ? AND time_control != ''
		GROUP BY time_control HAVING COUNT(*) >= 5`, userID)
	if err != nil {
		return nil, fmt.Errorf("time control split: %w", err)
	}

	var out []models.Weakness
	for _, row := range rows {
		if row.WinRate < overallWinRate-10 {
			out = append(out, models.Weakness{
				Kind:        "time_control",
				Description: fmt.Sprintf("win rate at %s is %.0f%%, %.0f points below your average", row.TimeControl, row.WinRate, overallWinRate-row.WinRate),
				Severity:    overallWinRate - row.WinRate,
				Count:       row.Games,
			})
		}
	}
	return out, nil
}

// MetricVector assembles the persona scorer input.
func (a *Aggregator) MetricVector(ctx context.Context, userID string) (*models.MetricVector, error) {
	o, err := a.Overview(ctx, userID)
	if err != nil {
		return nil, err
	}

	v := &models.MetricVector{
		TotalGames:     o.TotalGames,
		OverallCPL:     o.MeanCPL,
		OpeningCPL:     o.OpeningCPL,
		MiddlegameCPL:  o.MiddlegameCPL,
		EndgameCPL:     o.EndgameCPL,
		BlundersPer100: o.BlundersPer100,
		Accuracy:       o.MeanAccuracy,
	}
	if o.TotalGames > 0 {
		v.WinRate = o.WinRate
		v.DrawRate = 100 * float64(o.Draws) / float64(o.TotalGames)
	}

	var counts struct {
		Mistakes int `db:"mistakes"`
		Best     int `db:"best"`
	}
	err = a.db.GetContext(ctx, &counts, `
		SELECT COALESCE(SUM(mistake_count), 0) AS mistakes,
		       COALESCE(SUM(best_count), 0)    AS best
		FROM game_analyses WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("metric counts: %w", err)
	}
	if o.TotalPlayerPlys > 0 {
		v.MistakesPer100 = 100 * float64(counts.Mistakes) / float64(o.TotalPlayerPlys)
		v.BestMoveRate = 100 * float64(counts.Best) / float64(o.TotalPlayerPlys)
	}

	if v.Comebacks, err = a.Comebacks(ctx, userID); err != nil {
		return nil, err
	}
	if v.Collapses, err = a.Collapses(ctx, userID); err != nil {
		return nil, err
	}

	tp, err := a.TimePressure(ctx, userID)
	if err != nil {
		return nil, err
	}
	v.TimePressureCPL = tp.MeanCPL
	v.TimePressureDelta = tp.PressurePenalty

	var length struct {
		AvgLength float64 `db:"avg_length"`
		Fast      int     `db:"fast"`
		Total     int     `db:"total"`
	}
	err = a.db.GetContext(ctx, &length, `
		SELECT COALESCE(AVG(move_count), 0) AS avg_length,
		       COUNT(*) AS total, 0 AS fast
		FROM games WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("metric lengths: %w", err)
	}
	v.AvgGameLength = length.AvgLength
	v.FastGameShare, err = a.fastGameShare(ctx, userID)
	if err != nil {
		return nil, err
	}

	profile, err := a.BlunderProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(profile) > 0 {
		v.TopBlunderSubtype = profile[0].Subtype
		v.TopBlunderCount = profile[0].Count
	}
	if v.MissedTactics, err = a.missedTactics(ctx, userID); err != nil {
		return nil, err
	}
	return v, nil
}

// fastGameShare is the fraction of games played at under five minutes base
// time, parsed from the time-control string's leading seconds figure.
func (a *Aggregator) fastGameShare(ctx context.Context, userID string) (float64, error) {
	var controls []struct {
		TimeControl string `db:"time_control"`
		Games       int    `db:"games"`
	}
	err := a.db.SelectContext(ctx, &controls, `
		SELECT time_control, COUNT(*) AS games
		FROM games WHERE user_id = ? GROUP BY time_control`, userID)
	if err != nil {
		return 0, fmt.Errorf("fast game share: %w", err)
	}

	total, fast := 0, 0
	for _, c := range controls {
		total += c.Games
		if baseSeconds(c.TimeControl) > 0 && baseSeconds(c.TimeControl) < 300 {
			fast += c.Games
		}
	}
	if total == 0 {
		return 0, nil
	}
	return float64(fast) / float64(total), nil
}

// baseSeconds extracts the base time from strings like "180+2" or "600".
// Unparseable controls return 0.
func baseSeconds(tc string) int {
	base := tc
	if i := strings.IndexAny(tc, "+|"); i >= 0 {
		base = tc[:i]
	}
	n, err := strconv.Atoi(strings.TrimSpace(base))
	if err != nil {
		return 0
	}
	return n
}

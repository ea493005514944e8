package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"chess-coach-backend/internal/models"
)

// Persona synthesis. The twelve archetypes and their scorers are a fixed
// table; changing a scorer changes report semantics for every user.

type personaDef struct {
	Name  string
	Score func(v *models.MetricVector) float64
}

// clamp01 keeps a partial score in 0..100.
func clampScore(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 100 {
		return 100
	}
	return x
}

var personaTable = []personaDef{
	{"Tactician", func(v *models.MetricVector) float64 {
		// Finds the shots: high best-move rate, few missed tactics.
		score := v.BestMoveRate * 1.5
		score -= float64(v.MissedTactics) * 2
		score += clampScore(60 - v.MiddlegameCPL)
		return clampScore(score)
	}},
	{"Fortress", func(v *models.MetricVector) float64 {
		// Hard to break down: low blunder rate, low CPL, never collapses.
		score := clampScore(80 - v.BlundersPer100*12)
		score += clampScore(50 - v.OverallCPL)
		if v.Collapses == 0 {
			score += 25
		}
		return clampScore(score / 1.5)
	}},
	{"Grinder", func(v *models.MetricVector) float64 {
		// Wins long endgames: endgame CPL strictly best phase, long games.
		if v.EndgameCPL >= v.OpeningCPL || v.EndgameCPL >= v.MiddlegameCPL {
			return clampScore(v.AvgGameLength - 30)
		}
		score := (v.OpeningCPL - v.EndgameCPL) + (v.MiddlegameCPL - v.EndgameCPL)
		score += (v.AvgGameLength - 35) * 1.5
		return clampScore(score)
	}},
	{"Speedster", func(v *models.MetricVector) float64 {
		// Thrives on fast time controls without falling apart in them.
		score := v.FastGameShare * 80
		score += clampScore(30 - v.TimePressureDelta)
		return clampScore(score)
	}},
	{"Scientist", func(v *models.MetricVector) float64 {
		// Methodical: strong openings, high accuracy, few mistakes.
		score := clampScore(45 - v.OpeningCPL) * 1.2
		score += clampScore(v.Accuracy - 60)
		score -= v.MistakesPer100 * 3
		return clampScore(score)
	}},
	{"Phoenix", func(v *models.MetricVector) float64 {
		// Rises from lost positions; rarely settles for a draw.
		score := float64(v.Comebacks) * 18
		score += clampScore(20 - v.DrawRate)
		return clampScore(score)
	}},
	{"Assassin", func(v *models.MetricVector) float64 {
		// Converts wins ruthlessly: high win rate, no collapses, sharp play.
		score := clampScore(v.WinRate - 40) * 1.4
		score -= float64(v.Collapses) * 10
		score += v.BestMoveRate * 0.5
		return clampScore(score)
	}},
	{"Chameleon", func(v *models.MetricVector) float64 {
		// Even across all three phases: rewards a flat CPL profile.
		spread := maxf(v.OpeningCPL, v.MiddlegameCPL, v.EndgameCPL) -
			minf(v.OpeningCPL, v.MiddlegameCPL, v.EndgameCPL)
		return clampScore(70 - spread*2)
	}},
	{"Berserker", func(v *models.MetricVector) float64 {
		// All-in chess: decisive games, fast formats, damage both ways.
		score := clampScore(30 - v.DrawRate) * 1.2
		score += v.FastGameShare * 40
		score += clampScore(v.BlundersPer100*6 - 10)
		return clampScore(score)
	}},
	{"Professor", func(v *models.MetricVector) float64 {
		// Deep opening knowledge, punishes inaccuracies, slow formats.
		score := clampScore(40 - v.OpeningCPL) * 1.3
		score += clampScore(30 - v.FastGameShare*100)
		score += clampScore(v.Accuracy - 65)
		return clampScore(score)
	}},
	{"Survivor", func(v *models.MetricVector) float64 {
		// Saves bad positions: comebacks plus draws plus time composure.
		score := float64(v.Comebacks) * 10
		score += v.DrawRate * 1.2
		score += clampScore(15 - v.TimePressureDelta)
		return clampScore(score)
	}},
	{"Adventurer", func(v *models.MetricVector) float64 {
		// Chaos-friendly: wide eval swings survived, varied results.
		score := float64(v.Comebacks+v.Collapses) * 8
		score += clampScore(v.BlundersPer100*4 - 5)
		score += clampScore(50 - v.WinRate + 25)
		return clampScore(score / 1.4)
	}},
}

func maxf(xs ...float64) float64 {
	m := xs[0]
	for _, x := range xs[1:] {
		if x > m {
			m = x
		}
	}
	return m
}

func minf(xs ...float64) float64 {
	m := xs[0]
	for _, x := range xs[1:] {
		if x < m {
			m = x
		}
	}
	return m
}

// PersonaService composes the narrative report from aggregator output.
type PersonaService struct {
	aggregator *Aggregator
}

func NewPersonaService(aggregator *Aggregator) *PersonaService {
	return &PersonaService{aggregator: aggregator}
}

// rankedPersona is one scored archetype.
type rankedPersona struct {
	Name  string
	Score float64
}

// scorePersonas evaluates the fixed table and sorts descending. Ties break
// on table order so results are deterministic.
func scorePersonas(v *models.MetricVector) []rankedPersona {
	out := make([]rankedPersona, len(personaTable))
	for i, def := range personaTable {
		out[i] = rankedPersona{Name: def.Name, Score: def.Score(v)}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// Report builds the full persona report for a user.
func (s *PersonaService) Report(ctx context.Context, userID string) (*models.PersonaReport, error) {
	v, err := s.aggregator.MetricVector(ctx, userID)
	if err != nil {
		return nil, err
	}
	weaknesses, err := s.aggregator.Weaknesses(ctx, userID)
	if err != nil {
		return nil, err
	}

	ranked := scorePersonas(v)
	report := &models.PersonaReport{Persona: ranked[0].Name}
	if len(ranked) > 1 {
		second := ranked[1]
		if second.Score > 0.5*ranked[0].Score && second.Score > 5 {
			report.SecondaryPersona = second.Name
		}
	}

	report.SignatureStats = signatureStats(v)
	report.Kryptonite = kryptonite(weaknesses)
	report.OneThingToChange = oneThing(v, weaknesses)
	report.Story = story(report.Persona, v)
	report.PhaseBreakdown = phaseBreakdown(v)
	report.GrowthPath = growthPath(v, weaknesses)
	return report, nil
}

// signatureStats picks 3..6 headline numbers for the report card.
func signatureStats(v *models.MetricVector) []models.SignatureStat {
	stats := []models.SignatureStat{
		{Label: "Win rate", Value: round1(v.WinRate), Unit: "%"},
		{Label: "Average centipawn loss", Value: round1(v.OverallCPL)},
		{Label: "Accuracy", Value: round1(v.Accuracy), Unit: "%"},
	}
	if v.BlundersPer100 > 0 {
		stats = append(stats, models.SignatureStat{Label: "Blunders per 100 moves", Value: round1(v.BlundersPer100)})
	}
	if v.Comebacks > 0 {
		stats = append(stats, models.SignatureStat{Label: "Comeback wins", Value: float64(v.Comebacks)})
	}
	if v.BestMoveRate > 0 {
		stats = append(stats, models.SignatureStat{Label: "Best-move rate", Value: round1(v.BestMoveRate), Unit: "%"})
	}
	return stats
}

func kryptonite(weaknesses []models.Weakness) string {
	if len(weaknesses) == 0 {
		return "No single recurring weakness stands out yet."
	}
	worst := weaknesses[0]
	for _, w := range weaknesses[1:] {
		if w.Severity > worst.Severity {
			worst = w
		}
	}
	return worst.Description
}

func oneThing(v *models.MetricVector, weaknesses []models.Weakness) string {
	switch {
	case v.TopBlunderCount >= 3:
		return fmt.Sprintf("Before every move, check for %s patterns; they account for your most common error.",
			strings.ReplaceAll(v.TopBlunderSubtype, "_", " "))
	case len(weaknesses) > 0:
		return "Focus your next ten games on the weakness above; one theme at a time sticks."
	case v.BlundersPer100 > 2:
		return "Slow down on forcing moves; most of your lost games hinge on a single blunder."
	default:
		return "Keep your routine; your play is trending the right way."
	}
}

// phaseObservation renders one templated sentence per phase.
func phaseObservation(phase models.GamePhase, cpl, overall float64) string {
	name := string(phase)
	switch {
	case overall > 0 && cpl > overall*1.15:
		return fmt.Sprintf("The %s is where games slip: %.0f centipawn loss against your %.0f overall.", name, cpl, overall)
	case overall > 0 && cpl < overall*0.85:
		return fmt.Sprintf("Your %s play is a strength at %.0f centipawn loss.", name, cpl)
	default:
		return fmt.Sprintf("Your %s holds steady around %.0f centipawn loss.", name, cpl)
	}
}

func story(persona string, v *models.MetricVector) string {
	parts := []string{
		fmt.Sprintf("You play like the %s.", persona),
		phaseObservation(models.PhaseOpening, v.OpeningCPL, v.OverallCPL),
		phaseObservation(models.PhaseMiddlegame, v.MiddlegameCPL, v.OverallCPL),
		phaseObservation(models.PhaseEndgame, v.EndgameCPL, v.OverallCPL),
	}
	if v.Comebacks > 0 {
		parts = append(parts, fmt.Sprintf("You have clawed back %d games from lost positions.", v.Comebacks))
	}
	if v.Collapses > 0 {
		parts = append(parts, fmt.Sprintf("%d winning positions got away; conversion is the frontier.", v.Collapses))
	}
	return strings.Join(parts, " ")
}

func phaseBreakdown(v *models.MetricVector) []models.PhaseBreakdown {
	rows := []struct {
		phase models.GamePhase
		cpl   float64
	}{
		{models.PhaseOpening, v.OpeningCPL},
		{models.PhaseMiddlegame, v.MiddlegameCPL},
		{models.PhaseEndgame, v.EndgameCPL},
	}
	out := make([]models.PhaseBreakdown, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.PhaseBreakdown{
			Phase:      row.phase,
			MeanCPL:    round1(row.cpl),
			Commentary: phaseObservation(row.phase, row.cpl, v.OverallCPL),
		})
	}
	return out
}

// growthPath selects 3..5 drills keyed to the top weakness signals.
func growthPath(v *models.MetricVector, weaknesses []models.Weakness) []string {
	var out []string
	add := func(item string) {
		if len(out) < 5 {
			out = append(out, item)
		}
	}

	for _, w := range weaknesses {
		switch w.Kind {
		case "phase":
			add("Drill the weak phase with targeted puzzles from your own games.")
		case "blunder_pattern":
			add(fmt.Sprintf("Train against %s with the extracted puzzle set.", strings.ReplaceAll(v.TopBlunderSubtype, "_", " ")))
		case "converting_advantages":
			add("Practice technique from winning positions; trade down when ahead.")
		case "time_pressure":
			add("Bank time earlier; aim to reach move 30 with two minutes in hand.")
		case "time_control":
			add("Play fewer formats for a month and review every loss in your weakest one.")
		}
	}
	if v.MissedTactics > 5 {
		add("Do a daily tactics set; your games show recurring missed shots.")
	}
	fillers := []string{
		"Review the review queue daily; spaced repetition only works on schedule.",
		"Analyze every loss within a day while the game is fresh.",
		"Pick one opening per color and stick with it for twenty games.",
	}
	for _, f := range fillers {
		if len(out) >= 3 {
			break
		}
		add(f)
	}
	return out
}

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}

package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/notnil/chess"
	"github.com/sirupsen/logrus"

	"chess-coach-backend/internal/models"
	"chess-coach-backend/internal/repository"
	"chess-coach-backend/pkg/uci"
)

// EngineProvider hands out engine clients. The pool implements it; tests
// plug in scripted engines.
type EngineProvider interface {
	WithEngine(ctx context.Context, fn func(EngineClient) error) error
}

const (
	minDepth = 10
	maxDepth = 20

	// Hard wall clock for one game; an engine stuck past its own timeout
	// cannot pin the whole job.
	gameTimeout = 10 * time.Minute

	// Transport failures per ply before the row is written degraded.
	plyRetries = 2
)

// ErrGameParse marks a move list the analyzer could not replay. It fails
// the game, never the job.
var ErrGameParse = errors.New("unparseable game")

// Analyzer runs the full evaluation pipeline over one game: engine evals
// per ply, phase tagging, classification, then one atomic write of the ply
// rows and the summary.
type Analyzer struct {
	engines    EngineProvider
	analyses   *repository.AnalysisRepository
	repertoire *repository.RepertoireRepository
}

func NewAnalyzer(engines EngineProvider, analyses *repository.AnalysisRepository, repertoire *repository.RepertoireRepository) *Analyzer {
	return &Analyzer{engines: engines, analyses: analyses, repertoire: repertoire}
}

// ClampDepth bounds a requested search depth to what the pipeline supports.
func ClampDepth(depth int) int {
	if depth < minDepth {
		return minDepth
	}
	if depth > maxDepth {
		return maxDepth
	}
	return depth
}

// AnalyzeGame analyzes one game at the given depth. When the game already
// has an analysis at >= depth and reanalyze is false, the stored summary is
// returned with skipped = true and no engine work happens.
func (a *Analyzer) AnalyzeGame(ctx context.Context, game *models.Game, depth int, reanalyze bool) (*models.GameAnalysis, bool, error) {
	depth = ClampDepth(depth)

	if !reanalyze {
		exists, err := a.analyses.Exists(ctx, game.ID, depth)
		if err != nil {
			return nil, false, err
		}
		if exists {
			prior, err := a.analyses.GetByGame(ctx, game.ID)
			if err != nil {
				return nil, false, err
			}
			return prior, true, nil
		}
	}

	ctx, cancel := context.WithTimeout(ctx, gameTimeout)
	defer cancel()

	positions, moves, err := replayGame(game.MovesSAN)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrGameParse, err)
	}
	clocks := parseClocks(game.Clocks)

	evals, err := a.evaluatePositions(ctx, positions, game.PlayerColor, depth)
	if err != nil {
		return nil, false, err
	}

	rows := buildEvaluations(game, positions, moves, clocks, evals)
	analysis := summarize(game, rows, depth)

	if err := a.analyses.SaveGameAnalysis(ctx, analysis, rows); err != nil {
		return nil, false, err
	}
	if analysis.OverallCPL.Valid {
		if err := a.repertoire.Record(ctx, game.UserID, game, analysis.OverallCPL.Float64); err != nil {
			logrus.Warnf("Repertoire update for game %d: %v", game.ID, err)
		}
	}
	return analysis, false, nil
}

// replayGame rebuilds the position sequence from the stored SAN move list.
// positions has one more element than moves; positions[i] is the position
// after i plies.
func replayGame(movesSAN string) ([]*chess.Position, []*chess.Move, error) {
	g := chess.NewGame()
	for _, san := range strings.Fields(movesSAN) {
		if err := g.MoveStr(san); err != nil {
			return nil, nil, fmt.Errorf("move %q: %w", san, err)
		}
	}
	if len(g.Moves()) == 0 {
		return nil, nil, errors.New("empty move list")
	}
	return g.Positions(), g.Moves(), nil
}

func parseClocks(raw string) []float64 {
	fields := strings.Fields(raw)
	out := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil
		}
		out = append(out, v)
	}
	return out
}

// evaluatePositions queries the engine for every post-move position.
// evals[i] holds the analysis of positions[i]; evals[0] stays nil because
// the starting position is never scored (prev eval for ply 1 is zero).
// A nil entry past index 0 means the ply degraded after retries.
func (a *Analyzer) evaluatePositions(ctx context.Context, positions []*chess.Position, player models.Color, depth int) ([]*uci.AnalysisResult, error) {
	evals := make([]*uci.AnalysisResult, len(positions))
	for i := 1; i < len(positions); i++ {
		fen := positions[i].String()
		multiPV := 1
		if colorOf(positions[i].Turn()) == player {
			// The position before the player's next move; two lines are
			// needed for the motif attribution and puzzle gap checks.
			multiPV = 2
		}

		var result *uci.AnalysisResult
		var lastErr error
		for attempt := 0; attempt <= plyRetries; attempt++ {
			lastErr = a.engines.WithEngine(ctx, func(eng EngineClient) error {
				r, err := eng.Analyze(fen, depth, multiPV)
				if err != nil {
					return err
				}
				result = r
				return nil
			})
			if lastErr == nil {
				break
			}
			if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
				return nil, lastErr
			}
		}
		if lastErr != nil {
			logrus.Warnf("Ply %d degraded after %d attempts: %v", i, plyRetries+1, lastErr)
			continue
		}
		evals[i] = result
	}
	return evals, nil
}

func colorOf(c chess.Color) models.Color {
	if c == chess.White {
		return models.ColorWhite
	}
	return models.ColorBlack
}

var pieceLetters = map[chess.PieceType]string{
	chess.Pawn:   "P",
	chess.Knight: "N",
	chess.Bishop: "B",
	chess.Rook:   "R",
	chess.Queen:  "Q",
	chess.King:   "K",
}

// buildEvaluations turns raw engine results into MoveEvaluation rows,
// running the phase detector and classifier per ply.
func buildEvaluations(game *models.Game, positions []*chess.Position, moves []*chess.Move, clocks []float64, evals []*uci.AnalysisResult) []models.MoveEvaluation {
	rows := make([]models.MoveEvaluation, 0, len(moves))

	prev := uci.Score{}
	whiteCastled, blackCastled := false, false
	uciNotation := chess.UCINotation{}
	sanNotation := chess.AlgebraicNotation{}

	for i, move := range moves {
		ply := i + 1
		before := positions[i]
		after := positions[i+1]
		mover := before.Turn()
		whiteMoved := mover == chess.White

		if isCastle(move) {
			if whiteMoved {
				whiteCastled = true
			} else {
				blackCastled = true
			}
		}
		phase := DetectPhase(after, ply, whiteCastled, blackCastled)

		row := models.MoveEvaluation{
			GameID:    game.ID,
			Ply:       ply,
			Color:     colorOf(mover),
			SAN:       sanNotation.Encode(before, move),
			UCI:       uciNotation.Encode(before, move),
			Piece:     pieceLetters[before.Board().Piece(move.S1()).Type()],
			Phase:     phase,
			FENBefore: before.String(),
		}
		if i < len(clocks) {
			row.ClockSeconds = sql.NullFloat64{Float64: clocks[i], Valid: true}
		}

		result := evals[ply]
		if result == nil {
			// Engine never answered for this position; record the ply as
			// degraded and keep the previous eval as the running score.
			row.CPLoss = 0
			row.Quality = models.QualityGood
			row.Degraded = true
			row.EvalBefore, row.MateBefore = prev.CP, prev.IsMate
			row.EvalAfter, row.MateAfter = prev.CP, prev.IsMate
			wp := WinProbability(prev)
			row.WinProbBefore, row.WinProbAfter = wp, wp
			row.Accuracy = MoveAccuracy(wp, wp, whiteMoved)
			rows = append(rows, row)
			continue
		}

		curr := uci.Score{}
		if best, ok := result.Best(); ok {
			curr = best.Score
		}

		onlyMove := len(before.ValidMoves()) == 1
		cpLoss := CentipawnLoss(prev, curr, whiteMoved)
		quality := QualityFor(cpLoss, onlyMove)
		wpBefore := WinProbability(prev)
		wpAfter := WinProbability(curr)

		row.CPLoss = cpLoss
		row.WeightedCPLoss = float64(cpLoss) * PhaseWeight[phase]
		row.Quality = quality
		row.EvalBefore, row.MateBefore = prev.CP, prev.IsMate
		row.EvalAfter, row.MateAfter = curr.CP, curr.IsMate
		row.WinProbBefore, row.WinProbAfter = wpBefore, wpAfter
		row.Accuracy = MoveAccuracy(wpBefore, wpAfter, whiteMoved)

		// The analysis of the pre-move position (made on the previous
		// iteration) carries the engine's preferred reply to it, which is
		// the best move for this ply.
		var bestMove *chess.Move
		var bestScore uci.Score
		if i >= 1 && evals[i] != nil {
			if prevBest, ok := evals[i].Best(); ok {
				bestScore = prevBest.Score
			}
			if evals[i].BestMove != "" {
				if m, err := moveFromUCI(before, evals[i].BestMove); err == nil {
					bestMove = m
					row.BestMoveUCI = evals[i].BestMove
					row.BestMoveSAN = sanNotation.Encode(before, m)
				}
			}
		}

		if quality == models.QualityMistake || quality == models.QualityBlunder {
			subtype := ClassifySubtype(SubtypeInput{
				Position:   before,
				Played:     move,
				Best:       bestMove,
				BestScore:  bestScore,
				AfterScore: curr,
				Phase:      phase,
			})
			row.BlunderSubtype = sql.NullString{String: string(subtype), Valid: true}
		}

		rows = append(rows, row)
		prev = curr
	}
	return rows
}

// summarize aggregates over the player's plies only.
func summarize(game *models.Game, rows []models.MoveEvaluation, depth int) *models.GameAnalysis {
	analysis := &models.GameAnalysis{
		GameID:     game.ID,
		UserID:     game.UserID,
		Depth:      depth,
		AnalyzedAt: time.Now().UTC(),
	}

	var (
		lossSum, accSum float64
		count           int
		phaseSum        = map[models.GamePhase]float64{}
		phaseCount      = map[models.GamePhase]int{}
	)
	for _, row := range rows {
		if row.Color != game.PlayerColor {
			continue
		}
		count++
		lossSum += float64(row.CPLoss)
		accSum += row.Accuracy
		phaseSum[row.Phase] += float64(row.CPLoss)
		phaseCount[row.Phase]++

		switch row.Quality {
		case models.QualityBest:
			analysis.BestCount++
		case models.QualityExcellent:
			analysis.ExcellentCount++
		case models.QualityGood:
			analysis.GoodCount++
		case models.QualityInaccuracy:
			analysis.InaccuracyCount++
		case models.QualityMistake:
			analysis.MistakeCount++
		case models.QualityBlunder:
			analysis.BlunderCount++
		}
	}

	if count > 0 {
		analysis.OverallCPL = sql.NullFloat64{Float64: lossSum / float64(count), Valid: true}
		analysis.Accuracy = sql.NullFloat64{Float64: accSum / float64(count), Valid: true}
	}
	phaseAvg := func(p models.GamePhase) sql.NullFloat64 {
		if phaseCount[p] == 0 {
			return sql.NullFloat64{}
		}
		return sql.NullFloat64{Float64: phaseSum[p] / float64(phaseCount[p]), Valid: true}
	}
	analysis.OpeningCPL = phaseAvg(models.PhaseOpening)
	analysis.MiddlegameCPL = phaseAvg(models.PhaseMiddlegame)
	analysis.EndgameCPL = phaseAvg(models.PhaseEndgame)
	return analysis
}

package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/notnil/chess"
	"github.com/sirupsen/logrus"

	"chess-coach-backend/internal/models"
	"chess-coach-backend/internal/repository"
	"chess-coach-backend/pkg/uci"
)

const (
	// Positions already decided by this much are not puzzle material.
	puzzleMaxEvalBefore = 600
	// The best move must beat the runner-up by this much ("one good move").
	puzzleMinGap = 300
	// Solution lines stop after this many plies.
	solutionMaxPlies = 6
)

// Theme tags beyond the structural motifs.
const (
	ThemeMateInOne        = "mate_in_1"
	ThemeCheckmatePattern = "checkmate_pattern"
	ThemeWinningCapture   = "winning_capture"
	ThemeKingActivity     = "king_activity"
)

var pieceNames = map[chess.PieceType]string{
	chess.Pawn:   "pawn",
	chess.Knight: "knight",
	chess.Bishop: "bishop",
	chess.Rook:   "rook",
	chess.Queen:  "queen",
	chess.King:   "king",
}

// PuzzleKey is the content address of a puzzle: the first 128 bits of a
// SHA-256 over the pre-mistake FEN and the move actually played.
func PuzzleKey(fen, playedSAN string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(fen) + "\n" + strings.TrimSpace(playedSAN)))
	return hex.EncodeToString(sum[:16])
}

// PuzzleService extracts puzzles from analyzed games and records review
// attempts with spaced-repetition scheduling.
type PuzzleService struct {
	puzzles  *repository.PuzzleRepository
	analyses *repository.AnalysisRepository
	engines  EngineProvider
	depth    int
}

func NewPuzzleService(puzzles *repository.PuzzleRepository, analyses *repository.AnalysisRepository, engines EngineProvider, depth int) *PuzzleService {
	return &PuzzleService{puzzles: puzzles, analyses: analyses, engines: engines, depth: ClampDepth(depth)}
}

// ExtractFromGame walks a game's player-side mistakes and blunders and
// stores every one that qualifies as a puzzle. Returns how many new
// puzzles were inserted; duplicates count as zero.
func (s *PuzzleService) ExtractFromGame(ctx context.Context, userID string, gameID int64) (int, error) {
	rows, err := s.analyses.MistakeRows(ctx, userID, gameID)
	if err != nil {
		return 0, err
	}

	inserted := 0
	for i := range rows {
		puzzle, ok, err := s.buildPuzzle(ctx, &rows[i])
		if err != nil {
			return inserted, err
		}
		if !ok {
			continue
		}
		_, fresh, err := s.puzzles.Insert(ctx, puzzle)
		if err != nil {
			return inserted, err
		}
		if fresh {
			inserted++
		}
	}
	if inserted > 0 {
		logrus.Infof("Extracted %d puzzles from game %d", inserted, gameID)
	}
	return inserted, nil
}

// buildPuzzle applies the candidate filter to one mistake row, and on
// acceptance computes the solution line and theme set.
func (s *PuzzleService) buildPuzzle(ctx context.Context, row *models.MoveEvaluation) (*models.Puzzle, bool, error) {
	if row.Degraded || row.MateBefore {
		return nil, false, nil
	}
	if row.EvalBefore >= puzzleMaxEvalBefore || row.EvalBefore <= -puzzleMaxEvalBefore {
		return nil, false, nil
	}
	if row.BestMoveUCI == "" || row.BestMoveUCI == row.UCI {
		return nil, false, nil
	}

	game := gameFromFEN(row.FENBefore)
	if game == nil {
		return nil, false, nil
	}
	pos := game.Position()
	bestMove, err := moveFromUCI(pos, row.BestMoveUCI)
	if err != nil {
		return nil, false, nil
	}

	// One-good-move constraint, checked against a fresh 2-line analysis of
	// the pre-mistake position.
	result, err := s.analyze(ctx, row.FENBefore, 2)
	if err != nil {
		return nil, false, err
	}
	if !s.oneGoodMove(result, pos, row.Color == models.ColorWhite) {
		return nil, false, nil
	}

	solution, mated, err := s.solutionLine(ctx, row.FENBefore)
	if err != nil {
		return nil, false, err
	}
	if len(solution) == 0 {
		return nil, false, nil
	}

	themes := s.themes(pos, bestMove, row.Phase, solution, mated)
	if !hasRealTactic(themes) {
		return nil, false, nil
	}

	puzzleType := models.PuzzleMistake
	if row.Quality == models.QualityBlunder {
		puzzleType = models.PuzzleBlunder
	}
	return &models.Puzzle{
		Key:         PuzzleKey(row.FENBefore, row.SAN),
		FEN:         row.FENBefore,
		SideToMove:  row.Color,
		BestMoveSAN: row.BestMoveSAN,
		BestMoveUCI: row.BestMoveUCI,
		PlayedSAN:   row.SAN,
		EvalLoss:    row.CPLoss,
		Phase:       row.Phase,
		Type:        puzzleType,
		Solution:    strings.Join(solution, " "),
		Themes:      strings.Join(themes, ","),
	}, true, nil
}

// oneGoodMove checks that the top line beats the runner-up by the gap, or
// that the position is a forced mate. A position with a single legal move
// is rejected outright unless it mates.
func (s *PuzzleService) oneGoodMove(result *uci.AnalysisResult, pos *chess.Position, whiteToMove bool) bool {
	best, ok := result.Best()
	if !ok {
		return false
	}
	moverMates := best.Score.IsMate && (best.Score.CP > 0) == whiteToMove

	if len(pos.ValidMoves()) == 1 {
		return moverMates
	}
	if len(result.Variations) < 2 {
		return moverMates
	}
	second := result.Variations[1].Score
	gap := best.Score.CP - second.CP
	if !whiteToMove {
		gap = -gap
	}
	return gap >= puzzleMinGap
}

// solutionLine plays out up to six plies of engine-best moves from the
// pre-mistake position. mated reports whether the line ends in checkmate.
func (s *PuzzleService) solutionLine(ctx context.Context, fen string) ([]string, bool, error) {
	game := gameFromFEN(fen)
	if game == nil {
		return nil, false, nil
	}

	var line []string
	for len(line) < solutionMaxPlies {
		pos := game.Position()
		if pos.Status() != chess.NoMethod {
			break
		}
		result, err := s.analyze(ctx, pos.String(), 1)
		if err != nil {
			return nil, false, err
		}
		if result.BestMove == "" {
			break
		}
		move, err := moveFromUCI(pos, result.BestMove)
		if err != nil {
			break
		}
		if err := game.Move(move); err != nil {
			break
		}
		line = append(line, result.BestMove)
	}
	return line, game.Position().Status() == chess.Checkmate, nil
}

// themes builds the tag set: structural motifs on the best move and on the
// player-side solution plies, the special tactic tags, phase and piece
// names. Order is stable, duplicates removed.
func (s *PuzzleService) themes(pos *chess.Position, bestMove *chess.Move, phase models.GamePhase, solution []string, mated bool) []string {
	seen := map[string]bool{}
	var out []string
	add := func(tag string) {
		if tag != "" && !seen[tag] {
			seen[tag] = true
			out = append(out, tag)
		}
	}

	for _, motif := range Motifs(pos, bestMove) {
		add(motif)
	}

	// Player-side plies along the solution line are even-indexed.
	lineGame := gameFromFEN(pos.String())
	if lineGame != nil {
		for i, uciMove := range solution {
			p := lineGame.Position()
			move, err := moveFromUCI(p, uciMove)
			if err != nil {
				break
			}
			if i%2 == 0 && i > 0 {
				for _, motif := range Motifs(p, move) {
					add(motif)
				}
			}
			if lineGame.Move(move) != nil {
				break
			}
		}
	}

	if after := pos.Update(bestMove); after != nil && after.Status() == chess.Checkmate {
		add(ThemeMateInOne)
	}
	if mated {
		add(ThemeCheckmatePattern)
	}
	if bestMove.HasTag(chess.Capture) {
		if victim := pos.Board().Piece(bestMove.S2()); victim != chess.NoPiece {
			if pieceValue(victim.Type()) >= 3 {
				add(ThemeWinningCapture)
			}
			add(pieceNames[victim.Type()])
		}
	}
	mover := pos.Board().Piece(bestMove.S1())
	if mover != chess.NoPiece {
		if phase == models.PhaseEndgame && mover.Type() == chess.King {
			add(ThemeKingActivity)
		}
		add(pieceNames[mover.Type()])
	}
	add(string(phase))
	return out
}

// hasRealTactic enforces that at least one tag names an actual tactic;
// phase and piece tags alone do not make a puzzle.
func hasRealTactic(themes []string) bool {
	real := map[string]bool{
		MotifFork:             true,
		MotifPin:              true,
		MotifSkewer:           true,
		MotifDiscovery:        true,
		MotifBackRank:         true,
		MotifDeflection:       true,
		ThemeMateInOne:        true,
		ThemeCheckmatePattern: true,
		ThemeWinningCapture:   true,
		ThemeKingActivity:     true,
	}
	for _, t := range themes {
		if real[t] {
			return true
		}
	}
	return false
}

func (s *PuzzleService) analyze(ctx context.Context, fen string, multiPV int) (*uci.AnalysisResult, error) {
	var result *uci.AnalysisResult
	err := s.engines.WithEngine(ctx, func(eng EngineClient) error {
		r, err := eng.Analyze(fen, s.depth, multiPV)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	return result, err
}

func gameFromFEN(fen string) *chess.Game {
	opt, err := chess.FEN(fen)
	if err != nil {
		return nil
	}
	return chess.NewGame(opt)
}

// RecordAttempt appends an attempt and schedules the next review from the
// user's prior state on the puzzle.
func (s *PuzzleService) RecordAttempt(ctx context.Context, userID string, puzzleID int64, correct bool, timeTaken float64) (*models.PuzzleAttempt, error) {
	if _, err := s.puzzles.Get(ctx, puzzleID); err != nil {
		return nil, err
	}

	priorRep, priorEase := 0, srsDefaultEase
	prior, err := s.puzzles.LatestAttempt(ctx, userID, puzzleID)
	switch {
	case err == nil:
		priorRep, priorEase = prior.Repetition, prior.Easiness
	case errors.Is(err, repository.ErrNotFound):
	default:
		return nil, err
	}

	now := time.Now().UTC()
	rep, ease, next := Schedule(priorRep, priorEase, correct, now)
	attempt := &models.PuzzleAttempt{
		UserID:      userID,
		PuzzleID:    puzzleID,
		Correct:     correct,
		TimeTaken:   timeTaken,
		AttemptedAt: now,
		NextReview:  next,
		Repetition:  rep,
		Easiness:    ease,
	}
	if err := s.puzzles.RecordAttempt(ctx, attempt); err != nil {
		return nil, err
	}
	return attempt, nil
}

// List proxies puzzle listing for the handlers.
func (s *PuzzleService) List(ctx context.Context, f repository.PuzzleFilter) ([]models.Puzzle, error) {
	return s.puzzles.List(ctx, f)
}

// ReviewQueue returns the user's due puzzles.
func (s *PuzzleService) ReviewQueue(ctx context.Context, userID string, limit int) ([]models.Puzzle, error) {
	return s.puzzles.ReviewQueue(ctx, userID, time.Now().UTC(), limit)
}

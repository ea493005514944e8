package services

import (
	"context"
	"fmt"

	"github.com/notnil/chess"

	"chess-coach-backend/pkg/uci"
)

// PositionEval is a one-off engine evaluation of an arbitrary position.
type PositionEval struct {
	FEN         string         `json:"fen"`
	Depth       int            `json:"depth"`
	BestMoveUCI string         `json:"bestMoveUci"`
	BestMoveSAN string         `json:"bestMoveSan"`
	Lines       []PositionLine `json:"lines"`
}

// PositionLine is one principal variation, white-perspective.
type PositionLine struct {
	EvalCP int      `json:"evalCp"`
	Mate   int      `json:"mate,omitempty"`
	IsMate bool     `json:"isMate"`
	Depth  int      `json:"depth"`
	PV     []string `json:"pv"`
}

// PositionService evaluates ad-hoc FENs against the shared engine pool.
type PositionService struct {
	engines EngineProvider
}

func NewPositionService(engines EngineProvider) *PositionService {
	return &PositionService{engines: engines}
}

// Analyze validates the FEN, runs the engine, and renders the best move in
// SAN alongside the raw lines.
func (s *PositionService) Analyze(ctx context.Context, fen string, depth, multiPV int) (*PositionEval, error) {
	game := gameFromFEN(fen)
	if game == nil {
		return nil, fmt.Errorf("invalid fen")
	}
	depth = ClampDepth(depth)
	if multiPV < 1 {
		multiPV = 1
	}
	if multiPV > 5 {
		multiPV = 5
	}

	var result *uci.AnalysisResult
	err := s.engines.WithEngine(ctx, func(eng EngineClient) error {
		r, err := eng.Analyze(fen, depth, multiPV)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	eval := &PositionEval{FEN: fen, Depth: depth, BestMoveUCI: result.BestMove}
	if result.BestMove != "" {
		if m, err := moveFromUCI(game.Position(), result.BestMove); err == nil {
			eval.BestMoveSAN = chess.AlgebraicNotation{}.Encode(game.Position(), m)
		}
	}
	for _, v := range result.Variations {
		eval.Lines = append(eval.Lines, PositionLine{
			EvalCP: v.Score.CP,
			Mate:   v.Score.Mate,
			IsMate: v.Score.IsMate,
			Depth:  v.Depth,
			PV:     v.PV,
		})
	}
	return eval, nil
}

package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chess-coach-backend/pkg/uci"
)

func TestPositionAnalyze(t *testing.T) {
	eng := &fakeEngine{results: []*uci.AnalysisResult{
		{
			BestMove: "g1f3",
			Variations: []uci.Variation{
				{Score: uci.Score{CP: 35}, Depth: 16, PV: []string{"g1f3", "b8c6"}},
				{Score: uci.Score{CP: 28}, Depth: 16, PV: []string{"d2d4"}},
			},
		},
	}}
	svc := NewPositionService(fakeProvider{eng: eng})

	fen := "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"
	eval, err := svc.Analyze(context.Background(), fen, 16, 2)
	require.NoError(t, err)

	assert.Equal(t, fen, eval.FEN)
	assert.Equal(t, "g1f3", eval.BestMoveUCI)
	assert.Equal(t, "Nf3", eval.BestMoveSAN)
	require.Len(t, eval.Lines, 2)
	assert.Equal(t, 35, eval.Lines[0].EvalCP)
	assert.Equal(t, []string{"g1f3", "b8c6"}, eval.Lines[0].PV)

	require.Len(t, eng.calls, 1)
	assert.Equal(t, 2, eng.calls[0].MultiPV)
	assert.Equal(t, 16, eng.calls[0].Depth)
}

func TestPositionAnalyzeClampsInputs(t *testing.T) {
	eng := &fakeEngine{results: []*uci.AnalysisResult{scored(0, "e2e4")}}
	svc := NewPositionService(fakeProvider{eng: eng})

	_, err := svc.Analyze(context.Background(), "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1", 99, 50)
	require.NoError(t, err)
	assert.Equal(t, maxDepth, eng.calls[0].Depth)
	assert.Equal(t, 5, eng.calls[0].MultiPV)
}

func TestPositionAnalyzeRejectsBadFEN(t *testing.T) {
	svc := NewPositionService(fakeProvider{eng: &fakeEngine{}})
	_, err := svc.Analyze(context.Background(), "not a fen", 14, 1)
	assert.Error(t, err)
}

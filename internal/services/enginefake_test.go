package services

import (
	"context"
	"sync"

	"chess-coach-backend/pkg/uci"
)

// fakeEngine is a scripted EngineClient. Results are served in call order;
// a non-nil err makes every call fail. A non-nil unblock channel makes
// Analyze hang until Stop, like a real search waiting for bestmove.
type fakeEngine struct {
	mu      sync.Mutex
	results []*uci.AnalysisResult
	err     error
	broken  bool
	closed  bool
	stopped bool
	unblock chan struct{}
	calls   []fakeCall
}

type fakeCall struct {
	FEN     string
	Depth   int
	MultiPV int
}

func (f *fakeEngine) Analyze(fen string, depth, multiPV int) (*uci.AnalysisResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, fakeCall{FEN: fen, Depth: depth, MultiPV: multiPV})
	wait := f.unblock
	f.mu.Unlock()
	if wait != nil {
		<-wait
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if len(f.results) == 0 {
		return &uci.AnalysisResult{}, nil
	}
	r := f.results[0]
	f.results = f.results[1:]
	return r, nil
}

func (f *fakeEngine) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
	if f.unblock != nil {
		close(f.unblock)
		f.unblock = nil
	}
}

func (f *fakeEngine) wasStopped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopped
}

func (f *fakeEngine) Broken() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.broken
}

func (f *fakeEngine) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeEngine) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// fakeProvider hands the same engine to every caller.
type fakeProvider struct {
	eng EngineClient
}

func (p fakeProvider) WithEngine(_ context.Context, fn func(EngineClient) error) error {
	return fn(p.eng)
}

// scored builds a single-line analysis result.
func scored(cp int, bestMove string) *uci.AnalysisResult {
	return &uci.AnalysisResult{
		BestMove: bestMove,
		Variations: []uci.Variation{
			{Score: uci.Score{CP: cp}, Depth: 14, PV: []string{bestMove}},
		},
	}
}

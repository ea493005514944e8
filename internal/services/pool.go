package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"chess-coach-backend/pkg/uci"
)

// EngineClient is the slice of the driver the analyzer needs. The pool
// hands these out; tests substitute scripted fakes.
type EngineClient interface {
	Analyze(fen string, depth, multiPV int) (*uci.AnalysisResult, error)
	Stop()
	Broken() bool
	Close() error
}

// EngineFactory builds one engine subprocess.
type EngineFactory func() (EngineClient, error)

// StockfishFactory launches the configured binary.
func StockfishFactory(binaryPath string, opts uci.Options) EngineFactory {
	return func() (EngineClient, error) {
		return uci.NewEngine(binaryPath, opts)
	}
}

// EnginePool owns a fixed number of engine subprocesses. Callers borrow one
// at a time through WithEngine; a driver that comes back broken is closed
// and replaced before the slot is reused, so the pool size is an invariant.
type EnginePool struct {
	factory EngineFactory
	slots   chan EngineClient
	size    int

	closeOnce sync.Once
	closed    chan struct{}
}

// NewEnginePool spins up size engines. If any fails to start, the ones
// already started are torn down and the error is returned.
func NewEnginePool(size int, factory EngineFactory) (*EnginePool, error) {
	if size < 1 {
		size = 1
	}
	p := &EnginePool{
		factory: factory,
		slots:   make(chan EngineClient, size),
		size:    size,
		closed:  make(chan struct{}),
	}
	for i := 0; i < size; i++ {
		eng, err := factory()
		if err != nil {
			p.teardown()
			return nil, fmt.Errorf("start engine %d/%d: %w", i+1, size, err)
		}
		p.slots <- eng
	}
	logrus.Infof("Engine pool ready with %d engines", size)
	return p, nil
}

// WithEngine borrows an engine, runs fn, and returns the slot. Waiting for
// a slot respects ctx; if ctx is cancelled while fn holds the engine, the
// in-flight search is told to stop and ctx.Err() is surfaced. A broken
// driver is replaced transparently; fn's error passes through untouched.
func (p *EnginePool) WithEngine(ctx context.Context, fn func(EngineClient) error) error {
	var eng EngineClient
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.closed:
		return ErrPoolClosed
	case eng = <-p.slots:
	}

	fnDone := make(chan error, 1)
	go func() { fnDone <- fn(eng) }()

	var err error
	select {
	case err = <-fnDone:
	case <-ctx.Done():
		// Ask the engine to cut the search short so fn unblocks; the slot
		// is not returned until it does.
		eng.Stop()
		<-fnDone
		err = ctx.Err()
	}

	if eng.Broken() {
		logrus.Warn("Replacing broken engine subprocess")
		eng.Close()
		fresh, ferr := p.factory()
		if ferr != nil {
			// Slot stays empty until the next borrow finds it; refusing to
			// block here keeps shutdown and callers responsive.
			logrus.Errorf("Engine restart failed: %v", ferr)
			go p.retryReplace()
			return err
		}
		eng = fresh
	}
	select {
	case <-p.closed:
		eng.Close()
	case p.slots <- eng:
	}
	return err
}

// retryReplace attempts one more restart so a transient spawn failure does
// not permanently shrink the pool.
func (p *EnginePool) retryReplace() {
	fresh, err := p.factory()
	if err != nil {
		logrus.Errorf("Engine restart retry failed, pool running short: %v", err)
		return
	}
	select {
	case p.slots <- fresh:
	case <-p.closed:
		fresh.Close()
	}
}

// Size is the configured number of engine slots.
func (p *EnginePool) Size() int { return p.size }

// Close shuts down every engine. In-flight borrows finish first; new
// borrows fail with ErrPoolClosed.
func (p *EnginePool) Close() {
	p.closeOnce.Do(func() {
		close(p.closed)
		p.teardown()
	})
}

func (p *EnginePool) teardown() {
	for {
		select {
		case eng := <-p.slots:
			if err := eng.Close(); err != nil {
				logrus.Warnf("Engine close: %v", err)
			}
		default:
			return
		}
	}
}

// ErrPoolClosed is returned by WithEngine after Close.
var ErrPoolClosed = fmt.Errorf("engine pool closed")

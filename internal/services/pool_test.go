package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolServesAndReturns(t *testing.T) {
	eng := &fakeEngine{}
	pool, err := NewEnginePool(1, func() (EngineClient, error) { return eng, nil })
	require.NoError(t, err)
	defer pool.Close()

	for i := 0; i < 3; i++ {
		err := pool.WithEngine(context.Background(), func(e EngineClient) error {
			_, aerr := e.Analyze("fen", 14, 1)
			return aerr
		})
		require.NoError(t, err)
	}
	assert.Equal(t, 3, eng.callCount())
}

func TestPoolReplacesBrokenEngine(t *testing.T) {
	var mu sync.Mutex
	built := 0
	first := &fakeEngine{broken: true}
	second := &fakeEngine{}

	pool, err := NewEnginePool(1, func() (EngineClient, error) {
		mu.Lock()
		defer mu.Unlock()
		built++
		if built == 1 {
			return first, nil
		}
		return second, nil
	})
	require.NoError(t, err)
	defer pool.Close()

	wantErr := errors.New("engine died")
	err = pool.WithEngine(context.Background(), func(e EngineClient) error {
		return wantErr
	})
	assert.ErrorIs(t, err, wantErr)

	// The broken engine was closed and the next borrow gets the fresh one.
	assert.True(t, first.closed)
	err = pool.WithEngine(context.Background(), func(e EngineClient) error {
		assert.Same(t, second, e)
		return nil
	})
	require.NoError(t, err)
}

func TestPoolRespectsContextWhileWaiting(t *testing.T) {
	eng := &fakeEngine{}
	pool, err := NewEnginePool(1, func() (EngineClient, error) { return eng, nil })
	require.NoError(t, err)
	defer pool.Close()

	hold := make(chan struct{})
	release := make(chan struct{})
	go pool.WithEngine(context.Background(), func(EngineClient) error {
		close(hold)
		<-release
		return nil
	})
	<-hold

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = pool.WithEngine(ctx, func(EngineClient) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	close(release)
}

func TestPoolStopsEngineOnCancelWhileHolding(t *testing.T) {
	eng := &fakeEngine{unblock: make(chan struct{})}
	pool, err := NewEnginePool(1, func() (EngineClient, error) { return eng, nil })
	require.NoError(t, err)
	defer pool.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err = pool.WithEngine(ctx, func(e EngineClient) error {
		_, aerr := e.Analyze("fen", 20, 1)
		return aerr
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, eng.wasStopped(), "cancellation must stop the in-flight search")
	assert.Less(t, time.Since(start), time.Second)

	// The slot came back; the pool is still usable.
	require.NoError(t, pool.WithEngine(context.Background(), func(EngineClient) error { return nil }))
}

func TestPoolCloseRejectsBorrows(t *testing.T) {
	pool, err := NewEnginePool(1, func() (EngineClient, error) { return &fakeEngine{}, nil })
	require.NoError(t, err)

	pool.Close()
	err = pool.WithEngine(context.Background(), func(EngineClient) error { return nil })
	assert.ErrorIs(t, err, ErrPoolClosed)
}

package deferred

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/chatgateway-backend/internal/platform/logger"
)

func TestRunnerRunsAndDrains(t *testing.T) {
	r := New(logger.Nop(), 2, time.Second)

	var done atomic.Int32
	for i := 0; i < 10; i++ {
		require.NoError(t, r.Submit("count", func(ctx context.Context) error {
			done.Add(1)
			return nil
		}))
	}
	require.NoError(t, r.Drain(context.Background()))
	assert.EqualValues(t, 10, done.Load())

	assert.ErrorIs(t, r.Submit("late", func(context.Context) error { return nil }), ErrClosed)
}

func TestRunnerBoundsConcurrency(t *testing.T) {
	r := New(logger.Nop(), 2, time.Second)

	var (
		running atomic.Int32
		peak    atomic.Int32
	)
	for i := 0; i < 8; i++ {
		require.NoError(t, r.Submit("busy", func(ctx context.Context) error {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			running.Add(-1)
			return nil
		}))
	}
	require.NoError(t, r.Drain(context.Background()))
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestRunnerSurvivesPanicsAndErrors(t *testing.T) {
	r := New(logger.Nop(), 1, time.Second)

	var after atomic.Bool
	require.NoError(t, r.Submit("panics", func(context.Context) error { panic("boom") }))
	require.NoError(t, r.Submit("fails", func(context.Context) error { return errors.New("nope") }))
	require.NoError(t, r.Submit("after", func(context.Context) error {
		after.Store(true)
		return nil
	}))
	require.NoError(t, r.Drain(context.Background()))
	assert.True(t, after.Load())
}

func TestRunnerTaskTimeout(t *testing.T) {
	r := New(logger.Nop(), 1, 20*time.Millisecond)

	var sawDeadline atomic.Bool
	require.NoError(t, r.Submit("slow", func(ctx context.Context) error {
		<-ctx.Done()
		sawDeadline.Store(errors.Is(ctx.Err(), context.DeadlineExceeded))
		return ctx.Err()
	}))
	require.NoError(t, r.Drain(context.Background()))
	assert.True(t, sawDeadline.Load())
}

func TestDrainHonoursContext(t *testing.T) {
	r := New(logger.Nop(), 1, time.Minute)

	release := make(chan struct{})
	require.NoError(t, r.Submit("stuck", func(ctx context.Context) error {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, r.Drain(ctx), context.DeadlineExceeded)
	close(release)
}

package scheduler_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solstice-games/syncstep/pkg/scheduler"
)

func TestNewRejectsBadOptions(t *testing.T) {
	_, err := scheduler.New(scheduler.Options{Interval: 0, Tick: func(context.Context, time.Duration, uint64) error { return nil }})
	assert.Error(t, err)

	_, err = scheduler.New(scheduler.Options{Interval: time.Millisecond})
	assert.Error(t, err)
}

func TestStartRunsTicksUntilCanceled(t *testing.T) {
	var ticks atomic.Int64

	s, err := scheduler.New(scheduler.Options{
		Interval: 5 * time.Millisecond,
		Tick: func(ctx context.Context, dt time.Duration, step uint64) error {
			ticks.Add(1)
			return nil
		},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	time.Sleep(60 * time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Greater(t, ticks.Load(), int64(3))
}

func TestDelayTickTriggersSlowLoopAfterThreshold(t *testing.T) {
	var slowLoopFired atomic.Bool

	s, err := scheduler.New(scheduler.Options{
		Interval: time.Millisecond,
		Tick: func(ctx context.Context, dt time.Duration, step uint64) error {
			return nil
		},
		OnSlowLoop: func(delayCounter int) {
			slowLoopFired.Store(true)
		},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = s.Start(ctx) }()

	// Keep requesting extra delay on every tick so delayCounter climbs
	// past the slow-loop threshold.
	for i := 0; i < 20; i++ {
		s.DelayTick(time.Millisecond)
		time.Sleep(2 * time.Millisecond)
	}
	cancel()

	assert.True(t, slowLoopFired.Load())
}

func TestDelayThenHurryTickKeepsLoopTicking(t *testing.T) {
	s, err := scheduler.New(scheduler.Options{
		Interval: time.Millisecond,
		Tick: func(ctx context.Context, dt time.Duration, step uint64) error {
			return nil
		},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = s.Start(ctx) }()
	defer cancel()

	s.DelayTick(5 * time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	s.HurryTick(5 * time.Millisecond)
	time.Sleep(10 * time.Millisecond)

	assert.Greater(t, s.StepCount(), uint64(0))
}

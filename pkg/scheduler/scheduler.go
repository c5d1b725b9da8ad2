// Package scheduler drives the fixed-rate step loop both the server
// authority and the client engine run on, generalizing the
// time.Ticker-driven GameManager.Start loop from the teacher repo
// (pkg/game/game.go) into something that also supports the step drift
// correction spec.md §4.7 asks of the client: DelayTick/HurryTick let a
// caller nudge the next tick's timing without tearing down the loop.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// slowLoopThreshold is how many consecutive ticks carrying a net positive
// DelayTick request trigger the OnSlowLoop callback.
const slowLoopThreshold = 10

// TickFunc is called once per scheduler tick. dt is the wall-clock time
// since the previous tick fired (not necessarily equal to Interval, since
// DelayTick/HurryTick and execution overrun both perturb it); step is the
// 1-based tick counter.
type TickFunc func(ctx context.Context, dt time.Duration, step uint64) error

// Options configures a Scheduler.
type Options struct {
	Interval time.Duration
	Tick     TickFunc

	// OnSlowLoop fires on every tick once slowLoopThreshold or more
	// consecutive ticks have each consumed a net positive DelayTick
	// request. It does not measure how late a tick actually fired.
	OnSlowLoop func(delayCounter int)

	// OnMissedTick is a secondary watchdog: it fires whenever a single
	// tick's own execution time overran the interval, independent of any
	// requested delay.
	OnMissedTick func(overrun time.Duration)
}

// Scheduler runs Tick at Interval, adjustable per-tick via DelayTick and
// HurryTick.
type Scheduler struct {
	interval     time.Duration
	tick         TickFunc
	onSlowLoop   func(int)
	onMissedTick func(time.Duration)

	mu             sync.Mutex
	requestedDelay time.Duration
	delayCounter   int
	stepCount      uint64
	nextExecTime   time.Time
}

func New(opts Options) (*Scheduler, error) {
	if opts.Interval <= 0 {
		return nil, fmt.Errorf("scheduler: interval must be positive")
	}
	if opts.Tick == nil {
		return nil, fmt.Errorf("scheduler: tick function is required")
	}
	return &Scheduler{
		interval:     opts.Interval,
		tick:         opts.Tick,
		onSlowLoop:   opts.OnSlowLoop,
		onMissedTick: opts.OnMissedTick,
	}, nil
}

// DelayTick requests that the scheduler wait an extra d before its next
// tick. The client engine uses this to slow its local clock when it is
// running ahead of the server.
func (s *Scheduler) DelayTick(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requestedDelay += d
}

// HurryTick requests the next tick fire d earlier, to catch a client
// clock up to the server.
func (s *Scheduler) HurryTick(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requestedDelay -= d
}

func (s *Scheduler) consumeRequestedDelay() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.requestedDelay
	s.requestedDelay = 0
	return d
}

// NextExecTime reports when the scheduler expects to fire its next tick.
func (s *Scheduler) NextExecTime() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextExecTime
}

// StepCount reports how many ticks have fired so far.
func (s *Scheduler) StepCount() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stepCount
}

// Start runs the tick loop until ctx is canceled or Tick returns an error.
// Unlike a plain time.Ticker, the wait before each tick is recomputed from
// requestedDelay every iteration, via a resettable time.Timer, so
// DelayTick/HurryTick take effect on the very next tick rather than
// drifting in slowly.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	s.nextExecTime = time.Now().Add(s.interval)
	s.mu.Unlock()

	timer := time.NewTimer(s.interval)
	defer timer.Stop()

	lastTick := time.Now()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-timer.C:
			dt := now.Sub(lastTick)
			lastTick = now

			s.mu.Lock()
			s.stepCount++
			step := s.stepCount
			s.mu.Unlock()

			execStart := time.Now()
			if err := s.tick(ctx, dt, step); err != nil {
				return fmt.Errorf("scheduler: tick %d failed: %w", step, err)
			}
			execDuration := time.Since(execStart)
			if execDuration > s.interval && s.onMissedTick != nil {
				s.onMissedTick(execDuration - s.interval)
			}

			delay := s.consumeRequestedDelay()
			wait := s.interval + delay

			s.mu.Lock()
			if delay > 0 {
				s.delayCounter++
			} else {
				s.delayCounter = 0
			}
			delayCounter := s.delayCounter
			s.nextExecTime = now.Add(wait)
			s.mu.Unlock()

			if delayCounter >= slowLoopThreshold && s.onSlowLoop != nil {
				s.onSlowLoop(delayCounter)
			}

			if wait <= 0 {
				wait = time.Millisecond
			}
			timer.Reset(wait)
		}
	}
}

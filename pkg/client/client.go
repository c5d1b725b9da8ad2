// Package client is the Client Engine spec.md §4.7 describes: it drives
// the same Simulation Engine the server authority runs, stamps and sends
// locally issued inputs, and feeds every decoded sync payload to a
// pkg/strategy.Strategy. It also carries the step drift discipline
// (§4.7) that nudges the local Scheduler when the world's stepCount
// wanders too far from what the server last reported.
package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/solstice-games/syncstep/pkg/log"
	"github.com/solstice-games/syncstep/pkg/scheduler"
	"github.com/solstice-games/syncstep/pkg/serializer"
	"github.com/solstice-games/syncstep/pkg/simulation"
	"github.com/solstice-games/syncstep/pkg/strategy"
	"github.com/solstice-games/syncstep/pkg/transmitter"
	"github.com/solstice-games/syncstep/pkg/transport"
	"github.com/solstice-games/syncstep/pkg/wire"
)

// InputSourceFunc returns the raw payload for the next locally issued
// input, or nil if there's nothing to send this tick.
type InputSourceFunc func() []byte

// Options constructs a Client.
type Options struct {
	Engine   *simulation.Engine
	Codec    *serializer.Serializer
	Strategy strategy.Strategy
	Pipe     transport.Pipe
	PlayerID uint32

	TickInterval time.Duration
	InputSource  InputSourceFunc

	// OnSlowLoop and OnMissedTick forward to the underlying Scheduler.
	OnSlowLoop   func(delayCounter int)
	OnMissedTick func(overrun time.Duration)
}

// Client is the Client Engine: one Simulation Engine, one reconciliation
// Strategy, and the Scheduler that steps them both in lockstep with
// locally issued input.
type Client struct {
	engine   *simulation.Engine
	codec    *serializer.Serializer
	strategy strategy.Strategy
	pipe     transport.Pipe
	playerID uint32

	inputSource  InputSourceFunc
	tickInterval time.Duration
	scheduler    *scheduler.Scheduler

	mu          sync.Mutex
	nextInputID uint32
	rtt         *rttTracker
}

func New(opts Options) (*Client, error) {
	if opts.Engine == nil {
		return nil, fmt.Errorf("client: engine is required")
	}
	if opts.Codec == nil {
		return nil, fmt.Errorf("client: codec is required")
	}
	if opts.Strategy == nil {
		return nil, fmt.Errorf("client: strategy is required")
	}
	if opts.Pipe == nil {
		return nil, fmt.Errorf("client: pipe is required")
	}
	if opts.TickInterval <= 0 {
		return nil, fmt.Errorf("client: tick interval must be positive")
	}

	c := &Client{
		engine:       opts.Engine,
		codec:        opts.Codec,
		strategy:     opts.Strategy,
		pipe:         opts.Pipe,
		playerID:     opts.PlayerID,
		inputSource:  opts.InputSource,
		tickInterval: opts.TickInterval,
		rtt:          newRTTTracker(),
	}

	sched, err := scheduler.New(scheduler.Options{
		Interval:     opts.TickInterval,
		Tick:         c.tick,
		OnSlowLoop:   opts.OnSlowLoop,
		OnMissedTick: opts.OnMissedTick,
	})
	if err != nil {
		return nil, fmt.Errorf("client: building scheduler: %w", err)
	}
	c.scheduler = sched

	return c, nil
}

// Engine returns the Simulation Engine this client drives, so callers can
// register game-specific step hooks before calling Run.
func (c *Client) Engine() *simulation.Engine { return c.engine }

// RTT reports the current outlier-trimmed rolling average round-trip
// time, or 0 if no pong has been paired with a ping yet.
func (c *Client) RTT() time.Duration { return c.rtt.average() }

// Run starts the tick loop and the inbound receive loop together,
// returning once ctx is canceled or either loop fails.
func (c *Client) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	errs := make(chan error, 2)

	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := c.scheduler.Start(ctx); err != nil {
			errs <- fmt.Errorf("client: tick loop: %w", err)
		}
	}()
	go func() {
		defer wg.Done()
		if err := c.receiveLoop(ctx); err != nil {
			errs <- fmt.Errorf("client: receive loop: %w", err)
		}
	}()

	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// tick is the Scheduler's TickFunc: gather local input, apply and buffer
// it, send it to the server, then advance the Simulation Engine one step.
func (c *Client) tick(ctx context.Context, dt time.Duration, step uint64) error {
	dtSeconds := dt.Seconds()

	if c.inputSource != nil {
		if payload := c.inputSource(); payload != nil {
			input := c.nextInput(payload, c.engine.World().StepCount()+1)
			c.engine.ProcessInput(input, dtSeconds)
			c.strategy.RecordInput(input.Step, input)
			if err := c.sendInput(ctx, input); err != nil {
				log.Warn("client: sending input %d: %v", input.InputID, err)
			}
		}
	}

	return c.engine.Step(false, dtSeconds, false)
}

func (c *Client) nextInput(payload []byte, step uint64) simulation.Input {
	c.mu.Lock()
	c.nextInputID++
	id := c.nextInputID
	c.mu.Unlock()
	return simulation.Input{PlayerID: c.playerID, InputID: id, Step: step, Payload: payload}
}

func (c *Client) sendInput(ctx context.Context, input simulation.Input) error {
	msg := &wire.Message{
		ClientID: c.playerID,
		Type:     wire.MessageTypeInput,
		Payload:  wire.EncodeInput(input.InputID, input.Step, input.Payload),
	}
	encoded, err := wire.Encode(msg)
	if err != nil {
		return fmt.Errorf("client: encoding input message: %w", err)
	}
	return c.pipe.Send(ctx, encoded)
}

// receiveLoop reads every inbound message and dispatches it by type.
func (c *Client) receiveLoop(ctx context.Context) error {
	for {
		data, err := c.pipe.Receive(ctx)
		if err != nil {
			return err
		}
		msg, err := wire.Decode(data)
		if err != nil {
			log.Warn("client: decoding message: %v", err)
			continue
		}
		if err := c.handleMessage(ctx, msg); err != nil {
			log.Warn("client: handling message type %d: %v", msg.Type, err)
		}
	}
}

func (c *Client) handleMessage(ctx context.Context, msg *wire.Message) error {
	switch msg.Type {
	case wire.MessageTypeSync:
		return c.handleSync(msg.Payload)
	case wire.MessageTypePong:
		c.rtt.handlePong(msg.Payload)
		return nil
	case wire.MessageTypeRoomUpdate:
		update, err := wire.DecodeRoomUpdate(msg.Payload)
		if err != nil {
			return fmt.Errorf("client: decoding roomUpdate: %w", err)
		}
		log.Debug("client: room update %s -> %s", update.From, update.To)
		return nil
	default:
		return fmt.Errorf("client: unhandled message type %d", msg.Type)
	}
}

// handleSync decodes payload and feeds it to the configured Strategy,
// then applies the step drift discipline (spec.md §4.7) against the
// Strategy's own DriftThresholds.
func (c *Client) handleSync(raw []byte) error {
	payload, err := transmitter.DecodePayload(c.codec, raw)
	if err != nil {
		return fmt.Errorf("client: decoding sync payload: %w", err)
	}

	required := c.strategy.NeedFirstSync()
	if err := c.strategy.ApplySync(payload, required); err != nil {
		return fmt.Errorf("client: applying sync: %w", err)
	}

	c.applyDriftDiscipline(payload.Step)
	return nil
}

// applyDriftDiscipline compares the local world's stepCount against the
// server's reported step plus an RTT-derived cushion, and nudges the
// Scheduler's next tick timing when the drift exceeds the strategy's own
// thresholds. A lag beyond ClientReset abandons gradual correction and
// snaps stepCount straight to the server's.
func (c *Client) applyDriftDiscipline(serverStep uint64) {
	thresholds := c.strategy.DriftThresholds()
	localStep := c.engine.World().StepCount()
	cushion := c.rttEstimateSteps()

	target := serverStep + cushion

	switch {
	case localStep > target+thresholds.Lead:
		c.scheduler.DelayTick(c.tickSlice())
	case target > localStep && target-localStep > thresholds.ClientReset:
		c.engine.World().SetStepCount(serverStep)
	case target > localStep && target-localStep > thresholds.Lag:
		c.scheduler.HurryTick(c.tickSlice())
	}
}

func (c *Client) tickSlice() time.Duration {
	return c.tickInterval / 4
}

// rttEstimateSteps converts the current RTT average into a step count at
// this client's own tick rate, a rough "how many ticks has the server's
// report already aged in flight" correction.
func (c *Client) rttEstimateSteps() uint64 {
	rtt := c.rtt.average()
	if rtt <= 0 || c.tickInterval <= 0 {
		return 0
	}
	return uint64(rtt / c.tickInterval)
}

// SendPing issues a new ping carrying the send timestamp, so the paired
// pong (echoed unchanged by the server, see pkg/server's mustEncodePong)
// lets handlePong compute the round trip without a separate sequence map.
func (c *Client) SendPing(ctx context.Context) error {
	payload := c.rtt.newPing()
	encoded, err := wire.Encode(&wire.Message{ClientID: c.playerID, Type: wire.MessageTypePing, Payload: payload})
	if err != nil {
		return fmt.Errorf("client: encoding ping: %w", err)
	}
	return c.pipe.Send(ctx, encoded)
}

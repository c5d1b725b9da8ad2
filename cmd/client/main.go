// Command client is the reference Client Engine wiring: a headless
// process (no rendering — rendering is an out-of-scope collaborator, see
// spec.md §1) that dials the sync endpoint, completes the playerJoined
// handshake, and drives pkg/client with a synthetic input source cycling
// through the same movement bitmask cmd/server decodes. It is glue, not
// part of the synchronization core.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/solstice-games/syncstep/pkg/client"
	"github.com/solstice-games/syncstep/pkg/log"
	"github.com/solstice-games/syncstep/pkg/object"
	"github.com/solstice-games/syncstep/pkg/physics"
	"github.com/solstice-games/syncstep/pkg/serializer"
	"github.com/solstice-games/syncstep/pkg/simulation"
	"github.com/solstice-games/syncstep/pkg/strategy"
	"github.com/solstice-games/syncstep/pkg/transport/ws"
	"github.com/solstice-games/syncstep/pkg/wire"
	"github.com/solstice-games/syncstep/pkg/world"

	"github.com/solstice-games/syncstep/physics/resolvphysics"
)

const (
	moveLeft  byte = 1 << 0
	moveRight byte = 1 << 1
	moveUp    byte = 1 << 2
	moveDown  byte = 1 << 3
)

const moveSpeed = 120.0

func main() {
	addr := flag.String("addr", "ws://localhost:8765/sync", "Sync endpoint to dial")
	tickRate := flag.Int("tick-rate", 60, "Local step rate, matching the server's stepRate")
	strategyName := flag.String("strategy", "extrapolate", "Sync strategy: extrapolate, interpolate, or framesync")
	logLevel := flag.String("log-level", "info", "Log level: error, warn, info, debug, trace")
	runFor := flag.Duration("run-for", 0, "Exit automatically after this long (0 means run until signaled)")
	flag.Parse()

	parsedLevel, err := log.ParseLogLevel(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parsing log level: %v\n", err)
		os.Exit(1)
	}
	log.SetLevel(parsedLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if *runFor > 0 {
		var runCancel context.CancelFunc
		ctx, runCancel = context.WithTimeout(ctx, *runFor)
		defer runCancel()
	}

	pipe, err := (ws.Dialer{}).Dial(ctx, *addr)
	if err != nil {
		log.Error("dialing %s: %v", *addr, err)
		os.Exit(1)
	}

	playerID, err := awaitPlayerJoined(ctx, pipe)
	if err != nil {
		log.Error("awaiting playerJoined: %v", err)
		os.Exit(1)
	}
	log.Info("joined as player %d", playerID)

	codec := serializer.New()
	if err := codec.Register(&object.Vector{}, func() object.Instance { return &object.Vector{} }); err != nil {
		log.Error("registering Vector: %v", err)
		os.Exit(1)
	}
	if err := codec.Register(&object.PhysicalObject2D{}, func() object.Instance {
		return object.NewPhysicalObject2D(0)
	}); err != nil {
		log.Error("registering PhysicalObject2D: %v", err)
		os.Exit(1)
	}

	w := world.New()
	applyInput := func(w *world.World, input simulation.Input, dtSeconds float64) {
		obj, ok := w.Get(input.PlayerID)
		if !ok {
			return
		}
		p, ok := obj.(*object.PhysicalObject2D)
		if !ok || len(input.Payload) == 0 {
			return
		}
		applyMovement(p, input.Payload[0])
	}

	phys, err := pickPhysics(*strategyName)
	if err != nil {
		log.Error("picking physics collaborator: %v", err)
		os.Exit(1)
	}
	engine := simulation.New(simulation.Options{World: w, Physics: phys, ApplyInput: applyInput})

	strat, err := buildStrategy(*strategyName, engine, playerID)
	if err != nil {
		log.Error("building strategy: %v", err)
		os.Exit(1)
	}

	self := object.NewPhysicalObject2D(playerID)
	self.PlayerID = playerID
	if err := w.Add(self); err != nil {
		log.Error("adding local player object: %v", err)
		os.Exit(1)
	}

	c, err := client.New(client.Options{
		Engine:       engine,
		Codec:        codec,
		Strategy:     strat,
		Pipe:         pipe,
		PlayerID:     playerID,
		TickInterval: time.Second / time.Duration(*tickRate),
		InputSource:  syntheticInputSource(),
		OnSlowLoop: func(delayCounter int) {
			log.Warn("client tick loop running slow (delay counter %d)", delayCounter)
		},
	})
	if err != nil {
		log.Error("constructing client: %v", err)
		os.Exit(1)
	}

	go pingLoop(ctx, c)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := c.Run(ctx); err != nil && ctx.Err() == nil {
		log.Error("client run: %v", err)
		os.Exit(1)
	}
}

// awaitPlayerJoined blocks on the first inbound message, which the server
// authority always sends right after accepting the connection (spec.md
// §6 playerJoined), and returns the allocated player id.
func awaitPlayerJoined(ctx context.Context, pipe interface {
	Receive(context.Context) ([]byte, error)
}) (uint32, error) {
	data, err := pipe.Receive(ctx)
	if err != nil {
		return 0, fmt.Errorf("receiving handshake: %w", err)
	}
	msg, err := wire.Decode(data)
	if err != nil {
		return 0, fmt.Errorf("decoding handshake envelope: %w", err)
	}
	if msg.Type != wire.MessageTypePlayerJoined {
		return 0, fmt.Errorf("expected playerJoined, got message type %d", msg.Type)
	}
	joined, err := wire.DecodePlayerJoined(msg.Payload)
	if err != nil {
		return 0, fmt.Errorf("decoding playerJoined payload: %w", err)
	}
	return joined.PlayerID, nil
}

// pickPhysics picks the Physics collaborator the Simulation Engine should
// run. Extrapolate is the only strategy that performs local prediction
// (spec.md §4.8.1), so it is the only one that needs a real Physics;
// Interpolate and FrameSync disable local physics per spec.md
// §4.8.2/§4.8.3.
func pickPhysics(name string) (physics.Physics, error) {
	switch name {
	case "extrapolate":
		return resolvphysics.New(resolvphysics.Options{}), nil
	case "interpolate", "framesync":
		return physics.NoOp{}, nil
	default:
		return nil, fmt.Errorf("unknown sync strategy %q", name)
	}
}

// buildStrategy picks the Sync Strategy, wired to the same Simulation
// Engine the Client Engine drives — a strategy that re-enacts or bends
// must mutate the world the client actually steps, not a second,
// disconnected one.
func buildStrategy(name string, engine *simulation.Engine, playerID uint32) (strategy.Strategy, error) {
	switch name {
	case "extrapolate":
		return strategy.NewExtrapolateStrategy(engine, playerID, strategy.DefaultExtrapolateOptions()), nil
	case "interpolate":
		return strategy.NewInterpolateStrategy(engine, playerID, strategy.DefaultInterpolateOptions()), nil
	case "framesync":
		return strategy.NewFrameSyncStrategy(engine, playerID, strategy.DefaultFrameSyncOptions()), nil
	default:
		return nil, fmt.Errorf("unknown sync strategy %q", name)
	}
}

// syntheticInputSource stands in for a real input device: it walks
// through a short fixed movement pattern so the demo client visibly
// predicts and reconciles without requiring a keyboard.
func syntheticInputSource() client.InputSourceFunc {
	pattern := []byte{moveRight, moveRight, moveDown, moveDown, moveLeft, moveLeft, moveUp, moveUp}
	i := 0
	return func() []byte {
		b := pattern[i%len(pattern)]
		i++
		return []byte{b}
	}
}

func pingLoop(ctx context.Context, c *client.Client) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.SendPing(ctx); err != nil {
				log.Warn("sending ping: %v", err)
				continue
			}
			log.Debug("rtt estimate: %s", c.RTT())
		}
	}
}

func applyMovement(p *object.PhysicalObject2D, bitmask byte) {
	var vx, vy float32
	if bitmask&moveLeft != 0 {
		vx -= moveSpeed
	}
	if bitmask&moveRight != 0 {
		vx += moveSpeed
	}
	if bitmask&moveUp != 0 {
		vy -= moveSpeed
	}
	if bitmask&moveDown != 0 {
		vy += moveSpeed
	}
	p.Velocity.X = vx
	p.Velocity.Y = vy
}

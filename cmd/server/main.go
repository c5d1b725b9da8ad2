// Command server is the reference Server Authority wiring: it registers
// one concrete object class (object.PhysicalObject2D), a resolv-backed
// Physics collaborator, a websocket Listener, and the admin HTTP surface,
// then drives them with pkg/server. It is glue, not part of the
// synchronization core — the movement bitmask decoded below is a stand-in
// for a real game's input vocabulary.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/solstice-games/syncstep/pkg/admin"
	"github.com/solstice-games/syncstep/pkg/log"
	"github.com/solstice-games/syncstep/pkg/object"
	"github.com/solstice-games/syncstep/pkg/serializer"
	"github.com/solstice-games/syncstep/pkg/server"
	"github.com/solstice-games/syncstep/pkg/simulation"
	"github.com/solstice-games/syncstep/pkg/transport"
	"github.com/solstice-games/syncstep/pkg/transport/ws"
	"github.com/solstice-games/syncstep/pkg/wire"
	"github.com/solstice-games/syncstep/pkg/world"

	"github.com/solstice-games/syncstep/physics/resolvphysics"
)

// Movement bitmask carried as the single-byte input payload. A real game
// would replace this with its own input vocabulary.
const (
	moveLeft  byte = 1 << 0
	moveRight byte = 1 << 1
	moveUp    byte = 1 << 2
	moveDown  byte = 1 << 3
)

const moveSpeed = 120.0

func main() {
	syncPort := flag.Int("sync-port", 8765, "Port the websocket sync endpoint listens on")
	adminPort := flag.Int("admin-port", 8766, "Port the admin HTTP surface listens on")
	tickRate := flag.Int("tick-rate", 60, "Simulation steps per second (spec.md §6 stepRate)")
	updateRate := flag.Int("update-rate", 6, "Steps between syncs to a room (spec.md §6 updateRate)")
	fullSyncRate := flag.Int("full-sync-rate", 20, "Syncs between full resyncs of an already-synced room (spec.md §6 fullSyncRate)")
	idleTimeout := flag.Duration("idle-timeout", 180*time.Second, "Idle connection timeout (spec.md §6 timeoutInterval)")
	logLevel := flag.String("log-level", "info", "Log level: error, warn, info, debug, trace")
	flag.Parse()

	parsedLevel, err := log.ParseLogLevel(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parsing log level: %v\n", err)
		os.Exit(1)
	}
	log.SetLevel(parsedLevel)

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
	engine := simulation.New(simulation.Options{
		World:   w,
		Physics: resolvphysics.New(resolvphysics.Options{}),
		ApplyInput: func(w *world.World, input simulation.Input, dtSeconds float64) {
			obj, ok := w.Get(input.PlayerID)
			if !ok {
				return
			}
			p, ok := obj.(*object.PhysicalObject2D)
			if !ok || len(input.Payload) == 0 {
				return
			}
			applyMovement(p, input.Payload[0])
		},
	})

	srv, err := server.New(server.Options{
		Engine:       engine,
		Codec:        codec,
		TickInterval: time.Second / time.Duration(*tickRate),
		UpdateRate:   *updateRate,
		FullSyncRate: *fullSyncRate,
		IdleTimeout:  *idleTimeout,
	})
	if err != nil {
		log.Error("constructing server: %v", err)
		os.Exit(1)
	}

	adminServer := admin.New(admin.Options{Port: *adminPort, Server: srv})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	listener := ws.NewListener(64)
	syncMux := http.NewServeMux()
	syncMux.Handle("/sync", listener)
	syncHTTP := &http.Server{Addr: fmt.Sprintf(":%d", *syncPort), Handler: syncMux}

	go func() {
		log.Info("sync server listening on %s", syncHTTP.Addr)
		if err := syncHTTP.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("sync server: %v", err)
		}
	}()
	go adminServer.Start()
	go acceptLoop(ctx, srv, w, listener)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(ctx) }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("received signal %v, shutting down", sig)
	case err := <-errCh:
		if err != nil {
			log.Error("server loop exited: %v", err)
		}
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = adminServer.Stop(shutdownCtx)
	_ = syncHTTP.Shutdown(shutdownCtx)
	_ = listener.Close()
}

// acceptLoop accepts every inbound sync connection, allocates a player,
// spawns their world object in the lobby, and reads their messages until
// the pipe closes.
func acceptLoop(ctx context.Context, srv *server.Server, w *world.World, listener *ws.Listener) {
	for {
		pipe, err := listener.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn("accept: %v", err)
			continue
		}
		playerID := srv.Connect(pipe)

		obj := object.NewPhysicalObject2D(playerID)
		obj.PlayerID = playerID
		obj.SetRoomName(server.LobbyRoomName)
		if err := w.Add(obj); err != nil {
			log.Error("adding object for player %d: %v", playerID, err)
		}

		if err := srv.SendPlayerJoined(ctx, playerID); err != nil {
			log.Warn("sending playerJoined to player %d: %v", playerID, err)
		}

		go readLoop(ctx, srv, playerID, pipe)
	}
}

func readLoop(ctx context.Context, srv *server.Server, playerID uint32, pipe transport.Pipe) {
	defer func() {
		if err := srv.Disconnect(playerID); err != nil {
			log.Warn("disconnecting player %d: %v", playerID, err)
		}
	}()
	for {
		data, err := pipe.Receive(ctx)
		if err != nil {
			log.Info("player %d disconnected: %v", playerID, err)
			return
		}
		msg, err := wire.Decode(data)
		if err != nil {
			log.Warn("decoding message from player %d: %v", playerID, err)
			continue
		}
		if err := srv.HandleMessage(playerID, msg); err != nil {
			log.Warn("handling message from player %d: %v", playerID, err)
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

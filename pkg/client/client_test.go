package client_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solstice-games/syncstep/pkg/client"
	"github.com/solstice-games/syncstep/pkg/object"
	"github.com/solstice-games/syncstep/pkg/serializer"
	"github.com/solstice-games/syncstep/pkg/simulation"
	"github.com/solstice-games/syncstep/pkg/strategy"
	"github.com/solstice-games/syncstep/pkg/transmitter"
	"github.com/solstice-games/syncstep/pkg/transport"
	"github.com/solstice-games/syncstep/pkg/wire"
	"github.com/solstice-games/syncstep/pkg/world"
)

func newTestClient(t *testing.T, pipe transport.Pipe) (*client.Client, *simulation.Engine) {
	t.Helper()
	codec := serializer.New()
	require.NoError(t, codec.Register(&object.Vector{}, func() object.Instance { return &object.Vector{} }))
	require.NoError(t, codec.Register(&object.PhysicalObject2D{}, func() object.Instance {
		return object.NewPhysicalObject2D(0)
	}))

	w := world.New()
	engine := simulation.New(simulation.Options{World: w})
	strat := strategy.NewFrameSyncStrategy(engine, 1, strategy.DefaultFrameSyncOptions())

	c, err := client.New(client.Options{
		Engine:       engine,
		Codec:        codec,
		Strategy:     strat,
		Pipe:         pipe,
		PlayerID:     1,
		TickInterval: 5 * time.Millisecond,
	})
	require.NoError(t, err)
	return c, engine
}

func TestClientAppliesFullSync(t *testing.T) {
	serverSide, clientSide := transport.NewMemoryPipePair(8)
	c, engine := newTestClient(t, clientSide)

	obj := object.NewPhysicalObject2D(7)
	obj.Velocity.X = 3

	codec := serializer.New()
	require.NoError(t, codec.Register(&object.Vector{}, func() object.Instance { return &object.Vector{} }))
	require.NoError(t, codec.Register(&object.PhysicalObject2D{}, func() object.Instance {
		return object.NewPhysicalObject2D(0)
	}))
	tx := transmitter.New(codec)
	tx.QueueCreate(obj)
	payload, err := tx.SerializePayload(3, true)
	require.NoError(t, err)

	encoded, err := wire.Encode(&wire.Message{Type: wire.MessageTypeSync, Payload: payload})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, serverSide.Send(ctx, encoded))

	runCtx, runCancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer runCancel()
	done := make(chan error, 1)
	go func() { done <- c.Run(runCtx) }()

	require.Eventually(t, func() bool {
		_, ok := engine.World().Get(7)
		return ok
	}, time.Second, 5*time.Millisecond)

	runCancel()
	<-done

	got, ok := engine.World().Get(7)
	require.True(t, ok)
	assert.Equal(t, float32(3), got.(*object.PhysicalObject2D).Velocity.X)
}

func TestClientSendsInputEachTick(t *testing.T) {
	serverSide, clientSide := transport.NewMemoryPipePair(8)

	codec := serializer.New()
	require.NoError(t, codec.Register(&object.Vector{}, func() object.Instance { return &object.Vector{} }))
	require.NoError(t, codec.Register(&object.PhysicalObject2D{}, func() object.Instance {
		return object.NewPhysicalObject2D(0)
	}))

	w := world.New()
	engine := simulation.New(simulation.Options{World: w})
	strat := strategy.NewFrameSyncStrategy(engine, 1, strategy.DefaultFrameSyncOptions())

	c, err := client.New(client.Options{
		Engine:       engine,
		Codec:        codec,
		Strategy:     strat,
		Pipe:         clientSide,
		PlayerID:     1,
		TickInterval: 5 * time.Millisecond,
		InputSource:  func() []byte { return []byte{1} },
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	raw, err := serverSide.Receive(ctx)
	require.NoError(t, err)

	msg, err := wire.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, wire.MessageTypeInput, msg.Type)

	inputID, step, payload, err := wire.DecodeInput(msg.Payload)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), inputID)
	assert.Equal(t, uint64(1), step)
	assert.Equal(t, []byte{1}, payload)

	cancel()
	<-done
}

package server_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solstice-games/syncstep/pkg/object"
	"github.com/solstice-games/syncstep/pkg/serializer"
	"github.com/solstice-games/syncstep/pkg/server"
	"github.com/solstice-games/syncstep/pkg/simulation"
	"github.com/solstice-games/syncstep/pkg/transmitter"
	"github.com/solstice-games/syncstep/pkg/transport"
	"github.com/solstice-games/syncstep/pkg/wire"
	"github.com/solstice-games/syncstep/pkg/world"
)

func newTestServer(t *testing.T) (*server.Server, *world.World) {
	t.Helper()
	codec := serializer.New()
	require.NoError(t, codec.Register(&object.Vector{}, func() object.Instance { return &object.Vector{} }))
	require.NoError(t, codec.Register(&object.PhysicalObject2D{}, func() object.Instance {
		return object.NewPhysicalObject2D(0)
	}))

	w := world.New()
	engine := simulation.New(simulation.Options{
		World: w,
		ApplyInput: func(w *world.World, input simulation.Input, dt float64) {
			obj, ok := w.Get(input.PlayerID)
			if !ok {
				return
			}
			if p, ok := obj.(*object.PhysicalObject2D); ok {
				p.Velocity.X = 1
			}
		},
	})

	s, err := server.New(server.Options{
		Engine:       engine,
		Codec:        codec,
		TickInterval: 5 * time.Millisecond,
		UpdateRate:   1,
		FullSyncRate: 10,
	})
	require.NoError(t, err)
	return s, w
}

func TestConnectAssignsPlayerID(t *testing.T) {
	s, _ := newTestServer(t)
	a, _ := transport.NewMemoryPipePair(8)

	id1 := s.Connect(a)
	id2 := s.Connect(a)
	assert.NotEqual(t, id1, id2)
}

func TestAssignPlayerToRoomSendsFullSync(t *testing.T) {
	s, w := newTestServer(t)
	serverSide, clientSide := transport.NewMemoryPipePair(8)

	playerID := s.Connect(serverSide)

	obj := object.NewPhysicalObject2D(playerID)
	obj.SetRoomName(server.LobbyRoomName)
	require.NoError(t, w.Add(obj))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.AssignPlayerToRoom(ctx, playerID, server.LobbyRoomName))

	raw, err := clientSide.Receive(ctx)
	require.NoError(t, err)

	msg, err := wire.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, wire.MessageTypeSync, msg.Type)

	codec := serializer.New()
	require.NoError(t, codec.Register(&object.Vector{}, func() object.Instance { return &object.Vector{} }))
	require.NoError(t, codec.Register(&object.PhysicalObject2D{}, func() object.Instance {
		return object.NewPhysicalObject2D(0)
	}))
	payload, err := transmitter.DecodePayload(codec, msg.Payload)
	require.NoError(t, err)
	assert.True(t, payload.FullSync)
	require.Len(t, payload.Frames, 1)
	assert.Equal(t, transmitter.FrameCreate, payload.Frames[0].Type)
}

func TestHandleMessageQueuesInputForNextTick(t *testing.T) {
	s, w := newTestServer(t)
	serverSide, _ := transport.NewMemoryPipePair(8)
	playerID := s.Connect(serverSide)

	obj := object.NewPhysicalObject2D(playerID)
	require.NoError(t, w.Add(obj))

	msg := &wire.Message{Type: wire.MessageTypeInput, Payload: wire.EncodeInput(1, 0, nil)}
	require.NoError(t, s.HandleMessage(playerID, msg))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	require.Eventually(t, func() bool {
		last, ok := s.LastHandledInput(playerID)
		return ok && last == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestDisconnectClosesPipe(t *testing.T) {
	s, _ := newTestServer(t)
	a, b := transport.NewMemoryPipePair(8)
	id := s.Connect(a)

	require.NoError(t, s.Disconnect(id))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := b.Receive(ctx)
	assert.Error(t, err)
}

func TestAssignObjectToRoomRequiresKnownRoom(t *testing.T) {
	s, w := newTestServer(t)
	obj := object.NewPhysicalObject2D(1)
	require.NoError(t, w.Add(obj))

	err := s.AssignObjectToRoom(1, "/nowhere")
	assert.ErrorIs(t, err, server.ErrUnknownRoom)
}

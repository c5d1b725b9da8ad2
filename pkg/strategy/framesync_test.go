package strategy_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solstice-games/syncstep/pkg/object"
	"github.com/solstice-games/syncstep/pkg/simulation"
	"github.com/solstice-games/syncstep/pkg/strategy"
	"github.com/solstice-games/syncstep/pkg/transmitter"
	"github.com/solstice-games/syncstep/pkg/world"
)

func TestFrameSyncAdoptsServerStateImmediately(t *testing.T) {
	w := world.New()
	engine := simulation.New(simulation.Options{World: w})

	local := object.NewPhysicalObject2D(1)
	require.NoError(t, w.Add(local))

	server := object.NewPhysicalObject2D(0)
	server.Position = object.Vector{X: 8, Y: 2}

	s := strategy.NewFrameSyncStrategy(engine, 0, strategy.DefaultFrameSyncOptions())
	payload := transmitter.Payload{
		Step:     1,
		FullSync: true,
		Frames:   []transmitter.Frame{{Type: transmitter.FrameUpdate, ID: 1, Instance: server}},
	}
	require.NoError(t, s.ApplySync(payload, false))

	assert.Equal(t, object.Vector{X: 8, Y: 2}, local.Position)
	assert.False(t, local.IsBending())
}

func TestFrameSyncCreatesMissingAndDestroysAbsentOnFullSync(t *testing.T) {
	w := world.New()
	engine := simulation.New(simulation.Options{World: w})

	stale := object.NewPhysicalObject2D(2)
	require.NoError(t, w.Add(stale))

	server := object.NewPhysicalObject2D(0)
	s := strategy.NewFrameSyncStrategy(engine, 0, strategy.DefaultFrameSyncOptions())
	payload := transmitter.Payload{
		Step:     1,
		FullSync: true,
		Frames:   []transmitter.Frame{{Type: transmitter.FrameCreate, ID: 3, Instance: server}},
	}
	require.NoError(t, s.ApplySync(payload, false))

	_, ok := w.Get(3)
	assert.True(t, ok)
	_, ok = w.Get(2)
	assert.False(t, ok)
}

func TestFrameSyncHandlesDestroyFrame(t *testing.T) {
	w := world.New()
	engine := simulation.New(simulation.Options{World: w})

	local := object.NewPhysicalObject2D(4)
	require.NoError(t, w.Add(local))

	s := strategy.NewFrameSyncStrategy(engine, 0, strategy.DefaultFrameSyncOptions())
	payload := transmitter.Payload{
		Step:   1,
		Frames: []transmitter.Frame{{Type: transmitter.FrameDestroy, ID: 4}},
	}
	require.NoError(t, s.ApplySync(payload, false))

	_, ok := w.Get(4)
	assert.False(t, ok)
}

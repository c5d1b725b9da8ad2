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

func TestInterpolateRefusesNonFutureStepUnlessRequired(t *testing.T) {
	w := world.New()
	engine := simulation.New(simulation.Options{World: w})
	s := strategy.NewInterpolateStrategy(engine, 0, strategy.DefaultInterpolateOptions())

	// Step 0 is not newer than the (initial) last applied step 0.
	require.NoError(t, s.ApplySync(transmitter.Payload{Step: 0, FullSync: true}, false))
	assert.True(t, s.NeedFirstSync())

	require.NoError(t, s.ApplySync(transmitter.Payload{Step: 5, FullSync: true}, true))
	assert.False(t, s.NeedFirstSync())

	// A same-step payload is no longer strictly newer, so it's refused
	// unless required.
	require.NoError(t, s.ApplySync(transmitter.Payload{Step: 5, FullSync: true}, false))
}

func TestInterpolateBendsTowardServerPosition(t *testing.T) {
	w := world.New()
	engine := simulation.New(simulation.Options{World: w})

	local := object.NewPhysicalObject2D(1)
	require.NoError(t, w.Add(local))

	server := object.NewPhysicalObject2D(0)
	server.Position = object.Vector{X: 6, Y: 0}

	opts := strategy.DefaultInterpolateOptions()
	opts.BendingIncrements = 6
	opts.RemoteObjBending = 1.0

	s := strategy.NewInterpolateStrategy(engine, 0, opts)
	payload := transmitter.Payload{
		Step:     1,
		FullSync: true,
		Frames:   []transmitter.Frame{{Type: transmitter.FrameUpdate, ID: 1, Instance: server}},
	}
	require.NoError(t, s.ApplySync(payload, true))

	assert.Equal(t, object.Vector{X: 0, Y: 0}, local.Position)
	for i := 0; i < 6; i++ {
		local.ApplyIncrementalBending(1000.0 / 60.0)
	}
	assert.InDelta(t, 6.0, float64(local.Position.X), 1e-4)
}

func TestInterpolateCreatesUnknownObject(t *testing.T) {
	w := world.New()
	engine := simulation.New(simulation.Options{World: w})
	s := strategy.NewInterpolateStrategy(engine, 0, strategy.DefaultInterpolateOptions())

	server := object.NewPhysicalObject2D(0)
	payload := transmitter.Payload{
		Step:     1,
		FullSync: true,
		Frames:   []transmitter.Frame{{Type: transmitter.FrameCreate, ID: 9, Instance: server}},
	}
	require.NoError(t, s.ApplySync(payload, true))

	_, ok := w.Get(9)
	assert.True(t, ok)
}

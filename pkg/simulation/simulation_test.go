package simulation_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solstice-games/syncstep/pkg/object"
	"github.com/solstice-games/syncstep/pkg/simulation"
	"github.com/solstice-games/syncstep/pkg/world"
)

// integratePhysics moves each object by velocity*dt, standing in for a
// real Physics collaborator (the default physics.NoOp moves nothing).
type integratePhysics struct{}

func (integratePhysics) Step(dt float64, objs []*object.PhysicalObject2D) error {
	for _, o := range objs {
		o.Position.X += o.Velocity.X * float32(dt)
		o.Position.Y += o.Velocity.Y * float32(dt)
	}
	return nil
}

func TestStepAdvancesPhysicsAndRunsHooks(t *testing.T) {
	w := world.New()
	obj := object.NewPhysicalObject2D(1)
	obj.Velocity = object.Vector{X: 1, Y: 0}
	require.NoError(t, w.Add(obj))

	var preSteps, postSteps int
	e := simulation.New(simulation.Options{World: w, Physics: integratePhysics{}})
	e.AddPreStepHook(func(step uint64, dt float64, isReenact bool) { preSteps++ })
	e.AddPostStepHook(func(step uint64, dt float64, isReenact bool) { postSteps++ })

	require.NoError(t, e.Step(false, 1.0, false))

	assert.Equal(t, 1, preSteps)
	assert.Equal(t, 1, postSteps)
	assert.InDelta(t, 1.0, obj.Position.X, 0.0001)
}

func TestStepPhysicsOnlySkipsHooks(t *testing.T) {
	w := world.New()
	e := simulation.New(simulation.Options{World: w})

	var ran bool
	e.AddPreStepHook(func(step uint64, dt float64, isReenact bool) { ran = true })

	require.NoError(t, e.Step(false, 1.0, true))
	assert.False(t, ran)
}

func TestAddObjectDeduplicatesMatchingShadow(t *testing.T) {
	w := world.New()
	e := simulation.New(simulation.Options{World: w, ClientIDSpace: world.ClientIDSpace})

	shadow := object.NewPhysicalObject2D(world.ClientIDSpace + 1)
	shadow.InputID = 42
	inserted, err := e.AddObject(shadow)
	require.NoError(t, err)
	assert.Same(t, shadow, inserted)

	duplicate := object.NewPhysicalObject2D(world.ClientIDSpace + 2)
	duplicate.InputID = 42
	result, err := e.AddObject(duplicate)
	require.NoError(t, err)
	assert.Same(t, shadow, result, "AddObject should return the existing shadow, not insert a second one")
	assert.Equal(t, 1, w.ObjectCount())
}

func TestFindLocalShadowIgnoresZeroInputID(t *testing.T) {
	w := world.New()
	e := simulation.New(simulation.Options{World: w})
	require.Nil(t, e.FindLocalShadow(0))
}

func TestProcessInputInvokesApplyInputFunc(t *testing.T) {
	w := world.New()
	var seen simulation.Input
	e := simulation.New(simulation.Options{
		World: w,
		ApplyInput: func(w *world.World, input simulation.Input, dt float64) {
			seen = input
		},
	})

	e.ProcessInput(simulation.Input{PlayerID: 3, InputID: 7}, 0.016)
	assert.Equal(t, uint32(3), seen.PlayerID)
	assert.Equal(t, uint32(7), seen.InputID)
}

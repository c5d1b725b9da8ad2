package world_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solstice-games/syncstep/pkg/object"
	"github.com/solstice-games/syncstep/pkg/world"
)

func TestNewIDSkipsTakenIDs(t *testing.T) {
	w := world.New()

	first := w.NewID()
	require.NoError(t, w.Add(object.NewPhysicalObject2D(first)))

	second := w.NewID()
	assert.NotEqual(t, first, second)
}

func TestAddDuplicateIDFails(t *testing.T) {
	w := world.New()
	obj := object.NewPhysicalObject2D(5)
	require.NoError(t, w.Add(obj))

	err := w.Add(object.NewPhysicalObject2D(5))
	assert.ErrorIs(t, err, world.ErrDuplicateID)
}

func TestRemoveUnknownIDFails(t *testing.T) {
	w := world.New()
	err := w.Remove(99)
	assert.ErrorIs(t, err, world.ErrUnknownID)
}

func TestPlayerCountTracksOwnedObjects(t *testing.T) {
	w := world.New()

	owned := object.NewPhysicalObject2D(1)
	owned.PlayerID = 10
	unowned := object.NewPhysicalObject2D(2)

	require.NoError(t, w.Add(owned))
	require.NoError(t, w.Add(unowned))
	assert.Equal(t, 1, w.PlayerCount())

	require.NoError(t, w.Remove(1))
	assert.Equal(t, 0, w.PlayerCount())
}

func TestQueryByPlayerIDIsOrderedByID(t *testing.T) {
	w := world.New()
	for id := uint32(1); id <= 3; id++ {
		obj := object.NewPhysicalObject2D(id)
		obj.PlayerID = 7
		require.NoError(t, w.Add(obj))
	}
	require.NoError(t, w.Add(object.NewPhysicalObject2D(4)))

	matches := w.Query(world.ByPlayerID(7))
	require.Len(t, matches, 3)
	assert.Equal(t, uint32(1), matches[0].GetID())
	assert.Equal(t, uint32(2), matches[1].GetID())
	assert.Equal(t, uint32(3), matches[2].GetID())
}

func TestByShadowFiltersOnClientIDSpace(t *testing.T) {
	w := world.New()
	require.NoError(t, w.Add(object.NewPhysicalObject2D(5)))
	require.NoError(t, w.Add(object.NewPhysicalObject2D(world.ClientIDSpace+1)))

	shadows := w.Query(world.ByShadow(world.ClientIDSpace))
	require.Len(t, shadows, 1)
	assert.Equal(t, world.ClientIDSpace+1, shadows[0].GetID())
}

func TestForEachStopsEarly(t *testing.T) {
	w := world.New()
	for id := uint32(1); id <= 5; id++ {
		require.NoError(t, w.Add(object.NewPhysicalObject2D(id)))
	}

	visited := 0
	w.ForEach(func(object.WorldObject) bool {
		visited++
		return visited < 2
	})
	assert.Equal(t, 2, visited)
}

func TestAdvanceStepCount(t *testing.T) {
	w := world.New()
	assert.Equal(t, uint64(1), w.AdvanceStepCount())
	assert.Equal(t, uint64(2), w.AdvanceStepCount())
	assert.Equal(t, uint64(2), w.StepCount())
}

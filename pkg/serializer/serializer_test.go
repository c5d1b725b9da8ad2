package serializer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solstice-games/syncstep/pkg/object"
	"github.com/solstice-games/syncstep/pkg/serializer"
)

func newRegistry(t *testing.T) *serializer.Serializer {
	t.Helper()
	s := serializer.New()
	require.NoError(t, s.Register(&object.Vector{}, func() object.Instance { return &object.Vector{} }))
	require.NoError(t, s.Register(&object.PhysicalObject2D{}, func() object.Instance {
		return object.NewPhysicalObject2D(0)
	}))
	return s
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	s := newRegistry(t)

	src := object.NewPhysicalObject2D(7)
	src.PlayerID = 42
	src.Position = object.Vector{X: 1.5, Y: -2.25}
	src.Velocity = object.Vector{X: 0, Y: 3}
	src.Angle = 1.25
	src.AngularVelocity = -0.5
	src.Name = "shard-7"
	src.Tags = []string{"npc", "hostile"}

	encoded, err := s.Encode(src)
	require.NoError(t, err)

	decoded, rest, err := s.Decode(encoded)
	require.NoError(t, err)
	assert.Empty(t, rest)

	got := decoded.(*object.PhysicalObject2D)
	assert.Equal(t, src.PlayerID, got.PlayerID)
	assert.Equal(t, src.Position, got.Position)
	assert.Equal(t, src.Velocity, got.Velocity)
	assert.Equal(t, src.Angle, got.Angle)
	assert.Equal(t, src.AngularVelocity, got.AngularVelocity)
	assert.Equal(t, src.Name, got.Name)
	assert.Equal(t, src.Tags, got.Tags)
}

func TestEncodeDecodeEmptyString(t *testing.T) {
	s := newRegistry(t)

	src := object.NewPhysicalObject2D(1)
	src.Name = ""

	encoded, err := s.Encode(src)
	require.NoError(t, err)

	decoded, _, err := s.Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, "", decoded.(*object.PhysicalObject2D).Name)
}

func TestEncodeDecodePrunedString(t *testing.T) {
	s := newRegistry(t)

	src := object.NewPhysicalObject2D(1)
	src.Name = object.PrunedMarker

	encoded, err := s.Encode(src)
	require.NoError(t, err)

	decoded, _, err := s.Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, object.PrunedMarker, decoded.(*object.PhysicalObject2D).Name)
}

func TestDecodeUnknownClassID(t *testing.T) {
	s := serializer.New()
	_, _, err := s.Decode([]byte{0xAB})
	assert.ErrorIs(t, err, serializer.ErrUnknownClassID)
}

func TestDecodeTruncatedBuffer(t *testing.T) {
	s := newRegistry(t)

	src := object.NewPhysicalObject2D(1)
	encoded, err := s.Encode(src)
	require.NoError(t, err)

	_, _, err = s.Decode(encoded[:len(encoded)-1])
	assert.ErrorIs(t, err, serializer.ErrTruncatedBuffer)
}

func TestRegisterSameClassTwiceIsNotACollision(t *testing.T) {
	s := serializer.New()
	require.NoError(t, s.Register(&object.Vector{}, func() object.Instance { return &object.Vector{} }))
	// Re-registering the same class name is not a collision.
	require.NoError(t, s.Register(&object.Vector{}, func() object.Instance { return &object.Vector{} }))
}

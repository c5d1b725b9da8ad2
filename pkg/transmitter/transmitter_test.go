package transmitter_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solstice-games/syncstep/pkg/object"
	"github.com/solstice-games/syncstep/pkg/serializer"
	"github.com/solstice-games/syncstep/pkg/transmitter"
)

func newCodec(t *testing.T) *serializer.Serializer {
	t.Helper()
	s := serializer.New()
	require.NoError(t, s.Register(&object.Vector{}, func() object.Instance { return &object.Vector{} }))
	require.NoError(t, s.Register(&object.PhysicalObject2D{}, func() object.Instance {
		return object.NewPhysicalObject2D(0)
	}))
	return s
}

func TestSerializePayloadRoundTripsCreateAndDestroy(t *testing.T) {
	codec := newCodec(t)
	tx := transmitter.New(codec)

	obj := object.NewPhysicalObject2D(1)
	obj.Name = "rock"
	tx.QueueCreate(obj)
	tx.QueueDestroy(2)

	payload, err := tx.SerializePayload(10, true)
	require.NoError(t, err)

	decoded, err := transmitter.DecodePayload(codec, payload)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), decoded.Step)
	assert.True(t, decoded.FullSync)
	require.Len(t, decoded.Frames, 2)

	assert.Equal(t, transmitter.FrameCreate, decoded.Frames[0].Type)
	assert.Equal(t, uint32(1), decoded.Frames[0].ID)
	assert.Equal(t, "rock", decoded.Frames[0].Instance.(*object.PhysicalObject2D).Name)

	assert.Equal(t, transmitter.FrameDestroy, decoded.Frames[1].Type)
	assert.Equal(t, uint32(2), decoded.Frames[1].ID)
	assert.Nil(t, decoded.Frames[1].Instance)
}

func TestDiffSyncSkipsUnchangedObject(t *testing.T) {
	codec := newCodec(t)
	tx := transmitter.New(codec)

	obj := object.NewPhysicalObject2D(1)
	tx.QueueUpdate(obj)
	_, err := tx.SerializePayload(1, true)
	require.NoError(t, err)
	tx.ClearPayload()

	// Nothing changed; a diff sync should produce zero frames for this id.
	tx.QueueUpdate(obj)
	payload, err := tx.SerializePayload(2, false)
	require.NoError(t, err)

	decoded, err := transmitter.DecodePayload(codec, payload)
	require.NoError(t, err)
	assert.Empty(t, decoded.Frames)
}

func TestDiffSyncPrunesUnchangedStringButSendsChangedField(t *testing.T) {
	codec := newCodec(t)
	tx := transmitter.New(codec)

	obj := object.NewPhysicalObject2D(1)
	obj.Name = "same-name"
	tx.QueueUpdate(obj)
	_, err := tx.SerializePayload(1, true)
	require.NoError(t, err)
	tx.ClearPayload()

	obj.Position = object.Vector{X: 9, Y: 9}
	tx.QueueUpdate(obj)
	payload, err := tx.SerializePayload(2, false)
	require.NoError(t, err)

	decoded, err := transmitter.DecodePayload(codec, payload)
	require.NoError(t, err)
	require.Len(t, decoded.Frames, 1)

	got := decoded.Frames[0].Instance.(*object.PhysicalObject2D)
	assert.Equal(t, object.PrunedMarker, got.Name)
	assert.Equal(t, object.Vector{X: 9, Y: 9}, got.Position)
}

func TestFullSyncAlwaysSendsEveryField(t *testing.T) {
	codec := newCodec(t)
	tx := transmitter.New(codec)

	obj := object.NewPhysicalObject2D(1)
	obj.Name = "same-name"
	tx.QueueUpdate(obj)
	_, err := tx.SerializePayload(1, true)
	require.NoError(t, err)
	tx.ClearPayload()

	tx.QueueUpdate(obj)
	payload, err := tx.SerializePayload(2, true)
	require.NoError(t, err)

	decoded, err := transmitter.DecodePayload(codec, payload)
	require.NoError(t, err)
	require.Len(t, decoded.Frames, 1)
	assert.Equal(t, "same-name", decoded.Frames[0].Instance.(*object.PhysicalObject2D).Name)
}

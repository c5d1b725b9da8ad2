package wire_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solstice-games/syncstep/pkg/wire"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	msg := &wire.Message{
		ClientID: 99,
		Type:     wire.MessageTypeSync,
		Payload:  []byte{1, 2, 3, 4, 5},
	}

	encoded, err := wire.Encode(msg)
	require.NoError(t, err)

	decoded, err := wire.Decode(encoded)
	require.NoError(t, err)

	assert.Equal(t, msg.ClientID, decoded.ClientID)
	assert.Equal(t, msg.Type, decoded.Type)
	assert.Equal(t, msg.Payload, decoded.Payload)
}

func TestEncodeDecodeEmptyPayload(t *testing.T) {
	msg := &wire.Message{ClientID: 1, Type: wire.MessageTypePing}

	encoded, err := wire.Encode(msg)
	require.NoError(t, err)

	decoded, err := wire.Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, wire.MessageTypePing, decoded.Type)
	assert.Empty(t, decoded.Payload)
}

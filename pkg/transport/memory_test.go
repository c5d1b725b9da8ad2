package transport_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solstice-games/syncstep/pkg/transport"
)

func TestMemoryPipePairDeliversBothDirections(t *testing.T) {
	a, b := transport.NewMemoryPipePair(4)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, a.Send(ctx, []byte("ping")))
	got, err := b.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("ping"), got)

	require.NoError(t, b.Send(ctx, []byte("pong")))
	got, err = a.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("pong"), got)
}

func TestMemoryPipeCloseUnblocksReceive(t *testing.T) {
	a, b := transport.NewMemoryPipePair(1)
	require.NoError(t, a.Close())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := b.Receive(ctx)
	assert.Error(t, err)
}

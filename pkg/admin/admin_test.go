package admin_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solstice-games/syncstep/pkg/admin"
	"github.com/solstice-games/syncstep/pkg/object"
	"github.com/solstice-games/syncstep/pkg/serializer"
	"github.com/solstice-games/syncstep/pkg/server"
	"github.com/solstice-games/syncstep/pkg/simulation"
	"github.com/solstice-games/syncstep/pkg/world"
)

func newTestServer(t *testing.T) *server.Server {
	t.Helper()
	codec := serializer.New()
	require.NoError(t, codec.Register(&object.Vector{}, func() object.Instance { return &object.Vector{} }))
	require.NoError(t, codec.Register(&object.PhysicalObject2D{}, func() object.Instance {
		return object.NewPhysicalObject2D(0)
	}))
	engine := simulation.New(simulation.Options{World: world.New()})
	s, err := server.New(server.Options{
		Engine:       engine,
		Codec:        codec,
		TickInterval: 5 * time.Millisecond,
	})
	require.NoError(t, err)
	return s
}

func TestHealthzReturnsOK(t *testing.T) {
	s := admin.New(admin.Options{Port: 0, Server: newTestServer(t)})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRoomsReturnsLobbySummary(t *testing.T) {
	s := admin.New(admin.Options{Port: 0, Server: newTestServer(t)})
	req := httptest.NewRequest(http.MethodGet, "/rooms", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var rooms []struct {
		Name        string `json:"name"`
		PlayerCount int    `json:"playerCount"`
		ObjectCount int    `json:"objectCount"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rooms))
	require.Len(t, rooms, 1)
	assert.Equal(t, server.LobbyRoomName, rooms[0].Name)
}

package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jgirmay/livetrack/pkg/eventstore"
	"github.com/jgirmay/livetrack/pkg/streamtest"
)

func newStreamManager(t *testing.T, srv *streamtest.Server) (*Manager, *eventstore.Store) {
	t.Helper()
	store := eventstore.New()
	cfg := DefaultConfig()
	cfg.URL = srv.URL()
	cfg.ReconnectDelay = 50 * time.Millisecond
	cfg.PingInterval = 20 * time.Millisecond
	cfg.Identity = Identity{UserID: "admin_dashboard", Role: "admin", ClientType: "web", Token: "t0k"}

	m, err := NewManager(cfg, store)
	require.NoError(t, err)
	t.Cleanup(m.Stop)
	return m, store
}

func TestWebSocketSessionLifecycle(t *testing.T) {
	srv := streamtest.NewServer(nil)
	defer srv.Close()

	m, store := newStreamManager(t, srv)
	require.NoError(t, m.Start(context.Background()))
	require.Eventually(t, func() bool { return m.State() == StateConnected }, waitFor, tick)

	auth := srv.Received("authenticate")
	require.Len(t, auth, 1)
	assert.Equal(t, "admin_dashboard", auth[0]["userId"])
	assert.Equal(t, "t0k", auth[0]["token"])

	srv.Broadcast(streamtest.Frame{
		"type": "user_status", "userId": "eng1", "status": "online",
		"userRole": "field_engineer", "clientType": "mobile",
	})
	require.Eventually(t, func() bool { return len(store.Presence()) == 1 }, waitFor, tick)

	require.Eventually(t, func() bool { return len(srv.Received("ping")) > 0 }, waitFor, tick)

	require.NoError(t, m.SendLocation(context.Background(), LocationUpdate{Latitude: 12.9, Longitude: 77.5}))
	require.Eventually(t, func() bool { return len(srv.Received("location_update")) == 1 }, waitFor, tick)

	srv.DropAll()
	require.Eventually(t, func() bool {
		return m.State() == StateConnected && srv.Accepted() == 2
	}, waitFor, tick)
	assert.Equal(t, 1, m.Status().Reconnects)
	assert.Len(t, srv.Received("authenticate"), 2)

	m.Stop()
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 2, srv.Accepted())
}

func TestWebSocketDialFailureRetries(t *testing.T) {
	srv := streamtest.NewServer(nil)
	url := srv.URL()
	srv.Close()

	store := eventstore.New()
	cfg := DefaultConfig()
	cfg.URL = url
	cfg.ReconnectDelay = 20 * time.Millisecond
	cfg.HandshakeTimeout = 200 * time.Millisecond

	m, err := NewManager(cfg, store)
	require.NoError(t, err)
	defer m.Stop()

	require.Error(t, m.Start(context.Background()))
	require.Eventually(t, func() bool { return m.Status().Reconnects >= 2 }, waitFor, tick)
	assert.NotEmpty(t, m.Status().LastError)
	assert.Empty(t, store.Notifications())
}

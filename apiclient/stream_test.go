package apiclient_test

import (
	"context"
	"testing"
	"time"

	apiclient "github.com/Alia5/ghostkey/apiclient"
	"github.com/Alia5/ghostkey/engine"
	api "github.com/Alia5/ghostkey/internal/server/api"
	handler "github.com/Alia5/ghostkey/internal/server/api/handler"
	htesting "github.com/Alia5/ghostkey/internal/testing"
	"github.com/Alia5/ghostkey/keymap"
	"github.com/Alia5/ghostkey/platform/sim"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvents_NotSupportedWithMockTransport(t *testing.T) {
	c := testClient(map[string]string{}, nil)
	_, err := c.Events(context.Background())
	assert.ErrorIs(t, err, apiclient.ErrMockStream)
}

func startInjectServer(t *testing.T, cfg api.ServerConfig) (string, *sim.Platform, *engine.Hub) {
	t.Helper()
	hub := engine.NewHub()
	p, e := htesting.NewSimEngine(t, engine.DefaultConfig(), engine.WithDelegate(hub))
	addr, done := htesting.StartAPIServer(t, cfg, func(r *api.Router, _ *api.Server) {
		r.Register("inject/start", handler.InjectStart(e))
		r.Register("inject/cancel", handler.InjectCancel(e))
		r.Register("inject/status", handler.InjectStatus(e))
		r.RegisterStream("inject/events", handler.InjectEvents(hub))
	})
	t.Cleanup(func() {
		done()
		hub.Close()
	})
	return addr, p, hub
}

func TestEventsFollowSession(t *testing.T) {
	for _, password := range []string{"", "hunter2"} {
		t.Run("password="+password, func(t *testing.T) {
			addr, p, hub := startInjectServer(t, api.ServerConfig{Password: password, RequestTimeout: 5 * time.Second})
			c := apiclient.NewWithPassword(addr, password)

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			stream, err := c.Events(ctx)
			require.NoError(t, err)
			defer stream.Close()
			require.Eventually(t, func() bool { return hub.Subscribers() == 1 }, 2*time.Second, 5*time.Millisecond)

			started, err := c.InjectStart("ok")
			require.NoError(t, err)
			assert.Equal(t, 2, started.Total)

			p.Press(keymap.KeyJ)
			p.Press(keymap.KeyK)

			var got []string
			for len(got) < 4 {
				ev, err := stream.Next()
				require.NoError(t, err)
				got = append(got, ev.Type)
				if ev.Type == "complete" {
					require.NotNil(t, ev.Successes)
					assert.Equal(t, 2, *ev.Successes)
					assert.Equal(t, 2, ev.Current)
				}
			}
			assert.Equal(t, []string{"start", "progress", "progress", "complete"}, got)
			assert.Equal(t, "ok", p.Typed())

			status, err := c.InjectStatus()
			require.NoError(t, err)
			assert.Equal(t, "idle", status.State)
		})
	}
}

func TestEventsCancelledSession(t *testing.T) {
	addr, p, hub := startInjectServer(t, api.ServerConfig{RequestTimeout: 5 * time.Second})
	c := apiclient.New(addr)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	stream, err := c.Events(ctx)
	require.NoError(t, err)
	defer stream.Close()
	require.Eventually(t, func() bool { return hub.Subscribers() == 1 }, 2*time.Second, 5*time.Millisecond)

	_, err = c.InjectStart("long text")
	require.NoError(t, err)
	p.Press(keymap.KeyA)

	res, err := c.InjectCancel()
	require.NoError(t, err)
	assert.True(t, res.Cancelled)

	var last string
	for last != "cancel" {
		ev, err := stream.Next()
		require.NoError(t, err)
		last = ev.Type
		if ev.Type == "cancel" {
			assert.Equal(t, "cancelled", ev.Kind)
		}
	}
	assert.Equal(t, "l", p.Typed())

	res, err = c.InjectCancel()
	require.NoError(t, err)
	assert.False(t, res.Cancelled, "nothing left to cancel")
}

func TestEventsStreamEndsWithContext(t *testing.T) {
	addr, _, hub := startInjectServer(t, api.ServerConfig{RequestTimeout: 5 * time.Second})
	c := apiclient.New(addr)

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := c.Events(ctx)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return hub.Subscribers() == 1 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	_, err = stream.Next()
	assert.Error(t, err)
	assert.Eventually(t, func() bool { return hub.Subscribers() == 0 }, 2*time.Second, 5*time.Millisecond)
}

package main

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClampPercent(t *testing.T) {
	assert.Equal(t, 0, clampPercent(-5))
	assert.Equal(t, 42, clampPercent(42))
	assert.Equal(t, 100, clampPercent(250))
}

func TestTeeProgress(t *testing.T) {
	var a, b []int
	fn := teeProgress(
		func(p int, _ string) { a = append(a, p) },
		nil,
		func(p int, _ string) { b = append(b, p) },
	)
	fn(5, "x")
	fn(10, "y")
	assert.Equal(t, []int{5, 10}, a)
	assert.Equal(t, a, b)
}

func TestProgressHubWebsocket(t *testing.T) {
	hub := NewProgressHub(zerolog.Nop())
	srv := httptest.NewServer(hub)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	hub.Report(10, "Loading fights")
	c, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/progress", nil)
	require.NoError(t, err)
	defer c.CloseNow()

	var got ProgressUpdate
	require.NoError(t, wsjson.Read(ctx, c, &got))
	assert.Equal(t, ProgressUpdate{Percent: 10, Status: "Loading fights"}, got)

	hub.Publish(ProgressUpdate{Percent: 100, Status: "Done!"})
	require.NoError(t, wsjson.Read(ctx, c, &got))
	assert.Equal(t, ProgressUpdate{Percent: 100, Status: "Done!"}, got)

	hub.Close()
	err = wsjson.Read(ctx, c, &got)
	require.Error(t, err)
	assert.Equal(t, websocket.StatusNormalClosure, websocket.CloseStatus(err))
}

func TestProgressHubClosedBeforeConnect(t *testing.T) {
	hub := NewProgressHub(zerolog.Nop())
	hub.Report(100, "Done!")
	hub.Close()

	ch := hub.subscribe()
	p, ok := <-ch
	require.True(t, ok)
	assert.Equal(t, 100, p.Percent)
	_, ok = <-ch
	assert.False(t, ok)

	// Unsubscribing a stream the hub already closed is a no-op.
	hub.unsubscribe(ch)
}

func TestProgressHubSlowClient(t *testing.T) {
	hub := NewProgressHub(zerolog.Nop())
	ch := hub.subscribe()
	for i := 0; i < 100; i++ {
		hub.Report(i, "step")
	}
	assert.Len(t, ch, cap(ch))
	hub.unsubscribe(ch)
	_, ok := <-ch
	assert.True(t, ok)
}

package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Darkness4/debounce-go/debounce"
	"github.com/Darkness4/debounce-go/server"
	"github.com/Darkness4/debounce-go/state"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/require"
)

func TestStateEndpoint(t *testing.T) {
	// Arrange
	st := state.New()
	st.SetGateStatus("build", state.GateStatusPending, nil)
	srv := httptest.NewServer(server.NewHandler(st, server.NewBroadcaster()))
	defer srv.Close()

	// Test
	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	// Assert
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got struct {
		Gates map[string]struct {
			State string `json:"state"`
		} `json:"gates"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Equal(t, "PENDING", got.Gates["build"].State)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := httptest.NewServer(server.NewHandler(state.New(), server.NewBroadcaster()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestUnknownPath(t *testing.T) {
	srv := httptest.NewServer(server.NewHandler(state.New(), server.NewBroadcaster()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/unknown")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestEventsEndpoint(t *testing.T) {
	// Arrange
	b := server.NewBroadcaster()
	srv := httptest.NewServer(server.NewHandler(state.New(), b))
	defer srv.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/events", nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	// Test
	// Publish until the subscription of the handler is registered.
	go func() {
		for ctx.Err() == nil {
			b.OnRun("build", debounce.Run[string]{
				Payload: "a.go",
				Forced:  true,
				Err:     errors.New("fail"),
			})
			time.Sleep(10 * time.Millisecond)
		}
	}()

	// Assert
	var e server.Event
	require.NoError(t, wsjson.Read(ctx, conn, &e))
	require.Equal(t, server.EventRun, e.Type)
	require.Equal(t, "build", e.Gate)
	require.Equal(t, "a.go", e.Payload)
	require.True(t, e.Forced)
	require.Equal(t, "fail", e.Error)
	require.NoError(t, conn.Close(websocket.StatusNormalClosure, ""))
}

func TestBroadcasterUnsubscribe(t *testing.T) {
	b := server.NewBroadcaster()
	events, unsubscribe := b.Subscribe()

	b.OnNotify("build", "a.go")
	e := <-events
	require.Equal(t, server.EventNotify, e.Type)

	unsubscribe()
	unsubscribe()
	b.OnStandDown("build", "a.go")
	_, ok := <-events
	require.False(t, ok)
}

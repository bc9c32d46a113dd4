package notify_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Darkness4/debounce-go/notify"
	"github.com/stretchr/testify/require"
)

type gotifyMessage struct {
	Title    string `json:"title"`
	Message  string `json:"message"`
	Priority int    `json:"priority"`
}

func TestGoNotifier(t *testing.T) {
	// Arrange
	var got gotifyMessage
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/message", r.URL.Path)
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	n := notify.NewGoNotifier(srv.Client(), srv.URL, "secret")

	// Act
	err := n.Notify(context.Background(), "build failed", "", 10)

	// Assert
	require.NoError(t, err)
	require.Equal(t, "Bearer secret", auth)
	require.Equal(t, gotifyMessage{
		Title:    "debounce-go: build failed",
		Message:  "build failed",
		Priority: 10,
	}, got)
}

func TestGoNotifierRejected(t *testing.T) {
	// Arrange
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"Unauthorized"}`))
	}))
	defer srv.Close()
	n := notify.NewGoNotifier(srv.Client(), srv.URL, "wrong")

	// Act
	err := n.Notify(context.Background(), "title", "message", 0)

	// Assert
	require.Error(t, err)
	require.Contains(t, err.Error(), "401")
	require.Contains(t, err.Error(), "Unauthorized")
}

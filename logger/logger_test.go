package logger_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Darkness4/debounce-go/logger"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/require"
)

func TestSetupJSON(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.TraceLevel)
	var buf bytes.Buffer

	logger.Setup(&buf, "warn", true)
	log.Info().Msg("hidden")
	log.Warn().Str("gate", "build").Msg("shown")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "shown", entry["message"])
	require.Equal(t, "build", entry["gate"])
	require.Equal(t, "warn", entry["level"])
}

func TestSetupUnknownLevel(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.TraceLevel)
	var buf bytes.Buffer

	logger.Setup(&buf, "nope", false)

	require.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}

func TestTransport(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.TraceLevel)
	var buf bytes.Buffer
	logger.Setup(&buf, "debug", true)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer srv.Close()
	client := &http.Client{Transport: &logger.Transport{}}

	resp, err := client.Get(srv.URL + "/message")
	require.NoError(t, err)
	resp.Body.Close()

	require.Contains(t, buf.String(), `"message":"http req"`)
	require.Contains(t, buf.String(), `"resp.status":418`)
}

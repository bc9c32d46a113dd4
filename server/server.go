// Package server exposes the state of the gates over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	// Register the pprof handlers.
	_ "net/http/pprof"

	// Register the delta profiles next to the pprof handlers.
	_ "github.com/grafana/pyroscope-go/godeltaprof/http/pprof"

	"github.com/Darkness4/debounce-go/state"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const writeTimeout = 5 * time.Second

// NewHandler returns the status handler:
//
//   - / is the JSON state,
//   - /metrics is the prometheus endpoint,
//   - /events streams the events of b over a websocket,
//   - /debug/pprof/ serves the profiles.
func NewHandler(st *state.State, b *Broadcaster) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		s := st.ReadState()
		data, err := json.MarshalIndent(s, "", "  ")
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write(data); err != nil {
			log.Err(err).Msg("failed to write state")
		}
	})
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/events", func(w http.ResponseWriter, r *http.Request) {
		serveEvents(w, r, b)
	})
	mux.Handle("/debug/pprof/", http.DefaultServeMux)
	return otelhttp.NewHandler(mux, "status")
}

func serveEvents(w http.ResponseWriter, r *http.Request, b *Broadcaster) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.Err(err).Msg("failed to accept websocket connection")
		return
	}
	defer conn.CloseNow()

	events, unsubscribe := b.Subscribe()
	defer unsubscribe()

	// The client is not expected to send anything.
	ctx := conn.CloseRead(r.Context())
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-events:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(wctx, conn, e)
			cancel()
			if err != nil {
				if websocket.CloseStatus(err) != websocket.StatusNormalClosure {
					log.Debug().Err(err).Msg("failed to write event")
				}
				return
			}
		}
	}
}

// ListenAndServe serves handler on addr until ctx is done.
func ListenAndServe(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Err(err).Msg("failed to shutdown http server")
		}
	}()
	log.Info().Str("listenAddress", addr).Msg("listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

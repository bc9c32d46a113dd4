package logger

import (
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// Transport logs the outgoing requests at debug level.
type Transport struct {
	Transport http.RoundTripper
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	log.Debug().
		Str("req.method", req.Method).
		Str("req.url", req.URL.Redacted()).
		Msg("http req")

	rt := t.Transport
	if rt == nil {
		rt = http.DefaultTransport
	}
	resp, err := rt.RoundTrip(req)
	if err != nil {
		log.Debug().
			Err(err).
			Str("req.method", req.Method).
			Str("req.url", req.URL.Redacted()).
			Dur("elapsed", time.Since(start)).
			Msg("http req failed")
		return nil, err
	}

	log.Debug().
		Int("resp.status", resp.StatusCode).
		Str("req.url", req.URL.Redacted()).
		Dur("elapsed", time.Since(start)).
		Msg("http resp")
	return resp, nil
}

package bhost

import (
	"context"
	"net/http"
	"time"
)

// TimeoutConfig holds timeout configuration for the HTTP server.
//
// Exchanges stream in both directions, so the server does not cut reads short while the handler is still
// producing: read and write timeouts both span the whole exchange. The per-exchange context deadline is
// what stops handlers; the server timeouts are the outer bound.
type TimeoutConfig struct {
	// ExchangeTimeout is the longest a single exchange may take.
	ExchangeTimeout time.Duration
}

// ServerTimeouts returns the http.Server timeout values for the exchange timeout.
func (tc TimeoutConfig) ServerTimeouts() (readHeaderTimeout, readTimeout, writeTimeout, idleTimeout time.Duration) {
	timeout := tc.ExchangeTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	readHeaderTimeout = min(timeout, 5*time.Second)
	readTimeout = timeout
	// leave room to write the failure response when the exchange deadline hits
	writeTimeout = timeout + time.Second
	idleTimeout = timeout

	return
}

// withExchangeDeadline bounds the context of every exchange.
func withExchangeDeadline(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if timeout <= 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RemainingTime returns the duration until the exchange deadline, 0 without one or when it passed.
func RemainingTime(ctx context.Context) time.Duration {
	deadline, ok := ctx.Deadline()
	if !ok {
		return 0
	}
	remaining := time.Until(deadline)
	if remaining < 0 {
		return 0
	}
	return remaining
}

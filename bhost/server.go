package bhost

import (
	"context"
	"fmt"
	"net/http"

	"github.com/advdv/bpipe"
	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

const (
	healthPath  = "/healthz"
	metricsPath = "/metrics"
)

// ServerConfig holds optional configuration for the HTTP server.
type ServerConfig struct {
	HealthHandler func(http.ResponseWriter, *http.Request)
}

// ServerParams holds the dependencies for creating an HTTP server.
type ServerParams struct {
	fx.In

	Env        Environment
	Runner     *bpipe.Runner
	Metrics    *Metrics
	Logger     *zap.Logger
	TracerProv trace.TracerProvider
	Propagator propagation.TextMapPropagator
}

// NewServer creates the HTTP server. Every path except the health and metrics endpoints is an exchange
// with the pipeline. Cleartext HTTP/2 is accepted next to HTTP/1.1 so clients can stream both bodies
// and send request trailers.
func NewServer(params ServerParams, cfg ServerConfig) *http.Server {
	healthHandler := cfg.HealthHandler
	if healthHandler == nil {
		healthHandler = defaultHealthHandler
	}

	r := chi.NewRouter()
	r.Use(withExchange(params.Logger))
	r.Use(withExchangeDeadline(params.Env.exchangeTimeout()))

	r.Get(healthPath, healthHandler)
	r.Method(http.MethodGet, metricsPath, params.Metrics.Handler())
	r.Handle("/*", params.Runner)

	// Add tracing with explicit provider injection (no globals).
	handler := withTracing(params.TracerProv, params.Propagator, params.Env.serviceName(), healthPath, metricsPath)(r)

	tc := TimeoutConfig{ExchangeTimeout: params.Env.exchangeTimeout()}
	readHeaderTimeout, readTimeout, writeTimeout, idleTimeout := tc.ServerTimeouts()

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", params.Env.port()),
		Handler:           h2c.NewHandler(handler, &http2.Server{IdleTimeout: idleTimeout}),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}
}

// startServerHook registers lifecycle hooks for the HTTP server.
func startServerHook(lc fx.Lifecycle, server *http.Server, p *bpipe.Pipeline, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("starting server", zap.String("addr", server.Addr), zap.Strings("stages", p.Stages()))
			go func() {
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server error", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("stopping server")
			return server.Shutdown(ctx)
		},
	})
}

func defaultHealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

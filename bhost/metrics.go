package bhost

import (
	"context"
	"net/http"
	"time"

	"github.com/advdv/bpipe"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors of a host. They live in their own registry so hosts in the same process
// (tests mostly) do not collide.
type Metrics struct {
	registry *prometheus.Registry

	stageCalls    *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	bridgeEvents  *prometheus.CounterVec
}

// NewMetrics inits the collectors and registers them.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		stageCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "bpipe_stage_calls_total", Help: "stage invocations by outcome."},
			[]string{"stage", "outcome"},
		),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bpipe_stage_duration_seconds",
				Help:    "time until a stage returned its outcome.",
				Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 30},
			},
			[]string{"stage"},
		),
		bridgeEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "bpipe_bridge_events_total", Help: "abnormal exchange endings seen by the bridge."},
			[]string{"kind"},
		),
	}

	m.registry.MustRegister(m.stageCalls, m.stageDuration, m.bridgeEvents)

	return m
}

// Instrument returns a stage instrument that counts and times every stage.
func (m *Metrics) Instrument() bpipe.StageInstrument {
	return func(stage string, h bpipe.Handler) bpipe.Handler {
		return bpipe.HandlerFunc(func(ctx context.Context, r *bpipe.Request) (*bpipe.Response, error) {
			start := time.Now()

			resp, err := h.Handle(ctx, r)

			outcome := "ok"
			if err != nil {
				outcome = "failure"
			}

			m.stageCalls.WithLabelValues(stage, outcome).Inc()
			m.stageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())

			return resp, err
		})
	}
}

// Logger decorates a bridge logger so that every event it reports is also counted.
func (m *Metrics) Logger(next bpipe.Logger) bpipe.Logger {
	return metricsLogger{m: m, next: next}
}

// Handler serves the collected metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the registry, e.g. to gather in tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

type metricsLogger struct {
	m    *Metrics
	next bpipe.Logger
}

func (l metricsLogger) LogHandlerFailure(err error) {
	l.m.bridgeEvents.WithLabelValues("handler_failure").Inc()
	l.next.LogHandlerFailure(err)
}

func (l metricsLogger) LogInboundBodyError(err error) {
	l.m.bridgeEvents.WithLabelValues("inbound_body_error").Inc()
	l.next.LogInboundBodyError(err)
}

func (l metricsLogger) LogTruncatedResponse(err error) {
	l.m.bridgeEvents.WithLabelValues("truncated_response").Inc()
	l.next.LogTruncatedResponse(err)
}

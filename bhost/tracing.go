package bhost

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/advdv/bpipe"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const tracerName = "github.com/advdv/bpipe/bhost"

// NewTracerProvider creates and configures the OpenTelemetry TracerProvider.
// Supported exporters via BP_OTEL_EXPORTER: "none" (default) and "stdout".
// Shutdown is handled automatically via fx.Lifecycle.
func NewTracerProvider(lc fx.Lifecycle, env Environment) (trace.TracerProvider, error) {
	exporter, err := newExporter(env.otelExporter())
	if err != nil {
		return nil, err
	}

	if exporter == nil {
		return noop.NewTracerProvider(), nil
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter)),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(env.serviceName()),
		)),
	)

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return tp.Shutdown(ctx)
		},
	})

	return tp, nil
}

// NewPropagator creates the W3C TraceContext + Baggage composite propagator.
func NewPropagator() propagation.TextMapPropagator {
	return propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	)
}

// newExporter creates a span exporter based on the exporter type. A nil exporter disables tracing.
func newExporter(exporterType string) (sdktrace.SpanExporter, error) {
	switch exporterType {
	case "none", "":
		return nil, nil //nolint:nilnil
	case "stdout":
		// stdout carries the output of one-shot exchanges
		return stdouttrace.New(stdouttrace.WithWriter(os.Stderr), stdouttrace.WithPrettyPrint())
	default:
		return nil, fmt.Errorf("unsupported BP_OTEL_EXPORTER: %q (supported: none, stdout)", exporterType)
	}
}

// TraceStages returns an instrument that runs every pipeline stage in its own span. A stage span ends
// when the stage returned its outcome, not when its body is drained.
func TraceStages(tp trace.TracerProvider) bpipe.StageInstrument {
	tracer := tp.Tracer(tracerName)

	return func(stage string, h bpipe.Handler) bpipe.Handler {
		return bpipe.HandlerFunc(func(ctx context.Context, r *bpipe.Request) (*bpipe.Response, error) {
			ctx, span := tracer.Start(ctx, "stage "+stage, trace.WithAttributes(attribute.String("bpipe.stage", stage)))
			defer span.End()

			resp, err := h.Handle(ctx, r)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				Log(ctx).Debug("stage failed", zap.String("stage", stage), zap.Error(err),
					zap.Duration("remaining", RemainingTime(ctx)))

				return resp, err
			}

			span.SetAttributes(attribute.Int("http.response.status_code", resp.Status))
			return resp, nil
		})
	}
}

// withTracing wraps the handler with otelhttp for automatic span creation.
// Requests to excludePaths are not traced.
// The TracerProvider and Propagator are explicitly injected to avoid global state.
func withTracing(
	tp trace.TracerProvider, prop propagation.TextMapPropagator, serviceName string, excludePaths ...string,
) func(http.Handler) http.Handler {
	excludeSet := make(map[string]struct{}, len(excludePaths))
	for _, p := range excludePaths {
		excludeSet[p] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, serviceName,
			otelhttp.WithTracerProvider(tp),
			otelhttp.WithPropagators(prop),
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
			otelhttp.WithFilter(func(r *http.Request) bool {
				_, excluded := excludeSet[r.URL.Path]
				return !excluded
			}),
		)
	}
}

// NewHTTPTransport creates an HTTP RoundTripper instrumented with OpenTelemetry tracing. Remote units
// use it so their exchanges become child spans of the stage that called them.
func NewHTTPTransport(tp trace.TracerProvider, prop propagation.TextMapPropagator) http.RoundTripper {
	return otelhttp.NewTransport(http.DefaultTransport,
		otelhttp.WithTracerProvider(tp),
		otelhttp.WithPropagators(prop),
	)
}

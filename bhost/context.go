package bhost

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ctxKey is the key type for context values.
type ctxKey int

const ctxKeyExchange ctxKey = iota

// exchangeDep holds exchange-scoped dependencies available via context.
type exchangeDep struct {
	id     string
	logger *zap.Logger
}

var nopLogger = zap.NewNop()

// WithExchange starts an exchange scope: it assigns a fresh exchange id and makes logger available
// through [Log].
func WithExchange(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKeyExchange, &exchangeDep{id: uuid.NewString(), logger: logger})
}

// withExchange starts an exchange scope for every request.
func withExchange(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := WithExchange(r.Context(), logger)
			w.Header().Set("X-Exchange-Id", ExchangeID(ctx))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ExchangeID returns the id of the current exchange, or "" outside of one.
func ExchangeID(ctx context.Context) string {
	d, ok := ctx.Value(ctxKeyExchange).(*exchangeDep)
	if !ok {
		return ""
	}
	return d.id
}

// Log returns a zap logger correlated with the current exchange and trace. Outside of an exchange it
// returns a no-op logger.
func Log(ctx context.Context) *zap.Logger {
	d, ok := ctx.Value(ctxKeyExchange).(*exchangeDep)
	if !ok {
		return nopLogger
	}

	return d.logger.With(append([]zap.Field{zap.String("exchange_id", d.id)}, traceFields(ctx)...)...)
}

// Span returns the current trace span from the context.
func Span(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}

// traceFields extracts trace_id and span_id from the context for log correlation.
func traceFields(ctx context.Context) []zap.Field {
	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return nil
	}
	sc := span.SpanContext()
	return []zap.Field{
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	}
}

package bpipe

import "context"

// Middleware wraps exactly one downstream handler. It forwards the request, never consumes a body itself and
// passes the downstream outcome through.
type Middleware func(Handler) Handler

// Chain takes the inner handler h and wraps it with middleware. The order is that of the Gorilla and Chi router. That
// is: the middleware provided first is called first and is the "outer" most wrapping, the middleware provided last
// will be the "inner most" wrapping (closest to the handler).
func Chain(h Handler, m ...Middleware) Handler {
	if len(m) < 1 {
		return h
	}

	wrapped := h
	for i := len(m) - 1; i >= 0; i-- {
		wrapped = m[i](wrapped)
	}

	return wrapped
}

// EnterFunc observes a request before it is forwarded.
type EnterFunc func(ctx context.Context, r *Request)

// ExitFunc observes the downstream outcome. It cannot change it.
type ExitFunc func(ctx context.Context, r *Request, resp *Response, err error)

// Bracket returns middleware that calls enter before forwarding and exit once the downstream call is over,
// on every path out of it: success, failure or panic. Either function may be nil.
func Bracket(enter EnterFunc, exit ExitFunc) Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, r *Request) (resp *Response, err error) {
			if enter != nil {
				enter(ctx, r)
			}

			if exit != nil {
				defer func() { exit(ctx, r, resp, err) }()
			}

			return next.Handle(ctx, r)
		})
	}
}

// Passthrough returns middleware that forwards without any effect of its own.
func Passthrough() Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, r *Request) (*Response, error) {
			return next.Handle(ctx, r)
		})
	}
}

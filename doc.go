// Package bpipe provides a streaming handler pipeline with a host bridge for HTTP-shaped traffic.
//
// # Overview
//
// bpipe chains independently built handlers into a single effective handler and drives it from a real
// transport. Request and response bodies are streams of frames that flow through bounded channels, so a
// handler can start responding before its input has fully arrived and a slow reader stalls its writer
// instead of growing memory.
//
// A minimal example:
//
//	p := bpipe.NewBuilder().
//	    Use("logging", logging).
//	    Build(bpipe.HandlerFunc(func(ctx context.Context, r *bpipe.Request) (*bpipe.Response, error) {
//	        return bpipe.NewResponse(http.StatusOK, r.Header.Clone(), r.Body), nil
//	    }))
//
//	http.ListenAndServe(":8080", bpipe.ToStd(p, bpipe.NewStdLogger(nil)))
//
// # Frames and Bodies
//
// A body is a lazy, finite sequence of [Frame] values: zero or more data frames followed by at most one
// trailers frame. A body that ends without trailers has an empty trailer set.
//
// [NewChannel] creates the bounded conduit between the task producing a body and the task consuming it:
//
//   - [Producer.Send] blocks while the channel is full and fails once the consumer is gone
//   - [Consumer.Receive] blocks until a frame arrives and returns io.EOF at the end of body
//   - closing either end is the only way to cancel the other
//
// A [Body] wraps a consumer and may be consumed once. Passing a body to the next stage moves it; consuming
// it a second time fails with [ErrProtocolViolation].
//
// # Handler Signature
//
// Every stage implements [Handler]:
//
//	Handle(ctx context.Context, r *bpipe.Request) (*bpipe.Response, error)
//
// The error is the failure outcome. A handler that already returned a response cannot fail the exchange any
// more; a failure while producing its body ends the body abruptly (see [Producer.CloseWithError]).
//
// # Error Handling
//
// Handlers fail with a coded [*Error] so the host bridge can pick the status of the failure response:
//
//	return nil, bpipe.NewError(bpipe.CodeBadRequest, errors.New("invalid input"))
//
// Other errors become 500 Internal Server Error. Middleware is expected to pass errors through untouched;
// only the bridge turns them into responses.
//
// # Middleware
//
// [Middleware] wraps exactly one downstream handler. [Bracket] builds the common shape of middleware that
// observes a call without changing it: enter runs before forwarding and exit runs on every way out of the
// downstream call, including panics.
//
//	logging := bpipe.Bracket(
//	    func(ctx context.Context, r *bpipe.Request) { log.Printf("enter %s", r.URL) },
//	    func(ctx context.Context, r *bpipe.Request, resp *bpipe.Response, err error) { log.Printf("exit") },
//	)
//
// # Pipelines
//
// A [Builder] folds named middleware around a terminal handler. The first middleware used is the outermost:
// its enter fires first and its exit fires last. Instruments registered with [WithInstrument] wrap every
// stage and are how tracing and metrics observe the pipeline.
//
// # Host Bridge
//
// A [Runner] adapts a transport exchange to a handler. [Runner.Run] runs three goroutines for one exchange:
// one pumps the inbound body into a fresh channel, one invokes the handler, and one drains the response body
// into the [Sink]. Response headers are written as soon as the handler returns. The runner also implements
// http.Handler; [ToStd] is a shorthand for that.
package bpipe

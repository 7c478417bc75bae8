package bpipe

import (
	"context"
	"io"
	"net/http"
	"net/url"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"
)

// FrameSource yields the frames of an inbound body, returning io.EOF after the last one. Next must return
// once its context is done: the runner cancels it when the exchange is over and waits for Next to return.
type FrameSource interface {
	Next(ctx context.Context) (Frame, error)
}

// Sink accepts an outbound response. WriteHeader is called exactly once before any body frame.
type Sink interface {
	WriteHeader(status int, h Header) error
	WriteData(p []byte) error
	WriteTrailers(h Header) error
}

// Inbound is a request as the transport presents it, with a body that may still be arriving.
type Inbound struct {
	Method string
	URL    *url.URL
	Header Header
	Body   FrameSource
}

// RunnerOption configures a [Runner].
type RunnerOption func(*Runner)

// WithCapacity sets the capacity of the inbound frame channel.
func WithCapacity(n int) RunnerOption {
	return func(r *Runner) { r.capacity = n }
}

// WithChunkSize sets the read size used when turning a net/http request body into data frames.
func WithChunkSize(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.chunkSize = n
		}
	}
}

// Runner bridges a transport exchange to a handler. It pumps the inbound body into a frame channel, invokes
// the handler and drains the response body into the sink, all concurrently.
type Runner struct {
	handler   Handler
	logs      Logger
	capacity  int
	chunkSize int
}

// NewRunner inits a runner for h.
func NewRunner(h Handler, logs Logger, opts ...RunnerOption) *Runner {
	if logs == nil {
		logs = NewStdLogger(nil)
	}

	r := &Runner{handler: h, logs: logs, capacity: DefaultCapacity, chunkSize: 32 * 1024}
	for _, opt := range opts {
		opt(r)
	}

	return r
}

// failure marks an error as the handler's outcome, as opposed to a bridging error.
type failure struct{ error }

func (f failure) Unwrap() error { return f.error }

// Run drives a single exchange to completion. Response headers reach the sink as soon as the handler returns,
// independent of body completion. A handler failure is mapped onto a failure response and returned. A response
// body that fails after the headers were written is returned marked [ErrBodyTruncated].
//
// The exchange is over once the response is written. Run does not wait for the rest of an inbound body nobody
// reads: the source is cancelled and Run only waits for its pending Next call to return.
func (r *Runner) Run(ctx context.Context, in Inbound, sink Sink) error {
	prod, cons := NewChannel(r.capacity)
	req := NewRequest(in.Method, in.URL, in.Header, NewBody(cons))

	pctx, stopPump := context.WithCancel(ctx)
	defer stopPump()

	pumped := make(chan struct{})
	go func() {
		defer close(pumped)
		r.pump(pctx, in.Body, prod)
	}()

	respc := make(chan *Response, 1)
	grp, gctx := errgroup.WithContext(ctx)

	grp.Go(func() error {
		resp, err := r.invoke(gctx, req)
		if err != nil {
			return failure{err}
		}

		respc <- resp
		return nil
	})

	grp.Go(func() error {
		select {
		case resp := <-respc:
			return r.drain(gctx, resp, sink)
		case <-gctx.Done():
			return nil
		}
	})

	err := grp.Wait()

	// nothing reads the request body any more
	stopPump()
	cons.Close()

	defer func() { <-pumped }()

	var hf failure
	switch {
	case err == nil:
		return nil
	case errors.As(err, &hf):
		r.logs.LogHandlerFailure(hf.error)
		if werr := writeFailure(sink, hf.error); werr != nil {
			return errors.CombineErrors(hf.error, errors.Wrap(werr, "write failure response"))
		}

		return hf.error
	default:
		r.logs.LogTruncatedResponse(err)
		return errors.Mark(err, ErrBodyTruncated)
	}
}

// invoke calls the handler and enforces a single outcome. A panic is turned into an internal error since it
// would otherwise take down the process from a goroutine the transport cannot recover.
func (r *Runner) invoke(ctx context.Context, req *Request) (resp *Response, err error) {
	defer func() {
		if e := recover(); e != nil {
			resp, err = nil, Errorf(CodeInternalServerError, "handler panicked: %v", e)
		}
	}()

	resp, err = r.handler.Handle(ctx, req)
	switch {
	case err != nil:
		if resp != nil {
			resp.Body.release()
		}

		return nil, err
	case resp == nil:
		return nil, errors.Wrap(ErrProtocolViolation, "handler returned neither a response nor an error")
	case resp.Body == nil:
		resp.Body = EmptyBody()
	}

	return resp, nil
}

// pump feeds the inbound body into the producer, preserving order and forwarding trailers last. A failing
// source closes the channel as a transport closure so the handler sees end of body instead of hanging. A
// source that fails because the exchange ended is not an inbound error.
func (r *Runner) pump(ctx context.Context, src FrameSource, prod *Producer) {
	if src == nil {
		prod.Close()
		return
	}

	for {
		f, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			prod.Close()
			return
		} else if err != nil {
			if ctx.Err() == nil {
				r.logs.LogInboundBodyError(err)
			}

			prod.CloseWithError(errors.Mark(err, ErrTransportClosed))
			return
		}

		if err := prod.Send(ctx, f); err != nil {
			// the handler let go of the body, or the exchange is over
			prod.CloseWithError(errors.Mark(err, ErrTransportClosed))
			return
		}

		if f.IsTrailers() {
			prod.Close()
			return
		}
	}
}

// drain releases the response headers and then copies the response body into the sink frame by frame.
func (r *Runner) drain(ctx context.Context, resp *Response, sink Sink) error {
	if err := sink.WriteHeader(resp.Status, resp.Header); err != nil {
		resp.Body.release()
		return errors.Wrap(err, "write header")
	}

	cons, err := resp.Body.Consume()
	if err != nil {
		return err
	}

	defer cons.Close()

	for {
		f, err := cons.Receive(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		} else if err != nil {
			return errors.Wrap(err, "receive response frame")
		}

		if f.IsTrailers() {
			if err := sink.WriteTrailers(f.Trailers()); err != nil {
				return errors.Wrap(err, "write trailers")
			}

			continue
		}

		if err := sink.WriteData(f.Data()); err != nil {
			return errors.Wrap(err, "write data")
		}
	}
}

// writeFailure renders the failure response. Nothing the handler produced is part of it.
func writeFailure(sink Sink, err error) error {
	status := StatusOf(err)

	h := Header{}
	h.Set("Content-Type", "text/plain; charset=utf-8")
	h.Set("X-Content-Type-Options", "nosniff")

	if err := sink.WriteHeader(status, h); err != nil {
		return err
	}

	return sink.WriteData([]byte(http.StatusText(status) + "\n"))
}

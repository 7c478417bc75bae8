package bhost

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/advdv/bpipe"
	"go.uber.org/zap"
)

// EchoBody is the request body of the echo exchange.
const EchoBody = "Hello from the HTTP P3 runner!"

// EchoInbound is the fixed exchange run by "bpipe run": a GET of http://localhost/ with one header, a
// short body and one trailer.
func EchoInbound() bpipe.Inbound {
	return bpipe.Inbound{
		Method: http.MethodGet,
		URL:    &url.URL{Scheme: "http", Host: "localhost", Path: "/"},
		Header: bpipe.Header{"X-Test": {"hello"}},
		Body: framesOf(
			bpipe.DataFrame([]byte(EchoBody)),
			bpipe.TrailersFrame(bpipe.Header{"X-Trailer": {"test"}}),
		),
	}
}

// TextInbound is an exchange that posts text as a plain-text body.
func TextInbound(text string) bpipe.Inbound {
	return bpipe.Inbound{
		Method: http.MethodPost,
		URL:    &url.URL{Scheme: "http", Host: "localhost", Path: "/"},
		Header: bpipe.Header{"Content-Type": {"text/plain; charset=utf-8"}},
		Body:   framesOf(bpipe.DataFrame([]byte(text))),
	}
}

// Exchange runs a single exchange in its own exchange scope and returns what the pipeline answered. The
// error is the handler's failure, or a truncated response body.
func Exchange(ctx context.Context, logger *zap.Logger, runner *bpipe.Runner, in bpipe.Inbound) (*Result, error) {
	ctx = WithExchange(ctx, logger)
	Log(ctx).Debug("one-shot exchange", zap.String("method", in.Method), zap.Stringer("url", in.URL))

	res := &Result{}
	err := runner.Run(ctx, in, res)

	return res, err
}

// Result records a response as the bridge wrote it.
type Result struct {
	mu       sync.Mutex
	status   int
	header   bpipe.Header
	body     bytes.Buffer
	trailers bpipe.Header
}

// WriteHeader implements [bpipe.Sink].
func (r *Result) WriteHeader(status int, h bpipe.Header) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.status, r.header = status, h.Clone()
	return nil
}

// WriteData implements [bpipe.Sink].
func (r *Result) WriteData(p []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.body.Write(p)
	return err
}

// WriteTrailers implements [bpipe.Sink].
func (r *Result) WriteTrailers(h bpipe.Header) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.trailers = h.Clone()
	return nil
}

// Status returns the response status.
func (r *Result) Status() int { r.mu.Lock(); defer r.mu.Unlock(); return r.status }

// Header returns the response header.
func (r *Result) Header() bpipe.Header { r.mu.Lock(); defer r.mu.Unlock(); return r.header }

// Body returns the response body.
func (r *Result) Body() string { r.mu.Lock(); defer r.mu.Unlock(); return r.body.String() }

// Trailers returns the response trailers, nil when the body ended without any.
func (r *Result) Trailers() bpipe.Header { r.mu.Lock(); defer r.mu.Unlock(); return r.trailers }

type frames []bpipe.Frame

func framesOf(fs ...bpipe.Frame) *frames {
	f := frames(fs)
	return &f
}

func (f *frames) Next(context.Context) (bpipe.Frame, error) {
	if len(*f) == 0 {
		return bpipe.Frame{}, io.EOF
	}

	next := (*f)[0]
	*f = (*f)[1:]

	return next, nil
}

var _ bpipe.Sink = &Result{}

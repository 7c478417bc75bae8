package bpipe

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
)

// ToStd converts a handler into a standard library http.Handler that streams both bodies.
func ToStd(h Handler, logs Logger, opts ...RunnerOption) http.Handler {
	return NewRunner(h, logs, opts...)
}

// ServeHTTP implements http.Handler. A response body that fails after the headers were sent aborts the
// handler so the server resets the connection instead of ending the body cleanly.
func (r *Runner) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	u := *req.URL
	if u.Host == "" {
		u.Host = req.Host
	}

	if u.Scheme == "" {
		u.Scheme = "http"
		if req.TLS != nil {
			u.Scheme = "https"
		}
	}

	sink := newHTTPSink(w)
	src := newHTTPSource(req, sink.rc, r.chunkSize)
	defer src.release()

	in := Inbound{
		Method: req.Method,
		URL:    &u,
		Header: req.Header.Clone(),
		Body:   src,
	}

	// HTTP/1 servers stop reading the request body once the response starts unless asked not to
	if err := sink.rc.EnableFullDuplex(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		r.logs.LogInboundBodyError(err)
	}

	err := r.Run(req.Context(), in, sink)
	if errors.Is(err, ErrBodyTruncated) {
		panic(http.ErrAbortHandler)
	}
}

// httpSource reads a net/http request body as data frames, followed by the trailers once the body is done.
// Cancelling the context of a pending Next expires the connection's read deadline, which is the only way to
// interrupt a blocked body read.
type httpSource struct {
	req       *http.Request
	rc        *http.ResponseController
	chunkSize int
	eof       bool

	stop    func() bool
	aborted chan struct{}
}

func newHTTPSource(req *http.Request, rc *http.ResponseController, chunkSize int) *httpSource {
	return &httpSource{
		req:       req,
		rc:        rc,
		chunkSize: chunkSize,
		eof:       req.Body == nil || req.Body == http.NoBody,
		aborted:   make(chan struct{}),
	}
}

func (s *httpSource) Next(ctx context.Context) (Frame, error) {
	if !s.eof && s.stop == nil {
		s.stop = context.AfterFunc(ctx, s.abort)
	}

	for !s.eof {
		buf := make([]byte, s.chunkSize)

		n, err := s.req.Body.Read(buf)
		if errors.Is(err, io.EOF) {
			s.eof = true
			s.release()
		} else if err != nil {
			return Frame{}, errors.Wrap(err, "read request body")
		}

		if n > 0 {
			return DataFrame(buf[:n]), nil
		}
	}

	// declared trailers that never arrived stay in the map without values
	tr := Header(lo.OmitBy(s.req.Trailer, func(_ string, vs []string) bool { return len(vs) == 0 }))
	s.req.Trailer = nil

	if len(tr) > 0 {
		return TrailersFrame(tr), nil
	}

	return Frame{}, io.EOF
}

func (s *httpSource) abort() {
	defer close(s.aborted)

	if err := s.rc.SetReadDeadline(time.Now()); err != nil {
		_ = s.req.Body.Close()
	}
}

// release makes sure no abort runs once the body is done or the handler returned.
func (s *httpSource) release() {
	if s.stop == nil {
		return
	}

	if !s.stop() {
		<-s.aborted
		if s.eof {
			// the body is complete, so the connection may still serve the next request
			_ = s.rc.SetReadDeadline(time.Time{})
		}
	}
	s.stop = nil
}

// httpSink writes to a net/http response writer, flushing after every write so headers and frames are not
// held back by the server's buffering.
type httpSink struct {
	w  http.ResponseWriter
	rc *http.ResponseController
}

func newHTTPSink(w http.ResponseWriter) *httpSink {
	return &httpSink{w: w, rc: http.NewResponseController(w)}
}

func (s *httpSink) WriteHeader(status int, h Header) error {
	dst := s.w.Header()
	for k, vs := range h {
		dst[k] = append(dst[k], vs...)
	}

	s.w.WriteHeader(status)

	return s.flush()
}

func (s *httpSink) WriteData(p []byte) error {
	if _, err := s.w.Write(p); err != nil {
		return err
	}

	return s.flush()
}

func (s *httpSink) WriteTrailers(h Header) error {
	dst := s.w.Header()
	for k, vs := range h {
		dst[http.TrailerPrefix+k] = append(dst[http.TrailerPrefix+k], vs...)
	}

	return nil
}

func (s *httpSink) flush() error {
	if err := s.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return err
	}

	return nil
}

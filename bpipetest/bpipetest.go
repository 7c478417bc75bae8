// Package bpipetest provides test helpers for code built on bpipe: in-memory frame sources and a sink that
// records what the bridge wrote.
package bpipetest

import (
	"context"
	"io"
	"sync"

	"github.com/advdv/bpipe"
)

// Source yields fixed frames, optionally failing with Err after the last one.
type Source struct {
	mu     sync.Mutex
	frames []bpipe.Frame
	Err    error
}

// NewSource creates a source that yields frames and then io.EOF.
func NewSource(frames ...bpipe.Frame) *Source {
	return &Source{frames: frames}
}

// Next implements [bpipe.FrameSource].
func (s *Source) Next(_ context.Context) (bpipe.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.frames) == 0 {
		if s.Err != nil {
			return bpipe.Frame{}, s.Err
		}
		return bpipe.Frame{}, io.EOF
	}

	f := s.frames[0]
	s.frames = s.frames[1:]

	return f, nil
}

// Sink records everything written to it. Headers is closed once WriteHeader was called.
type Sink struct {
	mu       sync.Mutex
	status   int
	header   bpipe.Header
	frames   []bpipe.Frame
	trailers bpipe.Header

	headersOnce sync.Once
	headers     chan struct{}
}

// NewSink creates an empty recording sink.
func NewSink() *Sink {
	return &Sink{headers: make(chan struct{})}
}

// WriteHeader implements [bpipe.Sink].
func (s *Sink) WriteHeader(status int, h bpipe.Header) error {
	s.mu.Lock()
	s.status, s.header = status, h.Clone()
	s.mu.Unlock()

	s.headersOnce.Do(func() { close(s.headers) })

	return nil
}

// WriteData implements [bpipe.Sink].
func (s *Sink) WriteData(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.frames = append(s.frames, bpipe.DataFrame(append([]byte(nil), p...)))

	return nil
}

// WriteTrailers implements [bpipe.Sink].
func (s *Sink) WriteTrailers(h bpipe.Header) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.trailers = h.Clone()
	s.frames = append(s.frames, bpipe.TrailersFrame(s.trailers))

	return nil
}

// Headers is closed once the response headers were written.
func (s *Sink) Headers() <-chan struct{} { return s.headers }

// Status returns the written status, 0 if none.
func (s *Sink) Status() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.status
}

// Header returns the written response header.
func (s *Sink) Header() bpipe.Header {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.header
}

// Frames returns the written frames in order, trailers included.
func (s *Sink) Frames() []bpipe.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]bpipe.Frame(nil), s.frames...)
}

// Body returns the concatenated data frames.
func (s *Sink) Body() string {
	return string(bpipe.Collected{Frames: s.Frames()}.Bytes())
}

// Trailers returns the written trailer set, nil if none was written.
func (s *Sink) Trailers() bpipe.Header {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.trailers
}

var (
	_ bpipe.FrameSource = &Source{}
	_ bpipe.Sink        = &Sink{}
)

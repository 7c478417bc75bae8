package bpipe

import (
	"context"
	"io"
	"sync"

	"github.com/cockroachdb/errors"
)

// DefaultCapacity is the number of frames a channel buffers before the producer blocks.
const DefaultCapacity = 1

// NewChannel creates a bounded, ordered frame channel and returns its two ends. A slow consumer stalls the
// producer once capacity frames are in flight. A negative capacity selects [DefaultCapacity].
func NewChannel(capacity int) (*Producer, *Consumer) {
	if capacity < 0 {
		capacity = DefaultCapacity
	}

	st := &chanState{
		frames: make(chan Frame, capacity),
		gone:   make(chan struct{}),
	}

	return &Producer{st: st}, &Consumer{st: st}
}

type chanState struct {
	frames chan Frame
	gone   chan struct{} // closed when the consumer end is dropped

	// cause is written before frames is closed and read after observing the close.
	cause error

	closeOnce sync.Once
	goneOnce  sync.Once
}

// Producer is the sending end of a frame channel. It has a single owner.
type Producer struct {
	st       *chanState
	closed   bool
	terminal bool
}

// Send enqueues f, blocking while the channel is full. It fails with [ErrTransportClosed] when the consumer
// has been dropped and with [ErrProtocolViolation] when sending after the trailers frame or after Close.
func (p *Producer) Send(ctx context.Context, f Frame) error {
	switch {
	case p.closed:
		return errors.Wrap(ErrProtocolViolation, "send on closed channel")
	case p.terminal:
		return errors.Wrap(ErrProtocolViolation, "frame sent after trailers")
	}

	select {
	case <-p.st.gone:
		return errors.Wrap(ErrTransportClosed, "consumer dropped")
	default:
	}

	select {
	case p.st.frames <- f:
		p.terminal = f.IsTrailers()
		return nil
	case <-p.st.gone:
		return errors.Wrap(ErrTransportClosed, "consumer dropped")
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "send frame")
	}
}

// Close signals a clean end of body. It is safe to call more than once.
func (p *Producer) Close() {
	p.CloseWithError(nil)
}

// CloseWithError closes the channel abruptly. A cause marked with [ErrTransportClosed] is observed by the
// consumer as a clean end of body; any other cause is returned from [Consumer.Receive] as a terminal error.
// Only the first close takes effect.
func (p *Producer) CloseWithError(cause error) {
	p.closed = true
	p.st.closeOnce.Do(func() {
		p.st.cause = cause
		close(p.st.frames)
	})
}

// Consumer is the receiving end of a frame channel. It has a single owner.
type Consumer struct {
	st   *chanState
	done bool
	err  error
}

// Receive blocks until a frame is available. It returns io.EOF once the channel closed cleanly and keeps
// doing so for every later call.
func (c *Consumer) Receive(ctx context.Context) (Frame, error) {
	if c.done {
		return Frame{}, c.terminalErr()
	}

	select {
	case f, ok := <-c.st.frames:
		if ok {
			return f, nil
		}

		c.done, c.err = true, c.st.cause
		return Frame{}, c.terminalErr()
	case <-ctx.Done():
		return Frame{}, errors.Wrap(ctx.Err(), "receive frame")
	}
}

func (c *Consumer) terminalErr() error {
	if c.err == nil || errors.Is(c.err, ErrTransportClosed) {
		return io.EOF
	}

	return c.err
}

// Err returns the cause the producer closed the channel with, nil while open or after a clean close.
func (c *Consumer) Err() error {
	return c.err
}

// Close drops the consumer end. Pending and future sends fail with [ErrTransportClosed].
func (c *Consumer) Close() {
	c.st.goneOnce.Do(func() { close(c.st.gone) })
}

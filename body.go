package bpipe

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/cockroachdb/errors"
)

// Body is a handle on a lazy, finite, non-restartable sequence of frames. It can be consumed at most once;
// ownership moves with the handle when it is passed to the next stage.
type Body struct {
	mu       sync.Mutex
	consumer *Consumer
	consumed bool
}

// NewBody wraps the consumer end of a frame channel.
func NewBody(c *Consumer) *Body {
	return &Body{consumer: c}
}

// EmptyBody returns a body that ends immediately with an empty trailer set.
func EmptyBody() *Body {
	return BodyFromFrames()
}

// BodyFromFrames returns a body that yields the given frames in order. Frames after a trailers frame are
// dropped since trailers terminate a body.
func BodyFromFrames(frames ...Frame) *Body {
	prod, cons := NewChannel(len(frames))
	for _, f := range frames {
		if err := prod.Send(context.Background(), f); err != nil {
			break
		}
	}

	prod.Close()

	return NewBody(cons)
}

// BodyFromBytes returns a body with a single data frame, or no frames at all when b is empty.
func BodyFromBytes(b []byte) *Body {
	if len(b) == 0 {
		return EmptyBody()
	}

	return BodyFromFrames(DataFrame(b))
}

// Consume takes the frame stream out of the handle. A second call fails with [ErrProtocolViolation].
func (b *Body) Consume() (*Consumer, error) {
	if b == nil {
		return nil, errors.Wrap(ErrProtocolViolation, "consume nil body")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.consumed {
		return nil, errors.Wrap(ErrProtocolViolation, "body consumed twice")
	}

	b.consumed = true

	return b.consumer, nil
}

// release drops the underlying consumer whether or not the body was consumed, so a producer that still
// feeds it stops instead of blocking.
func (b *Body) release() {
	if b == nil || b.consumer == nil {
		return
	}

	b.consumer.Close()
}

// Collected is a fully received body.
type Collected struct {
	Frames   []Frame
	Trailers Header
}

// Bytes concatenates the data frames.
func (c Collected) Bytes() []byte {
	var buf bytes.Buffer
	for _, f := range c.Frames {
		if f.IsData() {
			buf.Write(f.Data())
		}
	}

	return buf.Bytes()
}

// Collect consumes the body and gathers every frame until the end of body. A body without a trailers frame
// collects to an empty trailer set.
func Collect(ctx context.Context, b *Body) (Collected, error) {
	cons, err := b.Consume()
	if err != nil {
		return Collected{}, err
	}

	res := Collected{Trailers: Header{}}
	for {
		f, err := cons.Receive(ctx)
		if errors.Is(err, io.EOF) {
			return res, nil
		} else if err != nil {
			return res, errors.Wrap(err, "collect body")
		}

		res.Frames = append(res.Frames, f)
		if f.IsTrailers() {
			res.Trailers = f.Trailers()
		}
	}
}

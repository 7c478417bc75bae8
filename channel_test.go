package bpipe_test

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/advdv/bpipe"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelPreservesOrder(t *testing.T) {
	ctx := t.Context()
	want := []bpipe.Frame{
		bpipe.DataFrame([]byte("a")),
		bpipe.DataFrame([]byte("b")),
		bpipe.DataFrame(nil),
		bpipe.DataFrame([]byte("c")),
		bpipe.TrailersFrame(bpipe.Header{"X-Trailer": {"1", "2"}}),
	}

	for _, capacity := range []int{0, 1, 3, 16} {
		t.Run(fmt.Sprintf("capacity %d", capacity), func(t *testing.T) {
			prod, cons := bpipe.NewChannel(capacity)
			go func() {
				defer prod.Close()
				for _, f := range want {
					assert.NoError(t, prod.Send(ctx, f))
				}
			}()

			var got []bpipe.Frame
			for {
				f, err := cons.Receive(ctx)
				if errors.Is(err, io.EOF) {
					break
				}
				require.NoError(t, err)
				got = append(got, f)
			}

			require.Equal(t, want, got)
		})
	}
}

func TestChannelReceivePastClosure(t *testing.T) {
	prod, cons := bpipe.NewChannel(1)
	prod.Close()
	prod.Close()

	for range 3 {
		_, err := cons.Receive(t.Context())
		require.ErrorIs(t, err, io.EOF)
	}

	require.NoError(t, cons.Err())
}

func TestChannelProducerBlocksAtCapacity(t *testing.T) {
	ctx := t.Context()
	prod, cons := bpipe.NewChannel(1)

	var sent atomic.Int64
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer prod.Close()
		for i := range 3 {
			assert.NoError(t, prod.Send(ctx, bpipe.DataFrame([]byte{byte('0' + i)})))
			sent.Add(1)
		}
	}()

	require.Eventually(t, func() bool { return sent.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, int64(1), sent.Load(), "producer must stall while the channel is full")

	var got string
	for {
		f, err := cons.Receive(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		got += string(f.Data())
	}

	<-done
	require.Equal(t, "012", got)
	require.Equal(t, int64(3), sent.Load())
}

func TestChannelSendAfterConsumerDropped(t *testing.T) {
	prod, cons := bpipe.NewChannel(1)
	require.NoError(t, prod.Send(t.Context(), bpipe.DataFrame([]byte("a"))))

	blocked := make(chan error, 1)
	go func() { blocked <- prod.Send(t.Context(), bpipe.DataFrame([]byte("b"))) }()

	cons.Close()
	cons.Close()

	require.ErrorIs(t, <-blocked, bpipe.ErrTransportClosed)
	require.ErrorIs(t, prod.Send(t.Context(), bpipe.DataFrame([]byte("c"))), bpipe.ErrTransportClosed)
}

func TestChannelProtocolViolations(t *testing.T) {
	t.Run("data after trailers", func(t *testing.T) {
		prod, _ := bpipe.NewChannel(2)
		require.NoError(t, prod.Send(t.Context(), bpipe.TrailersFrame(nil)))
		require.ErrorIs(t, prod.Send(t.Context(), bpipe.DataFrame([]byte("late"))), bpipe.ErrProtocolViolation)
	})

	t.Run("send after close", func(t *testing.T) {
		prod, _ := bpipe.NewChannel(2)
		prod.Close()
		require.ErrorIs(t, prod.Send(t.Context(), bpipe.DataFrame(nil)), bpipe.ErrProtocolViolation)
	})
}

func TestChannelSendHonoursContext(t *testing.T) {
	prod, _ := bpipe.NewChannel(0)

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
	defer cancel()

	require.ErrorIs(t, prod.Send(ctx, bpipe.DataFrame(nil)), context.DeadlineExceeded)
}

func TestChannelCloseWithError(t *testing.T) {
	t.Run("transport closure reads as end of body", func(t *testing.T) {
		prod, cons := bpipe.NewChannel(1)
		require.NoError(t, prod.Send(t.Context(), bpipe.DataFrame([]byte("partial"))))
		prod.CloseWithError(errors.Mark(errors.New("connection reset"), bpipe.ErrTransportClosed))

		f, err := cons.Receive(t.Context())
		require.NoError(t, err)
		require.Equal(t, "partial", string(f.Data()))

		_, err = cons.Receive(t.Context())
		require.ErrorIs(t, err, io.EOF)
		require.True(t, errors.Is(cons.Err(), bpipe.ErrTransportClosed))
	})

	t.Run("other causes are terminal errors", func(t *testing.T) {
		prod, cons := bpipe.NewChannel(1)
		cause := errors.New("producer broke")
		prod.CloseWithError(cause)
		prod.CloseWithError(errors.New("ignored"))

		_, err := cons.Receive(t.Context())
		require.ErrorIs(t, err, cause)

		_, err = cons.Receive(t.Context())
		require.ErrorIs(t, err, cause)
	})
}

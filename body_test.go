package bpipe_test

import (
	"context"
	"testing"
	"time"

	"github.com/advdv/bpipe"
	"github.com/stretchr/testify/require"
)

func TestBodyConsumedTwice(t *testing.T) {
	body := bpipe.BodyFromBytes([]byte("once"))

	cons, err := body.Consume()
	require.NoError(t, err)
	require.NotNil(t, cons)

	cons2, err := body.Consume()
	require.ErrorIs(t, err, bpipe.ErrProtocolViolation)
	require.Nil(t, cons2)

	_, err = bpipe.Collect(t.Context(), body)
	require.ErrorIs(t, err, bpipe.ErrProtocolViolation)
}

func TestCollect(t *testing.T) {
	for _, tt := range []struct {
		name         string
		body         *bpipe.Body
		wantBytes    string
		wantTrailers bpipe.Header
		wantFrames   int
	}{
		{
			name:         "empty body has empty trailers",
			body:         bpipe.EmptyBody(),
			wantTrailers: bpipe.Header{},
		},
		{
			name:         "data without trailers",
			body:         bpipe.BodyFromBytes([]byte("hello")),
			wantBytes:    "hello",
			wantTrailers: bpipe.Header{},
			wantFrames:   1,
		},
		{
			name: "data and trailers",
			body: bpipe.BodyFromFrames(
				bpipe.DataFrame([]byte("hel")),
				bpipe.DataFrame([]byte("lo")),
				bpipe.TrailersFrame(bpipe.Header{"X-Trailer": {"test"}}),
			),
			wantBytes:    "hello",
			wantTrailers: bpipe.Header{"X-Trailer": {"test"}},
			wantFrames:   3,
		},
		{
			name: "frames after trailers are dropped",
			body: bpipe.BodyFromFrames(
				bpipe.TrailersFrame(bpipe.Header{"A": {"b"}}),
				bpipe.DataFrame([]byte("late")),
			),
			wantTrailers: bpipe.Header{"A": {"b"}},
			wantFrames:   1,
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			got, err := bpipe.Collect(t.Context(), tt.body)
			require.NoError(t, err)
			require.Equal(t, tt.wantBytes, string(got.Bytes()))
			require.Equal(t, tt.wantTrailers, got.Trailers)
			require.Len(t, got.Frames, tt.wantFrames)
		})
	}
}

func TestCollectStopsWithContext(t *testing.T) {
	_, cons := bpipe.NewChannel(1)

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
	defer cancel()

	_, err := bpipe.Collect(ctx, bpipe.NewBody(cons))
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

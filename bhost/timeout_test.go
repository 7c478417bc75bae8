package bhost_test

import (
	"context"
	"testing"
	"time"

	"github.com/advdv/bpipe/bhost"
	"github.com/stretchr/testify/assert"
)

func TestServerTimeouts(t *testing.T) {
	tests := []struct {
		name                                          string
		exchangeTimeout                               time.Duration
		wantReadHeader, wantRead, wantWrite, wantIdle time.Duration
	}{
		{"default", 0, 5 * time.Second, 30 * time.Second, 31 * time.Second, 30 * time.Second},
		{"short", 2 * time.Second, 2 * time.Second, 2 * time.Second, 3 * time.Second, 2 * time.Second},
		{"long", time.Minute, 5 * time.Second, time.Minute, time.Minute + time.Second, time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rh, r, w, i := bhost.TimeoutConfig{ExchangeTimeout: tt.exchangeTimeout}.ServerTimeouts()
			assert.Equal(t, tt.wantReadHeader, rh)
			assert.Equal(t, tt.wantRead, r)
			assert.Equal(t, tt.wantWrite, w)
			assert.Equal(t, tt.wantIdle, i)
		})
	}
}

func TestRemainingTime(t *testing.T) {
	assert.Zero(t, bhost.RemainingTime(t.Context()))

	ctx, cancel := context.WithTimeout(t.Context(), time.Minute)
	defer cancel()
	assert.InDelta(t, time.Minute, bhost.RemainingTime(ctx), float64(time.Second))

	past, cancel2 := context.WithDeadline(t.Context(), time.Now().Add(-time.Second))
	defer cancel2()
	assert.Zero(t, bhost.RemainingTime(past))
}

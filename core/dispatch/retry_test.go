package dispatch

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countingTransport(failures int32, err error) (Transport, *atomic.Int32) {
	var calls atomic.Int32
	return TransportFunc(func(context.Context, Delivery) error {
		if calls.Add(1) <= failures {
			return err
		}
		return nil
	}), &calls
}

func fastPolicy(n int) RetryPolicy {
	return RetryPolicy{MaxAttempts: n, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}
}

func TestWithRetry_DisabledReturnsTransport(t *testing.T) {
	tr, _ := countingTransport(0, nil)
	got := WithRetry(tr, RetryPolicy{MaxAttempts: 1})
	_, wrapped := got.(*RetryTransport)
	assert.False(t, wrapped)
}

func TestRetryTransport_RecoversTransientFailure(t *testing.T) {
	tr, calls := countingTransport(2, errors.New("busy"))
	err := WithRetry(tr, fastPolicy(3)).Deliver(context.Background(), Delivery{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, calls.Load())
}

func TestRetryTransport_ExhaustsAttempts(t *testing.T) {
	tr, calls := countingTransport(10, errors.New("busy"))
	err := WithRetry(tr, fastPolicy(3)).Deliver(context.Background(), Delivery{})
	require.EqualError(t, err, "busy")
	assert.EqualValues(t, 3, calls.Load())
}

func TestRetryTransport_PermanentNotRetried(t *testing.T) {
	tr, calls := countingTransport(10, Permanent(errors.New("rejected")))
	err := WithRetry(tr, fastPolicy(5)).Deliver(context.Background(), Delivery{})
	require.EqualError(t, err, "rejected")
	assert.EqualValues(t, 1, calls.Load())
}

func TestComputeStats(t *testing.T) {
	assert.Equal(t, RoundStats{}, computeStats(nil))

	lat := []time.Duration{40 * time.Millisecond, 10 * time.Millisecond, 20 * time.Millisecond, 30 * time.Millisecond}
	s := computeStats(lat)
	assert.Equal(t, 4, s.Attempts)
	assert.Equal(t, 25*time.Millisecond, s.MeanLatency)
	assert.Equal(t, 40*time.Millisecond, s.P95Latency)
	assert.Equal(t, 40*time.Millisecond, s.MaxLatency)
}

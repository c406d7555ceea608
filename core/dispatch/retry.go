package dispatch

import (
	"context"
	"io"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy bounds the attempts RetryTransport makes per delivery.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// RetryTransport retries a failing transport with exponential backoff. It is
// a decorator: the orchestrator still makes exactly one Deliver call per
// target and round. Errors wrapped with Permanent are not retried.
type RetryTransport struct {
	next   Transport
	policy RetryPolicy
}

// WithRetry wraps next when the policy allows more than one attempt and
// returns next unchanged otherwise.
func WithRetry(next Transport, p RetryPolicy) Transport {
	if p.MaxAttempts <= 1 || next == nil {
		return next
	}
	if p.InitialInterval <= 0 {
		p.InitialInterval = 500 * time.Millisecond
	}
	if p.MaxInterval < p.InitialInterval {
		p.MaxInterval = p.InitialInterval
	}
	return &RetryTransport{next: next, policy: p}
}

// Deliver calls the wrapped transport until it succeeds, returns a permanent
// error, the attempts are exhausted, or ctx is done.
func (r *RetryTransport) Deliver(ctx context.Context, d Delivery) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = r.policy.InitialInterval
	eb.MaxInterval = r.policy.MaxInterval
	eb.MaxElapsedTime = 0
	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(r.policy.MaxAttempts-1)), ctx)
	return backoff.Retry(func() error { return r.next.Deliver(ctx, d) }, b)
}

// Close closes the wrapped transport when it holds resources.
func (r *RetryTransport) Close() error {
	if c, ok := r.next.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

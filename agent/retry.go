package agent

import (
	"context"
	"errors"
	"time"

	"github.com/hupe1980/meetmesh/core"
)

// RetryPolicy bounds how often a model stream is reopened when it fails
// before producing output.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// DefaultRetryPolicy retries twice with 2s, 4s backoff capped at 15s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 2, BaseDelay: 2 * time.Second, MaxDelay: 15 * time.Second}
}

// Delay returns the backoff before retry attempt n (1-based): BaseDelay * 2^(n-1), capped at MaxDelay.
func (p RetryPolicy) Delay(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	d := p.BaseDelay * time.Duration(1<<(n-1))
	if p.MaxDelay > 0 && (d > p.MaxDelay || d <= 0) {
		d = p.MaxDelay
	}
	return d
}

// IsRetryable reports whether err may succeed on a fresh attempt. Context
// termination and configuration errors are final.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return !errors.Is(err, core.ErrConfiguration)
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

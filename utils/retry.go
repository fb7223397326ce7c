package utils

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy bounds retries of an external call. The zero value performs a
// single attempt.
type RetryPolicy struct {
	MaxRetries  int
	BackoffBase time.Duration
	MaxBackoff  time.Duration
}

// Permanent marks err as not retryable.
func Permanent(err error) error { return backoff.Permanent(err) }

// Retry runs op until it succeeds, returns a permanent error, the retry budget
// is exhausted or ctx is done. The last error from op is returned.
func (p RetryPolicy) Retry(ctx context.Context, op func() error) error {
	if p.MaxRetries <= 0 {
		return unwrapPermanent(op())
	}
	exp := backoff.NewExponentialBackOff()
	if p.BackoffBase > 0 {
		exp.InitialInterval = p.BackoffBase
	}
	if p.MaxBackoff > 0 {
		exp.MaxInterval = p.MaxBackoff
	}
	exp.MaxElapsedTime = 0
	b := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(p.MaxRetries)), ctx)
	return backoff.Retry(op, b)
}

func unwrapPermanent(err error) error {
	if perm, ok := err.(*backoff.PermanentError); ok {
		return perm.Err
	}
	return err
}

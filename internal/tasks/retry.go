package tasks

import (
	"context"
	"time"
)

// RetryPolicy bounds delivery attempts.  Delay is fixed between attempts
// and AttemptTimeout caps each individual attempt.
type RetryPolicy struct {
	MaxAttempts    int
	Delay          time.Duration
	AttemptTimeout time.Duration
}

// DefaultRetryPolicy is three attempts, one second apart, ten seconds each.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		Delay:          time.Second,
		AttemptTimeout: 10 * time.Second,
	}
}

// RetryResult reports how a retried operation ended.
type RetryResult struct {
	Attempts int
	Err      error // last error, nil on success
}

// Do runs op until it succeeds or MaxAttempts is reached.  onFailure, when
// non-nil, is called after every failed attempt.  Cancelling ctx stops the
// loop during the wait between attempts.
func (p RetryPolicy) Do(ctx context.Context, op func(ctx context.Context) error, onFailure func(attempt int, err error)) RetryResult {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var res RetryResult
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		res.Attempts = attempt
		res.Err = p.attempt(ctx, op)
		if res.Err == nil {
			return res
		}
		if onFailure != nil {
			onFailure(attempt, res.Err)
		}
		if attempt == maxAttempts || p.Delay <= 0 {
			continue
		}

		timer := time.NewTimer(p.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return res
		case <-timer.C:
		}
	}
	return res
}

func (p RetryPolicy) attempt(ctx context.Context, op func(ctx context.Context) error) error {
	if p.AttemptTimeout <= 0 {
		return op(ctx)
	}
	actx, cancel := context.WithTimeout(ctx, p.AttemptTimeout)
	defer cancel()
	return op(actx)
}

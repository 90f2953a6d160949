package tasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryPolicy_Do(t *testing.T) {
	boom := errors.New("boom")

	t.Run("succeeds after failures", func(t *testing.T) {
		calls := 0
		var failed []int
		p := RetryPolicy{MaxAttempts: 3, Delay: time.Millisecond}

		res := p.Do(context.Background(), func(context.Context) error {
			calls++
			if calls < 3 {
				return boom
			}
			return nil
		}, func(attempt int, err error) { failed = append(failed, attempt) })

		assert.NoError(t, res.Err)
		assert.Equal(t, 3, res.Attempts)
		assert.Equal(t, []int{1, 2}, failed)
	})

	t.Run("stops at max attempts", func(t *testing.T) {
		calls := 0
		p := RetryPolicy{MaxAttempts: 3, Delay: time.Millisecond}

		res := p.Do(context.Background(), func(context.Context) error {
			calls++
			return boom
		}, nil)

		assert.ErrorIs(t, res.Err, boom)
		assert.Equal(t, 3, res.Attempts)
		assert.Equal(t, 3, calls)
	})

	t.Run("zero attempts still tries once", func(t *testing.T) {
		calls := 0
		res := RetryPolicy{}.Do(context.Background(), func(context.Context) error {
			calls++
			return boom
		}, nil)
		assert.Equal(t, 1, calls)
		assert.Equal(t, 1, res.Attempts)
	})

	t.Run("attempt timeout cancels a hung attempt", func(t *testing.T) {
		p := RetryPolicy{MaxAttempts: 2, Delay: time.Millisecond, AttemptTimeout: 10 * time.Millisecond}
		start := time.Now()

		res := p.Do(context.Background(), func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}, nil)

		assert.ErrorIs(t, res.Err, context.DeadlineExceeded)
		assert.Equal(t, 2, res.Attempts)
		assert.Less(t, time.Since(start), 2*time.Second)
	})

	t.Run("cancelled context ends the wait", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		p := RetryPolicy{MaxAttempts: 5, Delay: time.Hour}

		res := p.Do(ctx, func(context.Context) error {
			cancel()
			return boom
		}, nil)

		assert.Equal(t, 1, res.Attempts)
		assert.ErrorIs(t, res.Err, boom)
	})
}

func TestDefaultRetryPolicy(t *testing.T) {
	p := DefaultRetryPolicy()
	assert.Equal(t, 3, p.MaxAttempts)
	assert.Equal(t, time.Second, p.Delay)
	assert.Equal(t, 10*time.Second, p.AttemptTimeout)
}

package tasks

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/iliyamo/express-reservations/internal/clock"
)

func sampleTask() PostPaymentTask {
	return PostPaymentTask{
		ReservationID: "r-1",
		Email:         "guest@example.com",
		Category:      "BASIC",
		Quantity:      2,
		Total:         20000,
		StartDate:     "2026-01-10",
		EndDate:       "2026-01-12",
	}
}

func fastPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Delay: time.Millisecond, AttemptTimeout: time.Second}
}

func newTestRunner(r *stubRenderer, n *flakyNotifier, opts ...RunnerOption) (*Runner, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	opts = append([]RunnerOption{
		WithRetryPolicy(fastPolicy()),
		WithClock(clock.NewFixed(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC))),
	}, opts...)
	return NewRunner(r, n, zap.New(core), opts...), logs
}

func TestRunner_ExecuteDelivers(t *testing.T) {
	n := &flakyNotifier{failures: 1}
	runner, _ := newTestRunner(&stubRenderer{}, n)

	out := runner.Execute(context.Background(), sampleTask())

	assert.Equal(t, OutcomeDelivered, out)
	assert.Equal(t, 2, n.Attempts())
	sent := n.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "guest@example.com", sent[0].To)
	require.Len(t, sent[0].Attachments, 1)
	assert.Equal(t, "reservation-r-1.pdf", sent[0].Attachments[0].Filename)
	assert.Equal(t, "application/pdf", sent[0].Attachments[0].ContentType)
	assert.Contains(t, sent[0].HTML, "200.00")
	assert.Contains(t, sent[0].HTML, "2026 Sistema de Reservas Express")
	assert.Equal(t, uint64(1), runner.Stats().Delivered)
}

func TestRunner_ExecuteGivesUpAfterMaxAttempts(t *testing.T) {
	n := &flakyNotifier{failures: 3}
	runner, logs := newTestRunner(&stubRenderer{}, n)

	out := runner.Execute(context.Background(), sampleTask())

	assert.Equal(t, OutcomeDeliveryFailed, out)
	assert.Equal(t, 3, n.Attempts())
	assert.Empty(t, n.Sent())
	assert.Equal(t, uint64(1), runner.Stats().DeliveryFailed)

	assert.Equal(t, 3, logs.FilterMessage("ticket delivery attempt failed").Len())
	final := logs.FilterMessage("ticket delivery failed, giving up").All()
	require.Len(t, final, 1)
	assert.Equal(t, zapcore.ErrorLevel, final[0].Level)
	fields := final[0].ContextMap()
	assert.Equal(t, "r-1", fields["reservation_id"])
	assert.EqualValues(t, 3, fields["attempts"])
}

func TestRunner_RenderFailureIsNotRetried(t *testing.T) {
	r := &stubRenderer{err: errors.New("font missing")}
	n := &flakyNotifier{}
	runner, logs := newTestRunner(r, n)

	out := runner.Execute(context.Background(), sampleTask())

	assert.Equal(t, OutcomeRenderFailed, out)
	assert.Equal(t, 1, r.calls)
	assert.Equal(t, 0, n.Attempts())
	assert.Equal(t, uint64(1), runner.Stats().RenderFailed)
	assert.Equal(t, 1, logs.FilterMessage("ticket render failed, task aborted").Len())
}

func TestRunner_AttemptTimeout(t *testing.T) {
	n := &flakyNotifier{block: true}
	runner, _ := newTestRunner(&stubRenderer{}, n,
		WithRetryPolicy(RetryPolicy{MaxAttempts: 2, Delay: time.Millisecond, AttemptTimeout: 5 * time.Millisecond}))

	out := runner.Execute(context.Background(), sampleTask())

	assert.Equal(t, OutcomeDeliveryFailed, out)
	assert.Equal(t, 2, n.Attempts())
}

func TestRunner_DispatchAndStopDrains(t *testing.T) {
	n := &flakyNotifier{}
	runner, _ := newTestRunner(&stubRenderer{}, n, WithWorkers(2), WithBuffer(16))
	require.NoError(t, runner.Start(context.Background()))
	assert.Error(t, runner.Start(context.Background()))

	for i := 0; i < 10; i++ {
		runner.Dispatch(context.Background(), sampleTask())
	}
	runner.Stop()
	runner.Stop()

	stats := runner.Stats()
	assert.Equal(t, uint64(10), stats.Dispatched)
	assert.Equal(t, uint64(10), stats.Delivered)
	assert.Len(t, n.Sent(), 10)
}

func TestRunner_DispatchNeverBlocks(t *testing.T) {
	n := &flakyNotifier{}
	runner, logs := newTestRunner(&stubRenderer{}, n)

	// Not started: every dispatch spills to its own goroutine.
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runner.Dispatch(context.Background(), sampleTask())
		}()
	}
	wg.Wait()

	require.Eventually(t, func() bool { return runner.Stats().Delivered == 5 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, uint64(5), runner.Stats().Overflowed)
	assert.Equal(t, 5, logs.FilterMessage("task queue unavailable, running task detached").Len())
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "delivered", OutcomeDelivered.String())
	assert.Equal(t, "delivery_failed", OutcomeDeliveryFailed.String())
	assert.Equal(t, "render_failed", OutcomeRenderFailed.String())
	assert.Equal(t, "unknown", Outcome(42).String())
}

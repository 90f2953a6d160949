package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/iliyamo/express-reservations/internal/clock"
	"github.com/iliyamo/express-reservations/internal/mail"
	"github.com/iliyamo/express-reservations/internal/telemetry"
	"github.com/iliyamo/express-reservations/internal/ticket"
)

const (
	defaultWorkers = 4
	defaultBuffer  = 256
)

// Stats are the runner's counters.  They are the only place where
// swallowed background failures remain visible.
type Stats struct {
	Dispatched     uint64 `json:"dispatched"`
	Overflowed     uint64 `json:"overflowed"`
	Delivered      uint64 `json:"delivered"`
	DeliveryFailed uint64 `json:"delivery_failed"`
	RenderFailed   uint64 `json:"render_failed"`
}

type job struct {
	ctx  context.Context
	task PostPaymentTask
}

// Runner is an in-process worker pool for post-payment tasks.
type Runner struct {
	renderer ticket.Renderer
	notifier mail.Notifier
	policy   RetryPolicy
	clock    clock.Clock
	log      *zap.Logger
	workers  int
	buffer   int

	mu      sync.RWMutex
	queue   chan job
	running bool
	wg      sync.WaitGroup
	spill   sync.WaitGroup

	dispatched     atomic.Uint64
	overflowed     atomic.Uint64
	delivered      atomic.Uint64
	deliveryFailed atomic.Uint64
	renderFailed   atomic.Uint64
}

type RunnerOption func(*Runner)

func WithWorkers(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.workers = n
		}
	}
}

func WithBuffer(n int) RunnerOption {
	return func(r *Runner) {
		if n >= 0 {
			r.buffer = n
		}
	}
}

func WithRetryPolicy(p RetryPolicy) RunnerOption {
	return func(r *Runner) { r.policy = p }
}

func WithClock(c clock.Clock) RunnerOption {
	return func(r *Runner) { r.clock = c }
}

func NewRunner(renderer ticket.Renderer, notifier mail.Notifier, log *zap.Logger, opts ...RunnerOption) *Runner {
	r := &Runner{
		renderer: renderer,
		notifier: notifier,
		policy:   DefaultRetryPolicy(),
		clock:    clock.NewSystem(),
		log:      log.Named("tasks"),
		workers:  defaultWorkers,
		buffer:   defaultBuffer,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start launches the workers.  Cancelling ctx makes workers exit without
// draining; use Stop for an orderly shutdown.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return errors.New("task runner already running")
	}
	r.queue = make(chan job, r.buffer)
	r.running = true

	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go r.work(ctx, r.queue)
	}
	r.log.Info("task runner started", zap.Int("workers", r.workers), zap.Int("buffer", r.buffer))
	return nil
}

// Stop closes intake and waits until queued and overflow tasks finish.
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	close(r.queue)
	r.mu.Unlock()

	r.wg.Wait()
	r.spill.Wait()
	r.log.Info("task runner stopped")
}

func (r *Runner) work(ctx context.Context, queue <-chan job) {
	defer r.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-queue:
			if !ok {
				return
			}
			r.Execute(j.ctx, j.task)
		}
	}
}

// Dispatch hands task to the pool without blocking.  When the buffer is
// full, or the runner is not running, the task runs on its own goroutine.
func (r *Runner) Dispatch(ctx context.Context, task PostPaymentTask) {
	r.dispatched.Add(1)

	r.mu.RLock()
	if r.running {
		select {
		case r.queue <- job{ctx: ctx, task: task}:
			r.mu.RUnlock()
			return
		default:
		}
	}
	r.mu.RUnlock()

	r.overflowed.Add(1)
	r.log.Warn("task queue unavailable, running task detached",
		zap.String("reservation_id", task.ReservationID))
	r.spill.Add(1)
	go func() {
		defer r.spill.Done()
		r.Execute(ctx, task)
	}()
}

// Execute renders and delivers one task.  A render failure ends the task
// without retry.  Delivery is retried per the policy and an exhausted
// retry budget is logged and counted, never returned.
func (r *Runner) Execute(ctx context.Context, task PostPaymentTask) Outcome {
	ctx, span := telemetry.StartSpan(ctx, "tasks.post_payment",
		attribute.String("reservation.id", task.ReservationID))
	defer span.End()

	log := r.log.With(zap.String("reservation_id", task.ReservationID))

	msg, err := r.compose(task)
	if err != nil {
		r.renderFailed.Add(1)
		telemetry.RecordError(span, err)
		log.Error("ticket render failed, task aborted", zap.Error(err))
		return OutcomeRenderFailed
	}

	res := r.policy.Do(ctx,
		func(actx context.Context) error { return r.notifier.Send(actx, msg) },
		func(attempt int, err error) {
			log.Warn("ticket delivery attempt failed",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", r.policy.MaxAttempts),
				zap.Error(err))
		},
	)
	span.SetAttributes(attribute.Int("delivery.attempts", res.Attempts))
	if res.Err != nil {
		r.deliveryFailed.Add(1)
		telemetry.RecordError(span, res.Err)
		log.Error("ticket delivery failed, giving up",
			zap.String("to", task.Email),
			zap.Int("attempts", res.Attempts),
			zap.Error(res.Err))
		return OutcomeDeliveryFailed
	}

	r.delivered.Add(1)
	log.Info("ticket delivered", zap.Int("attempts", res.Attempts))
	return OutcomeDelivered
}

func (r *Runner) compose(task PostPaymentTask) (mail.Message, error) {
	doc, err := r.renderer.Render(task.TicketFields())
	if err != nil {
		return mail.Message{}, err
	}
	html, err := mail.RenderConfirmation(mail.Confirmation{
		ReservationID: task.ReservationID,
		Category:      task.Category,
		TotalPaid:     task.Total.String(),
		Year:          r.clock.Now().Year(),
	})
	if err != nil {
		return mail.Message{}, err
	}
	return mail.Message{
		To:      task.Email,
		Subject: mail.ConfirmationSubject,
		HTML:    html,
		Attachments: []mail.Attachment{{
			Filename:    fmt.Sprintf("reservation-%s.pdf", task.ReservationID),
			ContentType: "application/pdf",
			Content:     doc,
		}},
	}, nil
}

// Stats returns a snapshot of the counters.
func (r *Runner) Stats() Stats {
	return Stats{
		Dispatched:     r.dispatched.Load(),
		Overflowed:     r.overflowed.Load(),
		Delivered:      r.delivered.Load(),
		DeliveryFailed: r.deliveryFailed.Load(),
		RenderFailed:   r.renderFailed.Load(),
	}
}

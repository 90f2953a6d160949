package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/express-reservations/internal/tasks"
)

const maxBackoff = 30 * time.Second

// Executor runs one post-payment task to completion.  *tasks.Runner
// satisfies it.
type Executor interface {
	Execute(ctx context.Context, task tasks.PostPaymentTask) tasks.Outcome
}

// Consumer drains the reservation.paid queue into an Executor.  Up to
// prefetch messages are handled concurrently; ordering is not preserved.
type Consumer struct {
	url      string
	queue    string
	prefetch int
	exec     Executor
	log      *zap.Logger
}

func NewConsumer(url, queue string, prefetch int, exec Executor, log *zap.Logger) *Consumer {
	if prefetch < 1 {
		prefetch = 1
	}
	return &Consumer{url: url, queue: queue, prefetch: prefetch, exec: exec, log: log.Named("consumer")}
}

// Run connects, consumes and reconnects with exponential backoff until ctx
// is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.log.Warn("failed to dial broker", zap.Error(err), zap.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < maxBackoff {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Warn("consume loop ended, reconnecting", zap.Error(err))
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		c.log.Warn("set QoS failed", zap.Error(err))
	}
	if _, err := declareQueue(ch, c.queue); err != nil {
		return err
	}
	msgs, err := ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	c.log.Info("consuming", zap.String("queue", c.queue), zap.Int("handlers", c.prefetch))
	return c.drain(ctx, msgs)
}

// drain runs one handler goroutine per prefetched message, so up to
// prefetch tasks execute in parallel.  It returns when ctx is cancelled or
// the deliveries channel closes, after in-flight handlers finish.
func (c *Consumer) drain(ctx context.Context, msgs <-chan amqp.Delivery) error {
	var wg sync.WaitGroup
	errs := make(chan error, c.prefetch)
	for i := 0; i < c.prefetch; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					errs <- ctx.Err()
					return
				case d, ok := <-msgs:
					if !ok {
						errs <- errors.New("deliveries channel closed")
						return
					}
					c.handle(ctx, d)
				}
			}
		}()
	}
	wg.Wait()
	return <-errs
}

// handle acks after the task ran, whatever the delivery outcome, since
// delivery failures are already retried and recorded by the executor.
// Undecodable bodies and render failures are rejected without requeue.
func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	ev, err := decodeReservationPaidEvent(d.Body)
	if err != nil {
		c.log.Error("dropping malformed message", zap.Error(err), zap.String("message_id", d.MessageId))
		_ = d.Nack(false, false)
		return
	}

	if c.exec.Execute(context.WithoutCancel(ctx), ev.Task) == tasks.OutcomeRenderFailed {
		_ = d.Nack(false, false)
		return
	}
	_ = d.Ack(false)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

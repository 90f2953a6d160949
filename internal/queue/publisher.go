package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/express-reservations/internal/clock"
	"github.com/iliyamo/express-reservations/internal/tasks"
)

const publishTimeout = 5 * time.Second

// ErrNotConfirmed is returned when the broker nacks a published message.
var ErrNotConfirmed = errors.New("broker did not confirm message")

// LocalDispatcher runs a task in process.  *tasks.Runner satisfies it.
type LocalDispatcher interface {
	Dispatch(ctx context.Context, task tasks.PostPaymentTask)
}

// confirmation is a pending publisher confirm.  *amqp.DeferredConfirmation
// satisfies it.
type confirmation interface {
	WaitContext(ctx context.Context) (bool, error)
}

// publishChannel is the part of a confirm-mode channel the publisher uses.
type publishChannel interface {
	publish(ctx context.Context, queue string, msg amqp.Publishing) (confirmation, error)
	IsClosed() bool
	Close() error
}

type amqpChannel struct {
	*amqp.Channel
}

func (c amqpChannel) publish(ctx context.Context, queue string, msg amqp.Publishing) (confirmation, error) {
	dc, err := c.PublishWithDeferredConfirmWithContext(ctx,
		"",    // default exchange
		queue, // routing key = queue name
		false, // mandatory
		false, // immediate
		msg,
	)
	if err != nil {
		return nil, err
	}
	if dc == nil {
		return nil, errors.New("channel is not in confirm mode")
	}
	return dc, nil
}

// Publisher hands post-payment tasks to RabbitMQ as persistent messages
// on a confirm-mode channel.  When the broker is unreachable, nacks the
// message or does not confirm it in time, the task goes to the local
// dispatcher instead, so a paid reservation always gets a delivery attempt.
type Publisher struct {
	url      string
	queue    string
	fallback LocalDispatcher
	clock    clock.Clock
	log      *zap.Logger
	timeout  time.Duration
	open     func() (publishChannel, io.Closer, error)

	mu   sync.Mutex
	conn io.Closer
	ch   publishChannel
	wg   sync.WaitGroup
}

func NewPublisher(url, queue string, fallback LocalDispatcher, clk clock.Clock, log *zap.Logger) *Publisher {
	p := &Publisher{
		url:      url,
		queue:    queue,
		fallback: fallback,
		clock:    clk,
		log:      log.Named("publisher"),
		timeout:  publishTimeout,
	}
	p.open = p.dialBroker
	return p
}

// Dispatch publishes task on a separate goroutine and returns at once.
func (p *Publisher) Dispatch(ctx context.Context, task tasks.PostPaymentTask) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := p.Publish(ctx, task); err != nil {
			p.log.Warn("publish failed, running task locally",
				zap.String("reservation_id", task.ReservationID),
				zap.Error(err))
			p.fallback.Dispatch(ctx, task)
		}
	}()
}

// Publish sends one reservation.paid message and waits, at most the
// publish timeout, for the broker to confirm it.  A nack or a missing
// confirm is an error.
func (p *Publisher) Publish(ctx context.Context, task tasks.PostPaymentTask) error {
	body, err := json.Marshal(newReservationPaidEvent(task, p.clock.Now()))
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	p.mu.Lock()
	ch, err := p.channelLocked()
	if err != nil {
		p.mu.Unlock()
		return err
	}
	conf, err := ch.publish(ctx, p.queue, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    p.clock.Now(),
		MessageId:    task.ReservationID,
		Body:         body,
	})
	if err != nil {
		p.resetLocked()
		p.mu.Unlock()
		return fmt.Errorf("publish: %w", err)
	}
	p.mu.Unlock()

	acked, err := conf.WaitContext(ctx)
	if err != nil {
		p.mu.Lock()
		if p.ch == ch {
			p.resetLocked()
		}
		p.mu.Unlock()
		return fmt.Errorf("await confirm: %w", err)
	}
	if !acked {
		return ErrNotConfirmed
	}
	return nil
}

func (p *Publisher) channelLocked() (publishChannel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	p.resetLocked()

	ch, conn, err := p.open()
	if err != nil {
		return nil, err
	}
	p.conn, p.ch = conn, ch
	return ch, nil
}

// dialBroker opens a connection and a channel in confirm mode with the
// queue declared.
func (p *Publisher) dialBroker() (publishChannel, io.Closer, error) {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return nil, nil, fmt.Errorf("dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("channel open: %w", err)
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, fmt.Errorf("confirm mode: %w", err)
	}
	if _, err := declareQueue(ch, p.queue); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, err
	}
	return amqpChannel{ch}, conn, nil
}

func (p *Publisher) resetLocked() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

// Close waits for in-flight publishes and closes the connection.
func (p *Publisher) Close() {
	p.wg.Wait()
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetLocked()
}

func declareQueue(ch *amqp.Channel, name string) (amqp.Queue, error) {
	q, err := ch.QueueDeclare(
		name,  // name
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,   // args
	)
	if err != nil {
		return amqp.Queue{}, fmt.Errorf("queue declare: %w", err)
	}
	return q, nil
}

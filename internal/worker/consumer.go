package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// action is what a handler decided to do with a delivery.
type action int

const (
	actionAck action = iota
	// actionRequeue returns the delivery to the queue after the requeue delay.
	actionRequeue
	// actionDrop rejects the delivery without requeueing it.
	actionDrop
)

func (a action) String() string {
	switch a {
	case actionAck:
		return "ack"
	case actionRequeue:
		return "requeue"
	case actionDrop:
		return "drop"
	default:
		return "unknown"
	}
}

type handlerFunc func(ctx context.Context, body []byte) action

// consumer runs handle for every delivery of one durable queue on a fixed
// number of goroutines sharing a single channel.
type consumer struct {
	conn         *amqp.Connection
	queueName    string
	workers      int
	requeueDelay time.Duration
	handle       handlerFunc

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func (c *consumer) start(ctx context.Context) error {
	if c.cancel != nil {
		return nil
	}
	if c.workers <= 0 {
		c.workers = 1
	}

	workerCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	ch, err := c.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}

	_, err = ch.QueueDeclare(
		c.queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("declare worker queue failed: %w", err)
	}

	if err := ch.Qos(c.workers, 0, false); err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("set worker prefetch failed: %w", err)
	}

	deliveries, err := ch.Consume(
		c.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	var loops sync.WaitGroup
	for i := 0; i < c.workers; i++ {
		loops.Add(1)
		go func() {
			defer loops.Done()
			c.loop(workerCtx, deliveries)
		}()
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		loops.Wait()
		_ = ch.Close()
	}()

	slog.Info("worker started", "queue", c.queueName, "workers", c.workers)
	return nil
}

func (c *consumer) loop(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			c.settle(ctx, d, c.handle(ctx, d.Body))
		}
	}
}

func (c *consumer) settle(ctx context.Context, d amqp.Delivery, act action) {
	var err error
	switch act {
	case actionAck:
		err = d.Ack(false)
	case actionRequeue:
		if c.requeueDelay > 0 {
			timer := time.NewTimer(c.requeueDelay)
			select {
			case <-ctx.Done():
			case <-timer.C:
			}
			timer.Stop()
		}
		err = d.Nack(false, true)
	default:
		err = d.Nack(false, false)
	}
	if err != nil {
		slog.Warn("settle delivery failed", "queue", c.queueName, "action", act, "error", err)
	}
}

func (c *consumer) close() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
}

package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
	"golang.org/x/sync/errgroup"

	"github.com/thrillee/bulksms/internal/logging"
)

// Consumer reads campaign jobs with manual acknowledgement, handling up to
// prefetch of them at once.
type Consumer struct {
	conn      *Connection
	queueName string
	handler   Handler
	prefetch  int
}

func NewConsumer(conn *Connection, queueName string, prefetch int, handler Handler) (*Consumer, error) {
	if conn == nil {
		return nil, errors.New("connection cannot be nil")
	}
	if queueName == "" {
		return nil, errors.New("queue name cannot be empty")
	}
	if handler == nil {
		return nil, errors.New("handler cannot be nil")
	}
	if prefetch <= 0 {
		prefetch = 1
	}
	return &Consumer{conn: conn, queueName: queueName, handler: handler, prefetch: prefetch}, nil
}

// Run consumes until ctx is cancelled or the delivery channel closes.
func (c *Consumer) Run(ctx context.Context) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to get channel: %w", err)
	}
	if err := declare(ch, c.queueName); err != nil {
		return err
	}
	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}
	msgs, err := ch.Consume(
		c.queueName,
		"",    // consumer tag
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}
	slog.InfoContext(ctx, "Consumer started", slog.String("queue", c.queueName), slog.Int("prefetch", c.prefetch))
	return c.consume(ctx, msgs)
}

// consume handles deliveries concurrently, bounded by the QoS prefetch, and
// waits for running handlers before it returns.
func (c *Consumer) consume(ctx context.Context, msgs <-chan amqp.Delivery) error {
	var g errgroup.Group
	g.SetLimit(c.prefetch)
	defer func() { _ = g.Wait() }()

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Consumer stopping, waiting for running jobs")
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("delivery channel closed")
			}
			g.Go(func() error {
				c.handleDelivery(ctx, d)
				return nil
			})
		}
	}
}

// handleDelivery acks on success or permanent failure, requeues a transient
// failure once and drops it on redelivery.
func (c *Consumer) handleDelivery(ctx context.Context, d amqp.Delivery) {
	job, err := decodeJob(d.Body)
	if err != nil {
		slog.ErrorContext(ctx, "Dropping malformed campaign job", slog.Any("error", err))
		_ = d.Nack(false, false)
		return
	}
	logCtx := logging.ContextWithCampaignID(logging.ContextWithJobID(ctx, job.JobID), job.CampaignID)
	logCtx = logging.ContextWithUserID(logCtx, job.UserID)

	err = c.handler(logCtx, job)
	switch {
	case err == nil:
		_ = d.Ack(false)
	case IsPermanent(err):
		slog.WarnContext(logCtx, "Campaign job failed permanently", slog.Any("error", err))
		_ = d.Ack(false)
	case d.Redelivered:
		slog.ErrorContext(logCtx, "Campaign job failed after redelivery, dropping", slog.Any("error", err))
		_ = d.Nack(false, false)
	default:
		slog.WarnContext(logCtx, "Campaign job failed, requeueing", slog.Any("error", err))
		_ = d.Nack(false, true)
	}
}

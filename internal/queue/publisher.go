package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/thrillee/bulksms/internal/logging"
)

// Publisher publishes campaign jobs to a durable queue.
type Publisher struct {
	conn      *Connection
	queueName string
}

var _ Enqueuer = (*Publisher)(nil)

func NewPublisher(conn *Connection, queueName string) (*Publisher, error) {
	if conn == nil {
		return nil, errors.New("connection cannot be nil")
	}
	if queueName == "" {
		return nil, errors.New("queue name cannot be empty")
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to get channel: %w", err)
	}
	if err := declare(ch, queueName); err != nil {
		return nil, err
	}
	return &Publisher{conn: conn, queueName: queueName}, nil
}

func (p *Publisher) Enqueue(ctx context.Context, job CampaignJob) error {
	if err := job.Validate(); err != nil {
		return err
	}
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal campaign job: %w", err)
	}
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to get channel: %w", err)
	}
	err = ch.PublishWithContext(ctx,
		"",          // default exchange
		p.queueName, // routing key
		false,       // mandatory
		false,       // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			MessageId:    job.JobID,
			Timestamp:    job.EnqueuedAt,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish campaign job: %w", err)
	}
	logCtx := logging.ContextWithCampaignID(logging.ContextWithJobID(ctx, job.JobID), job.CampaignID)
	slog.InfoContext(logCtx, "Campaign job published", slog.String("queue", p.queueName), slog.String("source", job.Source))
	return nil
}

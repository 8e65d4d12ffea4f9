// Package queue carries campaign dispatch jobs over RabbitMQ.
package queue

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Connection wraps one AMQP connection and channel, redialling when either closes.
type Connection struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	url     string
	mu      sync.Mutex
}

func NewConnection(url string) (*Connection, error) {
	if url == "" {
		return nil, errors.New("amqp url cannot be empty")
	}
	c := &Connection{url: url}
	if err := c.dial(); err != nil {
		return nil, err
	}
	slog.Info("Connected to RabbitMQ")
	return c, nil
}

func (c *Connection) dial() error {
	conn, err := amqp.Dial(c.url)
	if err != nil {
		return fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to create channel: %w", err)
	}
	c.conn, c.channel = conn, channel
	return nil
}

// Channel returns the open channel, reconnecting first if needed.
func (c *Connection) Channel() (*amqp.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.channel == nil || c.conn == nil || c.conn.IsClosed() {
		slog.Warn("RabbitMQ channel closed, reconnecting")
		c.closeLocked()
		if err := c.dial(); err != nil {
			return nil, fmt.Errorf("failed to reconnect: %w", err)
		}
		slog.Info("Reconnected to RabbitMQ")
	}
	return c.channel, nil
}

// IsConnected is used by the health endpoint.
func (c *Connection) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil && !c.conn.IsClosed() && c.channel != nil
}

func (c *Connection) closeLocked() []error {
	var errs []error
	if c.channel != nil {
		if err := c.channel.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, fmt.Errorf("close channel: %w", err))
		}
		c.channel = nil
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, fmt.Errorf("close connection: %w", err))
		}
		c.conn = nil
	}
	return errs
}

func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if errs := c.closeLocked(); len(errs) > 0 {
		return errors.Join(errs...)
	}
	slog.Info("RabbitMQ connection closed")
	return nil
}

func declare(ch *amqp.Channel, queueName string) error {
	_, err := ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", queueName, err)
	}
	return nil
}

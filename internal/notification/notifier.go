package notification

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Notifier defines the interface for sending notifications.
type Notifier interface {
	Send(ctx context.Context, recipient, subject, body string) error
}

// LogNotifier is a simple implementation that just logs notifications.
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

// Send logs the notification details.
func (n *LogNotifier) Send(ctx context.Context, recipient, subject, body string) error {
	if err := ctx.Err(); err != nil {
		slog.WarnContext(ctx, "Notification sending cancelled", slog.String("notify_to", recipient))
		return err
	}
	slog.WarnContext(ctx, "NOTIFICATION",
		slog.String("notify_to", recipient),
		slog.String("subject", subject),
		slog.String("body", body),
	)
	return nil
}

// Compile-time check to ensure LogNotifier implements Notifier
var _ Notifier = (*LogNotifier)(nil)

// Message is a notification captured by RecordingNotifier.
type Message struct {
	Recipient string
	Subject   string
	Body      string
}

// RecordingNotifier keeps every notification in memory.
type RecordingNotifier struct {
	mu       sync.Mutex
	messages []Message
	// Err, when set, is returned by Send after recording.
	Err error
}

var _ Notifier = (*RecordingNotifier)(nil)

func (n *RecordingNotifier) Send(_ context.Context, recipient, subject, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, Message{Recipient: recipient, Subject: subject, Body: body})
	return n.Err
}

func (n *RecordingNotifier) Messages() []Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Message(nil), n.messages...)
}

// OperatorAlert formats a systemic failure for the operations contact.
func OperatorAlert(ctx context.Context, n Notifier, operator, component string, err error) error {
	subject := fmt.Sprintf("[ALERT] %s failure", component)
	return n.Send(ctx, operator, subject, err.Error())
}

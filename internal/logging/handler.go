package logging

import (
	"context"
	"log/slog"
	"os"
)

type contextKey string

const (
	UserIDKey     contextKey = "user_id"
	CampaignIDKey contextKey = "campaign_id"
	MessageIDKey  contextKey = "msg_id"
	RecipientKey  contextKey = "recipient"
	WorkerIDKey   contextKey = "worker_id"
	JobIDKey      contextKey = "job_id"
	HandlerKey    contextKey = "handler"
)

// ContextHandler wraps another slog.Handler and adds attributes from context.
type ContextHandler struct {
	slog.Handler
}

// NewContextHandler creates a handler that extracts values from context.
func NewContextHandler(h slog.Handler) *ContextHandler {
	return &ContextHandler{Handler: h}
}

// Handle adds context attributes before calling the wrapped handler.
func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if userID, ok := ctx.Value(UserIDKey).(string); ok {
		r.AddAttrs(slog.String("user_id", userID))
	}
	if campaignID, ok := ctx.Value(CampaignIDKey).(int64); ok {
		r.AddAttrs(slog.Int64("campaign_id", campaignID))
	}
	if msgID, ok := ctx.Value(MessageIDKey).(string); ok {
		r.AddAttrs(slog.String("msg_id", msgID))
	}
	if recipient, ok := ctx.Value(RecipientKey).(string); ok {
		r.AddAttrs(slog.String("recipient", recipient))
	}
	if workerID, ok := ctx.Value(WorkerIDKey).(string); ok {
		r.AddAttrs(slog.String("worker_id", workerID))
	}
	if jobID, ok := ctx.Value(JobIDKey).(string); ok {
		r.AddAttrs(slog.String("job_id", jobID))
	}
	if handler, ok := ctx.Value(HandlerKey).(string); ok {
		r.AddAttrs(slog.String("handler", handler))
	}

	return h.Handler.Handle(ctx, r)
}

// WithAttrs keeps the context extraction on derived handlers.
func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{Handler: h.Handler.WithGroup(name)}
}

// Setup installs a JSON context-aware logger as the slog default.
func Setup(level string) *slog.Logger {
	logLevel := slog.LevelInfo
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: logLevel, AddSource: logLevel <= slog.LevelDebug}
	logger := slog.New(NewContextHandler(slog.NewJSONHandler(os.Stdout, opts)))
	slog.SetDefault(logger)
	slog.Info("Logging initialized", "level", logLevel.String())
	return logger
}

// Helper functions to add values to context
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

func ContextWithCampaignID(ctx context.Context, campaignID int64) context.Context {
	return context.WithValue(ctx, CampaignIDKey, campaignID)
}

func ContextWithMessageID(ctx context.Context, msgID string) context.Context {
	return context.WithValue(ctx, MessageIDKey, msgID)
}

func ContextWithRecipient(ctx context.Context, recipient string) context.Context {
	return context.WithValue(ctx, RecipientKey, recipient)
}

func ContextWithWorkerID(ctx context.Context, workerID string) context.Context {
	return context.WithValue(ctx, WorkerIDKey, workerID)
}

func ContextWithJobID(ctx context.Context, jobID string) context.Context {
	return context.WithValue(ctx, JobIDKey, jobID)
}

func ContextWithHandler(ctx context.Context, handler string) context.Context {
	return context.WithValue(ctx, HandlerKey, handler)
}

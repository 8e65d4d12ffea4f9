// Package reconcile applies gateway delivery callbacks to dispatch records.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/thrillee/bulksms/internal/campaign"
	"github.com/thrillee/bulksms/internal/gateway"
	"github.com/thrillee/bulksms/internal/logging"
	"github.com/thrillee/bulksms/internal/metrics"
	"github.com/thrillee/bulksms/pkg/codes"
)

var ErrUnknownMessage = errors.New("unknown message id")

// Result labels for callback handling.
const (
	ResultApplied   = "applied"
	ResultDuplicate = "duplicate"
	ResultIgnored   = "ignored"
	ResultUnknown   = "unknown"
)

// Store is the record and campaign surface the reconciler needs.
type Store interface {
	GetRecord(ctx context.Context, messageID string) (campaign.DispatchRecord, error)
	TransitionRecord(ctx context.Context, messageID, status string, deliveredAt *time.Time) (campaign.DispatchRecord, bool, error)
	IncrementDelivered(ctx context.Context, campaignID int64) error
}

type Reconciler struct {
	store   Store
	metrics *metrics.Metrics
	now     func() time.Time
}

func New(store Store, m *metrics.Metrics) *Reconciler {
	return &Reconciler{store: store, metrics: m, now: time.Now}
}

// OnCallback moves a sent record to delivered or failed exactly once. It
// returns the handling result; repeats and non-final statuses are not errors.
func (r *Reconciler) OnCallback(ctx context.Context, messageID, status string, deliveredAt *time.Time) (string, error) {
	logCtx := logging.ContextWithMessageID(ctx, messageID)

	if status != codes.MsgStatusDelivered && status != codes.MsgStatusFailed {
		slog.DebugContext(logCtx, "Ignoring non-final delivery status", slog.String("status", status))
		r.metrics.Callback(ResultIgnored)
		return ResultIgnored, nil
	}
	if status == codes.MsgStatusDelivered && deliveredAt == nil {
		now := r.now()
		deliveredAt = &now
	}
	if status == codes.MsgStatusFailed {
		deliveredAt = nil
	}

	rec, changed, err := r.store.TransitionRecord(logCtx, messageID, status, deliveredAt)
	if errors.Is(err, campaign.ErrNotFound) {
		slog.WarnContext(logCtx, "Delivery callback for unknown message dropped", slog.String("status", status))
		r.metrics.Callback(ResultUnknown)
		return ResultUnknown, ErrUnknownMessage
	}
	if err != nil {
		slog.ErrorContext(logCtx, "Failed to apply delivery callback", slog.Any("error", err))
		return "", fmt.Errorf("transition record %s: %w", messageID, err)
	}
	if !changed {
		slog.InfoContext(logCtx, "Duplicate delivery callback", slog.String("status", status), slog.String("current", rec.Status))
		r.metrics.Callback(ResultDuplicate)
		return ResultDuplicate, nil
	}

	if status == codes.MsgStatusDelivered && rec.CampaignID != nil {
		campaignCtx := logging.ContextWithCampaignID(logCtx, *rec.CampaignID)
		if err := r.store.IncrementDelivered(campaignCtx, *rec.CampaignID); err != nil {
			slog.ErrorContext(campaignCtx, "Failed to increment delivered count", slog.Any("error", err))
		}
	}
	slog.InfoContext(logCtx, "Delivery status applied", slog.String("status", status))
	r.metrics.Callback(ResultApplied)
	return ResultApplied, nil
}

// Apply handles a parsed gateway webhook.
func (r *Reconciler) Apply(ctx context.Context, cb *gateway.Callback) (string, error) {
	return r.OnCallback(ctx, cb.MessageID, cb.Status, cb.DeliveredAt)
}

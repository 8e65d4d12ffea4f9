// Package workers runs the periodic background loops: the campaign
// scheduler, dispatch recovery and the low-balance notifier.
package workers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	cmap "github.com/orcaman/concurrent-map/v2"
	"golang.org/x/sync/errgroup"

	"github.com/thrillee/bulksms/internal/campaign"
	"github.com/thrillee/bulksms/internal/config"
	"github.com/thrillee/bulksms/internal/ledger"
	"github.com/thrillee/bulksms/internal/logging"
	"github.com/thrillee/bulksms/internal/notification"
	"github.com/thrillee/bulksms/internal/queue"
)

// CampaignSource is the campaign store surface used by the scheduler and
// recovery loops.
type CampaignSource interface {
	DueCampaigns(ctx context.Context, before time.Time, limit int) ([]campaign.Campaign, error)
	StalledCampaigns(ctx context.Context, before time.Time, limit int) ([]campaign.Campaign, error)
	RecordByReservation(ctx context.Context, reservationID uuid.UUID) (campaign.DispatchRecord, error)
}

// CreditSource is the ledger surface used by the low-balance and recovery loops.
type CreditSource interface {
	LowBalances(ctx context.Context, threshold int64, limit int) ([]ledger.Account, error)
	MarkLowBalanceNotified(ctx context.Context, userID string) error
	StaleReservations(ctx context.Context, before time.Time, limit int) ([]ledger.Reservation, error)
	Commit(ctx context.Context, res ledger.Reservation) error
	Release(ctx context.Context, res ledger.Reservation) error
}

var (
	_ CampaignSource = (campaign.Store)(nil)
	_ CreditSource   = (*ledger.Ledger)(nil)
)

// Manager orchestrates the background worker loops.
type Manager struct {
	campaigns CampaignSource
	balances  CreditSource
	dispatch  queue.Handler
	notifier  notification.Notifier
	cfg       config.WorkerConfig

	// campaigns handed off recently, so a slow consumer does not get the
	// same campaign on every tick
	handedOff cmap.ConcurrentMap[string, time.Time]
	resumed   cmap.ConcurrentMap[string, time.Time]
	now       func() time.Time
}

// NewManager wires the loops. dispatch must hand the job off and return:
// it either publishes to the broker or starts an in-process job.
func NewManager(campaigns CampaignSource, balances CreditSource, dispatch queue.Handler, notifier notification.Notifier, cfg config.WorkerConfig) *Manager {
	return &Manager{
		campaigns: campaigns,
		balances:  balances,
		dispatch:  dispatch,
		notifier:  notifier,
		cfg:       cfg,
		handedOff: cmap.New[time.Time](),
		resumed:   cmap.New[time.Time](),
		now:       time.Now,
	}
}

// Start launches the worker loops; they stop when ctx is done.
func (m *Manager) Start(ctx context.Context) {
	slog.InfoContext(ctx, "Starting background workers")
	go runWorkerLoop(ctx, "campaign-scheduler", m.cfg.SchedulerInterval, m.cfg.RunTimeout, m.cfg.SchedulerBatchSize, m.dispatchDue)
	go runWorkerLoop(ctx, "dispatch-recovery", m.cfg.RecoveryInterval, time.Minute, m.cfg.SchedulerBatchSize, m.recoverDispatches)
	go runWorkerLoop(ctx, "low-balance-notifier", m.cfg.LowBalanceInterval, time.Minute, 100, m.checkLowBalances)
}

func expire(handed cmap.ConcurrentMap[string, time.Time], now time.Time, ttl time.Duration) {
	for key, at := range handed.Items() {
		if now.Sub(at) > ttl {
			handed.Remove(key)
		}
	}
}

// dispatchDue hands every due campaign to dispatch, at most
// SchedulerConcurrency at a time.
func (m *Manager) dispatchDue(ctx context.Context, batchSize int) (int, error) {
	now := m.now()
	due, err := m.campaigns.DueCampaigns(ctx, now, batchSize)
	if err != nil {
		return 0, fmt.Errorf("list due campaigns: %w", err)
	}

	expire(m.handedOff, now, m.cfg.RunTimeout)

	var dispatched atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, m.cfg.SchedulerConcurrency))
	for _, c := range due {
		key := strconv.FormatInt(c.ID, 10)
		if !m.handedOff.SetIfAbsent(key, now) {
			continue
		}
		c := c
		g.Go(func() error {
			logCtx := logging.ContextWithCampaignID(logging.ContextWithUserID(gctx, c.UserID), c.ID)
			job := queue.NewCampaignJob(c.UserID, c.ID, "scheduler")
			if err := m.dispatch(logCtx, job); err != nil {
				// allow a retry on the next tick
				m.handedOff.Remove(key)
				slog.ErrorContext(logCtx, "Failed to dispatch scheduled campaign", slog.Any("error", err))
				return nil
			}
			dispatched.Add(1)
			return nil
		})
	}
	err = g.Wait()
	return int(dispatched.Load()), err
}

// recoverDispatches cleans up after dispatches that died mid-campaign: it
// settles reservations they left held and hands stalled campaigns off for a
// resume.
func (m *Manager) recoverDispatches(ctx context.Context, batchSize int) (int, error) {
	now := m.now()
	settled, err := m.settleStaleReservations(ctx, now.Add(-m.cfg.ReservationStaleAfter), batchSize)
	if err != nil {
		return settled, err
	}
	resumed, err := m.resumeStalled(ctx, now, batchSize)
	return settled + resumed, err
}

// settleStaleReservations commits a held reservation whose dispatch record
// carries a charge and releases every other one.
func (m *Manager) settleStaleReservations(ctx context.Context, before time.Time, batchSize int) (int, error) {
	stale, err := m.balances.StaleReservations(ctx, before, batchSize)
	if err != nil {
		return 0, fmt.Errorf("list stale reservations: %w", err)
	}

	settled := 0
	for _, res := range stale {
		logCtx := logging.ContextWithUserID(ctx, res.UserID)
		charged := false
		rec, err := m.campaigns.RecordByReservation(logCtx, res.ID)
		switch {
		case err == nil:
			charged = rec.Credits > 0
		case errors.Is(err, campaign.ErrNotFound):
			// never sent, or sent without a record; the user is not charged
		default:
			slog.ErrorContext(logCtx, "Failed to look up record of stale reservation",
				slog.String("reservation_id", res.ID.String()), slog.Any("error", err))
			continue
		}

		settle := m.balances.Release
		if charged {
			settle = m.balances.Commit
		}
		if err := settle(logCtx, res); err != nil {
			slog.ErrorContext(logCtx, "Failed to settle stale reservation",
				slog.String("reservation_id", res.ID.String()), slog.Any("error", err))
			continue
		}
		slog.WarnContext(logCtx, "Settled reservation left held by an interrupted dispatch",
			slog.String("reservation_id", res.ID.String()),
			slog.Int64("amount", res.Amount),
			slog.Bool("committed", charged),
		)
		settled++
	}
	return settled, nil
}

// resumeStalled hands off a resume job for every claimed campaign with no
// progress for StallAfter.
func (m *Manager) resumeStalled(ctx context.Context, now time.Time, batchSize int) (int, error) {
	before := now.Add(-m.cfg.StallAfter)
	stalled, err := m.campaigns.StalledCampaigns(ctx, before, batchSize)
	if err != nil {
		return 0, fmt.Errorf("list stalled campaigns: %w", err)
	}
	expire(m.resumed, now, m.cfg.StallAfter)

	handed := 0
	for _, c := range stalled {
		key := strconv.FormatInt(c.ID, 10)
		if !m.resumed.SetIfAbsent(key, now) {
			continue
		}
		logCtx := logging.ContextWithCampaignID(logging.ContextWithUserID(ctx, c.UserID), c.ID)
		if err := m.dispatch(logCtx, queue.NewResumeJob(c.UserID, c.ID, before)); err != nil {
			m.resumed.Remove(key)
			slog.ErrorContext(logCtx, "Failed to hand off stalled campaign", slog.Any("error", err))
			continue
		}
		slog.WarnContext(logCtx, "Stalled campaign handed off for resume",
			slog.Int("success", c.SuccessCount),
			slog.Int("failure", c.FailureCount),
			slog.Int("recipients", c.RecipientCount),
		)
		handed++
	}
	return handed, nil
}

// checkLowBalances notifies users whose balance fell under the threshold.
func (m *Manager) checkLowBalances(ctx context.Context, batchSize int) (int, error) {
	accounts, err := m.balances.LowBalances(ctx, m.cfg.LowBalanceThreshold, batchSize)
	if err != nil {
		return 0, fmt.Errorf("list low balances: %w", err)
	}

	processed := 0
	for _, acct := range accounts {
		logCtx := logging.ContextWithUserID(ctx, acct.UserID)
		subject := "Low SMS credit balance"
		body := fmt.Sprintf("Your balance is %d credits, below the %d credit threshold. Top up to keep campaigns running.",
			acct.Credits, m.cfg.LowBalanceThreshold)

		if err := m.notifier.Send(logCtx, acct.UserID, subject, body); err != nil {
			// leave unmarked so the next run retries
			slog.WarnContext(logCtx, "Failed to send low balance notification", slog.Any("error", err))
			continue
		}
		if err := m.balances.MarkLowBalanceNotified(logCtx, acct.UserID); err != nil {
			slog.ErrorContext(logCtx, "Failed to mark low balance notified", slog.Any("error", err))
			continue
		}
		processed++
	}
	return processed, nil
}

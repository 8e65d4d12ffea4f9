package workers

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thrillee/bulksms/internal/campaign"
	"github.com/thrillee/bulksms/internal/config"
	"github.com/thrillee/bulksms/internal/ledger"
	"github.com/thrillee/bulksms/internal/notification"
	"github.com/thrillee/bulksms/internal/queue"
)

type fakeDue struct {
	DueFunc func(ctx context.Context, before time.Time, limit int) ([]campaign.Campaign, error)
}

func (f fakeDue) DueCampaigns(ctx context.Context, before time.Time, limit int) ([]campaign.Campaign, error) {
	return f.DueFunc(ctx, before, limit)
}

func (fakeDue) StalledCampaigns(context.Context, time.Time, int) ([]campaign.Campaign, error) {
	return nil, nil
}

func (fakeDue) RecordByReservation(context.Context, uuid.UUID) (campaign.DispatchRecord, error) {
	return campaign.DispatchRecord{}, campaign.ErrNotFound
}

func testConfig() config.WorkerConfig {
	return config.WorkerConfig{
		SchedulerInterval:    time.Second,
		SchedulerBatchSize:   10,
		SchedulerConcurrency: 2,
		LowBalanceThreshold:  50,
		RunTimeout:           time.Minute,
		StallAfter:            5 * time.Minute,
		ReservationStaleAfter: 10 * time.Minute,
	}
}

func TestDispatchDue_HandsOffOncePerWindow(t *testing.T) {
	due := fakeDue{DueFunc: func(context.Context, time.Time, int) ([]campaign.Campaign, error) {
		return []campaign.Campaign{{ID: 1, UserID: "u1"}, {ID: 2, UserID: "u2"}, {ID: 3, UserID: "u1"}}, nil
	}}

	var mu sync.Mutex
	seen := map[int64]int{}
	var running, peak atomic.Int64
	dispatch := func(_ context.Context, job queue.CampaignJob) error {
		n := running.Add(1)
		defer running.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		mu.Lock()
		seen[job.CampaignID]++
		mu.Unlock()
		assert.Equal(t, "scheduler", job.Source)
		return nil
	}

	m := NewManager(due, nil, dispatch, nil, testConfig())
	n, err := m.dispatchDue(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.LessOrEqual(t, peak.Load(), int64(2))

	n, err = m.dispatchDue(context.Background(), 10)
	require.NoError(t, err)
	assert.Zero(t, n, "recently handed off campaigns are skipped")

	later := time.Now().Add(2 * time.Minute)
	m.now = func() time.Time { return later }
	n, err = m.dispatchDue(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, map[int64]int{1: 2, 2: 2, 3: 2}, seen)
}

func TestDispatchDue_FailedHandOffRetried(t *testing.T) {
	due := fakeDue{DueFunc: func(context.Context, time.Time, int) ([]campaign.Campaign, error) {
		return []campaign.Campaign{{ID: 9, UserID: "u1"}}, nil
	}}
	var calls atomic.Int64
	dispatch := func(context.Context, queue.CampaignJob) error {
		if calls.Add(1) == 1 {
			return errors.New("broker down")
		}
		return nil
	}
	m := NewManager(due, nil, dispatch, nil, testConfig())

	n, err := m.dispatchDue(context.Background(), 10)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = m.dispatchDue(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestDispatchDue_ListError(t *testing.T) {
	due := fakeDue{DueFunc: func(context.Context, time.Time, int) ([]campaign.Campaign, error) {
		return nil, errors.New("db down")
	}}
	m := NewManager(due, nil, func(context.Context, queue.CampaignJob) error { return nil }, nil, testConfig())
	_, err := runWork(context.Background(), time.Second, 10, m.dispatchDue)
	assert.Error(t, err)
}

func TestCheckLowBalances(t *testing.T) {
	ctx := context.Background()
	l := ledger.New(ledger.NewMemoryStore())
	_, _, err := l.TopUp(ctx, "poor", 10, "seed-poor")
	require.NoError(t, err)
	_, _, err = l.TopUp(ctx, "rich", 500, "seed-rich")
	require.NoError(t, err)

	notifier := &notification.RecordingNotifier{}
	m := NewManager(nil, l, nil, notifier, testConfig())

	n, err := m.checkLowBalances(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	msgs := notifier.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "poor", msgs[0].Recipient)
	assert.Contains(t, msgs[0].Body, "10 credits")

	n, err = m.checkLowBalances(ctx, 100)
	require.NoError(t, err)
	assert.Zero(t, n, "already notified")
}

func TestCheckLowBalances_NotifierFailureLeavesUnmarked(t *testing.T) {
	ctx := context.Background()
	l := ledger.New(ledger.NewMemoryStore())
	_, _, err := l.TopUp(ctx, "poor", 10, "seed-poor")
	require.NoError(t, err)

	notifier := &notification.RecordingNotifier{Err: errors.New("smtp down")}
	m := NewManager(nil, l, nil, notifier, testConfig())

	n, err := m.checkLowBalances(ctx, 100)
	require.NoError(t, err)
	assert.Zero(t, n)

	notifier.Err = nil
	n, err = m.checkLowBalances(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRunWork_RecoversPanic(t *testing.T) {
	_, err := runWork(context.Background(), time.Second, 1, func(context.Context, int) (int, error) {
		panic("boom")
	})
	assert.Error(t, err)
}

package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thrillee/bulksms/internal/campaign"
	"github.com/thrillee/bulksms/internal/gateway"
	"github.com/thrillee/bulksms/internal/ledger"
	"github.com/thrillee/bulksms/internal/notification"
	"github.com/thrillee/bulksms/internal/pricing"
	"github.com/thrillee/bulksms/internal/queue"
	"github.com/thrillee/bulksms/pkg/codes"
	"github.com/thrillee/bulksms/pkg/errormapper"
)

type fakeSender struct {
	SendFunc func(ctx context.Context, req gateway.Request) (*gateway.Response, error)
	calls    atomic.Int64
}

func (f *fakeSender) Send(ctx context.Context, req gateway.Request) (*gateway.Response, error) {
	n := f.calls.Add(1)
	if f.SendFunc != nil {
		return f.SendFunc(ctx, req)
	}
	return &gateway.Response{MessageID: "gw-" + req.Recipient + "-" + string(rune('a'+n)), Status: "sent"}, nil
}

type fixture struct {
	store    *campaign.MemoryStore
	ledger   *ledger.Ledger
	sender   *fakeSender
	notifier *notification.RecordingNotifier
	orch     *Orchestrator
	svc      *campaign.Service
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	pricer, err := pricing.NewCalculator("221", decimal.NewFromInt(25), decimal.NewFromInt(60), decimal.Zero)
	require.NoError(t, err)

	f := &fixture{
		store:    campaign.NewMemoryStore(),
		ledger:   ledger.New(ledger.NewMemoryStore()),
		sender:   &fakeSender{},
		notifier: &notification.RecordingNotifier{},
	}
	if opts.OperatorContact == "" {
		opts.OperatorContact = "ops"
	}
	f.orch = NewOrchestrator(f.store, f.ledger, pricer, f.sender, f.notifier, nil, opts)
	f.svc = campaign.NewService(f.store, "INFO")
	return f
}

func (f *fixture) fund(t *testing.T, userID string, credits int64) {
	t.Helper()
	_, _, err := f.ledger.TopUp(context.Background(), userID, credits, "seed-"+userID)
	require.NoError(t, err)
}

func (f *fixture) campaignWith(t *testing.T, userID string, n int) campaign.Campaign {
	t.Helper()
	ctx := context.Background()
	var ids []int64
	for i := 0; i < n; i++ {
		c, err := f.svc.CreateContact(ctx, campaign.Contact{
			UserID:    userID,
			FirstName: "Awa",
			Phone:     "22177000000" + string(rune('0'+i)),
		})
		require.NoError(t, err)
		ids = append(ids, c.ID)
	}
	c, _, err := f.svc.Create(ctx, userID, campaign.Draft{Name: "Promo", Template: "Bonjour {first_name}", ContactIDs: ids})
	require.NoError(t, err)
	return c
}

func (f *fixture) balance(t *testing.T, userID string) int64 {
	t.Helper()
	b, err := f.ledger.Balance(context.Background(), userID)
	require.NoError(t, err)
	return b
}

func TestSendCampaign_StopsChargingWhenCreditRunsOut(t *testing.T) {
	f := newFixture(t, Options{})
	f.fund(t, "u1", 5)
	c := f.campaignWith(t, "u1", 6)

	res, err := f.orch.SendCampaign(context.Background(), "u1", c.ID)
	require.NoError(t, err)

	assert.Equal(t, codes.CampaignStatusSent, res.Status)
	assert.Equal(t, 5, res.Success)
	assert.Equal(t, 1, res.Failure)
	assert.Equal(t, int64(0), f.balance(t, "u1"))
	assert.Equal(t, int64(5), f.sender.calls.Load())

	stored, err := f.store.GetCampaign(context.Background(), "u1", c.ID)
	require.NoError(t, err)
	assert.Equal(t, codes.CampaignStatusSent, stored.Status)
	assert.Equal(t, stored.RecipientCount, stored.SuccessCount+stored.FailureCount)
	assert.NotNil(t, stored.SentAt)

	records, err := f.store.ListRecords(context.Background(), "u1", c.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, records, 6)
	last := records[5]
	assert.Equal(t, codes.MsgStatusFailed, last.Status)
	assert.Equal(t, errormapper.ErrorCodeInsufficientCredit, last.ErrorCode)
	assert.True(t, last.Cost.IsZero())
	assert.Equal(t, "Bonjour Awa", records[0].Body)
	assert.Equal(t, codes.MsgStatusSent, records[0].Status)
	assert.True(t, records[0].Cost.Equal(decimal.NewFromInt(25)))
}

func TestSendCampaign_TransportFailureReleasesAndAlertsOnce(t *testing.T) {
	f := newFixture(t, Options{})
	f.fund(t, "u1", 10)
	c := f.campaignWith(t, "u1", 3)
	f.sender.SendFunc = func(context.Context, gateway.Request) (*gateway.Response, error) {
		return nil, &gateway.UnreachableError{Cause: context.DeadlineExceeded}
	}

	res, err := f.orch.SendCampaign(context.Background(), "u1", c.ID)
	require.NoError(t, err)

	assert.Equal(t, 0, res.Success)
	assert.Equal(t, 3, res.Failure)
	assert.Equal(t, codes.CampaignStatusSent, res.Status)
	assert.Equal(t, int64(10), f.balance(t, "u1"))
	assert.Len(t, f.notifier.Messages(), 1)

	records, err := f.store.ListRecords(context.Background(), "u1", c.ID, 0, 0)
	require.NoError(t, err)
	for _, r := range records {
		assert.Equal(t, codes.MsgStatusFailed, r.Status)
		assert.Equal(t, errormapper.ErrorCodeGatewayUnreachable, r.ErrorCode)
		assert.True(t, r.Cost.IsZero())
		assert.NotEmpty(t, r.MessageID)
	}
}

func TestSendCampaign_RejectionPolicy(t *testing.T) {
	reject := func(context.Context, gateway.Request) (*gateway.Response, error) {
		return nil, &gateway.RejectedError{Code: 104, Kind: gateway.KindInvalidRecipient, Message: "bad number", Raw: `{"code":104}`}
	}

	t.Run("released by default", func(t *testing.T) {
		f := newFixture(t, Options{})
		f.fund(t, "u1", 4)
		c := f.campaignWith(t, "u1", 2)
		f.sender.SendFunc = reject

		res, err := f.orch.SendCampaign(context.Background(), "u1", c.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, res.Failure)
		assert.Equal(t, int64(4), f.balance(t, "u1"))
		assert.Empty(t, f.notifier.Messages())

		records, err := f.store.ListRecords(context.Background(), "u1", c.ID, 0, 0)
		require.NoError(t, err)
		assert.Equal(t, "104", records[0].ErrorCode)
		assert.True(t, records[0].Cost.IsZero())
	})

	t.Run("charged when configured", func(t *testing.T) {
		f := newFixture(t, Options{ChargeRejectedSends: true})
		f.fund(t, "u1", 4)
		c := f.campaignWith(t, "u1", 2)
		f.sender.SendFunc = reject

		_, err := f.orch.SendCampaign(context.Background(), "u1", c.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), f.balance(t, "u1"))

		records, err := f.store.ListRecords(context.Background(), "u1", c.ID, 0, 0)
		require.NoError(t, err)
		assert.True(t, records[0].Cost.Equal(decimal.NewFromInt(25)))
	})
}

func TestSendCampaign_Cancel(t *testing.T) {
	f := newFixture(t, Options{})
	f.fund(t, "u1", 10)
	c := f.campaignWith(t, "u1", 4)
	f.sender.SendFunc = func(_ context.Context, req gateway.Request) (*gateway.Response, error) {
		assert.True(t, f.orch.Cancel(c.ID))
		return &gateway.Response{MessageID: "gw-" + req.Recipient}, nil
	}

	res, err := f.orch.SendCampaign(context.Background(), "u1", c.ID)
	require.NoError(t, err)
	assert.True(t, res.Cancelled)
	assert.Equal(t, codes.CampaignStatusFailed, res.Status)
	assert.Equal(t, 1, res.Attempted)
	assert.Equal(t, int64(9), f.balance(t, "u1"))
	assert.False(t, f.orch.InFlight(c.ID))
	assert.False(t, f.orch.Cancel(c.ID))

	stored, err := f.store.GetCampaign(context.Background(), "u1", c.ID)
	require.NoError(t, err)
	assert.Equal(t, codes.CampaignStatusFailed, stored.Status)
	assert.Equal(t, 1, stored.SuccessCount)
}

func TestSendCampaign_RunsPastCallerContext(t *testing.T) {
	f := newFixture(t, Options{})
	f.fund(t, "u1", 10)
	c := f.campaignWith(t, "u1", 3)

	ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
	f.sender.SendFunc = func(sendCtx context.Context, req gateway.Request) (*gateway.Response, error) {
		cancel()
		if err := sendCtx.Err(); err != nil {
			return nil, &gateway.UnreachableError{Cause: err}
		}
		return &gateway.Response{MessageID: "gw-" + req.Recipient}, nil
	}

	res, err := f.orch.SendCampaign(ctx, "u1", c.ID)
	require.NoError(t, err)
	assert.False(t, res.Cancelled)
	assert.Equal(t, codes.CampaignStatusSent, res.Status)
	assert.Equal(t, 3, res.Success)
	assert.Equal(t, int64(7), f.balance(t, "u1"))
}

func TestSendCampaign_DrainThenResume(t *testing.T) {
	f := newFixture(t, Options{})
	f.fund(t, "u1", 10)
	c := f.campaignWith(t, "u1", 4)
	f.sender.SendFunc = func(_ context.Context, req gateway.Request) (*gateway.Response, error) {
		f.orch.Drain()
		return &gateway.Response{MessageID: "gw-" + req.Recipient}, nil
	}

	res, err := f.orch.SendCampaign(context.Background(), "u1", c.ID)
	require.NoError(t, err)
	assert.True(t, res.Interrupted)
	assert.False(t, res.Cancelled)
	assert.Equal(t, 1, res.Attempted)

	stored, err := f.store.GetCampaign(context.Background(), "u1", c.ID)
	require.NoError(t, err)
	assert.Equal(t, codes.CampaignStatusDraft, stored.Status)
	assert.Nil(t, stored.SentAt)
	assert.Equal(t, 1, stored.SuccessCount)

	_, err = f.orch.SendCampaign(context.Background(), "u1", c.ID)
	assert.ErrorIs(t, err, ErrCampaignNotSendable, "a claimed campaign is not sent twice")

	// a fresh process picks it up once it counts as stalled
	pricer, err := pricing.NewCalculator("221", decimal.NewFromInt(25), decimal.NewFromInt(60), decimal.Zero)
	require.NoError(t, err)
	resumer := &fakeSender{}
	other := NewOrchestrator(f.store, f.ledger, pricer, resumer, f.notifier, nil, Options{OperatorContact: "ops"})

	_, err = other.ResumeCampaign(context.Background(), "u1", c.ID, time.Now().Add(-time.Minute))
	assert.ErrorIs(t, err, ErrCampaignNotSendable, "recent progress means another process may still own it")

	err = other.HandleJob(context.Background(), queue.NewResumeJob("u1", c.ID, time.Now().Add(time.Minute)))
	require.NoError(t, err)
	assert.Equal(t, int64(3), resumer.calls.Load())

	stored, err = f.store.GetCampaign(context.Background(), "u1", c.ID)
	require.NoError(t, err)
	assert.Equal(t, codes.CampaignStatusSent, stored.Status)
	assert.Equal(t, 4, stored.SuccessCount)
	assert.Equal(t, int64(6), f.balance(t, "u1"))

	records, err := f.store.ListRecords(context.Background(), "u1", c.ID, 0, 0)
	require.NoError(t, err)
	assert.Len(t, records, 4)
}

func TestSendCampaign_Guards(t *testing.T) {
	f := newFixture(t, Options{})
	f.fund(t, "u1", 10)
	c := f.campaignWith(t, "u1", 1)

	started := make(chan struct{})
	unblock := make(chan struct{})
	f.sender.SendFunc = func(_ context.Context, req gateway.Request) (*gateway.Response, error) {
		close(started)
		<-unblock
		return &gateway.Response{MessageID: "gw-" + req.Recipient}, nil
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := f.orch.SendCampaign(context.Background(), "u1", c.ID)
		assert.NoError(t, err)
	}()

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatch did not start")
	}
	_, err := f.orch.SendCampaign(context.Background(), "u1", c.ID)
	assert.ErrorIs(t, err, ErrCampaignInFlight)
	close(unblock)
	wg.Wait()

	_, err = f.orch.SendCampaign(context.Background(), "u1", c.ID)
	assert.ErrorIs(t, err, ErrCampaignNotSendable)

	_, err = f.orch.SendCampaign(context.Background(), "u2", c.ID)
	var nf *NotFoundError
	assert.True(t, errors.As(err, &nf))
}

func TestSendSingle(t *testing.T) {
	f := newFixture(t, Options{DefaultSignature: "INFO"})
	ctx := context.Background()

	rec, err := f.orch.SendSingle(ctx, "u1", "+221770000001", "hello", "")
	assert.ErrorIs(t, err, ErrInsufficientCredit)
	require.NotNil(t, rec)
	assert.Equal(t, codes.MsgStatusFailed, rec.Status)
	assert.Zero(t, f.sender.calls.Load())

	f.fund(t, "u1", 5)
	var got gateway.Request
	f.sender.SendFunc = func(_ context.Context, req gateway.Request) (*gateway.Response, error) {
		got = req
		return &gateway.Response{}, nil
	}
	rec, err = f.orch.SendSingle(ctx, "u1", "33612345678", "hello", "")
	require.NoError(t, err)
	assert.Equal(t, "INFO", got.Signature)
	assert.Equal(t, codes.MsgStatusSent, rec.Status)
	assert.NotEmpty(t, rec.MessageID, "local id assigned when gateway returns none")
	assert.Nil(t, rec.CampaignID)
	// international rate 60 over a domestic credit value of 25
	assert.Equal(t, int64(3), rec.Credits)
	assert.Equal(t, int64(2), f.balance(t, "u1"))

	_, err = f.orch.SendSingle(ctx, "u1", "12", "hello", "")
	_, ok := campaign.IsValidation(err)
	assert.True(t, ok)
	_, err = f.orch.SendSingle(ctx, "u1", "221770000001", "  ", "")
	_, ok = campaign.IsValidation(err)
	assert.True(t, ok)
}

func TestHandleJob(t *testing.T) {
	f := newFixture(t, Options{})
	f.fund(t, "u1", 5)
	c := f.campaignWith(t, "u1", 2)

	require.NoError(t, f.orch.HandleJob(context.Background(), queue.NewCampaignJob("u1", c.ID, "test")))

	err := f.orch.HandleJob(context.Background(), queue.NewCampaignJob("u1", c.ID, "test"))
	assert.True(t, queue.IsPermanent(err))
	assert.ErrorIs(t, err, ErrCampaignNotSendable)

	err = f.orch.HandleJob(context.Background(), queue.NewCampaignJob("u1", 999, "test"))
	assert.True(t, queue.IsPermanent(err))
}

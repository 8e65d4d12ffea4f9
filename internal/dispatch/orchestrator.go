// Package dispatch sends single messages and campaigns: it prices each
// recipient, reserves credits, calls the gateway and settles the outcome.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/shopspring/decimal"

	"github.com/thrillee/bulksms/internal/campaign"
	"github.com/thrillee/bulksms/internal/gateway"
	"github.com/thrillee/bulksms/internal/ledger"
	"github.com/thrillee/bulksms/internal/logging"
	"github.com/thrillee/bulksms/internal/metrics"
	"github.com/thrillee/bulksms/internal/notification"
	"github.com/thrillee/bulksms/internal/pricing"
	"github.com/thrillee/bulksms/internal/template"
	"github.com/thrillee/bulksms/pkg/codes"
	"github.com/thrillee/bulksms/pkg/errormapper"
)

var (
	ErrCampaignNotSendable = errors.New("campaign is not in a sendable state")
	ErrCampaignInFlight    = errors.New("campaign is already being dispatched")
	ErrInsufficientCredit  = errors.New("insufficient credit")
)

// NotFoundError is returned when a campaign does not exist for the user.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// Outcome labels used for metrics and logs.
const (
	OutcomeSuccess            = "success"
	OutcomeRejected           = "rejected"
	OutcomeUnreachable        = "unreachable"
	OutcomeInsufficientCredit = "insufficient_credit"
	OutcomeError              = "error"
)

// CreditLedger is the part of the ledger the orchestrator needs.
type CreditLedger interface {
	Reserve(ctx context.Context, userID string, amount int64) (ledger.Reservation, bool, error)
	Commit(ctx context.Context, res ledger.Reservation) error
	Release(ctx context.Context, res ledger.Reservation) error
}

var _ CreditLedger = (*ledger.Ledger)(nil)

// Options tune dispatch policy.
type Options struct {
	// ChargeRejectedSends keeps the debit when the gateway explicitly rejects a message.
	ChargeRejectedSends bool
	DefaultSignature    string
	// OperatorContact receives gateway outage alerts.
	OperatorContact string
}

// CampaignResult summarises one SendCampaign run.
type CampaignResult struct {
	CampaignID int64  `json:"campaign_id"`
	Status     string `json:"status"`
	Recipients int    `json:"recipient_count"`
	Attempted  int    `json:"attempted"`
	Success    int    `json:"success_count"`
	Failure    int    `json:"failure_count"`
	Cancelled  bool   `json:"cancelled"`
	// Interrupted runs stopped for shutdown and stay claimed for a resume.
	Interrupted bool `json:"interrupted,omitempty"`
}

type Orchestrator struct {
	store    campaign.Store
	ledger   CreditLedger
	pricer   *pricing.Calculator
	sender   gateway.Sender
	notifier notification.Notifier
	metrics  *metrics.Metrics
	opts     Options

	inFlight  cmap.ConcurrentMap[string, struct{}]
	cancelled cmap.ConcurrentMap[string, struct{}]
	draining  atomic.Bool
	now       func() time.Time
}

func NewOrchestrator(
	store campaign.Store,
	l CreditLedger,
	pricer *pricing.Calculator,
	sender gateway.Sender,
	notifier notification.Notifier,
	m *metrics.Metrics,
	opts Options,
) *Orchestrator {
	if notifier == nil {
		notifier = notification.NewLogNotifier()
	}
	return &Orchestrator{
		store:     store,
		ledger:    l,
		pricer:    pricer,
		sender:    sender,
		notifier:  notifier,
		metrics:   m,
		opts:      opts,
		inFlight:  cmap.New[struct{}](),
		cancelled: cmap.New[struct{}](),
		now:       time.Now,
	}
}

// attempt carries the per-recipient inputs through the pipeline.
type attempt struct {
	userID     string
	campaignID *int64
	recipient  string
	body       string
	signature  string
}

// run tracks state shared by the recipients of one dispatch.
type run struct {
	alerted bool
}

// SendSingle sends one message outside any campaign. The returned record is
// non-nil whenever an attempt was made; err then carries the business outcome
// (ErrInsufficientCredit, *gateway.RejectedError, *gateway.UnreachableError).
func (o *Orchestrator) SendSingle(ctx context.Context, userID, recipient, message, signature string) (*campaign.DispatchRecord, error) {
	recipient = campaign.NormalizePhone(recipient)
	if !campaign.ValidPhone(recipient) {
		return nil, &campaign.ValidationError{Field: "recipient", Message: "must be 8 to 15 digits"}
	}
	if strings.TrimSpace(message) == "" {
		return nil, &campaign.ValidationError{Field: "message", Message: "is required"}
	}
	if strings.TrimSpace(signature) == "" {
		signature = o.opts.DefaultSignature
	}

	rec, outcome := o.process(ctx, &run{}, attempt{
		userID:    userID,
		recipient: recipient,
		body:      message,
		signature: signature,
	})
	return &rec, outcome
}

// Cancel asks an in-flight campaign to stop before its next recipient.
// It reports false when the campaign is not being dispatched by this process.
func (o *Orchestrator) Cancel(campaignID int64) bool {
	key := strconv.FormatInt(campaignID, 10)
	if !o.inFlight.Has(key) {
		return false
	}
	o.cancelled.Set(key, struct{}{})
	return true
}

// Drain stops every running campaign before its next recipient without
// finishing it. Call it on graceful shutdown.
func (o *Orchestrator) Drain() {
	o.draining.Store(true)
}

// InFlight reports whether this process is dispatching the campaign.
func (o *Orchestrator) InFlight(campaignID int64) bool {
	return o.inFlight.Has(strconv.FormatInt(campaignID, 10))
}

// SendCampaign dispatches every recipient of a draft or scheduled campaign in
// order. The run is detached from ctx: a recipient failure never stops it,
// Cancel ends it failed and Drain pauses it for ResumeCampaign.
func (o *Orchestrator) SendCampaign(ctx context.Context, userID string, campaignID int64) (CampaignResult, error) {
	return o.claimAndRun(ctx, userID, campaignID, func(runCtx context.Context) (campaign.Campaign, error) {
		return o.store.ClaimForDispatch(runCtx, userID, campaignID)
	})
}

// ResumeCampaign takes over a claimed campaign that has made no progress
// since stalledBefore and sends to the recipients without a dispatch record.
// A campaign that moved on since then is ErrCampaignNotSendable.
func (o *Orchestrator) ResumeCampaign(ctx context.Context, userID string, campaignID int64, stalledBefore time.Time) (CampaignResult, error) {
	return o.claimAndRun(ctx, userID, campaignID, func(runCtx context.Context) (campaign.Campaign, error) {
		return o.store.ClaimStalled(runCtx, userID, campaignID, stalledBefore)
	})
}

func (o *Orchestrator) claimAndRun(ctx context.Context, userID string, campaignID int64, claim func(context.Context) (campaign.Campaign, error)) (CampaignResult, error) {
	key := strconv.FormatInt(campaignID, 10)
	runCtx := logging.ContextWithCampaignID(logging.ContextWithUserID(context.WithoutCancel(ctx), userID), campaignID)

	if !o.inFlight.SetIfAbsent(key, struct{}{}) {
		return CampaignResult{}, ErrCampaignInFlight
	}
	defer func() {
		o.inFlight.Remove(key)
		o.cancelled.Remove(key)
	}()

	c, err := claim(runCtx)
	switch {
	case errors.Is(err, campaign.ErrNotFound):
		return CampaignResult{}, &NotFoundError{Resource: "campaign", ID: key}
	case errors.Is(err, campaign.ErrNotDispatchable):
		return CampaignResult{}, ErrCampaignNotSendable
	case err != nil:
		return CampaignResult{}, fmt.Errorf("claim campaign %d: %w", campaignID, err)
	}
	return o.sendRecipients(runCtx, key, c)
}

// sendRecipients skips the c.SuccessCount+c.FailureCount recipients already
// attempted and sends to the rest.
func (o *Orchestrator) sendRecipients(ctx context.Context, key string, c campaign.Campaign) (CampaignResult, error) {
	recipients, err := o.store.Recipients(ctx, c.ID)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to load campaign recipients", slog.Any("error", err))
		o.finish(ctx, c.ID, codes.CampaignStatusFailed)
		return CampaignResult{}, fmt.Errorf("load recipients of campaign %d: %w", c.ID, err)
	}

	done := min(c.SuccessCount+c.FailureCount, len(recipients))
	result := CampaignResult{
		CampaignID: c.ID,
		Recipients: len(recipients),
		Success:    c.SuccessCount,
		Failure:    c.FailureCount,
	}
	if done > 0 {
		slog.InfoContext(ctx, "Campaign dispatch resumed", slog.Int("recipients", len(recipients)), slog.Int("already_attempted", done))
	} else {
		slog.InfoContext(ctx, "Campaign dispatch started", slog.Int("recipients", len(recipients)))
	}
	state := &run{}
	id := c.ID

	for _, contact := range recipients[done:] {
		if o.cancelled.Has(key) {
			result.Cancelled = true
			break
		}
		if o.draining.Load() {
			result.Interrupted = true
			break
		}
		body := template.Render(c.Template, contact.TemplateContact(), c.Signature)
		_, outcome := o.process(ctx, state, attempt{
			userID:     c.UserID,
			campaignID: &id,
			recipient:  contact.Phone,
			body:       body,
			signature:  c.Signature,
		})

		success, failure := 0, 1
		if outcome == nil {
			success, failure = 1, 0
		}
		result.Attempted++
		result.Success += success
		result.Failure += failure
		if err := o.store.AddCounters(ctx, c.ID, success, failure); err != nil {
			slog.ErrorContext(ctx, "CRITICAL: Failed to update campaign counters", slog.Any("error", err))
		}
	}

	if result.Interrupted {
		// left claimed and unfinished; recovery resumes it once it stalls
		result.Status = c.Status
		slog.WarnContext(ctx, "Campaign dispatch interrupted by shutdown", slog.Int("attempted", result.Attempted))
		return result, nil
	}

	result.Status = codes.CampaignStatusSent
	if result.Cancelled {
		result.Status = codes.CampaignStatusFailed
		slog.WarnContext(ctx, "Campaign dispatch cancelled", slog.Int("attempted", result.Attempted))
	}
	o.finish(ctx, c.ID, result.Status)

	slog.InfoContext(ctx, "Campaign dispatch finished",
		slog.String("status", result.Status),
		slog.Int("success", result.Success),
		slog.Int("failure", result.Failure),
	)
	return result, nil
}

func (o *Orchestrator) finish(ctx context.Context, campaignID int64, status string) {
	if _, err := o.store.Finish(ctx, campaignID, status); err != nil {
		slog.ErrorContext(ctx, "CRITICAL: Failed to finish campaign", slog.String("status", status), slog.Any("error", err))
		return
	}
	o.metrics.CampaignFinished(status)
}

// process runs one recipient through reserve, send and settle. The returned
// error is the business outcome; a nil error means the gateway accepted the message.
func (o *Orchestrator) process(ctx context.Context, state *run, a attempt) (campaign.DispatchRecord, error) {
	logCtx := logging.ContextWithRecipient(ctx, a.recipient)
	persistCtx := context.WithoutCancel(logCtx)
	quote := o.pricer.Quote(a.recipient, a.body)

	rec := campaign.DispatchRecord{
		CampaignID: a.campaignID,
		UserID:     a.userID,
		Recipient:  a.recipient,
		Body:       a.body,
		Segments:   quote.Segments,
		Cost:       decimal.Zero,
		Status:     codes.MsgStatusFailed,
		SentAt:     o.now(),
	}

	res, granted, err := o.ledger.Reserve(logCtx, a.userID, quote.Credits)
	if err != nil {
		o.metrics.Dispatched(OutcomeError)
		rec.ErrorCode = errormapper.ErrorCodeReservationFailed
		rec.ErrorMessage = err.Error()
		return o.record(persistCtx, rec), fmt.Errorf("reserve credits: %w", err)
	}
	if !granted {
		o.metrics.Dispatched(OutcomeInsufficientCredit)
		rec.ErrorCode = errormapper.ErrorCodeInsufficientCredit
		rec.ErrorMessage = fmt.Sprintf("%d credits required", quote.Credits)
		return o.record(persistCtx, rec), ErrInsufficientCredit
	}
	o.metrics.Reserved(res.Amount)
	rec.ReservationID = &res.ID

	resp, sendErr := o.sender.Send(logCtx, gateway.Request{
		Signature: a.signature,
		Recipient: a.recipient,
		Content:   a.body,
	})

	if sendErr == nil {
		if err := o.ledger.Commit(persistCtx, res); err != nil {
			slog.ErrorContext(logCtx, "CRITICAL: Failed to commit reservation after accepted send",
				slog.String("reservation_id", res.ID.String()), slog.Any("error", err))
		}
		o.metrics.Dispatched(OutcomeSuccess)
		rec.MessageID = resp.MessageID
		rec.Status = codes.MsgStatusSent
		rec.Cost = quote.Cost
		rec.Credits = quote.Credits
		rec.GatewayResponse = resp.Raw
		return o.record(persistCtx, rec), nil
	}

	rec.ErrorMessage = gateway.Diagnostic(sendErr)
	if rej, ok := gateway.IsRejected(sendErr); ok {
		o.metrics.Dispatched(OutcomeRejected)
		rec.ErrorCode = strconv.Itoa(rej.Code)
		rec.GatewayResponse = rej.Raw
		if o.opts.ChargeRejectedSends {
			if err := o.ledger.Commit(persistCtx, res); err != nil {
				slog.ErrorContext(logCtx, "CRITICAL: Failed to commit rejected send", slog.Any("error", err))
			}
			rec.Cost = quote.Cost
			rec.Credits = quote.Credits
		} else {
			o.release(persistCtx, res)
		}
		slog.WarnContext(logCtx, "Gateway rejected message", slog.Int("code", rej.Code), slog.String("kind", string(rej.Kind)))
		return o.record(persistCtx, rec), sendErr
	}

	o.release(persistCtx, res)
	if gateway.IsUnreachable(sendErr) {
		o.metrics.Dispatched(OutcomeUnreachable)
		rec.ErrorCode = errormapper.ErrorCodeGatewayUnreachable
		slog.ErrorContext(logCtx, "Gateway unreachable", slog.Any("error", sendErr))
		if !state.alerted {
			state.alerted = true
			if err := notification.OperatorAlert(persistCtx, o.notifier, o.opts.OperatorContact, "sms gateway", sendErr); err != nil {
				slog.ErrorContext(logCtx, "Failed to alert operators", slog.Any("error", err))
			}
		}
		return o.record(persistCtx, rec), sendErr
	}

	o.metrics.Dispatched(OutcomeError)
	rec.ErrorCode = errormapper.ErrorCodeSystemError
	slog.ErrorContext(logCtx, "Unexpected send error", slog.Any("error", sendErr))
	return o.record(persistCtx, rec), sendErr
}

func (o *Orchestrator) release(ctx context.Context, res ledger.Reservation) {
	if err := o.ledger.Release(ctx, res); err != nil {
		slog.ErrorContext(ctx, "CRITICAL: Failed to release reservation",
			slog.String("reservation_id", res.ID.String()), slog.Any("error", err))
		return
	}
	o.metrics.Released(res.Amount)
}

// record writes the audit row, assigning a local id when the gateway gave none.
func (o *Orchestrator) record(ctx context.Context, rec campaign.DispatchRecord) campaign.DispatchRecord {
	if rec.MessageID == "" {
		rec.MessageID = uuid.NewString()
	}
	stored, err := o.store.CreateRecord(ctx, rec)
	if errors.Is(err, campaign.ErrDuplicateMessageID) {
		slog.WarnContext(ctx, "Gateway message id already recorded, storing under a local id",
			slog.String("gateway_message_id", rec.MessageID))
		rec.MessageID = uuid.NewString()
		stored, err = o.store.CreateRecord(ctx, rec)
	}
	if err != nil {
		slog.ErrorContext(logging.ContextWithMessageID(ctx, rec.MessageID), "CRITICAL: Failed to store dispatch record", slog.Any("error", err))
		return rec
	}
	return stored
}

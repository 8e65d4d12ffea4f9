// Package payment credits user balances from payment provider callbacks.
package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/thrillee/bulksms/internal/config"
	"github.com/thrillee/bulksms/internal/logging"
	"github.com/thrillee/bulksms/internal/metrics"
)

const (
	StatusCredited  = "credited"
	StatusDuplicate = "duplicate"
	StatusIgnored   = "ignored"
)

var ErrAmountTooSmall = errors.New("payment amount buys no credits")

// TopUpper is the ledger operation used to credit a balance.
type TopUpper interface {
	TopUp(ctx context.Context, userID string, amount int64, reference string) (bool, int64, error)
}

// Result is the outcome of one callback.
type Result struct {
	Status  string `json:"status"`
	UserID  string `json:"user_id,omitempty"`
	Credits int64  `json:"credits"`
	Balance int64  `json:"balance,omitempty"`
}

type Service struct {
	ledger      TopUpper
	store       Store
	dedup       Deduper
	metrics     *metrics.Metrics
	creditPrice decimal.Decimal
}

func NewService(l TopUpper, store Store, dedup Deduper, m *metrics.Metrics, cfg config.PaymentConfig) (*Service, error) {
	price, err := decimal.NewFromString(cfg.CreditPrice)
	if err != nil {
		return nil, fmt.Errorf("invalid PAYMENT_CREDIT_PRICE %q: %w", cfg.CreditPrice, err)
	}
	if !price.IsPositive() {
		return nil, fmt.Errorf("PAYMENT_CREDIT_PRICE must be positive, got %s", price)
	}
	if dedup == nil {
		dedup = NewMemoryDeduper()
	}
	return &Service{ledger: l, store: store, dedup: dedup, metrics: m, creditPrice: price}, nil
}

// Credits converts a paid amount to whole credits, rounding down.
func (s *Service) Credits(amount decimal.Decimal) int64 {
	return amount.Div(s.creditPrice).Floor().IntPart()
}

// HandleCallback parses and applies a provider callback. Repeated deliveries
// of the same transaction credit the user once.
func (s *Service) HandleCallback(ctx context.Context, provider string, body []byte) (res Result, err error) {
	ev, err := Parse(provider, body)
	if err != nil {
		s.metrics.Payment(provider, "invalid")
		return Result{}, err
	}
	logCtx := logging.ContextWithUserID(ctx, ev.UserID)
	logCtx = logging.ContextWithJobID(logCtx, ev.Provider+":"+ev.TransactionID)

	if !ev.Succeeded {
		slog.InfoContext(logCtx, "Ignoring unsuccessful payment callback")
		s.metrics.Payment(provider, StatusIgnored)
		return Result{Status: StatusIgnored, UserID: ev.UserID}, nil
	}
	credits := s.Credits(ev.Amount)
	if credits <= 0 {
		s.metrics.Payment(provider, "invalid")
		return Result{}, fmt.Errorf("%w: %s %s", ErrAmountTooSmall, ev.Amount, ev.Currency)
	}

	key := ev.Provider + ":" + ev.TransactionID
	first, err := s.dedup.Claim(logCtx, key)
	if err != nil {
		// Redis down: the ledger reference still guarantees a single credit.
		slog.WarnContext(logCtx, "Payment dedup unavailable, relying on ledger", slog.Any("error", err))
		first = true
	}
	if !first {
		slog.InfoContext(logCtx, "Duplicate payment callback dropped")
		s.metrics.Payment(provider, StatusDuplicate)
		return Result{Status: StatusDuplicate, UserID: ev.UserID, Credits: credits}, nil
	}
	defer func() {
		if err != nil {
			if fErr := s.dedup.Forget(context.WithoutCancel(logCtx), key); fErr != nil {
				slog.ErrorContext(logCtx, "Failed to clear payment dedup key", slog.Any("error", fErr))
			}
		}
	}()

	applied, balance, err := s.ledger.TopUp(logCtx, ev.UserID, credits, key)
	if err != nil {
		s.metrics.Payment(provider, "error")
		return Result{}, fmt.Errorf("credit payment %s: %w", key, err)
	}

	if _, err = s.store.Insert(logCtx, Payment{
		Provider:      ev.Provider,
		TransactionID: ev.TransactionID,
		UserID:        ev.UserID,
		Credits:       credits,
		Amount:        ev.Amount,
		Status:        StatusCredited,
		RawPayload:    string(body),
	}); err != nil {
		slog.ErrorContext(logCtx, "Failed to store payment audit row", slog.Any("error", err))
		err = nil
	}

	if !applied {
		slog.InfoContext(logCtx, "Payment already credited", slog.Int64("balance", balance))
		s.metrics.Payment(provider, StatusDuplicate)
		return Result{Status: StatusDuplicate, UserID: ev.UserID, Credits: credits, Balance: balance}, nil
	}
	slog.InfoContext(logCtx, "Payment credited",
		slog.Int64("credits", credits),
		slog.Int64("balance", balance),
		slog.String("amount", ev.Amount.String()),
	)
	s.metrics.Payment(provider, StatusCredited)
	return Result{Status: StatusCredited, UserID: ev.UserID, Credits: credits, Balance: balance}, nil
}

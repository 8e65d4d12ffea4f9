// Package ledger tracks prepaid SMS credit balances. Credits are reserved
// (debited) before a send and later committed or released.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	cmap "github.com/orcaman/concurrent-map/v2"

	"github.com/thrillee/bulksms/internal/logging"
	"github.com/thrillee/bulksms/pkg/codes"
)

var (
	ErrInvalidAmount         = errors.New("ledger: amount must not be negative")
	ErrReservationNotFound   = errors.New("ledger: reservation not found")
	ErrReservationCommitted  = errors.New("ledger: reservation already committed")
	ErrReservationReleased   = errors.New("ledger: reservation already released")
	ErrTopUpReferenceMissing = errors.New("ledger: top-up reference is required")
)

// Reservation is a provisional debit awaiting commit or release.
type Reservation struct {
	ID     uuid.UUID
	UserID string
	Amount int64
}

// Settlement is the outcome of committing or releasing a reservation.
type Settlement struct {
	Reservation  Reservation
	State        string // state after the call
	Changed      bool   // false when the call was a repeat
	BalanceAfter int64
}

// Account is a balance row as returned by LowBalances.
type Account struct {
	UserID  string
	Credits int64
}

// Store persists balances and reservations. Implementations must make
// Reserve a single conditional debit: it never succeeds when balance < amount.
type Store interface {
	Balance(ctx context.Context, userID string) (int64, error)
	Reserve(ctx context.Context, res Reservation) (granted bool, balanceAfter int64, err error)
	Settle(ctx context.Context, id uuid.UUID, target string) (Settlement, error)
	TopUp(ctx context.Context, userID string, amount int64, reference string) (applied bool, balanceAfter int64, err error)
	LowBalances(ctx context.Context, threshold int64, limit int) ([]Account, error)
	MarkLowBalanceNotified(ctx context.Context, userID string) error
	// HeldReservations lists reservations still held that were created
	// before the cutoff, oldest first.
	HeldReservations(ctx context.Context, before time.Time, limit int) ([]Reservation, error)
}

// Ledger linearises all credit operations per user.
type Ledger struct {
	store Store
	locks cmap.ConcurrentMap[string, *sync.Mutex]
}

func New(store Store) *Ledger {
	return &Ledger{
		store: store,
		locks: cmap.New[*sync.Mutex](),
	}
}

func (l *Ledger) lockUser(userID string) func() {
	l.locks.SetIfAbsent(userID, &sync.Mutex{})
	mu, _ := l.locks.Get(userID)
	mu.Lock()
	return mu.Unlock
}

// Reserve debits amount from the user's balance if, and only if, the balance
// covers it. granted=false is a normal outcome and leaves the balance untouched.
func (l *Ledger) Reserve(ctx context.Context, userID string, amount int64) (Reservation, bool, error) {
	if amount < 0 {
		return Reservation{}, false, ErrInvalidAmount
	}
	logCtx := logging.ContextWithUserID(ctx, userID)

	unlock := l.lockUser(userID)
	defer unlock()

	res := Reservation{ID: uuid.New(), UserID: userID, Amount: amount}
	granted, balance, err := l.store.Reserve(logCtx, res)
	if err != nil {
		slog.ErrorContext(logCtx, "Failed to reserve credits", slog.Int64("amount", amount), slog.Any("error", err))
		return Reservation{}, false, fmt.Errorf("reserve %d credits: %w", amount, err)
	}
	if !granted {
		slog.InfoContext(logCtx, "Credit reservation denied", slog.Int64("amount", amount), slog.Int64("balance", balance))
		return Reservation{}, false, nil
	}
	slog.DebugContext(logCtx, "Credits reserved",
		slog.String("reservation_id", res.ID.String()),
		slog.Int64("amount", amount),
		slog.Int64("balance_after", balance),
	)
	return res, true, nil
}

// Commit finalises a reservation. The balance was already debited by Reserve,
// so only the reservation state and audit trail change.
func (l *Ledger) Commit(ctx context.Context, res Reservation) error {
	_, err := l.settle(ctx, res, codes.ReservationCommitted)
	return err
}

// Release re-credits a held reservation. Releasing twice is a no-op;
// releasing a committed reservation returns ErrReservationCommitted.
func (l *Ledger) Release(ctx context.Context, res Reservation) error {
	_, err := l.settle(ctx, res, codes.ReservationReleased)
	return err
}

func (l *Ledger) settle(ctx context.Context, res Reservation, target string) (Settlement, error) {
	logCtx := logging.ContextWithUserID(ctx, res.UserID)

	unlock := l.lockUser(res.UserID)
	defer unlock()

	s, err := l.store.Settle(logCtx, res.ID, target)
	if err != nil {
		slog.WarnContext(logCtx, "Failed to settle reservation",
			slog.String("reservation_id", res.ID.String()),
			slog.String("target_state", target),
			slog.Any("error", err),
		)
		return s, err
	}
	if s.Changed {
		slog.DebugContext(logCtx, "Reservation settled",
			slog.String("reservation_id", res.ID.String()),
			slog.String("state", s.State),
			slog.Int64("balance_after", s.BalanceAfter),
		)
	}
	return s, nil
}

// Balance returns the user's current credit count. Unknown users have zero.
func (l *Ledger) Balance(ctx context.Context, userID string) (int64, error) {
	return l.store.Balance(ctx, userID)
}

// TopUp credits amount to the user once per reference; repeated references
// return applied=false.
func (l *Ledger) TopUp(ctx context.Context, userID string, amount int64, reference string) (bool, int64, error) {
	if amount <= 0 {
		return false, 0, ErrInvalidAmount
	}
	if reference == "" {
		return false, 0, ErrTopUpReferenceMissing
	}
	logCtx := logging.ContextWithUserID(ctx, userID)

	unlock := l.lockUser(userID)
	defer unlock()

	applied, balance, err := l.store.TopUp(logCtx, userID, amount, reference)
	if err != nil {
		slog.ErrorContext(logCtx, "Failed to top up credits", slog.String("reference", reference), slog.Any("error", err))
		return false, 0, fmt.Errorf("top up %d credits: %w", amount, err)
	}
	if applied {
		slog.InfoContext(logCtx, "Credits topped up",
			slog.Int64("amount", amount),
			slog.String("reference", reference),
			slog.Int64("balance_after", balance),
		)
	}
	return applied, balance, nil
}

// LowBalances lists users under threshold that have not been notified recently.
func (l *Ledger) LowBalances(ctx context.Context, threshold int64, limit int) ([]Account, error) {
	return l.store.LowBalances(ctx, threshold, limit)
}

func (l *Ledger) MarkLowBalanceNotified(ctx context.Context, userID string) error {
	return l.store.MarkLowBalanceNotified(ctx, userID)
}

// StaleReservations lists reservations held since before the cutoff. A send
// settles its reservation within one gateway round trip, so these were left
// behind by an interrupted dispatch.
func (l *Ledger) StaleReservations(ctx context.Context, before time.Time, limit int) ([]Reservation, error) {
	return l.store.HeldReservations(ctx, before, limit)
}

// transition applies the reservation state machine shared by stores:
// held moves to committed or released once; repeating the same target is a
// no-op; crossing from one settled state to the other is rejected.
func transition(current, target string) (changed bool, err error) {
	switch {
	case current == target:
		return false, nil
	case current == codes.ReservationHeld:
		return true, nil
	case current == codes.ReservationCommitted:
		return false, ErrReservationCommitted
	case current == codes.ReservationReleased:
		return false, ErrReservationReleased
	default:
		return false, fmt.Errorf("ledger: unknown reservation state %q", current)
	}
}

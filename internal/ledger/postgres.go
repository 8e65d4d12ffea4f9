package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/thrillee/bulksms/internal/database"
	"github.com/thrillee/bulksms/pkg/codes"
)

// Compile-time check
var _ Store = (*PostgresStore)(nil)

// PostgresStore keeps balances in credit_balances. Every mutation runs in a
// transaction holding the balance row lock.
type PostgresStore struct {
	dbPool    database.Pool
	dbQueries database.Querier
}

func NewPostgresStore(pool database.Pool) *PostgresStore {
	return &PostgresStore{dbPool: pool, dbQueries: database.New(pool)}
}

// inTx runs fn inside a transaction, committing when fn returns nil.
func (s *PostgresStore) inTx(ctx context.Context, fn func(qtx *database.Queries) error) (err error) {
	tx, err := s.dbPool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	qtx := database.New(tx)

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		} else if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				slog.ErrorContext(ctx, "Error rolling back ledger transaction", slog.Any("rollback_error", rbErr), slog.Any("original_error", err))
			}
		} else if cmErr := tx.Commit(ctx); cmErr != nil {
			slog.ErrorContext(ctx, "Error committing ledger transaction", slog.Any("error", cmErr))
			err = cmErr
		}
	}()

	return fn(qtx)
}

func (s *PostgresStore) Balance(ctx context.Context, userID string) (int64, error) {
	row, err := s.dbQueries.GetCreditBalance(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return row.Credits, nil
}

func (s *PostgresStore) Reserve(ctx context.Context, res Reservation) (granted bool, balanceAfter int64, err error) {
	err = s.inTx(ctx, func(qtx *database.Queries) error {
		if err := qtx.EnsureCreditBalance(ctx, res.UserID); err != nil {
			return fmt.Errorf("failed to ensure balance row: %w", err)
		}
		current, err := qtx.GetCreditBalanceForUpdate(ctx, res.UserID)
		if err != nil {
			return fmt.Errorf("failed to lock balance: %w", err)
		}
		if current.Credits < res.Amount {
			balanceAfter = current.Credits
			return nil
		}

		balanceAfter, err = qtx.DebitCredits(ctx, database.DebitCreditsParams{Amount: res.Amount, UserID: res.UserID})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				balanceAfter = current.Credits
				return nil
			}
			return fmt.Errorf("failed to debit credits: %w", err)
		}
		if _, err := qtx.CreateReservation(ctx, database.CreateReservationParams{
			ID:     res.ID,
			UserID: res.UserID,
			Amount: res.Amount,
		}); err != nil {
			return fmt.Errorf("failed to create reservation: %w", err)
		}
		if _, err := qtx.CreateCreditTransaction(ctx, database.CreateCreditTransactionParams{
			UserID:        res.UserID,
			ReservationID: &res.ID,
			Kind:          codes.EntryReserve,
			Amount:        -res.Amount,
			BalanceAfter:  balanceAfter,
		}); err != nil {
			return fmt.Errorf("failed to record reserve transaction: %w", err)
		}
		granted = true
		return nil
	})
	return granted, balanceAfter, err
}

func (s *PostgresStore) Settle(ctx context.Context, id uuid.UUID, target string) (out Settlement, err error) {
	err = s.inTx(ctx, func(qtx *database.Queries) error {
		row, err := qtx.GetReservationForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrReservationNotFound
			}
			return fmt.Errorf("failed to lock reservation: %w", err)
		}
		out.Reservation = Reservation{ID: row.ID, UserID: row.UserID, Amount: row.Amount}
		out.State = row.State

		balance, err := qtx.GetCreditBalanceForUpdate(ctx, row.UserID)
		if err != nil {
			return fmt.Errorf("failed to lock balance: %w", err)
		}
		out.BalanceAfter = balance.Credits

		changed, err := transition(row.State, target)
		if err != nil || !changed {
			return err
		}

		kind, delta := codes.EntryCommit, int64(0)
		if target == codes.ReservationReleased {
			kind, delta = codes.EntryRelease, row.Amount
			if out.BalanceAfter, err = qtx.CreditCredits(ctx, database.CreditCreditsParams{Amount: delta, UserID: row.UserID}); err != nil {
				return fmt.Errorf("failed to re-credit reservation: %w", err)
			}
		}
		if err := qtx.SettleReservation(ctx, database.SettleReservationParams{ID: id, State: target}); err != nil {
			return fmt.Errorf("failed to settle reservation: %w", err)
		}
		if _, err := qtx.CreateCreditTransaction(ctx, database.CreateCreditTransactionParams{
			UserID:        row.UserID,
			ReservationID: &id,
			Kind:          kind,
			Amount:        delta,
			BalanceAfter:  out.BalanceAfter,
		}); err != nil {
			return fmt.Errorf("failed to record %s transaction: %w", kind, err)
		}
		out.State, out.Changed = target, true
		return nil
	})
	return out, err
}

func (s *PostgresStore) TopUp(ctx context.Context, userID string, amount int64, reference string) (applied bool, balanceAfter int64, err error) {
	err = s.inTx(ctx, func(qtx *database.Queries) error {
		if err := qtx.EnsureCreditBalance(ctx, userID); err != nil {
			return fmt.Errorf("failed to ensure balance row: %w", err)
		}
		current, err := qtx.GetCreditBalanceForUpdate(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to lock balance: %w", err)
		}
		balanceAfter = current.Credits

		exists, err := qtx.TopUpReferenceExists(ctx, &reference)
		if err != nil {
			return fmt.Errorf("failed to check top-up reference: %w", err)
		}
		if exists {
			return nil
		}

		if balanceAfter, err = qtx.CreditCredits(ctx, database.CreditCreditsParams{Amount: amount, UserID: userID}); err != nil {
			return fmt.Errorf("failed to credit balance: %w", err)
		}
		if _, err := qtx.CreateCreditTransaction(ctx, database.CreateCreditTransactionParams{
			UserID:       userID,
			Kind:         codes.EntryTopUp,
			Amount:       amount,
			BalanceAfter: balanceAfter,
			Reference:    &reference,
		}); err != nil {
			return fmt.Errorf("failed to record top-up transaction: %w", err)
		}
		applied = true
		return nil
	})
	return applied, balanceAfter, err
}

func (s *PostgresStore) LowBalances(ctx context.Context, threshold int64, limit int) ([]Account, error) {
	rows, err := s.dbQueries.GetBalancesBelowThreshold(ctx, database.GetBalancesBelowThresholdParams{
		Threshold: threshold,
		MaxRows:   int32(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list low balances: %w", err)
	}
	out := make([]Account, 0, len(rows))
	for _, r := range rows {
		out = append(out, Account{UserID: r.UserID, Credits: r.Credits})
	}
	return out, nil
}

func (s *PostgresStore) MarkLowBalanceNotified(ctx context.Context, userID string) error {
	return s.dbQueries.UpdateLowBalanceNotifiedAt(ctx, userID)
}

func (s *PostgresStore) HeldReservations(ctx context.Context, before time.Time, limit int) ([]Reservation, error) {
	rows, err := s.dbQueries.ListHeldReservations(ctx, database.ListHeldReservationsParams{
		CreatedBefore: before,
		MaxRows:       int32(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list held reservations: %w", err)
	}
	out := make([]Reservation, 0, len(rows))
	for _, r := range rows {
		out = append(out, Reservation{ID: r.ID, UserID: r.UserID, Amount: r.Amount})
	}
	return out, nil
}

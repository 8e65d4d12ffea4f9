package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thrillee/bulksms/pkg/codes"
)

var (
	balanceColumns     = []string{"user_id", "credits", "low_balance_notified_at", "created_at", "updated_at"}
	reservationColumns = []string{"id", "user_id", "amount", "state", "created_at", "settled_at"}
	transactionColumns = []string{"id", "user_id", "reservation_id", "kind", "amount", "balance_after", "reference", "created_at"}
)

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresStore(mock), mock
}

func expectLockedBalance(mock pgxmock.PgxPoolIface, userID string, credits int64) {
	now := time.Now()
	mock.ExpectQuery("-- name: GetCreditBalanceForUpdate :one").
		WithArgs(userID).
		WillReturnRows(mock.NewRows(balanceColumns).AddRow(userID, credits, nil, now, now))
}

func TestPostgresReserve_DeniedWritesNothing(t *testing.T) {
	store, mock := newMockStore(t)
	res := Reservation{ID: uuid.New(), UserID: "u1", Amount: 5}

	mock.ExpectBegin()
	mock.ExpectExec("-- name: EnsureCreditBalance :exec").
		WithArgs("u1").
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	expectLockedBalance(mock, "u1", 3)
	mock.ExpectCommit()

	granted, balance, err := store.Reserve(context.Background(), res)
	require.NoError(t, err)
	assert.False(t, granted)
	assert.Equal(t, int64(3), balance)
	// no debit, reservation or transaction statement was issued
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresReserve_LostDebitRaceIsDenied(t *testing.T) {
	store, mock := newMockStore(t)
	res := Reservation{ID: uuid.New(), UserID: "u1", Amount: 5}

	mock.ExpectBegin()
	mock.ExpectExec("-- name: EnsureCreditBalance :exec").
		WithArgs("u1").
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	expectLockedBalance(mock, "u1", 5)
	mock.ExpectQuery("-- name: DebitCredits :one").
		WithArgs(int64(5), "u1").
		WillReturnRows(mock.NewRows([]string{"credits"}))
	mock.ExpectCommit()

	granted, balance, err := store.Reserve(context.Background(), res)
	require.NoError(t, err)
	assert.False(t, granted)
	assert.Equal(t, int64(5), balance)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresReserve_GrantWritesReservationAndEntry(t *testing.T) {
	store, mock := newMockStore(t)
	res := Reservation{ID: uuid.New(), UserID: "u1", Amount: 4}
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectExec("-- name: EnsureCreditBalance :exec").
		WithArgs("u1").
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	expectLockedBalance(mock, "u1", 10)
	mock.ExpectQuery("-- name: DebitCredits :one").
		WithArgs(int64(4), "u1").
		WillReturnRows(mock.NewRows([]string{"credits"}).AddRow(int64(6)))
	mock.ExpectQuery("-- name: CreateReservation :one").
		WithArgs(res.ID, "u1", int64(4)).
		WillReturnRows(mock.NewRows(reservationColumns).AddRow(res.ID, "u1", int64(4), codes.ReservationHeld, now, nil))
	mock.ExpectQuery("-- name: CreateCreditTransaction :one").
		WithArgs("u1", &res.ID, codes.EntryReserve, int64(-4), int64(6), pgxmock.AnyArg()).
		WillReturnRows(mock.NewRows(transactionColumns).AddRow(int64(1), "u1", &res.ID, codes.EntryReserve, int64(-4), int64(6), nil, now))
	mock.ExpectCommit()

	granted, balance, err := store.Reserve(context.Background(), res)
	require.NoError(t, err)
	assert.True(t, granted)
	assert.Equal(t, int64(6), balance)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSettle_CommitAfterReleaseRollsBack(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery("-- name: GetReservationForUpdate :one").
		WithArgs(id).
		WillReturnRows(mock.NewRows(reservationColumns).AddRow(id, "u1", int64(2), codes.ReservationReleased, now, &now))
	expectLockedBalance(mock, "u1", 9)
	mock.ExpectRollback()

	out, err := store.Settle(context.Background(), id, codes.ReservationCommitted)
	assert.ErrorIs(t, err, ErrReservationReleased)
	assert.False(t, out.Changed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSettle_ReleaseAfterReleaseIsNoop(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery("-- name: GetReservationForUpdate :one").
		WithArgs(id).
		WillReturnRows(mock.NewRows(reservationColumns).AddRow(id, "u1", int64(2), codes.ReservationReleased, now, &now))
	expectLockedBalance(mock, "u1", 9)
	mock.ExpectCommit()

	out, err := store.Settle(context.Background(), id, codes.ReservationReleased)
	require.NoError(t, err)
	assert.False(t, out.Changed)
	assert.Equal(t, int64(9), out.BalanceAfter, "credits are not restored twice")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSettle_ReleaseRecredits(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery("-- name: GetReservationForUpdate :one").
		WithArgs(id).
		WillReturnRows(mock.NewRows(reservationColumns).AddRow(id, "u1", int64(2), codes.ReservationHeld, now, nil))
	expectLockedBalance(mock, "u1", 7)
	mock.ExpectQuery("-- name: CreditCredits :one").
		WithArgs(int64(2), "u1").
		WillReturnRows(mock.NewRows([]string{"credits"}).AddRow(int64(9)))
	mock.ExpectExec("-- name: SettleReservation :exec").
		WithArgs(id, codes.ReservationReleased).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery("-- name: CreateCreditTransaction :one").
		WithArgs("u1", &id, codes.EntryRelease, int64(2), int64(9), pgxmock.AnyArg()).
		WillReturnRows(mock.NewRows(transactionColumns).AddRow(int64(2), "u1", &id, codes.EntryRelease, int64(2), int64(9), nil, now))
	mock.ExpectCommit()

	out, err := store.Settle(context.Background(), id, codes.ReservationReleased)
	require.NoError(t, err)
	assert.True(t, out.Changed)
	assert.Equal(t, codes.ReservationReleased, out.State)
	assert.Equal(t, int64(9), out.BalanceAfter)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSettle_UnknownReservation(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("-- name: GetReservationForUpdate :one").
		WithArgs(id).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	_, err := store.Settle(context.Background(), id, codes.ReservationCommitted)
	assert.ErrorIs(t, err, ErrReservationNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresHeldReservations(t *testing.T) {
	store, mock := newMockStore(t)
	before := time.Now().Add(-10 * time.Minute)
	id := uuid.New()

	mock.ExpectQuery("-- name: ListHeldReservations :many").
		WithArgs(before, int32(50)).
		WillReturnRows(mock.NewRows(reservationColumns).AddRow(id, "u1", int64(3), codes.ReservationHeld, before.Add(-time.Minute), nil))

	held, err := store.HeldReservations(context.Background(), before, 50)
	require.NoError(t, err)
	require.Len(t, held, 1)
	assert.Equal(t, Reservation{ID: id, UserID: "u1", Amount: 3}, held[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}

package campaign

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thrillee/bulksms/pkg/codes"
)

var (
	recordColumns = []string{
		"id", "message_id", "campaign_id", "user_id", "recipient", "body", "segments", "cost", "credits",
		"status", "error_code", "error_message", "gateway_response", "reservation_id", "sent_at", "delivered_at", "created_at",
	}
	campaignColumns = []string{
		"id", "user_id", "name", "message_template", "signature", "type", "status", "scheduled_at",
		"recipient_count", "success_count", "failure_count", "delivered_count", "dispatch_started_at", "sent_at", "created_at", "updated_at",
	}
)

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresStore(mock), mock
}

func recordRow(mock pgxmock.PgxPoolIface, messageID, status string, errorCode *string, deliveredAt *time.Time) *pgxmock.Rows {
	campaignID := int64(7)
	now := time.Now()
	return mock.NewRows(recordColumns).AddRow(
		int64(1), messageID, &campaignID, "u1", "221770000001", "Bonjour", int32(1), decimal.NewFromInt(25), int64(1),
		status, errorCode, nil, nil, nil, now, deliveredAt, now,
	)
}

func campaignRow(mock pgxmock.PgxPoolIface, status string, success, failure int32) *pgxmock.Rows {
	now := time.Now()
	started := now.Add(-time.Hour)
	return mock.NewRows(campaignColumns).AddRow(
		int64(7), "u1", "Promo", "Bonjour {first_name}", "INFO", codes.CampaignTypeMarketing, status, nil,
		int32(5), success, failure, int32(0), &started, nil, now.Add(-time.Hour), now,
	)
}

func TestPostgresCreateRecord_UniqueViolationIsDuplicate(t *testing.T) {
	store, mock := newMockStore(t)
	args := make([]any, 14)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	mock.ExpectQuery("-- name: CreateDispatchRecord :one").
		WithArgs(args...).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "dispatch_records_message_id_key"})

	_, err := store.CreateRecord(context.Background(), DispatchRecord{
		MessageID: "gw-1",
		UserID:    "u1",
		Recipient: "221770000001",
		Status:    codes.MsgStatusSent,
		SentAt:    time.Now(),
	})
	assert.ErrorIs(t, err, ErrDuplicateMessageID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCreateRecord_OtherErrorsWrapped(t *testing.T) {
	store, mock := newMockStore(t)
	args := make([]any, 14)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	boom := errors.New("connection reset")
	mock.ExpectQuery("-- name: CreateDispatchRecord :one").
		WithArgs(args...).
		WillReturnError(boom)

	_, err := store.CreateRecord(context.Background(), DispatchRecord{MessageID: "gw-1", UserID: "u1", SentAt: time.Now()})
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrDuplicateMessageID)
}

func TestPostgresTransitionRecord_TerminalRecordUnchanged(t *testing.T) {
	store, mock := newMockStore(t)
	delivered := time.Now()
	code := "104"

	mock.ExpectQuery("-- name: TransitionDispatchRecord :one").
		WithArgs(codes.MsgStatusDelivered, &delivered, "gw-1").
		WillReturnRows(mock.NewRows(recordColumns))
	mock.ExpectQuery("-- name: GetDispatchRecordByMessageID :one").
		WithArgs("gw-1").
		WillReturnRows(recordRow(mock, "gw-1", codes.MsgStatusFailed, &code, nil))

	rec, changed, err := store.TransitionRecord(context.Background(), "gw-1", codes.MsgStatusDelivered, &delivered)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, codes.MsgStatusFailed, rec.Status)
	assert.Equal(t, "104", rec.ErrorCode)
	assert.Nil(t, rec.DeliveredAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresTransitionRecord_UnknownMessage(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("-- name: TransitionDispatchRecord :one").
		WithArgs(codes.MsgStatusFailed, (*time.Time)(nil), "gw-missing").
		WillReturnRows(mock.NewRows(recordColumns))
	mock.ExpectQuery("-- name: GetDispatchRecordByMessageID :one").
		WithArgs("gw-missing").
		WillReturnRows(mock.NewRows(recordColumns))

	_, changed, err := store.TransitionRecord(context.Background(), "gw-missing", codes.MsgStatusFailed, nil)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, changed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresTransitionRecord_SentMovesOn(t *testing.T) {
	store, mock := newMockStore(t)
	delivered := time.Now()

	mock.ExpectQuery("-- name: TransitionDispatchRecord :one").
		WithArgs(codes.MsgStatusDelivered, &delivered, "gw-1").
		WillReturnRows(recordRow(mock, "gw-1", codes.MsgStatusDelivered, nil, &delivered))

	rec, changed, err := store.TransitionRecord(context.Background(), "gw-1", codes.MsgStatusDelivered, &delivered)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, codes.MsgStatusDelivered, rec.Status)
	require.NotNil(t, rec.CampaignID)
	assert.Equal(t, int64(7), *rec.CampaignID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRecordByReservation(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectQuery("-- name: GetDispatchRecordByReservation :one").
		WithArgs(&id).
		WillReturnRows(mock.NewRows(recordColumns))

	_, err := store.RecordByReservation(context.Background(), id)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresClaimStalled(t *testing.T) {
	before := time.Now().Add(-5 * time.Minute)

	t.Run("claimed with recounted progress", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery("-- name: ClaimStalledCampaign :one").
			WithArgs(int64(7), "u1", before).
			WillReturnRows(campaignRow(mock, codes.CampaignStatusDraft, 2, 1))

		c, err := store.ClaimStalled(context.Background(), "u1", 7, before)
		require.NoError(t, err)
		assert.Equal(t, 2, c.SuccessCount)
		assert.Equal(t, 1, c.FailureCount)
		require.NotNil(t, c.DispatchStartedAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already finished", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery("-- name: ClaimStalledCampaign :one").
			WithArgs(int64(7), "u1", before).
			WillReturnRows(mock.NewRows(campaignColumns))
		mock.ExpectQuery("-- name: GetCampaign :one").
			WithArgs(int64(7), "u1").
			WillReturnRows(campaignRow(mock, codes.CampaignStatusSent, 5, 0))

		_, err := store.ClaimStalled(context.Background(), "u1", 7, before)
		assert.ErrorIs(t, err, ErrNotDispatchable)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown campaign", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery("-- name: ClaimStalledCampaign :one").
			WithArgs(int64(7), "u1", before).
			WillReturnRows(mock.NewRows(campaignColumns))
		mock.ExpectQuery("-- name: GetCampaign :one").
			WithArgs(int64(7), "u1").
			WillReturnRows(mock.NewRows(campaignColumns))

		_, err := store.ClaimStalled(context.Background(), "u1", 7, before)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

package campaign

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/thrillee/bulksms/internal/database"
)

// Compile-time check
var _ Store = (*PostgresStore)(nil)

const uniqueViolation = "23505"

type PostgresStore struct {
	dbPool    database.Pool
	dbQueries database.Querier
}

func NewPostgresStore(pool database.Pool) *PostgresStore {
	return &PostgresStore{dbPool: pool, dbQueries: database.New(pool)}
}

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
				slog.ErrorContext(ctx, "Error rolling back campaign transaction", slog.Any("rollback_error", rbErr), slog.Any("original_error", err))
			}
		} else if cmErr := tx.Commit(ctx); cmErr != nil {
			err = cmErr
		}
	}()

	return fn(qtx)
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func toContact(row database.Contact) Contact {
	c := Contact{
		ID:        row.ID,
		UserID:    row.UserID,
		FirstName: row.FirstName,
		LastName:  row.LastName,
		Phone:     row.Phone,
		CreatedAt: row.CreatedAt,
	}
	if row.GroupLabel != nil {
		c.Group = *row.GroupLabel
	}
	if len(row.Fields) > 0 {
		if err := json.Unmarshal(row.Fields, &c.Fields); err != nil {
			slog.Warn("Ignoring malformed contact fields", slog.Int64("contact_id", row.ID), slog.Any("error", err))
		}
	}
	return c
}

func toCampaign(row database.Campaign) Campaign {
	return Campaign{
		ID:                row.ID,
		UserID:            row.UserID,
		Name:              row.Name,
		Template:          row.MessageTemplate,
		Signature:         row.Signature,
		Type:              row.Type,
		Status:            row.Status,
		ScheduledAt:       row.ScheduledAt,
		RecipientCount:    int(row.RecipientCount),
		SuccessCount:      int(row.SuccessCount),
		FailureCount:      int(row.FailureCount),
		DeliveredCount:    int(row.DeliveredCount),
		DispatchStartedAt: row.DispatchStartedAt,
		SentAt:            row.SentAt,
		CreatedAt:         row.CreatedAt,
		UpdatedAt:         row.UpdatedAt,
	}
}

func toRecord(row database.DispatchRecord) DispatchRecord {
	return DispatchRecord{
		ID:              row.ID,
		MessageID:       row.MessageID,
		CampaignID:      row.CampaignID,
		UserID:          row.UserID,
		Recipient:       row.Recipient,
		Body:            row.Body,
		Segments:        int(row.Segments),
		Cost:            row.Cost,
		Credits:         row.Credits,
		Status:          row.Status,
		ErrorCode:       deref(row.ErrorCode),
		ErrorMessage:    deref(row.ErrorMessage),
		GatewayResponse: deref(row.GatewayResponse),
		ReservationID:   row.ReservationID,
		SentAt:          row.SentAt,
		DeliveredAt:     row.DeliveredAt,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func encodeFields(fields map[string]string) ([]byte, error) {
	if len(fields) == 0 {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to encode contact fields: %w", err)
	}
	return b, nil
}

func (s *PostgresStore) CreateContacts(ctx context.Context, contacts []Contact) (out []Contact, err error) {
	err = s.inTx(ctx, func(qtx *database.Queries) error {
		for _, c := range contacts {
			fields, err := encodeFields(c.Fields)
			if err != nil {
				return err
			}
			row, err := qtx.CreateContact(ctx, database.CreateContactParams{
				UserID:     c.UserID,
				FirstName:  c.FirstName,
				LastName:   c.LastName,
				Phone:      c.Phone,
				GroupLabel: nullable(c.Group),
				Fields:     fields,
			})
			if err != nil {
				return fmt.Errorf("failed to create contact %s: %w", c.Phone, err)
			}
			out = append(out, toContact(row))
		}
		return nil
	})
	return out, err
}

func (s *PostgresStore) GetContacts(ctx context.Context, userID string, ids []int64) ([]Contact, error) {
	rows, err := s.dbQueries.GetContactsByIDs(ctx, database.GetContactsByIDsParams{UserID: userID, Ids: ids})
	if err != nil {
		return nil, fmt.Errorf("failed to get contacts: %w", err)
	}
	out := make([]Contact, 0, len(rows))
	for _, r := range rows {
		out = append(out, toContact(r))
	}
	return out, nil
}

func (s *PostgresStore) ListContacts(ctx context.Context, userID, group string, limit, offset int) ([]Contact, error) {
	rows, err := s.dbQueries.ListContacts(ctx, database.ListContactsParams{
		UserID:     userID,
		GroupLabel: group,
		MaxRows:    int32(limit),
		SkipRows:   int32(offset),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}
	out := make([]Contact, 0, len(rows))
	for _, r := range rows {
		out = append(out, toContact(r))
	}
	return out, nil
}

func addContacts(ctx context.Context, qtx *database.Queries, campaignID int64, ids []int64) error {
	for i, id := range ids {
		if err := qtx.AddCampaignContact(ctx, database.AddCampaignContactParams{
			CampaignID: campaignID,
			Position:   int32(i),
			ContactID:  id,
		}); err != nil {
			return fmt.Errorf("failed to add contact %d to campaign: %w", id, err)
		}
	}
	return nil
}

func (s *PostgresStore) CreateCampaign(ctx context.Context, c Campaign) (out Campaign, err error) {
	err = s.inTx(ctx, func(qtx *database.Queries) error {
		row, err := qtx.CreateCampaign(ctx, database.CreateCampaignParams{
			UserID:          c.UserID,
			Name:            c.Name,
			MessageTemplate: c.Template,
			Signature:       c.Signature,
			Type:            c.Type,
			Status:          c.Status,
			ScheduledAt:     c.ScheduledAt,
			RecipientCount:  int32(len(c.ContactIDs)),
		})
		if err != nil {
			return fmt.Errorf("failed to create campaign: %w", err)
		}
		if err := addContacts(ctx, qtx, row.ID, c.ContactIDs); err != nil {
			return err
		}
		out = toCampaign(row)
		out.ContactIDs = append([]int64(nil), c.ContactIDs...)
		return nil
	})
	return out, err
}

func (s *PostgresStore) GetCampaign(ctx context.Context, userID string, id int64) (Campaign, error) {
	row, err := s.dbQueries.GetCampaign(ctx, database.GetCampaignParams{ID: id, UserID: userID})
	if err != nil {
		return Campaign{}, notFound(err)
	}
	c := toCampaign(row)
	if c.ContactIDs, err = s.dbQueries.ListCampaignContactIDs(ctx, id); err != nil {
		return Campaign{}, fmt.Errorf("failed to list campaign contacts: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) UpdateCampaign(ctx context.Context, c Campaign) (out Campaign, err error) {
	err = s.inTx(ctx, func(qtx *database.Queries) error {
		row, err := qtx.UpdateCampaignContent(ctx, database.UpdateCampaignContentParams{
			ID:              c.ID,
			UserID:          c.UserID,
			Name:            c.Name,
			MessageTemplate: c.Template,
			Signature:       c.Signature,
			Type:            c.Type,
			Status:          c.Status,
			ScheduledAt:     c.ScheduledAt,
			RecipientCount:  int32(len(c.ContactIDs)),
		})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				if _, getErr := qtx.GetCampaign(ctx, database.GetCampaignParams{ID: c.ID, UserID: c.UserID}); getErr != nil {
					return notFound(getErr)
				}
				return ErrNotEditable
			}
			return fmt.Errorf("failed to update campaign: %w", err)
		}
		if err := qtx.DeleteCampaignContacts(ctx, c.ID); err != nil {
			return fmt.Errorf("failed to clear campaign contacts: %w", err)
		}
		if err := addContacts(ctx, qtx, c.ID, c.ContactIDs); err != nil {
			return err
		}
		out = toCampaign(row)
		out.ContactIDs = append([]int64(nil), c.ContactIDs...)
		return nil
	})
	return out, err
}

func (s *PostgresStore) ClaimForDispatch(ctx context.Context, userID string, id int64) (Campaign, error) {
	row, err := s.dbQueries.ClaimCampaignForDispatch(ctx, database.ClaimCampaignForDispatchParams{ID: id, UserID: userID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if _, getErr := s.dbQueries.GetCampaign(ctx, database.GetCampaignParams{ID: id, UserID: userID}); getErr != nil {
				return Campaign{}, notFound(getErr)
			}
			return Campaign{}, ErrNotDispatchable
		}
		return Campaign{}, fmt.Errorf("failed to claim campaign: %w", err)
	}
	return toCampaign(row), nil
}

func (s *PostgresStore) StalledCampaigns(ctx context.Context, before time.Time, limit int) ([]Campaign, error) {
	rows, err := s.dbQueries.ListStalledCampaigns(ctx, database.ListStalledCampaignsParams{StalledBefore: before, MaxRows: int32(limit)})
	if err != nil {
		return nil, fmt.Errorf("failed to list stalled campaigns: %w", err)
	}
	out := make([]Campaign, 0, len(rows))
	for _, r := range rows {
		out = append(out, toCampaign(r))
	}
	return out, nil
}

func (s *PostgresStore) ClaimStalled(ctx context.Context, userID string, id int64, before time.Time) (Campaign, error) {
	row, err := s.dbQueries.ClaimStalledCampaign(ctx, database.ClaimStalledCampaignParams{
		ID:            id,
		UserID:        userID,
		StalledBefore: before,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if _, getErr := s.dbQueries.GetCampaign(ctx, database.GetCampaignParams{ID: id, UserID: userID}); getErr != nil {
				return Campaign{}, notFound(getErr)
			}
			return Campaign{}, ErrNotDispatchable
		}
		return Campaign{}, fmt.Errorf("failed to claim stalled campaign: %w", err)
	}
	return toCampaign(row), nil
}

func (s *PostgresStore) Recipients(ctx context.Context, campaignID int64) ([]Contact, error) {
	rows, err := s.dbQueries.ListCampaignRecipients(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to list recipients: %w", err)
	}
	out := make([]Contact, 0, len(rows))
	for _, r := range rows {
		out = append(out, toContact(r))
	}
	return out, nil
}

func (s *PostgresStore) AddCounters(ctx context.Context, campaignID int64, success, failure int) error {
	return s.dbQueries.IncrementCampaignCounters(ctx, database.IncrementCampaignCountersParams{
		Success: int32(success),
		Failure: int32(failure),
		ID:      campaignID,
	})
}

func (s *PostgresStore) Finish(ctx context.Context, campaignID int64, status string) (Campaign, error) {
	row, err := s.dbQueries.FinishCampaign(ctx, database.FinishCampaignParams{ID: campaignID, Status: status})
	if err != nil {
		return Campaign{}, notFound(err)
	}
	return toCampaign(row), nil
}

func (s *PostgresStore) IncrementDelivered(ctx context.Context, campaignID int64) error {
	return s.dbQueries.IncrementCampaignDelivered(ctx, campaignID)
}

func (s *PostgresStore) DueCampaigns(ctx context.Context, before time.Time, limit int) ([]Campaign, error) {
	rows, err := s.dbQueries.ListDueCampaigns(ctx, database.ListDueCampaignsParams{DueBefore: before, MaxRows: int32(limit)})
	if err != nil {
		return nil, fmt.Errorf("failed to list due campaigns: %w", err)
	}
	out := make([]Campaign, 0, len(rows))
	for _, r := range rows {
		out = append(out, toCampaign(r))
	}
	return out, nil
}

func (s *PostgresStore) CreateRecord(ctx context.Context, r DispatchRecord) (DispatchRecord, error) {
	row, err := s.dbQueries.CreateDispatchRecord(ctx, database.CreateDispatchRecordParams{
		MessageID:       r.MessageID,
		CampaignID:      r.CampaignID,
		UserID:          r.UserID,
		Recipient:       r.Recipient,
		Body:            r.Body,
		Segments:        int32(r.Segments),
		Cost:            r.Cost,
		Credits:         r.Credits,
		Status:          r.Status,
		ErrorCode:       nullable(r.ErrorCode),
		ErrorMessage:    nullable(r.ErrorMessage),
		GatewayResponse: nullable(r.GatewayResponse),
		ReservationID:   r.ReservationID,
		SentAt:          r.SentAt,
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return DispatchRecord{}, ErrDuplicateMessageID
		}
		return DispatchRecord{}, fmt.Errorf("failed to create dispatch record: %w", err)
	}
	return toRecord(row), nil
}

func (s *PostgresStore) GetRecord(ctx context.Context, messageID string) (DispatchRecord, error) {
	row, err := s.dbQueries.GetDispatchRecordByMessageID(ctx, messageID)
	if err != nil {
		return DispatchRecord{}, notFound(err)
	}
	return toRecord(row), nil
}

func (s *PostgresStore) RecordByReservation(ctx context.Context, reservationID uuid.UUID) (DispatchRecord, error) {
	row, err := s.dbQueries.GetDispatchRecordByReservation(ctx, &reservationID)
	if err != nil {
		return DispatchRecord{}, notFound(err)
	}
	return toRecord(row), nil
}

func (s *PostgresStore) TransitionRecord(ctx context.Context, messageID, status string, deliveredAt *time.Time) (DispatchRecord, bool, error) {
	row, err := s.dbQueries.TransitionDispatchRecord(ctx, database.TransitionDispatchRecordParams{
		Status:      status,
		DeliveredAt: deliveredAt,
		MessageID:   messageID,
	})
	if err == nil {
		return toRecord(row), true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return DispatchRecord{}, false, fmt.Errorf("failed to transition record: %w", err)
	}
	// No row updated: either unknown or already terminal.
	current, err := s.GetRecord(ctx, messageID)
	if err != nil {
		return DispatchRecord{}, false, err
	}
	return current, false, nil
}

func (s *PostgresStore) ListRecords(ctx context.Context, userID string, campaignID int64, limit, offset int) ([]DispatchRecord, error) {
	rows, err := s.dbQueries.ListCampaignRecords(ctx, database.ListCampaignRecordsParams{
		CampaignID: campaignID,
		UserID:     userID,
		MaxRows:    int32(limit),
		SkipRows:   int32(offset),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	out := make([]DispatchRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, toRecord(r))
	}
	return out, nil
}

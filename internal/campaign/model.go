// Package campaign holds campaigns, contacts and dispatch records and the
// stores that persist them.
package campaign

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/thrillee/bulksms/internal/template"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrNotEditable     = errors.New("campaign can no longer be edited")
	ErrNotDispatchable = errors.New("campaign is not in a sendable state")

	ErrDuplicateMessageID = errors.New("dispatch record message id already exists")
)

// Contact is a message recipient owned by a user.
type Contact struct {
	ID        int64             `json:"id"`
	UserID    string            `json:"user_id"`
	FirstName string            `json:"first_name"`
	LastName  string            `json:"last_name"`
	Phone     string            `json:"phone"`
	Group     string            `json:"group,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// TemplateContact returns the view used for placeholder substitution.
func (c Contact) TemplateContact() template.Contact {
	return template.Contact{
		FirstName: c.FirstName,
		LastName:  c.LastName,
		Phone:     c.Phone,
		Group:     c.Group,
		Fields:    c.Fields,
	}
}

// Campaign is a batch send of one template to an ordered contact list.
type Campaign struct {
	ID                int64      `json:"id"`
	UserID            string     `json:"user_id"`
	Name              string     `json:"name"`
	Template          string     `json:"message_template"`
	Signature         string     `json:"signature"`
	Type              string     `json:"type"`
	Status            string     `json:"status"`
	ScheduledAt       *time.Time `json:"scheduled_at,omitempty"`
	ContactIDs        []int64    `json:"contact_ids,omitempty"`
	RecipientCount    int        `json:"recipient_count"`
	SuccessCount      int        `json:"success_count"`
	FailureCount      int        `json:"failure_count"`
	DeliveredCount    int        `json:"delivered_count"`
	DispatchStartedAt *time.Time `json:"dispatch_started_at,omitempty"`
	SentAt            *time.Time `json:"sent_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// DispatchRecord is the audit row of one send attempt.
type DispatchRecord struct {
	ID              int64           `json:"id"`
	MessageID       string          `json:"message_id"`
	CampaignID      *int64          `json:"campaign_id,omitempty"`
	UserID          string          `json:"user_id"`
	Recipient       string          `json:"recipient"`
	Body            string          `json:"body"`
	Segments        int             `json:"segments"`
	Cost            decimal.Decimal `json:"cost"`
	Credits         int64           `json:"credits"`
	Status          string          `json:"status"`
	ErrorCode       string          `json:"error_code,omitempty"`
	ErrorMessage    string          `json:"error_message,omitempty"`
	GatewayResponse string          `json:"gateway_response,omitempty"`
	ReservationID   *uuid.UUID      `json:"-"`
	SentAt          time.Time       `json:"sent_at"`
	DeliveredAt     *time.Time      `json:"delivered_at,omitempty"`
}

type ContactStore interface {
	CreateContacts(ctx context.Context, contacts []Contact) ([]Contact, error)
	GetContacts(ctx context.Context, userID string, ids []int64) ([]Contact, error)
	ListContacts(ctx context.Context, userID, group string, limit, offset int) ([]Contact, error)
}

type CampaignStore interface {
	CreateCampaign(ctx context.Context, c Campaign) (Campaign, error)
	GetCampaign(ctx context.Context, userID string, id int64) (Campaign, error)
	// UpdateCampaign replaces content and recipients while the campaign is
	// unsent and not being dispatched.
	UpdateCampaign(ctx context.Context, c Campaign) (Campaign, error)
	// ClaimForDispatch marks a draft or scheduled campaign as started and
	// resets its counters. Only one claim succeeds.
	ClaimForDispatch(ctx context.Context, userID string, id int64) (Campaign, error)
	// StalledCampaigns lists claimed but unfinished campaigns whose last
	// progress is older than before.
	StalledCampaigns(ctx context.Context, before time.Time, limit int) ([]Campaign, error)
	// ClaimStalled takes over a stalled campaign. Counters are recomputed
	// from the stored records, so SuccessCount+FailureCount is the number of
	// recipients already attempted. Only one claim per stall succeeds.
	ClaimStalled(ctx context.Context, userID string, id int64, before time.Time) (Campaign, error)
	Recipients(ctx context.Context, campaignID int64) ([]Contact, error)
	AddCounters(ctx context.Context, campaignID int64, success, failure int) error
	Finish(ctx context.Context, campaignID int64, status string) (Campaign, error)
	IncrementDelivered(ctx context.Context, campaignID int64) error
	DueCampaigns(ctx context.Context, before time.Time, limit int) ([]Campaign, error)
}

type RecordStore interface {
	CreateRecord(ctx context.Context, r DispatchRecord) (DispatchRecord, error)
	GetRecord(ctx context.Context, messageID string) (DispatchRecord, error)
	RecordByReservation(ctx context.Context, reservationID uuid.UUID) (DispatchRecord, error)
	// TransitionRecord moves a record out of "sent" exactly once; changed is
	// false when the record was already terminal.
	TransitionRecord(ctx context.Context, messageID, status string, deliveredAt *time.Time) (rec DispatchRecord, changed bool, err error)
	ListRecords(ctx context.Context, userID string, campaignID int64, limit, offset int) ([]DispatchRecord, error)
}

// Store is the full persistence surface used by the service layer.
type Store interface {
	ContactStore
	CampaignStore
	RecordStore
}

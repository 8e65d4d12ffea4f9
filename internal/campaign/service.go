package campaign

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/thrillee/bulksms/internal/logging"
	"github.com/thrillee/bulksms/internal/template"
	"github.com/thrillee/bulksms/pkg/codes"
)

// ValidationError describes rejected user input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Draft is the user-editable part of a campaign.
type Draft struct {
	Name        string
	Template    string
	Signature   string
	Type        string
	ContactIDs  []int64
	ScheduledAt *time.Time
}

// ImportResult reports a bulk contact import.
type ImportResult struct {
	Created  []Contact
	Rejected []RejectedRow
}

type RejectedRow struct {
	Row    int    `json:"row"`
	Phone  string `json:"phone"`
	Reason string `json:"reason"`
}

// Service validates and persists campaigns and contacts.
type Service struct {
	store            Store
	defaultSignature string
	now              func() time.Time
}

func NewService(store Store, defaultSignature string) *Service {
	return &Service{store: store, defaultSignature: defaultSignature, now: time.Now}
}

// NormalizePhone strips formatting and the international prefix markers.
func NormalizePhone(raw string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	n := b.String()
	if strings.HasPrefix(strings.TrimSpace(raw), "00") {
		n = strings.TrimPrefix(n, "00")
	}
	return n
}

// ValidPhone reports whether a normalised number has a plausible length.
func ValidPhone(n string) bool {
	return len(n) >= 8 && len(n) <= 15
}

// CreateContact stores one manually entered contact.
func (s *Service) CreateContact(ctx context.Context, c Contact) (Contact, error) {
	c.Phone = NormalizePhone(c.Phone)
	if !ValidPhone(c.Phone) {
		return Contact{}, &ValidationError{Field: "phone", Message: "must be 8 to 15 digits"}
	}
	created, err := s.store.CreateContacts(ctx, []Contact{c})
	if err != nil {
		return Contact{}, err
	}
	return created[0], nil
}

// ImportContacts stores well-formed rows and reports the rest.
func (s *Service) ImportContacts(ctx context.Context, userID string, rows []Contact) (ImportResult, error) {
	var res ImportResult
	valid := make([]Contact, 0, len(rows))
	seen := make(map[string]bool, len(rows))
	for i, c := range rows {
		c.UserID = userID
		c.Phone = NormalizePhone(c.Phone)
		switch {
		case !ValidPhone(c.Phone):
			res.Rejected = append(res.Rejected, RejectedRow{Row: i + 1, Phone: rows[i].Phone, Reason: "invalid phone number"})
			continue
		case seen[c.Phone]:
			res.Rejected = append(res.Rejected, RejectedRow{Row: i + 1, Phone: rows[i].Phone, Reason: "duplicate phone number in import"})
			continue
		}
		seen[c.Phone] = true
		valid = append(valid, c)
	}
	if len(valid) == 0 {
		return res, nil
	}
	created, err := s.store.CreateContacts(ctx, valid)
	if err != nil {
		return res, err
	}
	res.Created = created
	slog.InfoContext(logging.ContextWithUserID(ctx, userID), "Contacts imported",
		slog.Int("created", len(created)),
		slog.Int("rejected", len(res.Rejected)),
	)
	return res, nil
}

func (s *Service) ListContacts(ctx context.Context, userID, group string, limit, offset int) ([]Contact, error) {
	return s.store.ListContacts(ctx, userID, group, limit, offset)
}

func (s *Service) validate(ctx context.Context, userID string, d *Draft) error {
	d.Name = strings.TrimSpace(d.Name)
	if d.Name == "" {
		return &ValidationError{Field: "name", Message: "is required"}
	}
	if strings.TrimSpace(d.Template) == "" {
		return &ValidationError{Field: "message_template", Message: "is required"}
	}
	d.Signature = strings.TrimSpace(d.Signature)
	if d.Signature == "" {
		d.Signature = s.defaultSignature
	}
	if len(d.Signature) > 11 {
		return &ValidationError{Field: "signature", Message: "must be at most 11 characters"}
	}
	switch d.Type {
	case "":
		d.Type = codes.CampaignTypeMarketing
	case codes.CampaignTypeMarketing, codes.CampaignTypeTransactional, codes.CampaignTypeAcademic:
	default:
		return &ValidationError{Field: "type", Message: "must be marketing, transactional or academic"}
	}
	if len(d.ContactIDs) == 0 {
		return &ValidationError{Field: "contact_ids", Message: "at least one contact is required"}
	}

	unique := make(map[int64]bool, len(d.ContactIDs))
	ids := make([]int64, 0, len(d.ContactIDs))
	for _, id := range d.ContactIDs {
		if !unique[id] {
			unique[id] = true
			ids = append(ids, id)
		}
	}
	owned, err := s.store.GetContacts(ctx, userID, ids)
	if err != nil {
		return err
	}
	if len(owned) != len(ids) {
		return &ValidationError{Field: "contact_ids", Message: "unknown contact ids"}
	}
	d.ContactIDs = ids
	return nil
}

func (s *Service) statusFor(scheduledAt *time.Time) string {
	if scheduledAt != nil && scheduledAt.After(s.now()) {
		return codes.CampaignStatusScheduled
	}
	return codes.CampaignStatusDraft
}

// Create validates d and stores a new draft or scheduled campaign. It also
// returns placeholder-shaped tokens the template engine will leave as is.
func (s *Service) Create(ctx context.Context, userID string, d Draft) (Campaign, []string, error) {
	if err := s.validate(ctx, userID, &d); err != nil {
		return Campaign{}, nil, err
	}
	c, err := s.store.CreateCampaign(ctx, Campaign{
		UserID:      userID,
		Name:        d.Name,
		Template:    d.Template,
		Signature:   d.Signature,
		Type:        d.Type,
		Status:      s.statusFor(d.ScheduledAt),
		ScheduledAt: d.ScheduledAt,
		ContactIDs:  d.ContactIDs,
	})
	if err != nil {
		return Campaign{}, nil, err
	}
	slog.InfoContext(logging.ContextWithCampaignID(logging.ContextWithUserID(ctx, userID), c.ID), "Campaign created",
		slog.String("status", c.Status),
		slog.Int("recipients", c.RecipientCount),
	)
	return c, template.Unknown(d.Template), nil
}

func (s *Service) Get(ctx context.Context, userID string, id int64) (Campaign, error) {
	return s.store.GetCampaign(ctx, userID, id)
}

// Update replaces the content of an unsent campaign.
func (s *Service) Update(ctx context.Context, userID string, id int64, d Draft) (Campaign, []string, error) {
	if err := s.validate(ctx, userID, &d); err != nil {
		return Campaign{}, nil, err
	}
	c, err := s.store.UpdateCampaign(ctx, Campaign{
		ID:          id,
		UserID:      userID,
		Name:        d.Name,
		Template:    d.Template,
		Signature:   d.Signature,
		Type:        d.Type,
		Status:      s.statusFor(d.ScheduledAt),
		ScheduledAt: d.ScheduledAt,
		ContactIDs:  d.ContactIDs,
	})
	if err != nil {
		return Campaign{}, nil, err
	}
	return c, template.Unknown(d.Template), nil
}

// Duplicate copies content and recipients of any campaign into a new draft.
func (s *Service) Duplicate(ctx context.Context, userID string, id int64) (Campaign, error) {
	src, err := s.store.GetCampaign(ctx, userID, id)
	if err != nil {
		return Campaign{}, err
	}
	c, err := s.store.CreateCampaign(ctx, Campaign{
		UserID:     userID,
		Name:       src.Name + " (copy)",
		Template:   src.Template,
		Signature:  src.Signature,
		Type:       src.Type,
		Status:     codes.CampaignStatusDraft,
		ContactIDs: src.ContactIDs,
	})
	if err != nil {
		return Campaign{}, err
	}
	return c, nil
}

func (s *Service) Records(ctx context.Context, userID string, campaignID int64, limit, offset int) ([]DispatchRecord, error) {
	if _, err := s.store.GetCampaign(ctx, userID, campaignID); err != nil {
		return nil, err
	}
	return s.store.ListRecords(ctx, userID, campaignID, limit, offset)
}

// IsValidation reports whether err is a *ValidationError.
func IsValidation(err error) (*ValidationError, bool) {
	var v *ValidationError
	ok := errors.As(err, &v)
	return v, ok
}

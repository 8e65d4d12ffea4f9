package campaign

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/thrillee/bulksms/pkg/codes"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore implements Store in process memory.
type MemoryStore struct {
	mu          sync.Mutex
	nextID      int64
	contacts    map[int64]Contact
	campaigns   map[int64]Campaign
	records     map[string]*DispatchRecord
	recordOrder []string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		contacts:  make(map[int64]Contact),
		campaigns: make(map[int64]Campaign),
		records:   make(map[string]*DispatchRecord),
	}
}

func (m *MemoryStore) id() int64 {
	m.nextID++
	return m.nextID
}

func copyCampaign(c Campaign) Campaign {
	c.ContactIDs = append([]int64(nil), c.ContactIDs...)
	return c
}

func (m *MemoryStore) CreateContacts(_ context.Context, contacts []Contact) ([]Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Contact, 0, len(contacts))
	now := time.Now()
	for _, c := range contacts {
		c.ID = m.id()
		c.CreatedAt = now
		m.contacts[c.ID] = c
		out = append(out, c)
	}
	return out, nil
}

func (m *MemoryStore) GetContacts(_ context.Context, userID string, ids []int64) ([]Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Contact
	for _, id := range ids {
		if c, ok := m.contacts[id]; ok && c.UserID == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) ListContacts(_ context.Context, userID, group string, limit, offset int) ([]Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var all []Contact
	for _, c := range m.contacts {
		if c.UserID == userID && (group == "" || c.Group == group) {
			all = append(all, c)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return page(all, limit, offset), nil
}

func (m *MemoryStore) CreateCampaign(_ context.Context, c Campaign) (Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	c.ID = m.id()
	c.RecipientCount = len(c.ContactIDs)
	c.SuccessCount, c.FailureCount, c.DeliveredCount = 0, 0, 0
	c.DispatchStartedAt, c.SentAt = nil, nil
	c.CreatedAt, c.UpdatedAt = now, now
	m.campaigns[c.ID] = copyCampaign(c)
	return copyCampaign(c), nil
}

func (m *MemoryStore) GetCampaign(_ context.Context, userID string, id int64) (Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.campaigns[id]
	if !ok || c.UserID != userID {
		return Campaign{}, ErrNotFound
	}
	return copyCampaign(c), nil
}

func (m *MemoryStore) UpdateCampaign(_ context.Context, upd Campaign) (Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.campaigns[upd.ID]
	if !ok || c.UserID != upd.UserID {
		return Campaign{}, ErrNotFound
	}
	if !codes.IsDispatchable(c.Status) || c.DispatchStartedAt != nil {
		return Campaign{}, ErrNotEditable
	}
	c.Name, c.Template, c.Signature, c.Type = upd.Name, upd.Template, upd.Signature, upd.Type
	c.Status, c.ScheduledAt = upd.Status, upd.ScheduledAt
	c.ContactIDs = append([]int64(nil), upd.ContactIDs...)
	c.RecipientCount = len(c.ContactIDs)
	c.UpdatedAt = time.Now()
	m.campaigns[c.ID] = c
	return copyCampaign(c), nil
}

func (m *MemoryStore) ClaimForDispatch(_ context.Context, userID string, id int64) (Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.campaigns[id]
	if !ok || c.UserID != userID {
		return Campaign{}, ErrNotFound
	}
	if !codes.IsDispatchable(c.Status) || c.DispatchStartedAt != nil {
		return Campaign{}, ErrNotDispatchable
	}
	now := time.Now()
	c.DispatchStartedAt = &now
	c.SuccessCount, c.FailureCount = 0, 0
	c.UpdatedAt = now
	m.campaigns[id] = c
	return copyCampaign(c), nil
}

func stalled(c Campaign, before time.Time) bool {
	return codes.IsDispatchable(c.Status) && c.DispatchStartedAt != nil && c.UpdatedAt.Before(before)
}

func (m *MemoryStore) StalledCampaigns(_ context.Context, before time.Time, limit int) ([]Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Campaign
	for _, c := range m.campaigns {
		if stalled(c, before) {
			out = append(out, copyCampaign(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	return page(out, limit, 0), nil
}

func (m *MemoryStore) ClaimStalled(_ context.Context, userID string, id int64, before time.Time) (Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.campaigns[id]
	if !ok || c.UserID != userID {
		return Campaign{}, ErrNotFound
	}
	if !stalled(c, before) {
		return Campaign{}, ErrNotDispatchable
	}
	c.SuccessCount, c.FailureCount = 0, 0
	for _, r := range m.records {
		if r.CampaignID == nil || *r.CampaignID != id {
			continue
		}
		if r.ErrorCode == "" {
			c.SuccessCount++
		} else {
			c.FailureCount++
		}
	}
	c.UpdatedAt = time.Now()
	m.campaigns[id] = c
	return copyCampaign(c), nil
}

func (m *MemoryStore) Recipients(_ context.Context, campaignID int64) ([]Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.campaigns[campaignID]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]Contact, 0, len(c.ContactIDs))
	for _, id := range c.ContactIDs {
		if contact, ok := m.contacts[id]; ok {
			out = append(out, contact)
		}
	}
	return out, nil
}

func (m *MemoryStore) AddCounters(_ context.Context, campaignID int64, success, failure int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.campaigns[campaignID]
	if !ok {
		return ErrNotFound
	}
	c.SuccessCount += success
	c.FailureCount += failure
	c.UpdatedAt = time.Now()
	m.campaigns[campaignID] = c
	return nil
}

func (m *MemoryStore) Finish(_ context.Context, campaignID int64, status string) (Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.campaigns[campaignID]
	if !ok {
		return Campaign{}, ErrNotFound
	}
	now := time.Now()
	c.Status = status
	c.SentAt = &now
	c.UpdatedAt = now
	m.campaigns[campaignID] = c
	return copyCampaign(c), nil
}

func (m *MemoryStore) IncrementDelivered(_ context.Context, campaignID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.campaigns[campaignID]
	if !ok {
		return ErrNotFound
	}
	c.DeliveredCount++
	m.campaigns[campaignID] = c
	return nil
}

func (m *MemoryStore) DueCampaigns(_ context.Context, before time.Time, limit int) ([]Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var due []Campaign
	for _, c := range m.campaigns {
		if c.Status == codes.CampaignStatusScheduled && c.DispatchStartedAt == nil &&
			c.ScheduledAt != nil && !c.ScheduledAt.After(before) {
			due = append(due, copyCampaign(c))
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ScheduledAt.Before(*due[j].ScheduledAt) })
	return page(due, limit, 0), nil
}

func (m *MemoryStore) CreateRecord(_ context.Context, r DispatchRecord) (DispatchRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.records[r.MessageID]; exists {
		return DispatchRecord{}, ErrDuplicateMessageID
	}
	r.ID = m.id()
	stored := r
	m.records[r.MessageID] = &stored
	m.recordOrder = append(m.recordOrder, r.MessageID)
	return r, nil
}

func (m *MemoryStore) GetRecord(_ context.Context, messageID string) (DispatchRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.records[messageID]
	if !ok {
		return DispatchRecord{}, ErrNotFound
	}
	return *r, nil
}

func (m *MemoryStore) RecordByReservation(_ context.Context, reservationID uuid.UUID) (DispatchRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range m.recordOrder {
		if r := m.records[id]; r.ReservationID != nil && *r.ReservationID == reservationID {
			return *r, nil
		}
	}
	return DispatchRecord{}, ErrNotFound
}

func (m *MemoryStore) TransitionRecord(_ context.Context, messageID, status string, deliveredAt *time.Time) (DispatchRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.records[messageID]
	if !ok {
		return DispatchRecord{}, false, ErrNotFound
	}
	if r.Status != codes.MsgStatusSent {
		return *r, false, nil
	}
	r.Status = status
	r.DeliveredAt = deliveredAt
	return *r, true, nil
}

func (m *MemoryStore) ListRecords(_ context.Context, userID string, campaignID int64, limit, offset int) ([]DispatchRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []DispatchRecord
	for _, id := range m.recordOrder {
		r := m.records[id]
		if r.UserID == userID && r.CampaignID != nil && *r.CampaignID == campaignID {
			out = append(out, *r)
		}
	}
	return page(out, limit, offset), nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

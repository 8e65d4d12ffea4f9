package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/thrillee/bulksms/pkg/codes"
)

var _ Store = (*MemoryStore)(nil)

// Entry is one line of the credit audit trail.
type Entry struct {
	UserID        string
	ReservationID uuid.UUID
	Kind          string
	Amount        int64
	BalanceAfter  int64
	Reference     string
	At            time.Time
}

type memReservation struct {
	Reservation
	state     string
	createdAt time.Time
}

// MemoryStore keeps balances in process memory. Used for development and tests.
type MemoryStore struct {
	mu           sync.Mutex
	balances     map[string]int64
	reservations map[uuid.UUID]*memReservation
	topUps       map[string]bool
	notifiedAt   map[string]time.Time
	entries      []Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		balances:     make(map[string]int64),
		reservations: make(map[uuid.UUID]*memReservation),
		topUps:       make(map[string]bool),
		notifiedAt:   make(map[string]time.Time),
	}
}

func (m *MemoryStore) record(e Entry) {
	e.At = time.Now()
	m.entries = append(m.entries, e)
}

func (m *MemoryStore) Balance(_ context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[userID], nil
}

func (m *MemoryStore) Reserve(_ context.Context, res Reservation) (bool, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	balance := m.balances[res.UserID]
	if balance < res.Amount {
		return false, balance, nil
	}
	balance -= res.Amount
	m.balances[res.UserID] = balance
	m.reservations[res.ID] = &memReservation{Reservation: res, state: codes.ReservationHeld, createdAt: time.Now()}
	m.record(Entry{UserID: res.UserID, ReservationID: res.ID, Kind: codes.EntryReserve, Amount: -res.Amount, BalanceAfter: balance})
	return true, balance, nil
}

func (m *MemoryStore) Settle(_ context.Context, id uuid.UUID, target string) (Settlement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.reservations[id]
	if !ok {
		return Settlement{}, ErrReservationNotFound
	}
	s := Settlement{Reservation: r.Reservation, State: r.state, BalanceAfter: m.balances[r.UserID]}
	changed, err := transition(r.state, target)
	if err != nil || !changed {
		return s, err
	}

	r.state = target
	kind, delta := codes.EntryCommit, int64(0)
	if target == codes.ReservationReleased {
		kind, delta = codes.EntryRelease, r.Amount
		m.balances[r.UserID] += delta
	}
	s.State, s.Changed, s.BalanceAfter = target, true, m.balances[r.UserID]
	m.record(Entry{UserID: r.UserID, ReservationID: id, Kind: kind, Amount: delta, BalanceAfter: s.BalanceAfter})
	return s, nil
}

func (m *MemoryStore) TopUp(_ context.Context, userID string, amount int64, reference string) (bool, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.topUps[reference] {
		return false, m.balances[userID], nil
	}
	m.topUps[reference] = true
	m.balances[userID] += amount
	delete(m.notifiedAt, userID)
	m.record(Entry{UserID: userID, Kind: codes.EntryTopUp, Amount: amount, BalanceAfter: m.balances[userID], Reference: reference})
	return true, m.balances[userID], nil
}

func (m *MemoryStore) LowBalances(_ context.Context, threshold int64, limit int) ([]Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-24 * time.Hour)
	var out []Account
	for userID, credits := range m.balances {
		if credits >= threshold {
			continue
		}
		if at, ok := m.notifiedAt[userID]; ok && at.After(cutoff) {
			continue
		}
		out = append(out, Account{UserID: userID, Credits: credits})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) MarkLowBalanceNotified(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifiedAt[userID] = time.Now()
	return nil
}

func (m *MemoryStore) HeldReservations(_ context.Context, before time.Time, limit int) ([]Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var held []*memReservation
	for _, r := range m.reservations {
		if r.state == codes.ReservationHeld && r.createdAt.Before(before) {
			held = append(held, r)
		}
	}
	sort.Slice(held, func(i, j int) bool { return held[i].createdAt.Before(held[j].createdAt) })
	if limit > 0 && len(held) > limit {
		held = held[:limit]
	}
	out := make([]Reservation, 0, len(held))
	for _, r := range held {
		out = append(out, r.Reservation)
	}
	return out, nil
}

// Entries returns a copy of the audit trail for userID.
func (m *MemoryStore) Entries(userID string) []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Entry
	for _, e := range m.entries {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out
}

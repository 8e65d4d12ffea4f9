package payment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/thrillee/bulksms/internal/database"
)

// Payment is the audit row of a provider callback.
type Payment struct {
	ID            int64           `json:"id"`
	Provider      string          `json:"provider"`
	TransactionID string          `json:"transaction_id"`
	UserID        string          `json:"user_id"`
	Credits       int64           `json:"credits"`
	Amount        decimal.Decimal `json:"amount"`
	Status        string          `json:"status"`
	RawPayload    string          `json:"-"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Store records payments. Insert reports false when the provider
// transaction was already stored.
type Store interface {
	Insert(ctx context.Context, p Payment) (bool, error)
	Get(ctx context.Context, provider, transactionID string) (Payment, error)
}

var ErrNotFound = errors.New("payment not found")

type MemoryStore struct {
	mu       sync.Mutex
	nextID   int64
	payments map[string]Payment
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{payments: make(map[string]Payment)}
}

func (m *MemoryStore) Insert(_ context.Context, p Payment) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := p.Provider + ":" + p.TransactionID
	if _, ok := m.payments[key]; ok {
		return false, nil
	}
	m.nextID++
	p.ID = m.nextID
	p.CreatedAt = time.Now()
	m.payments[key] = p
	return true, nil
}

func (m *MemoryStore) Get(_ context.Context, provider, transactionID string) (Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[provider+":"+transactionID]
	if !ok {
		return Payment{}, ErrNotFound
	}
	return p, nil
}

type PostgresStore struct {
	dbQueries database.Querier
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{dbQueries: database.New(pool)}
}

func (s *PostgresStore) Insert(ctx context.Context, p Payment) (bool, error) {
	var raw *string
	if p.RawPayload != "" {
		raw = &p.RawPayload
	}
	_, err := s.dbQueries.InsertPayment(ctx, database.InsertPaymentParams{
		Provider:      p.Provider,
		TransactionID: p.TransactionID,
		UserID:        p.UserID,
		Credits:       p.Credits,
		Amount:        p.Amount,
		Status:        p.Status,
		RawPayload:    raw,
	})
	if errors.Is(err, pgx.ErrNoRows) {
		// ON CONFLICT DO NOTHING returned no row
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to insert payment: %w", err)
	}
	return true, nil
}

func (s *PostgresStore) Get(ctx context.Context, provider, transactionID string) (Payment, error) {
	row, err := s.dbQueries.GetPayment(ctx, database.GetPaymentParams{Provider: provider, TransactionID: transactionID})
	if errors.Is(err, pgx.ErrNoRows) {
		return Payment{}, ErrNotFound
	}
	if err != nil {
		return Payment{}, fmt.Errorf("failed to get payment: %w", err)
	}
	p := Payment{
		ID:            row.ID,
		Provider:      row.Provider,
		TransactionID: row.TransactionID,
		UserID:        row.UserID,
		Credits:       row.Credits,
		Amount:        row.Amount,
		Status:        row.Status,
		CreatedAt:     row.CreatedAt,
	}
	if row.RawPayload != nil {
		p.RawPayload = *row.RawPayload
	}
	return p, nil
}

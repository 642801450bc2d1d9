// Package attempttest provides an in-memory attempt.Store for tests.
package attempttest

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/fatflowers/posbridge/internal/app/service/attempt"
	"github.com/fatflowers/posbridge/internal/models"
	"github.com/fatflowers/posbridge/pkg/tool"
)

// MemoryStore serializes Update calls with a single mutex, which gives the
// same guarantee as the row lock of the gorm store.
type MemoryStore struct {
	mu    sync.Mutex
	rows  map[string]*models.PaymentAttempt
	Saves int
	// Now defaults to time.Now and stamps CreatedAt/UpdatedAt.
	Now func() time.Time
}

var _ attempt.Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: map[string]*models.PaymentAttempt{}, Now: time.Now}
}

// Put stores a copy of a as-is, bypassing Create.
func (m *MemoryStore) Put(a *models.PaymentAttempt) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == "" {
		a.ID = tool.GenerateUUIDV7()
	}
	m.rows[a.OrderRef] = a.Clone()
}

// Get returns a copy of the stored row, or nil.
func (m *MemoryStore) Get(orderRef string) *models.PaymentAttempt {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[orderRef].Clone()
}

func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

func (m *MemoryStore) Create(_ context.Context, a *models.PaymentAttempt) (*models.PaymentAttempt, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.rows[a.OrderRef]; ok {
		return existing.Clone(), false, nil
	}
	if a.ID == "" {
		a.ID = tool.GenerateUUIDV7()
	}
	now := m.Now()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	m.rows[a.OrderRef] = a.Clone()
	return a.Clone(), true, nil
}

func (m *MemoryStore) find(match func(a *models.PaymentAttempt) bool) (*models.PaymentAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.rows {
		if match(a) {
			return a.Clone(), nil
		}
	}
	return nil, attempt.ErrAttemptNotFound
}

func (m *MemoryStore) FindByOrderRef(_ context.Context, orderRef string) (*models.PaymentAttempt, error) {
	return m.find(func(a *models.PaymentAttempt) bool { return a.OrderRef == orderRef })
}

func (m *MemoryStore) FindByClientTransactionID(_ context.Context, id string) (*models.PaymentAttempt, error) {
	return m.find(func(a *models.PaymentAttempt) bool { return a.ClientTransactionID != nil && *a.ClientTransactionID == id })
}

func (m *MemoryStore) FindByTransactionID(_ context.Context, id string) (*models.PaymentAttempt, error) {
	return m.find(func(a *models.PaymentAttempt) bool { return a.TransactionID != nil && *a.TransactionID == id })
}

func (m *MemoryStore) Update(_ context.Context, orderRef string, fn func(a *models.PaymentAttempt) error) (*models.PaymentAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[orderRef]
	if !ok {
		return nil, attempt.ErrAttemptNotFound
	}
	work := row.Clone()
	if err := fn(work); err != nil {
		if errors.Is(err, attempt.ErrSkipUpdate) {
			return row.Clone(), nil
		}
		return nil, err
	}
	work.UpdatedAt = m.Now()
	m.rows[orderRef] = work
	m.Saves++
	return work.Clone(), nil
}

func (m *MemoryStore) SetShopifyOrderID(_ context.Context, orderRef, orderID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[orderRef]
	if !ok || row.ShopifyOrderID != nil {
		return false, nil
	}
	row.ShopifyOrderID = &orderID
	row.OrderClaimedAt = nil
	return true, nil
}

func (m *MemoryStore) ReleaseOrderClaim(_ context.Context, orderRef string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if row, ok := m.rows[orderRef]; ok && row.ShopifyOrderID == nil {
		row.OrderClaimedAt = nil
	}
	return nil
}

func (m *MemoryStore) MarkNotified(_ context.Context, id string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.ID != id {
			continue
		}
		if row.TerminalWebhookNotifiedAt != nil {
			return false, nil
		}
		row.TerminalWebhookNotifiedAt = &at
		return true, nil
	}
	return false, nil
}

// Scan ignores filters and returns rows newest first.
func (m *MemoryStore) Scan(_ context.Context, req *attempt.ScanRequest) (*attempt.ScanResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := make([]*models.PaymentAttempt, 0, len(m.rows))
	for _, a := range m.rows {
		items = append(items, a.Clone())
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	total := int64(len(items))
	if req != nil {
		from := min(max(req.From, 0), len(items))
		end := len(items)
		if req.Size > 0 {
			end = min(from+req.Size, end)
		}
		items = items[from:end]
	}
	return &attempt.ScanResponse{Items: items, Total: total}, nil
}

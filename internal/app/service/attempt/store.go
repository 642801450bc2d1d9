package attempt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fatflowers/posbridge/internal/models"
	"github.com/fatflowers/posbridge/pkg/tool"
	"github.com/fatflowers/posbridge/pkg/types"
	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrAttemptNotFound = errors.New("payment attempt not found")
	// ErrSkipUpdate lets an Update mutator abort without writing. The mutator
	// must not have touched the row when returning it.
	ErrSkipUpdate = errors.New("skip update")
	// ErrInvalidScan rejects list queries on columns outside ScanColumns.
	ErrInvalidScan = errors.New("invalid payment attempt query")
)

// Store persists payment attempts. Update is the only read-modify-write path
// and runs under a row lock.
type Store interface {
	// Create inserts a PENDING attempt. When orderRef already exists the stored
	// row is returned with created=false.
	Create(ctx context.Context, a *models.PaymentAttempt) (stored *models.PaymentAttempt, created bool, err error)
	FindByOrderRef(ctx context.Context, orderRef string) (*models.PaymentAttempt, error)
	FindByClientTransactionID(ctx context.Context, id string) (*models.PaymentAttempt, error)
	FindByTransactionID(ctx context.Context, id string) (*models.PaymentAttempt, error)
	Update(ctx context.Context, orderRef string, fn func(a *models.PaymentAttempt) error) (*models.PaymentAttempt, error)
	// SetShopifyOrderID writes the order id only if none is stored yet and clears the order claim.
	SetShopifyOrderID(ctx context.Context, orderRef, orderID string) (bool, error)
	ReleaseOrderClaim(ctx context.Context, orderRef string) error
	// MarkNotified sets terminal_webhook_notified_at only if it is still null.
	MarkNotified(ctx context.Context, id string, at time.Time) (bool, error)
	Scan(ctx context.Context, req *ScanRequest) (*ScanResponse, error)
}

// ScanRequest is the admin list query.
type ScanRequest struct {
	Filters   []*types.CommonFilter `json:"filters"`
	From      int                   `json:"from"`
	Size      int                   `json:"size"`
	SortBy    string                `json:"sort_by"`
	SortOrder string                `json:"sort_order"`
}

type ScanResponse struct {
	Items []*models.PaymentAttempt `json:"items"`
	Total int64                    `json:"total"`
}

// ScanColumns are the columns admin filters and sorting may reference.
var ScanColumns = []string{
	"id", "order_ref", "reader_id", "amount_minor", "currency", "status",
	"transaction_id", "client_transaction_id", "shopify_order_id",
	"terminal_webhook_notified_at", "created_at", "updated_at",
}

const maxScanSize = 200

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Create(ctx context.Context, a *models.PaymentAttempt) (*models.PaymentAttempt, bool, error) {
	if a.ID == "" {
		a.ID = tool.GenerateUUIDV7()
	}
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "order_ref"}}, DoNothing: true}).
		Create(a)
	if res.Error != nil {
		return nil, false, fmt.Errorf("failed to create payment attempt: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		existing, err := s.FindByOrderRef(ctx, a.OrderRef)
		return existing, false, err
	}
	return a, true, nil
}

func (s *GormStore) findOne(ctx context.Context, column, value string) (*models.PaymentAttempt, error) {
	var row models.PaymentAttempt
	err := s.db.WithContext(ctx).
		Where(clause.Eq{Column: clause.Column{Name: column}, Value: value}).
		Order("created_at DESC").
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to load payment attempt by %s: %w", column, err)
	}
	return &row, nil
}

func (s *GormStore) FindByOrderRef(ctx context.Context, orderRef string) (*models.PaymentAttempt, error) {
	return s.findOne(ctx, "order_ref", orderRef)
}

func (s *GormStore) FindByClientTransactionID(ctx context.Context, id string) (*models.PaymentAttempt, error) {
	return s.findOne(ctx, "client_transaction_id", id)
}

func (s *GormStore) FindByTransactionID(ctx context.Context, id string) (*models.PaymentAttempt, error) {
	return s.findOne(ctx, "transaction_id", id)
}

// Update re-reads the row with SELECT ... FOR UPDATE, applies fn and saves the
// result in the same transaction.
func (s *GormStore) Update(ctx context.Context, orderRef string, fn func(a *models.PaymentAttempt) error) (*models.PaymentAttempt, error) {
	var out *models.PaymentAttempt
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row models.PaymentAttempt
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("order_ref = ?", orderRef).
			Take(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAttemptNotFound
			}
			return err
		}
		if err := fn(&row); err != nil {
			if errors.Is(err, ErrSkipUpdate) {
				out = &row
				return nil
			}
			return err
		}
		if err := tx.Save(&row).Error; err != nil {
			return err
		}
		out = &row
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrAttemptNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update payment attempt: %w", err)
	}
	return out, nil
}

func (s *GormStore) SetShopifyOrderID(ctx context.Context, orderRef, orderID string) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.PaymentAttempt{}).
		Where("order_ref = ? AND shopify_order_id IS NULL", orderRef).
		Updates(map[string]any{
			"shopify_order_id": orderID,
			"order_claimed_at": nil,
			"updated_at":       time.Now(),
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to set shopify order id: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *GormStore) ReleaseOrderClaim(ctx context.Context, orderRef string) error {
	res := s.db.WithContext(ctx).Model(&models.PaymentAttempt{}).
		Where("order_ref = ? AND shopify_order_id IS NULL", orderRef).
		Updates(map[string]any{"order_claimed_at": nil, "updated_at": time.Now()})
	if res.Error != nil {
		return fmt.Errorf("failed to release order claim: %w", res.Error)
	}
	return nil
}

func (s *GormStore) MarkNotified(ctx context.Context, id string, at time.Time) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.PaymentAttempt{}).
		Where("id = ? AND terminal_webhook_notified_at IS NULL", id).
		Updates(map[string]any{"terminal_webhook_notified_at": at, "updated_at": time.Now()})
	if res.Error != nil {
		return false, fmt.Errorf("failed to mark attempt notified: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// filtersAnd combines CommonFilters into a single clause.Expression.
type filtersAnd struct{ filters []*types.CommonFilter }

func (w filtersAnd) Build(builder clause.Builder) {
	if len(w.filters) == 0 {
		builder.WriteString("1=1")
		return
	}
	exprs := make([]clause.Expression, 0, len(w.filters))
	for _, f := range w.filters {
		exprs = append(exprs, f)
	}
	clause.And(exprs...).Build(builder)
}

// usableFilters drops filters on unknown columns and filters that would render nothing.
func usableFilters(filters []*types.CommonFilter) ([]*types.CommonFilter, error) {
	out := make([]*types.CommonFilter, 0, len(filters))
	for _, f := range filters {
		if f == nil {
			continue
		}
		if !f.Valid(ScanColumns) {
			return nil, fmt.Errorf("%w: unsupported filter field %q", ErrInvalidScan, f.Field)
		}
		if len(f.Values) == 0 && f.Operator != types.CommonFilterOperatorNull {
			continue
		}
		out = append(out, f)
	}
	return out, nil
}

func (s *GormStore) Scan(ctx context.Context, req *ScanRequest) (*ScanResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: nil request", ErrInvalidScan)
	}
	if req.Size <= 0 {
		req.Size = 10
	}
	req.Size = min(req.Size, maxScanSize)
	if req.From < 0 {
		req.From = 0
	}
	if req.SortBy != "" && !lo.Contains(ScanColumns, req.SortBy) {
		return nil, fmt.Errorf("%w: unsupported sort field %q", ErrInvalidScan, req.SortBy)
	}
	filters, err := usableFilters(req.Filters)
	if err != nil {
		return nil, err
	}

	tx := s.db.WithContext(ctx).Model(&models.PaymentAttempt{})
	if len(filters) > 0 {
		tx = tx.Where(clause.Where{Exprs: []clause.Expression{filtersAnd{filters: filters}}})
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count payment attempts: %w", err)
	}

	var rows []*models.PaymentAttempt
	q := tx.Limit(req.Size)
	if req.From > 0 {
		q = q.Offset(req.From)
	}
	sortBy := lo.Ternary(req.SortBy == "", "created_at", req.SortBy)
	q = q.Order(clause.OrderBy{Columns: []clause.OrderByColumn{{Column: clause.Column{Name: sortBy}, Desc: req.SortOrder != "asc"}}})
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list payment attempts: %w", err)
	}

	return &ScanResponse{Items: rows, Total: total}, nil
}

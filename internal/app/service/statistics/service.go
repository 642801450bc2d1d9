package statistics

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/samber/lo"
	"go.uber.org/fx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/posbridge/internal/models"
	"github.com/fatflowers/posbridge/pkg/types"
)

var ErrInvalidDataItem = errors.New("invalid data item id")

type StatisticType string

const (
	StatisticTypeDailyAttemptCount StatisticType = "daily_attempt_count"
	StatisticTypeDailyApprovedGmv  StatisticType = "daily_approved_gmv"
	StatisticTypeTotalApprovedGmv  StatisticType = "total_approved_gmv"
	// StatisticTypeDailyApprovalRate is approved/final in basis points; value2 is final, value3 approved.
	StatisticTypeDailyApprovalRate StatisticType = "daily_approval_rate"
	StatisticTypeOpenOrderGaps     StatisticType = "open_order_gaps"
)

// FilterColumns are the payment_attempt columns statistics may be filtered on.
var FilterColumns = []string{"reader_id", "currency", "created_at"}

type StatisticDataItem struct {
	ID StatisticType `json:"id"`
}

type StatisticRequest struct {
	Filters   []*types.CommonFilter `json:"filters"`
	DataItems []*StatisticDataItem  `json:"data_items"`
}

// Build composes the WHERE clause. Filters on unknown columns are dropped.
func (r *StatisticRequest) Build(builder clause.Builder) {
	valid := lo.Filter(r.Filters, func(f *types.CommonFilter, _ int) bool { return f.Valid(FilterColumns) })
	if len(valid) == 0 {
		builder.WriteString("1=1")
		return
	}
	for i, f := range valid {
		if i > 0 {
			builder.WriteString(" AND ")
		}
		f.Build(builder)
	}
}

type StatisticResponseDataItem struct {
	Date   string `json:"date,omitempty"`
	Label  string `json:"label,omitempty"`
	Value  int64  `json:"value"`
	Value2 int64  `json:"value2,omitempty"`
	Value3 int64  `json:"value3,omitempty"`
}

type StatisticResponse struct {
	DataItems map[StatisticType][]StatisticResponseDataItem `json:"data_items"`
}

// Service computes admin dashboards over payment attempts.
type Service struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Service { return &Service{db: db} }

func (s *Service) attempts(ctx context.Context, request *StatisticRequest) *gorm.DB {
	return s.db.WithContext(ctx).Table(models.PaymentAttempt{}.TableName()).
		Where(clause.Where{Exprs: []clause.Expression{request}})
}

func (s *Service) getDailyAttemptCount(ctx context.Context, request *StatisticRequest) ([]StatisticResponseDataItem, error) {
	var results []StatisticResponseDataItem
	q := s.attempts(ctx, request).
		Select("TO_CHAR(created_at, 'YYYY-MM-DD') as date, status as label, count(*) as value").
		Group("TO_CHAR(created_at, 'YYYY-MM-DD')").
		Group("status").
		Order("date")
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) getDailyApprovedGmv(ctx context.Context, request *StatisticRequest) ([]StatisticResponseDataItem, error) {
	var results []StatisticResponseDataItem
	q := s.attempts(ctx, request).
		Select("TO_CHAR(created_at, 'YYYY-MM-DD') as date, currency AS label, sum(amount_minor) as value").
		Where("status = ?", types.AttemptStatusApproved).
		Group("TO_CHAR(created_at, 'YYYY-MM-DD')").
		Group("currency").
		Order(clause.OrderByColumn{Column: clause.Column{Name: "date"}, Desc: true})
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// getTotalApprovedGmv returns the running total per currency for every day
// between the first and last attempt.
func (s *Service) getTotalApprovedGmv(ctx context.Context, _ *StatisticRequest) ([]StatisticResponseDataItem, error) {
	var results []StatisticResponseDataItem
	err := s.db.WithContext(ctx).Raw(`
WITH min_max_dates AS (
    SELECT MIN(DATE(created_at)) as min_date, MAX(DATE(created_at)) as max_date
    FROM payment_attempt
),
distinct_dates AS (
    SELECT generate_series(min_date, max_date, '1 day'::interval) as date FROM min_max_dates
),
dates AS (
    SELECT TO_CHAR(date, 'YYYY-MM-DD') as date FROM distinct_dates
),
currencies AS (
    SELECT DISTINCT currency as label FROM payment_attempt WHERE status = ?
),
date_currency_combinations AS (
    SELECT d.date, c.label FROM dates d CROSS JOIN currencies c
),
gmv_date AS (
    SELECT dc.date, dc.label, COALESCE(SUM(p.amount_minor), 0) as value
    FROM date_currency_combinations dc
    LEFT JOIN payment_attempt p
      ON TO_CHAR(p.created_at, 'YYYY-MM-DD') = dc.date
     AND p.currency = dc.label
     AND p.status = ?
    GROUP BY dc.date, dc.label
)
SELECT d.date as date, d.label as label, SUM(s.value) as value
FROM gmv_date d
LEFT JOIN gmv_date s ON s.date <= d.date AND s.label = d.label
GROUP BY d.date, d.label
ORDER BY d.date DESC, d.label ASC
`, types.AttemptStatusApproved, types.AttemptStatusApproved).Scan(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) getDailyApprovalRate(ctx context.Context, request *StatisticRequest) ([]StatisticResponseDataItem, error) {
	var results []StatisticResponseDataItem
	q := s.attempts(ctx, request).
		Select(`TO_CHAR(created_at, 'YYYY-MM-DD') as date,
  CAST(COUNT(*) FILTER (WHERE status = ?) * 10000 / COUNT(*) AS BIGINT) as value,
  COUNT(*) as value2,
  COUNT(*) FILTER (WHERE status = ?) as value3`, types.AttemptStatusApproved, types.AttemptStatusApproved).
		Where("status <> ?", types.AttemptStatusPending).
		Group("TO_CHAR(created_at, 'YYYY-MM-DD')").
		Order(clause.OrderByColumn{Column: clause.Column{Name: "date"}, Desc: true})
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// getOpenOrderGaps counts APPROVED attempts that still have no downstream order.
func (s *Service) getOpenOrderGaps(ctx context.Context, request *StatisticRequest) ([]StatisticResponseDataItem, error) {
	var results []StatisticResponseDataItem
	q := s.attempts(ctx, request).
		Select("count(*) as value").
		Where("status = ?", types.AttemptStatusApproved).
		Where("shopify_order_id IS NULL")
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) getStatistic(ctx context.Context, request *StatisticRequest, dataItem *StatisticDataItem) ([]StatisticResponseDataItem, error) {
	switch dataItem.ID {
	case StatisticTypeDailyAttemptCount:
		return s.getDailyAttemptCount(ctx, request)
	case StatisticTypeDailyApprovedGmv:
		return s.getDailyApprovedGmv(ctx, request)
	case StatisticTypeTotalApprovedGmv:
		return s.getTotalApprovedGmv(ctx, request)
	case StatisticTypeDailyApprovalRate:
		return s.getDailyApprovalRate(ctx, request)
	case StatisticTypeOpenOrderGaps:
		return s.getOpenOrderGaps(ctx, request)
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidDataItem, dataItem.ID)
	}
}

// GetStatistic computes every requested data item concurrently.
func (s *Service) GetStatistic(ctx context.Context, request *StatisticRequest) (*StatisticResponse, error) {
	var wg sync.WaitGroup
	errChan := make(chan error, len(request.DataItems))
	resChan := make(chan *lo.Entry[StatisticType, []StatisticResponseDataItem], len(request.DataItems))

	for _, item := range request.DataItems {
		wg.Add(1)
		go func(di *StatisticDataItem) {
			defer wg.Done()
			res, err := s.getStatistic(ctx, request, di)
			if err != nil {
				errChan <- err
				return
			}
			resChan <- &lo.Entry[StatisticType, []StatisticResponseDataItem]{Key: di.ID, Value: res}
		}(item)
	}

	wg.Wait()
	close(errChan)
	close(resChan)
	if err, ok := <-errChan; ok {
		return nil, err
	}

	results := make(map[StatisticType][]StatisticResponseDataItem, len(request.DataItems))
	for entry := range resChan {
		results[entry.Key] = entry.Value
	}
	return &StatisticResponse{DataItems: results}, nil
}

var Module = fx.Options(
	fx.Provide(New),
)

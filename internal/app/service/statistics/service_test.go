package statistics

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/fatflowers/posbridge/pkg/types"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{})
	require.NoError(t, err)
	return gormDB, mock
}

func TestGetStatistic_DailyAttemptCount(t *testing.T) {
	gdb, mock := setupMockDB(t)
	svc := New(gdb)

	rows := sqlmock.NewRows([]string{"date", "label", "value"}).
		AddRow("2026-03-01", "APPROVED", int64(12)).
		AddRow("2026-03-01", "DECLINED", int64(2))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM "payment_attempt" WHERE "reader_id" = $1`)).
		WithArgs("rdr_1").
		WillReturnRows(rows)

	res, err := svc.GetStatistic(context.Background(), &StatisticRequest{
		Filters: []*types.CommonFilter{
			{Field: "reader_id", Operator: types.CommonFilterOperatorEq, Values: []any{"rdr_1"}},
			{Field: "password; DROP TABLE payment_attempt", Operator: types.CommonFilterOperatorEq, Values: []any{"x"}},
		},
		DataItems: []*StatisticDataItem{{ID: StatisticTypeDailyAttemptCount}},
	})
	require.NoError(t, err)
	items := res.DataItems[StatisticTypeDailyAttemptCount]
	require.Len(t, items, 2)
	require.Equal(t, "APPROVED", items[0].Label)
	require.Equal(t, int64(12), items[0].Value)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetStatistic_OpenOrderGaps(t *testing.T) {
	gdb, mock := setupMockDB(t)
	svc := New(gdb)

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE 1=1 AND status = $1 AND shopify_order_id IS NULL`)).
		WithArgs(types.AttemptStatusApproved).
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(int64(3)))

	res, err := svc.GetStatistic(context.Background(), &StatisticRequest{
		DataItems: []*StatisticDataItem{{ID: StatisticTypeOpenOrderGaps}},
	})
	require.NoError(t, err)
	require.Equal(t, int64(3), res.DataItems[StatisticTypeOpenOrderGaps][0].Value)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetStatistic_UnknownItem(t *testing.T) {
	gdb, _ := setupMockDB(t)
	_, err := New(gdb).GetStatistic(context.Background(), &StatisticRequest{
		DataItems: []*StatisticDataItem{{ID: "nope"}},
	})
	require.ErrorIs(t, err, ErrInvalidDataItem)
}

package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/fatflowers/posbridge/internal/app/service/attempt"
	"github.com/fatflowers/posbridge/internal/models"
	"github.com/fatflowers/posbridge/pkg/types"
)

type AttemptScanner interface {
	Scan(ctx context.Context, req *attempt.ScanRequest) (*attempt.ScanResponse, error)
}

const maxHistorySize = 50

type HistoryItem struct {
	OrderRef    string `json:"orderRef"`
	AmountMinor int64  `json:"amountMinor"`
	Currency    string `json:"currency"`
	CreatedAt   string `json:"createdAt"`
	StatusResponse
}

type HistoryResponse struct {
	Items []*HistoryItem `json:"items"`
	Total int64          `json:"total"`
}

func toHistoryItem(a *models.PaymentAttempt, _ int) *HistoryItem {
	return &HistoryItem{
		OrderRef:       a.OrderRef,
		AmountMinor:    a.AmountMinor,
		Currency:       a.Currency,
		CreatedAt:      a.CreatedAt.UTC().Format(time.RFC3339),
		StatusResponse: *toStatusResponse(a),
	}
}

// @Summary      Reader sales history
// @Description  Lists the most recent attempts taken on one card reader, newest first.
// @Tags         Payments
// @Produce      json
// @Param        readerId query string true "Reader id"
// @Param        from query int false "Offset"
// @Param        size query int false "Page size (max 50)"
// @Success      200  {object}  handlers.HistoryResponse
// @Router       /payments/history [get]
func ApiReaderHistory(scanner AttemptScanner, base *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		readerID := strings.TrimSpace(c.Query("readerId"))
		if readerID == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "readerId is required"})
			return
		}
		from := 0
		if v := c.Query("from"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				from = n
			}
		}
		size := 20
		if v := c.Query("size"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid size"})
				return
			}
			size = min(n, maxHistorySize)
		}

		res, err := scanner.Scan(c.Request.Context(), &attempt.ScanRequest{
			Filters:   []*types.CommonFilter{{Field: "reader_id", Operator: types.CommonFilterOperatorEq, Values: []any{readerID}}},
			From:      from,
			Size:      size,
			SortBy:    "created_at",
			SortOrder: "desc",
		})
		if err != nil {
			abortWithError(c, base, err)
			return
		}
		c.JSON(http.StatusOK, &HistoryResponse{Items: lo.Map(res.Items, toHistoryItem), Total: res.Total})
	}
}

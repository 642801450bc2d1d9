package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/fatflowers/posbridge/internal/app/service/attempt"
	"github.com/fatflowers/posbridge/internal/app/service/payment"
	"github.com/fatflowers/posbridge/internal/app/service/statistics"
	"github.com/fatflowers/posbridge/internal/models"
	"github.com/fatflowers/posbridge/internal/platform/sumup"
	"github.com/fatflowers/posbridge/pkg/logctx"
	"github.com/fatflowers/posbridge/pkg/response"
	"github.com/fatflowers/posbridge/pkg/types"
)

// AdminReconciler is the operator side of the reconciler.
type AdminReconciler interface {
	Reconcile(ctx context.Context, orderRef string, observed *sumup.Transaction, source string) (*payment.Outcome, error)
	RecoverOrder(ctx context.Context, orderRef string) (*models.PaymentAttempt, error)
	Expire(ctx context.Context, orderRef, reason string) (*models.PaymentAttempt, error)
}

type StatisticsService interface {
	GetStatistic(ctx context.Context, req *statistics.StatisticRequest) (*statistics.StatisticResponse, error)
}

type WebhookEventLister interface {
	ListByOrderRef(ctx context.Context, orderRef string, limit int) ([]*models.WebhookEvent, error)
}

type ListAttemptsRequest struct {
	Filters   []*types.CommonFilter `json:"filters"`
	From      int                   `json:"from"`
	Size      int                   `json:"size"`
	SortBy    string                `json:"sort_by"`
	SortOrder string                `json:"sort_order"`
}

// AttemptItem is the admin view of a payment attempt; snapshots are left out.
type AttemptItem struct {
	ID                        string              `json:"id"`
	OrderRef                  string              `json:"order_ref"`
	ReaderID                  string              `json:"reader_id"`
	AmountMinor               int64               `json:"amount_minor"`
	Currency                  string              `json:"currency"`
	Status                    types.AttemptStatus `json:"status"`
	TransactionID             *string             `json:"transaction_id"`
	ClientTransactionID       *string             `json:"client_transaction_id"`
	Scheme                    *string             `json:"scheme"`
	Last4                     *string             `json:"last4"`
	ApprovalCode              *string             `json:"approval_code"`
	Message                   *string             `json:"message"`
	ShopifyOrderID            *string             `json:"shopify_order_id"`
	OrderClaimedAt            *time.Time          `json:"order_claimed_at"`
	TerminalWebhookNotifiedAt *time.Time          `json:"terminal_webhook_notified_at"`
	CreatedAt                 time.Time           `json:"created_at"`
	UpdatedAt                 time.Time           `json:"updated_at"`
}

func toAttemptItem(m *models.PaymentAttempt) *AttemptItem {
	return &AttemptItem{
		ID:                        m.ID,
		OrderRef:                  m.OrderRef,
		ReaderID:                  m.ReaderID,
		AmountMinor:               m.AmountMinor,
		Currency:                  m.Currency,
		Status:                    m.Status,
		TransactionID:             m.TransactionID,
		ClientTransactionID:       m.ClientTransactionID,
		Scheme:                    m.Scheme,
		Last4:                     m.Last4,
		ApprovalCode:              m.ApprovalCode,
		Message:                   m.Message,
		ShopifyOrderID:            m.ShopifyOrderID,
		OrderClaimedAt:            m.OrderClaimedAt,
		TerminalWebhookNotifiedAt: m.TerminalWebhookNotifiedAt,
		CreatedAt:                 m.CreatedAt,
		UpdatedAt:                 m.UpdatedAt,
	}
}

type ListAttemptsResponse struct {
	Items []*AttemptItem `json:"items"`
	Total int64          `json:"total"`
}

type OrderRefRequest struct {
	OrderRef   string `json:"order_ref" binding:"required"`
	OperatorID string `json:"operator_id"`
}

type ExpireAttemptRequest struct {
	OrderRef   string `json:"order_ref" binding:"required"`
	Reason     string `json:"reason" binding:"max=300"`
	OperatorID string `json:"operator_id" binding:"required"`
}

type ListWebhookEventsRequest struct {
	OrderRef string `json:"order_ref" binding:"required"`
	Limit    int    `json:"limit"`
}

type adminHandlers struct {
	scanner AttemptScanner
	rec     AdminReconciler
	stats   StatisticsService
	events  WebhookEventLister
	log     *zap.SugaredLogger
}

// @Summary      List Payment Attempts (Admin)
// @Description  Retrieves a paginated and filterable list of payment attempts.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body ListAttemptsRequest true "Filters, pagination and sorting"
// @Success      200  {object}  handlers.RespListAttempts
// @Router       /api/v1/admin/list_payment_attempts [post]
func (h *adminHandlers) listAttempts(c *gin.Context) {
	var req ListAttemptsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
		return
	}
	res, err := h.scanner.Scan(c.Request.Context(), &attempt.ScanRequest{
		Filters: req.Filters, From: req.From, Size: req.Size, SortBy: req.SortBy, SortOrder: req.SortOrder,
	})
	if err != nil {
		adminError(c, h.log, err)
		return
	}
	items := lo.Map(res.Items, func(it *models.PaymentAttempt, _ int) *AttemptItem { return toAttemptItem(it) })
	c.JSON(http.StatusOK, response.OKT(&ListAttemptsResponse{Items: items, Total: res.Total}))
}

// @Summary      Get Payment Statistics (Admin)
// @Description  Computes the requested dashboards (daily counts, approved GMV, approval rate, open order gaps).
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body statistics.StatisticRequest true "Statistic request parameters"
// @Success      200  {object}  handlers.RespStatistic
// @Router       /api/v1/admin/get_payment_statistic [post]
func (h *adminHandlers) getStatistic(c *gin.Context) {
	var req statistics.StatisticRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
		return
	}
	if len(req.DataItems) == 0 {
		c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "data_items is required"))
		return
	}
	res, err := h.stats.GetStatistic(c.Request.Context(), &req)
	if err != nil {
		adminError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.OKT(res))
}

// @Summary      Recover Order (Admin)
// @Description  Creates the missing downstream order for an APPROVED attempt.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body OrderRefRequest true "Attempt to recover"
// @Success      200  {object}  handlers.RespAttempt
// @Router       /api/v1/admin/recover_order [post]
func (h *adminHandlers) recoverOrder(c *gin.Context) {
	var req OrderRefRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
		return
	}
	ctx := logctx.WithOrderRef(c.Request.Context(), strings.TrimSpace(req.OrderRef))
	logctx.FromCtx(ctx, h.log).Infow("admin_recover_order", "operator_id", req.OperatorID)
	a, err := h.rec.RecoverOrder(ctx, strings.TrimSpace(req.OrderRef))
	if err != nil {
		adminError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.OKT(toAttemptItem(a)))
}

// @Summary      Expire Attempt (Admin)
// @Description  Moves a PENDING attempt to TIMEOUT and sends the terminal confirmation.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body ExpireAttemptRequest true "Attempt to expire"
// @Success      200  {object}  handlers.RespAttempt
// @Router       /api/v1/admin/expire_attempt [post]
func (h *adminHandlers) expireAttempt(c *gin.Context) {
	var req ExpireAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
		return
	}
	ctx := logctx.WithOrderRef(c.Request.Context(), strings.TrimSpace(req.OrderRef))
	logctx.FromCtx(ctx, h.log).Infow("admin_expire_attempt", "operator_id", req.OperatorID)
	a, err := h.rec.Expire(ctx, strings.TrimSpace(req.OrderRef), req.Reason)
	if err != nil {
		adminError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.OKT(toAttemptItem(a)))
}

// @Summary      Reconcile Attempt (Admin)
// @Description  Forces one live lookup at the processor for the attempt.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body OrderRefRequest true "Attempt to reconcile"
// @Success      200  {object}  handlers.RespAttempt
// @Router       /api/v1/admin/reconcile [post]
func (h *adminHandlers) reconcile(c *gin.Context) {
	var req OrderRefRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
		return
	}
	out, err := h.rec.Reconcile(c.Request.Context(), strings.TrimSpace(req.OrderRef), nil, types.SourceAdmin)
	if err != nil {
		adminError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.OKT(toAttemptItem(out.Attempt)))
}

// @Summary      List Webhook Events (Admin)
// @Description  Returns the webhook audit records stored for one attempt, newest first.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body ListWebhookEventsRequest true "Attempt and limit"
// @Success      200  {object}  handlers.RespWebhookEvents
// @Router       /api/v1/admin/list_webhook_events [post]
func (h *adminHandlers) listWebhookEvents(c *gin.Context) {
	var req ListWebhookEventsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
		return
	}
	events, err := h.events.ListByOrderRef(c.Request.Context(), strings.TrimSpace(req.OrderRef), req.Limit)
	if err != nil {
		adminError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.OKT(events))
}

func RegisterAdminRoutes(r gin.IRouter, scanner AttemptScanner, rec AdminReconciler, stats StatisticsService, events WebhookEventLister, base *zap.SugaredLogger) {
	h := &adminHandlers{scanner: scanner, rec: rec, stats: stats, events: events, log: base}
	r.POST("/list_payment_attempts", h.listAttempts)
	r.POST("/get_payment_statistic", h.getStatistic)
	r.POST("/recover_order", h.recoverOrder)
	r.POST("/expire_attempt", h.expireAttempt)
	r.POST("/reconcile", h.reconcile)
	r.POST("/list_webhook_events", h.listWebhookEvents)
}

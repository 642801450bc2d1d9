package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fatflowers/posbridge/internal/app/service/attempt"
	"github.com/fatflowers/posbridge/internal/app/service/payment"
	"github.com/fatflowers/posbridge/internal/models"
	"github.com/fatflowers/posbridge/pkg/logctx"
	"github.com/fatflowers/posbridge/pkg/types"
)

type CheckoutService interface {
	Start(ctx context.Context, req *payment.StartCheckoutRequest) (*payment.StartCheckoutResult, error)
	Cancel(ctx context.Context, orderRef string) (*models.PaymentAttempt, error)
}

type StatusPoller interface {
	Poll(ctx context.Context, orderRef string) (*payment.PollResult, error)
}

type CheckoutRequest struct {
	TerminalID  string          `json:"terminalId" binding:"required"`
	AmountMinor *int64          `json:"amountMinor" binding:"required,gte=0"`
	Currency    string          `json:"currency" binding:"omitempty,currency"`
	OrderRef    string          `json:"orderRef" binding:"required,max=128"`
	Description string          `json:"description" binding:"max=255"`
	Customer    json.RawMessage `json:"customer" swaggertype:"object"`
	Cart        json.RawMessage `json:"cart" swaggertype:"array,object"`
}

type CheckoutResponse struct {
	Status              types.AttemptStatus `json:"status"`
	ClientTransactionID *string             `json:"client_transaction_id"`
	Message             *string             `json:"message,omitempty"`
}

type StatusResponse struct {
	Status              types.AttemptStatus `json:"status"`
	TransactionID       *string             `json:"transactionId"`
	ApprovalCode        *string             `json:"approvalCode"`
	Scheme              *string             `json:"scheme"`
	Last4               *string             `json:"last4"`
	ShopifyOrderID      *string             `json:"shopifyOrderId"`
	Message             *string             `json:"message"`
	ClientTransactionID *string             `json:"clientTransactionId"`
	PollAfterMs         int64               `json:"pollAfterMs"`
}

type CancelRequest struct {
	OrderRef string `json:"orderRef" binding:"required"`
}

type CancelResponse struct {
	OK     bool                `json:"ok"`
	Status types.AttemptStatus `json:"status,omitempty"`
	Error  string              `json:"error,omitempty"`
}

func toStatusResponse(a *models.PaymentAttempt) *StatusResponse {
	return &StatusResponse{
		Status:              a.Status,
		TransactionID:       a.TransactionID,
		ApprovalCode:        a.ApprovalCode,
		Scheme:              a.Scheme,
		Last4:               a.Last4,
		ShopifyOrderID:      a.ShopifyOrderID,
		Message:             a.Message,
		ClientTransactionID: a.ClientTransactionID,
	}
}

// @Summary      Start terminal checkout
// @Description  Records a PENDING attempt for orderRef and pushes the sale to the card reader. Repeating the call for the same orderRef returns the stored attempt.
// @Tags         Payments
// @Accept       json
// @Produce      json
// @Param        request body CheckoutRequest true "Checkout request"
// @Success      200  {object}  handlers.CheckoutResponse
// @Failure      400  {object}  handlers.ErrorResponse
// @Failure      502  {object}  handlers.CheckoutResponse
// @Router       /payments/checkout [post]
func ApiCheckout(svc CheckoutService, base *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CheckoutRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		res, err := svc.Start(c.Request.Context(), &payment.StartCheckoutRequest{
			TerminalID:  req.TerminalID,
			AmountMinor: *req.AmountMinor,
			Currency:    req.Currency,
			OrderRef:    req.OrderRef,
			Description: req.Description,
			Cart:        req.Cart,
			Customer:    req.Customer,
		})
		if errors.Is(err, payment.ErrGatewayFailure) && res != nil && res.Attempt != nil {
			msg := payment.ErrGatewayFailure.Error()
			if res.Attempt.Message != nil {
				msg = *res.Attempt.Message
			}
			_ = c.Error(err)
			c.JSON(http.StatusBadGateway, &CheckoutResponse{
				Status:              types.AttemptStatusError,
				ClientTransactionID: res.Attempt.ClientTransactionID,
				Message:             &msg,
			})
			return
		}
		if err != nil {
			abortWithError(c, base, err)
			return
		}

		a := res.Attempt
		c.JSON(http.StatusOK, &CheckoutResponse{Status: a.Status, ClientTransactionID: a.ClientTransactionID, Message: a.Message})
	}
}

// @Summary      Payment status
// @Description  Returns the stored attempt, refreshed from the processor when it is old enough. pollAfterMs tells the caller when to ask again; zero means the status is final.
// @Tags         Payments
// @Produce      json
// @Param        orderRef query string true "Order reference used at checkout"
// @Success      200  {object}  handlers.StatusResponse
// @Failure      404  {object}  handlers.UnknownStatusResponse
// @Router       /payments/status [get]
func ApiPaymentStatus(poller StatusPoller, base *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		orderRef := strings.TrimSpace(c.Query("orderRef"))
		if orderRef == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "orderRef is required"})
			return
		}

		res, err := poller.Poll(c.Request.Context(), orderRef)
		if errors.Is(err, attempt.ErrAttemptNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"status": "UNKNOWN"})
			return
		}
		if err != nil {
			abortWithError(c, base, err)
			return
		}

		out := toStatusResponse(res.Attempt)
		out.PollAfterMs = res.PollAfter.Milliseconds()
		c.JSON(http.StatusOK, out)
	}
}

// @Summary      Cancel terminal checkout
// @Description  Asks the reader to abandon the pending sale. The final status still arrives through polling or the webhook.
// @Tags         Payments
// @Accept       json
// @Produce      json
// @Param        request body CancelRequest true "Cancel request"
// @Success      200  {object}  handlers.CancelResponse
// @Failure      409  {object}  handlers.CancelResponse
// @Failure      502  {object}  handlers.CancelResponse
// @Router       /payments/cancel [post]
func ApiCancelCheckout(svc CheckoutService, base *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CancelRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, &CancelResponse{Error: err.Error()})
			return
		}

		ctx := logctx.WithOrderRef(c.Request.Context(), req.OrderRef)
		a, err := svc.Cancel(ctx, req.OrderRef)
		if err != nil {
			status := httpStatus(err)
			if status == http.StatusInternalServerError {
				logctx.FromCtx(ctx, base).Errorw("checkout_cancel_error", "error", err)
			}
			resp := &CancelResponse{Error: publicMessage(status, err)}
			if a != nil {
				resp.Status = a.Status
			}
			_ = c.Error(err)
			c.AbortWithStatusJSON(status, resp)
			return
		}
		c.JSON(http.StatusOK, &CancelResponse{OK: true, Status: a.Status})
	}
}

func RegisterPaymentRoutes(r gin.IRouter, checkout CheckoutService, poller StatusPoller, history AttemptScanner, base *zap.SugaredLogger) {
	r.POST("/checkout", ApiCheckout(checkout, base))
	r.GET("/status", ApiPaymentStatus(poller, base))
	r.POST("/cancel", ApiCancelCheckout(checkout, base))
	r.GET("/history", ApiReaderHistory(history, base))
}

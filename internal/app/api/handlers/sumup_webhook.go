package handlers

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/fatflowers/posbridge/internal/app/service/payment"
	"github.com/fatflowers/posbridge/internal/models"
	"github.com/fatflowers/posbridge/internal/platform/sumup"
	"github.com/fatflowers/posbridge/pkg/config"
	"github.com/fatflowers/posbridge/pkg/logctx"
	"github.com/fatflowers/posbridge/pkg/types"
)

const maxWebhookBody = 1 << 20

type WebhookReconciler interface {
	HandleWebhook(ctx context.Context, payload *sumup.WebhookPayload) (*payment.WebhookResult, error)
}

// WebhookAuditor persists the audit trail of inbound webhooks.
type WebhookAuditor interface {
	Save(ctx context.Context, event *models.WebhookEvent) <-chan struct{}
}

type WebhookResponse struct {
	OK             bool                `json:"ok"`
	Reason         string              `json:"reason,omitempty"`
	OrderRef       string              `json:"orderRef,omitempty"`
	Status         types.AttemptStatus `json:"status,omitempty"`
	ShopifyOrderID *string             `json:"shopifyOrderId,omitempty"`
}

type sumupWebhook struct {
	token  string
	secret string
	rec    WebhookReconciler
	audit  WebhookAuditor
	log    *zap.SugaredLogger
	now    func() time.Time
}

// @Summary      SumUp webhook
// @Description  Receives processor transaction events. The body is authenticated with an HMAC-SHA256 signature when a secret is configured.
// @Tags         Webhook
// @Accept       json
// @Produce      json
// @Param        X-SumUp-Signature header string false "HMAC-SHA256 of the raw body, hex or base64, optional sha256= prefix"
// @Param        payload body object true "Processor event"
// @Success      200  {object}  handlers.WebhookResponse
// @Success      202  {object}  handlers.WebhookResponse
// @Failure      401  {object}  handlers.WebhookResponse
// @Router       /webhooks/sumup [post]
func ApiSumUpWebhook(cfg config.SumUpConfig, rec WebhookReconciler, audit WebhookAuditor, base *zap.SugaredLogger) gin.HandlerFunc {
	h := &sumupWebhook{token: cfg.WebhookToken, secret: cfg.WebhookSecret, rec: rec, audit: audit, log: base, now: time.Now}
	return h.handle
}

func (h *sumupWebhook) handle(c *gin.Context) {
	log := logctx.FromGin(c, h.log)
	receivedAt := h.now()

	if h.token != "" && subtle.ConstantTimeCompare([]byte(c.Param("token")), []byte(h.token)) != 1 {
		log.Warnw("webhook_token_rejected")
		c.AbortWithStatusJSON(http.StatusUnauthorized, &WebhookResponse{Reason: "invalid-token"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, &WebhookResponse{Reason: "unreadable-body"})
		return
	}

	verified := false
	if h.secret == "" {
		log.Warnw("webhook_signature_unverified", "reason", "no webhook secret configured")
	} else {
		if err := sumup.VerifySignature(body, c.GetHeader(sumup.SignatureHeader), h.secret); err != nil {
			log.Warnw("webhook_signature_rejected", "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, &WebhookResponse{Reason: "invalid-signature"})
			return
		}
		verified = true
	}

	event := &models.WebhookEvent{
		ProviderID:        string(types.PaymentProviderSumUp),
		TraceID:           c.GetString(logctx.TraceIDKey),
		SignatureVerified: verified,
		ReceivedAt:        receivedAt,
	}
	if json.Valid(body) {
		event.Payload = datatypes.JSON(body)
	}

	payload, err := sumup.ParseWebhookPayload(body)
	if err != nil {
		log.Warnw("webhook_payload_invalid", "error", err)
		event.Status = models.WebhookEventStatusHandleFailed
		h.audit.Save(c.Request.Context(), event)
		c.AbortWithStatusJSON(http.StatusBadRequest, &WebhookResponse{Reason: "invalid-payload"})
		return
	}
	event.EventID = payload.ID
	event.EventType = payload.EventType
	log.Infow("webhook_sumup_received", "event_id", payload.ID, "event_type", payload.EventType, "signature_verified", verified)

	res, err := h.rec.HandleWebhook(c.Request.Context(), payload)
	if err != nil {
		log.Errorw("webhook_sumup_handle_error", "event_id", payload.ID, "error", err)
		event.Status = models.WebhookEventStatusHandleFailed
		h.audit.Save(c.Request.Context(), event)
		_ = c.Error(err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, &WebhookResponse{Reason: "internal-error"})
		return
	}

	if !res.Matched {
		out := &WebhookResponse{Reason: "attempt-not-found"}
		if ref := payload.Transaction.ForeignID; ref != "" {
			event.OrderRef = &ref
		}
		event.Status = models.WebhookEventStatusUnmatched
		event.Result = resultJSON(out)
		h.audit.Save(c.Request.Context(), event)
		c.JSON(http.StatusAccepted, out)
		return
	}

	a := res.Outcome.Attempt
	out := &WebhookResponse{OK: true, OrderRef: a.OrderRef, Status: a.Status, ShopifyOrderID: a.ShopifyOrderID}
	event.OrderRef = &a.OrderRef
	event.Status = models.WebhookEventStatusHandled
	event.Result = resultJSON(out)
	h.audit.Save(c.Request.Context(), event)
	log.Infow("webhook_sumup_handled", "order_ref", a.OrderRef, "status", a.Status, "finalized", res.Outcome.Finalized)
	c.JSON(http.StatusOK, out)
}

func resultJSON(v any) *datatypes.JSON {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	j := datatypes.JSON(raw)
	return &j
}

func RegisterWebhookRoutes(r gin.IRouter, cfg *config.Config, rec WebhookReconciler, audit WebhookAuditor, base *zap.SugaredLogger) {
	h := ApiSumUpWebhook(cfg.SumUp, rec, audit, base)
	r.POST("/sumup", h)
	r.POST("/sumup/:token", h)
}

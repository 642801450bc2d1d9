package handlers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/fatflowers/posbridge/internal/app/service/payment"
	"github.com/fatflowers/posbridge/internal/models"
	"github.com/fatflowers/posbridge/internal/platform/sumup"
	"github.com/fatflowers/posbridge/pkg/config"
	"github.com/fatflowers/posbridge/pkg/types"
)

const webhookSecret = "whsec_test"

type stubWebhookRec struct {
	calls int
	got   *sumup.WebhookPayload
	res   *payment.WebhookResult
	err   error
}

func (s *stubWebhookRec) HandleWebhook(_ context.Context, p *sumup.WebhookPayload) (*payment.WebhookResult, error) {
	s.calls++
	s.got = p
	return s.res, s.err
}

type recordingAuditor struct {
	mu     sync.Mutex
	events []*models.WebhookEvent
}

func (a *recordingAuditor) Save(_ context.Context, e *models.WebhookEvent) <-chan struct{} {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, e)
	done := make(chan struct{})
	close(done)
	return done
}

func webhookRouter(cfg config.SumUpConfig, rec WebhookReconciler, audit WebhookAuditor) *gin.Engine {
	return webhookRouterWithLog(cfg, rec, audit, nopLog)
}

func webhookRouterWithLog(cfg config.SumUpConfig, rec WebhookReconciler, audit WebhookAuditor, log *zap.SugaredLogger) *gin.Engine {
	r := gin.New()
	RegisterWebhookRoutes(r.Group("/webhooks"), &config.Config{SumUp: cfg}, rec, audit, log)
	return r
}

func postWebhook(r http.Handler, path string, body []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set(sumup.SignatureHeader, signature)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func hexSignature(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

var approvedWebhook = []byte(`{"id":"evt_1","event_type":"solo.transaction.updated","data":{"status":"SUCCESSFUL","foreign_transaction_id":"abc123","transaction_id":"txn1"}}`)

func TestSumUpWebhook_Matched(t *testing.T) {
	a := pendingAttempt("abc123")
	a.Status = types.AttemptStatusApproved
	a.ShopifyOrderID = strPtr("gid://shopify/Order/1")
	rec := &stubWebhookRec{res: &payment.WebhookResult{Matched: true, Outcome: &payment.Outcome{Attempt: a, Finalized: true}}}
	audit := &recordingAuditor{}
	r := webhookRouter(config.SumUpConfig{WebhookSecret: webhookSecret}, rec, audit)

	w := postWebhook(r, "/webhooks/sumup", approvedWebhook, hexSignature(approvedWebhook, webhookSecret))
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"ok":true,"orderRef":"abc123","status":"APPROVED","shopifyOrderId":"gid://shopify/Order/1"}`, w.Body.String())

	require.Equal(t, "abc123", rec.got.Transaction.ForeignID)
	require.Equal(t, "SUCCESSFUL", rec.got.Transaction.Status)

	require.Len(t, audit.events, 1)
	e := audit.events[0]
	require.Equal(t, models.WebhookEventStatusHandled, e.Status)
	require.True(t, e.SignatureVerified)
	require.Equal(t, "evt_1", e.EventID)
	require.Equal(t, "abc123", *e.OrderRef)
	require.JSONEq(t, string(approvedWebhook), string(e.Payload))
}

func TestSumUpWebhook_InvalidSignatureRejectedBeforePersistence(t *testing.T) {
	rec := &stubWebhookRec{}
	audit := &recordingAuditor{}
	r := webhookRouter(config.SumUpConfig{WebhookSecret: webhookSecret}, rec, audit)

	tampered := bytes.Replace(approvedWebhook, []byte("SUCCESSFUL"), []byte("DECLINED"), 1)
	for _, sig := range []string{"", "sha256=deadbeef", hexSignature(approvedWebhook, webhookSecret), hexSignature(tampered, "other")} {
		w := postWebhook(r, "/webhooks/sumup", tampered, sig)
		require.Equal(t, http.StatusUnauthorized, w.Code)
		require.JSONEq(t, `{"ok":false,"reason":"invalid-signature"}`, w.Body.String())
	}
	require.Zero(t, rec.calls)
	require.Empty(t, audit.events)
}

func TestSumUpWebhook_UnknownAttempt(t *testing.T) {
	rec := &stubWebhookRec{res: &payment.WebhookResult{}}
	audit := &recordingAuditor{}
	r := webhookRouter(config.SumUpConfig{WebhookSecret: webhookSecret}, rec, audit)

	body := []byte(`{"data":{"status":"SUCCESSFUL","foreign_transaction_id":"zzz999"}}`)
	w := postWebhook(r, "/webhooks/sumup", body, hexSignature(body, webhookSecret))
	require.Equal(t, http.StatusAccepted, w.Code)
	require.JSONEq(t, `{"ok":false,"reason":"attempt-not-found"}`, w.Body.String())

	require.Len(t, audit.events, 1)
	require.Equal(t, models.WebhookEventStatusUnmatched, audit.events[0].Status)
	require.Equal(t, "zzz999", *audit.events[0].OrderRef)
}

func TestSumUpWebhook_PathToken(t *testing.T) {
	rec := &stubWebhookRec{res: &payment.WebhookResult{}}
	r := webhookRouter(config.SumUpConfig{WebhookToken: "tok_123"}, rec, &recordingAuditor{})

	require.Equal(t, http.StatusUnauthorized, postWebhook(r, "/webhooks/sumup", approvedWebhook, "").Code)
	require.Equal(t, http.StatusUnauthorized, postWebhook(r, "/webhooks/sumup/wrong", approvedWebhook, "").Code)
	require.Zero(t, rec.calls)

	require.Equal(t, http.StatusAccepted, postWebhook(r, "/webhooks/sumup/tok_123", approvedWebhook, "").Code)
	require.Equal(t, 1, rec.calls)
}

func TestSumUpWebhook_NoSecretSkipsVerification(t *testing.T) {
	rec := &stubWebhookRec{res: &payment.WebhookResult{}}
	audit := &recordingAuditor{}
	core, logs := observer.New(zap.WarnLevel)
	r := webhookRouterWithLog(config.SumUpConfig{}, rec, audit, zap.New(core).Sugar())

	w := postWebhook(r, "/webhooks/sumup", approvedWebhook, "")
	require.Equal(t, http.StatusAccepted, w.Code)
	require.False(t, audit.events[0].SignatureVerified)

	w = postWebhook(r, "/webhooks/sumup", approvedWebhook, "")
	require.Equal(t, http.StatusAccepted, w.Code)
	require.Equal(t, 2, logs.FilterMessage("webhook_signature_unverified").Len())
}

func TestSumUpWebhook_VerifiedRequestDoesNotWarn(t *testing.T) {
	rec := &stubWebhookRec{res: &payment.WebhookResult{}}
	core, logs := observer.New(zap.WarnLevel)
	r := webhookRouterWithLog(config.SumUpConfig{WebhookSecret: webhookSecret}, rec, &recordingAuditor{}, zap.New(core).Sugar())

	w := postWebhook(r, "/webhooks/sumup", approvedWebhook, hexSignature(approvedWebhook, webhookSecret))
	require.Equal(t, http.StatusAccepted, w.Code)
	require.Zero(t, logs.FilterMessage("webhook_signature_unverified").Len())
}

func TestSumUpWebhook_BadPayloadAndHandlerFailure(t *testing.T) {
	audit := &recordingAuditor{}
	rec := &stubWebhookRec{err: errors.New("deadlock detected")}
	r := webhookRouter(config.SumUpConfig{}, rec, audit)

	w := postWebhook(r, "/webhooks/sumup", []byte(`not json`), "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Zero(t, rec.calls)

	w = postWebhook(r, "/webhooks/sumup", approvedWebhook, "")
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.JSONEq(t, `{"ok":false,"reason":"internal-error"}`, w.Body.String())

	require.Len(t, audit.events, 2)
	require.Nil(t, audit.events[0].Payload)
	for _, e := range audit.events {
		require.Equal(t, models.WebhookEventStatusHandleFailed, e.Status)
	}
}

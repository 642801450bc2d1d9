package handlers

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/fatflowers/posbridge/internal/app/service/attempt"
	"github.com/fatflowers/posbridge/internal/app/service/payment"
	"github.com/fatflowers/posbridge/internal/app/service/statistics"
	"github.com/fatflowers/posbridge/internal/models"
	"github.com/fatflowers/posbridge/internal/platform/sumup"
	"github.com/fatflowers/posbridge/pkg/response"
	"github.com/fatflowers/posbridge/pkg/types"
)

type stubAdminRec struct {
	attempt *models.PaymentAttempt
	err     error
	reason  string
	source  string
}

func (s *stubAdminRec) Reconcile(_ context.Context, _ string, _ *sumup.Transaction, source string) (*payment.Outcome, error) {
	s.source = source
	if s.err != nil {
		return nil, s.err
	}
	return &payment.Outcome{Attempt: s.attempt}, nil
}

func (s *stubAdminRec) RecoverOrder(context.Context, string) (*models.PaymentAttempt, error) {
	return s.attempt, s.err
}

func (s *stubAdminRec) Expire(_ context.Context, _ string, reason string) (*models.PaymentAttempt, error) {
	s.reason = reason
	return s.attempt, s.err
}

type stubStats struct{ got *statistics.StatisticRequest }

func (s *stubStats) GetStatistic(_ context.Context, req *statistics.StatisticRequest) (*statistics.StatisticResponse, error) {
	s.got = req
	return &statistics.StatisticResponse{DataItems: map[statistics.StatisticType][]statistics.StatisticResponseDataItem{
		statistics.StatisticTypeOpenOrderGaps: {{Value: 2}},
	}}, nil
}

type stubEvents struct{ events []*models.WebhookEvent }

func (s *stubEvents) ListByOrderRef(context.Context, string, int) ([]*models.WebhookEvent, error) {
	return s.events, nil
}

func adminRouter(scanner AttemptScanner, rec AdminReconciler, stats StatisticsService, events WebhookEventLister) *gin.Engine {
	r := gin.New()
	RegisterAdminRoutes(r.Group("/api/v1/admin"), scanner, rec, stats, events, nopLog)
	return r
}

func TestAdmin_ListPaymentAttempts(t *testing.T) {
	a := pendingAttempt("abc123")
	a.CartSnapshot = []byte(`[{"sku":"x"}]`)
	scanner := &stubScanner{res: &attempt.ScanResponse{Items: []*models.PaymentAttempt{a}, Total: 1}}
	r := adminRouter(scanner, nil, nil, nil)

	w := doJSON(r, http.MethodPost, "/api/v1/admin/list_payment_attempts", map[string]any{
		"filters": []map[string]any{{"field": "status", "operator": "eq", "values": []string{"PENDING"}}},
		"size":    20,
	})
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[response.APIResponse[ListAttemptsResponse]](t, w)
	require.Equal(t, response.APIResponseCodeOK, resp.Code)
	require.Equal(t, int64(1), resp.Data.Total)
	require.Equal(t, "abc123", resp.Data.Items[0].OrderRef)
	require.NotContains(t, w.Body.String(), "cart_snapshot")
	require.Equal(t, types.CommonFilterOperatorEq, scanner.got.Filters[0].Operator)
}

func TestAdmin_ListPaymentAttempts_InvalidQuery(t *testing.T) {
	scanner := &stubScanner{err: fmt.Errorf("%w: unsupported sort field %q", attempt.ErrInvalidScan, "cart_snapshot")}
	w := doJSON(adminRouter(scanner, nil, nil, nil), http.MethodPost, "/api/v1/admin/list_payment_attempts", map[string]any{"sort_by": "cart_snapshot"})
	resp := decode[response.APIResponse[string]](t, w)
	require.Equal(t, response.APIResponseCodeBadRequest, resp.Code)
	require.Contains(t, resp.Data, "cart_snapshot")
}

func TestAdmin_Statistic(t *testing.T) {
	stats := &stubStats{}
	r := adminRouter(nil, nil, stats, nil)

	w := doJSON(r, http.MethodPost, "/api/v1/admin/get_payment_statistic", map[string]any{
		"data_items": []map[string]string{{"id": "open_order_gaps"}},
	})
	require.Contains(t, w.Body.String(), `"open_order_gaps":[{"value":2}]`)
	require.Equal(t, statistics.StatisticTypeOpenOrderGaps, stats.got.DataItems[0].ID)

	w = doJSON(r, http.MethodPost, "/api/v1/admin/get_payment_statistic", map[string]any{})
	resp := decode[response.APIResponse[string]](t, w)
	require.Equal(t, response.APIResponseCodeBadRequest, resp.Code)
}

func TestAdmin_ExpireAttempt(t *testing.T) {
	a := pendingAttempt("abc123")
	a.Status = types.AttemptStatusTimeout
	rec := &stubAdminRec{attempt: a}
	r := adminRouter(nil, rec, nil, nil)

	w := doJSON(r, http.MethodPost, "/api/v1/admin/expire_attempt", map[string]string{"order_ref": "abc123"})
	require.Equal(t, response.APIResponseCodeBadRequest, decode[response.APIResponse[string]](t, w).Code)

	w = doJSON(r, http.MethodPost, "/api/v1/admin/expire_attempt", map[string]string{"order_ref": "abc123", "operator_id": "ops-1", "reason": "reader offline"})
	resp := decode[response.APIResponse[AttemptItem]](t, w)
	require.Equal(t, response.APIResponseCodeOK, resp.Code)
	require.Equal(t, types.AttemptStatusTimeout, resp.Data.Status)
	require.Equal(t, "reader offline", rec.reason)

	rec.err = payment.ErrAttemptFinal
	w = doJSON(r, http.MethodPost, "/api/v1/admin/expire_attempt", map[string]string{"order_ref": "abc123", "operator_id": "ops-1"})
	errResp := decode[response.APIResponse[string]](t, w)
	require.Equal(t, response.APIResponseCodeConflict, errResp.Code)
	require.Equal(t, payment.ErrAttemptFinal.Error(), errResp.Data)
}

func TestAdmin_RecoverOrderAndReconcile(t *testing.T) {
	a := pendingAttempt("abc123")
	a.Status = types.AttemptStatusApproved
	a.ShopifyOrderID = strPtr("gid://shopify/Order/9")
	rec := &stubAdminRec{attempt: a}
	r := adminRouter(nil, rec, nil, nil)

	w := doJSON(r, http.MethodPost, "/api/v1/admin/recover_order", map[string]string{"order_ref": "abc123"})
	resp := decode[response.APIResponse[AttemptItem]](t, w)
	require.Equal(t, "gid://shopify/Order/9", *resp.Data.ShopifyOrderID)

	w = doJSON(r, http.MethodPost, "/api/v1/admin/reconcile", map[string]string{"order_ref": "abc123"})
	require.Equal(t, response.APIResponseCodeOK, decode[response.APIResponse[AttemptItem]](t, w).Code)
	require.Equal(t, types.SourceAdmin, rec.source)

	rec.err = fmt.Errorf("%w: %w", payment.ErrOrderNotCreated, fmt.Errorf("shopify: userErrors"))
	w = doJSON(r, http.MethodPost, "/api/v1/admin/recover_order", map[string]string{"order_ref": "abc123"})
	require.Equal(t, response.APIResponseCodeGateway, decode[response.APIResponse[string]](t, w).Code)

	rec.err = attempt.ErrAttemptNotFound
	w = doJSON(r, http.MethodPost, "/api/v1/admin/reconcile", map[string]string{"order_ref": "nope"})
	require.Equal(t, response.APIResponseCodeNotFound, decode[response.APIResponse[string]](t, w).Code)
}

func TestAdmin_ListWebhookEvents(t *testing.T) {
	ref := "abc123"
	events := &stubEvents{events: []*models.WebhookEvent{{ID: "e1", OrderRef: &ref, Status: models.WebhookEventStatusHandled}}}
	w := doJSON(adminRouter(nil, nil, nil, events), http.MethodPost, "/api/v1/admin/list_webhook_events", map[string]any{"order_ref": ref})
	resp := decode[response.APIResponse[[]models.WebhookEvent]](t, w)
	require.Len(t, resp.Data, 1)
	require.Equal(t, models.WebhookEventStatusHandled, resp.Data[0].Status)
}

func TestRegisterRoutes_RegistersEndpoints(t *testing.T) {
	r := gin.New()
	RegisterHealthRoutes(r, nil)
	RegisterPaymentRoutes(r.Group("/payments"), nil, nil, nil, nopLog)
	RegisterWebhookRoutes(r.Group("/webhooks"), testConfig(), nil, nil, nopLog)
	RegisterAdminRoutes(r.Group("/api/v1/admin"), nil, nil, nil, nil, nopLog)

	routes := map[string]bool{}
	for _, rt := range r.Routes() {
		routes[rt.Method+" "+rt.Path] = true
	}
	for _, want := range []string{
		"GET /healthz",
		"GET /readyz",
		"POST /payments/checkout",
		"GET /payments/status",
		"POST /payments/cancel",
		"GET /payments/history",
		"POST /webhooks/sumup",
		"POST /webhooks/sumup/:token",
		"POST /api/v1/admin/list_payment_attempts",
		"POST /api/v1/admin/get_payment_statistic",
		"POST /api/v1/admin/recover_order",
		"POST /api/v1/admin/expire_attempt",
		"POST /api/v1/admin/reconcile",
		"POST /api/v1/admin/list_webhook_events",
	} {
		require.True(t, routes[want], want)
	}
}

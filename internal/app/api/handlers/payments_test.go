package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/fatflowers/posbridge/internal/app/service/attempt"
	"github.com/fatflowers/posbridge/internal/app/service/payment"
	"github.com/fatflowers/posbridge/internal/models"
	"github.com/fatflowers/posbridge/internal/platform/sumup"
	"github.com/fatflowers/posbridge/pkg/types"
)

func paymentsRouter(co CheckoutService, poller StatusPoller, scanner AttemptScanner) *gin.Engine {
	r := gin.New()
	RegisterPaymentRoutes(r.Group("/payments"), co, poller, scanner, nopLog)
	return r
}

func checkoutBody() map[string]any {
	return map[string]any{
		"terminalId":  "rdr_1",
		"amountMinor": 49900,
		"currency":    "nok",
		"orderRef":    "abc123",
		"cart":        []map[string]any{{"variantId": "gid://shopify/ProductVariant/1", "quantity": 1}},
		"customer":    map[string]any{"email": "kari@example.no"},
	}
}

func TestApiCheckout_Started(t *testing.T) {
	a := pendingAttempt("abc123")
	a.ClientTransactionID = strPtr("ctx-1")
	co := &stubCheckout{res: &payment.StartCheckoutResult{Attempt: a}}

	w := doJSON(paymentsRouter(co, nil, nil), http.MethodPost, "/payments/checkout", checkoutBody())
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"status":"PENDING","client_transaction_id":"ctx-1"}`, w.Body.String())

	require.Equal(t, "rdr_1", co.got.TerminalID)
	require.Equal(t, int64(49900), co.got.AmountMinor)
	require.Equal(t, "nok", co.got.Currency)
	require.JSONEq(t, `{"email":"kari@example.no"}`, string(co.got.Customer))
}

func TestApiCheckout_RejectsBadInput(t *testing.T) {
	co := &stubCheckout{}
	r := paymentsRouter(co, nil, nil)

	cases := map[string]func(b map[string]any){
		"missing amount":    func(b map[string]any) { delete(b, "amountMinor") },
		"negative amount":   func(b map[string]any) { b["amountMinor"] = -1 },
		"fractional amount": func(b map[string]any) { b["amountMinor"] = 499.5 },
		"bad currency":      func(b map[string]any) { b["currency"] = "KRONER" },
		"missing orderRef":  func(b map[string]any) { delete(b, "orderRef") },
		"missing terminal":  func(b map[string]any) { b["terminalId"] = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			body := checkoutBody()
			mutate(body)
			w := doJSON(r, http.MethodPost, "/payments/checkout", body)
			require.Equal(t, http.StatusBadRequest, w.Code)
			require.Contains(t, w.Body.String(), `"error"`)
		})
	}
	require.Nil(t, co.got)
}

func TestApiCheckout_ZeroAmountAndNoCurrencyAccepted(t *testing.T) {
	co := &stubCheckout{res: &payment.StartCheckoutResult{Attempt: pendingAttempt("abc123")}}
	body := checkoutBody()
	body["amountMinor"] = 0
	delete(body, "currency")

	w := doJSON(paymentsRouter(co, nil, nil), http.MethodPost, "/payments/checkout", body)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, int64(0), co.got.AmountMinor)
	require.Empty(t, co.got.Currency)
}

func TestApiCheckout_GatewayFailure(t *testing.T) {
	a := pendingAttempt("abc123")
	a.Status = types.AttemptStatusError
	a.Message = strPtr("sumup gateway timeout")
	co := &stubCheckout{
		res: &payment.StartCheckoutResult{Attempt: a},
		err: fmt.Errorf("%w: %w", payment.ErrGatewayFailure, sumup.ErrGatewayTimeout),
	}

	w := doJSON(paymentsRouter(co, nil, nil), http.MethodPost, "/payments/checkout", checkoutBody())
	require.Equal(t, http.StatusBadGateway, w.Code)
	require.JSONEq(t, `{"status":"ERROR","client_transaction_id":null,"message":"sumup gateway timeout"}`, w.Body.String())
}

func TestApiCheckout_ServiceValidationAndInternalErrors(t *testing.T) {
	co := &stubCheckout{err: fmt.Errorf("%w: unsupported currency", payment.ErrInvalidCheckout)}
	w := doJSON(paymentsRouter(co, nil, nil), http.MethodPost, "/payments/checkout", checkoutBody())
	require.Equal(t, http.StatusBadRequest, w.Code)

	co = &stubCheckout{err: errors.New("pq: connection refused")}
	w = doJSON(paymentsRouter(co, nil, nil), http.MethodPost, "/payments/checkout", checkoutBody())
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.JSONEq(t, `{"error":"internal error"}`, w.Body.String())
}

func TestApiPaymentStatus(t *testing.T) {
	a := pendingAttempt("abc123")
	poller := &stubPoller{res: &payment.PollResult{Attempt: a, PollAfter: 4500 * time.Millisecond}}

	w := doJSON(paymentsRouter(nil, poller, nil), http.MethodGet, "/payments/status?orderRef=abc123", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[StatusResponse](t, w)
	require.Equal(t, types.AttemptStatusPending, resp.Status)
	require.Equal(t, int64(4500), resp.PollAfterMs)
	require.Nil(t, resp.TransactionID)
}

func TestApiPaymentStatus_Approved(t *testing.T) {
	a := pendingAttempt("abc123")
	a.Status = types.AttemptStatusApproved
	a.TransactionID = strPtr("txn1")
	a.ShopifyOrderID = strPtr("gid://shopify/Order/1")
	poller := &stubPoller{res: &payment.PollResult{Attempt: a}}

	w := doJSON(paymentsRouter(nil, poller, nil), http.MethodGet, "/payments/status?orderRef=abc123", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{
		"status":"APPROVED","transactionId":"txn1","approvalCode":null,"scheme":null,"last4":null,
		"shopifyOrderId":"gid://shopify/Order/1","message":null,"clientTransactionId":null,"pollAfterMs":0
	}`, w.Body.String())
}

func TestApiPaymentStatus_Unknown(t *testing.T) {
	poller := &stubPoller{err: attempt.ErrAttemptNotFound}
	w := doJSON(paymentsRouter(nil, poller, nil), http.MethodGet, "/payments/status?orderRef=zzz999", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.JSONEq(t, `{"status":"UNKNOWN"}`, w.Body.String())

	w = doJSON(paymentsRouter(nil, poller, nil), http.MethodGet, "/payments/status", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestApiCancelCheckout(t *testing.T) {
	co := &stubCheckout{cancelRes: pendingAttempt("abc123")}
	w := doJSON(paymentsRouter(co, nil, nil), http.MethodPost, "/payments/cancel", map[string]string{"orderRef": "abc123"})
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"ok":true,"status":"PENDING"}`, w.Body.String())
	require.Equal(t, "abc123", co.cancelled)

	final := pendingAttempt("abc123")
	final.Status = types.AttemptStatusApproved
	co = &stubCheckout{cancelRes: final, cancelErr: payment.ErrAttemptFinal}
	w = doJSON(paymentsRouter(co, nil, nil), http.MethodPost, "/payments/cancel", map[string]string{"orderRef": "abc123"})
	require.Equal(t, http.StatusConflict, w.Code)
	require.JSONEq(t, `{"ok":false,"status":"APPROVED","error":"payment attempt is already final"}`, w.Body.String())

	co = &stubCheckout{cancelRes: pendingAttempt("abc123"), cancelErr: fmt.Errorf("%w: %w", payment.ErrGatewayFailure, sumup.ErrGatewayError)}
	w = doJSON(paymentsRouter(co, nil, nil), http.MethodPost, "/payments/cancel", map[string]string{"orderRef": "abc123"})
	require.Equal(t, http.StatusBadGateway, w.Code)
	require.JSONEq(t, `{"ok":false,"status":"PENDING","error":"payment gateway failure"}`, w.Body.String())
}

func TestApiReaderHistory(t *testing.T) {
	a := pendingAttempt("abc123")
	a.CreatedAt = time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	scanner := &stubScanner{res: &attempt.ScanResponse{Items: []*models.PaymentAttempt{a}, Total: 7}}

	w := doJSON(paymentsRouter(nil, nil, scanner), http.MethodGet, "/payments/history?readerId=rdr_1&size=500", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[HistoryResponse](t, w)
	require.Equal(t, int64(7), resp.Total)
	require.Len(t, resp.Items, 1)
	require.Equal(t, "abc123", resp.Items[0].OrderRef)
	require.Equal(t, types.AttemptStatusPending, resp.Items[0].Status)
	require.Equal(t, "2026-10-01T12:00:00Z", resp.Items[0].CreatedAt)

	require.Equal(t, maxHistorySize, scanner.got.Size)
	require.Equal(t, "reader_id", scanner.got.Filters[0].Field)
	require.Equal(t, []any{"rdr_1"}, scanner.got.Filters[0].Values)

	w = doJSON(paymentsRouter(nil, nil, scanner), http.MethodGet, "/payments/history", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

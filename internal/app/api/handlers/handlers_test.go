package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fatflowers/posbridge/internal/app/service/attempt"
	"github.com/fatflowers/posbridge/internal/app/service/payment"
	"github.com/fatflowers/posbridge/internal/models"
	"github.com/fatflowers/posbridge/pkg/types"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	if err := RegisterValidators(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

var nopLog = zap.NewNop().Sugar()

func strPtr(s string) *string { return &s }

func doJSON(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

type stubCheckout struct {
	got       *payment.StartCheckoutRequest
	res       *payment.StartCheckoutResult
	err       error
	cancelRes *models.PaymentAttempt
	cancelErr error
	cancelled string
}

func (s *stubCheckout) Start(_ context.Context, req *payment.StartCheckoutRequest) (*payment.StartCheckoutResult, error) {
	s.got = req
	return s.res, s.err
}

func (s *stubCheckout) Cancel(_ context.Context, orderRef string) (*models.PaymentAttempt, error) {
	s.cancelled = orderRef
	return s.cancelRes, s.cancelErr
}

type stubPoller struct {
	res *payment.PollResult
	err error
}

func (s *stubPoller) Poll(context.Context, string) (*payment.PollResult, error) { return s.res, s.err }

type stubScanner struct {
	got *attempt.ScanRequest
	res *attempt.ScanResponse
	err error
}

func (s *stubScanner) Scan(_ context.Context, req *attempt.ScanRequest) (*attempt.ScanResponse, error) {
	s.got = req
	return s.res, s.err
}

func pendingAttempt(ref string) *models.PaymentAttempt {
	return &models.PaymentAttempt{
		ID:          "id-" + ref,
		OrderRef:    ref,
		ReaderID:    "rdr_1",
		AmountMinor: 49900,
		Currency:    "NOK",
		Status:      types.AttemptStatusPending,
	}
}

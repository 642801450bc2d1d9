package sumup

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/fatflowers/posbridge/pkg/config"
)

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	cfg := &config.Config{SumUp: config.SumUpConfig{
		BaseURL:         srv.URL,
		APIKey:          "sup_sk_test",
		MerchantCode:    "MC1",
		AffiliateKey:    "aff",
		AppID:           "no.miljit.posapp",
		RequestTimeout:  time.Second,
		CheckoutTimeout: time.Second,
		ScanLimit:       50,
	}}
	return NewClient(cfg, zap.NewNop().Sugar(), nil)
}

func TestStartReaderCheckout(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v0.1/merchants/MC1/readers/rdr-1/checkout", r.URL.Path)
		require.Equal(t, "Bearer sup_sk_test", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		_, _ = w.Write([]byte(`{"data":{"client_transaction_id":"ctx-1"}}`))
	}))

	res, err := c.StartReaderCheckout(context.Background(), CheckoutStart{ReaderID: "rdr-1", AmountMinor: 49900, Currency: "NOK", ForeignID: "abc123"})
	require.NoError(t, err)
	require.Equal(t, "ctx-1", res.ClientTransactionID)

	total := got["total_amount"].(map[string]any)
	require.EqualValues(t, 49900, total["value"])
	require.EqualValues(t, 2, total["minor_unit"])
	aff := got["affiliate"].(map[string]any)
	require.Equal(t, "abc123", aff["foreign_transaction_id"])
	require.Equal(t, "aff", aff["key"])
}

func TestStartReaderCheckout_GatewayError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"reader offline"}`))
	}))

	_, err := c.StartReaderCheckout(context.Background(), CheckoutStart{ReaderID: "rdr-1", AmountMinor: 100, Currency: "NOK", ForeignID: "x"})
	require.ErrorIs(t, err, ErrGatewayError)
	var gwErr *GatewayError
	require.ErrorAs(t, err, &gwErr)
	require.Equal(t, http.StatusUnprocessableEntity, gwErr.StatusCode)
	require.Contains(t, gwErr.Body, "reader offline")
}

func TestStartReaderCheckout_Timeout(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	c.cfg.CheckoutTimeout = 50 * time.Millisecond

	_, err := c.StartReaderCheckout(context.Background(), CheckoutStart{ReaderID: "rdr-1", AmountMinor: 100, Currency: "NOK", ForeignID: "x"})
	require.ErrorIs(t, err, ErrGatewayTimeout)
}

func TestNotConfigured(t *testing.T) {
	c := NewClient(&config.Config{}, zap.NewNop().Sugar(), nil)
	_, err := c.FindByForeignID(context.Background(), "abc")
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestFindByClientTransactionID_ExactMatch(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v0.1/merchants/MC1/transactions", r.URL.Path)
		require.Equal(t, "ctx-2", r.URL.Query().Get("client_transaction_id"))
		_, _ = w.Write([]byte(`{"items":[{"client_transaction_id":"ctx-1","status":"PAID"},{"client_transaction_id":"ctx-2","status":"DECLINED"}]}`))
	}))

	tx, err := c.FindByClientTransactionID(context.Background(), "ctx-2")
	require.NoError(t, err)
	require.Equal(t, "DECLINED", tx.Status)

	tx, err = c.FindByClientTransactionID(context.Background(), "ctx-3")
	require.NoError(t, err)
	require.Nil(t, tx)
}

func TestFindByForeignID_NotFoundIsNil(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	tx, err := c.FindByForeignID(context.Background(), "abc123")
	require.NoError(t, err)
	require.Nil(t, tx)
}

func TestResolve_FallsBackToScan(t *testing.T) {
	var calls []string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch {
		case q.Get("client_transaction_id") != "":
			calls = append(calls, "client")
			_, _ = w.Write([]byte(`{"items":[]}`))
		case q.Get("foreign_transaction_id") != "":
			calls = append(calls, "foreign")
			w.WriteHeader(http.StatusBadRequest)
		case r.URL.Path == "/v0.1/merchants/MC1/transactions/history":
			calls = append(calls, "scan")
			require.Equal(t, "50", q.Get("limit"))
			_, _ = w.Write([]byte(`{"items":[{"foreign_transaction_id":"other","status":"PAID"},{"foreign_transaction_id":"abc123","transaction_id":"T1","status":"SUCCESSFUL"}]}`))
		default:
			t.Errorf("unexpected request %s", r.URL)
		}
	}))

	tx, err := c.Resolve(context.Background(), LookupKeys{ClientTransactionID: "ctx-1", OrderRef: "abc123"})
	require.NoError(t, err)
	require.Equal(t, "T1", tx.TransactionID)
	require.Equal(t, []string{"client", "foreign", "scan"}, calls)
}

func TestResolve_UnreadableAmountInScanDoesNotFailLookup(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v0.1/merchants/MC1/transactions/history" {
			_, _ = w.Write([]byte(`{"items":[]}`))
			return
		}
		_, _ = w.Write([]byte(`{"items":[
			{"foreign_transaction_id":"other","transaction_id":"T0","status":"PAID","amount":{"value":"lots","currency":"NOK"}},
			{"foreign_transaction_id":"abc123","transaction_id":"T1","status":"SUCCESSFUL","amount":4.99e2,"currency":"NOK"}
		]}`))
	}))
	c.log = zap.New(core).Sugar()

	tx, err := c.Resolve(context.Background(), LookupKeys{OrderRef: "abc123"})
	require.NoError(t, err)
	require.Equal(t, "T1", tx.TransactionID)
	require.NotNil(t, tx.AmountMinor)
	require.Equal(t, int64(49900), *tx.AmountMinor)
	require.Equal(t, 1, logs.FilterMessage("sumup_transaction_amount_unreadable").Len())
}

func TestResolve_ScanFailureIsReturned(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := c.Resolve(context.Background(), LookupKeys{OrderRef: "abc123"})
	require.ErrorIs(t, err, ErrGatewayError)
}

func TestEnsureWebhookRegistered(t *testing.T) {
	var deleted []string
	var registered WebhookSubscription
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			_, _ = w.Write([]byte(`{"items":[{"id":"w1","url":"https://bridge/webhooks/sumup"},{"id":"w2","url":"https://elsewhere"}]}`))
		case http.MethodDelete:
			deleted = append(deleted, r.URL.Path)
			w.WriteHeader(http.StatusNoContent)
		case http.MethodPost:
			body, _ := io.ReadAll(r.Body)
			require.NoError(t, json.Unmarshal(body, &registered))
			registered.ID = "w3"
			_ = json.NewEncoder(w).Encode(registered)
		}
	}))

	sub, err := c.EnsureWebhookRegistered(context.Background(), "https://bridge/webhooks/sumup", []string{"solo.transaction.updated"})
	require.NoError(t, err)
	require.Equal(t, "w3", sub.ID)
	require.Equal(t, []string{"/v0.1/merchants/MC1/webhooks/w1"}, deleted)
	require.True(t, registered.Active)
	require.Equal(t, []string{"solo.transaction.updated"}, registered.Events)
}

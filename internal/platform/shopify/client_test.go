package shopify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fatflowers/posbridge/pkg/config"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(&config.Config{Shopify: config.ShopifyConfig{
		Shop:       srv.URL,
		AdminToken: "shpat_test",
		APIVersion: "2024-10",
		Timeout:    time.Second,
	}})
}

func TestCreateOrder(t *testing.T) {
	var sent struct {
		Query     string `json:"query"`
		Variables struct {
			Order orderCreateInput `json:"order"`
		} `json:"variables"`
	}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/admin/api/2024-10/graphql.json", r.URL.Path)
		require.Equal(t, "shpat_test", r.Header.Get("X-Shopify-Access-Token"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &sent))
		_, _ = w.Write([]byte(`{"data":{"orderCreate":{"order":{"id":"gid://shopify/Order/1","name":"#1001"},"userErrors":[]}}}`))
	})

	lines, cust, err := DecodeSnapshots(
		[]byte(`[{"title":"Tulips","qty":2,"unitPrice":"199.50"},{"title":"Card","qty":1,"unitPriceMinor":10000}]`),
		[]byte(`{"email":"a@b.no","first_name":"Kari"}`),
	)
	require.NoError(t, err)

	id, err := c.CreateOrder(context.Background(), &OrderRequest{
		OrderRef:      "abc123",
		Cart:          lines,
		Customer:      cust,
		AmountMinor:   49900,
		Currency:      "NOK",
		TransactionID: "T1",
		ApprovalCode:  "A1",
		Scheme:        "VISA",
		Last4:         "4242",
	})
	require.NoError(t, err)
	require.Equal(t, "gid://shopify/Order/1", id)

	order := sent.Variables.Order
	require.Contains(t, sent.Query, "orderCreate")
	require.Equal(t, "Kari", order.Customer.ToUpsert.FirstName)
	require.Len(t, order.LineItems, 2)
	require.Equal(t, "199.50", order.LineItems[0].PriceSet.ShopMoney.Amount)
	require.Equal(t, "100.00", order.LineItems[1].PriceSet.ShopMoney.Amount)
	require.Equal(t, "499.00", order.Transactions[0].AmountSet.ShopMoney.Amount)
	require.Equal(t, "SALE", order.Transactions[0].Kind)
	require.Equal(t, "A1", order.Transactions[0].AuthorizationCode)
	require.Contains(t, order.CustomAttributes, attributeInput{Key: "sumup_transaction_id", Value: "T1"})
}

func TestCreateOrder_UserErrors(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"orderCreate":{"order":null,"userErrors":[{"field":["lineItems"],"message":"bad line"}]}}}`))
	})

	_, err := c.CreateOrder(context.Background(), &OrderRequest{OrderRef: "x", AmountMinor: 100, Currency: "NOK"})
	require.ErrorIs(t, err, ErrOrderCreationFailed)
	require.Contains(t, err.Error(), "bad line")
}

func TestCreateOrder_TopLevelErrors(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"errors":[{"message":"Throttled"}]}`))
	})

	_, err := c.CreateOrder(context.Background(), &OrderRequest{OrderRef: "x", AmountMinor: 100, Currency: "NOK"})
	require.ErrorIs(t, err, ErrOrderCreationFailed)
}

func TestCreateOrder_NotConfigured(t *testing.T) {
	c := NewClient(&config.Config{})
	_, err := c.CreateOrder(context.Background(), &OrderRequest{})
	require.ErrorIs(t, err, ErrOrderCreationFailed)
}

func TestOrderInput_FallbackLine(t *testing.T) {
	r := &OrderRequest{OrderRef: "abc123", AmountMinor: 49900, Currency: "NOK"}
	in, err := r.input()
	require.NoError(t, err)
	require.Len(t, in.LineItems, 1)
	require.Equal(t, "499.00", in.LineItems[0].PriceSet.ShopMoney.Amount)
	require.Nil(t, in.Customer)
}

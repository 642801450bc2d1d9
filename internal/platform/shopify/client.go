package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/fatflowers/posbridge/pkg/config"
	"github.com/fatflowers/posbridge/pkg/tool"
	"go.uber.org/fx"
)

// ErrOrderCreationFailed wraps every failure of CreateOrder.
var ErrOrderCreationFailed = errors.New("shopify order creation failed")

const orderCreateMutation = `mutation OrderCreate($order: OrderCreateOrderInput!) {
  orderCreate(order: $order) {
    order { id name }
    userErrors { field message }
  }
}`

type Client struct {
	cfg        config.ShopifyConfig
	httpClient *http.Client
}

func NewClient(cfg *config.Config) *Client {
	return &Client{cfg: cfg.Shopify, httpClient: &http.Client{}}
}

// endpoint accepts a bare shop domain or a full base URL.
func (c *Client) endpoint() string {
	base := c.cfg.Shop
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "https://" + base
	}
	return fmt.Sprintf("%s/admin/api/%s/graphql.json", strings.TrimRight(base, "/"), c.cfg.APIVersion)
}

type graphQLResponse struct {
	Data struct {
		OrderCreate *struct {
			Order *struct {
				ID   string `json:"id"`
				Name string `json:"name"`
			} `json:"order"`
			UserErrors []struct {
				Field   []string `json:"field"`
				Message string   `json:"message"`
			} `json:"userErrors"`
		} `json:"orderCreate"`
	} `json:"data"`
	Errors json.RawMessage `json:"errors"`
}

// CreateOrder records the sale and returns the order's GraphQL id.
func (c *Client) CreateOrder(ctx context.Context, req *OrderRequest) (string, error) {
	if c.cfg.Shop == "" || c.cfg.AdminToken == "" {
		return "", fmt.Errorf("%w: shopify is not configured", ErrOrderCreationFailed)
	}
	input, err := req.input()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrOrderCreationFailed, err)
	}
	payload, err := json.Marshal(map[string]any{
		"query":     orderCreateMutation,
		"variables": map[string]any{"order": input},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrOrderCreationFailed, err)
	}

	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrOrderCreationFailed, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Shopify-Access-Token", c.cfg.AdminToken)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrOrderCreationFailed, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrOrderCreationFailed, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: status %d: %s", ErrOrderCreationFailed, resp.StatusCode, tool.Truncate(string(body), 500))
	}

	var out graphQLResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrOrderCreationFailed, err)
	}
	if len(out.Errors) > 0 && string(out.Errors) != "null" {
		return "", fmt.Errorf("%w: %s", ErrOrderCreationFailed, tool.Truncate(string(out.Errors), 500))
	}
	oc := out.Data.OrderCreate
	if oc == nil {
		return "", fmt.Errorf("%w: empty orderCreate payload", ErrOrderCreationFailed)
	}
	if len(oc.UserErrors) > 0 {
		return "", fmt.Errorf("%w: %s", ErrOrderCreationFailed, oc.UserErrors[0].Message)
	}
	if oc.Order == nil || oc.Order.ID == "" {
		return "", fmt.Errorf("%w: no order returned", ErrOrderCreationFailed)
	}
	return oc.Order.ID, nil
}

var Module = fx.Options(
	fx.Provide(NewClient),
)

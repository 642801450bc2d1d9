package sumup

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/fatflowers/posbridge/pkg/logctx"
)

// WebhookSubscription is a processor-side webhook registration.
type WebhookSubscription struct {
	ID     string   `json:"id"`
	URL    string   `json:"url"`
	Events []string `json:"events"`
	Active bool     `json:"active"`
}

func (c *Client) ListWebhooks(ctx context.Context) ([]WebhookSubscription, error) {
	raw, err := c.do(ctx, "list_webhooks", c.cfg.RequestTimeout, http.MethodGet, c.merchantPath("/webhooks"), nil, nil)
	if err != nil {
		return nil, err
	}
	var resp struct {
		Items []WebhookSubscription `json:"items"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode webhook list: %w", err)
	}
	return resp.Items, nil
}

func (c *Client) RegisterWebhook(ctx context.Context, target string, events []string) (*WebhookSubscription, error) {
	body := WebhookSubscription{URL: target, Events: events, Active: true}
	raw, err := c.do(ctx, "register_webhook", c.cfg.RequestTimeout, http.MethodPost, c.merchantPath("/webhooks"), nil, body)
	if err != nil {
		return nil, err
	}
	var sub WebhookSubscription
	if err := json.Unmarshal(raw, &sub); err != nil {
		return nil, fmt.Errorf("decode webhook: %w", err)
	}
	return &sub, nil
}

func (c *Client) DeleteWebhook(ctx context.Context, id string) error {
	path := c.merchantPath("/webhooks/%s", url.PathEscape(id))
	_, err := c.do(ctx, "delete_webhook", c.cfg.RequestTimeout, http.MethodDelete, path, nil, nil)
	return err
}

// EnsureWebhookRegistered replaces any subscription pointing at target with a
// fresh one for events. Failing to delete a stale subscription is not fatal.
func (c *Client) EnsureWebhookRegistered(ctx context.Context, target string, events []string) (*WebhookSubscription, error) {
	log := logctx.FromCtx(ctx, c.log)

	existing, err := c.ListWebhooks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list webhooks: %w", err)
	}
	for _, sub := range existing {
		if sub.URL != target {
			continue
		}
		if err := c.DeleteWebhook(ctx, sub.ID); err != nil {
			log.Warnw("sumup_webhook_delete_failed", "webhook_id", sub.ID, "error", err)
		}
	}

	sub, err := c.RegisterWebhook(ctx, target, events)
	if err != nil {
		return nil, fmt.Errorf("register webhook: %w", err)
	}
	log.Infow("sumup_webhook_registered", "webhook_id", sub.ID, "url", sub.URL, "events", sub.Events)
	return sub, nil
}

package sumup

import (
	"context"

	"github.com/fatflowers/posbridge/pkg/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// registerWebhook keeps the processor subscription in sync on start. The
// service still works through polling when registration fails.
func registerWebhook(lc fx.Lifecycle, cfg *config.Config, c *Client, log *zap.SugaredLogger) {
	if cfg.SumUp.WebhookSecret == "" {
		log.Warnw("sumup_webhook_signature_disabled", "reason", "sumup.webhook_secret is empty")
	}
	if cfg.SumUp.WebhookURL == "" {
		log.Warnw("sumup_webhook_registration_skipped", "reason", "sumup.webhook_url is empty")
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), 3*cfg.SumUp.RequestTimeout)
				defer cancel()
				if _, err := c.EnsureWebhookRegistered(ctx, cfg.SumUp.WebhookURL, cfg.SumUp.WebhookEvents); err != nil {
					log.Errorw("sumup_webhook_registration_failed", "url", cfg.SumUp.WebhookURL, "error", err)
				}
			}()
			return nil
		},
	})
}

var Module = fx.Options(
	fx.Provide(NewClient),
	fx.Invoke(registerWebhook),
)

package payment

import (
	"go.uber.org/fx"

	"github.com/fatflowers/posbridge/internal/app/service/terminal_notifier"
	"github.com/fatflowers/posbridge/internal/platform/kafka"
	"github.com/fatflowers/posbridge/internal/platform/shopify"
	"github.com/fatflowers/posbridge/internal/platform/sumup"
)

// Module exposes the checkout flow and the reconciler via Fx.
var Module = fx.Options(
	fx.Provide(
		func(c *sumup.Client) TransactionResolver { return c },
		func(c *sumup.Client) ReaderGateway { return c },
		func(c *shopify.Client) OrderCreator { return c },
		func(n *terminal_notifier.Notifier) TerminalNotifier { return n },
		func(p *kafka.Publisher) EventPublisher { return p },
	),
	fx.Provide(NewCheckout),
	fx.Provide(NewReconciler),
)

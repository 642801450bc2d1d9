package terminal_notifier

import (
	"go.uber.org/fx"

	"github.com/fatflowers/posbridge/internal/app/service/attempt"
	"github.com/fatflowers/posbridge/internal/platform/sumup"
)

var Module = fx.Options(
	fx.Provide(
		func(c *sumup.Client) Verifier { return c },
		func(s attempt.Store) Marker { return s },
		NewNotifier,
	),
)

package promo

import (
	"go.uber.org/fx"

	"loyaltyhub/services/notification"
)

var Module = fx.Module("promo.service",
	fx.Provide(
		NewService,
		NewHandler,
		func(n *notification.Service) Notifier { return n },
	),
)

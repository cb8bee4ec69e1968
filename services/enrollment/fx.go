package enrollment

import (
	"go.uber.org/fx"

	"loyaltyhub/services/notification"
)

var Module = fx.Module("enrollment.service",
	fx.Provide(
		NewService,
		NewHandler,
		func(n *notification.Service) Notifier { return n },
	),
)

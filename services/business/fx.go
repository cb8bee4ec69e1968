package business

import (
	"go.uber.org/fx"
)

var Module = fx.Module("business.service",
	fx.Provide(NewService),
)

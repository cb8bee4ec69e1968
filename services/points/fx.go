package points

import (
	"go.uber.org/fx"
)

var Module = fx.Module("points.service",
	fx.Provide(NewService),
)

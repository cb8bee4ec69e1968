package scan

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"loyaltyhub/pkg/repository"
	"loyaltyhub/services/business"
	"loyaltyhub/services/notification"
	"loyaltyhub/services/points"
	"loyaltyhub/services/promo"
)

var Module = fx.Module("scan.service",
	fx.Provide(
		func(node *snowflake.Node, db *gorm.DB) *Auditor {
			return NewAuditor(node, repository.ProvideStore[ScanAttempt](db))
		},
		func(s *points.Service) PointsAwarder { return s },
		func(s *promo.Service) PromoRedeemer { return s },
		func(s *business.Service) BusinessDirectory { return s },
		func(s *notification.Service) Notifier { return s },
		NewDispatcher,
		NewService,
		NewHandler,
	),
)

package main

import (
	"log"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"loyaltyhub/pkg/auth"
	"loyaltyhub/pkg/config"
	"loyaltyhub/pkg/db"
	"loyaltyhub/pkg/health"
	"loyaltyhub/pkg/logger"
	"loyaltyhub/pkg/middleware"
	"loyaltyhub/pkg/redis"
	"loyaltyhub/pkg/sequence"
	"loyaltyhub/pkg/server"
	"loyaltyhub/pkg/task"
	"loyaltyhub/services/business"
	"loyaltyhub/services/enrollment"
	"loyaltyhub/services/notification"
	"loyaltyhub/services/points"
	"loyaltyhub/services/promo"
	"loyaltyhub/services/ratelimit"
	"loyaltyhub/services/scan"
)

func main() {
	opts := []fx.Option{
		config.Module,
		logger.Module,
		db.Module,
		redis.Module,
		sequence.Module,
		task.Client,
		task.Server,
		health.Module,
		fx.Provide(provideSnowflakeNode),
		ratelimit.Module,
		business.Module,
		points.Module,
		notification.Module,
		enrollment.Module,
		promo.Module,
		scan.Module,
		server.ProvideHTTPServer,
		fx.Invoke(
			migrate,
			registerRoutes,
			registerTaskHandlers,
		),
		fxLogger,
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	app := fx.New(opts...)

	app.Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	return fxevent.NopLogger
})

func provideSnowflakeNode() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}

func migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&business.Business{},
		&business.Customer{},
		&business.Program{},
		&points.LoyaltyCard{},
		&points.LedgerEntry{},
		&enrollment.EnrollmentRequest{},
		&promo.PromoCode{},
		&promo.Redemption{},
		&notification.Notification{},
		&scan.ScanAttempt{},
		&scan.ScanToken{},
	)
}

type routeParams struct {
	fx.In

	Config       *config.Config
	Router       *gin.Engine
	Health       health.HealthService
	Limiters     ratelimit.Limiters
	Scan         *scan.Handler
	Enrollment   *enrollment.Handler
	Promo        *promo.Handler
	Notification *notification.Handler
}

func registerRoutes(p routeParams) {
	p.Router.GET("/healthz", p.Health.Liveness)
	p.Router.GET("/readyz", p.Health.Readiness)
	p.Router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := p.Router.Group("/")
	api.Use(
		middleware.Error(),
		auth.Middleware(p.Config),
		ratelimit.Middleware(p.Limiters.HTTP),
	)

	p.Scan.RegisterRoutes(api)
	p.Enrollment.RegisterRoutes(api)
	p.Promo.RegisterRoutes(api)
	p.Notification.RegisterRoutes(api)
}

func registerTaskHandlers(mux *asynq.ServeMux, svc *notification.Service) {
	mux.HandleFunc(notification.NotificationDeliver, svc.HandleDeliverTask)
}

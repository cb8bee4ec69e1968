package ratelimit

import (
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"loyaltyhub/pkg/config"
)

// Limiters carries the independently configured limiters: the HTTP boundary
// one keys per actor per minute, the scan one keys per device per second.
type Limiters struct {
	HTTP *Limiter
	Scan *Limiter
}

type storeParams struct {
	fx.In

	Redis *redis.Client `optional:"true"`
}

func NewStore(p storeParams) Store {
	if p.Redis != nil {
		return NewRedisStore(p.Redis)
	}
	zap.L().Warn("redis unavailable, rate limits apply per process")
	return NewMemoryStore()
}

func NewLimiters(cfg *config.Config, store Store) Limiters {
	return Limiters{
		HTTP: NewLimiter(store, "http", cfg.RateLimit.HTTP.Requests, cfg.RateLimit.HTTP.Window),
		Scan: NewLimiter(store, "scan", cfg.RateLimit.Scan.Requests, cfg.RateLimit.Scan.Window),
	}
}

var Module = fx.Module("ratelimit",
	fx.Provide(
		NewStore,
		NewLimiters,
	),
)

package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/utils"

	"loyaltyhub/pkg/config"
)

// queryLogger routes gorm's query tracing through the global zap logger.
// Statement logging follows the environment; queries slower than the
// configured threshold are warned regardless of level.
type queryLogger struct {
	level         logger.LogLevel
	slowThreshold time.Duration
	logStatements bool
}

func newQueryLogger(cfg *config.Config) *queryLogger {
	l := &queryLogger{
		level:         logger.Info,
		slowThreshold: cfg.Database.SlowQueryThreshold,
		logStatements: true,
	}
	if cfg.AppEnv == "production" {
		l.level = logger.Warn
		l.logStatements = false
	}
	if l.slowThreshold <= 0 {
		l.slowThreshold = 200 * time.Millisecond
	}
	return l
}

func (l *queryLogger) LogMode(level logger.LogLevel) logger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *queryLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= logger.Info {
		zap.L().Info(fmt.Sprintf(msg, data...))
	}
}

func (l *queryLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= logger.Warn {
		zap.L().Warn(fmt.Sprintf(msg, data...))
	}
}

func (l *queryLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= logger.Error {
		zap.L().Error(fmt.Sprintf(msg, data...))
	}
}

func (l *queryLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)

	switch {
	case err != nil && !errors.Is(err, logger.ErrRecordNotFound):
		sql, rows := fc()
		zap.L().Error("query failed",
			zap.String("caller", utils.FileWithLineNum()),
			zap.Error(err),
			zap.String("sql", sql),
			zap.Int64("rows", rows),
			zap.Duration("elapsed", elapsed),
		)
	case elapsed >= l.slowThreshold:
		sql, rows := fc()
		zap.L().Warn("slow query",
			zap.String("caller", utils.FileWithLineNum()),
			zap.String("sql", sql),
			zap.Int64("rows", rows),
			zap.Duration("elapsed", elapsed),
			zap.Duration("threshold", l.slowThreshold),
		)
	case l.logStatements && l.level >= logger.Info:
		sql, rows := fc()
		zap.L().Debug("query",
			zap.String("sql", sql),
			zap.Int64("rows", rows),
			zap.Duration("elapsed", elapsed),
		)
	}
}

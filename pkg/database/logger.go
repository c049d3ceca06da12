package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/weiawesome/wes-io-live/chatroom/pkg/log"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const defaultSlowThreshold = 200 * time.Millisecond

// zerologLogger routes GORM output through the request-scoped zerolog
// logger. Record-not-found is not an error for history reads.
type zerologLogger struct {
	level gormlogger.LogLevel
	slow  time.Duration
}

func newLogger(level gormlogger.LogLevel, slow time.Duration) gormlogger.Interface {
	if slow <= 0 {
		slow = defaultSlowThreshold
	}
	return &zerologLogger{level: level, slow: slow}
}

func (z *zerologLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	cp := *z
	cp.level = level
	return &cp
}

func (z *zerologLogger) Info(ctx context.Context, msg string, args ...interface{}) {
	if z.level >= gormlogger.Info {
		l := log.Ctx(ctx)
		l.Info().Msg(fmt.Sprintf(msg, args...))
	}
}

func (z *zerologLogger) Warn(ctx context.Context, msg string, args ...interface{}) {
	if z.level >= gormlogger.Warn {
		l := log.Ctx(ctx)
		l.Warn().Msg(fmt.Sprintf(msg, args...))
	}
}

func (z *zerologLogger) Error(ctx context.Context, msg string, args ...interface{}) {
	if z.level >= gormlogger.Error {
		l := log.Ctx(ctx)
		l.Error().Msg(fmt.Sprintf(msg, args...))
	}
}

func (z *zerologLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if z.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	l := log.Ctx(ctx)

	switch {
	case err != nil && z.level >= gormlogger.Error && !errors.Is(err, gorm.ErrRecordNotFound):
		sql, rows := fc()
		l.Error().Err(err).Dur("elapsed", elapsed).Int64("rows", rows).Str("sql", sql).Msg("sql query failed")
	case elapsed > z.slow && z.level >= gormlogger.Warn:
		sql, rows := fc()
		l.Warn().Dur("elapsed", elapsed).Int64("rows", rows).Str("sql", sql).Msg("slow sql query")
	case z.level >= gormlogger.Info:
		sql, rows := fc()
		l.Debug().Dur("elapsed", elapsed).Int64("rows", rows).Str("sql", sql).Msg("sql query")
	}
}

func parseLogLevel(s string) gormlogger.LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "error":
		return gormlogger.Error
	case "warn", "warning":
		return gormlogger.Warn
	case "info":
		return gormlogger.Info
	default:
		return gormlogger.Silent
	}
}

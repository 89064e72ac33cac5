package pool

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/lmittmann/tint"
	"github.com/pitabwire/util"
	glogger "gorm.io/gorm/logger"

	"github.com/pitabwire/fluent/config"
	"github.com/pitabwire/fluent/data"
)

const (
	tintAttrCodeDuration = 214
	tintAttrCodeRows     = 12
	tintAttrCodeQuery    = 2
)

func datastoreLogger(ctx context.Context, cfg config.ConfigurationDatabaseTracing) glogger.Interface {
	l := &queryLogger{
		slowThreshold: config.DefaultSlowQueryThreshold,
		baseLogger:    util.Log(ctx).WithField("component", "datastore"),
	}
	if cfg != nil {
		l.slowThreshold = cfg.GetDatabaseSlowQueryLogThreshold()
		l.logQueries = cfg.CanDatabaseTraceQueries()
	}
	return l
}

// queryLogger routes gorm output through the structured logger. Each query clones
// the base entry so attributes never accumulate.
type queryLogger struct {
	baseLogger    *util.LogEntry
	logQueries    bool
	slowThreshold time.Duration
}

func (l *queryLogger) LogMode(_ glogger.LogLevel) glogger.Interface {
	return l
}

func (l *queryLogger) Info(ctx context.Context, msg string, args ...any) {
	l.baseLogger.WithContext(ctx).Info(msg, args...)
}

func (l *queryLogger) Warn(ctx context.Context, msg string, args ...any) {
	l.baseLogger.WithContext(ctx).Warn(msg, args...)
}

func (l *queryLogger) Error(ctx context.Context, msg string, args ...any) {
	l.baseLogger.WithContext(ctx).Error(msg, args...)
}

// isSlow reports whether elapsed crosses the configured threshold, zero disables it.
func (l *queryLogger) isSlow(elapsed time.Duration) bool {
	return l.slowThreshold != 0 && elapsed > l.slowThreshold
}

func (l *queryLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	baseLog := l.baseLogger.WithContext(ctx)

	slow := l.isSlow(elapsed)
	failed := err != nil && !data.ErrorIsNoRows(err)

	level := slog.LevelDebug
	switch {
	case failed:
		level = slog.LevelError
	case slow:
		level = slog.LevelWarn
	case l.logQueries:
		level = slog.LevelInfo
	}

	if !baseLog.Enabled(ctx, level) {
		return
	}

	sql, rows := fc()

	log := baseLog.With(
		tint.Attr(tintAttrCodeDuration, slog.Any("duration", elapsed.String())),
		tint.Attr(tintAttrCodeRows, slog.Any("rows", strconv.FormatInt(rows, 10))),
		tint.Attr(tintAttrCodeQuery, slog.Any("query", sql)),
	)
	defer log.Release()

	if slow {
		log = log.WithField("slow_query", fmt.Sprintf(">= %v", l.slowThreshold))
	}

	switch level {
	case slog.LevelError:
		log.WithError(err).Error("query failed")
	case slog.LevelWarn:
		log.Warn("query is slow")
	case slog.LevelInfo:
		log.Info("query executed")
	default:
		log.Debug("query executed")
	}
}

package database

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"

	"github.com/charlesng35/groupdesk/pkg/logger"
)

// queryLogger routes gorm diagnostics to the zap module logger. Only failed and
// slow statements are reported; record-not-found is an expected outcome of
// lookups by id or invite code.
type queryLogger struct {
	log           *zap.Logger
	slowThreshold time.Duration
}

func newQueryLogger(slowThreshold time.Duration) gormlogger.Interface {
	return &queryLogger{log: logger.WithModule("database"), slowThreshold: slowThreshold}
}

func (l *queryLogger) LogMode(gormlogger.LogLevel) gormlogger.Interface { return l }

func (l *queryLogger) Info(_ context.Context, msg string, args ...interface{}) {
	l.log.Sugar().Debugf(msg, args...)
}

func (l *queryLogger) Warn(_ context.Context, msg string, args ...interface{}) {
	l.log.Sugar().Warnf(msg, args...)
}

func (l *queryLogger) Error(_ context.Context, msg string, args ...interface{}) {
	l.log.Sugar().Errorf(msg, args...)
}

func (l *queryLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)

	switch {
	case err != nil && !errors.Is(err, gormlogger.ErrRecordNotFound):
		sql, rows := fc()
		l.log.Warn("query failed",
			zap.String("sql", sql),
			zap.Int64("rows", rows),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
	case l.slowThreshold > 0 && elapsed > l.slowThreshold:
		sql, rows := fc()
		l.log.Warn("slow query",
			zap.String("sql", sql),
			zap.Int64("rows", rows),
			zap.Duration("elapsed", elapsed),
			zap.Duration("threshold", l.slowThreshold),
		)
	}
}

// Package gormlog routes gorm's statement logging to zap.
package gormlog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Logger implements gorm's logger.Interface on a zap sugared logger.
//
// Failed statements are logged at error level, statements slower than the
// slow threshold at warn level, and with logger.Info every statement at debug
// level. Record-not-found is not treated as a failure.
type Logger struct {
	log           *zap.SugaredLogger
	level         logger.LogLevel
	slowThreshold time.Duration
}

var _ logger.Interface = (*Logger)(nil)

// New creates a gorm logger writing to log at level.
func New(log *zap.SugaredLogger, level logger.LogLevel, slowThreshold time.Duration) *Logger {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Logger{
		log:           log.WithOptions(zap.AddCallerSkip(3)),
		level:         level,
		slowThreshold: slowThreshold,
	}
}

// LogMode returns a copy of l logging at level.
func (l *Logger) LogMode(level logger.LogLevel) logger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

// Info logs a gorm informational message.
func (l *Logger) Info(_ context.Context, msg string, args ...any) {
	if l.level >= logger.Info {
		l.log.Infof(msg, args...)
	}
}

// Warn logs a gorm warning.
func (l *Logger) Warn(_ context.Context, msg string, args ...any) {
	if l.level >= logger.Warn {
		l.log.Warnf(msg, args...)
	}
}

// Error logs a gorm error message.
func (l *Logger) Error(_ context.Context, msg string, args ...any) {
	if l.level >= logger.Error {
		l.log.Errorf(msg, args...)
	}
}

// Trace logs one executed statement.
func (l *Logger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= logger.Silent {
		return
	}

	elapsed := time.Since(begin)
	switch {
	case err != nil && l.level >= logger.Error && !errors.Is(err, gorm.ErrRecordNotFound):
		sql, rows := fc()
		l.log.Errorw("sql failed", l.fields(sql, rows, elapsed, "error", err)...)
	case l.slowThreshold > 0 && elapsed > l.slowThreshold && l.level >= logger.Warn:
		sql, rows := fc()
		l.log.Warnw("slow sql",
			l.fields(sql, rows, elapsed, "threshold", fmt.Sprint(l.slowThreshold))...)
	case l.level >= logger.Info:
		sql, rows := fc()
		l.log.Debugw("sql", l.fields(sql, rows, elapsed)...)
	}
}

func (l *Logger) fields(sql string, rows int64, elapsed time.Duration, extra ...any) []any {
	fields := []any{"sql", sql, "elapsed_ms", float64(elapsed.Microseconds()) / 1000}
	if rows >= 0 {
		fields = append(fields, "rows", rows)
	}
	return append(fields, extra...)
}

// Level maps the SQL logging switch to a gorm log level: every statement when
// logSQL is set, otherwise slow statements and failures only.
func Level(logSQL bool) logger.LogLevel {
	if logSQL {
		return logger.Info
	}
	return logger.Warn
}

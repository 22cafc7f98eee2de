package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// slowQuery is the duration above which a statement is logged at warn level.
const slowQuery = 500 * time.Millisecond

// GormLogger routes GORM messages into zerolog. SQL is only traced at
// trace level; failures and slow statements are always reported.
type GormLogger struct {
	log   zerolog.Logger
	level logger.LogLevel
}

func NewGormLogger(log zerolog.Logger) *GormLogger {
	return &GormLogger{log: log, level: logger.Warn}
}

func (g *GormLogger) LogMode(level logger.LogLevel) logger.Interface {
	cp := *g
	cp.level = level
	return &cp
}

func (g *GormLogger) Info(_ context.Context, msg string, args ...any) {
	if g.level >= logger.Info {
		g.log.Info().Msg(fmt.Sprintf(msg, args...))
	}
}

func (g *GormLogger) Warn(_ context.Context, msg string, args ...any) {
	if g.level >= logger.Warn {
		g.log.Warn().Msg(fmt.Sprintf(msg, args...))
	}
}

func (g *GormLogger) Error(_ context.Context, msg string, args ...any) {
	if g.level >= logger.Error {
		g.log.Error().Msg(fmt.Sprintf(msg, args...))
	}
}

func (g *GormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if g.level <= logger.Silent {
		return
	}
	elapsed := time.Since(begin)
	switch {
	case err != nil && g.level >= logger.Error && !errors.Is(err, gorm.ErrRecordNotFound):
		stmt, rows := fc()
		g.log.Error().Err(err).Dur("elapsed", elapsed).Int64("rows", rows).Str("sql", stmt).Msg("Query failed")
	case elapsed > slowQuery && g.level >= logger.Warn:
		stmt, rows := fc()
		g.log.Warn().Dur("elapsed", elapsed).Int64("rows", rows).Str("sql", stmt).Msg("Slow query")
	case g.log.GetLevel() <= zerolog.TraceLevel:
		stmt, rows := fc()
		g.log.Trace().Dur("elapsed", elapsed).Int64("rows", rows).Str("sql", stmt).Msg("Query")
	}
}

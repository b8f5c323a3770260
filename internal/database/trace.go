package database

import (
	"context"

	"github.com/jackc/pgx/v5/tracelog"
	"go.uber.org/zap"
)

// zapTracer routes pgx trace events into zap. Successful queries go to debug.
type zapTracer struct {
	logger *zap.Logger
}

func newZapTracer(l *zap.Logger) *zapTracer {
	return &zapTracer{logger: l.Named("pgx")}
}

func (t *zapTracer) Log(_ context.Context, level tracelog.LogLevel, msg string, data map[string]any) {
	fields := []zap.Field{
		zap.Any("sql", data["sql"]),
		zap.Any("time", data["time"]),
	}
	if level == tracelog.LogLevelError {
		// args carry customer data; only their number is logged
		fields = append(fields, zap.Int("args", argCount(data["args"])), zap.Any("err", data["err"]))
	}

	switch level {
	case tracelog.LogLevelError:
		t.logger.Error(msg, fields...)
	case tracelog.LogLevelWarn:
		t.logger.Warn(msg, fields...)
	default:
		t.logger.Debug(msg, fields...)
	}
}

func argCount(v any) int {
	if args, ok := v.([]any); ok {
		return len(args)
	}
	return 0
}

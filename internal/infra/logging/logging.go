package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"telegram-image-studio/internal/config"

	"github.com/rs/zerolog"
)

// New builds the process logger. Dev mode forces console output and disables sampling.
func New(cfg config.LogConfig, dev bool) *zerolog.Logger {
	return newLogger(os.Stdout, cfg, dev)
}

func newLogger(w io.Writer, cfg config.LogConfig, dev bool) *zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if dev || strings.EqualFold(cfg.Format, "console") {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	base := zerolog.New(w).With().Timestamp().Str("service", "studio").Logger()

	if cfg.Sampling && !dev {
		// poll ticks dominate volume; warnings and errors are never sampled
		sampled := base.Sample(zerolog.LevelSampler{
			TraceSampler: &zerolog.BasicSampler{N: 100},
			DebugSampler: &zerolog.BasicSampler{N: 100},
			InfoSampler:  &zerolog.BasicSampler{N: 10},
		})
		return &sampled
	}
	return &base
}

type ctxKey uint8

const (
	ctxTraceID ctxKey = iota
	ctxUserID
	ctxSessID
	ctxRequestID
)

// With returns base enriched with whatever ids ctx carries.
func With(ctx context.Context, base *zerolog.Logger) *zerolog.Logger {
	l := base.With()
	if v, ok := ctx.Value(ctxTraceID).(string); ok {
		l = l.Str("trace_id", v)
	}
	if v, ok := ctx.Value(ctxUserID).(int64); ok {
		l = l.Int64("user_id", v)
	}
	if v, ok := ctx.Value(ctxSessID).(string); ok {
		l = l.Str("session_id", v)
	}
	if v, ok := ctx.Value(ctxRequestID).(int64); ok {
		l = l.Int64("request_id", v)
	}
	logger := l.Logger()
	return &logger
}

// TraceDuration logs start and end of a backend call at TRACE level.
// Usage: defer logging.TraceDuration(logger, "backend.check-subscription")()
func TraceDuration(logger *zerolog.Logger, name string) func() {
	start := time.Now()
	logger.Trace().Str("call", name).Msg("start")
	return func() {
		logger.Trace().Str("call", name).Dur("duration", time.Since(start)).Msg("finish")
	}
}

// Redact masks init data and tokens outside dev, keeping a short preview.
func Redact(s string, dev bool) string {
	if dev {
		return s
	}
	if len(s) <= 8 {
		return "***"
	}
	return s[:4] + "..." + s[len(s)-2:]
}

func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxTraceID, id)
}

func WithUserID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, ctxUserID, id)
}

func WithSessID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxSessID, id)
}

// WithRequestID tags ctx with the backend generation request id.
func WithRequestID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, ctxRequestID, id)
}

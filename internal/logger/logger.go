package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/not-nullexception/render-thumbnails/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

// Setup configures the global logger. Logs go to stderr so stdout carries
// only the render report.
func Setup(cfg *config.LogConfig) {
	SetupWithWriter(cfg, os.Stderr)
}

func SetupWithWriter(cfg *config.LogConfig, w io.Writer) {
	zerolog.TimeFieldFormat = time.RFC3339

	level := getLogLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(w).With().Timestamp().Logger()

	log.Debug().Str("level", level.String()).Msg("Logger initialized")
}

// getLogLevel converts a string log level to zerolog.Level
func getLogLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "panic":
		return zerolog.PanicLevel
	default:
		return zerolog.InfoLevel
	}
}

// GetLogger returns a configured logger with the given component
func GetLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// GetLoggerWithContext returns a configured logger with the given component
// and the trace and span ids of the span in ctx, if any
func GetLoggerWithContext(ctx context.Context, component string) zerolog.Logger {
	logger := GetLogger(component)
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		logger = logger.With().
			Str("trace_id", span.SpanContext().TraceID().String()).
			Str("span_id", span.SpanContext().SpanID().String()).
			Logger()
	}
	return logger
}

// ToContext attaches logger to ctx
func ToContext(ctx context.Context, logger zerolog.Logger) context.Context {
	return logger.WithContext(ctx)
}

// FromContext returns the logger attached to ctx, or the global logger
func FromContext(ctx context.Context) *zerolog.Logger {
	l := zerolog.Ctx(ctx)
	if l.GetLevel() == zerolog.Disabled {
		return &log.Logger
	}
	return l
}

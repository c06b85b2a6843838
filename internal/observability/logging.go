// Package observability wires tracing, metrics and logging for the Metronix
// server and tools. Log lines carry the active trace and span ids, and fields
// that could hold credentials are redacted before they reach any sink.
package observability

import (
	"context"
	"os"
	"strings"

	"metronix/internal/config"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Redacted replaces the value of any field whose key names a credential
const Redacted = "[REDACTED]"

// sensitiveKeyParts are matched case-insensitively against field keys
var sensitiveKeyParts = []string{"password", "secret", "token", "authorization", "cookie", "session"}

// Logger is a zap logger whose methods take a context for trace correlation
type Logger struct {
	*zap.Logger
}

// NewLogger creates an info-level logger
func NewLogger(cfg *config.OpenTelemetryConfig) *Logger {
	return NewLoggerWithLevel(cfg, zap.InfoLevel)
}

// NewLoggerWithLevel logs JSON to stdout and, when an endpoint is configured,
// tees every entry to the OTLP log exporter.
func NewLoggerWithLevel(cfg *config.OpenTelemetryConfig, level zapcore.Level) *Logger {
	if cfg == nil || !cfg.EnableLogging {
		return NewNopLogger()
	}

	zapLogger := stdoutLogger(level)
	if cfg.Endpoint == "" {
		zapLogger.Info("OTLP logging not enabled", zap.String("endpoint", cfg.Endpoint))
		return &Logger{Logger: zapLogger}
	}

	otelCore, err := otlpCore(cfg)
	if err != nil {
		// stdout keeps working without the collector
		zapLogger.Error("Failed to set up OTLP logging", zap.Error(err), zap.String("endpoint", cfg.Endpoint))
		return &Logger{Logger: zapLogger}
	}

	zapLogger = zap.New(zapcore.NewTee(zapLogger.Core(), otelCore))
	zapLogger.Info("OTLP logging configured", zap.String("endpoint", cfg.Endpoint), zap.String("protocol", cfg.Protocol))
	return &Logger{Logger: zapLogger}
}

func stdoutLogger(level zapcore.Level) *zap.Logger {
	zapConfig := zap.NewProductionConfig()
	if os.Getenv("ENV") == "development" {
		zapConfig = zap.NewDevelopmentConfig()
	} else {
		zapConfig.EncoderConfig.TimeKey = "timestamp"
		zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	zapConfig.Level = zap.NewAtomicLevelAt(level)

	zapLogger, err := zapConfig.Build()
	if err != nil {
		return zap.NewExample()
	}
	return zapLogger
}

func otlpCore(cfg *config.OpenTelemetryConfig) (zapcore.Core, error) {
	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, err
	}

	opts := []otlploggrpc.Option{otlploggrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlploggrpc.WithInsecure())
	}
	exporter, err := otlploggrpc.New(context.Background(), opts...)
	if err != nil {
		return nil, err
	}

	provider := log.NewLoggerProvider(
		log.WithProcessor(log.NewBatchProcessor(exporter)),
		log.WithResource(res),
	)
	return otelzap.NewCore("metronix", otelzap.WithLoggerProvider(provider)), nil
}

// Debug logs a debug message with context
func (l *Logger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.logWithContext(ctx, zap.DebugLevel, msg, l.mergeFields(fields...))
}

// Info logs an info message with context
func (l *Logger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.logWithContext(ctx, zap.InfoLevel, msg, l.mergeFields(fields...))
}

// Warn logs a warning message with context
func (l *Logger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.logWithContext(ctx, zap.WarnLevel, msg, l.mergeFields(fields...))
}

// Error logs err under the "error" key
func (l *Logger) Error(ctx context.Context, msg string, err error, fields ...map[string]interface{}) {
	allFields := l.mergeFields(fields...)
	if err != nil {
		allFields["error"] = err.Error()
	}
	l.logWithContext(ctx, zap.ErrorLevel, msg, allFields)
}

func (l *Logger) logWithContext(ctx context.Context, level zapcore.Level, msg string, fields map[string]interface{}) {
	if ce := l.Logger.Check(level, msg); ce != nil {
		if spanContext := trace.SpanContextFromContext(ctx); spanContext.IsValid() {
			fields["trace_id"] = spanContext.TraceID().String()
			fields["span_id"] = spanContext.SpanID().String()
		}

		zapFields := make([]zap.Field, 0, len(fields))
		for k, v := range fields {
			zapFields = append(zapFields, zap.Any(k, v))
		}
		ce.Write(zapFields...)
	}
}

// mergeFields copies the given maps into a fresh one, redacting sensitive keys.
// Callers' maps are never mutated.
func (l *Logger) mergeFields(fields ...map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{})
	for _, fieldMap := range fields {
		for k, v := range fieldMap {
			if isSensitiveKey(k) {
				v = Redacted
			}
			merged[k] = v
		}
	}
	return merged
}

func isSensitiveKey(key string) bool {
	key = strings.ToLower(key)
	for _, part := range sensitiveKeyParts {
		if strings.Contains(key, part) {
			return true
		}
	}
	return false
}

// NewNopLogger returns a logger that discards everything
func NewNopLogger() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

// Sync flushes any buffered log entries
func (l *Logger) Sync() error {
	return l.Logger.Sync()
}

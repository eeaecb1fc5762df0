package observability

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the structured logger used across the proxy.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	With(fields ...Field) Logger
	// WithContext attaches the request ID and the active span IDs found in ctx.
	WithContext(ctx context.Context) Logger
	// SetLevel changes the minimum level of this logger and every
	// logger derived from it.
	SetLevel(level string) error
	Sync() error
}

// Field is a single structured log field.
type Field = zap.Field

// Field constructors.
var (
	String   = zap.String
	Int      = zap.Int
	Int64    = zap.Int64
	Error    = zap.Error
	Any      = zap.Any
	Duration = zap.Duration
)

// LogConfig holds the logger settings.
type LogConfig struct {
	Level  string
	Format string
	// Output is "stdout", "stderr" or a file path.
	Output   string
	Rotation *RotationConfig
}

// RotationConfig controls file rotation when Output is a path.
type RotationConfig struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

type zapLogger struct {
	z     *zap.Logger
	level zap.AtomicLevel
}

// NewLogger builds a zap-backed logger from cfg.
func NewLogger(cfg LogConfig) (Logger, error) {
	lvl, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	level := zap.NewAtomicLevelAt(lvl)

	core := zapcore.NewCore(newEncoder(cfg.Format), newWriteSyncer(cfg), level)

	return &zapLogger{
		z:     zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)),
		level: level,
	}, nil
}

func newEncoder(format string) zapcore.Encoder {
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "timestamp"
	ec.MessageKey = "message"
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	ec.EncodeLevel = zapcore.CapitalLevelEncoder
	ec.EncodeDuration = zapcore.MillisDurationEncoder

	if strings.EqualFold(format, "json") {
		return zapcore.NewJSONEncoder(ec)
	}
	return zapcore.NewConsoleEncoder(ec)
}

// newWriteSyncer returns the sink for cfg.Output. File paths are written
// through a rotating lumberjack writer.
func newWriteSyncer(cfg LogConfig) zapcore.WriteSyncer {
	switch cfg.Output {
	case "", "stdout":
		return zapcore.Lock(os.Stdout)
	case "stderr":
		return zapcore.Lock(os.Stderr)
	}

	w := &lumberjack.Logger{Filename: cfg.Output}
	if r := cfg.Rotation; r != nil {
		w.MaxSize = r.MaxSizeMB
		w.MaxBackups = r.MaxBackups
		w.MaxAge = r.MaxAgeDays
		w.Compress = r.Compress
	}
	return zapcore.AddSync(w)
}

// ParseLevel parses a log level name. Besides zap's own names it
// accepts WARNING and CRITICAL.
func ParseLevel(level string) (zapcore.Level, error) {
	name := strings.ToLower(strings.TrimSpace(level))
	switch name {
	case "":
		return zapcore.InfoLevel, nil
	case "warning":
		return zapcore.WarnLevel, nil
	case "critical":
		return zapcore.DPanicLevel, nil
	}

	var l zapcore.Level
	if err := l.UnmarshalText([]byte(name)); err != nil {
		return l, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return l, nil
}

func (l *zapLogger) Debug(msg string, fields ...Field) { l.z.Debug(msg, fields...) }
func (l *zapLogger) Info(msg string, fields ...Field)  { l.z.Info(msg, fields...) }
func (l *zapLogger) Warn(msg string, fields ...Field)  { l.z.Warn(msg, fields...) }
func (l *zapLogger) Error(msg string, fields ...Field) { l.z.Error(msg, fields...) }

func (l *zapLogger) With(fields ...Field) Logger {
	return &zapLogger{z: l.z.With(fields...), level: l.level}
}

func (l *zapLogger) WithContext(ctx context.Context) Logger {
	fields := contextFields(ctx)
	if len(fields) == 0 {
		return l
	}
	return l.With(fields...)
}

func (l *zapLogger) SetLevel(level string) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}
	l.level.SetLevel(lvl)
	return nil
}

func (l *zapLogger) Sync() error {
	return l.z.Sync()
}

type requestIDKey struct{}

func contextFields(ctx context.Context) []Field {
	var fields []Field

	if id := RequestIDFromContext(ctx); id != "" {
		fields = append(fields, String("request_id", id))
	}

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			String("trace_id", sc.TraceID().String()),
			String("span_id", sc.SpanID().String()),
		)
	}

	return fields
}

// ContextWithRequestID stores the request ID in ctx.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestIDFromContext returns the request ID stored in ctx, if any.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// NopLogger returns a logger that discards all output.
func NopLogger() Logger {
	return &zapLogger{z: zap.NewNop(), level: zap.NewAtomicLevel()}
}

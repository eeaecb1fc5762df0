package observability

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input   string
		want    zapcore.Level
		wantErr bool
	}{
		{input: "", want: zapcore.InfoLevel},
		{input: "INFO", want: zapcore.InfoLevel},
		{input: "debug", want: zapcore.DebugLevel},
		{input: "DEBUG", want: zapcore.DebugLevel},
		{input: "warn", want: zapcore.WarnLevel},
		{input: "WARNING", want: zapcore.WarnLevel},
		{input: "ERROR", want: zapcore.ErrorLevel},
		{input: "CRITICAL", want: zapcore.DPanicLevel},
		{input: "chatty", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			got, err := ParseLevel(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	t.Parallel()

	_, err := NewLogger(LogConfig{Level: "nope"})
	assert.Error(t, err)
}

func TestNewLogger_FileOutput(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "proxy.log")
	logger, err := NewLogger(LogConfig{
		Level:    "INFO",
		Format:   "json",
		Output:   path,
		Rotation: &RotationConfig{MaxSizeMB: 1, MaxBackups: 1, MaxAgeDays: 1},
	})
	require.NoError(t, err)

	logger.Info("hello file", String("key", "value"))
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"hello file"`)
	assert.Contains(t, string(data), `"key":"value"`)
}

func TestLogger_SetLevelAffectsDerivedLoggers(t *testing.T) {
	t.Parallel()

	logger, logs := NewObservedLogger(zapcore.InfoLevel)
	child := logger.With(String("component", "proxy"))

	child.Debug("hidden")
	assert.Equal(t, 0, logs.Len())

	require.NoError(t, logger.SetLevel("DEBUG"))
	child.Debug("shown")
	assert.Equal(t, 1, logs.FilterMessage("shown").Len())

	require.NoError(t, child.SetLevel("ERROR"))
	logger.Warn("suppressed")
	assert.Equal(t, 0, logs.FilterMessage("suppressed").Len())

	assert.Error(t, logger.SetLevel("bogus"))
}

func TestLogger_WithContext(t *testing.T) {
	t.Parallel()

	logger, logs := NewObservedLogger(zapcore.DebugLevel)

	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)

	ctx := ContextWithRequestID(context.Background(), "req-1")
	ctx = trace.ContextWithSpanContext(ctx, trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
	}))

	logger.WithContext(ctx).Info("with ids")

	entries := logs.FilterMessage("with ids").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", fields["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", fields["span_id"])

	assert.Same(t, logger, logger.WithContext(context.Background()))
	assert.Equal(t, "req-1", RequestIDFromContext(ctx))
	assert.Empty(t, RequestIDFromContext(context.Background()))
}

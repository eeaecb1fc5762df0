package observability

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// NewObservedLogger returns a logger that records entries in memory.
// It is meant for tests that assert on log output.
func NewObservedLogger(level zapcore.Level) (Logger, *observer.ObservedLogs) {
	atomicLevel := zap.NewAtomicLevelAt(level)
	core, logs := observer.New(atomicLevel)
	return &zapLogger{
		z:     zap.New(core),
		level: atomicLevel,
	}, logs
}

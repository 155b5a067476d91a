package logger

import (
	"context"
	"testing"

	"code4kids_backend/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name, level, mode string
		want              zapcore.Level
	}{
		{"debug mode default", "", "debug", zap.DebugLevel},
		{"release mode default", "", "release", zap.InfoLevel},
		{"explicit wins over mode", "warn", "debug", zap.WarnLevel},
		{"case insensitive", "ERROR", "release", zap.ErrorLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseLevel(tt.level, tt.mode)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := parseLevel("loud", "debug")
	assert.Error(t, err)
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(config.LogConfig{Level: "chatty"}, "release")
	assert.Error(t, err)
}

func TestNewWritesRotatedFile(t *testing.T) {
	l, err := New(config.LogConfig{File: t.TempDir() + "/app.log", Format: "json"}, "release")
	require.NoError(t, err)
	l.Info("hello")
	assert.NoError(t, l.Sync())
}

func TestFromContextAddsRequestAndTraceIDs(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	prev := Log
	Log = zap.New(core)
	t.Cleanup(func() { Log = prev })

	FromContext(context.Background()).Info("bare")

	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	ctx := trace.ContextWithSpanContext(WithRequestID(context.Background(), "req-1"),
		trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID}))
	FromContext(ctx).Info("tagged")

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)
	assert.Empty(t, entries[0].Context)
	fields := entries[1].ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", fields["trace_id"])
}

package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/handshake-client/internal/logger"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	return rec
}

func TestLogger_WritesFields(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(&buf, logger.LevelInfo, "hsclient")

	log.Info(context.Background(), "socket connected", "url", "ws://127.0.0.1:12037", "height", 42)

	rec := decodeLine(t, &buf)
	assert.Equal(t, "info", rec["level"])
	assert.Equal(t, "socket connected", rec["message"])
	assert.Equal(t, "hsclient", rec["service"])
	assert.Equal(t, "ws://127.0.0.1:12037", rec["url"])
	assert.EqualValues(t, 42, rec["height"])
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(&buf, logger.LevelWarn, "hsclient")

	log.Debug(context.Background(), "hidden")
	log.Info(context.Background(), "hidden")
	assert.Zero(t, buf.Len())

	log.Error(context.Background(), "handler failed", "error", errors.New("boom"))
	rec := decodeLine(t, &buf)
	assert.Equal(t, "error", rec["level"])
	assert.Equal(t, "boom", rec["error"])
}

func TestLogger_With(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(&buf, logger.LevelDebug, "hsclient").With("component", "events")

	log.Debug(context.Background(), "frame")

	rec := decodeLine(t, &buf)
	assert.Equal(t, "events", rec["component"])
}

func TestLogger_DanglingKey(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(&buf, logger.LevelInfo, "hsclient")

	log.Info(context.Background(), "odd", "lonely")

	rec := decodeLine(t, &buf)
	assert.Equal(t, "MISSING", rec["lonely"])
}

func TestLogger_TraceIDs(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(&buf, logger.LevelInfo, "hsclient")

	traceID, _ := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	spanID, _ := trace.SpanIDFromHex("0102030405060708")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	log.Info(ctx, "traced")

	rec := decodeLine(t, &buf)
	assert.Equal(t, "0102030405060708090a0b0c0d0e0f10", rec["trace_id"])
	assert.Equal(t, "0102030405060708", rec["span_id"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, logger.LevelDebug, logger.ParseLevel("DEBUG"))
	assert.Equal(t, logger.LevelWarn, logger.ParseLevel("warning"))
	assert.Equal(t, logger.LevelError, logger.ParseLevel(" error "))
	assert.Equal(t, logger.LevelInfo, logger.ParseLevel(""))
}

func TestNop(t *testing.T) {
	assert.NotPanics(t, func() {
		logger.Nop().With("a", 1).Error(context.Background(), "discarded")
	})
}

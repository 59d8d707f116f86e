package observability

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestContext_LogsBaseFields(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	reqCtx := NewRequestContextWithID(logger, "req-1", "build_context")
	reqCtx.SessionKey = "kitchen"
	reqCtx.Warn("history failed", slog.String(LogFieldErrorCode, "ADAPTER_FAILED"))

	out := buf.String()
	assert.Contains(t, out, `"request_id":"req-1"`)
	assert.Contains(t, out, `"operation":"build_context"`)
	assert.Contains(t, out, `"session_key":"kitchen"`)
	assert.Contains(t, out, `"error_code":"ADAPTER_FAILED"`)
}

func TestRequestContext_GeneratedID(t *testing.T) {
	a := NewRequestContext(nil, "op")
	b := NewRequestContext(nil, "op")
	assert.NotEmpty(t, a.RequestID)
	assert.NotEqual(t, a.RequestID, b.RequestID)
	assert.NotNil(t, a.Logger)
}

func TestRequestContext_RoundTripThroughContext(t *testing.T) {
	reqCtx := NewRequestContext(nil, "op")
	ctx := WithRequestContext(context.Background(), reqCtx)

	got, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Same(t, reqCtx, got)

	_, ok = FromContext(context.Background())
	assert.False(t, ok)
}

func TestMetrics_Snapshot(t *testing.T) {
	m := NewMetrics(3)
	m.RecordBuild(10*time.Millisecond, true)
	m.RecordBuild(20*time.Millisecond, false)
	m.RecordBuild(30*time.Millisecond, true)
	m.RecordBuild(40*time.Millisecond, true)
	m.RecordCache(true)
	m.RecordCache(false)
	m.RecordCache(false)
	m.RecordAdapterFailure("history")
	m.RecordAdapterFailure("history")
	m.RecordCacheSweep(3, 10)
	m.RecordCacheSweep(2, 8)

	snap := m.Snapshot()
	assert.Equal(t, int64(4), snap.BuildTotal)
	assert.Equal(t, int64(1), snap.BuildFailed)
	assert.Equal(t, int64(1), snap.CacheHits)
	assert.Equal(t, int64(2), snap.CacheMisses)
	assert.Equal(t, int64(2), snap.AdapterFailures["history"])
	assert.Equal(t, int64(5), snap.CacheExpired)
	assert.Equal(t, int64(8), snap.CacheEntries)
	// Only the last three samples are kept.
	assert.Equal(t, 30*time.Millisecond, snap.LatencyP50)
	assert.Equal(t, 30*time.Millisecond, snap.LatencyP95)
}

package observability

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitMetrics_NoopProvider(t *testing.T) {
	metrics, err := InitMetrics()
	require.NoError(t, err)
	require.NotNil(t, metrics)

	ctx := context.Background()
	assert.NotPanics(t, func() {
		RecordRequestMetric(ctx, metrics, "GET", "/api/stays", 200, 12*time.Millisecond)
		RecordDBMetric(ctx, metrics, "listings.query", time.Millisecond)
		RecordCacheHit(ctx, metrics, "listing:1")
		RecordCacheMiss(ctx, metrics, "listing:2")
		RecordImageUpload(ctx, metrics, "stored")
		RecordPostFilterDrops(ctx, metrics, "stay", 3)
	})
}

func TestRecorders_NilMetrics(t *testing.T) {
	ctx := context.Background()
	assert.NotPanics(t, func() {
		RecordRequestMetric(ctx, nil, "GET", "/health", 200, time.Millisecond)
		RecordDBMetric(ctx, nil, "x", time.Millisecond)
		RecordCacheHit(ctx, nil, "k")
		RecordCacheMiss(ctx, nil, "k")
		RecordImageUpload(ctx, nil, "failed")
		RecordPostFilterDrops(ctx, nil, "food", 1)
	})
}

func TestLoggerFromContext_WithoutSpan(t *testing.T) {
	InitLogger("test", "production", "not-a-level")
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())

	logger := LoggerFromContext(context.Background())
	require.NotNil(t, logger)
	assert.NotNil(t, GetLogger())
}

func TestWithLogFields(t *testing.T) {
	var buf bytes.Buffer
	previous := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = previous })

	ctx := WithLogFields(context.Background(), map[string]interface{}{"request_id": "req-1"})
	ctx = WithLogFields(ctx, map[string]interface{}{"user_id": "u1"})
	LoggerFromContext(ctx).Info().Msg("listing created")

	out := buf.String()
	assert.Contains(t, out, `"request_id":"req-1"`)
	assert.Contains(t, out, `"user_id":"u1"`)
	assert.Contains(t, out, "listing created")

	buf.Reset()
	LoggerFromContext(context.Background()).Info().Msg("plain")
	assert.NotContains(t, buf.String(), "request_id")
}

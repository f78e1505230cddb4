package telemetry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/listsync/backend/internal/infrastructure/telemetry"
)

func testTraceConfig(enabled bool) telemetry.Config {
	return telemetry.Config{
		Enabled:           enabled,
		CollectorEndpoint: "localhost:14317",
		SamplingRatio:     1.0,
		ServiceName:       "listsync-test",
		Insecure:          true,
	}
}

func TestNewTracerProvider_Disabled(t *testing.T) {
	ctx := context.Background()
	tp, err := telemetry.NewTracerProvider(ctx, testTraceConfig(false), zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.False(t, tp.IsEnabled())
	assert.NotNil(t, tp.Tracer("test"))
	assert.NoError(t, tp.ForceFlush(ctx))

	// span profiles need an SDK provider
	assert.NoError(t, tp.EnableSpanProfiles())
	assert.False(t, tp.IsSpanProfilesEnabled())

	assert.NoError(t, tp.Shutdown(ctx))
}

func TestNewTracerProvider_Enabled(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping exporter test in short mode")
	}

	ctx := context.Background()
	for _, ratio := range []float64{0, 0.25, 1} {
		cfg := testTraceConfig(true)
		cfg.SamplingRatio = ratio

		tp, err := telemetry.NewTracerProvider(ctx, cfg, zaptest.NewLogger(t))
		require.NoError(t, err)
		assert.True(t, tp.IsEnabled())

		_, span := tp.Tracer("test").Start(ctx, "from_external")
		span.End()
		assert.NoError(t, tp.Shutdown(ctx))
	}
}

func TestTracerProvider_EnableSpanProfiles(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping exporter test in short mode")
	}

	ctx := context.Background()
	tp, err := telemetry.NewTracerProvider(ctx, testTraceConfig(true), zaptest.NewLogger(t))
	require.NoError(t, err)
	defer func() { _ = tp.Shutdown(ctx) }()

	assert.False(t, tp.IsSpanProfilesEnabled())
	require.NoError(t, tp.EnableSpanProfiles())
	assert.True(t, tp.IsSpanProfilesEnabled())

	// idempotent
	require.NoError(t, tp.EnableSpanProfiles())
	assert.True(t, tp.IsSpanProfilesEnabled())
}

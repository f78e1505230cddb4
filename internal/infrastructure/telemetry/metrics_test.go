package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap/zaptest"

	"github.com/listsync/backend/internal/infrastructure/telemetry"
)

func TestNewMeterProvider_Disabled(t *testing.T) {
	ctx := context.Background()
	mp, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:     false,
		ServiceName: "listsync-test",
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.False(t, mp.IsEnabled())
	assert.NotNil(t, mp.Meter("test"))
	assert.NoError(t, mp.Shutdown(ctx))
}

func TestNewMeterProvider_Enabled(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping exporter test in short mode")
	}

	ctx := context.Background()
	mp, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           true,
		CollectorEndpoint: "localhost:14317",
		ServiceName:       "listsync-test",
		Insecure:          true,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.True(t, mp.IsEnabled())
	_ = mp.Shutdown(ctx)
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func TestMetricHelpers(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = provider.Shutdown(context.Background()) }()
	meter := provider.Meter("test")
	ctx := context.Background()

	counter, err := telemetry.NewCounter(meter, "commands_total", "Commands", "{command}")
	require.NoError(t, err)
	counter.Add(ctx, 2, telemetry.AttrCommand.String("create"))
	counter.Inc(ctx, telemetry.AttrCommand.String("create"))

	histogram, err := telemetry.NewHistogram(meter, telemetry.HistogramOpts{
		Name:       "pass_duration_seconds",
		Unit:       "s",
		Boundaries: telemetry.SyncPassDurationBuckets,
	})
	require.NoError(t, err)
	histogram.RecordDuration(ctx, 250*time.Millisecond, telemetry.AttrDirection.String("to_external"))
	histogram.Record(ctx, 3)

	gauge, err := telemetry.NewGauge(meter, "mapped_items", "Mapped items", "{item}")
	require.NoError(t, err)
	gauge.Record(ctx, 4, telemetry.AttrListRef.String("shopping"))
	gauge.Record(ctx, 7, telemetry.AttrListRef.String("shopping"))

	data := collect(t, reader)

	sum, ok := data["commands_total"].(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(3), sum.DataPoints[0].Value)

	hist, ok := data["pass_duration_seconds"].(metricdata.Histogram[float64])
	require.True(t, ok)
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
		assert.Equal(t, telemetry.SyncPassDurationBuckets, dp.Bounds)
	}
	assert.Equal(t, uint64(2), count)

	g, ok := data["mapped_items"].(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, g.DataPoints, 1)
	assert.Equal(t, int64(7), g.DataPoints[0].Value)
}

func TestAttributeKeys(t *testing.T) {
	assert.Equal(t, "list_ref", string(telemetry.AttrListRef))
	assert.Equal(t, "sync.direction", string(telemetry.AttrDirection))
	assert.Equal(t, "sync.outcome", string(telemetry.AttrOutcome))
	assert.Equal(t, "http.route", string(telemetry.AttrHTTPRoute))
	assert.Equal(t, "db.pool.state", string(telemetry.AttrDBState))
}

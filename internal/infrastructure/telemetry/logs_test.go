package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLoggerProvider_Disabled(t *testing.T) {
	ctx := context.Background()
	lp, err := NewLoggerProvider(ctx, LogsConfig{Enabled: false, ServiceName: "listsync"}, zap.NewNop())
	require.NoError(t, err)

	assert.False(t, lp.IsEnabled())
	assert.NoError(t, lp.Shutdown(ctx))

	core, logs := observer.New(zapcore.InfoLevel)
	base := zap.New(core)
	assert.Same(t, base, lp.Bridge(base, zapcore.InfoLevel))
	base.Info("still written")
	assert.Equal(t, 1, logs.Len())
}

func TestNewZapOTELCore_NilProvider(t *testing.T) {
	core := NewZapOTELCore(nil, "listsync", zapcore.InfoLevel)
	assert.False(t, core.Enabled(zapcore.ErrorLevel))
}

func enabledLoggerProvider(t *testing.T) *LoggerProvider {
	t.Helper()
	ctx := context.Background()
	lp, err := NewLoggerProvider(ctx, LogsConfig{
		Enabled:           true,
		CollectorEndpoint: "localhost:19999",
		ServiceName:       "listsync-test",
		Insecure:          true,
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = lp.Shutdown(ctx) })
	return lp
}

func TestNewZapOTELCore_LevelFilter(t *testing.T) {
	lp := enabledLoggerProvider(t)
	require.True(t, lp.IsEnabled())

	core := NewZapOTELCore(lp.provider, "listsync", zapcore.WarnLevel)
	_, filtered := core.(*levelFilterCore)
	assert.True(t, filtered)

	assert.False(t, core.Enabled(zapcore.DebugLevel))
	assert.False(t, core.Enabled(zapcore.InfoLevel))
	assert.True(t, core.Enabled(zapcore.WarnLevel))
	assert.True(t, core.Enabled(zapcore.ErrorLevel))

	withFields := core.With([]zapcore.Field{zap.String("list_ref", "shopping")})
	assert.False(t, withFields.Enabled(zapcore.InfoLevel))
}

func TestLoggerProvider_Bridge(t *testing.T) {
	lp := enabledLoggerProvider(t)

	core, logs := observer.New(zapcore.DebugLevel)
	bridged := lp.Bridge(zap.New(core), zapcore.InfoLevel)
	require.NotNil(t, bridged)

	bridged.Info("pass finished", zap.String("direction", "from_external"))
	bridged.Debug("below the bridge level")

	// the base core keeps receiving everything it accepts
	require.Equal(t, 2, logs.Len())
	assert.Equal(t, "from_external", logs.All()[0].ContextMap()["direction"])
}

func TestLevelFilterCore_Check(t *testing.T) {
	inner, logs := observer.New(zapcore.DebugLevel)
	core := &levelFilterCore{Core: inner, minLevel: zapcore.WarnLevel}

	logger := zap.New(core)
	logger.Info("dropped")
	logger.Warn("kept")
	logger.Error("kept")

	assert.Equal(t, 2, logs.Len())
}

package telemetry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/listsync/backend/internal/infrastructure/telemetry"
)

// setupTestTracer installs a recording tracer provider for the test
func setupTestTracer(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(original)
		_ = tp.Shutdown(context.Background())
	})
	return sr
}

func attrMap(kvs []attribute.KeyValue) map[string]attribute.Value {
	out := make(map[string]attribute.Value, len(kvs))
	for _, kv := range kvs {
		out[string(kv.Key)] = kv.Value
	}
	return out
}

func TestStartServiceSpan(t *testing.T) {
	sr := setupTestTracer(t)

	ctx, span := telemetry.StartServiceSpan(context.Background(), "list_sync", "from_external",
		telemetry.WithAttribute(telemetry.SpanAttrListRef, "shopping"),
		telemetry.WithAttribute("created", 3),
		telemetry.WithSpanKind(trace.SpanKindConsumer),
	)
	assert.Equal(t, span, telemetry.SpanFromContext(ctx))
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "list_sync.from_external", spans[0].Name())
	assert.Equal(t, trace.SpanKindConsumer, spans[0].SpanKind())
	assert.Equal(t, telemetry.TracerName, spans[0].InstrumentationScope().Name)

	attrs := attrMap(spans[0].Attributes())
	assert.Equal(t, "shopping", attrs["list_ref"].AsString())
	assert.Equal(t, int64(3), attrs["created"].AsInt64())
}

func TestSetAttribute_Types(t *testing.T) {
	sr := setupTestTracer(t)
	id := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

	_, span := telemetry.StartSpan(context.Background(), "attrs")
	telemetry.SetAttribute(span, "str", "v")
	telemetry.SetAttribute(span, "int64", int64(7))
	telemetry.SetAttribute(span, "float", 0.5)
	telemetry.SetAttribute(span, "bool", true)
	telemetry.SetAttribute(span, "names", []string{"Milk", "Eggs"})
	telemetry.SetAttribute(span, "uuid", id)
	telemetry.SetAttribute(span, "other", struct{ N int }{2})
	span.End()

	attrs := attrMap(sr.Ended()[0].Attributes())
	assert.Equal(t, "v", attrs["str"].AsString())
	assert.Equal(t, int64(7), attrs["int64"].AsInt64())
	assert.Equal(t, 0.5, attrs["float"].AsFloat64())
	assert.True(t, attrs["bool"].AsBool())
	assert.Equal(t, []string{"Milk", "Eggs"}, attrs["names"].AsStringSlice())
	assert.Equal(t, id.String(), attrs["uuid"].AsString())
	assert.Equal(t, "{2}", attrs["other"].AsString())
}

func TestRecordError_And_SetOK(t *testing.T) {
	sr := setupTestTracer(t)

	_, failed := telemetry.StartSpan(context.Background(), "failed")
	telemetry.RecordError(failed, errors.New("connection down"))
	failed.End()

	_, ok := telemetry.StartSpan(context.Background(), "ok")
	telemetry.RecordError(ok, nil)
	telemetry.SetOK(ok)
	ok.End()

	spans := sr.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "connection down", spans[0].Status().Description)
	require.Len(t, spans[0].Events(), 1)
	assert.Equal(t, codes.Ok, spans[1].Status().Code)
	assert.Empty(t, spans[1].Events())
}

func TestAddEvent(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartSpan(context.Background(), "events")
	telemetry.AddEvent(span, "command_written",
		telemetry.SpanAttrCommand, "create",
		42, "non-string key is skipped",
		"dangling",
	)
	span.End()

	events := sr.Ended()[0].Events()
	require.Len(t, events, 1)
	assert.Equal(t, "command_written", events[0].Name)
	attrs := attrMap(events[0].Attributes)
	assert.Len(t, attrs, 1)
	assert.Equal(t, "create", attrs["command"].AsString())
}

func TestNilSpanHelpers(t *testing.T) {
	assert.NotPanics(t, func() {
		telemetry.SetAttribute(nil, "k", "v")
		telemetry.RecordError(nil, errors.New("x"))
		telemetry.SetOK(nil)
		telemetry.AddEvent(nil, "e")
	})
}

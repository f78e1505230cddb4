package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type ctxKey int

const (
	loggerKey ctxKey = iota
	requestIDKey
	listRefKey
	passIDKey
)

// WithContext attaches logger to ctx
func WithContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext returns the attached logger as is, or a no-op logger
func FromContext(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(loggerKey).(*zap.Logger); ok {
		return l
	}
	return zap.NewNop()
}

// WithSyncPass tags ctx with the list and pass of one reconciliation run and
// attaches logger. L adds the tags; logger itself stays untagged.
func WithSyncPass(ctx context.Context, logger *zap.Logger, listRef, passID string) context.Context {
	ctx = context.WithValue(ctx, listRefKey, listRef)
	ctx = context.WithValue(ctx, passIDKey, passID)
	return WithContext(ctx, logger)
}

func contextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// GetRequestID returns the request id carried by ctx
func GetRequestID(ctx context.Context) string {
	s, _ := ctx.Value(requestIDKey).(string)
	return s
}

// GetListRef returns the list ref of the sync pass carried by ctx
func GetListRef(ctx context.Context) string {
	s, _ := ctx.Value(listRefKey).(string)
	return s
}

// GetPassID returns the sync pass id carried by ctx
func GetPassID(ctx context.Context) string {
	s, _ := ctx.Value(passIDKey).(string)
	return s
}

// L returns the logger attached to ctx with every correlation field ctx
// carries: trace_id and span_id of the active span, request_id, list_ref
// and pass_id.
//
//	logger.L(ctx).Info("pass committed", zap.Int("created", n))
func L(ctx context.Context) *zap.Logger {
	fields := make([]zap.Field, 0, 5)
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}
	if v := GetRequestID(ctx); v != "" {
		fields = append(fields, zap.String("request_id", v))
	}
	if v := GetListRef(ctx); v != "" {
		fields = append(fields, zap.String("list_ref", v))
	}
	if v := GetPassID(ctx); v != "" {
		fields = append(fields, zap.String("pass_id", v))
	}

	l := FromContext(ctx)
	if len(fields) == 0 {
		return l
	}
	return l.With(fields...)
}

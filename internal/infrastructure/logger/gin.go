package logger

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// GinRequestIDKey is the gin context key the request id middleware writes
const GinRequestIDKey = "request_id"

// ginLoggerKey is the gin context key of the request-scoped logger
const ginLoggerKey = "logger"

// GinOption configures GinMiddleware
type GinOption func(*ginOptions)

type ginOptions struct {
	skipPaths map[string]struct{}
}

// WithSkipPaths suppresses access log lines for successful requests to paths.
// Failures on those paths are still logged.
func WithSkipPaths(paths ...string) GinOption {
	return func(o *ginOptions) {
		for _, p := range paths {
			o.skipPaths[p] = struct{}{}
		}
	}
}

// GinMiddleware writes one access log line per request and exposes a
// request-scoped logger to handlers via GetGinLogger and to the request
// context via FromContext / L.
func GinMiddleware(base *zap.Logger, opts ...GinOption) gin.HandlerFunc {
	o := ginOptions{skipPaths: make(map[string]struct{})}
	for _, opt := range opts {
		opt(&o)
	}

	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		fields := []zap.Field{zap.String("method", c.Request.Method), zap.String("path", path)}
		if ref := c.Param("ref"); ref != "" {
			fields = append(fields, zap.String("list_ref", ref))
		}
		scoped := base.With(fields...)

		// L(ctx) adds request_id from the context value
		ctx := WithContext(c.Request.Context(), scoped)
		reqLogger := scoped
		if requestID := c.GetString(GinRequestIDKey); requestID != "" {
			ctx = contextWithRequestID(ctx, requestID)
			reqLogger = scoped.With(zap.String("request_id", requestID))
		}
		c.Request = c.Request.WithContext(ctx)
		c.Set(ginLoggerKey, reqLogger)

		c.Next()

		status := c.Writer.Status()
		if _, skip := o.skipPaths[path]; skip && status < http.StatusBadRequest {
			return
		}

		entry := []zap.Field{
			zap.String("route", c.FullPath()),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.Int("bytes", c.Writer.Size()),
		}
		if q := c.Request.URL.RawQuery; q != "" {
			entry = append(entry, zap.String("query", q))
		}
		if len(c.Errors) > 0 {
			entry = append(entry, zap.Strings("errors", c.Errors.Errors()))
		}

		switch {
		case status >= http.StatusInternalServerError:
			reqLogger.Error("request served", entry...)
		case status >= http.StatusBadRequest:
			reqLogger.Warn("request served", entry...)
		default:
			reqLogger.Info("request served", entry...)
		}
	}
}

// Recovery turns a handler panic into a 500 JSON error and logs it with the stack
func Recovery(base *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			requestID := c.GetString(GinRequestIDKey)
			base.Error("handler panicked",
				zap.String("request_id", requestID),
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.Any("panic", rec),
				zap.Stack("stacktrace"),
			)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error": gin.H{
					"code":       "ERR_INTERNAL",
					"message":    "An unexpected error occurred",
					"request_id": requestID,
				},
			})
		}()
		c.Next()
	}
}

// GetGinLogger returns the request-scoped logger, or a no-op logger outside GinMiddleware
func GetGinLogger(c *gin.Context) *zap.Logger {
	if v, ok := c.Get(ginLoggerKey); ok {
		if l, ok := v.(*zap.Logger); ok {
			return l
		}
	}
	return zap.NewNop()
}

package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listsync/backend/internal/interfaces/http/dto"
)

func getHealth(t *testing.T, h *SystemHandler) (int, HealthResponse) {
	t.Helper()

	engine := gin.New()
	engine.GET("/health", h.Health)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	var body HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &dto.Response{Data: &body}))
	return w.Code, body
}

func TestSystemHandler_Health(t *testing.T) {
	t.Run("no checks", func(t *testing.T) {
		code, body := getHealth(t, NewSystemHandler("listsync", "1.0.0"))
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "ok", body.Status)
		assert.Equal(t, "listsync", body.Name)
		assert.NotEmpty(t, body.GoVersion)
		assert.Empty(t, body.Checks)
	})

	t.Run("all healthy", func(t *testing.T) {
		h := NewSystemHandler("listsync", "1.0.0").
			AddCheck("database", func(context.Context) error { return nil }).
			AddCheck("sync", func(context.Context) error { return nil })

		code, body := getHealth(t, h)
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, map[string]string{"database": "ok", "sync": "ok"}, body.Checks)
	})

	t.Run("failing check", func(t *testing.T) {
		h := NewSystemHandler("listsync", "1.0.0").
			AddCheck("database", func(context.Context) error { return nil }).
			AddCheck("sync", func(context.Context) error { return errors.New("engine stopped") })

		code, body := getHealth(t, h)
		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.Equal(t, "degraded", body.Status)
		assert.Equal(t, "engine stopped", body.Checks["sync"])
	})

	t.Run("checks are bounded", func(t *testing.T) {
		h := NewSystemHandler("listsync", "1.0.0").
			AddCheck("slow", func(ctx context.Context) error {
				deadline, ok := ctx.Deadline()
				assert.True(t, ok)
				assert.False(t, deadline.IsZero())
				return nil
			})

		code, _ := getHealth(t, h)
		assert.Equal(t, http.StatusOK, code)
	})
}

package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listsync/backend/internal/domain/itemtext"
	"github.com/listsync/backend/internal/domain/shopping"
	"github.com/listsync/backend/internal/interfaces/http/dto"
)

func newParseEngine() *gin.Engine {
	engine := gin.New()
	engine.POST("/parse", NewParseHandler(itemtext.NewParser("en")).Parse)
	return engine
}

func postParse(engine *gin.Engine, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/parse", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestParseHandler_Parse(t *testing.T) {
	engine := newParseEngine()

	t.Run("default locale", func(t *testing.T) {
		w := postParse(engine, `{"text":"6x Lilith Ghee 500g"}`)
		require.Equal(t, http.StatusOK, w.Code)

		var got dto.ParseResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &dto.Response{Data: &got}))
		assert.Equal(t, "en", got.Locale)
		assert.Equal(t, "Lilith Ghee", got.Name)
		assert.Equal(t, itemtext.PatternMultipack, got.Pattern)
		assert.Equal(t, &shopping.Amount{Val: 6, Unit: "pcs"}, got.Quantity)
		assert.Equal(t, &shopping.Amount{Val: 500, Unit: "g"}, got.PerUnit)
		assert.Equal(t, "6x Lilith Ghee 500g", got.Rendered)
	})

	t.Run("requested locale", func(t *testing.T) {
		w := postParse(engine, `{"text":"6 x Joghurt 150 g","locale":"de"}`)
		require.Equal(t, http.StatusOK, w.Code)

		var got dto.ParseResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &dto.Response{Data: &got}))
		assert.Equal(t, "de", got.Locale)
		assert.Equal(t, "Joghurt", got.Name)
	})

	t.Run("missing text", func(t *testing.T) {
		w := postParse(engine, `{"locale":"de"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("empty body", func(t *testing.T) {
		w := postParse(engine, ``)
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), dto.ErrCodeInvalidJSON)
	})
}

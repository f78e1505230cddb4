package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(engine *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestNewRouter(t *testing.T) {
	r := NewRouter(gin.New())
	assert.Equal(t, "v1", r.apiVersion)
	assert.Empty(t, r.registrars)

	r = NewRouter(gin.New(), WithAPIVersion("v2"))
	assert.Equal(t, "v2", r.apiVersion)
}

func TestRouterSetup(t *testing.T) {
	engine := gin.New()

	tools := NewDomainGroup("tools", "")
	tools.POST("/parse", func(c *gin.Context) { c.String(http.StatusOK, "parsed") })

	lists := NewDomainGroup("lists", "/lists/:ref")
	lists.GET("/items", func(c *gin.Context) { c.String(http.StatusOK, c.Param("ref")) }).
		PUT("/items", func(c *gin.Context) { c.Status(http.StatusOK) }).
		DELETE("/items/:id", func(c *gin.Context) { c.String(http.StatusOK, c.Param("id")) })

	NewRouter(engine).Register(tools).Register(lists).Setup()

	w := serve(engine, http.MethodPost, "/api/v1/parse")
	assert.Equal(t, "parsed", w.Body.String())

	w = serve(engine, http.MethodGet, "/api/v1/lists/shopping/items")
	assert.Equal(t, "shopping", w.Body.String())

	w = serve(engine, http.MethodDelete, "/api/v1/lists/shopping/items/i-1")
	assert.Equal(t, "i-1", w.Body.String())

	assert.Equal(t, http.StatusNotFound, serve(engine, http.MethodGet, "/lists/shopping/items").Code)
}

func TestDomainGroup_Middleware(t *testing.T) {
	engine := gin.New()

	calls := 0
	group := NewDomainGroup("lists", "/lists").Use(func(c *gin.Context) {
		calls++
		c.Next()
	})
	group.GET("", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, "lists", group.Name())
	assert.Equal(t, "/lists", group.Prefix())

	NewRouter(engine, WithAPIVersion("v2")).Register(group).Setup()
	assert.Equal(t, http.StatusOK, serve(engine, http.MethodGet, "/api/v2/lists").Code)
	assert.Equal(t, 1, calls)
}

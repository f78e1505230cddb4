package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func TestRateLimiter(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	rl := NewRateLimiter(2, time.Minute)
	rl.now = clock.Now

	assert.True(t, rl.Allow("a"))
	assert.Equal(t, 1, rl.Remaining("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"), "keys are independent")

	clock.Advance(time.Minute)
	assert.Equal(t, 2, rl.Remaining("a"))
	assert.True(t, rl.Allow("a"))

	clock.Advance(2 * time.Minute)
	rl.prune()
	rl.mu.Lock()
	assert.Empty(t, rl.clients)
	rl.mu.Unlock()
}

func TestRateLimiter_Cleanup(t *testing.T) {
	rl := NewRateLimiter(1, time.Millisecond)
	rl.Allow("a")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		rl.Cleanup(ctx, 5*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		rl.mu.Lock()
		defer rl.mu.Unlock()
		return len(rl.clients) == 0
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestRateLimitByKey(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.POST("/lists/:ref/notify", RateLimitByKey(NewRateLimiter(1, time.Hour), ListClientKey), func(c *gin.Context) {
		c.Status(http.StatusAccepted)
	})

	send := func(ref string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/lists/"+ref+"/notify", nil))
		return w
	}

	first := send("shopping")
	assert.Equal(t, http.StatusAccepted, first.Code)
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", first.Header().Get("X-RateLimit-Remaining"))

	assert.Equal(t, http.StatusTooManyRequests, send("shopping").Code)
	assert.Equal(t, http.StatusAccepted, send("pantry").Code)
}

func TestRateLimitByKey_Disabled(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.GET("/", RateLimitByKey(NewRateLimiter(0, time.Hour), ListClientKey), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	for range 3 {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

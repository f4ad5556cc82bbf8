package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func TestRateLimiter_PerIdentifier(t *testing.T) {
	rl := NewRateLimiter(0.001, 2)

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"))
	assert.Equal(t, 2, rl.Len())
}

func TestRateLimiter_CleanupKeepsBusyLimiters(t *testing.T) {
	rl := NewRateLimiter(0.001, 2)
	rl.Allow("busy")
	rl.limiters["idle"] = rate.NewLimiter(rl.rate, rl.burst)

	rl.Cleanup()
	assert.Equal(t, 1, rl.Len())
	assert.Contains(t, rl.limiters, "busy")
}

func TestRateLimitByIP(t *testing.T) {
	done := make(chan struct{})
	defer close(done)

	router := gin.New()
	router.Use(RateLimitByIP(0.001, 1, done))
	router.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

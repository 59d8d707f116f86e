package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_Burst(t *testing.T) {
	rl := NewRateLimiter(1, 2)

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))

	// Keys are independent.
	assert.True(t, rl.Allow("b"))
	assert.Equal(t, 2, rl.Len())
}

func TestRateLimiter_Defaults(t *testing.T) {
	rl := NewRateLimiter(0, 0)
	for i := 0; i < 20; i++ {
		require.True(t, rl.Allow("ip"), "request %d", i)
	}
	assert.False(t, rl.Allow("ip"))
}

func TestRateLimiter_Prune(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1, 1)
	rl.now = func() time.Time { return now }

	rl.Allow("old")
	now = now.Add(time.Hour)
	rl.Allow("new")

	assert.Equal(t, 1, rl.Prune(30*time.Minute))
	assert.Equal(t, 1, rl.Len())
}

func TestRateLimiter_Middleware(t *testing.T) {
	e := echo.New()
	rl := NewRateLimiter(1, 1)
	e.Use(rl.Middleware())
	e.GET("/", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	do := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = ip + ":1234"
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, do("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, do("10.0.0.1"))
	assert.Equal(t, http.StatusOK, do("10.0.0.2"))
}

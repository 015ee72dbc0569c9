package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewLimiter(rdb, "rl:"), mr
}

func TestLimiterAllow(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLimiter(t)
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return base }

	for i := 0; i < 3; i++ {
		res, err := l.Allow(ctx, "k", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, res.Allowed, "request %d", i)
		assert.Equal(t, 2-i, res.Remaining)
	}

	res, err := l.Allow(ctx, "k", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
	assert.Equal(t, base.Add(time.Minute).UnixMilli(), res.ResetAt.UnixMilli())

	other, err := l.Allow(ctx, "other", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, other.Allowed)

	l.now = func() time.Time { return base.Add(61 * time.Second) }
	res, err = l.Allow(ctx, "k", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	require.NoError(t, l.Reset(ctx, "k"))
	res, err = l.Allow(ctx, "k", 3, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Remaining)
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	l, mr := newTestLimiter(t)

	r := gin.New()
	r.POST("/login", Middleware(l, "auth", 2, time.Minute, nil), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusNoContent, do().Code)
	w := do()
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	w = do()
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"success":false,"message":"Too many requests, please try again later"}`, w.Body.String())

	// fail open once Redis is gone
	mr.Close()
	assert.Equal(t, http.StatusNoContent, do().Code)
}

package ratelimit

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"taskmanager/internal/dto"

	"github.com/gin-gonic/gin"
)

const msgTooManyRequests = "Too many requests, please try again later"

// Middleware limits requests per client IP within a named scope.
// Redis failures let the request through.
func Middleware(l *Limiter, scope string, limit int, window time.Duration, log *slog.Logger) gin.HandlerFunc {
	if log == nil {
		log = slog.Default()
	}
	return func(c *gin.Context) {
		clientID := c.ClientIP()
		res, err := l.Allow(c.Request.Context(), scope+":"+clientID, limit, window)
		if err != nil {
			log.Error("Rate limit check failed", "scope", scope, "client_id", clientID, "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))

		if !res.Allowed {
			log.Warn("Rate limit exceeded", "scope", scope, "client_id", clientID, "limit", res.Limit, "reset_at", res.ResetAt)
			retry := int(math.Ceil(time.Until(res.ResetAt).Seconds()))
			if retry < 1 {
				retry = 1
			}
			c.Header("Retry-After", strconv.Itoa(retry))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, dto.Fail(msgTooManyRequests))
			return
		}
		c.Next()
	}
}

package ratelimit

import (
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/ZanzyTHEbar/credit-risk-lens/internal/errors"
)

// IPRateLimitMiddleware applies the per-IP limit. Limiter failures never
// block a request.
func (rl *RateLimiter) IPRateLimitMiddleware() gin.HandlerFunc {
	if rl.config.IPLimitPerMin <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	return rl.middleware("ip", func(c *gin.Context) (string, Rate) {
		return "ip:" + c.ClientIP(), Rate{Limit: rl.config.IPLimitPerMin, Period: time.Minute}
	})
}

// EndpointRateLimitMiddleware applies a tighter per-IP limit to one route,
// e.g. retraining.
func (rl *RateLimiter) EndpointRateLimitMiddleware(endpoint string, perMinute int) gin.HandlerFunc {
	return rl.middleware(endpoint, func(c *gin.Context) (string, Rate) {
		return "endpoint:" + endpoint + ":" + c.ClientIP(), Rate{Limit: perMinute, Period: time.Minute}
	})
}

func (rl *RateLimiter) middleware(scope string, keyOf func(*gin.Context) (string, Rate)) gin.HandlerFunc {
	return func(c *gin.Context) {
		key, limit := keyOf(c)
		result, err := rl.Allow(c.Request.Context(), key, limit)
		if err != nil {
			slog.Error("Rate limit check failed", "scope", scope, "ip", c.ClientIP(), "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

		if !result.Allowed {
			if rl.metrics != nil {
				rl.metrics.IncrementRateLimitBlock()
			}
			retry := int(math.Ceil(result.RetryAfter.Seconds()))
			c.Header("Retry-After", strconv.Itoa(retry))

			appErr := apperrors.NewRateLimitError(result.RetryAfter.Round(time.Second).String())
			c.AbortWithStatusJSON(appErr.HTTPStatus, appErr)
			return
		}

		c.Next()
	}
}

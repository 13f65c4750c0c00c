package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/subflow/subscription-service/internal/config"
)

// NewRateLimit returns a fixed-window rate limiter backed by Redis,
// intended for the auth endpoints (login and register are brute-force
// targets).  The window is keyed by client IP and route path.  When the
// limiter is disabled, Redis is unavailable, or a Redis call fails, the
// request passes through; rate limiting degrades before it blocks traffic.
func NewRateLimit(cfg config.RateLimitConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error { return next(c) }
		}
	}

	window := cfg.Window
	if window <= 0 {
		window = time.Minute
	}
	limit := cfg.Limit
	if limit <= 0 {
		limit = 20
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			slot := time.Now().UTC().Unix() / int64(window/time.Second)
			key := fmt.Sprintf("rl:%s:%s:%d", c.RealIP(), c.Path(), slot)

			ctx := c.Request().Context()
			n, err := rdb.Incr(ctx, key).Result()
			if err != nil {
				return next(c)
			}
			if n == 1 {
				_ = rdb.Expire(ctx, key, window).Err()
			}
			if n > int64(limit) {
				retry := window / time.Second
				c.Response().Header().Set("Retry-After", strconv.FormatInt(int64(retry), 10))
				return c.JSON(http.StatusTooManyRequests, echo.Map{"error": "rate limit exceeded"})
			}
			return next(c)
		}
	}
}

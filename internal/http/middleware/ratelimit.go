package middleware

import (
	"net/http"
	"strconv"
	"time"

	echo "github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// RateLimitConfig configures the Redis fixed-window limiter.
type RateLimitConfig struct {
	Redis      *redis.Client
	DefaultRPS int    // used when the account has no own limit
	KeyPrefix  string // default "rl:acct:"
	Window     time.Duration
	Now        func() time.Time
}

// RateLimitMiddleware applies a per-account fixed-window limit. It runs after
// APIKeyMiddleware and fails open when Redis is unavailable.
func RateLimitMiddleware(cfg RateLimitConfig) echo.MiddlewareFunc {
	if cfg.Window <= 0 {
		cfg.Window = time.Second
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "rl:acct:"
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			accountID, ok := AccountIDFromCtx(c)
			if !ok {
				return next(c)
			}

			limit := cfg.DefaultRPS
			if v, ok := c.Get(ctxAccountRPS).(int); ok && v > 0 {
				limit = v
			}
			if limit <= 0 || cfg.Redis == nil {
				return next(c)
			}

			now := cfg.Now()
			window := now.UnixNano() / int64(cfg.Window)
			key := cfg.KeyPrefix + strconv.FormatInt(accountID, 10) + ":" + strconv.FormatInt(window, 10)

			ctx := c.Request().Context()
			pipe := cfg.Redis.TxPipeline()
			cnt := pipe.Incr(ctx, key)
			pipe.Expire(ctx, key, cfg.Window*2)
			if _, err := pipe.Exec(ctx); err != nil {
				c.Logger().Warnf("rate limiter unavailable: %v", err)
				return next(c)
			}

			if cnt.Val() > int64(limit) {
				remain := cfg.Window - time.Duration(now.UnixNano()%int64(cfg.Window))
				secs := int((remain + time.Second - 1) / time.Second)
				c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
				return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "rate limited"})
			}
			return next(c)
		}
	}
}

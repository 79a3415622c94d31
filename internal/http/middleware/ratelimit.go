package middleware

import (
	"net/http"
	"strconv"
	"time"

	echo "github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// RateLimitConfig config for the Redis-based RPS limiter on the public
// warranty API. Keys are per caller IP.
type RateLimitConfig struct {
	Redis          *redis.Client
	RPS            int
	Burst          int           // max requests in one window; defaults to RPS
	KeyPrefix      string        // e.g. "rl:warranty:"
	Window         time.Duration // usually 1s
	RetryAfterHint bool          // set Retry-After header when limited
}

// RateLimitMiddleware applies a fixed-window per-IP limit: Burst caps a
// single window, a minute-wide window holds the sustained rate to RPS.
func RateLimitMiddleware(cfg RateLimitConfig) echo.MiddlewareFunc {
	if cfg.Window <= 0 {
		cfg.Window = time.Second
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "rl:warranty:"
	}
	if cfg.Burst < cfg.RPS {
		cfg.Burst = cfg.RPS
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cfg.RPS <= 0 || cfg.Redis == nil {
				// no limit configured or redis missing (dev): allow
				return next(c)
			}

			// fixed-window keys: rl:warranty:{ip}:{unix_sec} and a minute
			// bucket rl:warranty:{ip}:m{unix_min}
			now := time.Now()
			ip := c.RealIP()
			secKey := cfg.KeyPrefix + ip + ":" + strconv.FormatInt(now.Unix(), 10)
			minKey := cfg.KeyPrefix + ip + ":m" + strconv.FormatInt(now.Unix()/60, 10)

			// INCR both and set expiries (safety margin past the window)
			pipe := cfg.Redis.Pipeline()
			cnt := pipe.Incr(c.Request().Context(), secKey)
			pipe.Expire(c.Request().Context(), secKey, cfg.Window*2)
			sustained := pipe.Incr(c.Request().Context(), minKey)
			pipe.Expire(c.Request().Context(), minKey, 2*time.Minute)
			_, err := pipe.Exec(c.Request().Context())
			if err != nil {
				return next(c)
			}

			if cnt.Val() > int64(cfg.Burst) || sustained.Val() > int64(cfg.RPS)*60 {
				if cfg.RetryAfterHint {
					remain := cfg.Window - time.Duration(now.UnixNano()%int64(cfg.Window))
					if remain > 0 {
						c.Response().Header().Set("Retry-After", strconv.Itoa(int(remain.Round(time.Second)/time.Second)))
					}
				}
				return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "rate limited"})
			}
			return next(c)
		}
	}
}

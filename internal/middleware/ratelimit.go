package middleware

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Counter increments a fixed-window counter, setting its expiry on first use
type Counter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// RateLimitConfig holds per-client limits. Zero disables a level.
type RateLimitConfig struct {
	PerMinute int
	PerDay    int
	Now       func() time.Time
	Logger    *zap.Logger
}

// RateLimitMiddleware limits requests per client IP per minute and per day.
// Counter errors let the request through.
func RateLimitMiddleware(counter Counter, cfg RateLimitConfig) fiber.Handler {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return func(c *fiber.Ctx) error {
		if counter == nil {
			return c.Next()
		}

		ctx := c.UserContext()
		now := cfg.Now()
		client := c.IP()

		// Generate Redis keys for the two windows
		keyMinute := fmt.Sprintf("rl:ip:%s:minute:%s", client, now.Format("200601021504"))
		keyDay := fmt.Sprintf("rl:ip:%s:day:%s", client, now.Format("2006-01-02"))

		if cfg.PerMinute > 0 {
			count, err := counter.Incr(ctx, keyMinute, 2*time.Minute)
			if err != nil {
				cfg.Logger.Warn("rate limit counter unavailable", zap.Error(err))
			} else {
				if count > int64(cfg.PerMinute) {
					retryAfter := 60 - now.Second()
					c.Set("X-RateLimit-Limit-Minute", strconv.Itoa(cfg.PerMinute))
					c.Set("X-RateLimit-Remaining-Minute", "0")
					c.Set("Retry-After", strconv.Itoa(retryAfter))

					return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
						"error":       "rate_limit_exceeded",
						"message":     "Too many requests per minute",
						"limit_type":  "per_minute",
						"limit":       cfg.PerMinute,
						"retry_after": retryAfter,
					})
				}
				c.Set("X-RateLimit-Limit-Minute", strconv.Itoa(cfg.PerMinute))
				c.Set("X-RateLimit-Remaining-Minute", strconv.FormatInt(int64(cfg.PerMinute)-count, 10))
			}
		}

		if cfg.PerDay > 0 {
			count, err := counter.Incr(ctx, keyDay, 25*time.Hour) // 25 hours to handle timezone differences
			if err != nil {
				cfg.Logger.Warn("rate limit counter unavailable", zap.Error(err))
			} else if count > int64(cfg.PerDay) {
				// Calculate seconds until midnight
				tomorrow := now.AddDate(0, 0, 1)
				midnight := time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), 0, 0, 0, 0, tomorrow.Location())
				retryAfter := int64(midnight.Sub(now).Seconds())

				c.Set("X-RateLimit-Limit-Day", strconv.Itoa(cfg.PerDay))
				c.Set("X-RateLimit-Remaining-Day", "0")
				c.Set("Retry-After", strconv.FormatInt(retryAfter, 10))

				return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
					"error":       "daily_quota_exceeded",
					"message":     "Daily quota exceeded",
					"limit_type":  "per_day",
					"limit":       cfg.PerDay,
					"used":        count,
					"retry_after": retryAfter,
					"reset_at":    midnight.Format(time.RFC3339),
				})
			} else {
				c.Set("X-RateLimit-Remaining-Day", strconv.FormatInt(int64(cfg.PerDay)-count, 10))
			}
		}

		return c.Next()
	}
}

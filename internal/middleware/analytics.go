package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// LocalCacheHit is set by handlers that answered from the scene cache
const LocalCacheHit = "cache_hit"

// RequestLog holds information about one API request
type RequestLog struct {
	Endpoint       string
	Method         string
	Query          string
	ResponseTimeMs int
	ResponseStatus int
	CacheHit       bool
	IPAddress      string
	UserAgent      string
	Timestamp      time.Time
}

// RequestLogMiddleware writes one structured log line per request
func RequestLogMiddleware(logger *zap.Logger) fiber.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		entry := buildRequestLog(c, start)
		fields := []zap.Field{
			zap.String("method", entry.Method),
			zap.String("path", entry.Endpoint),
			zap.String("query", entry.Query),
			zap.Int("status", entry.ResponseStatus),
			zap.Int("latency_ms", entry.ResponseTimeMs),
			zap.Bool("cache_hit", entry.CacheHit),
			zap.String("ip", entry.IPAddress),
			zap.String("user_agent", entry.UserAgent),
		}
		if err != nil {
			fields = append(fields, zap.Error(err))
		}

		switch {
		case entry.ResponseStatus >= 500:
			logger.Error("request", fields...)
		case entry.ResponseStatus >= 400:
			logger.Warn("request", fields...)
		default:
			logger.Info("request", fields...)
		}
		return err
	}
}

func buildRequestLog(c *fiber.Ctx, start time.Time) *RequestLog {
	cacheHit := false
	if val, ok := c.Locals(LocalCacheHit).(bool); ok {
		cacheHit = val
	}

	return &RequestLog{
		Endpoint:       c.Path(),
		Method:         c.Method(),
		Query:          string(c.Request().URI().QueryString()),
		ResponseTimeMs: int(time.Since(start).Milliseconds()),
		ResponseStatus: c.Response().StatusCode(),
		CacheHit:       cacheHit,
		IPAddress:      c.IP(),
		UserAgent:      c.Get("User-Agent"),
		Timestamp:      start,
	}
}

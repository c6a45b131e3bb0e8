package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestRequestLogMiddleware(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)

	app := fiber.New()
	app.Use(RequestLogMiddleware(zap.New(core)))
	app.Get("/hit", func(c *fiber.Ctx) error {
		c.Locals(LocalCacheHit, true)
		return c.SendString("ok")
	})
	app.Get("/bad", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusBadRequest).SendString("bad")
	})

	tests := []struct {
		target   string
		level    zapcore.Level
		status   int64
		cacheHit bool
	}{
		{target: "/hit?routes=S1", level: zapcore.InfoLevel, status: 200, cacheHit: true},
		{target: "/bad", level: zapcore.WarnLevel, status: 400},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			_, err := app.Test(httptest.NewRequest(http.MethodGet, tt.target, nil))
			require.NoError(t, err)

			entries := logs.TakeAll()
			require.Len(t, entries, 1)
			entry := entries[0]
			assert.Equal(t, tt.level, entry.Level)

			fields := entry.ContextMap()
			assert.Equal(t, tt.status, fields["status"])
			assert.Equal(t, tt.cacheHit, fields["cache_hit"])
			assert.Equal(t, http.MethodGet, fields["method"])
		})
	}
}

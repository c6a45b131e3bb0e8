package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryCounter struct {
	mu     sync.Mutex
	counts map[string]int64
	err    error
}

func (m *memoryCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts == nil {
		m.counts = map[string]int64{}
	}
	m.counts[key]++
	return m.counts[key], nil
}

func limitedApp(counter Counter, cfg RateLimitConfig) *fiber.App {
	app := fiber.New()
	app.Use(RateLimitMiddleware(counter, cfg))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString("ok") })
	return app
}

func fixedNow() time.Time {
	return time.Date(2024, 3, 15, 10, 30, 15, 0, time.UTC)
}

func TestRateLimitPerMinute(t *testing.T) {
	app := limitedApp(&memoryCounter{}, RateLimitConfig{PerMinute: 2, Now: fixedNow})

	for i := 0; i < 2; i++ {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "0", resp.Header.Get("X-RateLimit-Remaining-Minute"))
	assert.Equal(t, "45", resp.Header.Get("Retry-After"))
}

func TestRateLimitPerDay(t *testing.T) {
	app := limitedApp(&memoryCounter{}, RateLimitConfig{PerDay: 1, Now: fixedNow})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "0", resp.Header.Get("X-RateLimit-Remaining-Day"))

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	// 13h29m45s until midnight
	assert.Equal(t, "48585", resp.Header.Get("Retry-After"))
}

func TestRateLimitFailsOpen(t *testing.T) {
	tests := []struct {
		name    string
		counter Counter
	}{
		{name: "Counter error", counter: &memoryCounter{err: errors.New("redis down")}},
		{name: "No counter", counter: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := limitedApp(tt.counter, RateLimitConfig{PerMinute: 1, PerDay: 1, Now: fixedNow})
			for i := 0; i < 3; i++ {
				resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
				require.NoError(t, err)
				assert.Equal(t, http.StatusOK, resp.StatusCode)
			}
		})
	}
}

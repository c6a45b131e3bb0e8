package cache

import (
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrLockTimeout is returned when a concurrent build did not finish in time
var ErrLockTimeout = errors.New("timeout waiting for lock")

// Config holds Redis configuration
type Config struct {
	Host       string
	Port       int
	Password   string
	DB         int
	TLSEnabled bool
	TTL        time.Duration
	MutexTTL   time.Duration
}

// LoadConfigFromEnv loads Redis configuration from environment variables
func LoadConfigFromEnv() *Config {
	port, _ := strconv.Atoi(getEnv("REDIS_PORT", "6379"))
	db, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	ttl, _ := time.ParseDuration(getEnv("CACHE_TTL", "10m"))
	mutexTTL, _ := time.ParseDuration(getEnv("CACHE_MUTEX_TTL", "5s"))

	return &Config{
		Host:       getEnv("REDIS_HOST", "localhost"),
		Port:       port,
		Password:   getEnv("REDIS_PASSWORD", ""),
		DB:         db,
		TLSEnabled: getEnv("REDIS_TLS_ENABLED", "false") == "true",
		TTL:        ttl,
		MutexTTL:   mutexTTL,
	}
}

// Cache stores rendered scenes in Redis
type Cache struct {
	client *redis.Client
	config *Config
}

// New connects to Redis and pings it
func New(ctx context.Context, config *Config) (*Cache, error) {
	opts := &redis.Options{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Password:     config.Password,
		DB:           config.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	}

	// Enable TLS if configured (required for Upstash)
	if config.TLSEnabled {
		opts.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Cache{client: client, config: config}, nil
}

// NewWithClient wraps an existing client
func NewWithClient(client *redis.Client, config *Config) *Cache {
	return &Cache{client: client, config: config}
}

// Client exposes the underlying client, e.g. for rate limit counters
func (c *Cache) Client() *redis.Client { return c.client }

// TTL returns the configured entry lifetime
func (c *Cache) TTL() time.Duration { return c.config.TTL }

// MutexTTL returns the configured lock lifetime
func (c *Cache) MutexTTL() time.Duration { return c.config.MutexTTL }

// Close closes the Redis client
func (c *Cache) Close() {
	if c != nil && c.client != nil {
		c.client.Close()
	}
}

// SceneKey generates a cache key for one feed version and selection.
// Route order and duplicates do not change the key.
func SceneKey(version string, routes []string, fromHour, toHour float64, stations bool, profile string) string {
	sorted := append([]string(nil), routes...)
	sort.Strings(sorted)
	uniq := sorted[:0]
	for i, r := range sorted {
		if i == 0 || r != sorted[i-1] {
			uniq = append(uniq, r)
		}
	}

	data := fmt.Sprintf("%s|%s|%.4f|%.4f|%t|%s", version, strings.Join(uniq, ","), fromHour, toHour, stations, profile)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("scene:%x", hash[:8])
}

// LockKey generates a mutex lock key
func LockKey(key string) string {
	return fmt.Sprintf("lock:%s", key)
}

// GetJSON decodes the cached value into dst. A miss returns false without error.
func (c *Cache) GetJSON(ctx context.Context, key string, dst interface{}) (bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil // cache miss
	}
	if err != nil {
		return false, err
	}

	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("failed to unmarshal cached value: %w", err)
	}
	return true, nil
}

// SetJSON caches value. A zero ttl uses the configured TTL.
func (c *Cache) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.config.TTL
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	return c.client.Set(ctx, key, data, ttl).Err()
}

// AcquireLock attempts to acquire a distributed lock
// Returns true if lock was acquired, false if already locked
func (c *Cache) AcquireLock(ctx context.Context, key string) (bool, error) {
	// Try to set the lock key with NX (only if not exists)
	return c.client.SetNX(ctx, key, "1", c.config.MutexTTL).Result()
}

// ReleaseLock releases a distributed lock
func (c *Cache) ReleaseLock(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

// WaitForLock waits for the lock on key to be released and then reads the cached result into dst
// This implements the "wait for result" pattern to avoid thundering herd
func (c *Cache) WaitForLock(ctx context.Context, key string, maxWait time.Duration, dst interface{}) (bool, error) {
	lockKey := LockKey(key)
	deadline := time.Now().Add(maxWait)

	for time.Now().Before(deadline) {
		exists, err := c.client.Exists(ctx, lockKey).Result()
		if err != nil {
			return false, err
		}

		if exists == 0 {
			return c.GetJSON(ctx, key, dst)
		}

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}

	return false, ErrLockTimeout
}

// Incr increments a counter and sets its expiry on first use
func (c *Cache) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	count, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		c.client.Expire(ctx, key, window)
	}
	return count, nil
}

// HealthCheck performs a health check on the Redis connection
func (c *Cache) HealthCheck(ctx context.Context) error {
	if c == nil || c.client == nil {
		return fmt.Errorf("Redis client not initialized")
	}

	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("Redis ping failed: %w", err)
	}

	return nil
}

// Stats returns Redis stats
func (c *Cache) Stats(ctx context.Context) (map[string]interface{}, error) {
	info, err := c.client.Info(ctx, "stats").Result()
	if err != nil {
		return nil, err
	}

	poolStats := c.client.PoolStats()

	return map[string]interface{}{
		"info":        info,
		"hits":        poolStats.Hits,
		"misses":      poolStats.Misses,
		"timeouts":    poolStats.Timeouts,
		"total_conns": poolStats.TotalConns,
		"idle_conns":  poolStats.IdleConns,
		"stale_conns": poolStats.StaleConns,
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

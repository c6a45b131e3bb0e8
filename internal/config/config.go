package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Source kinds
const (
	SourcePostgres = "postgres"
	SourceSQLite   = "sqlite"
	SourceGTFS     = "gtfs"
)

// Config is the process configuration read from the environment
type Config struct {
	Port               string
	LogLevel           string
	LogDevelopment     bool
	Source             string
	GTFSPath           string
	SQLitePath         string
	ProfilePath        string
	NATSURL            string
	CacheEnabled       bool
	RateLimitPerMinute int
	Location           *time.Location
}

// Load reads .env (if present) and the environment
func Load() (*Config, error) {
	// Load .env into environment (ignore if missing)
	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Source:      strings.ToLower(getEnv("SOURCE", SourcePostgres)),
		GTFSPath:    os.Getenv("GTFS_PATH"),
		SQLitePath:  getEnv("SQLITE_PATH", "gtfs-data.db"),
		ProfilePath: os.Getenv("CHART_PROFILE"),
		NATSURL:     os.Getenv("NATS_URL"),
	}

	var err error
	if cfg.LogDevelopment, err = getBool("LOG_DEVELOPMENT", false); err != nil {
		return nil, err
	}
	if cfg.CacheEnabled, err = getBool("CACHE_ENABLED", true); err != nil {
		return nil, err
	}

	switch cfg.Source {
	case SourcePostgres, SourceSQLite:
	case SourceGTFS:
		if cfg.GTFSPath == "" {
			return nil, fmt.Errorf("GTFS_PATH must be set when SOURCE=%s", SourceGTFS)
		}
	default:
		return nil, fmt.Errorf("invalid SOURCE: %q", cfg.Source)
	}

	if v := os.Getenv("RATE_LIMIT_PER_MINUTE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid RATE_LIMIT_PER_MINUTE: %q", v)
		}
		cfg.RateLimitPerMinute = n
	} else {
		cfg.RateLimitPerMinute = 600
	}

	// Time zone of the reference date
	if tz := os.Getenv("TZ"); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("invalid TZ: %v", err)
		}
		cfg.Location = loc
	} else {
		cfg.Location = time.Local
	}

	return cfg, nil
}

// getEnv retrieves an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultValue, nil
	}
	switch strings.ToLower(v) {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	}
	return false, fmt.Errorf("invalid %s: %q", key, v)
}

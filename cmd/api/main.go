package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/passbi/passbi_chart/internal/api"
	"github.com/passbi/passbi_chart/internal/cache"
	"github.com/passbi/passbi_chart/internal/config"
	"github.com/passbi/passbi_chart/internal/dataset"
	"github.com/passbi/passbi_chart/internal/db"
	"github.com/passbi/passbi_chart/internal/events"
	"github.com/passbi/passbi_chart/internal/gtfs"
	"github.com/passbi/passbi_chart/internal/logging"
	"github.com/passbi/passbi_chart/internal/metrics"
	"github.com/passbi/passbi_chart/internal/middleware"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer logger.Sync()

	profile, err := config.LoadProfile(cfg.ProfilePath)
	if err != nil {
		logger.Fatal("failed to load chart profile", zap.Error(err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Info("starting string chart API", zap.String("source", cfg.Source), zap.String("profile", profile.Name))

	collector := metrics.NewCollector()
	holder := dataset.NewHolder(logger, collector)

	source, store, closeSource, err := openSource(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open source", zap.Error(err))
	}
	defer closeSource()

	opts := api.Options{
		Holder:   holder,
		Profile:  profile,
		Metrics:  collector,
		Logger:   logger,
		Location: cfg.Location,
	}
	if store != nil {
		opts.Store = store
	}

	var sceneCache *cache.Cache
	if cfg.CacheEnabled {
		sceneCache, err = cache.New(ctx, cache.LoadConfigFromEnv())
		if err != nil {
			// Serve uncached rather than not at all
			logger.Warn("redis unavailable, scene cache disabled", zap.Error(err))
		} else {
			defer sceneCache.Close()
			opts.Cache = sceneCache
			logger.Info("redis connection established")
		}
	}

	server, err := api.NewServer(opts)
	if err != nil {
		logger.Fatal("failed to create server", zap.Error(err))
	}

	// Initial load runs in the background; handlers answer 503 until it finishes
	go func() {
		if err := holder.Load(ctx, source); err != nil {
			logger.Error("initial feed load failed", zap.Error(err))
		}
	}()

	if cfg.NATSURL != "" {
		bus, err := events.Connect(cfg.NATSURL, "stringchart-api", logger)
		if err != nil {
			logger.Warn("nats unavailable, reload events disabled", zap.Error(err))
		} else {
			defer bus.Close()
			_, err := bus.SubscribeFeedImported(func(evt events.FeedImported) {
				collector.EventReceived(events.SubjectFeedImported)
				logger.Info("feed imported event", zap.String("version", evt.Version), zap.String("target", evt.Target))
				go func() {
					if err := holder.Load(ctx, source); err != nil {
						logger.Error("feed reload failed", zap.Error(err))
					}
				}()
			})
			if err != nil {
				logger.Warn("failed to subscribe to feed events", zap.Error(err))
			}
		}
	}

	app := fiber.New(fiber.Config{
		AppName:      "String Chart API",
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorHandler: errorHandler(logger),
	})

	// Middleware
	app.Use(recover.New())
	app.Use(middleware.RequestLogMiddleware(logger))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))

	app.Get("/metrics", adaptor.HTTPHandler(collector.Handler()))

	if sceneCache != nil && cfg.RateLimitPerMinute > 0 {
		app.Use("/v1", middleware.RateLimitMiddleware(sceneCache, middleware.RateLimitConfig{
			PerMinute: cfg.RateLimitPerMinute,
			Logger:    logger,
		}))
	}

	server.Register(app)

	// 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "endpoint not found",
		})
	})

	// Graceful shutdown
	go func() {
		<-ctx.Done()
		logger.Info("shutting down gracefully")
		if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
			logger.Error("error during shutdown", zap.Error(err))
		}
	}()

	addr := fmt.Sprintf(":%s", cfg.Port)
	logger.Info("server listening", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}
}

type healthStore interface {
	HealthCheck(ctx context.Context) error
}

// openSource builds the configured feed source. store is nil for sources without a health check.
func openSource(ctx context.Context, cfg *config.Config, logger *zap.Logger) (dataset.Source, healthStore, func(), error) {
	switch cfg.Source {
	case config.SourceGTFS:
		return gtfs.NewFileSource(cfg.GTFSPath, logger), nil, func() {}, nil
	case config.SourceSQLite:
		store, err := db.OpenSQLite(ctx, cfg.SQLitePath, logger)
		if err != nil {
			return nil, nil, nil, err
		}
		return store, nil, func() { store.Close() }, nil
	case config.SourcePostgres:
		pool, err := db.Open(ctx, db.LoadConfigFromEnv())
		if err != nil {
			return nil, nil, nil, err
		}
		store := db.NewPostgresStore(pool, logger)
		return store, store, pool.Close, nil
	}
	return nil, nil, nil, fmt.Errorf("unknown source %q", cfg.Source)
}

// errorHandler handles errors returned from handlers
func errorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError

		var e *fiber.Error
		if errors.As(err, &e) {
			code = e.Code
		}

		logger.Error("request failed", zap.String("path", c.Path()), zap.Error(err))

		return c.Status(code).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
}

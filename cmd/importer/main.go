package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/passbi/passbi_chart/internal/db"
	"github.com/passbi/passbi_chart/internal/events"
	"github.com/passbi/passbi_chart/internal/gtfs"
	"github.com/passbi/passbi_chart/internal/logging"
	"github.com/passbi/passbi_chart/internal/models"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// feedStore is the import side of the postgres and sqlite stores
type feedStore interface {
	Name() string
	EnsureSchema(ctx context.Context) error
	Import(ctx context.Context, feed *models.Feed, source string) (*models.ImportLog, error)
}

func main() {
	// Command-line flags
	gtfsPath := flag.String("gtfs", "", "Path to GTFS ZIP file or directory (required)")
	target := flag.String("target", "postgres", "Import target: postgres or sqlite")
	sqlitePath := flag.String("sqlite", "gtfs-data.db", "SQLite database file for -target=sqlite")
	schedule := flag.String("schedule", "", "Cron spec to re-import periodically, e.g. \"0 4 * * *\"")
	natsURL := flag.String("nats", os.Getenv("NATS_URL"), "NATS URL to announce imports (optional)")
	logLevel := flag.String("log-level", "info", "Log level")

	flag.Parse()

	// Validate required flags
	if *gtfsPath == "" {
		fmt.Println("Usage: stringchart-import --gtfs=<path.zip|dir> [--target=postgres|sqlite] [--sqlite=file.db] [--schedule=\"0 4 * * *\"] [--nats=url]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	// Validate file exists
	if _, err := os.Stat(*gtfsPath); os.IsNotExist(err) {
		log.Fatalf("GTFS file not found: %s", *gtfsPath)
	}

	logger, err := logging.New(*logLevel, false)
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := openStore(ctx, *target, *sqlitePath, logger)
	if err != nil {
		logger.Fatal("failed to open import target", zap.Error(err))
	}
	defer closeStore()

	if err := store.EnsureSchema(ctx); err != nil {
		logger.Fatal("failed to prepare schema", zap.Error(err))
	}

	var bus *events.Bus
	if *natsURL != "" {
		bus, err = events.Connect(*natsURL, "stringchart-importer", logger)
		if err != nil {
			logger.Warn("nats unavailable, imports will not be announced", zap.Error(err))
		} else {
			defer bus.Close()
		}
	}

	source := gtfs.NewFileSource(*gtfsPath, logger)
	job := func() {
		if err := runImport(ctx, source, store, bus, logger); err != nil {
			logger.Error("import failed", zap.Error(err))
			if *schedule == "" {
				os.Exit(1)
			}
		}
	}

	if *schedule == "" {
		job()
		logger.Info("import completed successfully")
		return
	}

	c := cron.New()
	if _, err := c.AddFunc(*schedule, job); err != nil {
		logger.Fatal("invalid schedule", zap.String("schedule", *schedule), zap.Error(err))
	}
	logger.Info("scheduled imports", zap.String("schedule", *schedule))

	job()
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	logger.Info("importer stopped")
}

func openStore(ctx context.Context, target, sqlitePath string, logger *zap.Logger) (feedStore, func(), error) {
	switch target {
	case "postgres":
		pool, err := db.Open(ctx, db.LoadConfigFromEnv())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		return db.NewPostgresStore(pool, logger), pool.Close, nil
	case "sqlite":
		store, err := db.OpenSQLite(ctx, sqlitePath, logger)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown target %q", target)
}

func runImport(ctx context.Context, source *gtfs.FileSource, store feedStore, bus *events.Bus, logger *zap.Logger) error {
	startTime := time.Now()

	logger.Info("step 1/3: parsing GTFS feed", zap.String("source", source.Name()))
	feed, err := source.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to parse GTFS: %w", err)
	}

	logger.Info("step 2/3: importing feed", zap.String("target", store.Name()), zap.String("version", feed.Version))
	entry, err := store.Import(ctx, feed, source.Name())
	if err != nil {
		return fmt.Errorf("failed to import feed: %w", err)
	}

	logger.Info("import finished",
		zap.String("version", entry.Version),
		zap.Int("stops", entry.StopsCount),
		zap.Int("routes", entry.RoutesCount),
		zap.Int("trips", entry.TripsCount),
		zap.Int("stop_times", entry.StopTimes),
		zap.Duration("took", time.Since(startTime)))

	if bus == nil {
		logger.Info("step 3/3: skipping announcement (no NATS)")
		return nil
	}

	logger.Info("step 3/3: announcing import")
	return bus.PublishFeedImported(events.FeedImported{
		Version:    entry.Version,
		Source:     source.Name(),
		Target:     store.Name(),
		ImportedAt: time.Now(),
		StopTimes:  entry.StopTimes,
	})
}

package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/passbi/passbi_chart/internal/models"
	"go.uber.org/zap"
)

const (
	batchSize     = 1000
	stopTimeChunk = 50000
)

// PostgresStore keeps imported feeds in PostgreSQL
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewPostgresStore(pool *pgxpool.Pool, logger *zap.Logger) *PostgresStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresStore{pool: pool, logger: logger}
}

func (s *PostgresStore) Name() string { return "postgres" }

// HealthCheck performs a health check on the database connection
func (s *PostgresStore) HealthCheck(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// EnsureSchema creates missing tables
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	for _, stmt := range postgresSchema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

// CurrentVersion returns the most recent successfully imported version
func (s *PostgresStore) CurrentVersion(ctx context.Context) (string, error) {
	var version string
	err := s.pool.QueryRow(ctx, `
		SELECT version FROM import_log
		WHERE status = $1
		ORDER BY completed_at DESC
		LIMIT 1
	`, StatusSuccess).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNoFeedVersion
	}
	if err != nil {
		return "", fmt.Errorf("failed to read current version: %w", err)
	}
	return version, nil
}

// Load reads the current feed version
func (s *PostgresStore) Load(ctx context.Context) (*models.Feed, error) {
	version, err := s.CurrentVersion(ctx)
	if err != nil {
		return nil, err
	}

	feed := &models.Feed{Version: version, LoadedAt: time.Now()}

	if feed.Stops, err = s.loadStops(ctx, version); err != nil {
		return nil, fmt.Errorf("failed to load stops: %w", err)
	}
	if feed.Routes, err = s.loadRoutes(ctx, version); err != nil {
		return nil, fmt.Errorf("failed to load routes: %w", err)
	}
	if feed.Trips, err = s.loadTrips(ctx, version); err != nil {
		return nil, fmt.Errorf("failed to load trips: %w", err)
	}
	if feed.StopTimes, err = s.loadStopTimes(ctx, version); err != nil {
		return nil, fmt.Errorf("failed to load stop_times: %w", err)
	}

	s.logger.Info("loaded feed from postgres",
		zap.String("version", version),
		zap.Int("stops", len(feed.Stops)),
		zap.Int("routes", len(feed.Routes)),
		zap.Int("trips", len(feed.Trips)),
		zap.Int("stop_times", len(feed.StopTimes)))
	return feed, nil
}

func (s *PostgresStore) loadStops(ctx context.Context, version string) ([]models.Stop, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT stop_id, stop_code, stop_name, stop_lat, stop_lon,
		       location_type, parent_station, platform_code
		FROM stops WHERE version = $1 ORDER BY ordinal
	`, version)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stops := []models.Stop{}
	for rows.Next() {
		var st models.Stop
		if err := rows.Scan(&st.StopID, &st.StopCode, &st.StopName, &st.StopLat, &st.StopLon,
			&st.LocationType, &st.ParentStation, &st.PlatformCode); err != nil {
			return nil, err
		}
		stops = append(stops, st)
	}
	return stops, rows.Err()
}

func (s *PostgresStore) loadRoutes(ctx context.Context, version string) ([]models.Route, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT route_id, agency_id, route_short_name, route_long_name, route_type, route_color
		FROM routes WHERE version = $1 ORDER BY ordinal
	`, version)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	routes := []models.Route{}
	for rows.Next() {
		var r models.Route
		if err := rows.Scan(&r.RouteID, &r.AgencyID, &r.RouteShortName, &r.RouteLongName,
			&r.RouteType, &r.RouteColor); err != nil {
			return nil, err
		}
		routes = append(routes, r)
	}
	return routes, rows.Err()
}

func (s *PostgresStore) loadTrips(ctx context.Context, version string) ([]models.Trip, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT trip_id, route_id, service_id, trip_headsign, trip_short_name,
		       direction_id, block_id, shape_id
		FROM trips WHERE version = $1 ORDER BY ordinal
	`, version)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	trips := []models.Trip{}
	for rows.Next() {
		var t models.Trip
		if err := rows.Scan(&t.TripID, &t.RouteID, &t.ServiceID, &t.TripHeadsign, &t.TripShortName,
			&t.DirectionID, &t.BlockID, &t.ShapeID); err != nil {
			return nil, err
		}
		trips = append(trips, t)
	}
	return trips, rows.Err()
}

func (s *PostgresStore) loadStopTimes(ctx context.Context, version string) ([]models.StopTime, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT trip_id, stop_id, stop_sequence, arrival_time, departure_time, stop_headsign
		FROM stop_times WHERE version = $1 ORDER BY ordinal
	`, version)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stopTimes := []models.StopTime{}
	for rows.Next() {
		var st models.StopTime
		if err := rows.Scan(&st.TripID, &st.StopID, &st.StopSequence, &st.ArrivalTime,
			&st.DepartureTime, &st.StopHeadsign); err != nil {
			return nil, err
		}
		stopTimes = append(stopTimes, st)
	}
	return stopTimes, rows.Err()
}

// Import writes feed as a new version and, once complete, makes it current.
// Older versions are removed afterwards.
func (s *PostgresStore) Import(ctx context.Context, feed *models.Feed, source string) (*models.ImportLog, error) {
	startTime := time.Now()
	entry := &models.ImportLog{
		Version:   feed.Version,
		Source:    source,
		StartedAt: startTime,
		Status:    StatusRunning,
	}

	if _, err := s.pool.Exec(ctx, `
		INSERT INTO import_log (version, source, started_at, status)
		VALUES ($1, $2, $3, $4)
	`, entry.Version, entry.Source, entry.StartedAt, entry.Status); err != nil {
		return nil, fmt.Errorf("failed to create import log: %w", err)
	}

	if err := s.importTables(ctx, feed); err != nil {
		entry.Status = StatusFailed
		entry.ErrorMsg = err.Error()
		s.finishLog(ctx, entry)
		s.dropVersion(ctx, feed.Version)
		return entry, err
	}

	entry.Status = StatusSuccess
	entry.StopsCount = len(feed.Stops)
	entry.RoutesCount = len(feed.Routes)
	entry.TripsCount = len(feed.Trips)
	entry.StopTimes = len(feed.StopTimes)
	if err := s.finishLog(ctx, entry); err != nil {
		return entry, err
	}

	s.pruneOldVersions(ctx, feed.Version)
	s.logger.Info("import completed", zap.String("version", feed.Version), zap.Duration("took", time.Since(startTime)))
	return entry, nil
}

func (s *PostgresStore) importTables(ctx context.Context, feed *models.Feed) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for i, st := range feed.Stops {
		batch.Queue(`
			INSERT INTO stops (version, ordinal, stop_id, stop_code, stop_name, stop_lat, stop_lon,
				location_type, parent_station, platform_code)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (version, stop_id) DO NOTHING
		`, feed.Version, i, st.StopID, st.StopCode, st.StopName, st.StopLat, st.StopLon,
			st.LocationType, st.ParentStation, st.PlatformCode)
		if err := flushIfFull(ctx, tx, &batch, "stops"); err != nil {
			return err
		}
	}
	for i, r := range feed.Routes {
		batch.Queue(`
			INSERT INTO routes (version, ordinal, route_id, agency_id, route_short_name,
				route_long_name, route_type, route_color)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (version, route_id) DO NOTHING
		`, feed.Version, i, r.RouteID, r.AgencyID, r.RouteShortName, r.RouteLongName, r.RouteType, r.RouteColor)
		if err := flushIfFull(ctx, tx, &batch, "routes"); err != nil {
			return err
		}
	}
	for i, t := range feed.Trips {
		batch.Queue(`
			INSERT INTO trips (version, ordinal, trip_id, route_id, service_id, trip_headsign,
				trip_short_name, direction_id, block_id, shape_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (version, trip_id) DO NOTHING
		`, feed.Version, i, t.TripID, t.RouteID, t.ServiceID, t.TripHeadsign, t.TripShortName,
			t.DirectionID, t.BlockID, t.ShapeID)
		if err := flushIfFull(ctx, tx, &batch, "trips"); err != nil {
			return err
		}
	}
	if err := sendBatch(ctx, tx, batch, "trips"); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	// stop_times go in separate chunked transactions (too large for single tx)
	return s.importStopTimesChunked(ctx, feed.Version, feed.StopTimes)
}

func (s *PostgresStore) importStopTimesChunked(ctx context.Context, version string, stopTimes []models.StopTime) error {
	total := len(stopTimes)
	for start := 0; start < total; start += stopTimeChunk {
		end := start + stopTimeChunk
		if end > total {
			end = total
		}

		tx, err := s.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("failed to begin tx at offset %d: %w", start, err)
		}

		batch := &pgx.Batch{}
		for i := start; i < end; i++ {
			st := stopTimes[i]
			batch.Queue(`
				INSERT INTO stop_times (version, ordinal, trip_id, stop_id, stop_sequence,
					arrival_time, departure_time, stop_headsign)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
				ON CONFLICT (version, trip_id, stop_sequence) DO NOTHING
			`, version, i, st.TripID, st.StopID, st.StopSequence, st.ArrivalTime, st.DepartureTime, st.StopHeadsign)
			if err := flushIfFull(ctx, tx, &batch, "stop_times"); err != nil {
				tx.Rollback(ctx)
				return err
			}
		}
		if err := sendBatch(ctx, tx, batch, "stop_times"); err != nil {
			tx.Rollback(ctx)
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("failed to commit stop_times chunk at %d: %w", start, err)
		}
		s.logger.Debug("imported stop_times chunk", zap.Int("from", start+1), zap.Int("to", end), zap.Int("total", total))
	}
	return nil
}

func flushIfFull(ctx context.Context, tx pgx.Tx, batch **pgx.Batch, table string) error {
	if (*batch).Len() < batchSize {
		return nil
	}
	if err := sendBatch(ctx, tx, *batch, table); err != nil {
		return err
	}
	*batch = &pgx.Batch{}
	return nil
}

func sendBatch(ctx context.Context, tx pgx.Tx, batch *pgx.Batch, table string) error {
	if batch.Len() == 0 {
		return nil
	}
	results := tx.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to insert %s row %d: %w", table, i, err)
		}
	}
	return nil
}

func (s *PostgresStore) finishLog(ctx context.Context, entry *models.ImportLog) error {
	now := time.Now()
	entry.CompletedAt = &now
	_, err := s.pool.Exec(ctx, `
		UPDATE import_log
		SET completed_at = $2, status = $3, stops_count = $4, routes_count = $5,
		    trips_count = $6, stop_times = $7, error_msg = $8
		WHERE version = $1
	`, entry.Version, now, entry.Status, entry.StopsCount, entry.RoutesCount,
		entry.TripsCount, entry.StopTimes, entry.ErrorMsg)
	if err != nil {
		return fmt.Errorf("failed to update import log: %w", err)
	}
	return nil
}

func (s *PostgresStore) dropVersion(ctx context.Context, version string) {
	for _, table := range versionedTables {
		if _, err := s.pool.Exec(ctx, "DELETE FROM "+table+" WHERE version = $1", version); err != nil {
			s.logger.Warn("failed to drop version rows", zap.String("table", table), zap.String("version", version), zap.Error(err))
		}
	}
}

func (s *PostgresStore) pruneOldVersions(ctx context.Context, keep string) {
	for _, table := range versionedTables {
		if _, err := s.pool.Exec(ctx, "DELETE FROM "+table+" WHERE version <> $1", keep); err != nil {
			s.logger.Warn("failed to prune old versions", zap.String("table", table), zap.Error(err))
		}
	}
}

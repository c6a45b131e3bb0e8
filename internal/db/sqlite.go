package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/passbi/passbi_chart/internal/models"
	"go.uber.org/zap"
)

// SQLiteStore keeps imported feeds in a local SQLite file
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *zap.Logger
}

// OpenSQLite opens (and creates) the database file at path
func OpenSQLite(ctx context.Context, path string, logger *zap.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite %s: %w", path, err)
	}
	// One writer at a time
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite %s: %w", path, err)
	}
	return &SQLiteStore{db: db, path: path, logger: logger}, nil
}

func (s *SQLiteStore) Name() string { return "sqlite:" + s.path }

func (s *SQLiteStore) Close() error { return s.db.Close() }

// EnsureSchema creates missing tables
func (s *SQLiteStore) EnsureSchema(ctx context.Context) error {
	for _, stmt := range sqliteSchema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

// CurrentVersion returns the most recent successfully imported version
func (s *SQLiteStore) CurrentVersion(ctx context.Context) (string, error) {
	var version string
	err := s.db.QueryRowContext(ctx, `
		SELECT version FROM import_log
		WHERE status = ?
		ORDER BY completed_at DESC
		LIMIT 1
	`, StatusSuccess).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNoFeedVersion
	}
	if err != nil {
		return "", fmt.Errorf("failed to read current version: %w", err)
	}
	return version, nil
}

// Load reads the current feed version
func (s *SQLiteStore) Load(ctx context.Context) (*models.Feed, error) {
	version, err := s.CurrentVersion(ctx)
	if err != nil {
		return nil, err
	}
	feed := &models.Feed{Version: version, LoadedAt: time.Now()}

	stopRows, err := s.db.QueryContext(ctx, `
		SELECT stop_id, stop_code, stop_name, stop_lat, stop_lon, location_type, parent_station, platform_code
		FROM stops WHERE version = ? ORDER BY ordinal`, version)
	if err != nil {
		return nil, fmt.Errorf("failed to load stops: %w", err)
	}
	err = scanAll(stopRows, func(rows *sql.Rows) error {
		var st models.Stop
		if err := rows.Scan(&st.StopID, &st.StopCode, &st.StopName, &st.StopLat, &st.StopLon,
			&st.LocationType, &st.ParentStation, &st.PlatformCode); err != nil {
			return err
		}
		feed.Stops = append(feed.Stops, st)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load stops: %w", err)
	}

	routeRows, err := s.db.QueryContext(ctx, `
		SELECT route_id, agency_id, route_short_name, route_long_name, route_type, route_color
		FROM routes WHERE version = ? ORDER BY ordinal`, version)
	if err != nil {
		return nil, fmt.Errorf("failed to load routes: %w", err)
	}
	err = scanAll(routeRows, func(rows *sql.Rows) error {
		var r models.Route
		if err := rows.Scan(&r.RouteID, &r.AgencyID, &r.RouteShortName, &r.RouteLongName,
			&r.RouteType, &r.RouteColor); err != nil {
			return err
		}
		feed.Routes = append(feed.Routes, r)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load routes: %w", err)
	}

	tripRows, err := s.db.QueryContext(ctx, `
		SELECT trip_id, route_id, service_id, trip_headsign, trip_short_name, direction_id, block_id, shape_id
		FROM trips WHERE version = ? ORDER BY ordinal`, version)
	if err != nil {
		return nil, fmt.Errorf("failed to load trips: %w", err)
	}
	err = scanAll(tripRows, func(rows *sql.Rows) error {
		var t models.Trip
		if err := rows.Scan(&t.TripID, &t.RouteID, &t.ServiceID, &t.TripHeadsign, &t.TripShortName,
			&t.DirectionID, &t.BlockID, &t.ShapeID); err != nil {
			return err
		}
		feed.Trips = append(feed.Trips, t)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load trips: %w", err)
	}

	stRows, err := s.db.QueryContext(ctx, `
		SELECT trip_id, stop_id, stop_sequence, arrival_time, departure_time, stop_headsign
		FROM stop_times WHERE version = ? ORDER BY ordinal`, version)
	if err != nil {
		return nil, fmt.Errorf("failed to load stop_times: %w", err)
	}
	err = scanAll(stRows, func(rows *sql.Rows) error {
		var st models.StopTime
		if err := rows.Scan(&st.TripID, &st.StopID, &st.StopSequence, &st.ArrivalTime,
			&st.DepartureTime, &st.StopHeadsign); err != nil {
			return err
		}
		feed.StopTimes = append(feed.StopTimes, st)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load stop_times: %w", err)
	}

	s.logger.Info("loaded feed from sqlite",
		zap.String("path", s.path),
		zap.String("version", version),
		zap.Int("trips", len(feed.Trips)),
		zap.Int("stop_times", len(feed.StopTimes)))
	return feed, nil
}

func scanAll(rows *sql.Rows, fn func(*sql.Rows) error) error {
	defer rows.Close()
	for rows.Next() {
		if err := fn(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Import writes feed as a new version in one transaction and makes it current
func (s *SQLiteStore) Import(ctx context.Context, feed *models.Feed, source string) (*models.ImportLog, error) {
	startTime := time.Now()
	entry := &models.ImportLog{
		Version:   feed.Version,
		Source:    source,
		StartedAt: startTime,
		Status:    StatusRunning,
	}

	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO import_log (version, source, started_at, status) VALUES (?, ?, ?, ?)`,
		entry.Version, entry.Source, entry.StartedAt, entry.Status); err != nil {
		return nil, fmt.Errorf("failed to create import log: %w", err)
	}

	if err := s.importTables(ctx, feed); err != nil {
		entry.Status = StatusFailed
		entry.ErrorMsg = err.Error()
		if logErr := s.finishLog(ctx, entry); logErr != nil {
			s.logger.Warn("failed to record import failure", zap.Error(logErr))
		}
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

	for _, table := range versionedTables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table+" WHERE version <> ?", feed.Version); err != nil {
			s.logger.Warn("failed to prune old versions", zap.String("table", table), zap.Error(err))
		}
	}
	s.logger.Info("import completed", zap.String("version", feed.Version), zap.Duration("took", time.Since(startTime)))
	return entry, nil
}

func (s *SQLiteStore) importTables(ctx context.Context, feed *models.Feed) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	insert := func(table, query string, n int, args func(i int) []interface{}) error {
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return fmt.Errorf("failed to prepare %s insert: %w", table, err)
		}
		defer stmt.Close()
		for i := 0; i < n; i++ {
			if _, err := stmt.ExecContext(ctx, args(i)...); err != nil {
				return fmt.Errorf("failed to insert %s row %d: %w", table, i, err)
			}
		}
		return nil
	}

	if err := insert("stops", `INSERT OR IGNORE INTO stops (version, ordinal, stop_id, stop_code, stop_name,
		stop_lat, stop_lon, location_type, parent_station, platform_code) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		len(feed.Stops), func(i int) []interface{} {
			st := feed.Stops[i]
			return []interface{}{feed.Version, i, st.StopID, st.StopCode, st.StopName, st.StopLat, st.StopLon,
				st.LocationType, st.ParentStation, st.PlatformCode}
		}); err != nil {
		return err
	}
	if err := insert("routes", `INSERT OR IGNORE INTO routes (version, ordinal, route_id, agency_id,
		route_short_name, route_long_name, route_type, route_color) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		len(feed.Routes), func(i int) []interface{} {
			r := feed.Routes[i]
			return []interface{}{feed.Version, i, r.RouteID, r.AgencyID, r.RouteShortName, r.RouteLongName,
				r.RouteType, r.RouteColor}
		}); err != nil {
		return err
	}
	if err := insert("trips", `INSERT OR IGNORE INTO trips (version, ordinal, trip_id, route_id, service_id,
		trip_headsign, trip_short_name, direction_id, block_id, shape_id) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		len(feed.Trips), func(i int) []interface{} {
			t := feed.Trips[i]
			return []interface{}{feed.Version, i, t.TripID, t.RouteID, t.ServiceID, t.TripHeadsign,
				t.TripShortName, t.DirectionID, t.BlockID, t.ShapeID}
		}); err != nil {
		return err
	}
	if err := insert("stop_times", `INSERT OR IGNORE INTO stop_times (version, ordinal, trip_id, stop_id,
		stop_sequence, arrival_time, departure_time, stop_headsign) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		len(feed.StopTimes), func(i int) []interface{} {
			st := feed.StopTimes[i]
			return []interface{}{feed.Version, i, st.TripID, st.StopID, st.StopSequence, st.ArrivalTime,
				st.DepartureTime, st.StopHeadsign}
		}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *SQLiteStore) finishLog(ctx context.Context, entry *models.ImportLog) error {
	now := time.Now()
	entry.CompletedAt = &now
	_, err := s.db.ExecContext(ctx, `
		UPDATE import_log
		SET completed_at = ?, status = ?, stops_count = ?, routes_count = ?,
		    trips_count = ?, stop_times = ?, error_msg = ?
		WHERE version = ?
	`, now, entry.Status, entry.StopsCount, entry.RoutesCount, entry.TripsCount,
		entry.StopTimes, entry.ErrorMsg, entry.Version)
	if err != nil {
		return fmt.Errorf("failed to update import log: %w", err)
	}
	return nil
}

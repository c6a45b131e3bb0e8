package db

import "errors"

// ErrNoFeedVersion is returned when no import has completed yet
var ErrNoFeedVersion = errors.New("no imported feed version")

// Import statuses
const (
	StatusRunning = "running"
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Every table is scoped by feed version so an import never disturbs readers
// of the current version. ordinal preserves feed file order.
var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS import_log (
		version       TEXT PRIMARY KEY,
		source        TEXT NOT NULL,
		started_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		completed_at  TIMESTAMPTZ,
		status        TEXT NOT NULL,
		stops_count   INTEGER NOT NULL DEFAULT 0,
		routes_count  INTEGER NOT NULL DEFAULT 0,
		trips_count   INTEGER NOT NULL DEFAULT 0,
		stop_times    INTEGER NOT NULL DEFAULT 0,
		error_msg     TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS stops (
		version        TEXT NOT NULL,
		ordinal        INTEGER NOT NULL,
		stop_id        TEXT NOT NULL,
		stop_code      TEXT,
		stop_name      TEXT,
		stop_lat       DOUBLE PRECISION NOT NULL DEFAULT 0,
		stop_lon       DOUBLE PRECISION NOT NULL DEFAULT 0,
		location_type  INTEGER,
		parent_station TEXT,
		platform_code  TEXT,
		PRIMARY KEY (version, stop_id)
	)`,
	`CREATE TABLE IF NOT EXISTS routes (
		version          TEXT NOT NULL,
		ordinal          INTEGER NOT NULL,
		route_id         TEXT NOT NULL,
		agency_id        TEXT,
		route_short_name TEXT,
		route_long_name  TEXT,
		route_type       INTEGER NOT NULL DEFAULT 0,
		route_color      TEXT,
		PRIMARY KEY (version, route_id)
	)`,
	`CREATE TABLE IF NOT EXISTS trips (
		version         TEXT NOT NULL,
		ordinal         INTEGER NOT NULL,
		trip_id         TEXT NOT NULL,
		route_id        TEXT NOT NULL,
		service_id      TEXT NOT NULL DEFAULT '',
		trip_headsign   TEXT NOT NULL DEFAULT '',
		trip_short_name TEXT,
		direction_id    INTEGER,
		block_id        TEXT,
		shape_id        TEXT,
		PRIMARY KEY (version, trip_id)
	)`,
	`CREATE TABLE IF NOT EXISTS stop_times (
		version        TEXT NOT NULL,
		ordinal        INTEGER NOT NULL,
		trip_id        TEXT NOT NULL,
		stop_id        TEXT NOT NULL,
		stop_sequence  INTEGER NOT NULL,
		arrival_time   TEXT NOT NULL,
		departure_time TEXT NOT NULL,
		stop_headsign  TEXT,
		PRIMARY KEY (version, trip_id, stop_sequence)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_import_log_status ON import_log (status, completed_at DESC)`,
}

// SQLite accepts the same column types apart from TIMESTAMPTZ defaults
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS import_log (
		version       TEXT PRIMARY KEY,
		source        TEXT NOT NULL,
		started_at    DATETIME NOT NULL,
		completed_at  DATETIME,
		status        TEXT NOT NULL,
		stops_count   INTEGER NOT NULL DEFAULT 0,
		routes_count  INTEGER NOT NULL DEFAULT 0,
		trips_count   INTEGER NOT NULL DEFAULT 0,
		stop_times    INTEGER NOT NULL DEFAULT 0,
		error_msg     TEXT NOT NULL DEFAULT ''
	)`,
	postgresSchema[1],
	postgresSchema[2],
	postgresSchema[3],
	postgresSchema[4],
	`CREATE INDEX IF NOT EXISTS idx_import_log_status ON import_log (status, completed_at)`,
}

// Per-version deletes, children first
var versionedTables = []string{"stop_times", "trips", "routes", "stops"}

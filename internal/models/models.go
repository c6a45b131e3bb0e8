package models

import "time"

// GTFS rows as delivered by an ingestion source. Optional GTFS columns are
// pointers so that "absent" survives the trip through the API as null.

// Stop represents a stop from stops.txt
type Stop struct {
	StopID        string  `json:"stop_id"`
	StopCode      *string `json:"stop_code"`
	StopName      *string `json:"stop_name"`
	StopLat       float64 `json:"stop_lat"`
	StopLon       float64 `json:"stop_lon"`
	LocationType  *int    `json:"location_type"`
	ParentStation *string `json:"parent_station"`
	PlatformCode  *string `json:"platform_code"`
}

// Route represents a route from routes.txt
type Route struct {
	RouteID        string  `json:"route_id"`
	AgencyID       *string `json:"agency_id"`
	RouteShortName *string `json:"route_short_name"`
	RouteLongName  *string `json:"route_long_name"`
	RouteType      int     `json:"route_type"`
	RouteColor     *string `json:"route_color"`
}

// Trip represents a trip from trips.txt
type Trip struct {
	TripID        string  `json:"trip_id"`
	RouteID       string  `json:"route_id"`
	ServiceID     string  `json:"service_id"`
	TripHeadsign  string  `json:"trip_headsign"`
	TripShortName *string `json:"trip_short_name"`
	DirectionID   *int    `json:"direction_id"`
	BlockID       *string `json:"block_id"`
	ShapeID       *string `json:"shape_id"`
}

// StopTime represents a stop time from stop_times.txt. Times are the raw
// HH:MM:SS strings of the feed and may exceed 24:00:00.
type StopTime struct {
	TripID        string  `json:"trip_id"`
	StopID        string  `json:"stop_id"`
	ArrivalTime   string  `json:"arrival_time"`
	DepartureTime string  `json:"departure_time"`
	StopSequence  int     `json:"stop_sequence"`
	StopHeadsign  *string `json:"stop_headsign"`
}

// Feed is the set of tables one pipeline run consumes.
type Feed struct {
	Version   string     `json:"version"`
	LoadedAt  time.Time  `json:"loaded_at"`
	Stops     []Stop     `json:"stops"`
	Routes    []Route    `json:"routes"`
	Trips     []Trip     `json:"trips"`
	StopTimes []StopTime `json:"stop_times"`
}

// EnrichedStop is one stop_times row joined with its stop, trip and route.
type EnrichedStop struct {
	TripID       string `json:"trip_id"`
	StopID       string `json:"stop_id"`
	StopSequence int    `json:"stop_sequence"`

	// Display fields copied from the matching stop; nil when the stop is unknown.
	StopName      *string  `json:"stop_name"`
	StopCode      *string  `json:"stop_code"`
	PlatformCode  *string  `json:"platform_code"`
	ParentStation *string  `json:"parent_station"`
	StopLat       *float64 `json:"stop_lat"`
	StopLon       *float64 `json:"stop_lon"`

	ArrivalTime        string `json:"arrival_time"`
	DepartureTime      string `json:"departure_time"`
	ArrivalTimestamp   int    `json:"arrival_timestamp"`   // seconds since local midnight, unbounded
	DepartureTimestamp int    `json:"departure_timestamp"` // seconds since local midnight, unbounded

	// Same-day calendar times used for scaling and formatting only.
	OriginalArrivalTime   time.Time `json:"originalArrivalTime"`
	OriginalDepartureTime time.Time `json:"originalDepartureTime"`

	TripHeadsign   string  `json:"trip_headsign"`
	RouteID        string  `json:"route_id"`
	RouteShortName *string `json:"route_short_name"`
}

// ProcessedTrip is a trip with its stops inside the active time window,
// ordered by stop_sequence. Stops is never empty.
type ProcessedTrip struct {
	TripID         string         `json:"trip_id"`
	RouteID        string         `json:"route_id"`
	ServiceID      string         `json:"service_id"`
	TripHeadsign   string         `json:"trip_headsign"`
	TripShortName  *string        `json:"trip_short_name"`
	DirectionID    *int           `json:"direction_id"`
	BlockID        *string        `json:"block_id"`
	ShapeID        *string        `json:"shape_id"`
	RouteShortName *string        `json:"route_short_name"`
	Stops          []EnrichedStop `json:"stops"`
}

// ImportLog represents a GTFS import run
type ImportLog struct {
	Version     string
	Source      string
	StartedAt   time.Time
	CompletedAt *time.Time
	Status      string
	StopsCount  int
	RoutesCount int
	TripsCount  int
	StopTimes   int
	ErrorMsg    string
}

package gtfs

import (
	"archive/zip"
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/passbi/passbi_chart/internal/models"
	"go.uber.org/zap"
)

func init() {
	gocsv.SetCSVReader(gtfsCSVReader)
}

// GTFS allows optional columns, so rows may be shorter than the header.
// Feeds exported from spreadsheets frequently start with a UTF-8 BOM.
func gtfsCSVReader(in io.Reader) gocsv.CSVReader {
	csvReader := csv.NewReader(stripBOM(in))
	csvReader.FieldsPerRecord = -1
	csvReader.TrimLeadingSpace = true
	return csvReader
}

func stripBOM(in io.Reader) io.Reader {
	br := bufio.NewReader(in)
	if b, err := br.Peek(3); err == nil && string(b) == "\xef\xbb\xbf" {
		br.Discard(3)
	}
	return br
}

// CSV rows keep every column as text; conversion happens in the to* mappers
// so that a single bad value skips one row instead of failing the file.

type stopRow struct {
	StopID        string `csv:"stop_id"`
	StopCode      string `csv:"stop_code"`
	StopName      string `csv:"stop_name"`
	StopLat       string `csv:"stop_lat"`
	StopLon       string `csv:"stop_lon"`
	LocationType  string `csv:"location_type"`
	ParentStation string `csv:"parent_station"`
	PlatformCode  string `csv:"platform_code"`
}

type routeRow struct {
	RouteID        string `csv:"route_id"`
	AgencyID       string `csv:"agency_id"`
	RouteShortName string `csv:"route_short_name"`
	RouteLongName  string `csv:"route_long_name"`
	RouteType      string `csv:"route_type"`
	RouteColor     string `csv:"route_color"`
}

type tripRow struct {
	RouteID       string `csv:"route_id"`
	ServiceID     string `csv:"service_id"`
	TripID        string `csv:"trip_id"`
	TripHeadsign  string `csv:"trip_headsign"`
	TripShortName string `csv:"trip_short_name"`
	DirectionID   string `csv:"direction_id"`
	BlockID       string `csv:"block_id"`
	ShapeID       string `csv:"shape_id"`
}

type stopTimeRow struct {
	TripID        string `csv:"trip_id"`
	ArrivalTime   string `csv:"arrival_time"`
	DepartureTime string `csv:"departure_time"`
	StopID        string `csv:"stop_id"`
	StopSequence  string `csv:"stop_sequence"`
	StopHeadsign  string `csv:"stop_headsign"`
}

// Parser reads GTFS tables into models rows
type Parser struct {
	logger *zap.Logger
}

// NewParser creates a parser logging row-level warnings to logger
func NewParser(logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{logger: logger}
}

// ParseZip parses the tables of a GTFS ZIP file
func (p *Parser) ParseZip(zipPath string) (*models.Feed, error) {
	reader, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open zip: %w", err)
	}
	defer reader.Close()

	files := make(map[string]*zip.File)
	for _, file := range reader.File {
		if file.FileInfo().IsDir() {
			continue
		}
		files[strings.ToLower(filepath.Base(file.Name))] = file
	}

	return p.parseTables(func(name string) (io.ReadCloser, error) {
		file, ok := files[name]
		if !ok {
			return nil, os.ErrNotExist
		}
		return file.Open()
	})
}

// ParseDir parses the tables of an extracted GTFS directory
func (p *Parser) ParseDir(dir string) (*models.Feed, error) {
	return p.parseTables(func(name string) (io.ReadCloser, error) {
		return os.Open(filepath.Join(dir, name))
	})
}

func (p *Parser) parseTables(open func(name string) (io.ReadCloser, error)) (*models.Feed, error) {
	feed := &models.Feed{}

	// Parse stops (required)
	if err := p.parseFile(open, "stops.txt", func(r io.Reader) (err error) {
		feed.Stops, err = p.ParseStops(r)
		return err
	}); err != nil {
		return nil, fmt.Errorf("failed to parse stops (required): %w", err)
	}
	p.logger.Info("parsed stops", zap.Int("count", len(feed.Stops)))

	// Parse routes (optional, only used for display labels)
	if err := p.parseFile(open, "routes.txt", func(r io.Reader) (err error) {
		feed.Routes, err = p.ParseRoutes(r)
		return err
	}); err != nil {
		p.logger.Warn("failed to parse routes", zap.Error(err))
	} else {
		p.logger.Info("parsed routes", zap.Int("count", len(feed.Routes)))
	}

	// Parse trips (required)
	if err := p.parseFile(open, "trips.txt", func(r io.Reader) (err error) {
		feed.Trips, err = p.ParseTrips(r)
		return err
	}); err != nil {
		return nil, fmt.Errorf("failed to parse trips (required): %w", err)
	}
	p.logger.Info("parsed trips", zap.Int("count", len(feed.Trips)))

	// Parse stop_times (required)
	if err := p.parseFile(open, "stop_times.txt", func(r io.Reader) (err error) {
		feed.StopTimes, err = p.ParseStopTimes(r)
		return err
	}); err != nil {
		return nil, fmt.Errorf("failed to parse stop_times (required): %w", err)
	}
	p.logger.Info("parsed stop_times", zap.Int("count", len(feed.StopTimes)))

	return feed, nil
}

func (p *Parser) parseFile(open func(string) (io.ReadCloser, error), name string, parse func(io.Reader) error) error {
	rc, err := open(name)
	if err != nil {
		return err
	}
	defer rc.Close()
	return parse(rc)
}

// ParseStops parses the contents of stops.txt
func (p *Parser) ParseStops(reader io.Reader) ([]models.Stop, error) {
	var rows []*stopRow
	if err := gocsv.Unmarshal(reader, &rows); err != nil {
		return nil, err
	}

	stops := make([]models.Stop, 0, len(rows))
	for _, row := range rows {
		stopID := strings.TrimSpace(row.StopID)
		if stopID == "" {
			p.logger.Warn("skipping stop without stop_id")
			continue
		}

		// Coordinates are not used by the chart, a bad value is not a reason to lose the stop name.
		lat, err := parseOptionalFloat(row.StopLat)
		if err != nil {
			p.logger.Warn("invalid latitude", zap.String("stop_id", stopID), zap.Error(err))
		}
		lon, err := parseOptionalFloat(row.StopLon)
		if err != nil {
			p.logger.Warn("invalid longitude", zap.String("stop_id", stopID), zap.Error(err))
		}

		stops = append(stops, models.Stop{
			StopID:        stopID,
			StopCode:      optionalString(row.StopCode),
			StopName:      optionalString(row.StopName),
			StopLat:       lat,
			StopLon:       lon,
			LocationType:  optionalInt(row.LocationType),
			ParentStation: optionalString(row.ParentStation),
			PlatformCode:  optionalString(row.PlatformCode),
		})
	}

	return stops, nil
}

// ParseRoutes parses the contents of routes.txt
func (p *Parser) ParseRoutes(reader io.Reader) ([]models.Route, error) {
	var rows []*routeRow
	if err := gocsv.Unmarshal(reader, &rows); err != nil {
		return nil, err
	}

	routes := make([]models.Route, 0, len(rows))
	for _, row := range rows {
		routeID := strings.TrimSpace(row.RouteID)
		if routeID == "" {
			continue
		}

		routeType, _ := strconv.Atoi(strings.TrimSpace(row.RouteType))

		routes = append(routes, models.Route{
			RouteID:        routeID,
			AgencyID:       optionalString(row.AgencyID),
			RouteShortName: optionalString(row.RouteShortName),
			RouteLongName:  optionalString(row.RouteLongName),
			RouteType:      routeType,
			RouteColor:     optionalString(row.RouteColor),
		})
	}

	return routes, nil
}

// ParseTrips parses the contents of trips.txt
func (p *Parser) ParseTrips(reader io.Reader) ([]models.Trip, error) {
	var rows []*tripRow
	if err := gocsv.Unmarshal(reader, &rows); err != nil {
		return nil, err
	}

	trips := make([]models.Trip, 0, len(rows))
	for _, row := range rows {
		tripID := strings.TrimSpace(row.TripID)
		routeID := strings.TrimSpace(row.RouteID)

		if tripID == "" || routeID == "" {
			p.logger.Warn("skipping trip with missing required fields", zap.String("trip_id", tripID))
			continue
		}

		trips = append(trips, models.Trip{
			TripID:        tripID,
			RouteID:       routeID,
			ServiceID:     strings.TrimSpace(row.ServiceID),
			TripHeadsign:  strings.TrimSpace(row.TripHeadsign),
			TripShortName: optionalString(row.TripShortName),
			DirectionID:   optionalInt(row.DirectionID),
			BlockID:       optionalString(row.BlockID),
			ShapeID:       optionalString(row.ShapeID),
		})
	}

	return trips, nil
}

// ParseStopTimes parses the contents of stop_times.txt. Arrival and departure
// strings are kept verbatim; they are validated when the pipeline joins them.
func (p *Parser) ParseStopTimes(reader io.Reader) ([]models.StopTime, error) {
	var rows []*stopTimeRow
	if err := gocsv.Unmarshal(reader, &rows); err != nil {
		return nil, err
	}

	stopTimes := make([]models.StopTime, 0, len(rows))
	for _, row := range rows {
		tripID := strings.TrimSpace(row.TripID)
		stopID := strings.TrimSpace(row.StopID)
		seqStr := strings.TrimSpace(row.StopSequence)

		if tripID == "" || stopID == "" || seqStr == "" {
			continue
		}

		sequence, err := strconv.Atoi(seqStr)
		if err != nil {
			p.logger.Warn("invalid stop_sequence", zap.String("trip_id", tripID), zap.Error(err))
			continue
		}

		stopTimes = append(stopTimes, models.StopTime{
			TripID:        tripID,
			StopID:        stopID,
			ArrivalTime:   strings.TrimSpace(row.ArrivalTime),
			DepartureTime: strings.TrimSpace(row.DepartureTime),
			StopSequence:  sequence,
			StopHeadsign:  optionalString(row.StopHeadsign),
		})
	}

	return stopTimes, nil
}

// Helper functions

func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func optionalInt(s string) *int {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &v
}

func parseOptionalFloat(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

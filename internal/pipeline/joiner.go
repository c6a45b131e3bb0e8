package pipeline

import (
	"time"

	"github.com/passbi/passbi_chart/internal/gtfs"
	"github.com/passbi/passbi_chart/internal/models"
	"go.uber.org/zap"
)

// Report counts the rows the pipeline degraded or rejected
type Report struct {
	StopTimes      int `json:"stop_times"`
	Enriched       int `json:"enriched"`
	MalformedTimes int `json:"malformed_times"`
	MissingStops   int `json:"missing_stops"`
	OrphanRows     int `json:"orphan_rows"`
}

// Joiner holds read-only lookups over one feed
type Joiner struct {
	stopsByID  map[string]models.Stop
	routesByID map[string]models.Route
	tripsByID  map[string]models.Trip
	logger     *zap.Logger
}

// NewJoiner indexes stops, routes and trips by id. routes may be nil.
func NewJoiner(stops []models.Stop, routes []models.Route, trips []models.Trip, logger *zap.Logger) *Joiner {
	if logger == nil {
		logger = zap.NewNop()
	}

	j := &Joiner{
		stopsByID:  make(map[string]models.Stop, len(stops)),
		routesByID: make(map[string]models.Route, len(routes)),
		tripsByID:  make(map[string]models.Trip, len(trips)),
		logger:     logger,
	}
	for _, s := range stops {
		j.stopsByID[s.StopID] = s
	}
	for _, r := range routes {
		j.routesByID[r.RouteID] = r
	}
	for _, t := range trips {
		j.tripsByID[t.TripID] = t
	}
	return j
}

// RouteShortName returns the display name of a route, nil when unknown
func (j *Joiner) RouteShortName(routeID string) *string {
	if r, ok := j.routesByID[routeID]; ok {
		return r.RouteShortName
	}
	return nil
}

// Enrich expands stop_times into enriched rows. Bad rows are handled one at a time:
// an unparseable time drops the row, an unknown stop keeps the row with nil display fields.
func (j *Joiner) Enrich(stopTimes []models.StopTime, ref time.Time) ([]models.EnrichedStop, Report) {
	report := Report{StopTimes: len(stopTimes)}
	rows := make([]models.EnrichedStop, 0, len(stopTimes))

	for _, st := range stopTimes {
		trip, ok := j.tripsByID[st.TripID]
		if !ok {
			report.OrphanRows++
			j.logger.Debug("skipping stop_time of unknown trip", zap.String("trip_id", st.TripID))
			continue
		}

		depRaw := st.DepartureTime
		if depRaw == "" {
			depRaw = st.ArrivalTime
		}

		arr, err := gtfs.ParseToSeconds(st.ArrivalTime)
		if err != nil {
			report.MalformedTimes++
			j.logger.Warn("skipping stop_time with malformed arrival",
				zap.String("trip_id", st.TripID), zap.Int("stop_sequence", st.StopSequence), zap.Error(err))
			continue
		}
		dep, err := gtfs.ParseToSeconds(depRaw)
		if err != nil {
			report.MalformedTimes++
			j.logger.Warn("skipping stop_time with malformed departure",
				zap.String("trip_id", st.TripID), zap.Int("stop_sequence", st.StopSequence), zap.Error(err))
			continue
		}

		row := models.EnrichedStop{
			TripID:                st.TripID,
			StopID:                st.StopID,
			StopSequence:          st.StopSequence,
			ArrivalTime:           st.ArrivalTime,
			DepartureTime:         depRaw,
			ArrivalTimestamp:      arr,
			DepartureTimestamp:    dep,
			OriginalArrivalTime:   gtfs.SecondsToCalendarTime(arr, ref),
			OriginalDepartureTime: gtfs.SecondsToCalendarTime(dep, ref),
			TripHeadsign:          trip.TripHeadsign,
			RouteID:               trip.RouteID,
			RouteShortName:        j.RouteShortName(trip.RouteID),
		}

		if stop, ok := j.stopsByID[st.StopID]; ok {
			lat, lon := stop.StopLat, stop.StopLon
			row.StopName = stop.StopName
			row.StopCode = stop.StopCode
			row.PlatformCode = stop.PlatformCode
			row.ParentStation = stop.ParentStation
			row.StopLat = &lat
			row.StopLon = &lon
		} else {
			report.MissingStops++
			j.logger.Debug("stop_time references unknown stop",
				zap.String("trip_id", st.TripID), zap.String("stop_id", st.StopID))
		}

		rows = append(rows, row)
	}

	report.Enriched = len(rows)
	return rows, report
}

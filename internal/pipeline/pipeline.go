package pipeline

import (
	"errors"
	"time"

	"github.com/passbi/passbi_chart/internal/gtfs"
	"github.com/passbi/passbi_chart/internal/models"
	"go.uber.org/zap"
)

var (
	// ErrNoFeed is returned when Run is called without ingested tables
	ErrNoFeed = errors.New("no feed to process")
	// ErrNoReferenceDate is returned when Options carries no reference date
	ErrNoReferenceDate = errors.New("reference date is required")
)

// Selection is what the user picked on the control surface
type Selection struct {
	Routes          []string `json:"routes"`
	StartHour       float64  `json:"start_hour"`
	EndHour         float64  `json:"end_hour"`
	StationsVisible bool     `json:"stations_visible"`
}

// Window returns the selection's time window in elapsed seconds
func (s Selection) Window() (start, end int) {
	return gtfs.HoursToSeconds(s.StartHour), gtfs.HoursToSeconds(s.EndHour)
}

// Options are the feed-specific conventions of a run
type Options struct {
	Labels        LabelMapper
	ReferenceDate time.Time // day calendar times are anchored to; required
	Logger        *zap.Logger
}

// Result is the output of one pipeline run
type Result struct {
	Trips  []models.ProcessedTrip `json:"trips"`
	Report Report                 `json:"report"`
}

// Run reshapes the raw tables for one selection. It has no side effects;
// calling it twice with the same arguments yields the same result.
func Run(feed *models.Feed, sel Selection, opts Options) (*Result, error) {
	if feed == nil {
		return nil, ErrNoFeed
	}
	ref := opts.ReferenceDate
	if ref.IsZero() {
		return nil, ErrNoReferenceDate
	}

	trips := SelectRoutes(feed.Trips, sel.Routes, opts.Labels)

	selected := make(map[string]bool, len(trips))
	for _, t := range trips {
		selected[t.TripID] = true
	}
	stopTimes := make([]models.StopTime, 0)
	for _, st := range feed.StopTimes {
		if selected[st.TripID] {
			stopTimes = append(stopTimes, st)
		}
	}

	joiner := NewJoiner(feed.Stops, feed.Routes, trips, opts.Logger)
	rows, report := joiner.Enrich(stopTimes, ref)

	start, end := sel.Window()
	rows = WindowStopTimes(rows, start, end)

	return &Result{
		Trips:  GroupAndPrune(trips, rows, joiner.RouteShortName),
		Report: report,
	}, nil
}

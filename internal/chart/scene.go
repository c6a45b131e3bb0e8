package chart

import (
	"fmt"
	"time"

	"github.com/passbi/passbi_chart/internal/gtfs"
	"github.com/passbi/passbi_chart/internal/models"
)

// State tells a rendered chart apart from an empty selection
type State string

const (
	StateReady State = "ready"
	StateEmpty State = "empty"
)

const (
	DefaultOuterWidth    = 1280
	DefaultOuterHeight   = 4000
	DefaultStationRadius = 3
	DefaultTickInterval  = 30 * time.Minute
)

// Margins around the plot area, in pixels
type Margins struct {
	Top    float64 `json:"top" yaml:"top"`
	Right  float64 `json:"right" yaml:"right"`
	Bottom float64 `json:"bottom" yaml:"bottom"`
	Left   float64 `json:"left" yaml:"left"`
}

// Layout fixes the geometry and presentation constants of a scene
type Layout struct {
	OuterWidth    float64
	OuterHeight   float64
	Margins       Margins
	Padding       float64
	BreakFraction float64
	TickInterval  time.Duration
	StationRadius float64
	Palette       []string
}

// DefaultLayout returns the standard 1280x4000 chart
func DefaultLayout() Layout {
	return Layout{
		OuterWidth:    DefaultOuterWidth,
		OuterHeight:   DefaultOuterHeight,
		Margins:       Margins{Top: 100, Right: 50, Bottom: 50, Left: 100},
		Padding:       DefaultPadding,
		BreakFraction: DefaultBreakFraction,
		TickInterval:  DefaultTickInterval,
		StationRadius: DefaultStationRadius,
		Palette:       Category10,
	}
}

// Width of the plot area
func (l Layout) Width() float64 { return l.OuterWidth - l.Margins.Left - l.Margins.Right }

// Height of the plot area
func (l Layout) Height() float64 { return l.OuterHeight - l.Margins.Top - l.Margins.Bottom }

// Tooltip is the hover text of one stop event
type Tooltip struct {
	Title     string `json:"title"`
	Stop      string `json:"stop"`
	Arrival   string `json:"arrival"`
	Departure string `json:"departure"`
}

// Lines renders the tooltip as displayed
func (t Tooltip) Lines() []string {
	return []string{
		t.Title,
		t.Stop,
		"Ankunft: " + t.Arrival,
		"Abfahrt: " + t.Departure,
	}
}

// Point is one stop event projected into the plot area
type Point struct {
	TripID       string  `json:"trip_id"`
	RouteID      string  `json:"route_id"`
	StopID       string  `json:"stop_id"`
	StopSequence int     `json:"stop_sequence"`
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	Tooltip      Tooltip `json:"tooltip"`
}

// Marker is a station circle
type Marker struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Radius float64 `json:"r"`
}

// TripShape is the drawable form of one trip
type TripShape struct {
	TripID  string    `json:"trip_id"`
	RouteID string    `json:"route_id"`
	Color   string    `json:"color"`
	Lines   TripLines `json:"lines"`
}

// Scene is everything needed to draw and hover one chart
type Scene struct {
	State       State             `json:"state"`
	OuterWidth  float64           `json:"outer_width"`
	OuterHeight float64           `json:"outer_height"`
	Width       float64           `json:"width"`
	Height      float64           `json:"height"`
	Margins     Margins           `json:"margins"`
	Bandwidth   float64           `json:"bandwidth"`
	Bands       []Band            `json:"bands"`
	Ticks       []Tick            `json:"ticks"`
	TimeStart   time.Time         `json:"time_start"`
	TimeEnd     time.Time         `json:"time_end"`
	Colors      map[string]string `json:"colors"`
	Trips       []TripShape       `json:"trips"`
	Points      []Point           `json:"points"`
	Stations    []Marker          `json:"stations,omitempty"`

	index *SpatialIndex
}

// Build projects processed trips into a scene. It does not modify trips.
func Build(trips []models.ProcessedTrip, layout Layout, stationsVisible bool) *Scene {
	scene := &Scene{
		State:       StateEmpty,
		OuterWidth:  layout.OuterWidth,
		OuterHeight: layout.OuterHeight,
		Width:       layout.Width(),
		Height:      layout.Height(),
		Margins:     layout.Margins,
		Bands:       []Band{},
		Ticks:       []Tick{},
		Colors:      map[string]string{},
		Trips:       []TripShape{},
		Points:      []Point{},
	}
	if len(trips) == 0 {
		scene.index = NewSpatialIndex(nil)
		return scene
	}
	scene.State = StateReady

	var names []string
	var arrivals []time.Time
	routeIDs := make([]string, 0, len(trips))
	for _, trip := range trips {
		routeIDs = append(routeIDs, trip.RouteID)
		for _, stop := range trip.Stops {
			if stop.StopName != nil {
				names = append(names, *stop.StopName)
			}
			arrivals = append(arrivals, stop.OriginalArrivalTime)
		}
	}

	x := NewBandScale(names, scene.Width, layout.Padding)
	y := NewTimeScale(arrivals, scene.Height)
	colors := NewColorScale(routeIDs, layout.Palette)
	segments := NewSegmentBuilder(x, y, layout.BreakFraction)

	scene.Bandwidth = x.Bandwidth()
	scene.Bands = x.Bands()
	scene.TimeStart, scene.TimeEnd = y.Domain()
	scene.Ticks = y.Ticks(layout.TickInterval)

	for _, trip := range trips {
		scene.Trips = append(scene.Trips, TripShape{
			TripID:  trip.TripID,
			RouteID: trip.RouteID,
			Color:   colors.Color(trip.RouteID),
			Lines:   segments.Build(trip),
		})

		title := tripTitle(trip)
		for _, stop := range trip.Stops {
			if stop.StopName == nil {
				continue
			}
			cx, ok := x.Center(*stop.StopName)
			if !ok {
				continue
			}
			p := Point{
				TripID:       trip.TripID,
				RouteID:      trip.RouteID,
				StopID:       stop.StopID,
				StopSequence: stop.StopSequence,
				X:            cx,
				Y:            y.Map(stop.OriginalArrivalTime),
				Tooltip: Tooltip{
					Title:     title,
					Stop:      *stop.StopName,
					Arrival:   gtfs.FormatClock(stop.OriginalArrivalTime),
					Departure: gtfs.FormatClock(stop.OriginalDepartureTime),
				},
			}
			scene.Points = append(scene.Points, p)
			if stationsVisible {
				scene.Stations = append(scene.Stations, Marker{X: p.X, Y: p.Y, Radius: layout.StationRadius})
			}
		}
	}
	scene.Colors = colors.Legend()
	scene.index = NewSpatialIndex(scene.Points)
	return scene
}

// tripTitle falls back to the route id when the route has no short name
func tripTitle(trip models.ProcessedTrip) string {
	short := trip.RouteID
	if trip.RouteShortName != nil {
		short = *trip.RouteShortName
	}
	return fmt.Sprintf("%s nach %s", short, trip.TripHeadsign)
}

// Reindex rebuilds the hover index, e.g. after the scene was decoded from JSON
func (s *Scene) Reindex() {
	s.index = NewSpatialIndex(s.Points)
}

// Nearest returns the point under the pointer position (x, y) in plot coordinates
func (s *Scene) Nearest(x, y float64) (Point, bool) {
	if s.index == nil {
		return Point{}, false
	}
	i, ok := s.index.Nearest(x, y)
	if !ok {
		return Point{}, false
	}
	return s.Points[i], true
}

// Within returns the points inside the rectangle in plot coordinates, in point order
func (s *Scene) Within(minX, minY, maxX, maxY float64) []Point {
	points := []Point{}
	if s.index == nil {
		return points
	}
	for _, i := range s.index.Within(minX, minY, maxX, maxY) {
		points = append(points, s.Points[i])
	}
	return points
}

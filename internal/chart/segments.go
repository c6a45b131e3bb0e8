package chart

import (
	"math"
	"time"

	"github.com/passbi/passbi_chart/internal/models"
)

// DefaultBreakFraction is the share of the chart width beyond which two
// consecutive vertices of a line are not joined.
const DefaultBreakFraction = 1.0 / 3.0

// Vertex is one projected point of a trip line
type Vertex struct {
	StopName  string    `json:"stop_name"`
	StopIndex int       `json:"stop_index"`
	Time      time.Time `json:"time"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Connected bool      `json:"connected"`
}

// Polyline is a run of connected vertices
type Polyline struct {
	Vertices []Vertex `json:"vertices"`
}

// TripLines holds both line families of one trip
type TripLines struct {
	Direct []Polyline `json:"direct"`
	Dwell  []Polyline `json:"dwell"`
}

// SegmentBuilder turns ordered trip stops into polylines
type SegmentBuilder struct {
	x             *BandScale
	y             *TimeScale
	breakDistance float64
}

// NewSegmentBuilder creates a builder. A non-positive breakFraction uses DefaultBreakFraction.
func NewSegmentBuilder(x *BandScale, y *TimeScale, breakFraction float64) *SegmentBuilder {
	if breakFraction <= 0 {
		breakFraction = DefaultBreakFraction
	}
	return &SegmentBuilder{
		x:             x,
		y:             y,
		breakDistance: breakFraction * x.Width(),
	}
}

// vertex projects one stop event, false when the stop has no band
func (b *SegmentBuilder) vertex(name *string, t time.Time) (Vertex, bool) {
	if name == nil {
		return Vertex{}, false
	}
	cx, ok := b.x.Center(*name)
	if !ok {
		return Vertex{}, false
	}
	idx, _ := b.x.Index(*name)
	return Vertex{
		StopName:  *name,
		StopIndex: idx,
		Time:      t,
		X:         cx,
		Y:         b.y.Map(t),
	}, true
}

// DirectVertices walks the stops at their arrival times
func (b *SegmentBuilder) DirectVertices(stops []models.EnrichedStop) []Vertex {
	vertices := make([]Vertex, 0, len(stops))
	for _, stop := range stops {
		if v, ok := b.vertex(stop.StopName, stop.OriginalArrivalTime); ok {
			vertices = append(vertices, v)
		}
	}
	return b.connect(vertices)
}

// DwellVertices alternates departure at stop i with arrival at stop i+1.
// Departure and arrival ordering is taken as given.
func (b *SegmentBuilder) DwellVertices(stops []models.EnrichedStop) []Vertex {
	vertices := []Vertex{}
	for i := 0; i+1 < len(stops); i++ {
		if v, ok := b.vertex(stops[i].StopName, stops[i].OriginalDepartureTime); ok {
			vertices = append(vertices, v)
		}
		if v, ok := b.vertex(stops[i+1].StopName, stops[i+1].OriginalArrivalTime); ok {
			vertices = append(vertices, v)
		}
	}
	return b.connect(vertices)
}

// connect marks each vertex connected when it is close on the stop axis to the
// vertex before it. The first vertex is always connected. On a two-band axis the
// bands sit more than a third of the width apart, so the x-distance rule alone
// would never draw a line there; neighbouring bands are joined in that case only.
func (b *SegmentBuilder) connect(vertices []Vertex) []Vertex {
	twoBands := b.x.Len() == 2
	for i := range vertices {
		if i == 0 {
			vertices[i].Connected = true
			continue
		}
		prev := vertices[i-1]
		dx := math.Abs(vertices[i].X - prev.X)
		adjacent := twoBands && absInt(vertices[i].StopIndex-prev.StopIndex) <= 1
		vertices[i].Connected = dx < b.breakDistance || adjacent
	}
	return vertices
}

// Split returns the runs of connected vertices. A disconnected vertex is left out
// and ends the run before it; runs of a single vertex draw nothing and are dropped.
func Split(vertices []Vertex) []Polyline {
	lines := []Polyline{}
	var current []Vertex
	flush := func() {
		if len(current) > 1 {
			lines = append(lines, Polyline{Vertices: current})
		}
		current = nil
	}
	for _, v := range vertices {
		if !v.Connected {
			flush()
			continue
		}
		current = append(current, v)
	}
	flush()
	return lines
}

// Build produces both line families of a trip
func (b *SegmentBuilder) Build(trip models.ProcessedTrip) TripLines {
	return TripLines{
		Direct: Split(b.DirectVertices(trip.Stops)),
		Dwell:  Split(b.DwellVertices(trip.Stops)),
	}
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

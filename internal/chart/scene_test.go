package chart

import (
	"encoding/json"
	"testing"

	"github.com/passbi/passbi_chart/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sceneTrips() []models.ProcessedTrip {
	return []models.ProcessedTrip{
		{
			TripID:         "t1",
			RouteID:        "1",
			TripHeadsign:   "B",
			RouteShortName: strPtr("S1"),
			Stops: []models.EnrichedStop{
				{StopID: "s1", StopSequence: 1, StopName: strPtr("A"), OriginalArrivalTime: clock(8, 0), OriginalDepartureTime: clock(8, 1)},
				{StopID: "s2", StopSequence: 2, StopName: strPtr("B"), OriginalArrivalTime: clock(8, 10), OriginalDepartureTime: clock(8, 10)},
			},
		},
		{
			TripID:       "t2",
			RouteID:      "2",
			TripHeadsign: "A",
			Stops: []models.EnrichedStop{
				{StopID: "s3", StopSequence: 1, OriginalArrivalTime: clock(8, 2), OriginalDepartureTime: clock(8, 2)},
				{StopID: "s2", StopSequence: 2, StopName: strPtr("B"), OriginalArrivalTime: clock(8, 5), OriginalDepartureTime: clock(8, 6)},
			},
		},
	}
}

func TestLayout(t *testing.T) {
	layout := DefaultLayout()
	assert.Equal(t, 1130.0, layout.Width())
	assert.Equal(t, 3850.0, layout.Height())
}

func TestBuildEmpty(t *testing.T) {
	scene := Build(nil, DefaultLayout(), true)

	assert.Equal(t, StateEmpty, scene.State)
	assert.Equal(t, 1130.0, scene.Width)
	assert.NotNil(t, scene.Bands)
	assert.NotNil(t, scene.Trips)
	assert.Empty(t, scene.Points)
	assert.Empty(t, scene.Stations)

	_, ok := scene.Nearest(10, 10)
	assert.False(t, ok)
}

func TestBuild(t *testing.T) {
	scene := Build(sceneTrips(), DefaultLayout(), false)

	assert.Equal(t, StateReady, scene.State)
	require.Len(t, scene.Bands, 2)
	assert.Equal(t, "A", scene.Bands[0].Name)
	assert.Equal(t, "B", scene.Bands[1].Name)
	assert.InDelta(t, 1130/2.1*0.9, scene.Bandwidth, 1e-9)
	assert.Equal(t, clock(8, 0), scene.TimeStart)
	assert.Equal(t, clock(8, 10), scene.TimeEnd)
	require.Len(t, scene.Ticks, 1)
	assert.Equal(t, "08:00", scene.Ticks[0].Label)

	assert.Equal(t, map[string]string{"1": Category10[0], "2": Category10[1]}, scene.Colors)

	require.Len(t, scene.Trips, 2)
	assert.Equal(t, Category10[1], scene.Trips[1].Color)
	require.Len(t, scene.Trips[0].Lines.Direct, 1)
	assert.Len(t, scene.Trips[0].Lines.Direct[0].Vertices, 2)
	// The unnamed stop has no band, leaving a single vertex and no line
	assert.Empty(t, scene.Trips[1].Lines.Direct)

	require.Len(t, scene.Points, 3)
	assert.Nil(t, scene.Stations)

	first := scene.Points[0]
	assert.Equal(t, 0.0, first.Y)
	assert.Equal(t, []string{"S1 nach B", "A", "Ankunft: 08:00", "Abfahrt: 08:01"}, first.Tooltip.Lines())

	// Without a short name the title uses the route id
	assert.Equal(t, "2 nach A", scene.Points[2].Tooltip.Title)
	assert.Equal(t, "08:06", scene.Points[2].Tooltip.Departure)
}

func TestBuildStations(t *testing.T) {
	scene := Build(sceneTrips(), DefaultLayout(), true)

	require.Len(t, scene.Stations, len(scene.Points))
	for i, m := range scene.Stations {
		assert.Equal(t, scene.Points[i].X, m.X)
		assert.Equal(t, scene.Points[i].Y, m.Y)
		assert.Equal(t, float64(DefaultStationRadius), m.Radius)
	}
}

func TestBuildDoesNotModifyTrips(t *testing.T) {
	trips := sceneTrips()
	before, err := json.Marshal(trips)
	require.NoError(t, err)

	Build(trips, DefaultLayout(), true)

	after, err := json.Marshal(trips)
	require.NoError(t, err)
	assert.JSONEq(t, string(before), string(after))
}

func TestSceneNearest(t *testing.T) {
	scene := Build(sceneTrips(), DefaultLayout(), false)

	target := scene.Points[1]
	p, ok := scene.Nearest(target.X+3, target.Y-2)
	require.True(t, ok)
	assert.Equal(t, "t1", p.TripID)
	assert.Equal(t, "s2", p.StopID)

	t.Run("After JSON round trip", func(t *testing.T) {
		data, err := json.Marshal(scene)
		require.NoError(t, err)

		var decoded Scene
		require.NoError(t, json.Unmarshal(data, &decoded))

		_, ok := decoded.Nearest(target.X, target.Y)
		assert.False(t, ok)

		decoded.Reindex()
		p, ok := decoded.Nearest(target.X, target.Y)
		require.True(t, ok)
		assert.Equal(t, "s2", p.StopID)
	})
}

func TestSceneWithin(t *testing.T) {
	scene := Build(sceneTrips(), DefaultLayout(), false)

	target := scene.Points[1]
	found := scene.Within(target.X-1, target.Y-1, target.X+1, target.Y+1)
	require.Len(t, found, 1)
	assert.Equal(t, "s2", found[0].StopID)

	assert.Len(t, scene.Within(-10, -10, scene.Width+10, scene.Height+10), len(scene.Points))

	t.Run("Without index", func(t *testing.T) {
		var decoded Scene
		assert.NotNil(t, decoded.Within(0, 0, 100, 100))
		assert.Empty(t, decoded.Within(0, 0, 100, 100))
	})
}

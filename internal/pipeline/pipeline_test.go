package pipeline

import (
	"testing"

	"github.com/passbi/passbi_chart/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fullDay(routes ...string) Selection {
	return Selection{Routes: routes, StartHour: 0, EndHour: 24}
}

func TestRun(t *testing.T) {
	t.Run("Single trip in window", func(t *testing.T) {
		result, err := Run(scenarioFeed(), fullDay("1"), Options{ReferenceDate: refDate})
		require.NoError(t, err)
		require.Len(t, result.Trips, 1)

		trip := result.Trips[0]
		assert.Equal(t, "t1", trip.TripID)
		require.Len(t, trip.Stops, 2)
		assert.Equal(t, "A", *trip.Stops[0].StopName)
		assert.Equal(t, "B", *trip.Stops[1].StopName)
		require.NotNil(t, trip.RouteShortName)
		assert.Equal(t, "S1", *trip.RouteShortName)
	})

	t.Run("Window after last arrival", func(t *testing.T) {
		sel := fullDay("1")
		sel.StartHour = 9

		result, err := Run(scenarioFeed(), sel, Options{ReferenceDate: refDate})
		require.NoError(t, err)
		assert.NotNil(t, result.Trips)
		assert.Empty(t, result.Trips)
	})

	t.Run("Unknown stop still included", func(t *testing.T) {
		feed := scenarioFeed()
		feed.StopTimes = append(feed.StopTimes, models.StopTime{
			TripID: "t1", StopID: "s3", ArrivalTime: "08:20:00", DepartureTime: "08:20:00", StopSequence: 3,
		})

		result, err := Run(feed, fullDay("1"), Options{ReferenceDate: refDate})
		require.NoError(t, err)
		require.Len(t, result.Trips, 1)
		require.Len(t, result.Trips[0].Stops, 3)
		assert.Nil(t, result.Trips[0].Stops[2].StopName)
		assert.Equal(t, 1, result.Report.MissingStops)
		assert.Equal(t, 3, result.Report.Enriched)
	})

	t.Run("No routes selected", func(t *testing.T) {
		result, err := Run(scenarioFeed(), fullDay(), Options{ReferenceDate: refDate})
		require.NoError(t, err)
		assert.Empty(t, result.Trips)
		assert.Equal(t, 0, result.Report.StopTimes)
	})

	t.Run("Label mapping", func(t *testing.T) {
		result, err := Run(scenarioFeed(), fullDay("S1"), Options{ReferenceDate: refDate, Labels: StripPrefix(1)})
		require.NoError(t, err)
		assert.Len(t, result.Trips, 1)
	})

	t.Run("Nil feed", func(t *testing.T) {
		_, err := Run(nil, fullDay("1"), Options{})
		assert.ErrorIs(t, err, ErrNoFeed)
	})

	t.Run("Missing reference date", func(t *testing.T) {
		_, err := Run(scenarioFeed(), fullDay("1"), Options{})
		assert.ErrorIs(t, err, ErrNoReferenceDate)
	})
}

func TestRunIsIdempotent(t *testing.T) {
	feed := scenarioFeed()
	opts := Options{ReferenceDate: refDate}

	first, err := Run(feed, fullDay("1"), opts)
	require.NoError(t, err)
	second, err := Run(feed, fullDay("1"), opts)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, feed.StopTimes, 2)
}

func TestRunKeepsOverlappingTimes(t *testing.T) {
	feed := scenarioFeed()
	// Departure from A after arrival at B is rendered as delivered
	feed.StopTimes[0].DepartureTime = "08:15:00"

	result, err := Run(feed, fullDay("1"), Options{ReferenceDate: refDate})
	require.NoError(t, err)
	require.Len(t, result.Trips, 1)

	stops := result.Trips[0].Stops
	assert.Equal(t, 29700, stops[0].DepartureTimestamp)
	assert.Equal(t, 29400, stops[1].ArrivalTimestamp)
}

func TestSelectionWindow(t *testing.T) {
	start, end := Selection{StartHour: 6.5, EndHour: 24}.Window()
	assert.Equal(t, 23400, start)
	assert.Equal(t, 86400, end)
}

package gtfs

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStops(t *testing.T) {
	p := NewParser(nil)

	t.Run("BOM and optional columns", func(t *testing.T) {
		input := "\xef\xbb\xbfstop_id,stop_name,stop_lat,stop_lon,platform_code\n" +
			"s1,Zürich HB,47.378,8.540,7\n" +
			"s2,Stadelhofen,47.366,8.548\n" +
			",No id,0,0,\n"

		stops, err := p.ParseStops(strings.NewReader(input))
		require.NoError(t, err)
		require.Len(t, stops, 2)

		assert.Equal(t, "s1", stops[0].StopID)
		require.NotNil(t, stops[0].StopName)
		assert.Equal(t, "Zürich HB", *stops[0].StopName)
		require.NotNil(t, stops[0].PlatformCode)
		assert.Equal(t, "7", *stops[0].PlatformCode)
		assert.InDelta(t, 47.378, stops[0].StopLat, 1e-9)

		assert.Nil(t, stops[1].PlatformCode)
		assert.Nil(t, stops[1].StopCode)
	})

	t.Run("Bad coordinate keeps stop", func(t *testing.T) {
		input := "stop_id,stop_name,stop_lat,stop_lon\ns1,A,north,8.5\n"
		stops, err := p.ParseStops(strings.NewReader(input))
		require.NoError(t, err)
		require.Len(t, stops, 1)
		assert.Equal(t, 0.0, stops[0].StopLat)
	})
}

func TestParseStopTimes(t *testing.T) {
	p := NewParser(nil)
	input := "trip_id,arrival_time,departure_time,stop_id,stop_sequence\n" +
		"t1,08:00:00,08:01:00,s1,1\n" +
		"t1,08:10:00,,s2,2\n" +
		"t1,08:20:00,08:20:00,s3,x\n" +
		"t1,25:10:00,25:11:00,s4,4\n" +
		",08:00:00,08:00:00,s1,1\n"

	stopTimes, err := p.ParseStopTimes(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, stopTimes, 3)

	assert.Equal(t, 1, stopTimes[0].StopSequence)
	assert.Equal(t, "08:01:00", stopTimes[0].DepartureTime)
	assert.Equal(t, "", stopTimes[1].DepartureTime)
	// Times are kept verbatim, even past midnight
	assert.Equal(t, "25:10:00", stopTimes[2].ArrivalTime)
}

func TestParseTrips(t *testing.T) {
	p := NewParser(nil)
	input := "route_id,service_id,trip_id,trip_headsign,direction_id\n" +
		"S1,wk,t1,Zug,0\n" +
		",wk,t2,Nowhere,1\n" +
		"S3,wk,t3,Wetzikon,\n"

	trips, err := p.ParseTrips(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, trips, 2)

	assert.Equal(t, "Zug", trips[0].TripHeadsign)
	require.NotNil(t, trips[0].DirectionID)
	assert.Equal(t, 0, *trips[0].DirectionID)
	assert.Nil(t, trips[1].DirectionID)
}

func TestParseRoutes(t *testing.T) {
	p := NewParser(nil)
	input := "route_id,route_short_name,route_type\nS1,S1,109\nS2,,2\n"

	routes, err := p.ParseRoutes(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, routes, 2)
	assert.Equal(t, 109, routes[0].RouteType)
	assert.Nil(t, routes[1].RouteShortName)
}

func writeFeedFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

var sampleFeed = map[string]string{
	"stops.txt":      "stop_id,stop_name,stop_lat,stop_lon\ns1,A,0,0\ns2,B,0,0\n",
	"routes.txt":     "route_id,route_short_name,route_type\n1,S1,109\n",
	"trips.txt":      "route_id,service_id,trip_id,trip_headsign\n1,wk,t1,B\n",
	"stop_times.txt": "trip_id,arrival_time,departure_time,stop_id,stop_sequence\nt1,08:00:00,08:01:00,s1,1\nt1,08:10:00,08:10:00,s2,2\n",
}

func TestFileSourceDir(t *testing.T) {
	dir := writeFeedFiles(t, sampleFeed)

	src := NewFileSource(dir, nil)
	assert.Equal(t, "gtfs:"+dir, src.Name())

	feed, err := src.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, feed.Stops, 2)
	assert.Len(t, feed.Routes, 1)
	assert.Len(t, feed.Trips, 1)
	assert.Len(t, feed.StopTimes, 2)
	assert.NotEmpty(t, feed.Version)
	assert.False(t, feed.LoadedAt.IsZero())

	again, err := src.Load(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, feed.Version, again.Version)
}

func TestFileSourceZip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.zip")
	f, err := os.Create(path)
	require.NoError(t, err)

	zw := zip.NewWriter(f)
	for name, content := range sampleFeed {
		// Some exporters nest the tables in a folder
		w, err := zw.Create("gtfs/" + name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	feed, err := NewFileSource(path, nil).Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, feed.StopTimes, 2)
}

func TestFileSourceMissingTables(t *testing.T) {
	t.Run("Routes optional", func(t *testing.T) {
		files := map[string]string{}
		for k, v := range sampleFeed {
			if k != "routes.txt" {
				files[k] = v
			}
		}
		feed, err := NewFileSource(writeFeedFiles(t, files), nil).Load(context.Background())
		require.NoError(t, err)
		assert.Empty(t, feed.Routes)
	})

	t.Run("Stop times required", func(t *testing.T) {
		files := map[string]string{}
		for k, v := range sampleFeed {
			if k != "stop_times.txt" {
				files[k] = v
			}
		}
		_, err := NewFileSource(writeFeedFiles(t, files), nil).Load(context.Background())
		assert.Error(t, err)
	})

	t.Run("Path does not exist", func(t *testing.T) {
		_, err := NewFileSource(filepath.Join(t.TempDir(), "missing.zip"), nil).Load(context.Background())
		assert.Error(t, err)
	})

	t.Run("Cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := NewFileSource(writeFeedFiles(t, sampleFeed), nil).Load(ctx)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

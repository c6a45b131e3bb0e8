package chart

import (
	"testing"
	"time"

	"github.com/passbi/passbi_chart/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func stopAt(name *string, seq int, arr, dep time.Time) models.EnrichedStop {
	return models.EnrichedStop{
		StopName:              name,
		StopSequence:          seq,
		OriginalArrivalTime:   arr,
		OriginalDepartureTime: dep,
	}
}

func TestDirectVerticesAdjacentBands(t *testing.T) {
	stops := []models.EnrichedStop{
		stopAt(strPtr("A"), 1, clock(8, 0), clock(8, 1)),
		stopAt(strPtr("B"), 2, clock(8, 10), clock(8, 10)),
	}
	x := NewBandScale([]string{"A", "B"}, 1130, DefaultPadding)
	y := NewTimeScale([]time.Time{clock(8, 0), clock(8, 10)}, 3850)
	b := NewSegmentBuilder(x, y, 0)

	vertices := b.DirectVertices(stops)
	require.Len(t, vertices, 2)
	assert.True(t, vertices[0].Connected)
	// Wider than a third of the chart, joined because the bands are neighbours
	assert.True(t, vertices[1].Connected)
	assert.Equal(t, 0.0, vertices[0].Y)
	assert.Equal(t, 3850.0, vertices[1].Y)

	lines := Split(vertices)
	require.Len(t, lines, 1)
	assert.Len(t, lines[0].Vertices, 2)
}

func TestDirectVerticesBreak(t *testing.T) {
	names := []string{"A", "B", "C", "D", "E"}
	x := NewBandScale(names, 1000, DefaultPadding)
	y := NewTimeScale([]time.Time{clock(8, 0), clock(9, 0)}, 600)
	b := NewSegmentBuilder(x, y, DefaultBreakFraction)

	stops := []models.EnrichedStop{
		stopAt(strPtr("A"), 1, clock(8, 0), clock(8, 0)),
		stopAt(strPtr("B"), 2, clock(8, 10), clock(8, 10)),
		stopAt(strPtr("E"), 3, clock(8, 20), clock(8, 20)),
		stopAt(strPtr("D"), 4, clock(8, 30), clock(8, 30)),
	}

	vertices := b.DirectVertices(stops)
	require.Len(t, vertices, 4)
	assert.Equal(t, []bool{true, true, false, true}, []bool{
		vertices[0].Connected, vertices[1].Connected, vertices[2].Connected, vertices[3].Connected,
	})

	// The far vertex E is dropped and D starts nothing on its own
	lines := Split(vertices)
	require.Len(t, lines, 1)
	require.Len(t, lines[0].Vertices, 2)
	assert.Equal(t, "A", lines[0].Vertices[0].StopName)
	assert.Equal(t, "B", lines[0].Vertices[1].StopName)

	t.Run("Wider threshold joins everything", func(t *testing.T) {
		wide := NewSegmentBuilder(x, y, 1)
		lines := Split(wide.DirectVertices(stops))
		require.Len(t, lines, 1)
		assert.Len(t, lines[0].Vertices, 4)
	})

	t.Run("Neighbouring bands follow the threshold on wider axes", func(t *testing.T) {
		narrow := NewSegmentBuilder(x, y, 0.05)
		vertices := narrow.DirectVertices(stops[:2])
		require.Len(t, vertices, 2)
		assert.False(t, vertices[1].Connected)
		assert.Empty(t, Split(vertices))
	})
}

func TestVerticesSkipUnnamedStops(t *testing.T) {
	x := NewBandScale([]string{"A", "B"}, 1130, DefaultPadding)
	y := NewTimeScale([]time.Time{clock(8, 0), clock(8, 20)}, 3850)
	b := NewSegmentBuilder(x, y, 0)

	stops := []models.EnrichedStop{
		stopAt(strPtr("A"), 1, clock(8, 0), clock(8, 1)),
		stopAt(nil, 2, clock(8, 10), clock(8, 11)),
		stopAt(strPtr("Z"), 3, clock(8, 15), clock(8, 15)),
		stopAt(strPtr("B"), 4, clock(8, 20), clock(8, 20)),
	}

	vertices := b.DirectVertices(stops)
	require.Len(t, vertices, 2)
	assert.Equal(t, "A", vertices[0].StopName)
	assert.Equal(t, "B", vertices[1].StopName)
}

func TestDwellVertices(t *testing.T) {
	x := NewBandScale([]string{"A", "B", "C"}, 900, DefaultPadding)
	y := NewTimeScale([]time.Time{clock(8, 0), clock(8, 20)}, 1200)
	b := NewSegmentBuilder(x, y, 0)

	stops := []models.EnrichedStop{
		stopAt(strPtr("A"), 1, clock(8, 0), clock(8, 1)),
		stopAt(strPtr("B"), 2, clock(8, 10), clock(8, 12)),
		stopAt(strPtr("C"), 3, clock(8, 20), clock(8, 20)),
	}

	vertices := b.DwellVertices(stops)
	require.Len(t, vertices, 4)

	expected := []struct {
		name string
		at   time.Time
	}{
		{"A", clock(8, 1)},
		{"B", clock(8, 10)},
		{"B", clock(8, 12)},
		{"C", clock(8, 20)},
	}
	for i, e := range expected {
		assert.Equal(t, e.name, vertices[i].StopName)
		assert.Equal(t, e.at, vertices[i].Time)
		assert.True(t, vertices[i].Connected)
	}

	t.Run("Single stop has no dwell line", func(t *testing.T) {
		assert.Empty(t, b.DwellVertices(stops[:1]))
		assert.Empty(t, Split(b.DwellVertices(stops[:1])))
	})
}

func TestSplit(t *testing.T) {
	assert.Empty(t, Split(nil))

	vertices := []Vertex{
		{StopName: "A", Connected: true},
		{StopName: "B", Connected: true},
		{StopName: "C", Connected: false},
		{StopName: "D", Connected: true},
		{StopName: "E", Connected: true},
		{StopName: "F", Connected: false},
		{StopName: "G", Connected: true},
	}
	lines := Split(vertices)
	require.Len(t, lines, 2)
	assert.Equal(t, []string{"A", "B"}, stopNames(lines[0]))
	assert.Equal(t, []string{"D", "E"}, stopNames(lines[1]))

	t.Run("Lone vertex draws nothing", func(t *testing.T) {
		assert.Empty(t, Split([]Vertex{{StopName: "A", Connected: true}}))
	})
}

func stopNames(line Polyline) []string {
	out := make([]string, len(line.Vertices))
	for i, v := range line.Vertices {
		out[i] = v.StopName
	}
	return out
}

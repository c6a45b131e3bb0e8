package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, c *Collector) string {
	t.Helper()
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestCollector(t *testing.T) {
	c := NewCollector()

	c.ObservePipeline(2*time.Millisecond, 3, 1, 0)
	c.ObserveScene(time.Millisecond)
	c.ObserveFeedLoad(time.Second, nil)
	c.ObserveFeedLoad(time.Second, errors.New("boom"))
	c.CacheHit()
	c.CacheMiss()
	c.CacheMiss()
	c.EventReceived("stringchart.feed.imported")

	body := scrape(t, c)
	for _, line := range []string{
		"stringchart_pipeline_runs_total 1",
		`stringchart_rows_degraded_total{reason="malformed_time"} 3`,
		`stringchart_rows_degraded_total{reason="missing_stop"} 1`,
		`stringchart_feed_loads_total{result="ok"} 1`,
		`stringchart_feed_loads_total{result="error"} 1`,
		`stringchart_cache_lookups_total{result="miss"} 2`,
		`stringchart_events_received_total{subject="stringchart.feed.imported"} 1`,
		"stringchart_scene_duration_seconds_count 1",
	} {
		assert.Contains(t, body, line)
	}
}

func TestNilCollector(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.ObservePipeline(time.Millisecond, 1, 1, 1)
		c.ObserveScene(time.Millisecond)
		c.ObserveFeedLoad(time.Millisecond, nil)
		c.CacheHit()
		c.CacheMiss()
		c.EventReceived("x")
	})
}

func TestCollectorsAreIndependent(t *testing.T) {
	a, b := NewCollector(), NewCollector()
	a.CacheHit()
	assert.NotContains(t, scrape(t, b), `stringchart_cache_lookups_total{result="hit"}`)
}

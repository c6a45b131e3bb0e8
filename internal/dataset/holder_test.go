package dataset

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/passbi/passbi_chart/internal/metrics"
	"github.com/passbi/passbi_chart/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	name  string
	feed  *models.Feed
	err   error
	block chan struct{}
}

func (s *fakeSource) Name() string { return s.name }

func (s *fakeSource) Load(ctx context.Context) (*models.Feed, error) {
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.feed, s.err
}

func feedVersion(v string) *models.Feed {
	return &models.Feed{
		Version:   v,
		LoadedAt:  time.Date(2024, 3, 15, 4, 0, 0, 0, time.UTC),
		Stops:     []models.Stop{{StopID: "s1"}},
		Trips:     []models.Trip{{TripID: "t1", RouteID: "1"}},
		StopTimes: []models.StopTime{{TripID: "t1", StopID: "s1", StopSequence: 1}},
	}
}

func TestHolderLifecycle(t *testing.T) {
	h := NewHolder(nil, metrics.NewCollector())

	assert.Equal(t, StateLoading, h.State())
	_, err := h.Snapshot()
	assert.ErrorIs(t, err, ErrNotLoaded)

	require.NoError(t, h.Load(context.Background(), &fakeSource{name: "fake", feed: feedVersion("v1")}))
	assert.Equal(t, StateReady, h.State())

	feed, err := h.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, "v1", feed.Version)

	st := h.Status()
	assert.Equal(t, Status{
		State:     StateReady,
		Source:    "fake",
		Version:   "v1",
		LoadedAt:  feed.LoadedAt,
		Stops:     1,
		Trips:     1,
		StopTimes: 1,
	}, st)
}

func TestHolderFirstLoadFails(t *testing.T) {
	h := NewHolder(nil, nil)

	err := h.Load(context.Background(), &fakeSource{name: "broken", err: errors.New("connection refused")})
	assert.ErrorIs(t, err, ErrLoadFailed)
	assert.Contains(t, err.Error(), "broken")

	assert.Equal(t, StateFailed, h.State())
	_, err = h.Snapshot()
	assert.ErrorIs(t, err, ErrLoadFailed)
	assert.Equal(t, "connection refused", h.Status().LastError)
}

func TestHolderNilFeed(t *testing.T) {
	h := NewHolder(nil, nil)
	err := h.Load(context.Background(), &fakeSource{name: "empty"})
	assert.ErrorIs(t, err, ErrLoadFailed)
	assert.Equal(t, StateFailed, h.State())
}

func TestHolderFailedReloadKeepsFeed(t *testing.T) {
	h := NewHolder(nil, nil)
	require.NoError(t, h.Load(context.Background(), &fakeSource{name: "fake", feed: feedVersion("v1")}))

	err := h.Load(context.Background(), &fakeSource{name: "fake", err: errors.New("timeout")})
	assert.Error(t, err)

	assert.Equal(t, StateReady, h.State())
	feed, err := h.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, "v1", feed.Version)
	assert.Equal(t, "timeout", h.Status().LastError)

	// The next good load clears the error
	require.NoError(t, h.Load(context.Background(), &fakeSource{name: "fake", feed: feedVersion("v2")}))
	assert.Empty(t, h.Status().LastError)
	assert.Equal(t, "v2", h.Status().Version)
}

func TestHolderLatestStartedLoadWins(t *testing.T) {
	h := NewHolder(nil, nil)

	slow := &fakeSource{name: "slow", feed: feedVersion("old"), block: make(chan struct{})}
	fast := &fakeSource{name: "fast", feed: feedVersion("new")}

	var wg sync.WaitGroup
	wg.Add(1)
	started := make(chan struct{})
	go func() {
		defer wg.Done()
		close(started)
		assert.NoError(t, h.Load(context.Background(), slow))
	}()
	<-started

	// Make sure the slow load has taken its sequence number first
	require.Eventually(t, func() bool {
		h.mu.RLock()
		defer h.mu.RUnlock()
		return h.seq == 1
	}, time.Second, time.Millisecond)

	require.NoError(t, h.Load(context.Background(), fast))
	close(slow.block)
	wg.Wait()

	feed, err := h.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, "new", feed.Version)
	assert.Equal(t, "fast", h.Status().Source)
}

func TestHolderCancelledLoad(t *testing.T) {
	h := NewHolder(nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := h.Load(ctx, &fakeSource{name: "slow", block: make(chan struct{})})
	assert.ErrorIs(t, err, ErrLoadFailed)
	assert.Equal(t, StateFailed, h.State())
}

package dataset

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/passbi/passbi_chart/internal/metrics"
	"github.com/passbi/passbi_chart/internal/models"
	"go.uber.org/zap"
)

var (
	// ErrNotLoaded is returned while the first load is still running
	ErrNotLoaded = errors.New("dataset not loaded yet")
	// ErrLoadFailed wraps the source error of a failed load
	ErrLoadFailed = errors.New("dataset load failed")
)

// Source produces the raw GTFS tables
type Source interface {
	Load(ctx context.Context) (*models.Feed, error)
	Name() string
}

// State of the holder
type State string

const (
	StateLoading State = "loading"
	StateReady   State = "ready"
	StateFailed  State = "failed"
)

// Status is a point-in-time description of the holder
type Status struct {
	State     State     `json:"state"`
	Source    string    `json:"source,omitempty"`
	Version   string    `json:"version,omitempty"`
	LoadedAt  time.Time `json:"loaded_at,omitempty"`
	Stops     int       `json:"stops"`
	Routes    int       `json:"routes"`
	Trips     int       `json:"trips"`
	StopTimes int       `json:"stop_times"`
	LastError string    `json:"last_error,omitempty"`
}

// Holder keeps the last successfully loaded feed in memory
type Holder struct {
	mu      sync.RWMutex
	feed    *models.Feed
	source  string
	lastErr error
	seq     uint64 // last started load
	applied uint64 // load whose outcome is current

	logger  *zap.Logger
	metrics *metrics.Collector
}

// NewHolder creates an empty holder in the loading state. m may be nil.
func NewHolder(logger *zap.Logger, m *metrics.Collector) *Holder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Holder{logger: logger, metrics: m}
}

// Load reads the feed from src and swaps it in. Concurrent loads resolve to the
// most recently started one. A failed reload keeps serving the previous feed.
func (h *Holder) Load(ctx context.Context, src Source) error {
	h.mu.Lock()
	h.seq++
	seq := h.seq
	h.mu.Unlock()

	startTime := time.Now()
	h.logger.Info("loading feed", zap.String("source", src.Name()))

	feed, err := src.Load(ctx)
	if err == nil && feed == nil {
		err = errors.New("source returned no feed")
	}
	h.metrics.ObserveFeedLoad(time.Since(startTime), err)

	h.mu.Lock()
	defer h.mu.Unlock()

	if seq < h.applied {
		h.logger.Info("discarding outdated feed load", zap.String("source", src.Name()))
		return nil
	}
	h.applied = seq

	if err != nil {
		h.lastErr = err
		h.logger.Error("feed load failed", zap.String("source", src.Name()), zap.Error(err))
		return fmt.Errorf("%w: %s: %v", ErrLoadFailed, src.Name(), err)
	}

	h.feed = feed
	h.source = src.Name()
	h.lastErr = nil
	h.logger.Info("feed loaded",
		zap.String("source", src.Name()),
		zap.String("version", feed.Version),
		zap.Int("stops", len(feed.Stops)),
		zap.Int("trips", len(feed.Trips)),
		zap.Int("stop_times", len(feed.StopTimes)),
		zap.Duration("took", time.Since(startTime)))
	return nil
}

// Snapshot returns the current feed. The feed must be treated as read-only.
func (h *Holder) Snapshot() (*models.Feed, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.feed != nil {
		return h.feed, nil
	}
	if h.lastErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadFailed, h.lastErr)
	}
	return nil, ErrNotLoaded
}

// State reports loading, ready or failed
func (h *Holder) State() State {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state()
}

func (h *Holder) state() State {
	switch {
	case h.feed != nil:
		return StateReady
	case h.lastErr != nil:
		return StateFailed
	default:
		return StateLoading
	}
}

// Status describes the holder for health checks
func (h *Holder) Status() Status {
	h.mu.RLock()
	defer h.mu.RUnlock()

	st := Status{State: h.state(), Source: h.source}
	if h.lastErr != nil {
		st.LastError = h.lastErr.Error()
	}
	if h.feed != nil {
		st.Version = h.feed.Version
		st.LoadedAt = h.feed.LoadedAt
		st.Stops = len(h.feed.Stops)
		st.Routes = len(h.feed.Routes)
		st.Trips = len(h.feed.Trips)
		st.StopTimes = len(h.feed.StopTimes)
	}
	return st
}

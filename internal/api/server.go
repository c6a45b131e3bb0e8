package api

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/passbi/passbi_chart/internal/chart"
	"github.com/passbi/passbi_chart/internal/config"
	"github.com/passbi/passbi_chart/internal/dataset"
	"github.com/passbi/passbi_chart/internal/metrics"
	"github.com/passbi/passbi_chart/internal/models"
	"github.com/passbi/passbi_chart/internal/pipeline"
	"go.uber.org/zap"
)

// FeedHolder serves the loaded feed
type FeedHolder interface {
	Snapshot() (*models.Feed, error)
	Status() dataset.Status
}

// SceneCache stores rendered charts between requests
type SceneCache interface {
	GetJSON(ctx context.Context, key string, dst interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	AcquireLock(ctx context.Context, key string) (bool, error)
	ReleaseLock(ctx context.Context, key string) error
	WaitForLock(ctx context.Context, key string, maxWait time.Duration, dst interface{}) (bool, error)
	HealthCheck(ctx context.Context) error
}

// HealthChecker is an optional backing store health check
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Options wires a Server
type Options struct {
	Holder   FeedHolder
	Profile  *config.Profile
	Cache    SceneCache    // nil disables caching
	Store    HealthChecker // nil skips the database check
	Metrics  *metrics.Collector
	Logger   *zap.Logger
	Location *time.Location
	Now      func() time.Time
}

// Server holds the HTTP handlers and their dependencies
type Server struct {
	holder   FeedHolder
	profile  *config.Profile
	labels   pipeline.LabelMapper
	layout   chart.Layout
	cache    SceneCache
	store    HealthChecker
	metrics  *metrics.Collector
	logger   *zap.Logger
	location *time.Location
	now      func() time.Time
}

// NewServer validates opts and builds the label mapper and layout once
func NewServer(opts Options) (*Server, error) {
	if opts.Holder == nil {
		return nil, errors.New("api: feed holder is required")
	}
	profile := opts.Profile
	if profile == nil {
		profile = config.DefaultProfile()
	}
	labels, err := profile.LabelMapper()
	if err != nil {
		return nil, err
	}

	s := &Server{
		holder:   opts.Holder,
		profile:  profile,
		labels:   labels,
		layout:   profile.ChartLayout(),
		cache:    opts.Cache,
		store:    opts.Store,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
		location: opts.Location,
		now:      opts.Now,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.location == nil {
		s.location = time.Local
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// Register mounts the routes on app
func (s *Server) Register(app *fiber.App) {
	app.Get("/health", s.Health)

	v1 := app.Group("/v1")
	v1.Get("/routes", s.Routes)
	v1.Get("/trips", s.Trips)
	v1.Get("/chart", s.Chart)
	v1.Get("/chart/nearest", s.Nearest)
	v1.Get("/chart/within", s.Within)
}

// Health handles the /health endpoint
func (s *Server) Health(c *fiber.Ctx) error {
	ctx := c.UserContext()
	status := s.holder.Status()

	checks := fiber.Map{"dataset": string(status.State)}
	healthy := status.State == dataset.StateReady

	if s.store != nil {
		if err := s.store.HealthCheck(ctx); err != nil {
			checks["database"] = err.Error()
			healthy = false
		} else {
			checks["database"] = "ok"
		}
	}

	if s.cache != nil {
		if err := s.cache.HealthCheck(ctx); err != nil {
			checks["redis"] = err.Error()
			healthy = false
		} else {
			checks["redis"] = "ok"
		}
	}

	overall := "healthy"
	httpStatus := fiber.StatusOK
	if !healthy {
		overall = "unhealthy"
		httpStatus = fiber.StatusServiceUnavailable
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  overall,
		"checks":  checks,
		"dataset": status,
	})
}

// RouteOption is one selectable route label
type RouteOption struct {
	Label     string `json:"label"`
	RouteID   string `json:"route_id"`
	Available bool   `json:"available"`
}

// RoutesResponse lists the selectable routes and the default selection
type RoutesResponse struct {
	Routes        []RouteOption `json:"routes"`
	DefaultRoutes []string      `json:"default_routes"`
	DefaultFrom   float64       `json:"default_from"`
	DefaultTo     float64       `json:"default_to"`
}

// Routes handles the /v1/routes endpoint. Availability is only reported once a feed is loaded.
func (s *Server) Routes(c *fiber.Ctx) error {
	inFeed := map[string]bool{}
	if feed, err := s.holder.Snapshot(); err == nil {
		for _, t := range feed.Trips {
			inFeed[t.RouteID] = true
		}
	}

	options := make([]RouteOption, 0, len(s.profile.Routes))
	for _, label := range s.profile.Routes {
		id := s.labels(label)
		options = append(options, RouteOption{Label: label, RouteID: id, Available: inFeed[id]})
	}

	return c.JSON(RoutesResponse{
		Routes:        options,
		DefaultRoutes: s.profile.DefaultRoutes,
		DefaultFrom:   s.profile.Window.From,
		DefaultTo:     s.profile.Window.To,
	})
}

// snapshot writes the loading/failed response when no feed can be served
func (s *Server) snapshot(c *fiber.Ctx) (*models.Feed, bool, error) {
	feed, err := s.holder.Snapshot()
	switch {
	case err == nil:
		return feed, true, nil
	case errors.Is(err, dataset.ErrNotLoaded):
		c.Set("Retry-After", "5")
		return nil, false, c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"state": dataset.StateLoading,
			"error": "dataset is still loading",
		})
	case errors.Is(err, dataset.ErrLoadFailed):
		return nil, false, c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"state": dataset.StateFailed,
			"error": err.Error(),
		})
	default:
		return nil, false, err
	}
}

// referenceDate anchors calendar times to today in the configured location
func (s *Server) referenceDate() time.Time {
	return s.now().In(s.location)
}

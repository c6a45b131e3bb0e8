package api

import (
	"context"
	"math"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/passbi/passbi_chart/internal/cache"
	"github.com/passbi/passbi_chart/internal/chart"
	"github.com/passbi/passbi_chart/internal/middleware"
	"github.com/passbi/passbi_chart/internal/models"
	"github.com/passbi/passbi_chart/internal/pipeline"
	"go.uber.org/zap"
)

// ChartResponse is the API response of /v1/chart
type ChartResponse struct {
	Version   string             `json:"version"`
	Selection pipeline.Selection `json:"selection"`
	Report    pipeline.Report    `json:"report"`
	Scene     *chart.Scene       `json:"scene"`
}

// TripsResponse is the API response of /v1/trips
type TripsResponse struct {
	Version   string                 `json:"version"`
	Selection pipeline.Selection     `json:"selection"`
	Report    pipeline.Report        `json:"report"`
	Trips     []models.ProcessedTrip `json:"trips"`
}

// WithinResponse is the API response of /v1/chart/within
type WithinResponse struct {
	State  chart.State   `json:"state"`
	Count  int           `json:"count"`
	Points []chart.Point `json:"points"`
}

// NearestResponse is the API response of /v1/chart/nearest
type NearestResponse struct {
	Point chart.Point `json:"point"`
	Lines []string    `json:"lines"`
}

// Chart handles the /v1/chart endpoint
func (s *Server) Chart(c *fiber.Ctx) error {
	feed, ok, err := s.snapshot(c)
	if !ok {
		return err
	}

	sel, err := parseSelection(c, s.profile)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	resp, err := s.chart(c, feed, sel)
	if err != nil {
		return err
	}
	return c.JSON(resp)
}

// Trips handles the /v1/trips endpoint
func (s *Server) Trips(c *fiber.Ctx) error {
	feed, ok, err := s.snapshot(c)
	if !ok {
		return err
	}

	sel, err := parseSelection(c, s.profile)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	result, err := s.run(feed, sel)
	if err != nil {
		return err
	}

	return c.JSON(TripsResponse{
		Version:   feed.Version,
		Selection: sel,
		Report:    result.Report,
		Trips:     result.Trips,
	})
}

// Nearest handles the /v1/chart/nearest endpoint
func (s *Server) Nearest(c *fiber.Ctx) error {
	feed, ok, err := s.snapshot(c)
	if !ok {
		return err
	}

	sel, err := parseSelection(c, s.profile)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	x, err := parseCoordinate(c, "x", s.coordinateLimit())
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	y, err := parseCoordinate(c, "y", s.coordinateLimit())
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	resp, err := s.chart(c, feed, sel)
	if err != nil {
		return err
	}

	point, found := resp.Scene.Nearest(x, y)
	if !found {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "no stop in the selected chart",
			"state": resp.Scene.State,
		})
	}

	return c.JSON(NearestResponse{
		Point: point,
		Lines: point.Tooltip.Lines(),
	})
}

// Within handles the /v1/chart/within endpoint: all stop points inside a brushed rectangle
func (s *Server) Within(c *fiber.Ctx) error {
	feed, ok, err := s.snapshot(c)
	if !ok {
		return err
	}

	sel, err := parseSelection(c, s.profile)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	var box [4]float64
	for i, name := range []string{"x0", "y0", "x1", "y1"} {
		if box[i], err = parseCoordinate(c, name, s.coordinateLimit()); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
	}

	resp, err := s.chart(c, feed, sel)
	if err != nil {
		return err
	}

	points := resp.Scene.Within(box[0], box[1], box[2], box[3])
	return c.JSON(WithinResponse{
		State:  resp.Scene.State,
		Count:  len(points),
		Points: points,
	})
}

// coordinateLimit bounds pointer coordinates to a few chart sizes around the plot
func (s *Server) coordinateLimit() float64 {
	return 10 * math.Max(s.layout.OuterWidth, s.layout.OuterHeight)
}

// run executes the pipeline and records its metrics
func (s *Server) run(feed *models.Feed, sel pipeline.Selection) (*pipeline.Result, error) {
	startTime := time.Now()
	result, err := pipeline.Run(feed, sel, pipeline.Options{
		Labels:        s.labels,
		ReferenceDate: s.referenceDate(),
		Logger:        s.logger,
	})
	if err != nil {
		return nil, err
	}
	r := result.Report
	s.metrics.ObservePipeline(time.Since(startTime), r.MalformedTimes, r.MissingStops, r.OrphanRows)
	return result, nil
}

// build runs the pipeline and projects the scene
func (s *Server) build(feed *models.Feed, sel pipeline.Selection) (*ChartResponse, error) {
	result, err := s.run(feed, sel)
	if err != nil {
		return nil, err
	}

	startTime := time.Now()
	scene := chart.Build(result.Trips, s.layout, sel.StationsVisible)
	s.metrics.ObserveScene(time.Since(startTime))

	return &ChartResponse{
		Version:   feed.Version,
		Selection: sel,
		Report:    result.Report,
		Scene:     scene,
	}, nil
}

// chart returns the scene for sel, going through the cache when one is configured
func (s *Server) chart(c *fiber.Ctx, feed *models.Feed, sel pipeline.Selection) (*ChartResponse, error) {
	if s.cache == nil {
		return s.build(feed, sel)
	}

	ctx := c.UserContext()
	ref := s.referenceDate()
	cacheKey := cache.SceneKey(feed.Version, sel.Routes, sel.StartHour, sel.EndHour, sel.StationsVisible,
		s.profile.Name+"@"+ref.Format("2006-01-02"))
	lockKey := cache.LockKey(cacheKey)

	// Try to get from cache
	if cached, ok := s.fromCache(ctx, cacheKey); ok {
		c.Locals(middleware.LocalCacheHit, true)
		return cached, nil
	}
	s.metrics.CacheMiss()

	// Try to acquire lock
	acquired, err := s.cache.AcquireLock(ctx, lockKey)
	if err != nil {
		s.logger.Warn("failed to acquire lock", zap.String("key", lockKey), zap.Error(err))
		// Continue without lock (degrade gracefully)
	} else if !acquired {
		// Another request is building this scene, wait for it
		var waited ChartResponse
		if found, err := s.cache.WaitForLock(ctx, cacheKey, 3*time.Second, &waited); err == nil && found && waited.Scene != nil {
			waited.Scene.Reindex()
			s.metrics.CacheHit()
			c.Locals(middleware.LocalCacheHit, true)
			return &waited, nil
		}
		// If waiting failed, build anyway
	}

	// Ensure lock is released
	defer func() {
		if acquired {
			if err := s.cache.ReleaseLock(context.Background(), lockKey); err != nil {
				s.logger.Warn("failed to release lock", zap.String("key", lockKey), zap.Error(err))
			}
		}
	}()

	resp, err := s.build(feed, sel)
	if err != nil {
		return nil, err
	}

	if err := s.cache.SetJSON(ctx, cacheKey, resp, 0); err != nil {
		s.logger.Warn("failed to cache scene", zap.String("key", cacheKey), zap.Error(err))
	}
	return resp, nil
}

func (s *Server) fromCache(ctx context.Context, key string) (*ChartResponse, bool) {
	var cached ChartResponse
	found, err := s.cache.GetJSON(ctx, key, &cached)
	if err != nil {
		s.logger.Warn("scene cache read failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if !found || cached.Scene == nil {
		return nil, false
	}
	cached.Scene.Reindex()
	s.metrics.CacheHit()
	return &cached, true
}

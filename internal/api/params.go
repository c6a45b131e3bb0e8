package api

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/passbi/passbi_chart/internal/config"
	"github.com/passbi/passbi_chart/internal/pipeline"
)

// parseSelection reads routes, from, to and stations from the query string.
// Missing parameters fall back to the profile defaults; an explicit empty
// routes parameter selects nothing.
func parseSelection(c *fiber.Ctx, profile *config.Profile) (pipeline.Selection, error) {
	sel := pipeline.Selection{
		Routes:    append([]string(nil), profile.DefaultRoutes...),
		StartHour: profile.Window.From,
		EndHour:   profile.Window.To,
	}

	if c.Context().QueryArgs().Has("routes") {
		sel.Routes = splitRoutes(c.Query("routes"))
	}

	if v := c.Query("from"); v != "" {
		h, err := parseHour(v)
		if err != nil {
			return sel, fmt.Errorf("invalid 'from': %w", err)
		}
		sel.StartHour = h
	}
	if v := c.Query("to"); v != "" {
		h, err := parseHour(v)
		if err != nil {
			return sel, fmt.Errorf("invalid 'to': %w", err)
		}
		sel.EndHour = h
	}

	if v := c.Query("stations"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return sel, fmt.Errorf("invalid 'stations': expected true or false")
		}
		sel.StationsVisible = b
	}

	return sel, nil
}

func splitRoutes(s string) []string {
	routes := []string{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			routes = append(routes, part)
		}
	}
	return routes
}

// parseHour accepts fractional hours ("6.5") or a clock ("06:30", "06:30:00")
func parseHour(s string) (float64, error) {
	s = strings.TrimSpace(s)

	var h float64
	if strings.Contains(s, ":") {
		secs, err := parseTimeStr(s)
		if err != nil {
			return 0, err
		}
		h = float64(secs) / 3600
	} else {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("expected hours or HH:MM")
		}
		h = f
	}

	if math.IsNaN(h) || h < 0 || h > 24 {
		return 0, fmt.Errorf("hours must be between 0 and 24")
	}
	return h, nil
}

// parseTimeStr converts "HH:MM" or "HH:MM:SS" to seconds
func parseTimeStr(s string) (int, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("expected HH:MM or HH:MM:SS")
	}

	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid hour %q", parts[0])
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute %q", parts[1])
	}

	secs := 0
	if len(parts) == 3 {
		secs, err = strconv.Atoi(parts[2])
		if err != nil || secs < 0 || secs > 59 {
			return 0, fmt.Errorf("invalid second %q", parts[2])
		}
	}

	return h*3600 + m*60 + secs, nil
}

// parseCoordinate parses a required plot coordinate within [-limit, limit]
func parseCoordinate(c *fiber.Ctx, name string, limit float64) (float64, error) {
	v := c.Query(name)
	if v == "" {
		return 0, fmt.Errorf("missing required parameter: %s", name)
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("invalid '%s': expected a number", name)
	}
	if math.Abs(f) > limit {
		return 0, fmt.Errorf("invalid '%s': outside the chart", name)
	}
	return f, nil
}

package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/passbi/passbi_chart/internal/chart"
	"github.com/passbi/passbi_chart/internal/pipeline"
	"gopkg.in/yaml.v3"
)

// LayoutConfig is the chart geometry
type LayoutConfig struct {
	Width         float64       `yaml:"width" validate:"gt=0"`
	Height        float64       `yaml:"height" validate:"gt=0"`
	Margins       chart.Margins `yaml:"margins"`
	Padding       float64       `yaml:"padding" validate:"gte=0,lt=1"`
	BreakFraction float64       `yaml:"break_fraction" validate:"gt=0,lte=1"`
	TickMinutes   int           `yaml:"tick_minutes" validate:"gt=0"`
	StationRadius float64       `yaml:"station_radius" validate:"gte=0"`
}

// LabelConfig selects how user-facing labels map onto route_id
type LabelConfig struct {
	Mode         string            `yaml:"mode" validate:"oneof=identity prefix table"`
	PrefixLength int               `yaml:"prefix_length" validate:"gte=0"`
	Table        map[string]string `yaml:"table"`
}

// WindowConfig is the default time window in hours
type WindowConfig struct {
	From float64 `yaml:"from" validate:"gte=0,lte=24"`
	To   float64 `yaml:"to" validate:"gte=0,lte=24"`
}

// Profile is the chart profile loaded from YAML
type Profile struct {
	Name          string       `yaml:"name" validate:"required"`
	Layout        LayoutConfig `yaml:"layout"`
	Palette       []string     `yaml:"palette" validate:"omitempty,dive,hexcolor"`
	Routes        []string     `yaml:"routes" validate:"min=1,dive,required"`
	DefaultRoutes []string     `yaml:"default_routes" validate:"dive,required"`
	Labels        LabelConfig  `yaml:"labels"`
	Window        WindowConfig `yaml:"default_window"`
}

// DefaultProfile matches the S-Bahn chart the tool was built for
func DefaultProfile() *Profile {
	l := chart.DefaultLayout()
	return &Profile{
		Name: "default",
		Layout: LayoutConfig{
			Width:         l.OuterWidth,
			Height:        l.OuterHeight,
			Margins:       l.Margins,
			Padding:       l.Padding,
			BreakFraction: l.BreakFraction,
			TickMinutes:   int(l.TickInterval / time.Minute),
			StationRadius: l.StationRadius,
		},
		Palette:       append([]string(nil), chart.Category10...),
		Routes:        []string{"S1", "S2", "S3", "S4", "S5", "S6", "S7"},
		DefaultRoutes: []string{"S1"},
		Labels:        LabelConfig{Mode: pipeline.LabelModeIdentity},
		Window:        WindowConfig{From: 0, To: 24},
	}
}

// LoadProfile reads a YAML profile. Keys missing from the file keep their defaults.
// An empty path returns DefaultProfile.
func LoadProfile(path string) (*Profile, error) {
	if path == "" {
		return DefaultProfile(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read chart profile: %w", err)
	}
	return ParseProfile(data)
}

// ParseProfile decodes and validates a YAML profile
func ParseProfile(data []byte) (*Profile, error) {
	p := DefaultProfile()
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("invalid chart profile: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks field constraints and that margins leave a plot area
func (p *Profile) Validate() error {
	v := validator.New()
	if err := v.Struct(p); err != nil {
		return fmt.Errorf("invalid chart profile: %w", err)
	}
	m := p.Layout.Margins
	if m.Top < 0 || m.Right < 0 || m.Bottom < 0 || m.Left < 0 {
		return fmt.Errorf("invalid chart profile: negative margin")
	}
	if p.Layout.Width-m.Left-m.Right <= 0 || p.Layout.Height-m.Top-m.Bottom <= 0 {
		return fmt.Errorf("invalid chart profile: margins exceed chart size")
	}
	known := make(map[string]bool, len(p.Routes))
	for _, r := range p.Routes {
		known[r] = true
	}
	for _, r := range p.DefaultRoutes {
		if !known[r] {
			return fmt.Errorf("invalid chart profile: default route %q is not listed in routes", r)
		}
	}
	return nil
}

// ChartLayout converts the profile into a scene layout
func (p *Profile) ChartLayout() chart.Layout {
	return chart.Layout{
		OuterWidth:    p.Layout.Width,
		OuterHeight:   p.Layout.Height,
		Margins:       p.Layout.Margins,
		Padding:       p.Layout.Padding,
		BreakFraction: p.Layout.BreakFraction,
		TickInterval:  time.Duration(p.Layout.TickMinutes) * time.Minute,
		StationRadius: p.Layout.StationRadius,
		Palette:       p.Palette,
	}
}

// LabelMapper builds the configured label mapping
func (p *Profile) LabelMapper() (pipeline.LabelMapper, error) {
	return pipeline.NewLabelMapper(p.Labels.Mode, p.Labels.PrefixLength, p.Labels.Table)
}

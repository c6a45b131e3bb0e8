package chart

import (
	"math"
	"time"

	"github.com/passbi/passbi_chart/internal/gtfs"
)

// DefaultPadding is the inner and outer band padding
const DefaultPadding = 0.1

// Band is one category of the stop axis
type Band struct {
	Name  string  `json:"name"`
	X     float64 `json:"x"`
	Width float64 `json:"width"`
}

// BandScale maps stop names onto equal bands of [0, width)
type BandScale struct {
	domain    []string
	index     map[string]int
	width     float64
	step      float64
	start     float64
	bandwidth float64
}

// NewBandScale builds a band scale over the de-duplicated names, first appearance wins.
// padding is used for both inner and outer padding, bands are centred.
func NewBandScale(names []string, width, padding float64) *BandScale {
	s := &BandScale{
		index: make(map[string]int, len(names)),
		width: width,
	}
	for _, name := range names {
		if _, ok := s.index[name]; ok {
			continue
		}
		s.index[name] = len(s.domain)
		s.domain = append(s.domain, name)
	}

	n := float64(len(s.domain))
	s.step = width / math.Max(1, n-padding+padding*2)
	s.start = (width - s.step*(n-padding)) * 0.5
	s.bandwidth = s.step * (1 - padding)
	return s
}

// Position returns the left edge of the band for name
func (s *BandScale) Position(name string) (float64, bool) {
	i, ok := s.index[name]
	if !ok {
		return 0, false
	}
	return s.start + s.step*float64(i), true
}

// Center returns the middle of the band for name
func (s *BandScale) Center(name string) (float64, bool) {
	x, ok := s.Position(name)
	if !ok {
		return 0, false
	}
	return x + s.bandwidth/2, true
}

// Index returns the ordinal of name in the domain
func (s *BandScale) Index(name string) (int, bool) {
	i, ok := s.index[name]
	return i, ok
}

func (s *BandScale) Bandwidth() float64 { return s.bandwidth }
func (s *BandScale) Width() float64     { return s.width }
func (s *BandScale) Len() int           { return len(s.domain) }

// Domain returns a copy of the ordered stop names
func (s *BandScale) Domain() []string {
	return append([]string(nil), s.domain...)
}

// Bands lists every band in domain order
func (s *BandScale) Bands() []Band {
	bands := make([]Band, 0, len(s.domain))
	for i, name := range s.domain {
		bands = append(bands, Band{
			Name:  name,
			X:     s.start + s.step*float64(i),
			Width: s.bandwidth,
		})
	}
	return bands
}

// Tick is one labelled mark of the time axis
type Tick struct {
	Time  time.Time `json:"time"`
	Y     float64   `json:"y"`
	Label string    `json:"label"`
}

// TimeScale maps calendar times linearly onto [0, height]
type TimeScale struct {
	min    time.Time
	max    time.Time
	height float64
}

// NewTimeScale builds a time scale over the extent of times. An empty slice gives
// a zero domain.
func NewTimeScale(times []time.Time, height float64) *TimeScale {
	s := &TimeScale{height: height}
	for i, t := range times {
		if i == 0 || t.Before(s.min) {
			s.min = t
		}
		if i == 0 || t.After(s.max) {
			s.max = t
		}
	}
	return s
}

// Domain returns the extent of the scale
func (s *TimeScale) Domain() (time.Time, time.Time) {
	return s.min, s.max
}

func (s *TimeScale) Height() float64 { return s.height }

// Map projects t onto the range. A degenerate domain maps everything to mid-range.
func (s *TimeScale) Map(t time.Time) float64 {
	span := s.max.Sub(s.min)
	if span <= 0 {
		return s.height / 2
	}
	return float64(t.Sub(s.min)) / float64(span) * s.height
}

// Ticks returns marks on every interval boundary of the day inside the domain
func (s *TimeScale) Ticks(every time.Duration) []Tick {
	ticks := []Tick{}
	if every <= 0 || s.min.IsZero() {
		return ticks
	}

	y, m, d := s.min.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, s.min.Location())
	offset := s.min.Sub(midnight)
	steps := offset / every
	if offset%every != 0 {
		steps++
	}

	for t := midnight.Add(steps * every); !t.After(s.max); t = t.Add(every) {
		ticks = append(ticks, Tick{
			Time:  t,
			Y:     s.Map(t),
			Label: gtfs.FormatClock(t),
		})
	}
	return ticks
}

package gtfs

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const secondsPerDay = 24 * 3600

// MaxHours bounds the hour field so that elapsed seconds cannot overflow
const MaxHours = 1000000

// ErrMalformedTime is returned when a GTFS time string is not HH:MM:SS
var ErrMalformedTime = errors.New("malformed GTFS time")

// ParseToSeconds converts GTFS time format (HH:MM:SS) to seconds since local midnight.
// Hours may be 24 or more for service running past midnight and are never wrapped.
func ParseToSeconds(timeStr string) (int, error) {
	s := strings.TrimSpace(timeStr)
	if s == "" {
		return 0, fmt.Errorf("%w: empty time string", ErrMalformedTime)
	}

	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("%w: %q", ErrMalformedTime, timeStr)
	}

	hours, err := parseField(parts[0], MaxHours)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: hours %v", ErrMalformedTime, timeStr, err)
	}
	minutes, err := parseField(parts[1], 59)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: minutes %v", ErrMalformedTime, timeStr, err)
	}
	seconds, err := parseField(parts[2], 59)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: seconds %v", ErrMalformedTime, timeStr, err)
	}

	return hours*3600 + minutes*60 + seconds, nil
}

// parseField accepts only ASCII digits; max < 0 means unbounded.
func parseField(field string, max int) (int, error) {
	if field == "" {
		return 0, errors.New("is empty")
	}
	for _, r := range field {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("contains %q", r)
		}
	}
	v, err := strconv.Atoi(field)
	if err != nil {
		return 0, err
	}
	if max >= 0 && v > max {
		return 0, fmt.Errorf("%d out of range", v)
	}
	return v, nil
}

// ParseToCalendarTime maps a GTFS time onto the calendar day of ref.
// The result wraps at 24h so that it stays inside one axis day; use
// ParseToSeconds for any comparison.
func ParseToCalendarTime(timeStr string, ref time.Time) (time.Time, error) {
	secs, err := ParseToSeconds(timeStr)
	if err != nil {
		return time.Time{}, err
	}
	return SecondsToCalendarTime(secs, ref), nil
}

// SecondsToCalendarTime is ParseToCalendarTime for an already parsed value.
func SecondsToCalendarTime(secs int, ref time.Time) time.Time {
	midnight := time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, ref.Location())
	return midnight.Add(time.Duration(wrapDay(secs)) * time.Second)
}

// FormatSecondsAsClock formats elapsed seconds as "HH:MM", wrapping at 24h
func FormatSecondsAsClock(secs int) string {
	secs = wrapDay(secs)
	return fmt.Sprintf("%02d:%02d", secs/3600, (secs%3600)/60)
}

// FormatClock formats a calendar time as "HH:MM"
func FormatClock(t time.Time) string {
	return FormatSecondsAsClock(t.Hour()*3600 + t.Minute()*60 + t.Second())
}

// HoursToSeconds converts fractional hours (as used by the time range control) to seconds
func HoursToSeconds(hours float64) int {
	return int(math.Round(hours * 3600))
}

func wrapDay(secs int) int {
	secs %= secondsPerDay
	if secs < 0 {
		secs += secondsPerDay
	}
	return secs
}

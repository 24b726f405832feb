// Package gymtime handles the zone-naive civil timestamps used by the gym
// API. Every timestamp the API returns (class start, booking opening) is
// expressed in the facility's local time with no zone marker, so all parsing
// and comparison goes through an explicit Calendar instead of the process
// timezone.
package gymtime

import (
	"fmt"
	"regexp"
	"time"
)

// Layout is the civil timestamp format used by the gym API.
const Layout = "2006-01-02T15:04:05"

// PartitionLayout is the day-bucket format (yyyyMMdd) used by the search and
// booking endpoints.
const PartitionLayout = "20060102"

// DefaultZone is the reference zone of the facilities we book at.
const DefaultZone = "Europe/Rome"

// zoneMarker matches timestamps that carry timezone information. Those are
// rejected outright: the API contract is civil time, and silently honouring
// an offset would shift every window comparison.
var zoneMarker = regexp.MustCompile(`Z|[+-]\d{2}:\d{2}|[+-]\d{4}|[A-Z]{3}`)

// Calendar interprets civil timestamps in a fixed reference zone.
type Calendar struct {
	loc *time.Location
}

func NewCalendar(zone string) (*Calendar, error) {
	if zone == "" {
		zone = DefaultZone
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("load zone %q: %w", zone, err)
	}
	return &Calendar{loc: loc}, nil
}

// MustCalendar is for tests and defaults where the zone name is a constant.
func MustCalendar(zone string) *Calendar {
	c, err := NewCalendar(zone)
	if err != nil {
		panic(err)
	}
	return c
}

// Parse converts a zone-naive civil timestamp into a time.Time in the
// calendar's zone. Inputs carrying any zone or offset marker are rejected.
func (c *Calendar) Parse(s string) (time.Time, error) {
	if zoneMarker.MatchString(s) {
		return time.Time{}, fmt.Errorf("timestamp %q carries timezone info, want civil time", s)
	}
	t, err := time.ParseInLocation(Layout, s, c.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse civil timestamp %q: %w", s, err)
	}
	return t, nil
}

// Location exposes the calendar's zone.
func (c *Calendar) Location() *time.Location {
	return c.loc
}

// Now returns the current instant expressed in the calendar's zone.
func (c *Calendar) Now() time.Time {
	return time.Now().In(c.loc)
}

// PartitionDate formats t as the yyyyMMdd day bucket the API expects.
func (c *Calendar) PartitionDate(t time.Time) string {
	return t.In(c.loc).Format(PartitionLayout)
}

// Weekday returns the platform-native weekday number (0=Sunday..6=Saturday)
// of t in the calendar's zone.
func (c *Calendar) Weekday(t time.Time) int {
	return int(t.In(c.loc).Weekday())
}

// TimeOfDay is a clock time within a civil day, in seconds since midnight.
type TimeOfDay int

// ParseTimeOfDay parses "HH:MM:SS" (or "HH:MM") into a TimeOfDay.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04:05", s)
	if err != nil {
		t, err = time.Parse("15:04", s)
		if err != nil {
			return 0, fmt.Errorf("parse time of day %q: %w", s, err)
		}
	}
	return TimeOfDay(t.Hour()*3600 + t.Minute()*60 + t.Second()), nil
}

// ClockTime extracts the time-of-day portion of t in the calendar's zone.
// Comparing ClockTime values is what keeps window checks from being spoiled
// by the date portion of the class start.
func (c *Calendar) ClockTime(t time.Time) TimeOfDay {
	t = t.In(c.loc)
	return TimeOfDay(t.Hour()*3600 + t.Minute()*60 + t.Second())
}

func (d TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", int(d)/3600, int(d)/60%60, int(d)%60)
}

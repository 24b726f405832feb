// Package criteria holds the static class-selection configuration and the
// deterministic filter pipeline applied to every scan pass. Each stage is a
// pure predicate over one class record.
package criteria

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/example/gym-booking-assistant/internal/gymapi"
	"github.com/example/gym-booking-assistant/internal/gymtime"
)

// HourRange is a local time-of-day window. Both boundaries are exclusive: a
// class starting exactly on a boundary does not match.
type HourRange struct {
	Start gymtime.TimeOfDay
	End   gymtime.TimeOfDay
}

func (r HourRange) String() string {
	return fmt.Sprintf("%s-%s", r.Start, r.End)
}

// Criteria is immutable for a given deployment.
type Criteria struct {
	// ClassNames are case-insensitive substring tokens; a class matches when
	// its name contains at least one of them.
	ClassNames []string
	// Days are permitted local start weekdays, 0=Sunday..6=Saturday.
	Days []int
	// HourRanges are permitted local start time-of-day windows.
	HourRanges []HourRange
}

// ParseHourRange parses "HH:MM:SS-HH:MM:SS".
func ParseHourRange(s string) (HourRange, error) {
	start, end, ok := strings.Cut(s, "-")
	if !ok {
		return HourRange{}, fmt.Errorf("hour range %q: want START-END", s)
	}
	from, err := gymtime.ParseTimeOfDay(strings.TrimSpace(start))
	if err != nil {
		return HourRange{}, fmt.Errorf("hour range %q: %w", s, err)
	}
	to, err := gymtime.ParseTimeOfDay(strings.TrimSpace(end))
	if err != nil {
		return HourRange{}, fmt.Errorf("hour range %q: %w", s, err)
	}
	if to <= from {
		return HourRange{}, fmt.Errorf("hour range %q: end must be after start", s)
	}
	return HourRange{Start: from, End: to}, nil
}

// ParseHourRanges parses a comma-separated list of hour ranges.
func ParseHourRanges(s string) ([]HourRange, error) {
	var out []HourRange
	for _, part := range splitCSV(s) {
		r, err := ParseHourRange(part)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// ParseDays parses a comma-separated weekday set (0=Sunday..6=Saturday).
func ParseDays(s string) ([]int, error) {
	var out []int
	for _, part := range splitCSV(s) {
		d, err := strconv.Atoi(part)
		if err != nil || d < 0 || d > 6 {
			return nil, fmt.Errorf("invalid weekday %q (want 0..6)", part)
		}
		out = append(out, d)
	}
	return out, nil
}

// Bookable rejects classes the user already participates in or whose status
// rules out booking entirely.
func Bookable(c gymapi.Class) bool {
	if c.IsParticipant {
		return false
	}
	status := c.BookingInfo.BookingUserStatus
	return status != gymapi.StatusCannotBook && status != gymapi.StatusBookingClosed
}

// MatchesName reports whether the class name contains at least one of the
// subscribed tokens, case-insensitively.
func (c Criteria) MatchesName(name string) bool {
	lower := strings.ToLower(name)
	for _, token := range c.ClassNames {
		if strings.Contains(lower, strings.ToLower(token)) {
			return true
		}
	}
	return false
}

// MatchesDay reports whether the weekday (0=Sunday..6=Saturday) is permitted.
func (c Criteria) MatchesDay(weekday int) bool {
	for _, d := range c.Days {
		if d == weekday {
			return true
		}
	}
	return false
}

// MatchesHours reports whether the time of day falls strictly inside at
// least one configured window.
func (c Criteria) MatchesHours(tod gymtime.TimeOfDay) bool {
	for _, r := range c.HourRanges {
		if tod > r.Start && tod < r.End {
			return true
		}
	}
	return false
}

// Matches runs the full pipeline on one class. The start timestamp is parsed
// with cal; a malformed timestamp is an error so callers can log and skip
// that class.
func (c Criteria) Matches(cal *gymtime.Calendar, cls gymapi.Class) (bool, error) {
	if !Bookable(cls) {
		return false, nil
	}
	if !c.MatchesName(cls.Name) {
		return false, nil
	}
	start, err := cal.Parse(cls.StartDate)
	if err != nil {
		return false, err
	}
	if !c.MatchesDay(cal.Weekday(start)) {
		return false, nil
	}
	if !c.MatchesHours(cal.ClockTime(start)) {
		return false, nil
	}
	return true, nil
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseClock parses a "HH:MM" wall-clock string.
func ParseClock(s string) (hour, minute int, err error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid clock %q, want HH:MM", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return hour, minute, nil
}

// InQuietHours reports whether now falls inside the [from, until) quiet span.
// A span with from > until crosses midnight (e.g. 22:00 to 07:00). Empty
// bounds disable quiet hours.
func InQuietHours(from, until string, now time.Time) bool {
	if from == "" || until == "" {
		return false
	}
	fh, fm, err := ParseClock(from)
	if err != nil {
		return false
	}
	uh, um, err := ParseClock(until)
	if err != nil {
		return false
	}

	minutes := now.Hour()*60 + now.Minute()
	start := fh*60 + fm
	end := uh*60 + um

	if start == end {
		return false
	}
	if start < end {
		return minutes >= start && minutes < end
	}
	// Overnight span.
	return minutes >= start || minutes < end
}

// NextQuietEnd returns the first instant at or after now when the quiet span
// ends. Only meaningful when InQuietHours reports true for the same inputs.
func NextQuietEnd(until string, now time.Time) time.Time {
	uh, um, err := ParseClock(until)
	if err != nil {
		return now
	}
	end := time.Date(now.Year(), now.Month(), now.Day(), uh, um, 0, 0, now.Location())
	if !end.After(now) {
		end = end.AddDate(0, 0, 1)
	}
	return end
}

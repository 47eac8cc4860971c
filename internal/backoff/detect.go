// Package backoff classifies model adapter failures as rate limits and
// computes a clamped wait before the next attempt.
package backoff

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Wait bounds. Every computed wait is clamped here regardless of source.
const (
	MinWait     = 30 * time.Second
	MaxWait     = 60 * time.Minute
	DefaultWait = 5 * time.Minute

	matchedTextCap = 200
)

// RateLimitInfo is the verdict for a detected rate limit.
type RateLimitInfo struct {
	Wait    time.Duration // clamped to [MinWait, MaxWait]
	Matched string        // raw matched text, truncated, for diagnostics
}

// Result is the slice of a cycle outcome the detector needs.
type Result struct {
	Failed   bool
	TimedOut bool
	Output   string
}

var rateLimitSignatures = []string{
	"rate limit",
	"usage limit",
	"too many requests",
	"429",
	"overloaded",
}

var (
	// "reset at 3:45pm" / "resets at 16:00"
	absoluteRe = regexp.MustCompile(`(?i)reset\w*\s+at\s+(\d{1,2}):(\d{2})\s*(am|pm)?`)
	// "reset in 5 minutes" / "try again in 30 seconds"
	relativeRe = regexp.MustCompile(`(?i)(?:reset\w*|try again)\s+in\s+(\d+)\s*(second|minute|hour)s?`)
	// unix timestamp adjacent to a reset-like key
	unixRe = regexp.MustCompile(`(?i)reset\w*[^\d]{0,20}(\d{10})`)
)

// Detect returns nil when the attempt succeeded or timed out (a timeout is
// never a rate limit). Otherwise it scans the failure text for rate-limit
// signatures and computes the wait, trying absolute clock time, relative
// duration, then unix timestamp, falling back to DefaultWait.
func Detect(res Result) *RateLimitInfo {
	return detectAt(res, time.Now())
}

func detectAt(res Result, now time.Time) *RateLimitInfo {
	if !res.Failed || res.TimedOut {
		return nil
	}

	lower := strings.ToLower(res.Output)
	matched := ""
	for _, sig := range rateLimitSignatures {
		if idx := strings.Index(lower, sig); idx >= 0 {
			end := idx + matchedTextCap
			if end > len(res.Output) {
				end = len(res.Output)
			}
			matched = res.Output[idx:end]
			break
		}
	}
	if matched == "" {
		return nil
	}

	wait := DefaultWait
	if w, ok := parseAbsolute(res.Output, now); ok {
		wait = w
	} else if w, ok := parseRelative(res.Output); ok {
		wait = w
	} else if w, ok := parseUnix(res.Output, now); ok {
		wait = w
	}

	return &RateLimitInfo{Wait: clamp(wait), Matched: matched}
}

// parseAbsolute handles "reset at HH:MM[am/pm]", rolled to the next day
// when the clock time has already passed.
func parseAbsolute(text string, now time.Time) (time.Duration, bool) {
	m := absoluteRe.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	switch strings.ToLower(m[3]) {
	case "pm":
		if hour < 12 {
			hour += 12
		}
	case "am":
		if hour == 12 {
			hour = 0
		}
	}
	if hour > 23 || minute > 59 {
		return 0, false
	}

	target := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !target.After(now) {
		target = target.Add(24 * time.Hour)
	}
	return target.Sub(now), true
}

// parseRelative handles "(reset|try again) in N (seconds|minutes|hours)".
func parseRelative(text string) (time.Duration, bool) {
	m := relativeRe.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	switch strings.ToLower(m[2]) {
	case "second":
		return time.Duration(n) * time.Second, true
	case "minute":
		return time.Duration(n) * time.Minute, true
	case "hour":
		return time.Duration(n) * time.Hour, true
	}
	return 0, false
}

// parseUnix handles a raw 10-digit unix timestamp near a reset-like key.
func parseUnix(text string, now time.Time) (time.Duration, bool) {
	m := unixRe.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	ts, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	target := time.Unix(ts, 0)
	if !target.After(now) {
		return 0, false
	}
	return target.Sub(now), true
}

func clamp(d time.Duration) time.Duration {
	if d < MinWait {
		return MinWait
	}
	if d > MaxWait {
		return MaxWait
	}
	return d
}

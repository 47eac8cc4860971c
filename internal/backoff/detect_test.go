package backoff

import (
	"strconv"
	"strings"
	"testing"
	"time"
)

func TestDetectIgnoresSuccessAndTimeout(t *testing.T) {
	if info := Detect(Result{Failed: false, Output: "rate limit"}); info != nil {
		t.Error("success should never be classified as a rate limit")
	}
	if info := Detect(Result{Failed: true, TimedOut: true, Output: "rate limit exceeded"}); info != nil {
		t.Error("a timeout is never a rate limit")
	}
}

func TestDetectSignatures(t *testing.T) {
	cases := []struct {
		output string
		hit    bool
	}{
		{"Error: rate limit exceeded", true},
		{"usage limit reached for this billing period", true},
		{"HTTP 429 Too Many Requests", true},
		{"server overloaded, please retry", true},
		{"connection refused", false},
		{"syntax error in prompt", false},
	}
	for _, tc := range cases {
		info := Detect(Result{Failed: true, Output: tc.output})
		if (info != nil) != tc.hit {
			t.Errorf("Detect(%q): hit=%v, want %v", tc.output, info != nil, tc.hit)
		}
	}
}

func TestDetectRelativeWait(t *testing.T) {
	info := Detect(Result{Failed: true, Output: "rate limit: try again in 5 minutes"})
	if info == nil {
		t.Fatal("expected rate limit")
	}
	if info.Wait != 5*time.Minute {
		t.Errorf("wait = %v, want 5m", info.Wait)
	}
}

func TestDetectAbsoluteRollsToNextDay(t *testing.T) {
	now := time.Date(2026, 3, 10, 16, 0, 0, 0, time.UTC)
	info := detectAt(Result{Failed: true, Output: "usage limit reached. reset at 3:30pm"}, now)
	if info == nil {
		t.Fatal("expected rate limit")
	}
	// 15:30 already passed at 16:00, so the reset is tomorrow — clamped to MaxWait.
	if info.Wait != MaxWait {
		t.Errorf("wait = %v, want clamp to %v", info.Wait, MaxWait)
	}
}

func TestDetectAbsoluteSameDay(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	info := detectAt(Result{Failed: true, Output: "rate limit. resets at 3:20pm"}, now)
	if info == nil {
		t.Fatal("expected rate limit")
	}
	if info.Wait != 20*time.Minute {
		t.Errorf("wait = %v, want 20m", info.Wait)
	}
}

func TestDetectUnixTimestamp(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	ts := now.Add(10 * time.Minute).Unix()
	info := detectAt(Result{Failed: true, Output: "429: reset_at " + strconv.FormatInt(ts, 10)}, now)
	if info == nil {
		t.Fatal("expected rate limit")
	}
	if info.Wait != 10*time.Minute {
		t.Errorf("wait = %v, want 10m", info.Wait)
	}
}

func TestDetectFallbackDefault(t *testing.T) {
	info := Detect(Result{Failed: true, Output: "too many requests, slow down"})
	if info == nil {
		t.Fatal("expected rate limit")
	}
	if info.Wait != DefaultWait {
		t.Errorf("wait = %v, want default %v", info.Wait, DefaultWait)
	}
}

func TestDetectClampsFloor(t *testing.T) {
	info := Detect(Result{Failed: true, Output: "rate limit: try again in 2 seconds"})
	if info == nil {
		t.Fatal("expected rate limit")
	}
	if info.Wait != MinWait {
		t.Errorf("wait = %v, want floor %v", info.Wait, MinWait)
	}
}

func TestDetectClampsCeiling(t *testing.T) {
	info := Detect(Result{Failed: true, Output: "rate limit: try again in 5 hours"})
	if info == nil {
		t.Fatal("expected rate limit")
	}
	if info.Wait != MaxWait {
		t.Errorf("wait = %v, want ceiling %v", info.Wait, MaxWait)
	}
}

func TestDetectRetainsMatchedText(t *testing.T) {
	long := "rate limit " + strings.Repeat("x", 500)
	info := Detect(Result{Failed: true, Output: long})
	if info == nil {
		t.Fatal("expected rate limit")
	}
	if len(info.Matched) > matchedTextCap {
		t.Errorf("matched text not truncated: %d chars", len(info.Matched))
	}
	if !strings.HasPrefix(info.Matched, "rate limit") {
		t.Errorf("matched text should start at the signature, got %q", info.Matched[:20])
	}
}

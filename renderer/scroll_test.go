package renderer

import (
	"testing"
	"time"
)

func TestScrollDone(t *testing.T) {
	tests := []struct {
		name        string
		scrolled    int
		docHeight   int
		maxDistance int
		elapsed     time.Duration
		maxDuration time.Duration
		want        bool
	}{
		{"mid page keeps going", 1200, 5000, 60000, time.Second, 45 * time.Second, false},
		{"bottom reached", 5000, 5000, 60000, time.Second, 45 * time.Second, true},
		{"past bottom after growth shrank", 5400, 5000, 60000, time.Second, 45 * time.Second, true},
		{"page grew, keep chasing", 5000, 8000, 60000, time.Second, 45 * time.Second, false},
		{"distance cap ends infinite feed", 60000, 1 << 30, 60000, time.Second, 45 * time.Second, true},
		{"time cap ends infinite feed", 30000, 1 << 30, 0, 45 * time.Second, 45 * time.Second, true},
		{"zero caps never stop a growing page", 90000, 1 << 30, 0, time.Hour, 0, false},
		{"empty page is already done", 0, 0, 60000, 0, 45 * time.Second, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := scrollDone(tt.scrolled, tt.docHeight, tt.maxDistance, tt.elapsed, tt.maxDuration)
			if got != tt.want {
				t.Errorf("scrollDone(%d, %d, %d, %s, %s) = %v, want %v",
					tt.scrolled, tt.docHeight, tt.maxDistance, tt.elapsed, tt.maxDuration, got, tt.want)
			}
		})
	}
}

func TestTrackedPageRetirement(t *testing.T) {
	t.Run("repeated failures retire", func(t *testing.T) {
		tp := &trackedPage{created: time.Now()}
		for i := 0; i < 3; i++ {
			tp.recordFailure()
		}
		if !tp.shouldRetire(50, time.Hour) {
			t.Errorf("err score %v should retire the page", tp.errScore)
		}
	})

	t.Run("successes offset failures", func(t *testing.T) {
		tp := &trackedPage{created: time.Now()}
		tp.recordFailure()
		tp.recordFailure()
		tp.recordSuccess()
		tp.recordSuccess()
		if tp.shouldRetire(50, time.Hour) {
			t.Errorf("err score %v should not retire the page", tp.errScore)
		}
	})

	t.Run("use count cap", func(t *testing.T) {
		tp := &trackedPage{created: time.Now()}
		for i := 0; i < 50; i++ {
			tp.recordSuccess()
		}
		if !tp.shouldRetire(50, time.Hour) {
			t.Error("page at the use cap should retire")
		}
	})

	t.Run("old age", func(t *testing.T) {
		tp := &trackedPage{created: time.Now().Add(-time.Hour)}
		tp.recordSuccess()
		if !tp.shouldRetire(50, 30*time.Minute) {
			t.Error("page past max age should retire")
		}
	})
}

func TestIsTrackerDomain(t *testing.T) {
	tests := []struct {
		host string
		want bool
	}{
		{"google-analytics.com", true},
		{"www.google-analytics.com", true},
		{"ssl.google-analytics.com", true},
		{"Hotjar.COM", true},
		{"example.com", false},
		{"notgoogle-analytics.com", false},
		{"analytics.example.org", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := isTrackerDomain(tt.host); got != tt.want {
			t.Errorf("isTrackerDomain(%q) = %v, want %v", tt.host, got, tt.want)
		}
	}
}

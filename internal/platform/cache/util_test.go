package cache

import (
	"testing"
	"time"
)

func TestTimeUntilNextRefresh(t *testing.T) {
	t.Parallel()

	jst := time.FixedZone("JST", 9*60*60)
	tests := []struct {
		name string
		now  time.Time
		want time.Duration
	}{
		{name: "morning", now: time.Date(2024, 1, 10, 8, 0, 0, 0, jst), want: 10*time.Hour + 30*time.Minute},
		{name: "just before", now: time.Date(2024, 1, 10, 18, 29, 0, 0, jst), want: time.Minute},
		{name: "exactly at refresh", now: time.Date(2024, 1, 10, 18, 30, 0, 0, jst), want: 24 * time.Hour},
		{name: "evening", now: time.Date(2024, 1, 10, 20, 30, 0, 0, jst), want: 22 * time.Hour},
		{name: "utc input", now: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), want: 9*time.Hour + 30*time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := TimeUntilNextRefresh(tt.now); got != tt.want {
				t.Errorf("TimeUntilNextRefresh(%v) = %v, expected %v", tt.now, got, tt.want)
			}
		})
	}
}

func TestTimeUntilNextRefresh_AlwaysPositive(t *testing.T) {
	t.Parallel()

	now := time.Now()
	// Run multiple times to ensure consistency
	for i := 0; i < 48; i++ {
		d := TimeUntilNextRefresh(now.Add(time.Duration(i) * 30 * time.Minute))
		if d <= 0 || d > 24*time.Hour {
			t.Errorf("iteration %d: expected duration in (0, 24h], got %v", i, d)
		}
	}
}

package sync

import (
	"testing"
	"time"
)

func TestNextDelay(t *testing.T) {
	base := 30 * time.Second
	cap := time.Hour

	tests := []struct {
		name     string
		attempts int
		hint     time.Duration
		want     time.Duration
	}{
		{"first failure", 0, 0, 30 * time.Second},
		{"second failure", 1, 0, time.Minute},
		{"third failure", 2, 0, 2 * time.Minute},
		{"capped", 10, 0, time.Hour},
		{"negative attempts clamp", -3, 0, 30 * time.Second},
		{"hint wins", 5, 10 * time.Minute, 10 * time.Minute},
		{"hint capped", 0, 2 * time.Hour, time.Hour},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := nextDelay(tt.attempts, base, cap, tt.hint)
			if got != tt.want {
				t.Errorf("nextDelay(%d, %v, %v, %v) = %v, want %v",
					tt.attempts, base, cap, tt.hint, got, tt.want)
			}
		})
	}
}

func TestNextDelay_OverflowReturnsCap(t *testing.T) {
	got := nextDelay(80, 30*time.Second, time.Hour, 0)
	if got != time.Hour {
		t.Errorf("overflow must return the cap, got %v", got)
	}
}

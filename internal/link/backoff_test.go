package link

import (
	"testing"
	"time"
)

func TestCalculateBackoff(t *testing.T) {
	base := time.Second
	ceiling := 30 * time.Second

	tests := []struct {
		name     string
		failures int
		want     time.Duration
	}{
		{"zero failures", 0, time.Second},
		{"negative failures", -1, time.Second},
		{"one failure", 1, 2 * time.Second},
		{"two failures", 2, 4 * time.Second},
		{"four failures", 4, 16 * time.Second},
		{"five failures capped", 5, 30 * time.Second}, // would be 32s
		{"many failures capped", 200, 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calculateBackoff(tt.failures, base, ceiling)
			if got != tt.want {
				t.Errorf("calculateBackoff(%d, %v, %v) = %v, want %v", tt.failures, base, ceiling, got, tt.want)
			}
		})
	}
}

func TestCalculateBackoff_NonDecreasingUpToCap(t *testing.T) {
	base := 250 * time.Millisecond
	ceiling := 30 * time.Second
	prev := time.Duration(0)
	for failures := 0; failures <= 64; failures++ {
		got := calculateBackoff(failures, base, ceiling)
		if got < prev {
			t.Fatalf("calculateBackoff(%d) = %v, below previous %v", failures, got, prev)
		}
		if got > ceiling {
			t.Fatalf("calculateBackoff(%d) = %v, exceeds cap %v", failures, got, ceiling)
		}
		prev = got
	}
	if prev != ceiling {
		t.Fatalf("backoff settled at %v, want cap %v", prev, ceiling)
	}
}

func TestConnState_String(t *testing.T) {
	tests := map[ConnState]string{
		StateOffline:      "OFFLINE",
		StateConnecting:   "CONNECTING",
		StateOnline:       "ONLINE",
		StateReconnecting: "RECONNECTING",
	}
	for s, want := range tests {
		if got := s.String(); got != want {
			t.Fatalf("String() = %q, want %q", got, want)
		}
	}
}

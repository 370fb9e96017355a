package model

import (
	"testing"
	"time"
)

func TestFormatRemaining(t *testing.T) {
	tests := []struct {
		name      string
		remaining time.Duration
		want      string
	}{
		{"one hour one minute one second", 3661000 * time.Millisecond, "01:01:01"},
		{"zero", 0, "00:00:00"},
		{"negative", -5 * time.Second, "00:00:00"},
		{"sub-second truncated", 1999 * time.Millisecond, "00:00:01"},
		{"below one second", 999 * time.Millisecond, "00:00:00"},
		{"hours are not wrapped", 49*time.Hour + 2*time.Minute + 3*time.Second, "49:02:03"},
		{"five seconds", 5 * time.Second, "00:00:05"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatRemaining(tt.remaining); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

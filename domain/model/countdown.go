package model

import (
	"fmt"
	"time"
)

// FormatRemaining renders a countdown as zero-padded HH:MM:SS.
// Hours are total elapsed hours (not wrapped at 24) and sub-second remainders are truncated.
func FormatRemaining(remaining time.Duration) string {
	if remaining <= 0 {
		return "00:00:00"
	}

	total := int64(remaining / time.Second)
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60

	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}

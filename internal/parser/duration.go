package parser

import (
	"fmt"
	"time"
)

// FormatClock renders a duration as h:mm:ss, or m:ss under an hour
// e.g. 45s -> "0:45", 61m5s -> "1:01:05"
func FormatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	hours := total / 3600
	minutes := (total % 3600) / 60
	secs := total % 60

	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, secs)
	}
	return fmt.Sprintf("%d:%02d", minutes, secs)
}

// FormatSeconds is FormatClock for a count of seconds
func FormatSeconds(seconds int64) string {
	return FormatClock(time.Duration(seconds) * time.Second)
}

// FormatDuration formats a duration in a short human-readable way
func FormatDuration(d time.Duration) string {
	if d.Hours() >= 1 {
		return fmt.Sprintf("%.1fh", d.Hours())
	} else if d.Minutes() >= 1 {
		return fmt.Sprintf("%.0fm", d.Minutes())
	} else {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
}

// FormatResetIn describes the days left until the weekly reset
func FormatResetIn(days int) string {
	if days == 1 {
		return "resets tomorrow"
	}
	return fmt.Sprintf("resets in %d days", days)
}

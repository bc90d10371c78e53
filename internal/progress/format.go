package progress

import (
	"fmt"
	"time"
)

// FormatDuration renders d as "Xh Ym", "Xm Ys" or "Xs".
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d.Round(time.Second) / time.Second)
	hours := secs / 3600
	minutes := (secs % 3600) / 60
	seconds := secs % 60

	switch {
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}

// FormatRate renders queries per minute.
func FormatRate(perMinute float64) string {
	return fmt.Sprintf("%.1f q/min", perMinute)
}

// FormatPercentage formats a ratio (0-1) as percentage.
func FormatPercentage(ratio float64) string {
	return fmt.Sprintf("%.1f%%", ratio*100)
}

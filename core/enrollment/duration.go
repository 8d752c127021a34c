package enrollment

import (
	"strconv"
	"strings"
)

// FormatDuration renders seconds as a short human readable duration: 3665 -> "1h 1m 5s".
func FormatDuration(seconds int) string {
	if seconds <= 0 {
		return "0s"
	}

	days, rem := seconds/86400, seconds%86400
	hours, rem := rem/3600, rem%3600
	minutes, secs := rem/60, rem%60

	parts := make([]string, 0, 4)
	if days > 0 {
		parts = append(parts, strconv.Itoa(days)+"d")
	}
	if hours > 0 {
		parts = append(parts, strconv.Itoa(hours)+"h")
	}
	if minutes > 0 {
		parts = append(parts, strconv.Itoa(minutes)+"m")
	}
	if secs > 0 || len(parts) == 0 {
		parts = append(parts, strconv.Itoa(secs)+"s")
	}
	return strings.Join(parts, " ")
}

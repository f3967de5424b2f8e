package api

import (
	"fmt"
	"time"
)

// relativeTime renders elapsed time since t in the coarse buckets the
// frontend expects: just now, seconds, minutes, hours, days.
func relativeTime(now, t time.Time) string {
	if t.IsZero() {
		return ""
	}
	seconds := int(now.Sub(t).Seconds())
	if seconds < 0 {
		seconds = -seconds
	}
	switch {
	case seconds == 0:
		return "just now"
	case seconds < 60:
		return fmt.Sprintf("%d second%s ago", seconds, plural(seconds))
	case seconds < 3600:
		minutes := seconds / 60
		return fmt.Sprintf("%d minute%s ago", minutes, plural(minutes))
	case seconds < 86400:
		hours := seconds / 3600
		return fmt.Sprintf("%d hour%s ago", hours, plural(hours))
	default:
		days := seconds / 86400
		return fmt.Sprintf("%d day%s ago", days, plural(days))
	}
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

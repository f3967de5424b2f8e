package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRelativeTime(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.September, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		t    time.Time
		want string
	}{
		{"zero time", time.Time{}, ""},
		{"same instant", now, "just now"},
		{"one second", now.Add(-time.Second), "1 second ago"},
		{"forty seconds", now.Add(-40 * time.Second), "40 seconds ago"},
		{"one minute", now.Add(-time.Minute), "1 minute ago"},
		{"thirty minutes", now.Add(-30 * time.Minute), "30 minutes ago"},
		{"ninety minutes", now.Add(-90 * time.Minute), "1 hour ago"},
		{"five hours", now.Add(-5 * time.Hour), "5 hours ago"},
		{"one day", now.Add(-24 * time.Hour), "1 day ago"},
		{"three days", now.Add(-73 * time.Hour), "3 days ago"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, relativeTime(now, tc.t))
		})
	}
}

package crawl

import "time"

// Plan emits windowDays consecutive dates starting at today+startOffsetDays.
func Plan(today time.Time, startOffsetDays, windowDays int) []Date {
	if windowDays <= 0 {
		return nil
	}
	start := today.AddDate(0, 0, startOffsetDays)
	dates := make([]Date, 0, windowDays)
	for i := 0; i < windowDays; i++ {
		dates = append(dates, NewDate(start.AddDate(0, 0, i)))
	}
	return dates
}

// Stripe partitions dates across n workers round-robin (dates[i], dates[i+n],
// dates[i+2n], ...). If the upstream degrades partway through a run, the
// damage spreads evenly across the window instead of clustering at one end.
func Stripe(dates []Date, n int) [][]Date {
	if n <= 0 {
		n = 1
	}
	if n > len(dates) && len(dates) > 0 {
		n = len(dates)
	}
	parts := make([][]Date, n)
	for i, d := range dates {
		parts[i%n] = append(parts[i%n], d)
	}
	return parts
}

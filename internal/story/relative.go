// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package story

import (
	"fmt"
	"time"
)

// Relative renders the age of t relative to now in the long form the story
// header shows ("just now", "5 minutes ago", "yesterday").
func Relative(t, now time.Time) string {
	d := now.Sub(t)
	if d < 0 {
		d = -d
		return "in " + span(d)
	}
	if d < time.Minute {
		return "just now"
	}
	if d >= 24*time.Hour && d < 48*time.Hour {
		return "yesterday"
	}
	return span(d) + " ago"
}

func span(d time.Duration) string {
	switch {
	case d < time.Minute:
		return plural(int(d/time.Second), "second")
	case d < time.Hour:
		return plural(int(d/time.Minute), "minute")
	case d < 24*time.Hour:
		return plural(int(d/time.Hour), "hour")
	default:
		return plural(int(d/(24*time.Hour)), "day")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

package utils

import (
	"time"
)

// TimeIn returns t in the named location, falling back to UTC for an unknown zone.
func TimeIn(t time.Time, zone string) time.Time {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return t.UTC()
	}
	return t.In(loc)
}

// PrettyDate formats t for notification messages.
func PrettyDate(t time.Time) string {
	return t.UTC().Format("02 Jan 2006 15:04 UTC")
}

// PrettyDuration renders d rounded to minutes, e.g. "3h25m".
func PrettyDuration(d time.Duration) string {
	d = d.Round(time.Minute)
	s := d.String()
	if len(s) > 2 && s[len(s)-2:] == "0s" {
		s = s[:len(s)-2]
	}
	return s
}

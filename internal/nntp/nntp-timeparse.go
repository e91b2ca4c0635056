package nntp

import (
	"fmt"
	"time"
)

// parseNNTPTimestamp parses the date/time argument pair of NEWGROUPS and
// NEWNEWS: YYMMDD or YYYYMMDD followed by HHMMSS. Two-digit years follow
// the draft rule of picking the century that keeps the date in the past:
// a YY greater than the current two-digit year means 19YY, anything else
// 20YY. The timestamp is interpreted in UTC when the client appended GMT,
// otherwise in server local time.
func parseNNTPTimestamp(date, clock string, gmt bool) (time.Time, error) {
	if len(clock) != 6 {
		return time.Time{}, fmt.Errorf("bad time %q", clock)
	}

	var year int
	switch len(date) {
	case 8:
		if _, err := fmt.Sscanf(date[:4], "%04d", &year); err != nil {
			return time.Time{}, fmt.Errorf("bad date %q", date)
		}
		date = date[4:]
	case 6:
		var yy int
		if _, err := fmt.Sscanf(date[:2], "%02d", &yy); err != nil {
			return time.Time{}, fmt.Errorf("bad date %q", date)
		}
		if yy > time.Now().Year()%100 {
			year = 1900 + yy
		} else {
			year = 2000 + yy
		}
		date = date[2:]
	default:
		return time.Time{}, fmt.Errorf("bad date %q", date)
	}

	var month, day, hour, minute, second int
	if _, err := fmt.Sscanf(date, "%02d%02d", &month, &day); err != nil {
		return time.Time{}, fmt.Errorf("bad date %q", date)
	}
	if _, err := fmt.Sscanf(clock, "%02d%02d%02d", &hour, &minute, &second); err != nil {
		return time.Time{}, fmt.Errorf("bad time %q", clock)
	}
	if month < 1 || month > 12 || day < 1 || day > 31 || hour > 23 || minute > 59 || second > 60 {
		return time.Time{}, fmt.Errorf("timestamp out of range %q %q", date, clock)
	}

	loc := time.Local
	if gmt {
		loc = time.UTC
	}
	return time.Date(year, time.Month(month), day, hour, minute, second, 0, loc), nil
}

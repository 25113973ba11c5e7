package parse

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

var dateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// IsDate reports whether raw is a plain calendar date (YYYY-MM-DD).
func IsDate(raw string) bool {
	return dateRe.MatchString(strings.TrimSpace(raw))
}

// ParseDate returns local midnight of a YYYY-MM-DD date in loc.
func ParseDate(raw string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(dateLayout, strings.TrimSpace(raw), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", raw)
	}
	return t, nil
}

// ParseInstant accepts an RFC 3339 timestamp with an explicit offset.
func ParseInstant(raw string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: want RFC 3339 with offset", raw)
	}
	return t, nil
}

// ParseRange turns a pair of bounds into a half-open range [start, end).
// Dates are read in loc; a date upper bound is inclusive, so the range ends at the following midnight.
func ParseRange(from, to string, loc *time.Location) (time.Time, time.Time, error) {
	start, err := parseBound(from, loc, false)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if strings.TrimSpace(to) == "" {
		to = from
	}
	end, err := parseBound(to, loc, true)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if !start.Before(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("range start %s is not before end %s", start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return start, end, nil
}

func parseBound(raw string, loc *time.Location, upper bool) (time.Time, error) {
	if IsDate(raw) {
		d, err := ParseDate(raw, loc)
		if err != nil {
			return time.Time{}, err
		}
		if upper {
			d = d.AddDate(0, 0, 1)
		}
		return d, nil
	}
	return ParseInstant(raw)
}

package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var clockRe = regexp.MustCompile(`^([01]?\d|2[0-4]):([0-5]\d)$`)

// MinutesPerDay is the value ParseClock returns for "24:00".
const MinutesPerDay = 24 * 60

// ParseClock converts a wall-clock "HH:MM" into minutes after midnight.
// "24:00" is accepted as the end of the day.
func ParseClock(raw string) (int, error) {
	s := strings.TrimSpace(raw)
	m := clockRe.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid clock time %q: want HH:MM", raw)
	}
	hours, _ := strconv.Atoi(m[1])
	minutes, _ := strconv.Atoi(m[2])
	if hours == 24 && minutes != 0 {
		return 0, fmt.Errorf("invalid clock time %q: past end of day", raw)
	}
	return hours*60 + minutes, nil
}

// FormatClock is the inverse of ParseClock.
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

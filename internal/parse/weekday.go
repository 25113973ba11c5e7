package parse

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

var daySepRe = regexp.MustCompile(`[\s,;]+`)

var weekdayCodes = map[string]time.Weekday{
	"MO": time.Monday, "MON": time.Monday, "MONDAY": time.Monday,
	"TU": time.Tuesday, "TUE": time.Tuesday, "TUESDAY": time.Tuesday,
	"WE": time.Wednesday, "WED": time.Wednesday, "WEDNESDAY": time.Wednesday,
	"TH": time.Thursday, "THU": time.Thursday, "THURSDAY": time.Thursday,
	"FR": time.Friday, "FRI": time.Friday, "FRIDAY": time.Friday,
	"SA": time.Saturday, "SAT": time.Saturday, "SATURDAY": time.Saturday,
	"SU": time.Sunday, "SUN": time.Sunday, "SUNDAY": time.Sunday,
}

var rfcCodes = [...]string{"SU", "MO", "TU", "WE", "TH", "FR", "SA"}

// ParseWeekdays reads a day list such as "TU,WE,TH" or "tue wed thu".
// The result is sorted Sunday first and has no duplicates.
func ParseWeekdays(raw string) ([]time.Weekday, error) {
	s := strings.TrimSpace(daySepRe.ReplaceAllString(strings.ToUpper(raw), " "))
	if s == "" {
		return nil, fmt.Errorf("empty weekday list")
	}

	seen := make(map[time.Weekday]bool)
	var days []time.Weekday
	for _, tok := range strings.Split(s, " ") {
		d, ok := weekdayCodes[tok]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q in %q", tok, raw)
		}
		if seen[d] {
			continue
		}
		seen[d] = true
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })
	return days, nil
}

// FormatWeekdays renders days as RFC 5545 BYDAY codes, e.g. "TU,WE,TH".
func FormatWeekdays(days []time.Weekday) string {
	codes := make([]string, len(days))
	for i, d := range days {
		codes[i] = rfcCodes[d]
	}
	return strings.Join(codes, ",")
}

// NormalizeWeekdays rewrites any accepted day list into its canonical BYDAY form.
func NormalizeWeekdays(raw string) (string, error) {
	days, err := ParseWeekdays(raw)
	if err != nil {
		return "", err
	}
	return FormatWeekdays(days), nil
}

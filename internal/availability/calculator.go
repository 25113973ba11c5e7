package availability

import (
	"errors"
	"fmt"
	"iter"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	"booking-core-backend/internal/model"
)

// ErrInvalidQuery is returned for malformed ranges, durations or capacities.
var ErrInvalidQuery = errors.New("invalid availability query")

const (
	maxQueryDays = 366
	dayKeyLayout = "2006-01-02"
)

var rruleDays = [...]rrule.Weekday{rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}

// Query selects slots inside [From, To).
type Query struct {
	From time.Time
	To   time.Time
	// Duration of each slot; zero means one slot_minutes unit.
	Duration time.Duration
	// Capacity requested per slot; zero means 1.
	Capacity int
	// Exclude ignores one reservation, used when it is being moved.
	Exclude string
	// PreferredHost restricts host assignment to a single host.
	PreferredHost string
}

// Slot is one open, bookable interval.
type Slot struct {
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Host      string    `json:"host_identifier"`
	Remaining int       `json:"remaining_capacity"`
}

// Calculator derives open slots from a rules snapshot and the bookings overlapping the queried days.
// The bookings must cover every local day the query touches, padded by the buffers,
// so that per-day host caps and round-robin counts see the whole day.
type Calculator struct {
	rules    Rules
	bookings []Booking
}

type candidate struct {
	start time.Time
	end   time.Time
	hosts []Window
}

// New returns a calculator over rules and the active subset of bookings.
func New(rules Rules, bookings []Booking) *Calculator {
	active := make([]Booking, 0, len(bookings))
	for _, b := range bookings {
		if b.Status.Active() {
			active = append(active, b)
		}
	}
	return &Calculator{rules: rules, bookings: active}
}

// Slots validates q and returns a finite sequence of open slots in ascending start order.
// Slots are produced one local day at a time as the sequence is consumed.
func (c *Calculator) Slots(q Query) (iter.Seq[Slot], error) {
	q, err := c.normalize(q)
	if err != nil {
		return nil, err
	}

	loc := c.rules.Location
	firstDay := localMidnight(q.From.In(loc))
	lastDay := localMidnight(q.To.Add(-time.Nanosecond).In(loc))
	if lastDay.Sub(firstDay) > maxQueryDays*24*time.Hour {
		return nil, fmt.Errorf("%w: range spans more than %d days", ErrInvalidQuery, maxQueryDays)
	}

	occurrences, err := c.expandWindows(firstDay, lastDay.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}

	bookings := c.bookingsExcluding(q.Exclude)
	multiHost := c.distinctHosts() > 1

	return func(yield func(Slot) bool) {
		for day := firstDay; !day.After(lastDay); day = day.AddDate(0, 0, 1) {
			windows := occurrences[day.Format(dayKeyLayout)]
			if len(windows) == 0 {
				continue
			}
			for _, slot := range c.daySlots(day, q, bookings, windows, multiHost) {
				if !yield(slot) {
					return
				}
			}
		}
	}, nil
}

func (c *Calculator) normalize(q Query) (Query, error) {
	if q.From.IsZero() || q.To.IsZero() || !q.From.Before(q.To) {
		return q, fmt.Errorf("%w: range start must be before range end", ErrInvalidQuery)
	}

	slot := time.Duration(c.rules.SlotMinutes) * time.Minute
	if q.Duration == 0 {
		q.Duration = slot
	}
	if q.Duration < 0 || q.Duration%time.Minute != 0 {
		return q, fmt.Errorf("%w: duration must be a positive whole number of minutes", ErrInvalidQuery)
	}
	if !c.rules.AllowArbitraryDuration && q.Duration%slot != 0 {
		return q, fmt.Errorf("%w: duration %s is not a multiple of the %d minute slot", ErrInvalidQuery, q.Duration, c.rules.SlotMinutes)
	}

	if q.Capacity == 0 {
		q.Capacity = 1
	}
	if q.Capacity < 0 {
		return q, fmt.Errorf("%w: capacity must be positive", ErrInvalidQuery)
	}
	if q.Capacity > c.rules.Capacity {
		return q, fmt.Errorf("%w: requested capacity %d exceeds resource capacity %d", ErrInvalidQuery, q.Capacity, c.rules.Capacity)
	}
	return q, nil
}

// expandWindows maps each local date in [from, until) to the windows recurring on it.
func (c *Calculator) expandWindows(from, until time.Time) (map[string][]Window, error) {
	out := make(map[string][]Window)
	for _, w := range c.rules.Windows {
		days := make([]rrule.Weekday, len(w.Days))
		for i, d := range w.Days {
			days[i] = rruleDays[d]
		}
		// anchored at local noon so the occurrence date never slides across a DST edge
		rule, err := rrule.NewRRule(rrule.ROption{
			Freq:      rrule.WEEKLY,
			Dtstart:   time.Date(from.Year(), from.Month(), from.Day(), 12, 0, 0, 0, from.Location()),
			Byweekday: days,
		})
		if err != nil {
			return nil, fmt.Errorf("expand window for host %s: %w", w.Host, err)
		}
		for _, occ := range rule.Between(from, until, true) {
			if !occ.Before(until) {
				continue
			}
			key := occ.In(c.rules.Location).Format(dayKeyLayout)
			out[key] = append(out[key], w)
		}
	}
	return out, nil
}

func (c *Calculator) daySlots(day time.Time, q Query, bookings []Booking, windows []Window, multiHost bool) []Slot {
	durMinutes := int(q.Duration / time.Minute)
	byStart := make(map[int64]*candidate)
	var order []*candidate

	for _, w := range windows {
		for off := w.Start; off+durMinutes <= w.End; off += c.rules.SlotMinutes {
			start, okStart := wallClock(day, off)
			end, okEnd := wallClock(day, off+durMinutes)
			// wall times inside a spring-forward gap do not exist; a slot must also last exactly q.Duration
			if !okStart || !okEnd || end.Sub(start) != q.Duration {
				continue
			}
			if start.Before(q.From) || end.After(q.To) {
				continue
			}
			if c.blackedOut(start, end, w.Host) {
				continue
			}
			key := start.UnixNano()
			cand, ok := byStart[key]
			if !ok {
				cand = &candidate{start: start, end: end}
				byStart[key] = cand
				order = append(order, cand)
			}
			cand.hosts = append(cand.hosts, w)
		}
	}

	sort.Slice(order, func(i, j int) bool { return order[i].start.Before(order[j].start) })

	dayEnd := day.AddDate(0, 0, 1)
	slots := make([]Slot, 0, len(order))
	for _, cand := range order {
		remaining := c.rules.Capacity - c.peakUsage(bookings, cand.start, cand.end)
		if remaining < q.Capacity {
			continue
		}
		host, ok := c.pickHost(cand, day, dayEnd, q.PreferredHost, bookings, multiHost)
		if !ok {
			continue
		}
		slots = append(slots, Slot{Start: cand.start, End: cand.end, Host: host, Remaining: remaining})
	}
	return slots
}

func (c *Calculator) pickHost(cand *candidate, dayStart, dayEnd time.Time, preferred string, bookings []Booking, multiHost bool) (string, bool) {
	var eligible []Window
	for _, w := range cand.hosts {
		if preferred != "" && w.Host != preferred {
			continue
		}
		if c.rules.MaxPerDayPerHost > 0 && hostDayCount(bookings, w.Host, dayStart, dayEnd, false) >= c.rules.MaxPerDayPerHost {
			continue
		}
		if multiHost && c.hostBusy(bookings, w.Host, cand.start, cand.end) {
			continue
		}
		eligible = append(eligible, w)
	}
	if len(eligible) == 0 {
		return "", false
	}

	best := eligible[0]
	switch c.rules.Pooling {
	case model.PoolingRoundRobin:
		bestLoad := hostDayCount(bookings, best.Host, dayStart, dayEnd, true)
		for _, w := range eligible[1:] {
			load := hostDayCount(bookings, w.Host, dayStart, dayEnd, true)
			if load < bestLoad || (load == bestLoad && w.Host < best.Host) {
				best, bestLoad = w, load
			}
		}
	default:
		for _, w := range eligible[1:] {
			if w.Position < best.Position {
				best = w
			}
		}
	}
	return best.Host, true
}

// peakUsage is the highest capacity consumed by padded bookings at any instant of [start, end).
func (c *Calculator) peakUsage(bookings []Booking, start, end time.Time) int {
	type span struct {
		start, end time.Time
		capacity   int
	}
	var spans []span
	points := []time.Time{start}
	for _, b := range bookings {
		ps, pe := c.padded(b)
		if !overlaps(ps, pe, start, end) {
			continue
		}
		spans = append(spans, span{start: ps, end: pe, capacity: b.Capacity})
		if ps.After(start) {
			points = append(points, ps)
		}
	}

	peak := 0
	for _, p := range points {
		sum := 0
		for _, s := range spans {
			if !p.Before(s.start) && p.Before(s.end) {
				sum += s.capacity
			}
		}
		if sum > peak {
			peak = sum
		}
	}
	return peak
}

func (c *Calculator) hostBusy(bookings []Booking, host string, start, end time.Time) bool {
	for _, b := range bookings {
		if b.Host != host {
			continue
		}
		ps, pe := c.padded(b)
		if overlaps(ps, pe, start, end) {
			return true
		}
	}
	return false
}

func (c *Calculator) blackedOut(start, end time.Time, host string) bool {
	for _, b := range c.rules.Blackouts {
		if b.Host != "" && b.Host != host {
			continue
		}
		if overlaps(b.Start, b.End, start, end) {
			return true
		}
	}
	return false
}

func (c *Calculator) padded(b Booking) (time.Time, time.Time) {
	return b.Start.Add(-c.rules.BufferBefore), b.End.Add(c.rules.BufferAfter)
}

func (c *Calculator) bookingsExcluding(id string) []Booking {
	if id == "" {
		return c.bookings
	}
	out := make([]Booking, 0, len(c.bookings))
	for _, b := range c.bookings {
		if b.ID != id {
			out = append(out, b)
		}
	}
	return out
}

func (c *Calculator) distinctHosts() int {
	hosts := make(map[string]struct{})
	for _, w := range c.rules.Windows {
		hosts[w.Host] = struct{}{}
	}
	return len(hosts)
}

func hostDayCount(bookings []Booking, host string, dayStart, dayEnd time.Time, confirmedOnly bool) int {
	n := 0
	for _, b := range bookings {
		if b.Host != host {
			continue
		}
		if confirmedOnly && b.Status != model.StatusConfirmed {
			continue
		}
		if !b.Start.Before(dayStart) && b.Start.Before(dayEnd) {
			n++
		}
	}
	return n
}

func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

func localMidnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// wallClock builds the instant at minutes after midnight of day, in day's zone.
// It reports false when that wall time does not exist on the date.
func wallClock(day time.Time, minutes int) (time.Time, bool) {
	t := time.Date(day.Year(), day.Month(), day.Day(), 0, minutes, 0, 0, day.Location())
	want := time.Date(day.Year(), day.Month(), day.Day()+minutes/(24*60), 0, 0, 0, 0, time.UTC)
	got := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return t, got.Equal(want) && t.Hour()*60+t.Minute() == minutes%(24*60)
}

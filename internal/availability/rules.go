package availability

import (
	"fmt"
	"time"

	"booking-core-backend/internal/model"
	"booking-core-backend/internal/parse"
)

// Window is a parsed weekly availability window.
type Window struct {
	Host     string
	Days     []time.Weekday
	Start    int // minutes after local midnight
	End      int
	Position int
}

// Blackout removes an absolute range for one host, or for every host when Host is empty.
type Blackout struct {
	Host  string
	Start time.Time
	End   time.Time
}

// Booking is an existing reservation as seen by the calculator.
type Booking struct {
	ID       string
	Start    time.Time
	End      time.Time
	Host     string
	Capacity int
	Status   model.ReservationStatus
}

// Rules is an immutable snapshot of a resource's availability document.
type Rules struct {
	Location               *time.Location
	SlotMinutes            int
	BufferBefore           time.Duration
	BufferAfter            time.Duration
	MaxPerDayPerHost       int
	Capacity               int
	Pooling                model.PoolingPolicy
	AllowArbitraryDuration bool
	Windows                []Window
	Blackouts              []Blackout
}

// RulesFromResource parses the stored rules of r into a snapshot.
func RulesFromResource(r *model.Resource) (Rules, error) {
	loc, err := time.LoadLocation(r.Timezone)
	if err != nil {
		return Rules{}, fmt.Errorf("resource %s: %w", r.ID, err)
	}
	if r.SlotMinutes <= 0 {
		return Rules{}, fmt.Errorf("resource %s: slot_minutes must be positive", r.ID)
	}

	rules := Rules{
		Location:               loc,
		SlotMinutes:            r.SlotMinutes,
		BufferBefore:           time.Duration(r.BufferBeforeMinutes) * time.Minute,
		BufferAfter:            time.Duration(r.BufferAfterMinutes) * time.Minute,
		MaxPerDayPerHost:       r.MaxPerDayPerHost,
		Capacity:               r.Capacity,
		Pooling:                r.PoolingPolicy,
		AllowArbitraryDuration: r.AllowArbitraryDuration,
	}

	for i, w := range r.Windows {
		days, err := parse.ParseWeekdays(w.Days)
		if err != nil {
			return Rules{}, fmt.Errorf("resource %s window %d: %w", r.ID, i, err)
		}
		start, err := parse.ParseClock(w.StartTime)
		if err != nil {
			return Rules{}, fmt.Errorf("resource %s window %d: %w", r.ID, i, err)
		}
		end, err := parse.ParseClock(w.EndTime)
		if err != nil {
			return Rules{}, fmt.Errorf("resource %s window %d: %w", r.ID, i, err)
		}
		if start >= end {
			return Rules{}, fmt.Errorf("resource %s window %d: start %s is not before end %s", r.ID, i, w.StartTime, w.EndTime)
		}
		position := w.Position
		if position == 0 {
			position = i
		}
		rules.Windows = append(rules.Windows, Window{
			Host:     w.HostIdentifier,
			Days:     days,
			Start:    start,
			End:      end,
			Position: position,
		})
	}

	for _, b := range r.Blackouts {
		rules.Blackouts = append(rules.Blackouts, Blackout{
			Host:  b.HostIdentifier,
			Start: b.StartsAt,
			End:   b.EndsAt,
		})
	}

	return rules, nil
}

// BookingsFromReservations converts stored reservations for the calculator.
func BookingsFromReservations(rs []model.Reservation) []Booking {
	out := make([]Booking, 0, len(rs))
	for _, r := range rs {
		out = append(out, Booking{
			ID:       r.ID,
			Start:    r.StartTime,
			End:      r.EndTime,
			Host:     r.HostIdentifier,
			Capacity: r.CapacityConsumed,
			Status:   r.Status,
		})
	}
	return out
}

// MaxBuffer is the widest padding any booking can add on either side.
func (r Rules) MaxBuffer() time.Duration {
	if r.BufferBefore > r.BufferAfter {
		return r.BufferBefore
	}
	return r.BufferAfter
}

// LookupRange widens [from, to) to the bookings a query over it depends on:
// whole local days, for the per-day host counts, plus buffer padding.
func (r Rules) LookupRange(from, to time.Time) (time.Time, time.Time) {
	pad := r.MaxBuffer()
	start := localMidnight(from.Add(-pad).In(r.Location))
	end := localMidnight(to.Add(pad).In(r.Location)).AddDate(0, 0, 1)
	return start, end
}

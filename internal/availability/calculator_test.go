package availability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"booking-core-backend/internal/model"
)

func newYork(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	return loc
}

func midweekRules(loc *time.Location, hosts ...string) Rules {
	if len(hosts) == 0 {
		hosts = []string{"studio"}
	}
	rules := Rules{
		Location:    loc,
		SlotMinutes: 30,
		Capacity:    1,
		Pooling:     model.PoolingFirstAvailable,
	}
	for i, h := range hosts {
		rules.Windows = append(rules.Windows, Window{
			Host:     h,
			Days:     []time.Weekday{time.Tuesday, time.Wednesday, time.Thursday},
			Start:    12 * 60,
			End:      16 * 60,
			Position: i,
		})
	}
	return rules
}

func collect(t *testing.T, c *Calculator, q Query) []Slot {
	t.Helper()
	seq, err := c.Slots(q)
	require.NoError(t, err)
	var out []Slot
	for s := range seq {
		out = append(out, s)
	}
	return out
}

// 2025-03-04 is a Tuesday.
func tuesday(loc *time.Location) Query {
	from := time.Date(2025, 3, 4, 0, 0, 0, 0, loc)
	return Query{From: from, To: from.AddDate(0, 0, 1)}
}

func at(loc *time.Location, hour, minute int) time.Time {
	return time.Date(2025, 3, 4, hour, minute, 0, 0, loc)
}

func TestSlots_WeeklyWindowAndHold(t *testing.T) {
	loc := newYork(t)
	rules := midweekRules(loc)

	slots := collect(t, New(rules, nil), tuesday(loc))
	require.Len(t, slots, 8)
	assert.True(t, slots[0].Start.Equal(time.Date(2025, 3, 4, 17, 0, 0, 0, time.UTC)))
	assert.True(t, slots[7].End.Equal(at(loc, 16, 0)))
	for _, s := range slots {
		assert.Equal(t, "studio", s.Host)
		assert.Equal(t, 1, s.Remaining)
	}

	held := []Booking{{ID: "r1", Start: at(loc, 12, 0), End: at(loc, 12, 30), Host: "studio", Capacity: 1, Status: model.StatusHeld}}
	slots = collect(t, New(rules, held), tuesday(loc))
	require.Len(t, slots, 7)
	assert.True(t, slots[0].Start.Equal(at(loc, 12, 30)))
}

func TestSlots_IgnoresInactiveAndExcludedBookings(t *testing.T) {
	loc := newYork(t)
	rules := midweekRules(loc)
	bookings := []Booking{
		{ID: "gone", Start: at(loc, 12, 0), End: at(loc, 12, 30), Host: "studio", Capacity: 1, Status: model.StatusCancelled},
		{ID: "moving", Start: at(loc, 13, 0), End: at(loc, 13, 30), Host: "studio", Capacity: 1, Status: model.StatusConfirmed},
	}
	c := New(rules, bookings)

	assert.Len(t, collect(t, c, tuesday(loc)), 7)

	q := tuesday(loc)
	q.Exclude = "moving"
	assert.Len(t, collect(t, c, q), 8)
}

func TestSlots_MultiDayRange(t *testing.T) {
	loc := newYork(t)
	from := time.Date(2025, 3, 3, 0, 0, 0, 0, loc) // Monday
	slots := collect(t, New(midweekRules(loc), nil), Query{From: from, To: from.AddDate(0, 0, 7)})
	require.Len(t, slots, 24)
	for i := 1; i < len(slots); i++ {
		assert.True(t, slots[i-1].Start.Before(slots[i].Start))
	}
}

func TestSlots_PartialRangeClipsSlots(t *testing.T) {
	loc := newYork(t)
	slots := collect(t, New(midweekRules(loc), nil), Query{From: at(loc, 13, 15), To: at(loc, 15, 0)})
	require.Len(t, slots, 3)
	assert.True(t, slots[0].Start.Equal(at(loc, 13, 30)))
}

func TestSlots_DurationSpansSeveralUnits(t *testing.T) {
	loc := newYork(t)
	q := tuesday(loc)
	q.Duration = time.Hour
	slots := collect(t, New(midweekRules(loc), nil), q)
	// starts every 30 minutes from 12:00 to 15:00
	require.Len(t, slots, 7)
	assert.True(t, slots[6].End.Equal(at(loc, 16, 0)))
}

func TestSlots_AcrossDaylightSavingChange(t *testing.T) {
	loc := newYork(t)
	rules := Rules{
		Location:    loc,
		SlotMinutes: 60,
		Capacity:    1,
		Windows: []Window{{
			Host:  "studio",
			Days:  []time.Weekday{time.Saturday, time.Sunday},
			Start: 9 * 60,
			End:   10 * 60,
		}},
	}
	// 2025-03-09 is the spring-forward Sunday.
	from := time.Date(2025, 3, 8, 0, 0, 0, 0, loc)
	slots := collect(t, New(rules, nil), Query{From: from, To: from.AddDate(0, 0, 2)})
	require.Len(t, slots, 2)
	assert.True(t, slots[0].Start.Equal(time.Date(2025, 3, 8, 14, 0, 0, 0, time.UTC)))
	assert.True(t, slots[1].Start.Equal(time.Date(2025, 3, 9, 13, 0, 0, 0, time.UTC)))
	assert.Equal(t, time.Hour, slots[1].End.Sub(slots[1].Start))
}

func TestSlots_SpringForwardGap(t *testing.T) {
	loc := newYork(t)
	rules := Rules{
		Location:    loc,
		SlotMinutes: 30,
		Capacity:    1,
		Windows: []Window{{
			Host:  "studio",
			Days:  []time.Weekday{time.Sunday},
			Start: 1 * 60,
			End:   4 * 60,
		}},
	}
	from := time.Date(2025, 3, 9, 0, 0, 0, 0, loc)
	slots := collect(t, New(rules, nil), Query{From: from, To: from.AddDate(0, 0, 1)})

	// 02:00-03:00 is skipped on this date, so 01:30-02:00 and both 02:xx slots cannot exist.
	var starts []time.Time
	for _, s := range slots {
		assert.True(t, s.Start.Before(s.End), "slot %s -> %s", s.Start, s.End)
		assert.Equal(t, 30*time.Minute, s.End.Sub(s.Start))
		assert.NotEqual(t, 2, s.Start.In(loc).Hour())
		starts = append(starts, s.Start.UTC())
	}
	assert.Equal(t, []time.Time{
		time.Date(2025, 3, 9, 6, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 9, 7, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 9, 7, 30, 0, 0, time.UTC),
	}, starts)
}

func TestSlots_FallBackRepeatedHour(t *testing.T) {
	loc := newYork(t)
	rules := Rules{
		Location:    loc,
		SlotMinutes: 30,
		Capacity:    1,
		Windows: []Window{{
			Host:  "studio",
			Days:  []time.Weekday{time.Sunday},
			Start: 1 * 60,
			End:   3 * 60,
		}},
	}
	// 2025-11-02 repeats 01:00-02:00.
	from := time.Date(2025, 11, 2, 0, 0, 0, 0, loc)
	slots := collect(t, New(rules, nil), Query{From: from, To: from.AddDate(0, 0, 1)})
	require.NotEmpty(t, slots)
	for _, s := range slots {
		assert.Equal(t, 30*time.Minute, s.End.Sub(s.Start), "slot %s -> %s", s.Start, s.End)
	}
}

func TestSlots_Blackouts(t *testing.T) {
	loc := newYork(t)

	t.Run("resource wide", func(t *testing.T) {
		rules := midweekRules(loc)
		rules.Blackouts = []Blackout{{Start: at(loc, 13, 0), End: at(loc, 14, 0)}}
		slots := collect(t, New(rules, nil), tuesday(loc))
		require.Len(t, slots, 6)
		for _, s := range slots {
			assert.False(t, overlaps(s.Start, s.End, at(loc, 13, 0), at(loc, 14, 0)))
		}
	})

	t.Run("single host", func(t *testing.T) {
		rules := midweekRules(loc, "alice", "bob")
		rules.Blackouts = []Blackout{{Host: "alice", Start: at(loc, 12, 0), End: at(loc, 16, 0)}}
		slots := collect(t, New(rules, nil), tuesday(loc))
		require.Len(t, slots, 8)
		for _, s := range slots {
			assert.Equal(t, "bob", s.Host)
		}
	})

	t.Run("partial overlap discards the whole slot", func(t *testing.T) {
		rules := midweekRules(loc)
		rules.Blackouts = []Blackout{{Start: at(loc, 13, 15), End: at(loc, 13, 45)}}
		slots := collect(t, New(rules, nil), tuesday(loc))
		require.Len(t, slots, 6)
		for _, s := range slots {
			assert.False(t, overlaps(s.Start, s.End, at(loc, 13, 15), at(loc, 13, 45)))
			assert.Equal(t, 30*time.Minute, s.End.Sub(s.Start))
		}
	})
}

func TestSlots_BuffersPadExistingBookings(t *testing.T) {
	loc := newYork(t)
	rules := midweekRules(loc)
	rules.BufferAfter = 15 * time.Minute
	rules.BufferBefore = 15 * time.Minute
	bookings := []Booking{{ID: "r1", Start: at(loc, 13, 0), End: at(loc, 13, 30), Host: "studio", Capacity: 1, Status: model.StatusConfirmed}}

	slots := collect(t, New(rules, bookings), tuesday(loc))
	// 12:30, 13:00 and 13:30 all touch [12:45, 13:45)
	require.Len(t, slots, 5)
	for _, s := range slots {
		assert.False(t, s.Start.Equal(at(loc, 12, 30)))
		assert.False(t, s.Start.Equal(at(loc, 13, 30)))
	}
}

func TestSlots_SharedCapacity(t *testing.T) {
	loc := newYork(t)
	rules := midweekRules(loc)
	rules.Capacity = 3
	bookings := []Booking{
		{ID: "a", Start: at(loc, 12, 0), End: at(loc, 13, 0), Host: "studio", Capacity: 2, Status: model.StatusConfirmed},
	}
	c := New(rules, bookings)

	slots := collect(t, c, tuesday(loc))
	require.Len(t, slots, 8)
	assert.Equal(t, 1, slots[0].Remaining)
	assert.Equal(t, 1, slots[1].Remaining)
	assert.Equal(t, 3, slots[2].Remaining)

	q := tuesday(loc)
	q.Capacity = 2
	slots = collect(t, c, q)
	require.Len(t, slots, 6)
	assert.True(t, slots[0].Start.Equal(at(loc, 13, 0)))
}

func TestSlots_PeakUsageNotSum(t *testing.T) {
	loc := newYork(t)
	rules := midweekRules(loc)
	rules.Capacity = 2
	rules.AllowArbitraryDuration = true
	// two back-to-back bookings never overlap each other, so an hour-long slot still has one seat
	bookings := []Booking{
		{ID: "a", Start: at(loc, 12, 0), End: at(loc, 12, 30), Host: "studio", Capacity: 1, Status: model.StatusConfirmed},
		{ID: "b", Start: at(loc, 12, 30), End: at(loc, 13, 0), Host: "studio", Capacity: 1, Status: model.StatusConfirmed},
	}
	q := tuesday(loc)
	q.Duration = time.Hour
	slots := collect(t, New(rules, bookings), q)
	require.NotEmpty(t, slots)
	assert.True(t, slots[0].Start.Equal(at(loc, 12, 0)))
	assert.Equal(t, 1, slots[0].Remaining)
}

func TestSlots_HostSelection(t *testing.T) {
	loc := newYork(t)

	testCases := []struct {
		name     string
		pooling  model.PoolingPolicy
		hosts    []string
		bookings []Booking
		wantHost string
	}{
		{
			name:     "round robin ties break on identifier",
			pooling:  model.PoolingRoundRobin,
			hosts:    []string{"bob", "alice"},
			wantHost: "alice",
		},
		{
			name:    "round robin prefers fewer confirmed bookings that day",
			pooling: model.PoolingRoundRobin,
			hosts:   []string{"alice", "bob"},
			bookings: []Booking{
				{ID: "x", Start: at(loc, 15, 0), End: at(loc, 15, 30), Host: "alice", Capacity: 1, Status: model.StatusConfirmed},
			},
			wantHost: "bob",
		},
		{
			name:     "first available follows window order",
			pooling:  model.PoolingFirstAvailable,
			hosts:    []string{"bob", "alice"},
			wantHost: "bob",
		},
		{
			name:    "busy host is skipped",
			pooling: model.PoolingFirstAvailable,
			hosts:   []string{"alice", "bob"},
			bookings: []Booking{
				{ID: "x", Start: at(loc, 12, 0), End: at(loc, 12, 30), Host: "alice", Capacity: 1, Status: model.StatusHeld},
			},
			wantHost: "bob",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rules := midweekRules(loc, tc.hosts...)
			rules.Capacity = 2
			rules.Pooling = tc.pooling
			slots := collect(t, New(rules, tc.bookings), tuesday(loc))
			require.NotEmpty(t, slots)
			assert.True(t, slots[0].Start.Equal(at(loc, 12, 0)))
			assert.Equal(t, tc.wantHost, slots[0].Host)
		})
	}
}

func TestSlots_PreferredHost(t *testing.T) {
	loc := newYork(t)
	rules := midweekRules(loc, "alice", "bob")
	q := tuesday(loc)
	q.PreferredHost = "bob"
	slots := collect(t, New(rules, nil), q)
	require.Len(t, slots, 8)
	assert.Equal(t, "bob", slots[0].Host)

	q.PreferredHost = "carol"
	assert.Empty(t, collect(t, New(rules, nil), q))
}

func TestSlots_MaxPerDayPerHost(t *testing.T) {
	loc := newYork(t)
	bookings := []Booking{{ID: "x", Start: at(loc, 12, 0), End: at(loc, 12, 30), Host: "alice", Capacity: 1, Status: model.StatusHeld}}

	single := midweekRules(loc, "alice")
	single.MaxPerDayPerHost = 1
	single.Capacity = 5
	assert.Empty(t, collect(t, New(single, bookings), tuesday(loc)))

	// the next day is unaffected
	q := tuesday(loc)
	q.From, q.To = q.To, q.To.AddDate(0, 0, 1)
	assert.Len(t, collect(t, New(single, bookings), q), 8)

	pooled := midweekRules(loc, "alice", "bob")
	pooled.MaxPerDayPerHost = 1
	pooled.Capacity = 5
	slots := collect(t, New(pooled, bookings), tuesday(loc))
	require.Len(t, slots, 8)
	for _, s := range slots {
		assert.Equal(t, "bob", s.Host)
	}
}

func TestSlots_NoWindows(t *testing.T) {
	loc := newYork(t)
	rules := Rules{Location: loc, SlotMinutes: 30, Capacity: 1}
	assert.Empty(t, collect(t, New(rules, nil), tuesday(loc)))
}

func TestSlots_StopsEarly(t *testing.T) {
	loc := newYork(t)
	seq, err := New(midweekRules(loc), nil).Slots(tuesday(loc))
	require.NoError(t, err)
	n := 0
	for range seq {
		n++
		if n == 2 {
			break
		}
	}
	assert.Equal(t, 2, n)
}

func TestSlots_InvalidQueries(t *testing.T) {
	loc := newYork(t)
	c := New(midweekRules(loc), nil)
	base := tuesday(loc)

	testCases := []struct {
		name   string
		mutate func(q *Query)
	}{
		{"empty range", func(q *Query) { q.To = q.From }},
		{"reversed range", func(q *Query) { q.From, q.To = q.To, q.From }},
		{"duration not a slot multiple", func(q *Query) { q.Duration = 45 * time.Minute }},
		{"fractional minutes", func(q *Query) { q.Duration = 30*time.Minute + time.Second }},
		{"capacity above resource", func(q *Query) { q.Capacity = 2 }},
		{"range too long", func(q *Query) { q.To = q.From.AddDate(2, 0, 0) }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			q := base
			tc.mutate(&q)
			_, err := c.Slots(q)
			assert.ErrorIs(t, err, ErrInvalidQuery)
		})
	}
}

func TestSlots_ArbitraryDuration(t *testing.T) {
	loc := newYork(t)
	rules := midweekRules(loc)
	rules.AllowArbitraryDuration = true
	q := tuesday(loc)
	q.Duration = 45 * time.Minute
	slots := collect(t, New(rules, nil), q)
	require.NotEmpty(t, slots)
	assert.Equal(t, 45*time.Minute, slots[0].End.Sub(slots[0].Start))
	assert.True(t, slots[len(slots)-1].End.Before(at(loc, 16, 0)) || slots[len(slots)-1].End.Equal(at(loc, 16, 0)))
}

func TestRulesFromResource(t *testing.T) {
	r := &model.Resource{
		ID:                 "room-1",
		Capacity:           2,
		Timezone:           "America/New_York",
		SlotMinutes:        30,
		BufferAfterMinutes: 10,
		PoolingPolicy:      model.PoolingRoundRobin,
		Windows: []model.AvailabilityWindow{
			{HostIdentifier: "alice", Days: "TU,WE", StartTime: "09:00", EndTime: "12:00"},
			{HostIdentifier: "bob", Days: "thursday", StartTime: "13:00", EndTime: "24:00", Position: 5},
		},
	}

	rules, err := RulesFromResource(r)
	require.NoError(t, err)
	assert.Equal(t, "America/New_York", rules.Location.String())
	assert.Equal(t, 10*time.Minute, rules.BufferAfter)
	assert.Equal(t, 10*time.Minute, rules.MaxBuffer())
	require.Len(t, rules.Windows, 2)
	assert.Equal(t, []time.Weekday{time.Tuesday, time.Wednesday}, rules.Windows[0].Days)
	assert.Equal(t, 9*60, rules.Windows[0].Start)
	assert.Equal(t, 1440, rules.Windows[1].End)
	assert.Equal(t, 5, rules.Windows[1].Position)

	r.Windows[0].EndTime = "08:00"
	_, err = RulesFromResource(r)
	assert.Error(t, err)

	r.Timezone = "Mars/Olympus"
	_, err = RulesFromResource(r)
	assert.Error(t, err)
}

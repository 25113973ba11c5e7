package notification

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"booking-core-backend/internal/model"
)

func TestBuildCalendar(t *testing.T) {
	start := time.Date(2025, 3, 4, 14, 0, 0, 0, time.UTC)
	res := &model.Resource{ID: "res1", Title: "Studio A"}
	opts := CalendarOptions{
		Organizer: "mailto:bookings@studio.example",
		UIDDomain: "studio.example",
		Reminder:  15 * time.Minute,
		Now:       time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC),
	}

	t.Run("confirmed booking", func(t *testing.T) {
		r := &model.Reservation{
			ID:                "r1",
			RequesterIdentity: "guest@example.com",
			StartTime:         start,
			EndTime:           start.Add(30 * time.Minute),
			Status:            model.StatusConfirmed,
			HostIdentifier:    "alice",
			Sequence:          2,
			Meeting:           model.MeetingDetails{Provider: "zoom", URL: "https://zoom.example/j/1", Passcode: "42"},
		}

		out := BuildCalendar(r, res, opts).Serialize()

		assert.Contains(t, out, "METHOD:REQUEST")
		assert.Contains(t, out, "UID:r1@studio.example")
		assert.Contains(t, out, "DTSTART:20250304T140000Z")
		assert.Contains(t, out, "DTEND:20250304T143000Z")
		assert.Contains(t, out, "SEQUENCE:2")
		assert.Contains(t, out, "STATUS:CONFIRMED")
		assert.Contains(t, out, "SUMMARY:Studio A")
		assert.Contains(t, out, "URL:https://zoom.example/j/1")
		assert.Contains(t, out, "mailto:guest@example.com")
		assert.Contains(t, out, "BEGIN:VALARM")
		assert.Contains(t, out, "TRIGGER:-PT15M")
	})

	t.Run("cancelled booking", func(t *testing.T) {
		r := &model.Reservation{
			ID:                "r1",
			RequesterIdentity: "user-42",
			StartTime:         start,
			EndTime:           start.Add(30 * time.Minute),
			Status:            model.StatusCancelled,
		}

		out := BuildCalendar(r, res, opts).Serialize()

		assert.Contains(t, out, "METHOD:CANCEL")
		assert.Contains(t, out, "UID:r1@studio.example")
		assert.Contains(t, out, "STATUS:CANCELLED")
		assert.NotContains(t, out, "BEGIN:VALARM")
		assert.NotContains(t, out, "ATTENDEE")
	})
}

func TestIsEmail(t *testing.T) {
	testCases := []struct {
		identity string
		expected bool
	}{
		{"guest@example.com", true},
		{"user-42", false},
		{"Guest <guest@example.com>", false},
		{"", false},
	}

	for _, tc := range testCases {
		t.Run(tc.identity, func(t *testing.T) {
			assert.Equal(t, tc.expected, IsEmail(tc.identity))
		})
	}
}

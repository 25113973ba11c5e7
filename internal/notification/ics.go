package notification

import (
	"fmt"
	"net/mail"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"booking-core-backend/internal/model"
)

// CalendarOptions are the per-deployment parts of a calendar artifact.
type CalendarOptions struct {
	Organizer string // e.g. "mailto:bookings@studio.example"
	UIDDomain string
	Reminder  time.Duration
	Now       time.Time
}

// BuildCalendar renders r as a single VEVENT. Cancelled reservations produce METHOD:CANCEL
// so calendar clients remove the entry carrying the same UID.
func BuildCalendar(r *model.Reservation, res *model.Resource, opts CalendarOptions) *ical.Calendar {
	cal := ical.NewCalendarFor("booking-core")

	method, status := ical.MethodRequest, ical.ObjectStatusConfirmed
	if r.Status == model.StatusCancelled {
		method, status = ical.MethodCancel, ical.ObjectStatusCancelled
	}
	cal.SetMethod(method)

	ev := cal.AddEvent(EventUID(r.ID, opts.UIDDomain))
	ev.SetDtStampTime(opts.Now)
	if !r.CreatedAt.IsZero() {
		ev.SetCreatedTime(r.CreatedAt)
	}
	if !r.UpdatedAt.IsZero() {
		ev.SetModifiedAt(r.UpdatedAt)
	}
	ev.SetStartAt(r.StartTime)
	ev.SetEndAt(r.EndTime)
	ev.SetSequence(r.Sequence)
	ev.SetStatus(status)
	ev.SetSummary(res.Title)
	ev.SetDescription(describe(r))
	if r.Meeting.URL != "" {
		ev.SetURL(r.Meeting.URL)
		ev.SetLocation(r.Meeting.URL)
	}
	if opts.Organizer != "" {
		ev.SetOrganizer(opts.Organizer)
	}
	if IsEmail(r.RequesterIdentity) {
		ev.AddAttendee("mailto:"+r.RequesterIdentity, ical.ParticipationStatusAccepted)
	}

	if status == ical.ObjectStatusConfirmed && opts.Reminder > 0 {
		alarm := ev.AddAlarm()
		alarm.SetAction(ical.ActionDisplay)
		alarm.SetTrigger(fmt.Sprintf("-PT%dM", int(opts.Reminder/time.Minute)))
		alarm.SetProperty(ical.ComponentPropertyDescription, "Reminder: "+res.Title)
	}
	return cal
}

// EventUID is stable across reschedules so clients update the entry in place.
func EventUID(reservationID, domain string) string {
	return reservationID + "@" + domain
}

// IsEmail reports whether an identity can receive mail.
func IsEmail(identity string) bool {
	addr, err := mail.ParseAddress(identity)
	return err == nil && addr.Address == identity
}

func describe(r *model.Reservation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Reservation %s", r.ID)
	if r.HostIdentifier != "" {
		fmt.Fprintf(&b, " with %s", r.HostIdentifier)
	}
	if r.Meeting.Provider != "" {
		fmt.Fprintf(&b, "\nJoin via %s: %s", r.Meeting.Provider, r.Meeting.URL)
	}
	if r.Meeting.Passcode != "" {
		fmt.Fprintf(&b, "\nPasscode: %s", r.Meeting.Passcode)
	}
	return b.String()
}

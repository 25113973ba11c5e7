package store

import (
	"errors"
	"time"

	"booking-core-backend/internal/model"
)

var (
	// ErrSlotUnavailable means the capacity invariant would be violated; pick another interval.
	ErrSlotUnavailable = errors.New("slot unavailable")
	// ErrInvalidTransition is a state machine violation.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrInvalidToken covers expired, used and mismatched tokens.
	ErrInvalidToken = errors.New("invalid token")
	// ErrValidation is malformed input.
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
)

// Default reasons recorded on cancelled reservations.
const (
	ReasonHoldExpired    = "hold_expired"
	ReasonRequesterToken = "cancelled_by_requester"
	ReasonAdmin          = "cancelled_by_admin"
)

// HoldRequest claims an interval on a resource.
type HoldRequest struct {
	ResourceID    string
	Requester     string
	Start         time.Time
	End           time.Time
	Capacity      int
	PreferredHost string
	Meeting       model.MeetingDetails
}

// RescheduleRequest moves a reservation in place. Admin skips the token check.
type RescheduleRequest struct {
	ReservationID string
	Start         time.Time
	End           time.Time
	Token         string
	Actor         string
	Admin         bool
}

// CancelRequest cancels a reservation with a cancel token or as an admin.
type CancelRequest struct {
	ReservationID string
	Token         string
	Reason        string
	Admin         bool
}

// AvailabilityQuery asks for open slots on one resource.
type AvailabilityQuery struct {
	ResourceID    string
	From          time.Time
	To            time.Time
	Duration      time.Duration
	Capacity      int
	PreferredHost string
}

// DetachResult reports the participant that left and, if any, the one promoted off the waitlist.
type DetachResult struct {
	Detached model.Participant  `json:"detached"`
	Promoted *model.Participant `json:"promoted,omitempty"`
}

// EventKind names a committed lifecycle transition.
type EventKind string

const (
	EventCreated     EventKind = "created"
	EventConfirmed   EventKind = "confirmed"
	EventRescheduled EventKind = "rescheduled"
	EventCancelled   EventKind = "cancelled"
)

// Event is handed to the Notifier after the transition has committed.
type Event struct {
	Kind          EventKind
	ReservationID string
	// PriorStatus is the status before the transition.
	PriorStatus model.ReservationStatus
}

// Notifier receives lifecycle events. Implementations must not block.
type Notifier interface {
	Dispatch(ev Event)
}

// ReservationSubject is the token subject reference of a reservation.
func ReservationSubject(id string) string {
	return "reservation/" + id
}

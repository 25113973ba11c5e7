package model

import "time"

// ReservationStatus is the lifecycle state of a booking.
type ReservationStatus string

const (
	StatusHeld      ReservationStatus = "held"
	StatusConfirmed ReservationStatus = "confirmed"
	StatusCompleted ReservationStatus = "completed"
	StatusCancelled ReservationStatus = "cancelled"
)

// ActiveStatuses are the statuses that consume resource capacity.
var ActiveStatuses = []ReservationStatus{StatusHeld, StatusConfirmed}

// Active reports whether the status consumes capacity.
func (s ReservationStatus) Active() bool {
	return s == StatusHeld || s == StatusConfirmed
}

// Reservation is a claim on a resource interval.
type Reservation struct {
	ID                string            `gorm:"primaryKey;size:36" json:"id"`
	ResourceID        string            `gorm:"size:36;not null;index:idx_reservations_resource_start,priority:1" json:"resource_id"`
	RequesterIdentity string            `gorm:"size:256;not null;index" json:"requester_identity"`
	StartTime         time.Time         `gorm:"not null;index:idx_reservations_resource_start,priority:2" json:"start_time"`
	EndTime           time.Time         `gorm:"not null" json:"end_time"`
	Status            ReservationStatus `gorm:"size:16;not null;index" json:"status"`
	CapacityConsumed  int               `gorm:"not null" json:"capacity_consumed"`
	HostIdentifier    string            `gorm:"size:128" json:"host_identifier"`
	// Exclusive is set for capacity-1 resources; the postgres exclusion constraint keys on it.
	Exclusive    bool       `gorm:"not null" json:"-"`
	HeldUntil    *time.Time `json:"held_until,omitempty"`
	ConfirmedAt  *time.Time `json:"confirmed_at,omitempty"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
	CancelReason string     `gorm:"size:64" json:"cancel_reason,omitempty"`
	// Sequence increments on every reschedule and feeds the iCalendar SEQUENCE.
	Sequence  int            `gorm:"not null;default:0" json:"sequence"`
	Meeting   MeetingDetails `gorm:"embedded;embeddedPrefix:meeting_" json:"meeting"`
	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`

	// Associations
	Reschedules []RescheduleAudit `gorm:"foreignKey:ReservationID;constraint:OnDelete:CASCADE" json:"reschedules,omitempty"`
}

// MeetingDetails holds the remote meeting information attached to a booking.
type MeetingDetails struct {
	Provider string `gorm:"size:64" json:"provider,omitempty"`
	URL      string `gorm:"size:512" json:"url,omitempty"`
	Passcode string `gorm:"size:64" json:"passcode,omitempty"`
}

// RescheduleAudit records the interval a reservation held before a reschedule.
type RescheduleAudit struct {
	ID            int64     `gorm:"primaryKey" json:"-"`
	ReservationID string    `gorm:"size:36;index;not null" json:"-"`
	PriorStart    time.Time `gorm:"not null" json:"prior_start"`
	PriorEnd      time.Time `gorm:"not null" json:"prior_end"`
	PriorHost     string    `gorm:"size:128" json:"prior_host,omitempty"`
	NewStart      time.Time `gorm:"not null" json:"new_start"`
	NewEnd        time.Time `gorm:"not null" json:"new_end"`
	NewHost       string    `gorm:"size:128" json:"new_host,omitempty"`
	Actor         string    `gorm:"size:256" json:"actor,omitempty"`
	RescheduledAt time.Time `gorm:"not null" json:"rescheduled_at"`
}

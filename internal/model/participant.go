package model

import "time"

// ParticipantStatus is the roster state of one party on a booking.
type ParticipantStatus string

const (
	ParticipantRegistered ParticipantStatus = "registered"
	ParticipantConfirmed  ParticipantStatus = "confirmed"
	ParticipantWaitlisted ParticipantStatus = "waitlisted"
	ParticipantCancelled  ParticipantStatus = "cancelled"
)

// SeatedStatuses count against a booking's capacity_consumed.
var SeatedStatuses = []ParticipantStatus{ParticipantRegistered, ParticipantConfirmed}

// Participant is a party attached to a multi-capacity booking.
// ID is assigned in insertion order and doubles as waitlist priority.
type Participant struct {
	ID         int64             `gorm:"primaryKey" json:"id"`
	BookingID  string            `gorm:"size:36;not null;index" json:"booking_id"`
	Identity   string            `gorm:"size:256;not null" json:"identity"`
	Status     ParticipantStatus `gorm:"size:16;not null" json:"status"`
	PromotedAt *time.Time        `json:"promoted_at,omitempty"`
	CreatedAt  time.Time         `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time         `gorm:"not null" json:"updated_at"`
}

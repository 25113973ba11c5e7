package model

import "time"

// ResourceKind classifies what is being booked.
type ResourceKind string

const (
	KindSpace     ResourceKind = "space"
	KindEquipment ResourceKind = "equipment"
	KindPerson    ResourceKind = "person"
)

// PoolingPolicy picks one host when several windows offer the same slot.
type PoolingPolicy string

const (
	PoolingRoundRobin     PoolingPolicy = "round_robin"
	PoolingFirstAvailable PoolingPolicy = "first_available"
)

// Resource is a bookable space, piece of equipment or person together with its availability rules.
type Resource struct {
	ID                     string        `gorm:"primaryKey;size:36" json:"id"`
	Title                  string        `gorm:"size:256;not null" json:"title" validate:"required,max=256"`
	Kind                   ResourceKind  `gorm:"size:16;not null" json:"kind" validate:"required,oneof=space equipment person"`
	Capacity               int           `gorm:"not null" json:"capacity" validate:"min=1"`
	IsBookable             bool          `gorm:"not null" json:"is_bookable"`
	AutoApprove            bool          `gorm:"not null" json:"auto_approve"`
	AllowArbitraryDuration bool          `gorm:"not null" json:"allow_arbitrary_duration"`
	Timezone               string        `gorm:"size:64;not null" json:"timezone" validate:"required,timezone"`
	SlotMinutes            int           `gorm:"not null" json:"slot_minutes" validate:"min=1,max=1440"`
	BufferBeforeMinutes    int           `gorm:"not null" json:"buffer_before_minutes" validate:"min=0"`
	BufferAfterMinutes     int           `gorm:"not null" json:"buffer_after_minutes" validate:"min=0"`
	MaxPerDayPerHost       int           `gorm:"not null" json:"max_per_day_per_host" validate:"min=0"`
	PoolingPolicy          PoolingPolicy `gorm:"size:32;not null" json:"pooling_policy" validate:"required,oneof=round_robin first_available"`
	CreatedAt              time.Time     `gorm:"not null" json:"created_at"`
	UpdatedAt              time.Time     `gorm:"not null" json:"updated_at"`

	// Associations
	Windows   []AvailabilityWindow `gorm:"foreignKey:ResourceID;constraint:OnDelete:CASCADE" json:"windows" validate:"dive"`
	Blackouts []Blackout           `gorm:"foreignKey:ResourceID;constraint:OnDelete:CASCADE" json:"blackouts" validate:"dive"`
}

// AvailabilityWindow is a recurring weekly window served by one host.
// Days uses RFC 5545 BYDAY codes, e.g. "TU,WE,TH"; times are wall clock in the resource time zone.
type AvailabilityWindow struct {
	ID             int64  `gorm:"primaryKey" json:"-"`
	ResourceID     string `gorm:"size:36;index;not null" json:"-"`
	Position       int    `gorm:"not null" json:"-"`
	HostIdentifier string `gorm:"size:128;not null" json:"host_identifier" validate:"required,max=128"`
	Days           string `gorm:"size:32;not null" json:"days_of_week" validate:"required,weekdays"`
	StartTime      string `gorm:"size:5;not null" json:"start_time" validate:"required,clock"`
	EndTime        string `gorm:"size:5;not null" json:"end_time" validate:"required,clock"`
}

// Blackout removes [StartsAt, EndsAt) from availability, for one host or, when HostIdentifier is empty, for all of them.
type Blackout struct {
	ID             int64     `gorm:"primaryKey" json:"-"`
	ResourceID     string    `gorm:"size:36;index;not null" json:"-"`
	HostIdentifier string    `gorm:"size:128" json:"host_identifier,omitempty"`
	StartsAt       time.Time `gorm:"not null" json:"starts_at" validate:"required"`
	EndsAt         time.Time `gorm:"not null" json:"ends_at" validate:"required,gtfield=StartsAt"`
}

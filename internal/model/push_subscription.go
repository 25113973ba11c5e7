package model

import "time"

// PushSubscription holds a browser push subscription of one requester identity.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey" json:"endpoint"`
	P256DH    string    `gorm:"column:p256dh;not null" json:"p256dh"`
	Auth      string    `gorm:"not null" json:"auth"`
	Identity  string    `gorm:"size:256;not null;index" json:"identity"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

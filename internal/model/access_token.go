package model

import "time"

// TokenPurpose names the action a token authorizes.
type TokenPurpose string

const (
	PurposeReschedule TokenPurpose = "reschedule"
	PurposeCancel     TokenPurpose = "cancel"
	PurposeMagicLink  TokenPurpose = "magic_link"
)

// AccessToken is a single-use capability. Only the digest of the token is stored.
type AccessToken struct {
	TokenHash        string       `gorm:"primaryKey;size:64"`
	Purpose          TokenPurpose `gorm:"size:16;not null"`
	SubjectReference string       `gorm:"size:128;not null;index"`
	ExpiresAt        time.Time    `gorm:"not null"`
	Used             bool         `gorm:"not null;default:false"`
	UsedAt           *time.Time
	CreatedAt        time.Time `gorm:"not null"`
}

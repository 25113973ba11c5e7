package store

import (
	"context"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"booking-core-backend/internal/model"
	"booking-core-backend/internal/token"
)

// IssueToken persists a new single-use token for subject and returns the raw value.
// The raw value is never stored.
func (s *gormStore) IssueToken(ctx context.Context, subject string, purpose model.TokenPurpose, ttl time.Duration) (string, time.Time, error) {
	if subject == "" {
		return "", time.Time{}, fmt.Errorf("%w: token subject is required", ErrValidation)
	}
	if ttl <= 0 {
		return "", time.Time{}, fmt.Errorf("%w: token ttl must be positive", ErrValidation)
	}

	raw, digest, err := token.Generate()
	if err != nil {
		return "", time.Time{}, err
	}
	now := s.now()
	t := model.AccessToken{
		TokenHash:        digest,
		Purpose:          purpose,
		SubjectReference: subject,
		ExpiresAt:        now.Add(ttl),
		CreatedAt:        now,
	}
	if err := s.db.WithContext(ctx).Create(&t).Error; err != nil {
		return "", time.Time{}, fmt.Errorf("failed to store token: %w", err)
	}
	return raw, t.ExpiresAt, nil
}

// ConsumeToken spends a token in its own transaction. Lifecycle operations spend theirs
// inside the transaction of the action they authorize instead.
func (s *gormStore) ConsumeToken(ctx context.Context, raw string, purpose model.TokenPurpose, subject string) error {
	now := s.now()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return consumeToken(tx, raw, purpose, subject, now)
	})
}

// consumeToken flips used in a single conditional update; exactly one caller can win.
func consumeToken(tx *gorm.DB, raw string, purpose model.TokenPurpose, subject string, now time.Time) error {
	if raw == "" {
		return fmt.Errorf("%w: empty token", ErrInvalidToken)
	}
	result := tx.Model(&model.AccessToken{}).
		Where("token_hash = ? AND purpose = ? AND subject_reference = ? AND used = ? AND expires_at > ?",
			token.Digest(raw), purpose, subject, false, now).
		Updates(map[string]any{"used": true, "used_at": now})
	if result.Error != nil {
		return fmt.Errorf("failed to consume token: %w", result.Error)
	}
	if result.RowsAffected != 1 {
		log.Printf("Rejected %s token for %s", purpose, subject)
		return fmt.Errorf("%w: token is unknown, used, expired or not for %s", ErrInvalidToken, subject)
	}
	return nil
}

package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"booking-core-backend/internal/model"
)

// ExpireHolds cancels held reservations whose hold ran out at or before now.
// Rows locked by a concurrent confirm are skipped and picked up on the next sweep.
func (s *gormStore) ExpireHolds(ctx context.Context, now time.Time) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		ids, err = expireHolds(tx, now.UTC(), "")
		return err
	})
	if err != nil {
		return nil, err
	}
	s.notifyExpired(ids)
	return ids, nil
}

// expireHolds cancels overdue holds inside tx and closes their rosters.
// An empty resourceID covers every resource.
func expireHolds(tx *gorm.DB, now time.Time, resourceID string) ([]string, error) {
	q := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Select("id").
		Where("status = ? AND held_until <= ?", model.StatusHeld, now)
	if resourceID != "" {
		q = q.Where("resource_id = ?", resourceID)
	}
	var expired []model.Reservation
	if err := q.Find(&expired).Error; err != nil {
		return nil, fmt.Errorf("failed to find expired holds: %w", err)
	}
	if len(expired) == 0 {
		return nil, nil
	}
	ids := make([]string, len(expired))
	for i, r := range expired {
		ids[i] = r.ID
	}

	if err := tx.Model(&model.Reservation{}).
		Where("id IN ? AND status = ?", ids, model.StatusHeld).
		Updates(map[string]any{
			"status":        model.StatusCancelled,
			"cancel_reason": ReasonHoldExpired,
			"cancelled_at":  now,
			"held_until":    nil,
		}).Error; err != nil {
		return nil, fmt.Errorf("failed to expire holds: %w", err)
	}
	if err := closeRoster(tx, ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *gormStore) notifyExpired(ids []string) {
	for _, id := range ids {
		s.notify(EventCancelled, &model.Reservation{ID: id}, model.StatusHeld)
	}
}

// CompletePast marks confirmed reservations that ended at or before now as completed.
func (s *gormStore) CompletePast(ctx context.Context, now time.Time) ([]string, error) {
	now = now.UTC()
	var ids []string

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var done []model.Reservation
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Select("id").
			Where("status = ? AND end_time <= ?", model.StatusConfirmed, now).
			Find(&done).Error; err != nil {
			return fmt.Errorf("failed to find finished reservations: %w", err)
		}
		if len(done) == 0 {
			return nil
		}
		ids = make([]string, len(done))
		for i, r := range done {
			ids[i] = r.ID
		}
		if err := tx.Model(&model.Reservation{}).
			Where("id IN ? AND status = ?", ids, model.StatusConfirmed).
			Update("status", model.StatusCompleted).Error; err != nil {
			return fmt.Errorf("failed to complete reservations: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

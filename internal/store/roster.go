package store

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"gorm.io/gorm"

	"booking-core-backend/internal/model"
)

// AttachParticipant adds identity to a booking. Seats are bounded by the capacity_consumed
// recorded on the booking; later arrivals join the end of the waitlist.
// Attaching an identity that is already on the roster returns its existing entry.
func (s *gormStore) AttachParticipant(ctx context.Context, bookingID, identity string) (*model.Participant, error) {
	if identity == "" {
		return nil, fmt.Errorf("%w: participant identity is required", ErrValidation)
	}

	var p model.Participant
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r, err := findReservation(tx, bookingID, true)
		if err != nil {
			return err
		}
		if !r.Status.Active() {
			return fmt.Errorf("%w: cannot attach to a %s booking", ErrInvalidTransition, r.Status)
		}

		err = tx.Where("booking_id = ? AND identity = ? AND status <> ?", bookingID, identity, model.ParticipantCancelled).
			First(&p).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to look up participant %s: %w", identity, err)
		}

		var onRoster int64
		if err := tx.Model(&model.Participant{}).
			Where("booking_id = ? AND status <> ?", bookingID, model.ParticipantCancelled).
			Count(&onRoster).Error; err != nil {
			return fmt.Errorf("failed to count participants of %s: %w", bookingID, err)
		}

		p = model.Participant{
			BookingID: bookingID,
			Identity:  identity,
			Status:    model.ParticipantWaitlisted,
		}
		if onRoster < int64(r.CapacityConsumed) {
			p.Status = model.ParticipantRegistered
		}
		if err := tx.Create(&p).Error; err != nil {
			return fmt.Errorf("failed to attach participant %s: %w", identity, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// DetachParticipant cancels identity's entry. When a seated participant leaves an active
// booking, the earliest waitlisted participant takes the seat.
func (s *gormStore) DetachParticipant(ctx context.Context, bookingID, identity string) (*DetachResult, error) {
	now := s.now()
	result := &DetachResult{}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r, err := findReservation(tx, bookingID, true)
		if err != nil {
			return err
		}

		p := &result.Detached
		err = tx.Where("booking_id = ? AND identity = ? AND status <> ?", bookingID, identity, model.ParticipantCancelled).
			First(p).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: participant %s on booking %s", ErrNotFound, identity, bookingID)
		}
		if err != nil {
			return fmt.Errorf("failed to look up participant %s: %w", identity, err)
		}

		wasSeated := slices.Contains(model.SeatedStatuses, p.Status)
		p.Status = model.ParticipantCancelled
		if err := tx.Model(p).Select("status", "updated_at").Updates(p).Error; err != nil {
			return fmt.Errorf("failed to detach participant %s: %w", identity, err)
		}

		if !wasSeated || !r.Status.Active() {
			return nil
		}

		var next model.Participant
		err = tx.Where("booking_id = ? AND status = ?", bookingID, model.ParticipantWaitlisted).
			Order("id").
			First(&next).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to load waitlist of %s: %w", bookingID, err)
		}
		next.Status = model.ParticipantRegistered
		next.PromotedAt = &now
		if err := tx.Model(&next).Select("status", "promoted_at", "updated_at").Updates(&next).Error; err != nil {
			return fmt.Errorf("failed to promote participant %s: %w", next.Identity, err)
		}
		result.Promoted = &next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ListParticipants returns the roster in insertion order.
func (s *gormStore) ListParticipants(ctx context.Context, bookingID string) ([]model.Participant, error) {
	if _, err := findReservation(s.db.WithContext(ctx), bookingID, false); err != nil {
		return nil, err
	}
	var ps []model.Participant
	if err := s.db.WithContext(ctx).Where("booking_id = ?", bookingID).Order("id").Find(&ps).Error; err != nil {
		return nil, fmt.Errorf("failed to list participants of %s: %w", bookingID, err)
	}
	return ps, nil
}

// closeRoster cancels every remaining participant of the given bookings.
func closeRoster(tx *gorm.DB, bookingIDs []string) error {
	if len(bookingIDs) == 0 {
		return nil
	}
	err := tx.Model(&model.Participant{}).
		Where("booking_id IN ? AND status <> ?", bookingIDs, model.ParticipantCancelled).
		Update("status", model.ParticipantCancelled).Error
	if err != nil {
		return fmt.Errorf("failed to close rosters: %w", err)
	}
	return nil
}

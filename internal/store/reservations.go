package store

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"booking-core-backend/internal/model"
)

// CreateHold claims [req.Start, req.End) on a resource.
// The availability re-check and the insert run under the resource row lock, so two holds
// racing for the last seat serialize and the loser sees ErrSlotUnavailable.
func (s *gormStore) CreateHold(ctx context.Context, req HoldRequest) (*model.Reservation, error) {
	if err := validateInterval(req.Start, req.End); err != nil {
		return nil, err
	}
	if req.Requester == "" {
		return nil, fmt.Errorf("%w: requester identity is required", ErrValidation)
	}
	if req.Capacity == 0 {
		req.Capacity = 1
	}
	if req.Capacity < 0 {
		return nil, fmt.Errorf("%w: capacity must be positive", ErrValidation)
	}

	start, end := req.Start.UTC(), req.End.UTC()
	now := s.now()
	var created model.Reservation
	var expired []string

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res, err := lockResource(tx, req.ResourceID)
		if err != nil {
			return err
		}
		if !res.IsBookable {
			return fmt.Errorf("%w: resource %s is not bookable", ErrValidation, res.ID)
		}

		if expired, err = expireHolds(tx, now, res.ID); err != nil {
			return err
		}
		slot, err := openSlot(tx, res, start, end, now, req.Capacity, req.PreferredHost, "")
		if err != nil {
			return err
		}

		created = model.Reservation{
			ID:                uuid.NewString(),
			ResourceID:        res.ID,
			RequesterIdentity: req.Requester,
			StartTime:         start,
			EndTime:           end,
			Status:            model.StatusHeld,
			CapacityConsumed:  req.Capacity,
			HostIdentifier:    slot.Host,
			Exclusive:         res.Capacity == 1,
			Meeting:           req.Meeting,
		}
		if res.AutoApprove {
			created.Status = model.StatusConfirmed
			created.ConfirmedAt = &now
		} else {
			heldUntil := now.Add(s.holdTTL)
			created.HeldUntil = &heldUntil
		}

		if err := tx.Create(&created).Error; err != nil {
			return writeError(err, "create reservation")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.notifyExpired(expired)

	log.Printf("Reservation %s %s on resource %s (%s, host %q)",
		created.ID, created.Status, created.ResourceID, created.StartTime.Format("2006-01-02T15:04Z07:00"), created.HostIdentifier)
	if created.Status == model.StatusConfirmed {
		s.notify(EventConfirmed, &created, "")
	} else {
		s.notify(EventCreated, &created, "")
	}
	return &created, nil
}

// Confirm moves a live hold to confirmed. Confirming a confirmed reservation is a no-op.
func (s *gormStore) Confirm(ctx context.Context, reservationID string) (*model.Reservation, error) {
	now := s.now()
	var r *model.Reservation
	changed := false

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		r, err = findReservation(tx, reservationID, true)
		if err != nil {
			return err
		}

		switch r.Status {
		case model.StatusConfirmed:
			return nil
		case model.StatusCancelled, model.StatusCompleted:
			return fmt.Errorf("%w: cannot confirm a %s reservation", ErrInvalidTransition, r.Status)
		}
		if r.HeldUntil != nil && !now.Before(*r.HeldUntil) {
			return fmt.Errorf("%w: hold on reservation %s expired at %s", ErrInvalidTransition, r.ID, r.HeldUntil.Format("15:04:05"))
		}

		r.Status = model.StatusConfirmed
		r.ConfirmedAt = &now
		r.HeldUntil = nil
		if err := tx.Model(r).Select("status", "confirmed_at", "held_until", "updated_at").Updates(r).Error; err != nil {
			return writeError(err, "confirm reservation")
		}
		if err := tx.Model(&model.Participant{}).
			Where("booking_id = ? AND status = ?", r.ID, model.ParticipantRegistered).
			Update("status", model.ParticipantConfirmed).Error; err != nil {
			return fmt.Errorf("failed to confirm participants of %s: %w", r.ID, err)
		}
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.notify(EventConfirmed, r, model.StatusHeld)
	}
	return r, nil
}

// Reschedule moves an active reservation to a new interval in place.
// The new interval is validated as a fresh hold that ignores the reservation's own current
// interval; the old interval is freed only by the same commit that claims the new one.
func (s *gormStore) Reschedule(ctx context.Context, req RescheduleRequest) (*model.Reservation, error) {
	if err := validateInterval(req.Start, req.End); err != nil {
		return nil, err
	}
	if !req.Admin && req.Token == "" {
		return nil, fmt.Errorf("%w: a reschedule token is required", ErrInvalidToken)
	}

	start, end := req.Start.UTC(), req.End.UTC()
	now := s.now()
	var r *model.Reservation
	var expired []string

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := findReservation(tx, req.ReservationID, false)
		if err != nil {
			return err
		}
		res, err := lockResource(tx, current.ResourceID)
		if err != nil {
			return err
		}
		r, err = findReservation(tx, req.ReservationID, true)
		if err != nil {
			return err
		}

		if !req.Admin {
			if err := consumeToken(tx, req.Token, model.PurposeReschedule, ReservationSubject(r.ID), now); err != nil {
				return err
			}
		}

		if !r.Status.Active() {
			return fmt.Errorf("%w: cannot reschedule a %s reservation", ErrInvalidTransition, r.Status)
		}
		if r.Status == model.StatusHeld && r.HeldUntil != nil && !now.Before(*r.HeldUntil) {
			return fmt.Errorf("%w: hold on reservation %s has expired", ErrInvalidTransition, r.ID)
		}

		if expired, err = expireHolds(tx, now, res.ID); err != nil {
			return err
		}
		// keep the assigned host when it can still serve the new interval
		slot, err := openSlot(tx, res, start, end, now, r.CapacityConsumed, r.HostIdentifier, r.ID)
		if errors.Is(err, ErrSlotUnavailable) {
			slot, err = openSlot(tx, res, start, end, now, r.CapacityConsumed, "", r.ID)
		}
		if err != nil {
			return err
		}

		audit := model.RescheduleAudit{
			ReservationID: r.ID,
			PriorStart:    r.StartTime,
			PriorEnd:      r.EndTime,
			PriorHost:     r.HostIdentifier,
			NewStart:      start,
			NewEnd:        end,
			NewHost:       slot.Host,
			Actor:         req.Actor,
			RescheduledAt: now,
		}
		if err := tx.Create(&audit).Error; err != nil {
			return fmt.Errorf("failed to record reschedule of %s: %w", r.ID, err)
		}

		r.StartTime = start
		r.EndTime = end
		r.HostIdentifier = slot.Host
		r.Sequence++
		if err := tx.Model(r).Select("start_time", "end_time", "host_identifier", "sequence", "updated_at").Updates(r).Error; err != nil {
			return writeError(err, "reschedule reservation")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.notifyExpired(expired)

	log.Printf("Reservation %s rescheduled to %s (sequence %d)", r.ID, r.StartTime.Format("2006-01-02T15:04Z07:00"), r.Sequence)
	s.notify(EventRescheduled, r, r.Status)
	return r, nil
}

// Cancel cancels a reservation with a cancel token or as an admin.
// The token is spent before the idempotency check, so replaying it is always ErrInvalidToken.
// Cancelling closes the roster: every participant is cancelled and no one is promoted from the waitlist.
func (s *gormStore) Cancel(ctx context.Context, req CancelRequest) (*model.Reservation, error) {
	if !req.Admin && req.Token == "" {
		return nil, fmt.Errorf("%w: a cancel token is required", ErrInvalidToken)
	}

	now := s.now()
	var r *model.Reservation
	var prior model.ReservationStatus
	changed := false

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		r, err = findReservation(tx, req.ReservationID, true)
		if err != nil {
			return err
		}
		if !req.Admin {
			if err := consumeToken(tx, req.Token, model.PurposeCancel, ReservationSubject(r.ID), now); err != nil {
				return err
			}
		}

		switch r.Status {
		case model.StatusCancelled:
			return nil
		case model.StatusCompleted:
			return fmt.Errorf("%w: cannot cancel a completed reservation", ErrInvalidTransition)
		}

		prior = r.Status
		reason := req.Reason
		if reason == "" {
			reason = ReasonRequesterToken
			if req.Admin {
				reason = ReasonAdmin
			}
		}
		r.Status = model.StatusCancelled
		r.CancelledAt = &now
		r.CancelReason = reason
		r.HeldUntil = nil
		if err := tx.Model(r).Select("status", "cancelled_at", "cancel_reason", "held_until", "updated_at").Updates(r).Error; err != nil {
			return fmt.Errorf("failed to cancel reservation %s: %w", r.ID, err)
		}
		if err := closeRoster(tx, []string{r.ID}); err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		log.Printf("Reservation %s cancelled (%s)", r.ID, r.CancelReason)
		s.notify(EventCancelled, r, prior)
	}
	return r, nil
}

// GetReservation loads a reservation with its reschedule history.
func (s *gormStore) GetReservation(ctx context.Context, id string) (*model.Reservation, error) {
	var r model.Reservation
	err := s.db.WithContext(ctx).
		Preload("Reschedules", func(db *gorm.DB) *gorm.DB { return db.Order("rescheduled_at, id") }).
		First(&r, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: reservation %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load reservation %s: %w", id, err)
	}
	return &r, nil
}

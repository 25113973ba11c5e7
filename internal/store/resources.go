package store

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"booking-core-backend/internal/availability"
	"booking-core-backend/internal/model"
	"booking-core-backend/internal/parse"
)

// normalizeResource fills defaults and canonical forms before validation.
func normalizeResource(r *model.Resource) {
	if r.PoolingPolicy == "" {
		r.PoolingPolicy = model.PoolingRoundRobin
	}
	for i := range r.Windows {
		w := &r.Windows[i]
		w.ID = 0
		w.ResourceID = r.ID
		w.Position = i
		if days, err := parse.NormalizeWeekdays(w.Days); err == nil {
			w.Days = days
		}
	}
	for i := range r.Blackouts {
		b := &r.Blackouts[i]
		b.ID = 0
		b.ResourceID = r.ID
		b.StartsAt = b.StartsAt.UTC()
		b.EndsAt = b.EndsAt.UTC()
	}
}

// CreateResource validates and inserts a resource with its windows and blackouts.
func (s *gormStore) CreateResource(ctx context.Context, r *model.Resource) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	normalizeResource(r)
	if err := validateResource(r); err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Create(r).Error; err != nil {
		return fmt.Errorf("failed to create resource %s: %w", r.ID, err)
	}
	log.Printf("Created resource %s (%s) with %d windows", r.ID, r.Title, len(r.Windows))
	return nil
}

// UpdateResource replaces the resource fields and its rules document atomically.
// The resource lock makes in-flight holds see either the old rules or the new ones.
func (s *gormStore) UpdateResource(ctx context.Context, r *model.Resource) error {
	normalizeResource(r)
	if err := validateResource(r); err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := lockResource(tx, r.ID)
		if err != nil {
			return err
		}
		r.CreatedAt = existing.CreatedAt

		if err := tx.Omit(clause.Associations).Save(r).Error; err != nil {
			return fmt.Errorf("failed to update resource %s: %w", r.ID, err)
		}
		if err := tx.Where("resource_id = ?", r.ID).Delete(&model.AvailabilityWindow{}).Error; err != nil {
			return fmt.Errorf("failed to clear windows of resource %s: %w", r.ID, err)
		}
		if err := tx.Where("resource_id = ?", r.ID).Delete(&model.Blackout{}).Error; err != nil {
			return fmt.Errorf("failed to clear blackouts of resource %s: %w", r.ID, err)
		}
		if len(r.Windows) > 0 {
			if err := tx.Create(&r.Windows).Error; err != nil {
				return fmt.Errorf("failed to save windows of resource %s: %w", r.ID, err)
			}
		}
		if len(r.Blackouts) > 0 {
			if err := tx.Create(&r.Blackouts).Error; err != nil {
				return fmt.Errorf("failed to save blackouts of resource %s: %w", r.ID, err)
			}
		}
		return nil
	})
}

// GetResource loads one resource with its rules.
func (s *gormStore) GetResource(ctx context.Context, id string) (*model.Resource, error) {
	var res model.Resource
	err := s.db.WithContext(ctx).First(&res, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: resource %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load resource %s: %w", id, err)
	}
	if err := loadRules(s.db.WithContext(ctx), &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ListResources returns every resource ordered by title.
func (s *gormStore) ListResources(ctx context.Context) ([]model.Resource, error) {
	var resources []model.Resource
	err := s.db.WithContext(ctx).
		Preload("Windows", func(db *gorm.DB) *gorm.DB { return db.Order("position, id") }).
		Preload("Blackouts", func(db *gorm.DB) *gorm.DB { return db.Order("starts_at") }).
		Order("title, id").
		Find(&resources).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list resources: %w", err)
	}
	return resources, nil
}

// Availability reads a rules and bookings snapshot and returns the open slots over it.
func (s *gormStore) Availability(ctx context.Context, q AvailabilityQuery) (iter.Seq[availability.Slot], error) {
	res, err := s.GetResource(ctx, q.ResourceID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: %w", ErrValidation, err)
		}
		return nil, err
	}
	rules, err := availability.RulesFromResource(res)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if !res.IsBookable {
		return func(func(availability.Slot) bool) {}, nil
	}

	from, to := rules.LookupRange(q.From, q.To)
	existing, err := activeBookings(s.db.WithContext(ctx), res.ID, from, to, s.now())
	if err != nil {
		return nil, err
	}

	seq, err := availability.New(rules, availability.BookingsFromReservations(existing)).Slots(availability.Query{
		From:          q.From,
		To:            q.To,
		Duration:      q.Duration,
		Capacity:      q.Capacity,
		PreferredHost: q.PreferredHost,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return seq, nil
}

package store

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"booking-core-backend/internal/availability"
	"booking-core-backend/internal/model"
)

// Store defines the interface for all database operations.
type Store interface {
	// Resource catalog
	CreateResource(ctx context.Context, r *model.Resource) error
	UpdateResource(ctx context.Context, r *model.Resource) error
	GetResource(ctx context.Context, id string) (*model.Resource, error)
	ListResources(ctx context.Context) ([]model.Resource, error)

	Availability(ctx context.Context, q AvailabilityQuery) (iter.Seq[availability.Slot], error)

	// Reservation lifecycle
	CreateHold(ctx context.Context, req HoldRequest) (*model.Reservation, error)
	Confirm(ctx context.Context, reservationID string) (*model.Reservation, error)
	Reschedule(ctx context.Context, req RescheduleRequest) (*model.Reservation, error)
	Cancel(ctx context.Context, req CancelRequest) (*model.Reservation, error)
	GetReservation(ctx context.Context, id string) (*model.Reservation, error)

	// Access tokens
	IssueToken(ctx context.Context, subject string, purpose model.TokenPurpose, ttl time.Duration) (string, time.Time, error)
	ConsumeToken(ctx context.Context, raw string, purpose model.TokenPurpose, subject string) error

	// Participant roster
	AttachParticipant(ctx context.Context, bookingID, identity string) (*model.Participant, error)
	DetachParticipant(ctx context.Context, bookingID, identity string) (*DetachResult, error)
	ListParticipants(ctx context.Context, bookingID string) ([]model.Participant, error)

	// Sweeps
	ExpireHolds(ctx context.Context, now time.Time) ([]string, error)
	CompletePast(ctx context.Context, now time.Time) ([]string, error)

	// Push subscriptions
	SaveSubscription(ctx context.Context, sub *model.PushSubscription) error
	GetSubscription(ctx context.Context, endpoint string) (*model.PushSubscription, error)
	ListSubscriptions(ctx context.Context, identity string) ([]model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db       *gorm.DB
	notifier Notifier
	clock    func() time.Time
	holdTTL  time.Duration
}

// Option configures a gormStore.
type Option func(*gormStore)

// WithNotifier sets the receiver of committed lifecycle events.
func WithNotifier(n Notifier) Option {
	return func(s *gormStore) { s.notifier = n }
}

// WithClock replaces time.Now, for tests.
func WithClock(clock func() time.Time) Option {
	return func(s *gormStore) { s.clock = clock }
}

// WithHoldTTL sets how long a held reservation stays valid unconfirmed.
func WithHoldTTL(ttl time.Duration) Option {
	return func(s *gormStore) {
		if ttl > 0 {
			s.holdTTL = ttl
		}
	}
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB, opts ...Option) Store {
	s := &gormStore{
		db:      db,
		clock:   time.Now,
		holdTTL: 10 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// now is stored in UTC at microsecond precision, which both drivers round-trip exactly.
func (s *gormStore) now() time.Time {
	return s.clock().UTC().Truncate(time.Microsecond)
}

func (s *gormStore) notify(kind EventKind, r *model.Reservation, prior model.ReservationStatus) {
	if s.notifier == nil {
		return
	}
	s.notifier.Dispatch(Event{Kind: kind, ReservationID: r.ID, PriorStatus: prior})
}

// lockResource loads a resource and its rules, holding its row lock for the rest of tx.
// The resource row is always locked before any reservation row.
func lockResource(tx *gorm.DB, id string) (*model.Resource, error) {
	var res model.Resource
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&res, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %w: resource %s", ErrValidation, ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock resource %s: %w", id, err)
	}
	if err := loadRules(tx, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func loadRules(tx *gorm.DB, res *model.Resource) error {
	if err := tx.Where("resource_id = ?", res.ID).Order("position, id").Find(&res.Windows).Error; err != nil {
		return fmt.Errorf("failed to load windows of resource %s: %w", res.ID, err)
	}
	if err := tx.Where("resource_id = ?", res.ID).Order("starts_at").Find(&res.Blackouts).Error; err != nil {
		return fmt.Errorf("failed to load blackouts of resource %s: %w", res.ID, err)
	}
	return nil
}

func findReservation(tx *gorm.DB, id string, lock bool) (*model.Reservation, error) {
	var r model.Reservation
	q := tx
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	err := q.First(&r, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: reservation %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load reservation %s: %w", id, err)
	}
	return &r, nil
}

// activeBookings loads held and confirmed reservations of a resource overlapping [from, to).
// Holds that ran out at or before now are left out even if no sweep has cancelled them yet.
func activeBookings(tx *gorm.DB, resourceID string, from, to, now time.Time) ([]model.Reservation, error) {
	var rs []model.Reservation
	err := tx.
		Where("resource_id = ? AND status IN ? AND start_time < ? AND end_time > ?",
			resourceID, model.ActiveStatuses, to.UTC(), from.UTC()).
		Where("(status <> ? OR held_until IS NULL OR held_until > ?)", model.StatusHeld, now.UTC()).
		Order("start_time").
		Find(&rs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load reservations of resource %s: %w", resourceID, err)
	}
	return rs, nil
}

// openSlot re-runs the calculator over exactly [start, end) and returns the matching slot.
// Callers hold the resource lock, so the answer stays true until tx commits.
func openSlot(tx *gorm.DB, res *model.Resource, start, end, now time.Time, capacity int, host, exclude string) (availability.Slot, error) {
	rules, err := availability.RulesFromResource(res)
	if err != nil {
		return availability.Slot{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	from, to := rules.LookupRange(start, end)
	existing, err := activeBookings(tx, res.ID, from, to, now)
	if err != nil {
		return availability.Slot{}, err
	}

	seq, err := availability.New(rules, availability.BookingsFromReservations(existing)).Slots(availability.Query{
		From:          start,
		To:            end,
		Duration:      end.Sub(start),
		Capacity:      capacity,
		Exclude:       exclude,
		PreferredHost: host,
	})
	if err != nil {
		return availability.Slot{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	for slot := range seq {
		if slot.Start.Equal(start) && slot.End.Equal(end) {
			return slot, nil
		}
	}
	return availability.Slot{}, fmt.Errorf("%w: %s to %s on resource %s",
		ErrSlotUnavailable, start.Format(time.RFC3339), end.Format(time.RFC3339), res.ID)
}

// writeError maps an exclusion constraint violation to ErrSlotUnavailable.
func writeError(err error, action string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23P01" {
		return fmt.Errorf("%w: %s", ErrSlotUnavailable, pgErr.ConstraintName)
	}
	return fmt.Errorf("failed to %s: %w", action, err)
}

func validateInterval(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return fmt.Errorf("%w: start and end are required", ErrValidation)
	}
	if !start.Before(end) {
		return fmt.Errorf("%w: start must be before end", ErrValidation)
	}
	return nil
}

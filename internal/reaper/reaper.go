package reaper

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Sweeper is the part of the store the reaper drives.
type Sweeper interface {
	ExpireHolds(ctx context.Context, now time.Time) ([]string, error)
	CompletePast(ctx context.Context, now time.Time) ([]string, error)
}

// Service periodically cancels lapsed holds and completes finished bookings.
type Service struct {
	store    Sweeper
	schedule cron.Schedule
	clock    func() time.Time
}

// New parses schedule as a standard cron spec or descriptor such as "@every 1m".
func New(store Sweeper, schedule string) (*Service, error) {
	parsed, err := cron.ParseStandard(schedule)
	if err != nil {
		return nil, fmt.Errorf("invalid reaper schedule %q: %w", schedule, err)
	}
	return &Service{store: store, schedule: parsed, clock: time.Now}, nil
}

// Run sweeps once immediately and then on every tick of the schedule until ctx is done.
func (s *Service) Run(ctx context.Context) {
	log.Println("Starting reaper service...")

	c := cron.New()
	c.Schedule(s.schedule, cron.FuncJob(func() { s.SweepOnce(ctx, s.clock()) }))

	s.SweepOnce(ctx, s.clock())
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()
	log.Println("Reaper service shutting down.")
}

// SweepOnce runs both sweeps. A failure in one does not skip the other.
func (s *Service) SweepOnce(ctx context.Context, now time.Time) {
	expired, err := s.store.ExpireHolds(ctx, now)
	if err != nil {
		log.Printf("Error expiring holds: %v", err)
	} else if len(expired) > 0 {
		log.Printf("Expired %d holds", len(expired))
	}

	completed, err := s.store.CompletePast(ctx, now)
	if err != nil {
		log.Printf("Error completing past reservations: %v", err)
	} else if len(completed) > 0 {
		log.Printf("Completed %d reservations", len(completed))
	}
}

package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/SherClockHolmes/webpush-go"

	"booking-core-backend/config"
	"booking-core-backend/internal/model"
	"booking-core-backend/internal/store"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// Source is the read side the workers need from the store.
type Source interface {
	GetReservation(ctx context.Context, id string) (*model.Reservation, error)
	GetResource(ctx context.Context, id string) (*model.Resource, error)
	ListSubscriptions(ctx context.Context, identity string) ([]model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
}

// PushPayload is the JSON body delivered to browsers.
type PushPayload struct {
	Kind          store.EventKind         `json:"kind"`
	ReservationID string                  `json:"reservation_id"`
	Title         string                  `json:"title"`
	Status        model.ReservationStatus `json:"status"`
	Start         time.Time               `json:"start"`
	End           time.Time               `json:"end"`
}

// WorkerPool manages a pool of workers delivering lifecycle notifications.
// It implements store.Notifier; delivery failures are logged and never reach the booking.
type WorkerPool struct {
	size     int
	jobs     chan store.Event
	source   Source
	webpush  *webpush.Options
	sender   NotificationSender
	mailer   Mailer
	calendar CalendarOptions
	clock    func() time.Time
}

// NewWorkerPool creates a new worker pool. A nil mailer disables email and nil webpushOptions disable push.
func NewWorkerPool(cfg config.NotificationConfig, source Source, webpushOptions *webpush.Options, mailer Mailer) *WorkerPool {
	size := cfg.WorkerPoolSize
	if size <= 0 {
		size = 1
	}
	queue := cfg.QueueSize
	if queue <= 0 {
		queue = size
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan store.Event, queue),
		source:  source,
		webpush: webpushOptions,
		sender:  &WebPushSender{}, // Use the real sender by default
		mailer:  mailer,
		calendar: CalendarOptions{
			Organizer: cfg.Organizer,
			UIDDomain: cfg.UIDDomain,
			Reminder:  time.Duration(cfg.ReminderMinutes) * time.Minute,
		},
		clock: time.Now,
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

// worker is the actual worker goroutine.
func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Printf("Notification worker %d started", id)
	for {
		select {
		case ev := <-wp.jobs:
			log.Printf("Notification worker %d processing %s event for reservation %s", id, ev.Kind, ev.ReservationID)
			wp.process(ctx, ev)
		case <-ctx.Done():
			log.Printf("Notification worker %d shutting down", id)
			return
		}
	}
}

// Dispatch queues an event without blocking. A full queue drops the event.
func (wp *WorkerPool) Dispatch(ev store.Event) {
	select {
	case wp.jobs <- ev:
	default:
		log.Printf("Notification queue full; dropping %s event for reservation %s", ev.Kind, ev.ReservationID)
	}
}

func (wp *WorkerPool) process(ctx context.Context, ev store.Event) {
	r, err := wp.source.GetReservation(ctx, ev.ReservationID)
	if err != nil {
		log.Printf("Error loading reservation %s for notification: %v", ev.ReservationID, err)
		return
	}
	res, err := wp.source.GetResource(ctx, r.ResourceID)
	if err != nil {
		log.Printf("Error loading resource %s for notification: %v", r.ResourceID, err)
		return
	}

	if wantsCalendar(ev, r) {
		wp.sendEmail(ctx, ev, r, res)
	}
	if wp.webpush == nil {
		return
	}

	payload, err := json.Marshal(PushPayload{
		Kind:          ev.Kind,
		ReservationID: r.ID,
		Title:         res.Title,
		Status:        r.Status,
		Start:         r.StartTime,
		End:           r.EndTime,
	})
	if err != nil {
		log.Printf("Error encoding push payload for %s: %v", r.ID, err)
		return
	}

	subscriptions, err := wp.source.ListSubscriptions(ctx, r.RequesterIdentity)
	if err != nil {
		log.Printf("Error fetching subscriptions for %s: %v", r.RequesterIdentity, err)
		return
	}
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, payload)
	}
}

// wantsCalendar is true for the transitions a calendar client should see:
// a booking becoming or staying confirmed, and a confirmed booking going away.
func wantsCalendar(ev store.Event, r *model.Reservation) bool {
	switch ev.Kind {
	case store.EventConfirmed:
		return true
	case store.EventRescheduled:
		return r.Status == model.StatusConfirmed
	case store.EventCancelled:
		return ev.PriorStatus == model.StatusConfirmed
	}
	return false
}

func (wp *WorkerPool) sendEmail(ctx context.Context, ev store.Event, r *model.Reservation, res *model.Resource) {
	if wp.mailer == nil || !IsEmail(r.RequesterIdentity) {
		return
	}
	opts := wp.calendar
	opts.Now = wp.clock()
	cal := BuildCalendar(r, res, opts)

	method := "REQUEST"
	if r.Status == model.StatusCancelled {
		method = "CANCEL"
	}
	msg := Message{
		To:       r.RequesterIdentity,
		Subject:  fmt.Sprintf("%s: %s", subjectPrefix(ev.Kind), res.Title),
		Body:     fmt.Sprintf("%s\n%s to %s UTC\n", res.Title, r.StartTime.UTC().Format("Mon Jan 2 2006 15:04"), r.EndTime.UTC().Format("15:04")),
		Calendar: cal.Serialize(),
		Method:   method,
	}
	if err := wp.mailer.Send(ctx, msg); err != nil {
		log.Printf("Error emailing %s about reservation %s: %v", r.RequesterIdentity, r.ID, err)
	}
}

func subjectPrefix(kind store.EventKind) string {
	switch kind {
	case store.EventRescheduled:
		return "Rescheduled"
	case store.EventCancelled:
		return "Cancelled"
	default:
		return "Confirmed"
	}
}

// sendNotification sends a single web push notification.
func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		log.Printf("Error sending notification to %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	// Handle expired subscriptions
	if resp.StatusCode == http.StatusGone {
		log.Printf("Subscription for endpoint %s is expired. Deleting.", sub.Endpoint)
		if err := wp.source.DeleteSubscription(ctx, sub.Endpoint); err != nil {
			log.Printf("Failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
	}
}

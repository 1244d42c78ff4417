// Package worker runs the periodic check-in sweep: reminders before a deadline and
// removal of entries that missed it.
package worker

import (
	"context"
	"log"
	"time"

	"qms/waitlist-service/internal/events"
	"qms/waitlist-service/internal/models"
	"qms/waitlist-service/internal/store"
)

type Notifier interface {
	Reminder(ctx context.Context, entry models.QueueEntry, deadline, now time.Time) error
	Expired(ctx context.Context, entry models.QueueEntry) error
}

type Config struct {
	CheckInInterval time.Duration
	ReminderLead    time.Duration
	Grace           time.Duration
	BatchSize       int
}

type Worker struct {
	store     store.CheckInStore
	notifier  Notifier
	broker    events.Broker
	interval  time.Duration
	lead      time.Duration
	grace     time.Duration
	batchSize int
	now       func() time.Time
}

func New(store store.CheckInStore, notifier Notifier, broker events.Broker, cfg Config) *Worker {
	interval := cfg.CheckInInterval
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 100
	}
	return &Worker{
		store:     store,
		notifier:  notifier,
		broker:    broker,
		interval:  interval,
		lead:      cfg.ReminderLead,
		grace:     cfg.Grace,
		batchSize: batch,
		now:       time.Now,
	}
}

func (w *Worker) Run(ctx context.Context) error {
	now := w.now().UTC()
	if err := w.remind(ctx, now); err != nil {
		return err
	}
	return w.expire(ctx, now)
}

func (w *Worker) remind(ctx context.Context, now time.Time) error {
	if w.lead <= 0 || w.lead >= w.interval {
		return nil
	}
	due, err := w.store.ListDueForReminder(ctx, now.Add(-(w.interval - w.lead)), w.batchSize)
	if err != nil {
		return err
	}
	for _, entry := range due {
		deadline := entry.CheckInBase().Add(w.interval)
		// A failed send is still marked so it is tried once per window.
		if err := w.notifier.Reminder(ctx, entry, deadline, now); err != nil {
			log.Printf("checkin reminder error entry_id=%s: %v", entry.ID, err)
		}
		if err := w.store.MarkReminded(ctx, entry.ID, now); err != nil {
			return err
		}
	}
	return nil
}

func (w *Worker) expire(ctx context.Context, now time.Time) error {
	if w.grace <= 0 {
		return nil
	}
	expired, err := w.store.ExpireStale(ctx, now.Add(-(w.interval + w.grace)), w.batchSize)
	if err != nil {
		return err
	}
	for _, entry := range expired {
		if w.broker != nil {
			event := events.Event{Type: events.TypeExpired, EntryID: entry.ID, At: now}
			if err := w.broker.Publish(ctx, event); err != nil {
				log.Printf("publish event error: %v", err)
			}
		}
		if err := w.notifier.Expired(ctx, entry); err != nil {
			log.Printf("expiry notify error entry_id=%s: %v", entry.ID, err)
		}
	}
	if len(expired) > 0 {
		log.Printf("checkin expiry removed %d entries", len(expired))
	}
	return nil
}

func Start(ctx context.Context, interval time.Duration, w *Worker) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			err := w.Run(runCtx)
			cancel()
			if err != nil {
				log.Printf("checkin worker error: %v", err)
			}
		}
	}
}

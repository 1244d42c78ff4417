package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"qms/waitlist-service/internal/events"
	"qms/waitlist-service/internal/models"
)

type fakeStore struct {
	listDueFn     func(ctx context.Context, before time.Time, limit int) ([]models.QueueEntry, error)
	markFn        func(ctx context.Context, entryID string, at time.Time) error
	expireStaleFn func(ctx context.Context, before time.Time, limit int) ([]models.QueueEntry, error)
}

func (f *fakeStore) ListDueForReminder(ctx context.Context, before time.Time, limit int) ([]models.QueueEntry, error) {
	if f.listDueFn == nil {
		return nil, nil
	}
	return f.listDueFn(ctx, before, limit)
}

func (f *fakeStore) MarkReminded(ctx context.Context, entryID string, at time.Time) error {
	if f.markFn == nil {
		return nil
	}
	return f.markFn(ctx, entryID, at)
}

func (f *fakeStore) ExpireStale(ctx context.Context, before time.Time, limit int) ([]models.QueueEntry, error) {
	if f.expireStaleFn == nil {
		return nil, nil
	}
	return f.expireStaleFn(ctx, before, limit)
}

type fakeNotifier struct {
	reminded []string
	expired  []string
	failFor  string
}

func (f *fakeNotifier) Reminder(ctx context.Context, entry models.QueueEntry, deadline, now time.Time) error {
	if entry.ID == f.failFor {
		return errors.New("push failed")
	}
	f.reminded = append(f.reminded, entry.ID)
	return nil
}

func (f *fakeNotifier) Expired(ctx context.Context, entry models.QueueEntry) error {
	f.expired = append(f.expired, entry.ID)
	return nil
}

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestWorker(st *fakeStore, notifier *fakeNotifier, broker events.Broker) *Worker {
	w := New(st, notifier, broker, Config{
		CheckInInterval: 10 * time.Minute,
		ReminderLead:    2 * time.Minute,
		Grace:           5 * time.Minute,
		BatchSize:       25,
	})
	w.now = func() time.Time { return fixedNow }
	return w
}

func TestRunRemindsAndMarks(t *testing.T) {
	var cutoff time.Time
	var marked []string
	st := &fakeStore{
		listDueFn: func(ctx context.Context, before time.Time, limit int) ([]models.QueueEntry, error) {
			cutoff = before
			if limit != 25 {
				t.Fatalf("unexpected limit %d", limit)
			}
			return []models.QueueEntry{
				{ID: "a", JoinedAt: fixedNow.Add(-9 * time.Minute), FCMToken: "t1"},
				{ID: "b", JoinedAt: fixedNow.Add(-9 * time.Minute), FCMToken: "t2"},
			}, nil
		},
		markFn: func(ctx context.Context, entryID string, at time.Time) error {
			marked = append(marked, entryID)
			return nil
		},
	}
	notifier := &fakeNotifier{failFor: "b"}
	if err := newTestWorker(st, notifier, nil).Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !cutoff.Equal(fixedNow.Add(-8 * time.Minute)) {
		t.Fatalf("unexpected reminder cutoff %v", cutoff)
	}
	if len(notifier.reminded) != 1 || notifier.reminded[0] != "a" {
		t.Fatalf("unexpected reminders %v", notifier.reminded)
	}
	if len(marked) != 2 || marked[0] != "a" || marked[1] != "b" {
		t.Fatalf("expected failed reminder marked too, got %v", marked)
	}
}

func TestRunExpiresAndPublishes(t *testing.T) {
	var cutoff time.Time
	st := &fakeStore{
		expireStaleFn: func(ctx context.Context, before time.Time, limit int) ([]models.QueueEntry, error) {
			cutoff = before
			return []models.QueueEntry{{ID: "gone", Status: models.StatusRemoved}}, nil
		},
	}
	hub := events.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub, _ := hub.Subscribe(ctx)

	notifier := &fakeNotifier{}
	if err := newTestWorker(st, notifier, hub).Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !cutoff.Equal(fixedNow.Add(-15 * time.Minute)) {
		t.Fatalf("unexpected expiry cutoff %v", cutoff)
	}
	if len(notifier.expired) != 1 || notifier.expired[0] != "gone" {
		t.Fatalf("unexpected expired notifications %v", notifier.expired)
	}
	select {
	case event := <-sub:
		if event.Type != events.TypeExpired || event.EntryID != "gone" {
			t.Fatalf("unexpected event %+v", event)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected expiry event")
	}
}

func TestRunSkipsExpiryWithoutGrace(t *testing.T) {
	called := false
	st := &fakeStore{
		expireStaleFn: func(ctx context.Context, before time.Time, limit int) ([]models.QueueEntry, error) {
			called = true
			return nil, nil
		},
	}
	w := New(st, &fakeNotifier{}, nil, Config{CheckInInterval: 10 * time.Minute})
	if err := w.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if called {
		t.Fatalf("expected expiry disabled when grace is zero")
	}
}

func TestRunReturnsStoreError(t *testing.T) {
	st := &fakeStore{
		listDueFn: func(ctx context.Context, before time.Time, limit int) ([]models.QueueEntry, error) {
			return nil, errors.New("db down")
		},
	}
	if err := newTestWorker(st, &fakeNotifier{}, nil).Run(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}

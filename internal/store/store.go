package store

import (
	"context"
	"time"

	"qms/waitlist-service/internal/models"
)

type CreateEntryInput struct {
	ContactInfo string
	FCMToken    string
	JoinedAt    time.Time
}

type EntryStore interface {
	CreateEntry(ctx context.Context, input CreateEntryInput) (models.QueueEntry, error)
	GetEntry(ctx context.Context, entryID string) (models.QueueEntry, error)
	CountAhead(ctx context.Context, joinedAt time.Time) (int, error)
	CountActive(ctx context.Context) (int, error)
	ListActive(ctx context.Context) ([]models.QueueEntry, error)
	ListAll(ctx context.Context) ([]models.QueueEntry, error)
	CheckIn(ctx context.Context, entryID string, at time.Time) (models.QueueEntry, error)
	UpdateStatus(ctx context.Context, entryID, status string, at time.Time) (models.QueueEntry, error)
	MoveToPosition(ctx context.Context, entryID string, position int) (models.QueueEntry, error)
	DeleteEntry(ctx context.Context, entryID string) error
	ClearQueue(ctx context.Context) (int64, error)
	RecentHistory(ctx context.Context, limit int) ([]models.HistoryEntry, error)
	CountCompletedSince(ctx context.Context, since time.Time) (int, error)
}

// CheckInStore is the subset used by the background check-in worker.
type CheckInStore interface {
	ListDueForReminder(ctx context.Context, windowStartedBefore time.Time, limit int) ([]models.QueueEntry, error)
	MarkReminded(ctx context.Context, entryID string, at time.Time) error
	ExpireStale(ctx context.Context, windowStartedBefore time.Time, limit int) ([]models.QueueEntry, error)
}

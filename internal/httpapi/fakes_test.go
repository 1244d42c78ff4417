package httpapi

import (
	"context"
	"time"

	"qms/waitlist-service/internal/models"
	"qms/waitlist-service/internal/store"
)

type fakeStore struct {
	createFn         func(ctx context.Context, input store.CreateEntryInput) (models.QueueEntry, error)
	getEntryFn       func(ctx context.Context, entryID string) (models.QueueEntry, error)
	countAheadFn     func(ctx context.Context, joinedAt time.Time) (int, error)
	countActiveFn    func(ctx context.Context) (int, error)
	listActiveFn     func(ctx context.Context) ([]models.QueueEntry, error)
	listAllFn        func(ctx context.Context) ([]models.QueueEntry, error)
	checkInFn        func(ctx context.Context, entryID string, at time.Time) (models.QueueEntry, error)
	updateStatusFn   func(ctx context.Context, entryID, status string, at time.Time) (models.QueueEntry, error)
	moveFn           func(ctx context.Context, entryID string, position int) (models.QueueEntry, error)
	deleteFn         func(ctx context.Context, entryID string) error
	clearFn          func(ctx context.Context) (int64, error)
	historyFn        func(ctx context.Context, limit int) ([]models.HistoryEntry, error)
	completedSinceFn func(ctx context.Context, since time.Time) (int, error)
}

func (f fakeStore) CreateEntry(ctx context.Context, input store.CreateEntryInput) (models.QueueEntry, error) {
	if f.createFn == nil {
		return models.QueueEntry{}, nil
	}
	return f.createFn(ctx, input)
}

func (f fakeStore) GetEntry(ctx context.Context, entryID string) (models.QueueEntry, error) {
	if f.getEntryFn == nil {
		return models.QueueEntry{}, store.ErrEntryNotFound
	}
	return f.getEntryFn(ctx, entryID)
}

func (f fakeStore) CountAhead(ctx context.Context, joinedAt time.Time) (int, error) {
	if f.countAheadFn == nil {
		return 0, nil
	}
	return f.countAheadFn(ctx, joinedAt)
}

func (f fakeStore) CountActive(ctx context.Context) (int, error) {
	if f.countActiveFn == nil {
		return 0, nil
	}
	return f.countActiveFn(ctx)
}

func (f fakeStore) ListActive(ctx context.Context) ([]models.QueueEntry, error) {
	if f.listActiveFn == nil {
		return nil, nil
	}
	return f.listActiveFn(ctx)
}

func (f fakeStore) ListAll(ctx context.Context) ([]models.QueueEntry, error) {
	if f.listAllFn == nil {
		return nil, nil
	}
	return f.listAllFn(ctx)
}

func (f fakeStore) CheckIn(ctx context.Context, entryID string, at time.Time) (models.QueueEntry, error) {
	if f.checkInFn == nil {
		return models.QueueEntry{}, nil
	}
	return f.checkInFn(ctx, entryID, at)
}

func (f fakeStore) UpdateStatus(ctx context.Context, entryID, status string, at time.Time) (models.QueueEntry, error) {
	if f.updateStatusFn == nil {
		return models.QueueEntry{}, nil
	}
	return f.updateStatusFn(ctx, entryID, status, at)
}

func (f fakeStore) MoveToPosition(ctx context.Context, entryID string, position int) (models.QueueEntry, error) {
	if f.moveFn == nil {
		return models.QueueEntry{}, nil
	}
	return f.moveFn(ctx, entryID, position)
}

func (f fakeStore) DeleteEntry(ctx context.Context, entryID string) error {
	if f.deleteFn == nil {
		return nil
	}
	return f.deleteFn(ctx, entryID)
}

func (f fakeStore) ClearQueue(ctx context.Context) (int64, error) {
	if f.clearFn == nil {
		return 0, nil
	}
	return f.clearFn(ctx)
}

func (f fakeStore) RecentHistory(ctx context.Context, limit int) ([]models.HistoryEntry, error) {
	if f.historyFn == nil {
		return nil, nil
	}
	return f.historyFn(ctx, limit)
}

func (f fakeStore) CountCompletedSince(ctx context.Context, since time.Time) (int, error) {
	if f.completedSinceFn == nil {
		return 0, nil
	}
	return f.completedSinceFn(ctx, since)
}

type fakeVerifier struct {
	ok  bool
	err error
}

func (f fakeVerifier) Verify(ctx context.Context, token, remoteIP string) (bool, error) {
	return f.ok, f.err
}

type fakeNotifier struct {
	welcomed []int
}

func (f *fakeNotifier) Welcome(ctx context.Context, entry models.QueueEntry, position int) error {
	f.welcomed = append(f.welcomed, position)
	return nil
}

const (
	testEntryID   = "aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa"
	testAdminPass = "letmein"
)

var testNow = time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

func newTestHandler(st fakeStore, verifier fakeVerifier) *Handler {
	h := NewHandler(st, verifier, &fakeNotifier{}, nil, Options{AdminPassword: testAdminPass})
	h.now = func() time.Time { return testNow }
	return h
}

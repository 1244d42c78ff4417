package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"qms/waitlist-service/internal/models"
	"qms/waitlist-service/internal/queue"
	"qms/waitlist-service/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const entryColumns = `id, contact_info, joined_at, first_joined_at, last_check_in, status, fcm_token, check_in_count, previous_attempts, reminded_at`

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) CreateEntry(ctx context.Context, input store.CreateEntryInput) (models.QueueEntry, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.QueueEntry{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var previousAttempts int
	if err = tx.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM queue_entries
		WHERE contact_info = $1 AND status = 'removed'
	`, input.ContactInfo).Scan(&previousAttempts); err != nil {
		return models.QueueEntry{}, err
	}

	joinedAt := input.JoinedAt
	if joinedAt.IsZero() {
		joinedAt = time.Now().UTC()
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO queue_entries (id, contact_info, joined_at, first_joined_at, status, fcm_token, previous_attempts)
		VALUES ($1, $2, $3, $3, $4, $5, $6)
		RETURNING `+entryColumns,
		uuid.NewString(), input.ContactInfo, joinedAt, models.StatusActive, nullIfEmpty(input.FCMToken), previousAttempts)
	entry, err := scanEntry(row)
	if err != nil {
		return models.QueueEntry{}, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.QueueEntry{}, err
	}
	return entry, nil
}

func (s *Store) GetEntry(ctx context.Context, entryID string) (models.QueueEntry, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+entryColumns+` FROM queue_entries WHERE id = $1`, entryID)
	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.QueueEntry{}, store.ErrEntryNotFound
		}
		return models.QueueEntry{}, err
	}
	return entry, nil
}

func (s *Store) CountAhead(ctx context.Context, joinedAt time.Time) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM queue_entries
		WHERE status = 'active' AND joined_at < $1
	`, joinedAt).Scan(&count)
	return count, err
}

func (s *Store) CountActive(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM queue_entries WHERE status = 'active'`).Scan(&count)
	return count, err
}

func (s *Store) ListActive(ctx context.Context) ([]models.QueueEntry, error) {
	return s.listEntries(ctx, `
		SELECT `+entryColumns+`
		FROM queue_entries
		WHERE status = 'active'
		ORDER BY joined_at ASC, id ASC
	`)
}

func (s *Store) ListAll(ctx context.Context) ([]models.QueueEntry, error) {
	return s.listEntries(ctx, `
		SELECT `+entryColumns+`
		FROM queue_entries
		ORDER BY joined_at ASC, id ASC
	`)
}

func (s *Store) listEntries(ctx context.Context, query string, args ...interface{}) ([]models.QueueEntry, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEntries(rows)
}

func (s *Store) CheckIn(ctx context.Context, entryID string, at time.Time) (models.QueueEntry, error) {
	if at.IsZero() {
		at = time.Now().UTC()
	}
	row := s.pool.QueryRow(ctx, `
		UPDATE queue_entries
		SET last_check_in = $2,
			check_in_count = check_in_count + 1,
			reminded_at = NULL
		WHERE id = $1 AND status IN ('active', 'checked_in')
		RETURNING `+entryColumns, entryID, at)
	entry, err := scanEntry(row)
	if err == nil {
		return entry, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return models.QueueEntry{}, err
	}
	if _, err := s.GetEntry(ctx, entryID); err != nil {
		return models.QueueEntry{}, err
	}
	return models.QueueEntry{}, store.ErrInvalidState
}

func (s *Store) UpdateStatus(ctx context.Context, entryID, status string, at time.Time) (models.QueueEntry, error) {
	if !store.KnownStatus(status) {
		return models.QueueEntry{}, store.ErrInvalidStatus
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.QueueEntry{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	current, err := lockEntry(ctx, tx, entryID)
	if err != nil {
		return models.QueueEntry{}, err
	}
	if current.Status == status {
		if err = tx.Commit(ctx); err != nil {
			return models.QueueEntry{}, err
		}
		return current, nil
	}
	if !store.ValidTransition(status, current.Status) {
		err = store.ErrInvalidState
		return models.QueueEntry{}, err
	}

	if status == models.StatusCompleted {
		if _, err = tx.Exec(ctx, `
			INSERT INTO queue_history (id, joined_at, completion_time)
			VALUES ($1, $2, $3)
			ON CONFLICT (id) DO NOTHING
		`, current.ID, current.WaitStart(), at); err != nil {
			return models.QueueEntry{}, err
		}
		if _, err = tx.Exec(ctx, `DELETE FROM queue_entries WHERE id = $1`, current.ID); err != nil {
			return models.QueueEntry{}, err
		}
		if err = tx.Commit(ctx); err != nil {
			return models.QueueEntry{}, err
		}
		current.Status = models.StatusCompleted
		return current, nil
	}

	row := tx.QueryRow(ctx, `
		UPDATE queue_entries
		SET status = $2
		WHERE id = $1
		RETURNING `+entryColumns, entryID, status)
	updated, err := scanEntry(row)
	if err != nil {
		return models.QueueEntry{}, err
	}
	if err = tx.Commit(ctx); err != nil {
		return models.QueueEntry{}, err
	}
	return updated, nil
}

// MoveToPosition rewrites the entry's join time so it ranks at position among active entries.
func (s *Store) MoveToPosition(ctx context.Context, entryID string, position int) (models.QueueEntry, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.QueueEntry{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	current, err := lockEntry(ctx, tx, entryID)
	if err != nil {
		return models.QueueEntry{}, err
	}
	if current.Status != models.StatusActive {
		err = store.ErrInvalidState
		return models.QueueEntry{}, err
	}

	rows, err := tx.Query(ctx, `
		SELECT id, joined_at
		FROM queue_entries
		WHERE status = 'active' AND id <> $1
		ORDER BY joined_at ASC, id ASC
		FOR UPDATE
	`, entryID)
	if err != nil {
		return models.QueueEntry{}, err
	}
	var otherIDs []string
	var others []time.Time
	for rows.Next() {
		var id string
		var joinedAt time.Time
		if err = rows.Scan(&id, &joinedAt); err != nil {
			rows.Close()
			return models.QueueEntry{}, err
		}
		otherIDs = append(otherIDs, id)
		others = append(others, joinedAt)
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return models.QueueEntry{}, err
	}

	joinedAt, shift := queue.JoinTimeForPlacement(others, position, current.JoinedAt)
	if shift > 0 {
		if _, err = tx.Exec(ctx, `
			UPDATE queue_entries
			SET joined_at = joined_at + ($2::bigint * INTERVAL '1 microsecond')
			WHERE id = ANY($1::text[]::uuid[])
		`, otherIDs[position-1:], shift.Microseconds()); err != nil {
			return models.QueueEntry{}, err
		}
	}
	row := tx.QueryRow(ctx, `
		UPDATE queue_entries
		SET joined_at = $2
		WHERE id = $1
		RETURNING `+entryColumns, entryID, joinedAt)
	updated, err := scanEntry(row)
	if err != nil {
		return models.QueueEntry{}, err
	}
	if err = tx.Commit(ctx); err != nil {
		return models.QueueEntry{}, err
	}
	return updated, nil
}

func (s *Store) DeleteEntry(ctx context.Context, entryID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM queue_entries WHERE id = $1`, entryID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrEntryNotFound
	}
	return nil
}

func (s *Store) ClearQueue(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM queue_entries`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *Store) RecentHistory(ctx context.Context, limit int) ([]models.HistoryEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, joined_at, completion_time
		FROM queue_history
		ORDER BY completion_time DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []models.HistoryEntry
	for rows.Next() {
		var item models.HistoryEntry
		if err := rows.Scan(&item.ID, &item.JoinedAt, &item.CompletionTime); err != nil {
			return nil, err
		}
		history = append(history, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return history, nil
}

func (s *Store) CountCompletedSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM queue_history
		WHERE completion_time >= $1
	`, since).Scan(&count)
	return count, err
}

func (s *Store) ListDueForReminder(ctx context.Context, windowStartedBefore time.Time, limit int) ([]models.QueueEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.listEntries(ctx, `
		SELECT `+entryColumns+`
		FROM queue_entries
		WHERE status = 'active'
			AND fcm_token IS NOT NULL
			AND reminded_at IS NULL
			AND COALESCE(last_check_in, first_joined_at) <= $1
		ORDER BY joined_at ASC
		LIMIT $2
	`, windowStartedBefore, limit)
}

func (s *Store) MarkReminded(ctx context.Context, entryID string, at time.Time) error {
	_, err := s.pool.Exec(ctx, `UPDATE queue_entries SET reminded_at = $2 WHERE id = $1`, entryID, at)
	return err
}

// ExpireStale marks active entries whose check-in window started before the cutoff as removed.
func (s *Store) ExpireStale(ctx context.Context, windowStartedBefore time.Time, limit int) ([]models.QueueEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	rows, err := tx.Query(ctx, `
		UPDATE queue_entries
		SET status = 'removed'
		WHERE id IN (
			SELECT id
			FROM queue_entries
			WHERE status = 'active' AND COALESCE(last_check_in, first_joined_at) <= $1
			ORDER BY joined_at ASC
			FOR UPDATE SKIP LOCKED
			LIMIT $2
		)
		RETURNING `+entryColumns, windowStartedBefore, limit)
	if err != nil {
		return nil, err
	}
	expired, err := collectEntries(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, err
	}
	return expired, nil
}

func lockEntry(ctx context.Context, tx pgx.Tx, entryID string) (models.QueueEntry, error) {
	row := tx.QueryRow(ctx, `SELECT `+entryColumns+` FROM queue_entries WHERE id = $1 FOR UPDATE`, entryID)
	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.QueueEntry{}, store.ErrEntryNotFound
		}
		return models.QueueEntry{}, err
	}
	return entry, nil
}

func collectEntries(rows pgx.Rows) ([]models.QueueEntry, error) {
	var entries []models.QueueEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func scanEntry(row pgx.Row) (models.QueueEntry, error) {
	var entry models.QueueEntry
	var lastCheckInNull sql.NullTime
	var fcmTokenNull sql.NullString
	var remindedAtNull sql.NullTime
	if err := row.Scan(&entry.ID, &entry.ContactInfo, &entry.JoinedAt, &entry.FirstJoinedAt, &lastCheckInNull, &entry.Status, &fcmTokenNull, &entry.CheckInCount, &entry.PreviousAttempts, &remindedAtNull); err != nil {
		return models.QueueEntry{}, err
	}
	entry.LastCheckIn = nullTimePtr(lastCheckInNull)
	entry.RemindedAt = nullTimePtr(remindedAtNull)
	if fcmTokenNull.Valid {
		entry.FCMToken = fcmTokenNull.String
	}
	return entry, nil
}

func nullIfEmpty(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}

func nullTimePtr(value sql.NullTime) *time.Time {
	if !value.Valid {
		return nil
	}
	return &value.Time
}

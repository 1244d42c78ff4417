package models

import "time"

type QueueEntry struct {
	ID               string     `json:"id"`
	ContactInfo      string     `json:"contactInfo"`
	JoinedAt         time.Time  `json:"joinedAt"`
	FirstJoinedAt    time.Time  `json:"-"`
	LastCheckIn      *time.Time `json:"lastCheckIn,omitempty"`
	Status           string     `json:"status"`
	FCMToken         string     `json:"-"`
	CheckInCount     int        `json:"checkInCount"`
	PreviousAttempts int        `json:"previousAttempts"`
	RemindedAt       *time.Time `json:"-"`
	Position         int        `json:"position,omitempty"`
}

// WaitStart is when the entry really joined. JoinedAt only orders the queue and an admin
// reorder may rewrite it.
func (e QueueEntry) WaitStart() time.Time {
	if e.FirstJoinedAt.IsZero() {
		return e.JoinedAt
	}
	return e.FirstJoinedAt
}

// CheckInBase is the moment the current check-in window started.
func (e QueueEntry) CheckInBase() time.Time {
	if e.LastCheckIn != nil {
		return *e.LastCheckIn
	}
	return e.WaitStart()
}

type HistoryEntry struct {
	ID             string    `json:"id"`
	JoinedAt       time.Time `json:"joinedAt"`
	CompletionTime time.Time `json:"completionTime"`
}

const (
	StatusActive    = "active"
	StatusCheckedIn = "checked_in"
	StatusCompleted = "completed"
	StatusRemoved   = "removed"
)

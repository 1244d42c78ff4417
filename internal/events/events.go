// Package events fans queue changes out to live status streams.
package events

import (
	"context"
	"time"
)

const (
	TypeJoined        = "joined"
	TypeCheckedIn     = "checked_in"
	TypeStatusChanged = "status_changed"
	TypeMoved         = "moved"
	TypeRemoved       = "removed"
	TypeCleared       = "cleared"
	TypeExpired       = "expired"
)

// Event is a change to the queue. EntryID is empty for queue-wide changes.
type Event struct {
	Type    string    `json:"type"`
	EntryID string    `json:"entry_id,omitempty"`
	At      time.Time `json:"at"`
}

// Broker delivers every published event to all subscribers. A subscription ends when
// its context is cancelled and the channel is then closed.
type Broker interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(ctx context.Context) (<-chan Event, error)
}

package notify

import (
	"context"
	"log"
	"strconv"
	"strings"
	"time"

	"qms/waitlist-service/internal/models"
)

const (
	welcomeTitle  = "Welcome to the queue"
	welcomeBody   = "You are in position {position}. We'll notify you when it's time to check in."
	reminderTitle = "Time to check in"
	reminderBody  = "Check in within {minutes} minutes to keep your place in the queue."
	expiredTitle  = "You left the queue"
	expiredBody   = "You missed your check-in, so your place in the queue was released."
)

// Notifier turns queue events into push messages. Entries without a push token are skipped.
type Notifier struct {
	provider Provider
}

func NewNotifier(provider Provider) *Notifier {
	return &Notifier{provider: provider}
}

func (n *Notifier) Welcome(ctx context.Context, entry models.QueueEntry, position int) error {
	return n.send(ctx, entry, "welcome", welcomeTitle, welcomeBody, map[string]string{
		"position": strconv.Itoa(position),
	})
}

func (n *Notifier) Reminder(ctx context.Context, entry models.QueueEntry, deadline, now time.Time) error {
	minutes := int(deadline.Sub(now).Round(time.Minute).Minutes())
	if minutes < 1 {
		minutes = 1
	}
	return n.send(ctx, entry, "checkin_reminder", reminderTitle, reminderBody, map[string]string{
		"minutes": strconv.Itoa(minutes),
	})
}

func (n *Notifier) Expired(ctx context.Context, entry models.QueueEntry) error {
	return n.send(ctx, entry, "expired", expiredTitle, expiredBody, nil)
}

func (n *Notifier) send(ctx context.Context, entry models.QueueEntry, kind, title, body string, vars map[string]string) error {
	if n == nil || n.provider == nil || entry.FCMToken == "" {
		return nil
	}
	data := map[string]string{"type": kind, "entry_id": entry.ID}
	for key, value := range vars {
		data[key] = value
	}
	return n.provider.Send(ctx, Message{
		Token: entry.FCMToken,
		Title: title,
		Body:  renderTemplate(body, vars),
		Data:  data,
	})
}

func renderTemplate(template string, vars map[string]string) string {
	result := template
	for {
		start := strings.Index(result, "{")
		if start < 0 {
			return result
		}
		end := strings.Index(result[start:], "}")
		if end < 0 {
			return result
		}
		key := result[start+1 : start+end]
		value, ok := vars[key]
		if !ok {
			log.Printf("notif missing variable: %s", key)
		}
		result = result[:start] + value + result[start+end+1:]
	}
}

package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"qms/waitlist-service/internal/events"
	"qms/waitlist-service/internal/store"
)

type removedPayload struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// handleUpdates streams an entry's status as server-sent events. A fresh status follows every
// queue event that can move it, with a comment heartbeat in between. The stream ends once the entry is gone.
func (h *Handler) handleUpdates(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	entryID, ok := entryIDFromPath(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	updates, err := h.broker.Subscribe(ctx)
	if err != nil {
		h.fail(w, "subscribe updates", err, "Failed to subscribe to updates")
		return
	}
	status, err := h.statusFor(ctx, entryID)
	if err != nil {
		h.fail(w, "queue status", err, "Failed to get queue status")
		return
	}

	controller := http.NewResponseController(w)
	_ = controller.SetWriteDeadline(time.Time{})

	header := w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if err := writeEvent(w, controller, "status", status); err != nil {
		return
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": heartbeat\n\n"); err != nil {
				return
			}
			if err := controller.Flush(); err != nil {
				return
			}
		case event, ok := <-updates:
			if !ok {
				return
			}
			if !affectsEntry(event, entryID) {
				continue
			}
			status, err := h.statusFor(ctx, entryID)
			if errors.Is(err, store.ErrEntryNotFound) {
				_ = writeEvent(w, controller, "removed", removedPayload{ID: entryID, Status: "removed"})
				return
			}
			if err != nil {
				log.Printf("updates status error entry_id=%s: %v", entryID, err)
				continue
			}
			if err := writeEvent(w, controller, "status", status); err != nil {
				return
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, controller *http.ResponseController, name string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data); err != nil {
		return err
	}
	return controller.Flush()
}

// affectsEntry reports whether event can change the status of entryID. Joins land
// at the tail and check-ins only touch their own deadline.
func affectsEntry(event events.Event, entryID string) bool {
	if event.EntryID == entryID {
		return true
	}
	switch event.Type {
	case events.TypeJoined, events.TypeCheckedIn:
		return false
	}
	return true
}

package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"qms/waitlist-service/internal/store"

	"github.com/igm/sockjs-go/sockjs"
)

const realtimePrefix = "/api/realtime"

type realtimeEnvelope struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

type realtimeRequest struct {
	Action  string `json:"action"`
	EntryID string `json:"entry_id"`
}

func (h *Handler) realtimeHandler() http.Handler {
	return sockjs.NewHandler(realtimePrefix, sockjs.DefaultOptions, h.serveRealtime)
}

// serveRealtime is the SockJS counterpart of handleUpdates. A session watches at most one entry,
// chosen with {"action":"subscribe","entry_id":...} and cleared with "unsubscribe".
func (h *Handler) serveRealtime(session sockjs.Session) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates, err := h.broker.Subscribe(ctx)
	if err != nil {
		log.Printf("realtime subscribe error: %v", err)
		_ = session.Close(4500, "subscribe failed")
		return
	}

	requests := make(chan realtimeRequest, 4)
	go func() {
		defer cancel()
		for {
			msg, err := session.Recv()
			if err != nil {
				return
			}
			var req realtimeRequest
			if err := json.Unmarshal([]byte(msg), &req); err != nil {
				sendRealtime(session, "error", "invalid message")
				continue
			}
			select {
			case requests <- req:
			case <-ctx.Done():
				return
			}
		}
	}()

	watching := ""
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-requests:
			switch strings.ToLower(strings.TrimSpace(req.Action)) {
			case "subscribe":
				entryID := strings.TrimSpace(req.EntryID)
				if !isValidUUID(entryID) {
					sendRealtime(session, "error", "entry_id must be a UUID")
					continue
				}
				watching = h.pushRealtimeStatus(ctx, session, entryID)
			case "unsubscribe":
				watching = ""
			default:
				sendRealtime(session, "error", "unknown action")
			}
		case event, ok := <-updates:
			if !ok {
				_ = session.Close(4501, "event stream closed")
				return
			}
			if watching != "" && affectsEntry(event, watching) {
				watching = h.pushRealtimeStatus(ctx, session, watching)
			}
		}
	}
}

// pushRealtimeStatus sends the current status of entryID and returns the id still worth watching.
func (h *Handler) pushRealtimeStatus(ctx context.Context, session sockjs.Session, entryID string) string {
	status, err := h.statusFor(ctx, entryID)
	if errors.Is(err, store.ErrEntryNotFound) {
		sendRealtime(session, "removed", removedPayload{ID: entryID, Status: "removed"})
		return ""
	}
	if err != nil {
		log.Printf("realtime status error entry_id=%s: %v", entryID, err)
		return entryID
	}
	sendRealtime(session, "status", status)
	return entryID
}

func sendRealtime(session sockjs.Session, kind string, payload interface{}) {
	data, err := json.Marshal(realtimeEnvelope{Type: kind, Payload: payload})
	if err != nil {
		return
	}
	if err := session.Send(string(data)); err != nil {
		log.Printf("realtime send error session=%s: %v", session.ID(), err)
	}
}

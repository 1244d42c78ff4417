package httpapi

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"qms/waitlist-service/internal/events"
	"qms/waitlist-service/internal/models"
	"qms/waitlist-service/internal/store"

	"github.com/gorilla/websocket"
)

type realtimeMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func readRealtime(t *testing.T, conn *websocket.Conn) realtimeMessage {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read message: %v", err)
	}
	var msg realtimeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decode message %s: %v", data, err)
	}
	return msg
}

func TestRealtimeSubscribeAndRemoval(t *testing.T) {
	var gone atomic.Bool
	st := fakeStore{
		getEntryFn: func(ctx context.Context, entryID string) (models.QueueEntry, error) {
			if gone.Load() {
				return models.QueueEntry{}, store.ErrEntryNotFound
			}
			return models.QueueEntry{ID: entryID, JoinedAt: testNow, Status: models.StatusActive}, nil
		},
		countAheadFn: func(ctx context.Context, joinedAt time.Time) (int, error) { return 4, nil },
	}
	hub := events.NewHub()
	h := NewHandler(st, fakeVerifier{}, nil, hub, Options{})
	server := httptest.NewServer(h.Routes())
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + realtimePrefix + "/websocket"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"action":"subscribe","entry_id":"nope"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if msg := readRealtime(t, conn); msg.Type != "error" {
		t.Fatalf("expected error for bad id, got %s", msg.Type)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"action":"subscribe","entry_id":"`+testEntryID+`"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	msg := readRealtime(t, conn)
	if msg.Type != "status" {
		t.Fatalf("expected status, got %s", msg.Type)
	}
	var status models.QueueStatus
	if err := json.Unmarshal(msg.Payload, &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.ID != testEntryID || status.Position != 5 {
		t.Fatalf("unexpected status %+v", status)
	}

	gone.Store(true)
	_ = hub.Publish(context.Background(), events.Event{Type: events.TypeRemoved, EntryID: testEntryID})
	if msg := readRealtime(t, conn); msg.Type != "removed" {
		t.Fatalf("expected removed, got %s", msg.Type)
	}
}

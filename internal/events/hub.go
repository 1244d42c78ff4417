package events

import (
	"context"
	"log"
	"sync"

	"github.com/google/uuid"
)

const subscriberBuffer = 16

type subscriber struct {
	id   string
	send chan Event
}

// Hub is an in-process Broker. Slow subscribers lose events rather than block publishers.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]*subscriber
}

func NewHub() *Hub {
	return &Hub{subscribers: make(map[string]*subscriber)}
}

func (h *Hub) Publish(ctx context.Context, event Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subscribers {
		select {
		case sub.send <- event:
		default:
			log.Printf("drop event %s for subscriber %s", event.Type, sub.id)
		}
	}
	return nil
}

func (h *Hub) Subscribe(ctx context.Context) (<-chan Event, error) {
	sub := &subscriber{id: uuid.NewString(), send: make(chan Event, subscriberBuffer)}
	h.mu.Lock()
	h.subscribers[sub.id] = sub
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.unregister(sub)
	}()
	return sub.send, nil
}

func (h *Hub) unregister(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subscribers[sub.id]; !ok {
		return
	}
	delete(h.subscribers, sub.id)
	close(sub.send)
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

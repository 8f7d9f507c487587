package events

import (
	"encoding/json"
	"sync"
	"time"
)

// Event types published by notifyd.
const (
	NotificationPosted = "notification.posted"
	NotificationFailed = "notification.failed"
	DeliverySucceeded  = "delivery.succeeded"
	DeliveryRetry      = "delivery.retry"
	DeliveryDead       = "delivery.dead"
)

type Event struct {
	ID   int64     `json:"id"`
	Type string    `json:"type"`
	At   time.Time `json:"at"`
	Data []byte    `json:"data"` // JSON payload
}

// Hub is an in-memory pub/sub with a small ring buffer for late clients.
// A nil *Hub discards everything, so components can publish unconditionally.
type Hub struct {
	mu     sync.Mutex
	nextID int64
	ring   []Event
	start  int
	size   int

	subs      map[int]chan Event
	nextSubID int
	subBuffer int
}

func NewHub(capacity int) *Hub {
	if capacity <= 0 {
		capacity = 100
	}
	return &Hub{
		ring:      make([]Event, capacity),
		subs:      make(map[int]chan Event),
		subBuffer: 128,
	}
}

func (h *Hub) Publish(eventType string, data any) {
	if h == nil {
		return
	}
	payload := []byte("{}")
	if data != nil {
		if b, err := json.Marshal(data); err == nil {
			payload = b
		}
	}

	// IDs are assigned under the lock so ring and channel order match ID order.
	h.mu.Lock()
	h.nextID++
	ev := Event{
		ID:   h.nextID,
		Type: eventType,
		At:   time.Now().UTC(),
		Data: payload,
	}
	h.pushLocked(ev)
	for _, ch := range h.subs {
		// Slow subscribers lose events rather than block producers.
		select {
		case ch <- ev:
		default:
		}
	}
	h.mu.Unlock()
}

// Subscribe returns a channel of new events and a cancel func that closes it.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextSubID
	h.nextSubID++
	ch := make(chan Event, h.subBuffer)
	h.subs[id] = ch

	cancel := func() {
		h.mu.Lock()
		if c, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(c)
		}
		h.mu.Unlock()
	}

	return ch, cancel
}

// SnapshotSince returns buffered events with ID > lastID, oldest-first.
// If lastID is 0, the full ring buffer snapshot is returned.
func (h *Hub) SnapshotSince(lastID int64) []Event {
	if h == nil {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]Event, 0, h.size)
	for i := 0; i < h.size; i++ {
		ev := h.ring[(h.start+i)%len(h.ring)]
		if lastID == 0 || ev.ID > lastID {
			out = append(out, ev)
		}
	}
	return out
}

func (h *Hub) pushLocked(ev Event) {
	capacity := len(h.ring)
	if h.size < capacity {
		h.ring[(h.start+h.size)%capacity] = ev
		h.size++
		return
	}
	// Overwrite oldest.
	h.ring[h.start] = ev
	h.start = (h.start + 1) % capacity
}

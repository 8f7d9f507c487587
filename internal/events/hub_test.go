package events

import (
	"encoding/json"
	"sync"
	"testing"
	"time"
)

func TestHubRingBufferKeepsNewest(t *testing.T) {
	h := NewHub(3)
	for i := range 5 {
		h.Publish(NotificationPosted, map[string]int{"n": i})
	}

	snap := h.SnapshotSince(0)
	if len(snap) != 3 {
		t.Fatalf("snapshot len = %d, want 3", len(snap))
	}
	if snap[0].ID != 3 || snap[2].ID != 5 {
		t.Fatalf("unexpected ids: %d..%d", snap[0].ID, snap[2].ID)
	}

	var data map[string]int
	if err := json.Unmarshal(snap[2].Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if data["n"] != 4 {
		t.Fatalf("newest data = %v", data)
	}

	if got := h.SnapshotSince(4); len(got) != 1 || got[0].ID != 5 {
		t.Fatalf("SnapshotSince(4) = %#v", got)
	}
}

func TestHubSubscribeReceivesAndCancelCloses(t *testing.T) {
	h := NewHub(10)
	ch, cancel := h.Subscribe()

	h.Publish(DeliverySucceeded, nil)

	select {
	case ev := <-ch:
		if ev.Type != DeliverySucceeded || string(ev.Data) != "{}" {
			t.Fatalf("unexpected event: %#v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}

	cancel()
	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed after cancel")
	}
	cancel() // idempotent
}

func TestNilHubIsNoop(t *testing.T) {
	var h *Hub
	h.Publish(NotificationFailed, map[string]string{"x": "y"})
	if got := h.SnapshotSince(0); got != nil {
		t.Fatalf("nil hub snapshot = %v", got)
	}
}

func TestHubConcurrentPublishKeepsIDOrder(t *testing.T) {
	h := NewHub(64)
	ch, cancel := h.Subscribe()

	var (
		received []int64
		readDone = make(chan struct{})
	)
	go func() {
		defer close(readDone)
		for ev := range ch {
			received = append(received, ev.ID)
		}
	}()

	var wg sync.WaitGroup
	for p := range 16 {
		wg.Go(func() {
			for i := range 500 {
				h.Publish(NotificationPosted, map[string]any{
					"kind":    "stage-status-changed",
					"plugins": []string{"slack", "email"},
					"n":       p*1000 + i,
				})
			}
		})
	}
	wg.Wait()
	cancel()
	<-readDone

	if len(received) == 0 {
		t.Fatal("subscriber received nothing")
	}
	for i := 1; i < len(received); i++ {
		if received[i] <= received[i-1] {
			t.Fatalf("event %d arrived after %d", received[i], received[i-1])
		}
	}

	snap := h.SnapshotSince(0)
	for i := 1; i < len(snap); i++ {
		if snap[i].ID != snap[i-1].ID+1 {
			t.Fatalf("ring out of order at %d: %d then %d", i, snap[i-1].ID, snap[i].ID)
		}
	}
	if last := snap[len(snap)-1].ID; last != 16*500 {
		t.Fatalf("last id = %d, want %d", last, 16*500)
	}
}

package core

import (
	"context"
	"sync"
	"testing"
	"time"
)

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

// mustNoEvent fails if anything arrives on ch within the wait window.
func mustNoEvent(t *testing.T, ch <-chan *Event, wait time.Duration) {
	t.Helper()

	select {
	case ev, ok := <-ch:
		if ok {
			t.Fatalf("unexpected event: %+v", ev)
		}
	case <-time.After(wait):
	}
}

// waitOccupancy polls until the hub reports want connections in room.
func waitOccupancy(t *testing.T, hub *Hub, room string, want int) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.Occupancy(context.Background(), room) == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("room %s never reached occupancy %d", room, want)
}

type recordingReaper struct {
	mu      sync.Mutex
	deleted []string
	signal  chan string
	err     error
}

func newRecordingReaper() *recordingReaper {
	return &recordingReaper{signal: make(chan string, 8)}
}

func (r *recordingReaper) DeleteRoom(_ context.Context, roomID string) error {
	r.mu.Lock()
	r.deleted = append(r.deleted, roomID)
	r.mu.Unlock()
	r.signal <- roomID
	return r.err
}

func (r *recordingReaper) calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.deleted...)
}

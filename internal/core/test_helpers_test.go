package core

import (
	"context"
	"testing"
	"time"

	"github.com/vovakirdan/floatchat/internal/store"
)

// startHub runs a hub until the test ends and waits for Run to return.
func startHub(t *testing.T, chatLog store.ChatterStore) *Hub {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(chatLog, nil)
	go hub.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-hub.done
	})
	return hub
}

// subscribe registers a client on room and consumes its history replay.
func subscribe(t *testing.T, hub *Hub, id, room string) *Client {
	t.Helper()

	c := NewClient(id, id, 0)
	hub.RegisterClient(c)
	c.Commands <- &Command{Kind: CommandSubscribe, Room: room}
	mustEvent(t, c.Events, EventHistory)
	return c
}

// mustEvent skips events of other kinds until one of kind arrives.
func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				t.Fatalf("events closed while waiting for %v", kind)
			}
			if ev != nil && ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("expected event kind %v not received", kind)
			return nil
		}
	}
}

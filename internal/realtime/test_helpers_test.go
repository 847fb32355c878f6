package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/vovakirdan/floatchat/internal/chatter"
	"github.com/vovakirdan/floatchat/internal/emote"
	"github.com/vovakirdan/floatchat/internal/sails"
	"github.com/vovakirdan/floatchat/internal/sio"
)

type emitted struct {
	event   string
	url     string
	data    json.RawMessage
	payload json.RawMessage
	ack     sio.AckFunc
}

func (e emitted) reply(status int, body any) {
	raw, _ := json.Marshal(sails.Response[any]{StatusCode: status, Headers: map[string]string{}, Body: body})
	e.ack([]json.RawMessage{raw})
}

func (e emitted) noAck() {
	raw, _ := json.Marshal(sio.NoAck)
	e.ack([]json.RawMessage{raw})
}

// fakeTransport records calls and lets tests fire transport events.
type fakeTransport struct {
	mu          sync.Mutex
	handlers    map[string][]sio.Handler
	connects    int
	disconnects int
	emits       chan emitted
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		handlers: make(map[string][]sio.Handler),
		emits:    make(chan emitted, 64),
	}
}

func (f *fakeTransport) Connect() {
	f.mu.Lock()
	f.connects++
	f.mu.Unlock()
}

func (f *fakeTransport) Disconnect() {
	f.mu.Lock()
	f.disconnects++
	f.mu.Unlock()
}

func (f *fakeTransport) EmitWithAck(event string, payload json.RawMessage, _ time.Duration, ack sio.AckFunc) {
	var env struct {
		URL  string          `json:"url"`
		Data json.RawMessage `json:"data"`
	}
	_ = json.Unmarshal(payload, &env)
	f.emits <- emitted{event: event, url: env.URL, data: env.Data, payload: payload, ack: ack}
}

func (f *fakeTransport) On(event string, h sio.Handler) {
	f.mu.Lock()
	f.handlers[event] = append(f.handlers[event], h)
	f.mu.Unlock()
}

func (f *fakeTransport) fire(event string, args ...any) {
	raw := make([]json.RawMessage, 0, len(args))
	for _, a := range args {
		b, _ := json.Marshal(a)
		raw = append(raw, b)
	}
	f.mu.Lock()
	hs := append([]sio.Handler(nil), f.handlers[event]...)
	f.mu.Unlock()
	for _, h := range hs {
		h(raw)
	}
}

func (f *fakeTransport) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects, f.disconnects
}

func mustEmit(t *testing.T, f *fakeTransport, url string) emitted {
	t.Helper()

	select {
	case e := <-f.emits:
		if e.url != url {
			t.Fatalf("expected emit for %s, got %s %s", url, e.event, e.url)
		}
		return e
	case <-time.After(2 * time.Second):
		t.Fatalf("expected emit for %s not received", url)
	}
	return emitted{}
}

func noEmit(t *testing.T, f *fakeTransport, wait time.Duration) {
	t.Helper()

	select {
	case e := <-f.emits:
		t.Fatalf("unexpected emit %s %s", e.event, e.url)
	case <-time.After(wait):
	}
}

type stater interface {
	State() State
}

func waitState(t *testing.T, s stater, want State) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected state %v, still %v", want, s.State())
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

type calls struct {
	connected    int
	disconnected []State
	errs         []error
	chatter      []chatter.Rendered
	events       []string
}

// recorder is a Delegate and FrontendDelegate collecting callbacks.
type recorder struct {
	mu sync.Mutex
	c  calls
}

func (r *recorder) OnConnected() {
	r.mu.Lock()
	r.c.connected++
	r.mu.Unlock()
}

func (r *recorder) OnDisconnected(s State) {
	r.mu.Lock()
	r.c.disconnected = append(r.c.disconnected, s)
	r.mu.Unlock()
}

func (r *recorder) OnError(err error) {
	r.mu.Lock()
	r.c.errs = append(r.c.errs, err)
	r.mu.Unlock()
}

func (r *recorder) OnChatter(c chatter.Rendered) {
	r.mu.Lock()
	r.c.chatter = append(r.c.chatter, c)
	r.mu.Unlock()
}

func (r *recorder) OnEvent(name string, _ json.RawMessage) {
	r.mu.Lock()
	r.c.events = append(r.c.events, name)
	r.mu.Unlock()
}

func (r *recorder) snapshot() calls {
	r.mu.Lock()
	defer r.mu.Unlock()
	return calls{
		connected:    r.c.connected,
		disconnected: append([]State(nil), r.c.disconnected...),
		errs:         append([]error(nil), r.c.errs...),
		chatter:      append([]chatter.Rendered(nil), r.c.chatter...),
		events:       append([]string(nil), r.c.events...),
	}
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.Emotes = emote.NewCache()
	opts.ReconnectDelay = 50 * time.Millisecond
	return opts
}

func runLoop(t *testing.T, run func(context.Context)) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func joinOK(emotes ...map[string]string) map[string]any {
	list := []map[string]string{}
	list = append(list, emotes...)
	return map[string]any{"success": true, "emotes": list}
}

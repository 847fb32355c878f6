package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/floatchat/internal/config"
	"github.com/vovakirdan/floatchat/internal/core"
	"github.com/vovakirdan/floatchat/internal/emote"
	"github.com/vovakirdan/floatchat/internal/realtime"
	"github.com/vovakirdan/floatchat/internal/sio"
	"github.com/vovakirdan/floatchat/internal/store"
	"github.com/vovakirdan/floatchat/internal/store/sqlite"
)

// stubTransport connects at once and acknowledges every request with success.
type stubTransport struct {
	mu       sync.Mutex
	handlers map[string][]sio.Handler
}

func newStubTransport() *stubTransport {
	return &stubTransport{handlers: make(map[string][]sio.Handler)}
}

func (s *stubTransport) Connect() {
	go s.fire(sio.EventConnect)
}

func (s *stubTransport) Disconnect() {}

func (s *stubTransport) EmitWithAck(_ string, _ json.RawMessage, _ time.Duration, ack sio.AckFunc) {
	resp := json.RawMessage(`{"statusCode":200,"headers":{},"body":{"success":true,"emotes":[]}}`)
	go ack([]json.RawMessage{resp})
}

func (s *stubTransport) On(event string, h sio.Handler) {
	s.mu.Lock()
	s.handlers[event] = append(s.handlers[event], h)
	s.mu.Unlock()
}

func (s *stubTransport) fire(event string, args ...json.RawMessage) {
	s.mu.Lock()
	hs := append([]sio.Handler(nil), s.handlers[event]...)
	s.mu.Unlock()
	for _, h := range hs {
		h(args)
	}
}

func (s *stubTransport) chatter(channel, id, user, text string) {
	payload, _ := json.Marshal(map[string]string{
		"channel":  "/live/" + channel,
		"id":       id,
		"username": user,
		"message":  text,
		"userType": "Normal",
	})
	s.fire("radioChatter", payload)
}

type testEnv struct {
	ts        *httptest.Server
	hub       *core.Hub
	manager   *realtime.Manager
	transport *stubTransport
	store     store.Store
	emotes    *emote.Cache
}

func newTestEnv(t *testing.T, rateLimit int) *testEnv {
	t.Helper()

	st, err := sqlite.NewWithSetup(":memory:", sqlite.Migrate)
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	disabledLogger := zerolog.Nop()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := core.NewHub(nil, &disabledLogger)
	go hub.Run(ctx)

	cache := emote.NewCache()
	transport := newStubTransport()
	manager := realtime.NewManager(transport, realtime.Options{
		RPCTimeout:    time.Second,
		Emotes:        cache,
		OnStateChange: hub.OnStateChange,
		Logger:        &disabledLogger,
	})
	go manager.Run(ctx)

	cfg := config.Config{
		Addr:              ":0",
		ReadHeaderTimeout: time.Second,
		WSRateLimit:       rateLimit,
	}
	server := NewServer(Deps{Hub: hub, Manager: manager, ChatLog: st, Emotes: cache}, &cfg, &disabledLogger)

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testEnv{ts: ts, hub: hub, manager: manager, transport: transport, store: st, emotes: cache}
}

func (e *testEnv) do(t *testing.T, method, path string) (int, []byte) {
	t.Helper()

	req, err := http.NewRequest(method, e.ts.URL+path, nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := e.ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, body
}

func (e *testEnv) channel(t *testing.T, id string) ChannelResponse {
	t.Helper()

	status, body := e.do(t, http.MethodGet, "/api/channels/"+id)
	if status != http.StatusOK {
		t.Fatalf("get channel %s: status %d: %s", id, status, body)
	}
	var resp ChannelResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("decode channel: %v", err)
	}
	return resp
}

// joined connects a channel and waits until its join completed.
func (e *testEnv) joined(t *testing.T, id string) {
	t.Helper()

	if status, body := e.do(t, http.MethodPost, "/api/channels/"+id+"/connect"); status != http.StatusAccepted {
		t.Fatalf("connect %s: status %d: %s", id, status, body)
	}
	waitFor(t, id+" joined", func() bool {
		return e.channel(t, id).State == realtime.StateJoined.String()
	})
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

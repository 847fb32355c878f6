package sio

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
)

// fakeServer is a scripted Socket.IO endpoint. Events named get or post are
// acked with an echo of the request url, "kick" makes the server disconnect
// the namespace and "push" triggers a radioChatter event.
type fakeServer struct {
	*httptest.Server
	frames       chan string
	queries      chan string
	pingInterval int
	pingTimeout  int
	serverPing   bool
}

func startFakeServer(t *testing.T, configure ...func(*fakeServer)) *fakeServer {
	t.Helper()

	s := &fakeServer{
		frames:       make(chan string, 64),
		queries:      make(chan string, 4),
		pingInterval: 25000,
		pingTimeout:  20000,
	}
	for _, fn := range configure {
		fn(s)
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

func (s *fakeServer) handle(w http.ResponseWriter, r *http.Request) {
	select {
	case s.queries <- r.URL.Path + "?" + r.URL.RawQuery:
	default:
	}
	eio := r.URL.Query().Get("EIO")

	c, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer c.CloseNow()

	ctx := r.Context()
	write := func(frame string) {
		_ = c.Write(ctx, websocket.MessageText, []byte(frame))
	}
	write(fmt.Sprintf(`0{"sid":"engine","upgrades":[],"pingInterval":%d,"pingTimeout":%d}`, s.pingInterval, s.pingTimeout))
	if eio == "3" {
		write("40")
	}

	for {
		_, data, err := c.Read(ctx)
		if err != nil {
			return
		}
		frame := string(data)
		select {
		case s.frames <- frame:
		default:
		}

		switch {
		case frame == "2":
			write("3")
		case frame == "40":
			write(`40{"sid":"socket"}`)
			if s.serverPing {
				write("2")
			}
		case strings.HasPrefix(frame, "42"):
			p, err := decodePacket(frame[1:])
			if err != nil {
				continue
			}
			name, args, err := splitEvent(p.Data)
			if err != nil {
				continue
			}
			switch name {
			case "get", "post":
				var env struct {
					URL string `json:"url"`
				}
				if len(args) > 0 {
					_ = json.Unmarshal(args[0], &env)
				}
				if env.URL == "/silent" {
					continue
				}
				write(fmt.Sprintf(`43%d[{"statusCode":200,"headers":{},"body":{"url":%q,"method":%q}}]`, p.ID, env.URL, name))
			case "kick":
				write("41")
			case "push":
				write(`42["radioChatter",{"channel":"/live/x","message":"hi"}]`)
			}
		}
	}
}

func (s *fakeServer) mustFrame(t *testing.T, want string) {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case f := <-s.frames:
			if f == want {
				return
			}
		case <-deadline:
			t.Fatalf("frame %q never reached the server", want)
		}
	}
}

func dial(t *testing.T, s *fakeServer, version int) (*Conn, chan string) {
	t.Helper()

	c := New(Options{URL: s.URL, EngineIOVersion: version})
	events := make(chan string, 16)
	for _, name := range []string{EventConnect, EventDisconnect, EventError} {
		c.On(name, func(args []json.RawMessage) {
			detail := ""
			if len(args) > 0 {
				var str string
				if json.Unmarshal(args[0], &str) == nil {
					detail = str
				}
			}
			events <- name + ":" + detail
		})
	}
	c.Connect()
	t.Cleanup(c.Disconnect)
	return c, events
}

func mustEvent(t *testing.T, events <-chan string, prefix string) string {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-events:
			if strings.HasPrefix(ev, prefix) {
				return ev
			}
		case <-deadline:
			t.Fatalf("expected event %q not received", prefix)
			return ""
		}
	}
}

func emit(t *testing.T, c *Conn, event, url string, timeout time.Duration) []json.RawMessage {
	t.Helper()

	payload, _ := json.Marshal(map[string]any{"url": url, "method": event, "headers": map[string]string{}, "data": nil})
	got := make(chan []json.RawMessage, 1)
	c.EmitWithAck(event, payload, timeout, func(args []json.RawMessage) { got <- args })
	select {
	case args := <-got:
		return args
	case <-time.After(2 * time.Second):
		t.Fatalf("ack callback for %s never ran", url)
		return nil
	}
}

func TestConnAckRoundTrip(t *testing.T) {
	for _, version := range []int{3, 4} {
		t.Run(fmt.Sprintf("EIO%d", version), func(t *testing.T) {
			s := startFakeServer(t)
			c, events := dial(t, s, version)
			mustEvent(t, events, EventConnect)
			if !c.Connected() {
				t.Fatal("expected connected after connect event")
			}

			args := emit(t, c, "post", "/RadioMessage/leave", time.Second)
			if len(args) != 1 {
				t.Fatalf("unexpected ack args %v", args)
			}
			var resp struct {
				StatusCode int `json:"statusCode"`
				Body       struct {
					URL    string `json:"url"`
					Method string `json:"method"`
				} `json:"body"`
			}
			if err := json.Unmarshal(args[0], &resp); err != nil {
				t.Fatalf("decode ack: %v", err)
			}
			if resp.StatusCode != 200 || resp.Body.URL != "/RadioMessage/leave" || resp.Body.Method != "post" {
				t.Fatalf("unexpected ack %+v", resp)
			}

			query := <-s.queries
			if !strings.HasPrefix(query, "/socket.io/?") ||
				!strings.Contains(query, fmt.Sprintf("EIO=%d", version)) ||
				!strings.Contains(query, "transport=websocket") {
				t.Fatalf("unexpected handshake url %s", query)
			}
		})
	}
}

func TestConnPushEvent(t *testing.T) {
	s := startFakeServer(t)
	c := New(Options{URL: s.URL, EngineIOVersion: 3})
	pushed := make(chan json.RawMessage, 1)
	connected := make(chan struct{}, 1)
	c.On(EventConnect, func([]json.RawMessage) { connected <- struct{}{} })
	c.On("radioChatter", func(args []json.RawMessage) { pushed <- args[0] })
	c.Connect()
	defer c.Disconnect()

	select {
	case <-connected:
	case <-time.After(2 * time.Second):
		t.Fatal("never connected")
	}
	if err := c.Emit("push", nil); err != nil {
		t.Fatalf("emit: %v", err)
	}

	select {
	case raw := <-pushed:
		var ev struct {
			Channel string `json:"channel"`
		}
		if err := json.Unmarshal(raw, &ev); err != nil || ev.Channel != "/live/x" {
			t.Fatalf("unexpected push %s", raw)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("push event not delivered")
	}
}

func TestConnAckTimeout(t *testing.T) {
	s := startFakeServer(t)
	c, events := dial(t, s, 3)
	mustEvent(t, events, EventConnect)

	args := emit(t, c, "get", "/silent", 50*time.Millisecond)
	var marker string
	if len(args) != 1 || json.Unmarshal(args[0], &marker) != nil || marker != NoAck {
		t.Fatalf("expected NO ACK, got %v", args)
	}

	// The connection survives a missed ack.
	args = emit(t, c, "get", "/after", time.Second)
	if len(args) != 1 || !strings.Contains(string(args[0]), "/after") {
		t.Fatalf("unexpected ack after timeout %v", args)
	}
}

func TestConnEmitWhileDisconnected(t *testing.T) {
	c := New(Options{URL: "ws://127.0.0.1:1"})
	args := emit(t, c, "get", "/x", time.Second)
	var marker string
	if len(args) != 1 || json.Unmarshal(args[0], &marker) != nil || marker != NoAck {
		t.Fatalf("expected NO ACK, got %v", args)
	}
	if err := c.Emit("x", nil); err == nil {
		t.Fatal("expected error emitting while disconnected")
	}
}

func TestConnServerDisconnect(t *testing.T) {
	s := startFakeServer(t)
	c, events := dial(t, s, 4)
	mustEvent(t, events, EventConnect)

	if err := c.Emit("kick", nil); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if ev := mustEvent(t, events, EventDisconnect); ev != EventDisconnect+":"+ReasonServerDisconnect {
		t.Fatalf("unexpected disconnect %q", ev)
	}
	if c.Connected() {
		t.Fatal("still connected after server disconnect")
	}

	// Connect works again after a loss.
	c.Connect()
	mustEvent(t, events, EventConnect)
}

func TestConnClientDisconnectIsQuiet(t *testing.T) {
	s := startFakeServer(t)
	c, events := dial(t, s, 3)
	mustEvent(t, events, EventConnect)

	c.Disconnect()
	s.mustFrame(t, "41")

	select {
	case ev := <-events:
		t.Fatalf("client disconnect fired %q", ev)
	case <-time.After(100 * time.Millisecond):
	}
	if c.Connected() {
		t.Fatal("still connected after disconnect")
	}
}

func TestConnDialFailure(t *testing.T) {
	s := startFakeServer(t)
	url := s.URL
	s.Close()

	c := New(Options{URL: url})
	events := make(chan string, 4)
	c.On(EventError, func([]json.RawMessage) { events <- EventError })
	c.On(EventDisconnect, func(args []json.RawMessage) {
		var reason string
		_ = json.Unmarshal(args[0], &reason)
		events <- reason
	})
	c.Connect()

	if got := mustEvent(t, events, EventError); got != EventError {
		t.Fatalf("unexpected event %q", got)
	}
	if got := mustEvent(t, events, ReasonTransportError); got != ReasonTransportError {
		t.Fatalf("unexpected disconnect reason %q", got)
	}
}

func TestConnHeartbeat(t *testing.T) {
	t.Run("EIO3 client pings", func(t *testing.T) {
		s := startFakeServer(t, func(s *fakeServer) {
			s.pingInterval = 20
			s.pingTimeout = 1000
		})
		_, events := dial(t, s, 3)
		mustEvent(t, events, EventConnect)
		s.mustFrame(t, "2")
	})

	t.Run("EIO4 client pongs", func(t *testing.T) {
		s := startFakeServer(t, func(s *fakeServer) { s.serverPing = true })
		_, events := dial(t, s, 4)
		mustEvent(t, events, EventConnect)
		s.mustFrame(t, "3")
	})

	t.Run("silence times out", func(t *testing.T) {
		s := startFakeServer(t, func(s *fakeServer) {
			s.pingInterval = 20
			s.pingTimeout = 20
		})
		_, events := dial(t, s, 4)
		mustEvent(t, events, EventConnect)
		if ev := mustEvent(t, events, EventDisconnect); ev != EventDisconnect+":"+ReasonPingTimeout {
			t.Fatalf("unexpected disconnect %q", ev)
		}
	})
}

func TestEndpoint(t *testing.T) {
	c := New(Options{URL: "https://chat.example.com", EngineIOVersion: 3})
	got, err := c.endpoint()
	if err != nil {
		t.Fatalf("endpoint: %v", err)
	}
	if got != "wss://chat.example.com/socket.io/?EIO=3&transport=websocket" {
		t.Fatalf("unexpected endpoint %s", got)
	}
	if _, err := New(Options{URL: "ftp://x"}).endpoint(); err == nil {
		t.Fatal("expected error for unsupported scheme")
	}
}

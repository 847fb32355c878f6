package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"testing"

	"github.com/vovakirdan/floatchat/internal/emote"
	"github.com/vovakirdan/floatchat/internal/realtime"
	"github.com/vovakirdan/floatchat/internal/store"
)

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t, 0)

	status, body := env.do(t, http.MethodGet, "/health")
	if status != http.StatusOK || string(body) != "ok" {
		t.Fatalf("unexpected health response: %d %q", status, body)
	}
}

func TestChannelLifecycle(t *testing.T) {
	env := newTestEnv(t, 0)

	if status, _ := env.do(t, http.MethodGet, "/api/channels/abc"); status != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown channel, got %d", status)
	}
	if status, _ := env.do(t, http.MethodPost, "/api/channels/abc/disconnect"); status != http.StatusNotFound {
		t.Fatalf("expected 404 disconnecting unknown channel, got %d", status)
	}

	env.joined(t, "abc")

	status, body := env.do(t, http.MethodGet, "/api/channels")
	if status != http.StatusOK {
		t.Fatalf("list channels: %d", status)
	}
	var list ChannelListResponse
	if err := json.Unmarshal(body, &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if list.Transport != realtime.StateTransportConnected.String() || len(list.Channels) != 1 || list.Channels[0].ID != "abc" {
		t.Fatalf("unexpected channel list %+v", list)
	}

	env.transport.chatter("abc", "m1", "amy", "hello :wave:")
	env.transport.chatter("other", "m2", "bob", "not ours")
	waitFor(t, "history", func() bool { return len(env.channel(t, "abc").History) == 1 })

	line := env.channel(t, "abc").History[0]
	if line.User != "amy" || line.Text != "hello :wave:" || line.ID != "m1" || len(line.Segments) == 0 {
		t.Fatalf("unexpected history line %+v", line)
	}
	if line.Segments[0].Kind != "username" {
		t.Fatalf("expected username segment first, got %+v", line.Segments[0])
	}

	if status, _ := env.do(t, http.MethodPost, "/api/channels/abc/disconnect"); status != http.StatusAccepted {
		t.Fatalf("disconnect: %d", status)
	}
	waitFor(t, "disconnected", func() bool {
		return env.channel(t, "abc").State == realtime.StateDisconnectedBySelf.String()
	})

	// A disconnected channel can be joined again.
	env.joined(t, "abc")
}

func TestChannelIDValidation(t *testing.T) {
	env := newTestEnv(t, 0)

	for _, path := range []string{
		"/api/channels/a.b",
		"/api/channels/" + string(bytes.Repeat([]byte("x"), 65)),
	} {
		if status, _ := env.do(t, http.MethodGet, path); status != http.StatusBadRequest {
			t.Errorf("GET %s: expected 400, got %d", path, status)
		}
	}
	if status, _ := env.do(t, http.MethodPost, "/api/channels/a.b/connect"); status != http.StatusBadRequest {
		t.Fatalf("expected 400 connecting invalid id, got %d", status)
	}
	if got := env.manager.Channels(); len(got) != 0 {
		t.Fatalf("invalid id was registered: %v", got)
	}
}

func TestChannelLog(t *testing.T) {
	env := newTestEnv(t, 0)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if err := env.store.AppendChatter(ctx, &store.Chatter{
			Channel:   "abc",
			MessageID: fmt.Sprintf("m%d", i),
			Username:  "amy",
			UserType:  "Moderator",
			Text:      fmt.Sprintf("line %d", i),
		}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	tests := []struct {
		name   string
		query  string
		status int
		ids    []string
	}{
		{"default limit", "", http.StatusOK, []string{"m0", "m1", "m2", "m3"}},
		{"newest two", "?limit=2", http.StatusOK, []string{"m2", "m3"}},
		{"not a number", "?limit=abc", http.StatusBadRequest, nil},
		{"zero", "?limit=0", http.StatusBadRequest, nil},
		{"too large", "?limit=501", http.StatusBadRequest, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := env.do(t, http.MethodGet, "/api/channels/abc/log"+tt.query)
			if status != tt.status {
				t.Fatalf("expected status %d, got %d: %s", tt.status, status, body)
			}
			if tt.status != http.StatusOK {
				return
			}
			var lines []LogLineResponse
			if err := json.Unmarshal(body, &lines); err != nil {
				t.Fatalf("decode log: %v", err)
			}
			if len(lines) != len(tt.ids) {
				t.Fatalf("expected %d lines, got %d", len(tt.ids), len(lines))
			}
			for i, l := range lines {
				if l.MessageID != tt.ids[i] || l.UserType != "Moderator" {
					t.Fatalf("line %d: unexpected %+v", i, l)
				}
			}
		})
	}
}

func TestEmoteEndpoints(t *testing.T) {
	env := newTestEnv(t, 0)

	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))); err != nil {
		t.Fatalf("encode: %v", err)
	}
	env.emotes.Put(emote.Emote{Code: "wave", Data: buf.Bytes()})
	env.emotes.Put(emote.Emote{Code: "empty"})

	resp, err := env.ts.Client().Get(env.ts.URL + "/api/emotes/wave")
	if err != nil {
		t.Fatalf("get emote: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "image/png" {
		t.Fatalf("unexpected emote response %d %s", resp.StatusCode, resp.Header.Get("Content-Type"))
	}

	for _, code := range []string{"missing", "empty"} {
		if status, _ := env.do(t, http.MethodGet, "/api/emotes/"+code); status != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", code, status)
		}
	}

	_, body := env.do(t, http.MethodGet, "/api/emotes")
	var codes []string
	if err := json.Unmarshal(body, &codes); err != nil {
		t.Fatalf("decode codes: %v", err)
	}
	if len(codes) != 2 || codes[0] != "empty" || codes[1] != "wave" {
		t.Fatalf("unexpected codes %v", codes)
	}
}

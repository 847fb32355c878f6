// Package sio is a minimal Socket.IO client speaking Engine.IO v3 or v4 over a
// single WebSocket. It supports events, acknowledgements with timeouts and the
// default namespace, which is all the Floatplane Sails endpoints need.
package sio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	stdhttp "net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"
)

// Reserved events fired by the connection itself.
const (
	EventConnect    = "connect"
	EventDisconnect = "disconnect"
	EventError      = "error"
)

// NoAck is the only ack argument delivered when an acknowledgement never arrived.
const NoAck = "NO ACK"

// Disconnect reasons passed as the argument of EventDisconnect.
const (
	ReasonServerDisconnect = "io server disconnect"
	ReasonTransportClose   = "transport close"
	ReasonTransportError   = "transport error"
	ReasonPingTimeout      = "ping timeout"
)

const (
	defaultPath      = "/socket.io/"
	readLimit        = 8 << 20
	writeTimeout     = 10 * time.Second
	handshakeTimeout = 20 * time.Second
)

var noAckJSON, _ = json.Marshal(NoAck)

// Handler receives the arguments of an event.
type Handler func(args []json.RawMessage)

// AckFunc receives the arguments of an acknowledgement, or a single NoAck string.
type AckFunc func(args []json.RawMessage)

// Options configure a Conn.
type Options struct {
	URL             string // ws(s):// or http(s):// base URL
	Path            string // defaults to /socket.io/
	Query           url.Values
	Header          stdhttp.Header
	EngineIOVersion int // 3 or 4, defaults to 4
	HTTPClient      *stdhttp.Client
	Logger          *zerolog.Logger
}

// Conn is a reconnectable Socket.IO client connection. Connect and Disconnect
// may be called repeatedly; handlers registered with On survive reconnects.
type Conn struct {
	opts Options
	log  *zerolog.Logger

	mu        sync.Mutex
	handlers  map[string][]Handler
	ws        *websocket.Conn
	cancel    context.CancelFunc
	connected bool
	gen       uint64
	nextAck   int
	pending   map[int]*pendingAck
}

type pendingAck struct {
	fn    AckFunc
	timer *time.Timer
}

// New builds a connection; nothing is dialed until Connect.
func New(opts Options) *Conn {
	if opts.Path == "" {
		opts.Path = defaultPath
	}
	if opts.EngineIOVersion != 3 {
		opts.EngineIOVersion = 4
	}
	logger := opts.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Conn{
		opts:     opts,
		log:      logger,
		handlers: make(map[string][]Handler),
		pending:  make(map[int]*pendingAck),
	}
}

// On registers a handler for an event. Handlers run on the reader goroutine in
// the order frames arrive.
func (c *Conn) On(event string, h Handler) {
	c.mu.Lock()
	c.handlers[event] = append(c.handlers[event], h)
	c.mu.Unlock()
}

// Connected reports whether the default namespace is connected.
func (c *Conn) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Connect dials in the background. EventConnect fires once the namespace is
// joined; a failed dial fires EventError followed by EventDisconnect.
func (c *Conn) Connect() {
	c.mu.Lock()
	if c.cancel != nil {
		c.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	go c.run(ctx, gen)
}

// Disconnect closes the connection. It does not fire EventDisconnect; that
// event is reserved for losses the caller did not ask for.
func (c *Conn) Disconnect() {
	c.mu.Lock()
	cancel, ws, connected := c.cancel, c.ws, c.connected
	c.cancel = nil
	c.ws = nil
	c.connected = false
	c.gen++
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	if ws != nil {
		if connected {
			if err := c.write(ws, encodePacket(packet{Type: packetDisconnect, ID: -1})); err != nil {
				c.log.Debug().Err(err).Msg("sio: send disconnect packet")
			}
		}
		cancel()
		_ = ws.CloseNow()
		return
	}
	cancel()
}

// Emit sends an event without requesting an acknowledgement.
func (c *Conn) Emit(event string, payload json.RawMessage) error {
	c.mu.Lock()
	ws, connected := c.ws, c.connected
	c.mu.Unlock()
	if !connected || ws == nil {
		return errors.New("sio: not connected")
	}
	p, err := eventPacket(event, payload, -1)
	if err != nil {
		return err
	}
	return c.write(ws, encodePacket(p))
}

// EmitWithAck sends an event and calls ack exactly once: with the server's
// acknowledgement arguments, or with [NoAck] after timeout or when the event
// could not be sent.
func (c *Conn) EmitWithAck(event string, payload json.RawMessage, timeout time.Duration, ack AckFunc) {
	c.mu.Lock()
	ws, connected := c.ws, c.connected
	if !connected || ws == nil {
		c.mu.Unlock()
		c.log.Debug().Str("event", event).Msg("sio: emit while not connected")
		go ack(noAckArgs())
		return
	}
	id := c.nextAck
	c.nextAck++
	pa := &pendingAck{fn: ack}
	c.pending[id] = pa
	pa.timer = time.AfterFunc(timeout, func() {
		if p := c.takePending(id); p != nil {
			c.log.Debug().Str("event", event).Int("ack_id", id).Msg("sio: ack timed out")
			p.fn(noAckArgs())
		}
	})
	c.mu.Unlock()

	p, err := eventPacket(event, payload, id)
	if err == nil {
		err = c.write(ws, encodePacket(p))
	}
	if err != nil {
		c.log.Warn().Err(err).Str("event", event).Msg("sio: emit failed")
		if p := c.takePending(id); p != nil {
			p.timer.Stop()
			go p.fn(noAckArgs())
		}
	}
}

func (c *Conn) takePending(id int) *pendingAck {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.pending[id]
	if !ok {
		return nil
	}
	delete(c.pending, id)
	return p
}

func (c *Conn) current(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen == gen
}

func (c *Conn) run(ctx context.Context, gen uint64) {
	reason, err := c.serve(ctx, gen)

	c.mu.Lock()
	stale := c.gen != gen
	if !stale {
		c.cancel = nil
		c.ws = nil
		c.connected = false
		c.gen++
	}
	c.mu.Unlock()
	if stale {
		return
	}

	c.log.Debug().Err(err).Str("reason", reason).Msg("sio: connection ended")
	if err != nil {
		c.dispatch(EventError, quoted(err.Error()))
	}
	c.dispatch(EventDisconnect, quoted(reason))
}

func (c *Conn) serve(ctx context.Context, gen uint64) (string, error) {
	endpoint, err := c.endpoint()
	if err != nil {
		return ReasonTransportError, err
	}

	dialCtx, cancelDial := context.WithTimeout(ctx, handshakeTimeout)
	ws, _, err := websocket.Dial(dialCtx, endpoint, &websocket.DialOptions{
		HTTPClient: c.opts.HTTPClient,
		HTTPHeader: c.opts.Header,
	})
	cancelDial()
	if err != nil {
		return ReasonTransportError, fmt.Errorf("dial: %w", err)
	}
	ws.SetReadLimit(readLimit)

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		_ = ws.CloseNow()
		return "", context.Canceled
	}
	c.ws = ws
	c.mu.Unlock()
	defer ws.CloseNow()

	hs, err := c.readHandshake(ctx, ws)
	if err != nil {
		return ReasonTransportError, err
	}
	c.log.Debug().Str("sid", hs.SID).Int("ping_interval", hs.PingInterval).Msg("sio: engine open")

	if c.opts.EngineIOVersion == 4 {
		if err := c.write(ws, encodePacket(packet{Type: packetConnect, ID: -1})); err != nil {
			return ReasonTransportError, fmt.Errorf("send connect: %w", err)
		}
	}

	pingInterval := time.Duration(hs.PingInterval) * time.Millisecond
	silence := pingInterval + time.Duration(hs.PingTimeout)*time.Millisecond
	if c.opts.EngineIOVersion == 3 && pingInterval > 0 {
		go c.pinger(ctx, ws, pingInterval)
	}

	for {
		readCtx, cancelRead := ctx, context.CancelFunc(func() {})
		if silence > 0 {
			readCtx, cancelRead = context.WithTimeout(ctx, silence)
		}
		_, data, err := ws.Read(readCtx)
		silent := readCtx.Err() == context.DeadlineExceeded
		cancelRead()
		if err != nil {
			switch {
			case ctx.Err() != nil:
				return "", ctx.Err()
			case silent:
				return ReasonPingTimeout, nil
			case websocket.CloseStatus(err) == websocket.StatusNormalClosure,
				websocket.CloseStatus(err) == websocket.StatusGoingAway:
				return ReasonTransportClose, nil
			default:
				return ReasonTransportClose, err
			}
		}

		frame := string(data)
		if frame == "" {
			continue
		}
		switch frame[0] {
		case enginePing:
			if err := c.write(ws, string(enginePong)+frame[1:]); err != nil {
				return ReasonTransportClose, err
			}
		case enginePong, engineNoop:
		case engineClose:
			return ReasonServerDisconnect, nil
		case engineMessage:
			if done, reason := c.handleMessage(gen, frame[1:]); done {
				return reason, nil
			}
		default:
			c.log.Debug().Str("frame", truncate(frame, 64)).Msg("sio: ignoring engine packet")
		}
	}
}

func (c *Conn) readHandshake(ctx context.Context, ws *websocket.Conn) (handshake, error) {
	readCtx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	defer cancel()
	_, data, err := ws.Read(readCtx)
	if err != nil {
		return handshake{}, fmt.Errorf("read open packet: %w", err)
	}
	if len(data) == 0 || data[0] != engineOpen {
		return handshake{}, fmt.Errorf("unexpected open packet %q", truncate(string(data), 64))
	}
	var hs handshake
	if err := json.Unmarshal(data[1:], &hs); err != nil {
		return handshake{}, fmt.Errorf("decode open packet: %w", err)
	}
	return hs, nil
}

func (c *Conn) pinger(ctx context.Context, ws *websocket.Conn, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.write(ws, string(enginePing)); err != nil {
				c.log.Debug().Err(err).Msg("sio: ping failed")
				return
			}
		}
	}
}

// handleMessage processes one Socket.IO packet; done reports that the session ended.
func (c *Conn) handleMessage(gen uint64, raw string) (bool, string) {
	p, err := decodePacket(raw)
	if err != nil {
		c.log.Warn().Err(err).Str("frame", truncate(raw, 64)).Msg("sio: bad packet")
		return false, ""
	}
	if p.Namespace != "" && p.Namespace != "/" {
		return false, ""
	}
	if !c.current(gen) {
		return true, ""
	}

	switch p.Type {
	case packetConnect:
		c.mu.Lock()
		c.connected = true
		c.mu.Unlock()
		args := []json.RawMessage{}
		if len(p.Data) > 0 {
			args = append(args, p.Data)
		}
		c.dispatch(EventConnect, args)
	case packetDisconnect:
		return true, ReasonServerDisconnect
	case packetEvent:
		name, args, err := splitEvent(p.Data)
		if err != nil {
			c.log.Warn().Err(err).Msg("sio: bad event packet")
			return false, ""
		}
		if p.ID >= 0 {
			c.log.Debug().Str("event", name).Int("ack_id", p.ID).Msg("sio: server requested ack, not supported")
		}
		c.dispatch(name, args)
	case packetAck:
		pa := c.takePending(p.ID)
		if pa == nil {
			c.log.Debug().Int("ack_id", p.ID).Msg("sio: ack for unknown or expired id")
			return false, ""
		}
		pa.timer.Stop()
		args, err := ackArgs(p.Data)
		if err != nil {
			c.log.Warn().Err(err).Int("ack_id", p.ID).Msg("sio: bad ack packet")
		}
		pa.fn(args)
	case packetError:
		c.dispatch(EventError, []json.RawMessage{p.Data})
		c.mu.Lock()
		connected := c.connected
		c.mu.Unlock()
		if !connected {
			return true, ReasonTransportError
		}
	default:
		c.log.Warn().Str("type", string(p.Type)).Msg("sio: binary packets are not supported")
	}
	return false, ""
}

func (c *Conn) dispatch(event string, args []json.RawMessage) {
	c.mu.Lock()
	hs := append([]Handler(nil), c.handlers[event]...)
	c.mu.Unlock()
	for _, h := range hs {
		h(args)
	}
}

func (c *Conn) write(ws *websocket.Conn, frame string) error {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	return ws.Write(ctx, websocket.MessageText, []byte(frame))
}

func (c *Conn) endpoint() (string, error) {
	u, err := url.Parse(c.opts.URL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = c.opts.Path

	q := u.Query()
	for k, vs := range c.opts.Query {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	q.Set("EIO", strconv.Itoa(c.opts.EngineIOVersion))
	q.Set("transport", "websocket")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func noAckArgs() []json.RawMessage {
	return []json.RawMessage{noAckJSON}
}

func quoted(s string) []json.RawMessage {
	b, _ := json.Marshal(s)
	return []json.RawMessage{b}
}

func truncate(s string, size int) string {
	if len(s) < size+3 {
		return s
	}
	return strings.TrimSpace(s[:size]) + "..."
}

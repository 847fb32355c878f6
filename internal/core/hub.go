package core

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/floatchat/internal/store"
)

const (
	// DefaultReplay is how many recent lines a new subscriber receives.
	DefaultReplay = 50

	persistTimeout = 5 * time.Second
)

type clientCommand struct {
	client *Client
	cmd    *Command
}

// Hub fans channel events out to local clients. All room state is owned by
// the Run goroutine.
type Hub struct {
	register   chan *Client
	unregister chan *Client
	commands   chan clientCommand
	inbox      chan *Event
	persist    chan store.Chatter
	done       chan struct{}

	rooms   map[string]*Room
	clients map[*Client]struct{}

	chatLog store.ChatterStore
	log     *zerolog.Logger
	replay  int
}

// NewHub creates a hub. chatLog may be nil to disable persistence.
func NewHub(chatLog store.ChatterStore, logger *zerolog.Logger) *Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		commands:   make(chan clientCommand, 64),
		inbox:      make(chan *Event, 256),
		persist:    make(chan store.Chatter, 256),
		done:       make(chan struct{}),
		rooms:      make(map[string]*Room),
		clients:    make(map[*Client]struct{}),
		chatLog:    chatLog,
		log:        logger,
		replay:     DefaultReplay,
	}
}

// Run processes registrations, client commands and channel events until ctx
// is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	if h.chatLog != nil {
		go h.writeLog(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.log.Debug().Str("client", c.ID).Msg("client registered")
		case c := <-h.unregister:
			h.removeClient(c)
		case cc := <-h.commands:
			h.handleCommand(cc.client, cc.cmd)
		case ev := <-h.inbox:
			h.handleEvent(ev)
		}
	}
}

// RegisterClient adds a client and starts forwarding its commands.
func (h *Hub) RegisterClient(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		return
	}
	go h.pump(c)
}

// UnregisterClient removes a client from every room and closes its Events
// channel. The caller must not send further commands.
func (h *Hub) UnregisterClient(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
	close(c.Commands)
}

func (h *Hub) pump(c *Client) {
	for {
		select {
		case cmd, ok := <-c.Commands:
			if !ok {
				return
			}
			select {
			case h.commands <- clientCommand{client: c, cmd: cmd}:
			case <-h.done:
				return
			}
		case <-h.done:
			return
		}
	}
}

func (h *Hub) post(ev *Event) {
	select {
	case h.inbox <- ev:
	case <-h.done:
	}
}

func (h *Hub) room(name string) *Room {
	r, ok := h.rooms[name]
	if !ok {
		r = NewRoom(name, h.replay)
		h.rooms[name] = r
	}
	return r
}

func (h *Hub) removeClient(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	for name := range c.Rooms {
		if r, ok := h.rooms[name]; ok {
			r.RemoveClient(c)
		}
	}
	delete(h.clients, c)
	close(c.Events)
	h.log.Debug().Str("client", c.ID).Msg("client unregistered")
}

func (h *Hub) handleCommand(c *Client, cmd *Command) {
	// Commands still queued when the client unregistered are dropped: its
	// Events channel is closed.
	if _, ok := h.clients[c]; !ok {
		h.log.Debug().Str("client", c.ID).Msg("dropping command from unregistered client")
		return
	}
	if cmd == nil || cmd.Room == "" {
		h.send(c, &Event{Kind: EventError, Error: coreError(ErrCodeBadRequest, "room is required")})
		return
	}
	switch cmd.Kind {
	case CommandSubscribe:
		r := h.room(cmd.Room)
		if !r.AddClient(c) {
			h.send(c, &Event{Kind: EventError, Room: cmd.Room, Error: coreError(ErrCodeAlreadySubscribed, ErrAlreadySubscribed.Error())})
			return
		}
		c.Rooms[cmd.Room] = struct{}{}
		if r.State != "" {
			h.send(c, &Event{Kind: EventStateChanged, Room: cmd.Room, State: r.State})
		}
		h.send(c, &Event{Kind: EventHistory, Room: cmd.Room, History: r.Recent()})
	case CommandUnsubscribe:
		r, ok := h.rooms[cmd.Room]
		if !ok || !r.RemoveClient(c) {
			h.send(c, &Event{Kind: EventError, Room: cmd.Room, Error: coreError(ErrCodeNotSubscribed, ErrNotSubscribed.Error())})
			return
		}
		delete(c.Rooms, cmd.Room)
	default:
		h.send(c, &Event{Kind: EventError, Room: cmd.Room, Error: coreError(ErrCodeBadRequest, "unknown command")})
	}
}

func (h *Hub) handleEvent(ev *Event) {
	r := h.room(ev.Room)
	switch ev.Kind {
	case EventChatter:
		r.Remember(*ev.Chatter)
		h.enqueue(*ev.Chatter)
	case EventStateChanged:
		r.State = ev.State
	}
	r.Broadcast(ev)
}

func (h *Hub) send(c *Client, ev *Event) {
	select {
	case c.Events <- ev:
	default:
		h.log.Debug().Str("client", c.ID).Stringer("event", ev.Kind).Msg("dropping event for slow client")
	}
}

func (h *Hub) enqueue(c Chatter) {
	if h.chatLog == nil {
		return
	}
	ev := c.Rendered.Event
	row := store.Chatter{
		Channel:   c.Channel,
		MessageID: ev.ID,
		Username:  ev.Username,
		UserType:  string(ev.UserType),
		Text:      ev.Message,
		CreatedAt: c.At,
	}
	select {
	case h.persist <- row:
	default:
		h.log.Warn().Str("channel", c.Channel).Msg("chat log queue full, dropping line")
	}
}

func (h *Hub) writeLog(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case row := <-h.persist:
			wctx, cancel := context.WithTimeout(ctx, persistTimeout)
			if err := h.chatLog.AppendChatter(wctx, &row); err != nil {
				h.log.Warn().Err(err).Str("channel", row.Channel).Msg("failed to persist chatter")
			}
			cancel()
		}
	}
}

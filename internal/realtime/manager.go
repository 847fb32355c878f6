package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/floatchat/internal/chatter"
	"github.com/vovakirdan/floatchat/internal/proto"
	"github.com/vovakirdan/floatchat/internal/sails"
	"github.com/vovakirdan/floatchat/internal/sio"
)

// Manager shares one chat transport between any number of channel
// subscriptions. The transport is never redialed on its own: after an
// unexpected loss every subscription stays disconnected until a caller
// connects it again.
type Manager struct {
	transport Transport
	opts      Options
	log       *zerolog.Logger
	loop      *loop
	state     atomic.Int32
	ctx       atomic.Pointer[context.Context]

	mu      sync.Mutex
	clients map[string]*ChannelClient
}

// NewManager builds a manager on t. AutoReconnect in opts is ignored.
func NewManager(t Transport, opts Options) *Manager {
	opts = opts.withDefaults()
	m := &Manager{
		transport: t,
		opts:      opts,
		log:       opts.Logger,
		loop:      newLoop(),
		clients:   make(map[string]*ChannelClient),
	}
	bg := context.Background()
	m.ctx.Store(&bg)

	t.On(sio.EventConnect, func([]json.RawMessage) {
		m.loop.post(m.transportConnected)
	})
	t.On(sio.EventDisconnect, func(args []json.RawMessage) {
		reason := firstString(args)
		m.loop.post(func() { m.transportLost(reason) })
	})
	t.On(sio.EventError, func(args []json.RawMessage) {
		msg := firstString(args)
		m.loop.post(func() { m.transportError(msg) })
	})
	t.On(proto.EventRadioChatter, func(args []json.RawMessage) {
		m.loop.post(func() { m.route(args) })
	})
	return m
}

// Run processes the manager until ctx is done; the transport is closed on exit.
func (m *Manager) Run(ctx context.Context) {
	m.ctx.Store(&ctx)
	m.loop.run(ctx, func() {
		if st := m.TransportState(); st != StateNotConnected && st != StateDisconnectedBySelf {
			m.transport.Disconnect()
		}
	})
}

// Client returns the subscription for channel, creating it on first use.
// Later calls return the existing subscription and ignore d.
func (m *Manager) Client(channel string, d Delegate) *ChannelClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.clients[channel]; ok {
		return c
	}
	if d == nil {
		d = NopDelegate{}
	}
	l := m.log.With().Str("channel", channel).Logger()
	c := &ChannelClient{
		channel:  channel,
		delegate: d,
		ops:      m,
		history:  chatter.NewHistory(m.opts.HistorySize),
		log:      &l,
		onState:  m.opts.OnStateChange,
	}
	m.clients[channel] = c
	m.log.Debug().Str("channel", channel).Msg("subscription registered")
	return c
}

// Lookup returns the subscription for channel if one was registered.
func (m *Manager) Lookup(channel string) (*ChannelClient, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clients[channel]
	return c, ok
}

// Channels returns the registered channel ids in sorted order.
func (m *Manager) Channels() []string {
	m.mu.Lock()
	out := make([]string, 0, len(m.clients))
	for id := range m.clients {
		out = append(out, id)
	}
	m.mu.Unlock()
	sort.Strings(out)
	return out
}

// TransportState returns the state of the shared transport.
func (m *Manager) TransportState() State {
	return State(m.state.Load())
}

// Disconnect closes the shared transport. Subscriptions still active are
// reported disconnected without a leave request.
func (m *Manager) Disconnect() {
	m.loop.post(m.disconnect)
}

func (m *Manager) sorted() []*ChannelClient {
	m.mu.Lock()
	out := make([]*ChannelClient, 0, len(m.clients))
	for _, c := range m.clients {
		out = append(out, c)
	}
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].channel < out[j].channel })
	return out
}

func (m *Manager) set(next State) {
	prev := State(m.state.Swap(int32(next)))
	if prev == next {
		return
	}
	m.log.Debug().Stringer("from", prev).Stringer("to", next).Msg("transport state changed")
	if m.opts.OnStateChange != nil {
		m.opts.OnStateChange(StateEvent{Old: prev, New: next})
	}
}

func (m *Manager) connectChannel(c *ChannelClient) {
	m.loop.post(func() {
		switch st := c.State(); st {
		case StateNotConnected, StateTransportConnected, StateDisconnectedBySelf, StateUnexpectedlyDisconnected:
		default:
			c.log.Debug().Stringer("state", st).Msg("connect ignored")
			return
		}

		switch m.TransportState() {
		case StateTransportConnected:
			m.join(c)
		case StateConnecting:
			c.set(StateConnecting)
		default:
			c.set(StateConnecting)
			m.set(StateConnecting)
			m.transport.Connect()
		}
	})
}

func (m *Manager) disconnectChannel(c *ChannelClient) {
	m.loop.post(func() {
		switch st := c.State(); st {
		case StateJoined:
			c.attempt++
			c.set(StateLeavingChannel)
			m.leave(c)
		case StateConnecting, StateTransportConnected, StateJoiningChannel, StateUnexpectedlyDisconnected:
			c.attempt++
		default:
			c.log.Debug().Stringer("state", st).Msg("disconnect ignored")
			return
		}
		c.set(StateDisconnectedBySelf)
		c.delegate.OnDisconnected(StateDisconnectedBySelf)
	})
}

func (m *Manager) join(c *ChannelClient) {
	c.attempt++
	gen := c.attempt
	c.set(StateJoiningChannel)

	ctx := *m.ctx.Load()
	go func() {
		refs, err := joinRadio(ctx, m.transport, c.channel, m.opts.RPCTimeout)
		m.loop.post(func() { m.joinFinished(c, gen, refs, err) })
	}()
}

func (m *Manager) joinFinished(c *ChannelClient, gen uint64, refs []proto.EmoteRef, err error) {
	if c.State() != StateJoiningChannel || gen != c.attempt {
		c.log.Debug().Err(err).Msg("discarding stale join result")
		return
	}
	if err != nil {
		c.log.Warn().Err(err).Msg("join failed")
		c.set(StateTransportConnected)
		c.delegate.OnError(err)
		return
	}
	c.log.Info().Int("emotes", len(refs)).Msg("joined channel")
	c.set(StateJoined)
	c.delegate.OnConnected()
	prefetch(*m.ctx.Load(), m.opts.Loader, refs, c.log)
}

// leave is fire-and-forget: the outcome is only logged.
func (m *Manager) leave(c *ChannelClient) {
	ctx := *m.ctx.Load()
	go func() {
		if err := leaveRadio(ctx, m.transport, c.channel, m.opts.RPCTimeout); err != nil {
			c.log.Warn().Err(err).Msg("leave failed")
			return
		}
		c.log.Debug().Msg("left channel")
	}()
}

func (m *Manager) transportConnected() {
	if st := m.TransportState(); st != StateConnecting {
		m.log.Debug().Stringer("state", st).Msg("ignoring transport connect")
		return
	}
	m.set(StateTransportConnected)
	for _, c := range m.sorted() {
		switch c.State() {
		case StateConnecting, StateUnexpectedlyDisconnected:
			m.join(c)
		}
	}
}

func (m *Manager) transportLost(reason string) {
	switch st := m.TransportState(); st {
	case StateConnecting, StateTransportConnected:
		m.log.Warn().Str("reason", reason).Stringer("state", st).Msg("shared transport lost")
		m.set(StateUnexpectedlyDisconnected)
	default:
		m.log.Debug().Str("reason", reason).Stringer("state", st).Msg("ignoring transport disconnect")
		return
	}
	for _, c := range m.sorted() {
		if !c.State().Active() {
			continue
		}
		c.attempt++
		c.set(StateUnexpectedlyDisconnected)
		c.delegate.OnDisconnected(StateUnexpectedlyDisconnected)
	}
}

func (m *Manager) transportError(msg string) {
	if !m.TransportState().Active() {
		m.log.Debug().Str("error", msg).Msg("ignoring transport error")
		return
	}
	err := sails.TransportFault("socket", errors.New(msg))
	for _, c := range m.sorted() {
		if c.State().Active() {
			c.delegate.OnError(err)
		}
	}
}

func (m *Manager) disconnect() {
	switch st := m.TransportState(); st {
	case StateConnecting, StateTransportConnected:
	case StateUnexpectedlyDisconnected:
		m.set(StateDisconnectedBySelf)
		return
	default:
		m.log.Debug().Stringer("state", st).Msg("disconnect ignored")
		return
	}
	m.set(StateDisconnecting)
	for _, c := range m.sorted() {
		if !c.State().Active() {
			continue
		}
		c.attempt++
		c.set(StateDisconnectedBySelf)
		c.delegate.OnDisconnected(StateDisconnectedBySelf)
	}
	m.transport.Disconnect()
	m.set(StateDisconnectedBySelf)
}

func (m *Manager) route(args []json.RawMessage) {
	ev, channel, err := decodeChatter(args)
	if err != nil {
		m.log.Warn().Err(err).Msg("dropping undecodable chatter")
		return
	}
	c, ok := m.Lookup(channel)
	if !ok {
		m.log.Debug().Str("event_channel", ev.Channel).Msg("dropping chatter for unregistered channel")
		return
	}
	if st := c.State(); st != StateJoined {
		c.log.Debug().Stringer("state", st).Msg("dropping chatter outside joined state")
		return
	}
	r := renderChatter(ev, m.opts)
	c.history.Append(r)
	c.delegate.OnChatter(r)
}

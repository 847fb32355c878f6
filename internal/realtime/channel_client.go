package realtime

import (
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/floatchat/internal/chatter"
)

// channelOps is what a ChannelClient needs from its Manager.
type channelOps interface {
	connectChannel(c *ChannelClient)
	disconnectChannel(c *ChannelClient)
}

// ChannelClient is one channel subscription on a Manager's shared transport.
type ChannelClient struct {
	channel  string
	delegate Delegate
	ops      channelOps
	history  *chatter.History
	log      *zerolog.Logger
	onState  func(StateEvent)

	state atomic.Int32

	// owned by the manager loop
	attempt uint64
}

// Channel returns the channel id.
func (c *ChannelClient) Channel() string {
	return c.channel
}

// State returns the subscription state.
func (c *ChannelClient) State() State {
	return State(c.state.Load())
}

// History returns the retained rendered chatter, oldest first.
func (c *ChannelClient) History() []chatter.Rendered {
	return c.history.Items()
}

// Connect joins the channel, connecting the shared transport first if needed.
// It returns immediately.
func (c *ChannelClient) Connect() {
	c.ops.connectChannel(c)
}

// Disconnect leaves the channel. The subscriber is told it is disconnected
// without waiting for the leave request. It returns immediately.
func (c *ChannelClient) Disconnect() {
	c.ops.disconnectChannel(c)
}

func (c *ChannelClient) set(next State) {
	prev := State(c.state.Swap(int32(next)))
	if prev == next {
		return
	}
	c.log.Debug().Stringer("from", prev).Stringer("to", next).Msg("subscription state changed")
	if c.onState != nil {
		c.onState(StateEvent{Channel: c.channel, Old: prev, New: next})
	}
}

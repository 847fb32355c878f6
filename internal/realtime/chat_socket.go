package realtime

import (
	"context"
	"encoding/json"

	"github.com/vovakirdan/floatchat/internal/chatter"
	"github.com/vovakirdan/floatchat/internal/proto"
)

// ChatSocket is a single chat channel session on its own transport. It joins
// the channel as soon as the transport connects and redials after unexpected
// losses when AutoReconnect is set.
type ChatSocket struct {
	*session
	channel  string
	delegate Delegate
	history  *chatter.History
}

// NewChatSocket builds a socket for channel. Nothing happens until Run is
// started and Connect is called.
func NewChatSocket(t Transport, channel string, d Delegate, opts Options) *ChatSocket {
	if d == nil {
		d = NopDelegate{}
	}
	opts = opts.withDefaults()
	l := opts.Logger.With().Str("channel", channel).Logger()
	opts.Logger = &l

	c := &ChatSocket{
		channel:  channel,
		delegate: d,
		history:  chatter.NewHistory(opts.HistorySize),
	}
	c.session = newSession(t, opts, d, sessionProtocol{
		channel: channel,
		join:    c.joinChannel,
		leave:   c.leaveChannel,
		push: map[string]func([]json.RawMessage){
			proto.EventRadioChatter: c.onChatter,
		},
	})
	return c
}

// Channel returns the channel id.
func (c *ChatSocket) Channel() string {
	return c.channel
}

// History returns the retained rendered chatter, oldest first.
func (c *ChatSocket) History() []chatter.Rendered {
	return c.history.Items()
}

func (c *ChatSocket) joinChannel(ctx context.Context) (func(), error) {
	refs, err := joinRadio(ctx, c.transport, c.channel, c.opts.RPCTimeout)
	if err != nil {
		return nil, err
	}
	c.log.Info().Int("emotes", len(refs)).Msg("joined channel")
	return func() { prefetch(ctx, c.opts.Loader, refs, c.log) }, nil
}

func (c *ChatSocket) leaveChannel(ctx context.Context) error {
	return leaveRadio(ctx, c.transport, c.channel, c.opts.RPCTimeout)
}

func (c *ChatSocket) onChatter(args []json.RawMessage) {
	ev, channel, err := decodeChatter(args)
	if err != nil {
		c.log.Warn().Err(err).Msg("dropping undecodable chatter")
		return
	}
	if channel != c.channel {
		c.log.Debug().Str("event_channel", ev.Channel).Msg("dropping chatter for another channel")
		return
	}
	r := renderChatter(ev, c.opts)
	c.history.Append(r)
	c.delegate.OnChatter(r)
}

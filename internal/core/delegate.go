package core

import (
	"time"

	"github.com/vovakirdan/floatchat/internal/chatter"
	"github.com/vovakirdan/floatchat/internal/realtime"
	"github.com/vovakirdan/floatchat/internal/sails"
)

// channelDelegate turns session callbacks of one channel into hub events.
type channelDelegate struct {
	hub     *Hub
	channel string
}

// Delegate returns a realtime.Delegate publishing the callbacks of channel
// to the hub.
func (h *Hub) Delegate(channel string) realtime.Delegate {
	return &channelDelegate{hub: h, channel: channel}
}

// OnStateChange publishes a session state transition. Events without a
// channel describe a shared transport and are not forwarded.
func (h *Hub) OnStateChange(ev realtime.StateEvent) {
	if ev.Channel == "" {
		h.log.Debug().Stringer("state", ev.New).Msg("shared transport state")
		return
	}
	h.post(&Event{Kind: EventStateChanged, Room: ev.Channel, State: ev.New.String()})
}

func (d *channelDelegate) OnConnected() {
	d.hub.post(&Event{Kind: EventConnected, Room: d.channel, State: realtime.StateJoined.String()})
}

func (d *channelDelegate) OnDisconnected(st realtime.State) {
	d.hub.post(&Event{Kind: EventDisconnected, Room: d.channel, State: st.String()})
}

func (d *channelDelegate) OnError(err error) {
	code := sails.CodeOf(err)
	if code == "" {
		code = ErrCodeSession
	}
	d.hub.post(&Event{Kind: EventError, Room: d.channel, Error: coreError(code, err.Error())})
}

func (d *channelDelegate) OnChatter(r chatter.Rendered) {
	d.hub.post(&Event{
		Kind:    EventChatter,
		Room:    d.channel,
		Chatter: &Chatter{Channel: d.channel, Rendered: r, At: time.Now().UTC()},
	})
}

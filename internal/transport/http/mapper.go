package http

import (
	"encoding/json"
	"time"

	"github.com/vovakirdan/floatchat/internal/chatter"
	"github.com/vovakirdan/floatchat/internal/core"
	"github.com/vovakirdan/floatchat/internal/proto"
)

func inboundToCommand(inbound proto.Inbound) (*core.Command, *proto.Error) {
	var kind core.CommandKind
	switch inbound.Type {
	case proto.InboundTypeSubscribe:
		kind = core.CommandSubscribe
	case proto.InboundTypeUnsubscribe:
		kind = core.CommandUnsubscribe
	default:
		return nil, &proto.Error{Code: "invalid_message", Msg: "unknown message type"}
	}

	var data proto.SubscribeData
	if len(inbound.Data) == 0 {
		return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "data is required"}
	}
	if err := json.Unmarshal(inbound.Data, &data); err != nil {
		return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "data must be an object with a channel"}
	}
	if !channelIDPattern.MatchString(data.Channel) {
		return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "channel is required"}
	}
	return &core.Command{Kind: kind, Room: data.Channel}, nil
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventChatter:
		if event.Chatter == nil {
			break
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.OutboundEventChatter,
			Data:  chatterFromCore(*event.Chatter),
		}
	case core.EventHistory:
		lines := make([]proto.EventChatter, 0, len(event.History))
		for _, c := range event.History {
			lines = append(lines, chatterFromCore(c))
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.OutboundEventHistory,
			Data:  proto.EventHistory{Channel: event.Room, Lines: lines},
		}
	case core.EventConnected, core.EventDisconnected, core.EventStateChanged:
		name := proto.OutboundEventState
		switch event.Kind {
		case core.EventConnected:
			name = proto.OutboundEventConnected
		case core.EventDisconnected:
			name = proto.OutboundEventDisconnected
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: name,
			Data:  proto.EventState{Channel: event.Room, State: event.State},
		}
	case core.EventError:
		if event.Error == nil {
			return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: "unknown", Msg: "unknown error"}}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: event.Error.Code, Msg: event.Error.Message},
		}
	}
	return proto.Outbound{Type: proto.OutboundTypeEvent}
}

func chatterFromCore(c core.Chatter) proto.EventChatter {
	return chatterFromRendered(c.Channel, c.Rendered, c.At.Unix())
}

// chatterFromRendered maps a rendered line. A zero ts means the receive time
// is unknown and now is used.
func chatterFromRendered(channel string, r chatter.Rendered, ts int64) proto.EventChatter {
	if ts == 0 {
		ts = time.Now().Unix()
	}
	segments := make([]proto.Segment, 0, len(r.Segments))
	for _, s := range r.Segments {
		seg := proto.Segment{Kind: s.Kind.String(), Text: s.Text, Color: s.Color}
		if s.Emote != nil {
			seg.Emote = "/api/emotes/" + s.Emote.Code
		}
		segments = append(segments, seg)
	}
	return proto.EventChatter{
		Channel:  channel,
		ID:       r.Event.ID,
		User:     r.Event.Username,
		UserType: r.Event.UserType,
		Text:     r.Event.Message,
		Segments: segments,
		TS:       ts,
	}
}

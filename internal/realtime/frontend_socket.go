package realtime

import (
	"context"
	"encoding/json"

	"github.com/vovakirdan/floatchat/internal/proto"
	"github.com/vovakirdan/floatchat/internal/sails"
)

// DefaultFrontendEvents are the push events forwarded when none are given.
var DefaultFrontendEvents = []string{"syncEvent", "pushNotification", "postRelease", "creatorNotification"}

// FrontendSocket is the site-wide socket. It has no channel: the join and
// leave handshakes are the Sails socket connect and disconnect calls.
type FrontendSocket struct {
	*session
	delegate FrontendDelegate
}

// NewFrontendSocket builds a frontend socket forwarding events to d. An empty
// events list forwards DefaultFrontendEvents.
func NewFrontendSocket(t Transport, d FrontendDelegate, opts Options, events ...string) *FrontendSocket {
	if d == nil {
		d = NopDelegate{}
	}
	if len(events) == 0 {
		events = DefaultFrontendEvents
	}
	f := &FrontendSocket{delegate: d}

	push := make(map[string]func([]json.RawMessage), len(events))
	for _, name := range events {
		push[name] = func(args []json.RawMessage) { f.forward(name, args) }
	}
	f.session = newSession(t, opts, d, sessionProtocol{
		join:  f.connectSession,
		leave: f.disconnectSession,
		push:  push,
	})
	return f
}

func (f *FrontendSocket) connectSession(ctx context.Context) (func(), error) {
	resp, err := sails.Do[struct{}, proto.FrontendConnectResponse](ctx, f.transport, sails.Request[struct{}]{
		Method: sails.MethodPost,
		URL:    proto.URLSocketConnect,
	}, f.opts.RPCTimeout)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, sails.ApplicationFault(proto.URLSocketConnect, resp.StatusCode, nil)
	}
	f.log.Info().Str("message", resp.Body.Message).Msg("frontend session connected")
	return nil, nil
}

func (f *FrontendSocket) disconnectSession(ctx context.Context) error {
	resp, err := sails.Do[struct{}, json.RawMessage](ctx, f.transport, sails.Request[struct{}]{
		Method: sails.MethodPost,
		URL:    proto.URLSocketDisconnect,
	}, f.opts.RPCTimeout)
	if err != nil {
		return err
	}
	if !resp.OK() {
		return sails.ApplicationFault(proto.URLSocketDisconnect, resp.StatusCode, nil)
	}
	return nil
}

func (f *FrontendSocket) forward(name string, args []json.RawMessage) {
	var payload json.RawMessage
	if len(args) > 0 {
		payload = args[0]
	}
	f.delegate.OnEvent(name, payload)
}

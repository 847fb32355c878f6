package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/floatchat/internal/chatter"
	"github.com/vovakirdan/floatchat/internal/emote"
	"github.com/vovakirdan/floatchat/internal/proto"
	"github.com/vovakirdan/floatchat/internal/sails"
)

// joinRadio subscribes the socket to a channel's chatter and returns the emotes
// the server advertises for it.
func joinRadio(ctx context.Context, e sails.Emitter, channel string, timeout time.Duration) ([]proto.EmoteRef, error) {
	resp, err := sails.Do[proto.RadioRequest, proto.JoinResponse](ctx, e, sails.Request[proto.RadioRequest]{
		Method: sails.MethodGet,
		URL:    proto.URLJoinRadio,
		Data:   proto.JoinRadio(channel),
	}, timeout)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, sails.ApplicationFault(proto.URLJoinRadio, resp.StatusCode, nil)
	}
	if !resp.Body.Success {
		return nil, sails.ApplicationFault(proto.URLJoinRadio, resp.StatusCode, errors.New("join rejected"))
	}
	return resp.Body.Emotes, nil
}

func leaveRadio(ctx context.Context, e sails.Emitter, channel string, timeout time.Duration) error {
	resp, err := sails.Do[proto.RadioRequest, proto.LeaveResponse](ctx, e, sails.Request[proto.RadioRequest]{
		Method: sails.MethodPost,
		URL:    proto.URLLeaveRadio,
		Data:   proto.LeaveRadio(channel),
	}, timeout)
	if err != nil {
		return err
	}
	if !resp.OK() {
		return sails.ApplicationFault(proto.URLLeaveRadio, resp.StatusCode, nil)
	}
	return nil
}

// decodeChatter parses a radioChatter push and returns the channel id it
// belongs to, with the /live/ prefix stripped.
func decodeChatter(args []json.RawMessage) (proto.ChatEvent, string, error) {
	var ev proto.ChatEvent
	if len(args) == 0 {
		return ev, "", errors.New("radioChatter without payload")
	}
	if err := json.Unmarshal(args[0], &ev); err != nil {
		return ev, "", err
	}
	return ev, strings.TrimPrefix(ev.Channel, proto.ChannelPrefix), nil
}

// prefetch loads advertised emotes in the background.
func prefetch(ctx context.Context, loader *emote.Loader, refs []proto.EmoteRef, logger *zerolog.Logger) {
	if loader == nil || len(refs) == 0 {
		return
	}
	go func() {
		n := loader.Prefetch(ctx, refs)
		logger.Debug().Int("advertised", len(refs)).Int("loaded", n).Msg("emotes prefetched")
	}()
}

func renderChatter(ev proto.ChatEvent, opts Options) chatter.Rendered {
	return chatter.Render(ev, opts.Emotes.Snapshot(), opts.Username)
}

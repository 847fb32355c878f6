package realtime

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/floatchat/internal/chatter"
	"github.com/vovakirdan/floatchat/internal/emote"
)

const (
	// DefaultRPCTimeout bounds every join and leave request.
	DefaultRPCTimeout = 5 * time.Second
	// DefaultReconnectDelay is the wait before a single socket redials after an unexpected loss.
	DefaultReconnectDelay = 5 * time.Second
)

// Options configure sockets and managers.
type Options struct {
	RPCTimeout     time.Duration
	ReconnectDelay time.Duration

	// AutoReconnect redials after an unexpected disconnect. Managers ignore it:
	// their reconnects are always caller driven.
	AutoReconnect bool

	HistorySize int

	// Username is the local user, used to highlight mentions.
	Username string

	Emotes *emote.Cache

	// Loader prefetches advertised emotes after a join; nil disables it.
	Loader *emote.Loader

	OnStateChange func(StateEvent)
	Logger        *zerolog.Logger
}

// DefaultOptions returns the observed client behavior: 5s timeouts and
// automatic reconnects, sharing the process-wide emote cache.
func DefaultOptions() Options {
	return Options{
		RPCTimeout:     DefaultRPCTimeout,
		ReconnectDelay: DefaultReconnectDelay,
		AutoReconnect:  true,
		HistorySize:    chatter.DefaultHistorySize,
		Emotes:         emote.Shared,
	}
}

func (o Options) withDefaults() Options {
	if o.RPCTimeout <= 0 {
		o.RPCTimeout = DefaultRPCTimeout
	}
	if o.ReconnectDelay <= 0 {
		o.ReconnectDelay = DefaultReconnectDelay
	}
	if o.HistorySize <= 0 {
		o.HistorySize = chatter.DefaultHistorySize
	}
	if o.Emotes == nil {
		o.Emotes = emote.Shared
	}
	if o.Logger == nil {
		nop := zerolog.Nop()
		o.Logger = &nop
	}
	return o
}

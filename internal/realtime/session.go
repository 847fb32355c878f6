package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/floatchat/internal/sails"
	"github.com/vovakirdan/floatchat/internal/sio"
)

// sessionProtocol supplies what differs between the chat and frontend sockets.
// join and leave run off the loop; join returns a callback applied on the
// loop only if the join result is still current.
type sessionProtocol struct {
	channel string
	join    func(ctx context.Context) (func(), error)
	leave   func(ctx context.Context) error
	push    map[string]func(args []json.RawMessage)
}

// session is the state machine shared by ChatSocket and FrontendSocket: one
// transport, one join/leave handshake, timer-based reconnect.
type session struct {
	transport Transport
	opts      Options
	log       *zerolog.Logger
	observer  Observer
	proto     sessionProtocol

	loop  *loop
	state atomic.Int32
	ctx   atomic.Pointer[context.Context]

	// loop-owned
	attempt  uint64
	retry    *time.Timer
	retryGen uint64
}

func newSession(t Transport, opts Options, observer Observer, p sessionProtocol) *session {
	opts = opts.withDefaults()
	s := &session{
		transport: t,
		opts:      opts,
		log:       opts.Logger,
		observer:  observer,
		proto:     p,
		loop:      newLoop(),
	}
	bg := context.Background()
	s.ctx.Store(&bg)

	t.On(sio.EventConnect, func([]json.RawMessage) {
		s.loop.post(s.transportConnected)
	})
	t.On(sio.EventDisconnect, func(args []json.RawMessage) {
		reason := firstString(args)
		s.loop.post(func() { s.transportLost(reason) })
	})
	t.On(sio.EventError, func(args []json.RawMessage) {
		msg := firstString(args)
		s.loop.post(func() { s.transportError(msg) })
	})
	for name, h := range p.push {
		t.On(name, func(args []json.RawMessage) {
			s.loop.post(func() {
				if st := s.State(); st != StateJoined {
					s.log.Debug().Str("event", name).Stringer("state", st).Msg("dropping push event outside joined state")
					return
				}
				h(args)
			})
		})
	}
	return s
}

// Run processes the session until ctx is done; the transport is closed on exit.
func (s *session) Run(ctx context.Context) {
	s.ctx.Store(&ctx)
	s.loop.run(ctx, func() {
		s.stopRetry()
		if st := s.State(); st != StateNotConnected && st != StateDisconnectedBySelf {
			s.transport.Disconnect()
		}
	})
}

// State returns the current state.
func (s *session) State() State {
	return State(s.state.Load())
}

// Connect asks for a joined session. It returns immediately.
func (s *session) Connect() {
	s.loop.post(s.connect)
}

// Disconnect tears the session down, leaving first when joined. It returns immediately.
func (s *session) Disconnect() {
	s.loop.post(s.disconnect)
}

func (s *session) runCtx() context.Context {
	return *s.ctx.Load()
}

func (s *session) set(next State) {
	prev := State(s.state.Swap(int32(next)))
	if prev == next {
		return
	}
	s.log.Debug().Stringer("from", prev).Stringer("to", next).Msg("state changed")
	if s.opts.OnStateChange != nil {
		s.opts.OnStateChange(StateEvent{Channel: s.proto.channel, Old: prev, New: next})
	}
}

func (s *session) connect() {
	switch st := s.State(); st {
	case StateNotConnected, StateDisconnectedBySelf, StateUnexpectedlyDisconnected:
		s.stopRetry()
		s.set(StateConnecting)
		s.transport.Connect()
	case StateTransportConnected:
		s.join()
	default:
		s.log.Debug().Stringer("state", st).Msg("connect ignored")
	}
}

func (s *session) transportConnected() {
	if st := s.State(); st != StateConnecting {
		s.log.Debug().Stringer("state", st).Msg("ignoring transport connect")
		return
	}
	s.set(StateTransportConnected)
	s.join()
}

func (s *session) join() {
	s.attempt++
	gen := s.attempt
	s.set(StateJoiningChannel)

	ctx := s.runCtx()
	go func() {
		after, err := s.proto.join(ctx)
		s.loop.post(func() { s.joinFinished(gen, after, err) })
	}()
}

func (s *session) joinFinished(gen uint64, after func(), err error) {
	if s.State() != StateJoiningChannel || gen != s.attempt {
		s.log.Debug().Err(err).Msg("discarding stale join result")
		return
	}
	if err != nil {
		s.log.Warn().Err(err).Msg("join failed")
		s.set(StateTransportConnected)
		s.observer.OnError(err)
		return
	}
	s.set(StateJoined)
	s.observer.OnConnected()
	if after != nil {
		after()
	}
}

func (s *session) disconnect() {
	switch st := s.State(); st {
	case StateJoined:
		s.attempt++
		gen := s.attempt
		s.set(StateLeavingChannel)

		ctx := s.runCtx()
		go func() {
			err := s.proto.leave(ctx)
			s.loop.post(func() { s.leaveFinished(gen, err) })
		}()
	case StateConnecting, StateTransportConnected, StateJoiningChannel:
		s.attempt++
		s.teardown()
	case StateUnexpectedlyDisconnected:
		s.stopRetry()
		s.teardown()
	default:
		s.log.Debug().Stringer("state", st).Msg("disconnect ignored")
	}
}

func (s *session) leaveFinished(gen uint64, err error) {
	if s.State() != StateLeavingChannel || gen != s.attempt {
		s.log.Debug().Err(err).Msg("discarding stale leave result")
		return
	}
	if err != nil {
		s.log.Warn().Err(err).Msg("leave failed, disconnecting anyway")
		s.observer.OnError(err)
	}
	s.teardown()
}

func (s *session) teardown() {
	s.set(StateDisconnecting)
	s.transport.Disconnect()
	s.set(StateDisconnectedBySelf)
	s.observer.OnDisconnected(StateDisconnectedBySelf)
}

func (s *session) transportLost(reason string) {
	switch st := s.State(); st {
	case StateConnecting, StateTransportConnected, StateJoiningChannel, StateJoined:
		s.attempt++
		s.log.Warn().Str("reason", reason).Stringer("state", st).Msg("transport lost")
		s.set(StateUnexpectedlyDisconnected)
		s.observer.OnDisconnected(StateUnexpectedlyDisconnected)
		s.scheduleRetry()
	case StateLeavingChannel:
		s.attempt++
		s.teardown()
	default:
		s.log.Debug().Str("reason", reason).Stringer("state", st).Msg("ignoring transport disconnect")
	}
}

func (s *session) transportError(msg string) {
	if !s.State().Active() {
		s.log.Debug().Str("error", msg).Msg("ignoring transport error")
		return
	}
	s.observer.OnError(sails.TransportFault("socket", errors.New(msg)))
}

func (s *session) scheduleRetry() {
	if !s.opts.AutoReconnect {
		return
	}
	s.stopRetry()
	gen := s.retryGen
	s.log.Info().Dur("delay", s.opts.ReconnectDelay).Msg("scheduling reconnect")
	s.retry = time.AfterFunc(s.opts.ReconnectDelay, func() {
		s.loop.post(func() {
			if gen != s.retryGen || s.State() != StateUnexpectedlyDisconnected {
				return
			}
			s.retry = nil
			s.log.Info().Msg("reconnecting")
			s.connect()
		})
	})
}

func (s *session) stopRetry() {
	s.retryGen++
	if s.retry != nil {
		s.retry.Stop()
		s.retry = nil
	}
}

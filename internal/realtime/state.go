package realtime

// State is the connection state of a socket, a channel subscription or the
// shared transport of a Manager. Exactly one state is current at a time.
type State int32

const (
	// StateNotConnected is the idle state before the first Connect.
	StateNotConnected State = iota
	// StateConnecting means the transport is being dialed.
	StateConnecting
	// StateTransportConnected means the socket is up but no session is joined.
	StateTransportConnected
	// StateJoiningChannel means the join request is in flight.
	StateJoiningChannel
	// StateJoined is the stable connected state; push events are delivered.
	StateJoined
	// StateLeavingChannel means the best-effort leave request is in flight.
	StateLeavingChannel
	// StateDisconnecting means the transport is being closed on request.
	StateDisconnecting
	// StateDisconnectedBySelf is reached after a caller Disconnect.
	StateDisconnectedBySelf
	// StateUnexpectedlyDisconnected is reached when the transport drops on its own.
	StateUnexpectedlyDisconnected
)

func (s State) String() string {
	switch s {
	case StateNotConnected:
		return "not_connected"
	case StateConnecting:
		return "connecting"
	case StateTransportConnected:
		return "transport_connected"
	case StateJoiningChannel:
		return "joining_channel"
	case StateJoined:
		return "joined"
	case StateLeavingChannel:
		return "leaving_channel"
	case StateDisconnecting:
		return "disconnecting"
	case StateDisconnectedBySelf:
		return "disconnected_by_self"
	case StateUnexpectedlyDisconnected:
		return "unexpectedly_disconnected"
	default:
		return "unknown"
	}
}

// Active reports whether the state wants or holds a live session.
func (s State) Active() bool {
	switch s {
	case StateConnecting, StateTransportConnected, StateJoiningChannel, StateJoined:
		return true
	default:
		return false
	}
}

// StateEvent describes one state transition. Channel is empty for sockets
// without a channel and for the shared transport of a Manager.
type StateEvent struct {
	Channel string
	Old     State
	New     State
}

package core

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventChatter delivers a chat line of a subscribed channel.
	EventChatter EventKind = iota
	// EventConnected reports that the channel session joined.
	EventConnected
	// EventDisconnected reports that the channel session ended; State tells
	// whether it was requested or unexpected.
	EventDisconnected
	// EventStateChanged reports any state transition of the channel session.
	EventStateChanged
	// EventHistory replays recent chatter to a client upon subscribing.
	EventHistory
	// EventError notifies clients about a fault.
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventChatter:
		return "chatter"
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	case EventStateChanged:
		return "state"
	case EventHistory:
		return "history"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is sent to clients to describe what happened on a channel.
type Event struct {
	Kind    EventKind
	Room    string
	State   string
	Chatter *Chatter
	History []Chatter // For EventHistory
	Error   *CoreError
}

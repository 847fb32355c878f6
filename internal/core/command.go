package core

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandSubscribe subscribes the client to a channel's events.
	CommandSubscribe CommandKind = iota
	// CommandUnsubscribe stops delivery of a channel's events.
	CommandUnsubscribe
)

// Command represents an action requested by a client.
type Command struct {
	Kind CommandKind
	Room string
}

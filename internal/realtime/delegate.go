package realtime

import (
	"encoding/json"

	"github.com/vovakirdan/floatchat/internal/chatter"
)

// Observer receives session lifecycle notifications. Calls are made from the
// owning socket's loop goroutine, one at a time and in order.
type Observer interface {
	OnConnected()
	OnDisconnected(State)
	OnError(error)
}

// Delegate observes a chat channel session.
type Delegate interface {
	Observer
	OnChatter(chatter.Rendered)
}

// FrontendDelegate observes the frontend socket.
type FrontendDelegate interface {
	Observer
	OnEvent(name string, payload json.RawMessage)
}

// NopDelegate ignores every notification. Embed it to implement only some methods.
type NopDelegate struct{}

func (NopDelegate) OnConnected() {}
func (NopDelegate) OnDisconnected(State) {}
func (NopDelegate) OnError(error) {}
func (NopDelegate) OnChatter(chatter.Rendered) {}
func (NopDelegate) OnEvent(string, json.RawMessage) {}

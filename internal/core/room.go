package core

// Room groups clients subscribed to the same channel and remembers the
// channel's last state and recent chatter for late subscribers.
type Room struct {
	Name    string
	State   string
	clients map[*Client]struct{}
	recent  []Chatter
	limit   int
}

// NewRoom constructs a room with no clients, keeping up to limit recent lines.
func NewRoom(name string, limit int) *Room {
	return &Room{
		Name:    name,
		clients: make(map[*Client]struct{}),
		limit:   limit,
	}
}

// AddClient inserts a client into the room. Returns true if newly added.
func (r *Room) AddClient(c *Client) bool {
	if _, exists := r.clients[c]; exists {
		return false
	}
	r.clients[c] = struct{}{}
	return true
}

// RemoveClient deletes a client from the room. Returns true if removed.
func (r *Room) RemoveClient(c *Client) bool {
	if _, exists := r.clients[c]; !exists {
		return false
	}
	delete(r.clients, c)
	return true
}

// Remember appends a line to the replay buffer, dropping the oldest beyond the limit.
func (r *Room) Remember(c Chatter) {
	if r.limit <= 0 {
		return
	}
	if len(r.recent) == r.limit {
		copy(r.recent, r.recent[1:])
		r.recent = r.recent[:r.limit-1]
	}
	r.recent = append(r.recent, c)
}

// Recent returns a copy of the replay buffer, oldest first.
func (r *Room) Recent() []Chatter {
	return append([]Chatter(nil), r.recent...)
}

// Broadcast sends an event to all clients in the room.
func (r *Room) Broadcast(event *Event) {
	for client := range r.clients {
		select {
		case client.Events <- event:
		default:
			// Drop if slow consumer.
		}
	}
}

// Size returns the number of subscribed clients.
func (r *Room) Size() int {
	return len(r.clients)
}

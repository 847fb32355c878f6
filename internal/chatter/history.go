package chatter

import "sync"

// DefaultHistorySize is how many rendered lines a client keeps.
const DefaultHistorySize = 50

// History is a ring buffer of the most recent rendered lines.
type History struct {
	mu    sync.RWMutex
	buf   []Rendered
	start int
	n     int
}

// NewHistory returns an empty history holding at most capacity lines.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistorySize
	}
	return &History{buf: make([]Rendered, capacity)}
}

// Append adds r, evicting the oldest line when full.
func (h *History) Append(r Rendered) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.n < len(h.buf) {
		h.buf[(h.start+h.n)%len(h.buf)] = r
		h.n++
		return
	}
	h.buf[h.start] = r
	h.start = (h.start + 1) % len(h.buf)
}

// Items returns the retained lines in arrival order.
func (h *History) Items() []Rendered {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Rendered, 0, h.n)
	for i := 0; i < h.n; i++ {
		out = append(out, h.buf[(h.start+i)%len(h.buf)])
	}
	return out
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.n
}

func (h *History) Cap() int {
	return len(h.buf)
}

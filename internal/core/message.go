package core

import (
	"time"

	"github.com/vovakirdan/floatchat/internal/chatter"
)

// Chatter is a rendered chat line received on a channel.
type Chatter struct {
	Channel  string
	Rendered chatter.Rendered
	At       time.Time
}

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Session is a stored cookie used to authenticate against Floatplane.
type Session struct {
	Name      string // cookie name, e.g. sails.sid
	Value     string
	UpdatedAt time.Time
}

// Chatter is a persisted chat line.
type Chatter struct {
	ID        int64
	Channel   string
	MessageID string // server side id of the chat event
	Username  string
	UserType  string
	Text      string
	CreatedAt time.Time
}

// SessionStore handles session cookie persistence.
type SessionStore interface {
	// GetSession returns the cookie stored under name, or ErrNotFound.
	GetSession(ctx context.Context, name string) (*Session, error)

	// SaveSession inserts or replaces a cookie.
	SaveSession(ctx context.Context, s *Session) error

	// DeleteSession removes a cookie. Deleting a missing cookie is not an error.
	DeleteSession(ctx context.Context, name string) error
}

// ChatterStore handles the chat log.
type ChatterStore interface {
	// AppendChatter persists a chat line. A line whose MessageID is already
	// stored for the channel is ignored.
	AppendChatter(ctx context.Context, c *Chatter) error

	// ListChatter returns up to limit of the newest lines of a channel,
	// oldest first.
	ListChatter(ctx context.Context, channel string, limit int) ([]*Chatter, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	SessionStore
	ChatterStore

	// Close closes the underlying database connection.
	Close() error
}

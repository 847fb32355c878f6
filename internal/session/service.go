// Package session resolves the Floatplane session cookie the sockets
// authenticate with.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/vovakirdan/floatchat/internal/proto"
	"github.com/vovakirdan/floatchat/internal/store"
)

var (
	// ErrNoSession is returned when no cookie is configured or stored.
	ErrNoSession = errors.New("no session cookie")
	// ErrInvalidCookie is returned when a cookie value cannot be sent in a header.
	ErrInvalidCookie = errors.New("invalid session cookie")
)

// Source tells where a cookie came from.
type Source string

const (
	SourceConfig Source = "config"
	SourceStore  Source = "store"
)

// Service provides session cookie operations.
type Service struct {
	store      store.SessionStore
	configured string
}

// NewService creates a session service. A non-empty configured cookie takes
// precedence over the stored one. sessions may be nil.
func NewService(sessions store.SessionStore, configured string) *Service {
	return &Service{
		store:      sessions,
		configured: Normalize(configured),
	}
}

// Normalize strips whitespace and an optional "sails.sid=" prefix, so a
// cookie copied from browser tools can be pasted as-is.
func Normalize(value string) string {
	value = strings.TrimSpace(value)
	value = strings.TrimPrefix(value, proto.SessionCookieName+"=")
	if i := strings.IndexByte(value, ';'); i >= 0 {
		value = value[:i]
	}
	return strings.TrimSpace(value)
}

// Cookie returns the cookie value and where it came from.
func (s *Service) Cookie(ctx context.Context) (string, Source, error) {
	if s.configured != "" {
		return s.configured, SourceConfig, nil
	}
	if s.store == nil {
		return "", "", ErrNoSession
	}
	sess, err := s.store.GetSession(ctx, proto.SessionCookieName)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", "", ErrNoSession
		}
		return "", "", fmt.Errorf("load session: %w", err)
	}
	return sess.Value, SourceStore, nil
}

// Save validates and stores a cookie.
func (s *Service) Save(ctx context.Context, value string) error {
	value = Normalize(value)
	if value == "" || strings.ContainsAny(value, " \t\r\n\",\\") {
		return ErrInvalidCookie
	}
	if s.store == nil {
		return errors.New("no session store")
	}
	if err := s.store.SaveSession(ctx, &store.Session{Name: proto.SessionCookieName, Value: value}); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Clear removes the stored cookie. A configured cookie is unaffected.
func (s *Service) Clear(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	if err := s.store.DeleteSession(ctx, proto.SessionCookieName); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// Header builds the handshake headers carrying the cookie.
func (s *Service) Header(ctx context.Context) (http.Header, error) {
	value, _, err := s.Cookie(ctx)
	if err != nil {
		return nil, err
	}
	h := http.Header{}
	h.Set("Cookie", (&http.Cookie{Name: proto.SessionCookieName, Value: value}).String())
	return h, nil
}

// Mask shortens a cookie for display.
func Mask(value string) string {
	if len(value) <= 8 {
		return strings.Repeat("*", len(value))
	}
	return value[:4] + strings.Repeat("*", 4) + value[len(value)-4:]
}

package sqlite

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/vovakirdan/floatchat/internal/store"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := NewWithSetup(":memory:", Migrate)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSessionRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.GetSession(ctx, "sails.sid"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := s.SaveSession(ctx, &store.Session{Name: "sails.sid", Value: "first"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.SaveSession(ctx, &store.Session{Name: "sails.sid", Value: "second"}); err != nil {
		t.Fatalf("replace: %v", err)
	}

	got, err := s.GetSession(ctx, "sails.sid")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Value != "second" || got.UpdatedAt.IsZero() {
		t.Fatalf("unexpected session %+v", got)
	}

	if err := s.DeleteSession(ctx, "sails.sid"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.DeleteSession(ctx, "sails.sid"); err != nil {
		t.Fatalf("delete missing: %v", err)
	}
	if _, err := s.GetSession(ctx, "sails.sid"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestListChatter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := s.AppendChatter(ctx, &store.Chatter{
			Channel:   "chan1",
			MessageID: fmt.Sprintf("m%d", i),
			Username:  "bob",
			Text:      fmt.Sprintf("line %d", i),
		}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if err := s.AppendChatter(ctx, &store.Chatter{Channel: "chan2", MessageID: "x", Username: "amy", Text: "elsewhere"}); err != nil {
		t.Fatalf("append other channel: %v", err)
	}

	// Redelivered events are stored once.
	dup := &store.Chatter{Channel: "chan1", MessageID: "m4", Username: "bob", Text: "line 4"}
	if err := s.AppendChatter(ctx, dup); err != nil {
		t.Fatalf("append duplicate: %v", err)
	}
	if dup.ID != 0 {
		t.Fatalf("duplicate got an id: %d", dup.ID)
	}

	tests := []struct {
		name     string
		channel  string
		limit    int
		expected []string
	}{
		{"newest three oldest first", "chan1", 3, []string{"m2", "m3", "m4"}},
		{"limit above count", "chan1", 10, []string{"m0", "m1", "m2", "m3", "m4"}},
		{"other channel", "chan2", 10, []string{"x"}},
		{"unknown channel", "nope", 10, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListChatter(ctx, tt.channel, tt.limit)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(got) != len(tt.expected) {
				t.Fatalf("expected %d lines, got %d", len(tt.expected), len(got))
			}
			for i, c := range got {
				if c.MessageID != tt.expected[i] {
					t.Fatalf("line %d: expected %s, got %s", i, tt.expected[i], c.MessageID)
				}
			}
		})
	}
}

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/vovakirdan/floatchat/internal/store"
)

// Schema creates every table the store needs. It is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS sessions (
	name       TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS chatter (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	channel    TEXT NOT NULL,
	message_id TEXT NOT NULL,
	username   TEXT NOT NULL,
	user_type  TEXT NOT NULL DEFAULT '',
	body       TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE (channel, message_id)
);

CREATE INDEX IF NOT EXISTS idx_chatter_channel ON chatter (channel, id);
`

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New opens the database at dbPath and applies Schema.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, Migrate)
}

// NewWithSetup opens the database and runs setup before first use.
// Tests pass ":memory:" with Migrate or a custom schema.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection; :memory: needs it.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Migrate applies Schema.
func Migrate(db *sql.DB) error {
	if _, err := db.Exec(Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== SessionStore implementation ====

// GetSession returns the cookie stored under name.
func (s *SQLiteStore) GetSession(ctx context.Context, name string) (*store.Session, error) {
	query := `
		SELECT name, value, updated_at
		FROM sessions
		WHERE name = ?
	`
	var sess store.Session
	err := s.db.QueryRowContext(ctx, query, name).Scan(&sess.Name, &sess.Value, &sess.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("session %s: %w", name, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query session: %w", err)
	}
	return &sess, nil
}

// SaveSession inserts or replaces a cookie.
func (s *SQLiteStore) SaveSession(ctx context.Context, sess *store.Session) error {
	if sess.UpdatedAt.IsZero() {
		sess.UpdatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO sessions (name, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, sess.Name, sess.Value, sess.UpdatedAt); err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

// DeleteSession removes a cookie.
func (s *SQLiteStore) DeleteSession(ctx context.Context, name string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE name = ?`, name); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// ==== ChatterStore implementation ====

// AppendChatter persists a chat line, ignoring duplicates.
func (s *SQLiteStore) AppendChatter(ctx context.Context, c *store.Chatter) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT OR IGNORE INTO chatter (channel, message_id, username, user_type, body, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, c.Channel, c.MessageID, c.Username, c.UserType, c.Text, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert chatter: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 1 {
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("get last insert id: %w", err)
		}
		c.ID = id
	}
	return nil
}

// ListChatter returns up to limit of the newest lines of a channel, oldest first.
func (s *SQLiteStore) ListChatter(ctx context.Context, channel string, limit int) ([]*store.Chatter, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, channel, message_id, username, user_type, body, created_at
		FROM (
			SELECT * FROM chatter
			WHERE channel = ?
			ORDER BY id DESC
			LIMIT ?
		)
		ORDER BY id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, channel, limit)
	if err != nil {
		return nil, fmt.Errorf("query chatter: %w", err)
	}
	defer rows.Close()

	var out []*store.Chatter
	for rows.Next() {
		var c store.Chatter
		if err := rows.Scan(&c.ID, &c.Channel, &c.MessageID, &c.Username, &c.UserType, &c.Text, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chatter: %w", err)
		}
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chatter: %w", err)
	}
	return out, nil
}

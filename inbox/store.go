// Package inbox keeps the text messages the listener picked up from the
// modem.
package inbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"i4.energy/across/powermon/modem"
)

// Message is a stored TextMsg.
type Message struct {
	ID int64 `json:"id"`
	modem.TextMsg
	ReceivedAt time.Time `json:"received_at"`
}

// Store persists received messages.
type Store interface {
	Save(ctx context.Context, msg modem.TextMsg, receivedAt time.Time) (int64, error)
	// List returns up to limit messages, newest first.
	List(ctx context.Context, limit int) ([]Message, error)
	Close() error
}

// SQLiteStore implements Store on a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens or creates the database at path and applies the schema.
func NewSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("inbox: database path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One writer at a time, and the listener is the only writer.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			phone_number TEXT NOT NULL,
			modem_timestamp TEXT NOT NULL,
			body TEXT NOT NULL,
			received_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create messages table: %w", err)
	}
	_, _ = db.Exec(`CREATE INDEX IF NOT EXISTS idx_messages_received ON messages(received_at)`)

	return &SQLiteStore{db: db}, nil
}

// Save stores msg and returns its row id.
func (s *SQLiteStore) Save(ctx context.Context, msg modem.TextMsg, receivedAt time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO messages(phone_number, modem_timestamp, body, received_at) VALUES(?,?,?,?)`,
		msg.PhoneNumber, msg.Timestamp, msg.Message, receivedAt.UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert message: %w", err)
	}
	return res.LastInsertId()
}

// List returns up to limit messages, newest first. A limit of zero or less
// returns all of them.
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, phone_number, modem_timestamp, body, received_at FROM messages ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	out := make([]Message, 0)
	for rows.Next() {
		var m Message
		var received int64
		if err := rows.Scan(&m.ID, &m.PhoneNumber, &m.Timestamp, &m.Message, &received); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.ReceivedAt = time.UnixMilli(received)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/samber/lo"
	_ "modernc.org/sqlite"

	"chat-relay/internal/models"
)

// sqliteTimeLayout is RFC3339 with fixed-width nanoseconds. RFC3339Nano
// trims trailing fractional zeros, which breaks lexical ordering within a
// second ('Z' sorts after digits); fixed width keeps text order equal to
// chronological order. Always stored in UTC.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLite persists messages in a local SQLite file. Timestamps are stored
// as fixed-width UTC text so the column stays readable and sortable.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the database file at path.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	_, _ = db.Exec("PRAGMA busy_timeout = 1000")
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	return &SQLite{db: db}, nil
}

func (s *SQLite) Init(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			author TEXT NOT NULL,
			body TEXT NOT NULL,
			created_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_messages_created_at ON messages(created_at);
	`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("%w: %v", ErrSchema, err)
	}
	return nil
}

func (s *SQLite) Append(ctx context.Context, author, body string, at time.Time) (models.Message, error) {
	at = at.UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (author, body, created_at) VALUES (?, ?, ?)`,
		author, body, at.Format(sqliteTimeLayout),
	)
	if err != nil {
		return models.Message{}, fmt.Errorf("%w: %v", ErrWrite, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.Message{}, fmt.Errorf("%w: %v", ErrWrite, err)
	}
	return models.Message{ID: id, Author: author, Body: body, CreatedAt: at}, nil
}

func (s *SQLite) Recent(ctx context.Context, limit int) ([]models.Message, error) {
	query := `
		SELECT id, author, body, created_at
		FROM messages
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRead, err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var (
			msg models.Message
			at  string
		)
		if err := rows.Scan(&msg.ID, &msg.Author, &msg.Body, &at); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRead, err)
		}
		msg.CreatedAt, err = time.Parse(sqliteTimeLayout, at)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRead, err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRead, err)
	}

	return lo.Reverse(messages), nil
}

func (s *SQLite) ClearAll(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM messages`); err != nil {
		tx.Rollback()
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/samber/lo"

	"chat-relay/internal/models"
)

// Postgres persists messages in PostgreSQL.
type Postgres struct {
	db *sql.DB
}

// NewPostgres opens a connection pool for the given DSN. No connection is
// established yet; the first Init or query dials the server, so a store can
// be constructed while the database is still coming up.
func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &Postgres{db: db}, nil
}

func (s *Postgres) Init(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS messages (
			id BIGSERIAL PRIMARY KEY,
			author TEXT NOT NULL,
			body TEXT NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_messages_created_at ON messages(created_at);
	`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("%w: %v", ErrSchema, err)
	}
	return nil
}

func (s *Postgres) Append(ctx context.Context, author, body string, at time.Time) (models.Message, error) {
	query := `
		INSERT INTO messages (author, body, created_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`
	msg := models.Message{Author: author, Body: body, CreatedAt: at}
	if err := s.db.QueryRowContext(ctx, query, author, body, at).Scan(&msg.ID); err != nil {
		return models.Message{}, fmt.Errorf("%w: %v", ErrWrite, err)
	}
	return msg, nil
}

func (s *Postgres) Recent(ctx context.Context, limit int) ([]models.Message, error) {
	// Newest first so LIMIT picks the most recent window, then reversed
	// for chronological replay. Ties on created_at break by id.
	query := `
		SELECT id, author, body, created_at
		FROM messages
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRead, err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var msg models.Message
		if err := rows.Scan(&msg.ID, &msg.Author, &msg.Body, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRead, err)
		}
		msg.CreatedAt = msg.CreatedAt.UTC()
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRead, err)
	}

	return lo.Reverse(messages), nil
}

func (s *Postgres) ClearAll(ctx context.Context) error {
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

func (s *Postgres) Close() error {
	return s.db.Close()
}

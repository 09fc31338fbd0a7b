package storage

import (
	"context"
	"errors"
	"time"

	"chat-relay/internal/models"
)

// Error kinds for store failures. Backends wrap driver errors with one of
// these so callers can branch with errors.Is without knowing the engine.
var (
	// ErrSchema means the engine rejected the DDL for a reason other
	// than "already exists".
	ErrSchema = errors.New("storage: schema creation failed")

	// ErrWrite covers connectivity loss and constraint violations on
	// Append and ClearAll.
	ErrWrite = errors.New("storage: write failed")

	// ErrRead covers connectivity loss on Recent.
	ErrRead = errors.New("storage: read failed")
)

// Store is append-only persistence for messages.
type Store interface {
	// Init creates the messages table if absent. Idempotent: safe to
	// re-run and safe to call concurrently with startup.
	Init(ctx context.Context) error

	// Append atomically inserts one message and returns the stored
	// record including the store-assigned id. Never partially writes.
	Append(ctx context.Context, author, body string, at time.Time) (models.Message, error)

	// Recent returns the most recent limit messages, presented
	// oldest-first for chronological replay.
	Recent(ctx context.Context, limit int) ([]models.Message, error)

	// ClearAll deletes every message in a single transaction: either
	// all rows are removed or none.
	ClearAll(ctx context.Context) error

	Close() error
}

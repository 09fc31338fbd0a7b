package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"chat-relay/internal/models"
)

// Memory keeps messages in process memory. Used for local development and
// as the store double in tests; SetFailing flips every operation into the
// corresponding error kind to exercise degraded paths.
type Memory struct {
	mu       sync.RWMutex
	messages []models.Message
	nextID   int64
	failing  bool
}

func NewMemory() *Memory {
	return &Memory{nextID: 1}
}

// SetFailing makes subsequent operations fail with ErrWrite/ErrRead until
// switched back, simulating a store outage.
func (s *Memory) SetFailing(failing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing = failing
}

func (s *Memory) Init(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failing {
		return ErrSchema
	}
	return nil
}

func (s *Memory) Append(ctx context.Context, author, body string, at time.Time) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return models.Message{}, ErrWrite
	}
	msg := models.Message{ID: s.nextID, Author: author, Body: body, CreatedAt: at}
	s.nextID++
	s.messages = append(s.messages, msg)
	return msg, nil
}

func (s *Memory) Recent(ctx context.Context, limit int) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failing {
		return nil, ErrRead
	}

	sorted := make([]models.Message, len(s.messages))
	copy(sorted, s.messages)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].ID < sorted[j].ID
		}
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})

	if limit < 0 {
		limit = 0
	}
	if limit < len(sorted) {
		sorted = sorted[len(sorted)-limit:]
	}
	return sorted, nil
}

func (s *Memory) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return ErrWrite
	}
	s.messages = nil
	return nil
}

func (s *Memory) Close() error {
	return nil
}

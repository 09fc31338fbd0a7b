package relay

import (
	"context"
	"sync/atomic"

	"github.com/rs/zerolog"

	"chat-relay/internal/models"
	"chat-relay/internal/storage"
)

// DefaultHistoryLimit bounds how many messages are replayed to a new
// session.
const DefaultHistoryLimit = 100

// HistoryLoader reads the replay window for newly connected sessions. A
// store read failure yields an empty window instead of an error: a
// connection is never refused just because history is unavailable.
type HistoryLoader struct {
	store     storage.Store
	limit     int
	log       zerolog.Logger
	fallbacks atomic.Uint64
}

func NewHistoryLoader(store storage.Store, limit int, log zerolog.Logger) *HistoryLoader {
	if limit <= 0 || limit > DefaultHistoryLimit {
		limit = DefaultHistoryLimit
	}
	return &HistoryLoader{store: store, limit: limit, log: log}
}

// Load returns up to the configured limit of most recent messages, oldest
// first. Never returns nil.
func (h *HistoryLoader) Load(ctx context.Context) []models.Message {
	messages, err := h.store.Recent(ctx, h.limit)
	if err != nil {
		h.fallbacks.Add(1)
		h.log.Warn().Err(err).Msg("history unavailable, replaying empty window")
		return []models.Message{}
	}
	if messages == nil {
		messages = []models.Message{}
	}
	return messages
}

// Fallbacks reports how many loads degraded to an empty window.
func (h *HistoryLoader) Fallbacks() uint64 {
	return h.fallbacks.Load()
}

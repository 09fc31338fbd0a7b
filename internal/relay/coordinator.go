package relay

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"chat-relay/internal/models"
	"chat-relay/internal/storage"
)

// Coordinator is the session/broadcast/persistence core. It accepts
// lifecycle and message events from the gateway, serializes writes to the
// durable store, replays recent history to new joiners and fans new events
// out to every live session.
//
// When the store is unavailable the coordinator runs degraded: messages
// are still broadcast so live clients stay in sync, but they are lost on
// restart. That trade-off is deliberate (availability over durability for
// a best-effort feed) and is surfaced through logs and counters rather
// than hidden. Clear is the opposite: a clear that did not commit is never
// announced as successful.
type Coordinator struct {
	store    storage.Store
	registry *Registry
	history  *HistoryLoader
	log      zerolog.Logger

	// Clock is injectable for tests; defaults to time.Now.
	now func() time.Time

	// Write-failure warnings are rate limited so a long outage does not
	// flood the log. Every failure is still counted.
	warnLimit *rate.Limiter

	degraded      atomic.Bool
	persisted     atomic.Uint64
	unpersisted   atomic.Uint64
	clearFailures atomic.Uint64
}

// Stats is a point-in-time, best-effort view of coordinator counters.
// Operational signal only, not a synchronization primitive.
type Stats struct {
	Sessions         int    `json:"sessions"`
	Degraded         bool   `json:"degraded"`
	Persisted        uint64 `json:"persisted"`
	Unpersisted      uint64 `json:"unpersisted"`
	HistoryFallbacks uint64 `json:"history_fallbacks"`
	ClearFailures    uint64 `json:"clear_failures"`
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithClock replaces the timestamp source, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

func NewCoordinator(store storage.Store, registry *Registry, history *HistoryLoader, log zerolog.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:     store,
		registry:  registry,
		history:   history,
		log:       log,
		now:       time.Now,
		warnLimit: rate.NewLimiter(rate.Every(10*time.Second), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetDegraded marks the coordinator degraded before any traffic arrives,
// used when the startup schema retry budget is exhausted.
func (c *Coordinator) SetDegraded(degraded bool) {
	c.degraded.Store(degraded)
}

// Degraded reports whether the last store write failed.
func (c *Coordinator) Degraded() bool {
	return c.degraded.Load()
}

// OnConnect registers the session and replays recent history to it as a
// single batch. History unavailability never refuses the connection; the
// session gets an empty batch instead.
func (c *Coordinator) OnConnect(ctx context.Context, s Session) {
	c.registry.Add(s)

	event := NewInitialMessages(c.history.Load(ctx))
	if err := s.Deliver(event); err != nil {
		c.log.Warn().Err(err).Str("session", s.ID()).Msg("history delivery failed, dropping session")
		c.registry.Remove(s.ID())
	}
}

// OnMessage validates, stamps, persists and broadcasts one inbound
// message. An empty (after trimming) body is discarded with no side
// effects. On persistence failure the message is broadcast anyway,
// unpersisted, and the failure is counted.
func (c *Coordinator) OnMessage(ctx context.Context, s Session, user, text string) {
	body := strings.TrimSpace(text)
	if body == "" {
		return
	}
	author := strings.TrimSpace(user)
	if author == "" {
		author = models.AnonymousAuthor
	}
	at := c.now().UTC()

	msg, err := c.store.Append(ctx, author, body, at)
	if err != nil {
		c.degraded.Store(true)
		c.unpersisted.Add(1)
		if c.warnLimit.Allow() {
			c.log.Warn().Err(err).Msg("append failed, broadcasting unpersisted message")
		}
		msg = models.Message{Author: author, Body: body, CreatedAt: at}
	} else {
		c.degraded.Store(false)
		c.persisted.Add(1)
	}

	// Sender included: clients rely on the broadcast for their own
	// message to appear, no optimistic echo.
	c.registry.Broadcast(NewNewMessage(msg))
}

// OnClear deletes all persisted messages. Only a committed delete is
// broadcast; on failure the requesting session alone gets an error signal.
func (c *Coordinator) OnClear(ctx context.Context, s Session) {
	if err := c.store.ClearAll(ctx); err != nil {
		c.clearFailures.Add(1)
		c.log.Error().Err(err).Str("session", s.ID()).Msg("clear failed")
		if derr := s.Deliver(NewClearChatError("failed to clear chat history")); derr != nil {
			c.registry.Remove(s.ID())
		}
		return
	}
	c.registry.Broadcast(NewChatCleared())
}

// OnDisconnect deregisters the session. No broadcast, no further
// deliveries for it; an in-flight append still completes and reaches the
// remaining sessions.
func (c *Coordinator) OnDisconnect(s Session) {
	c.registry.Remove(s.ID())
}

// Stats snapshots the coordinator counters.
func (c *Coordinator) Stats() Stats {
	return Stats{
		Sessions:         c.registry.Len(),
		Degraded:         c.degraded.Load(),
		Persisted:        c.persisted.Load(),
		Unpersisted:      c.unpersisted.Load(),
		HistoryFallbacks: c.history.Fallbacks(),
		ClearFailures:    c.clearFailures.Load(),
	}
}

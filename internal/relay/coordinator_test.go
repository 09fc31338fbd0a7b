package relay

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"chat-relay/internal/models"
	"chat-relay/internal/storage"
)

func newTestCoordinator(t *testing.T, opts ...Option) (*Coordinator, *storage.Memory, *Registry) {
	t.Helper()
	store := storage.NewMemory()
	registry := NewRegistry(zerolog.Nop())
	history := NewHistoryLoader(store, DefaultHistoryLimit, zerolog.Nop())
	return NewCoordinator(store, registry, history, zerolog.Nop(), opts...), store, registry
}

func TestCoordinator_ThreeSessionFanOut(t *testing.T) {
	req := require.New(t)
	at := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	coordinator, _, _ := newTestCoordinator(t, WithClock(func() time.Time { return at }))
	ctx := context.Background()

	a := newFakeSession("a")
	b := newFakeSession("b")
	c := newFakeSession("c")
	coordinator.OnConnect(ctx, a)
	coordinator.OnConnect(ctx, b)
	coordinator.OnConnect(ctx, c)

	coordinator.OnMessage(ctx, a, "alice", "hi")

	// Everyone, sender included, receives exactly one new_message.
	for _, s := range []*fakeSession{a, b, c} {
		got := s.eventsOfKind(KindNewMessage)
		req.Len(got, 1, "session %s", s.ID())
		msg := got[0].(NewMessageEvent)
		req.Equal("alice", msg.Author)
		req.Equal("hi", msg.Body)
		req.Equal(at, msg.CreatedAt)
	}

	// A later joiner replays exactly that message.
	d := newFakeSession("d")
	coordinator.OnConnect(ctx, d)
	initial := d.eventsOfKind(KindInitialMessages)
	req.Len(initial, 1)
	replayed := initial[0].(InitialMessagesEvent).Messages
	req.Len(replayed, 1)
	req.Equal("alice", replayed[0].Author)
	req.Equal("hi", replayed[0].Body)
}

func TestCoordinator_HistoryReplayPreservesOrder(t *testing.T) {
	req := require.New(t)
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	coordinator, _, _ := newTestCoordinator(t, WithClock(func() time.Time {
		now = now.Add(time.Second)
		return now
	}))
	ctx := context.Background()

	sender := newFakeSession("sender")
	coordinator.OnConnect(ctx, sender)
	coordinator.OnMessage(ctx, sender, "alice", "first")
	coordinator.OnMessage(ctx, sender, "bob", "second")
	coordinator.OnMessage(ctx, sender, "alice", "third")

	fresh := newFakeSession("fresh")
	coordinator.OnConnect(ctx, fresh)

	initial := fresh.eventsOfKind(KindInitialMessages)
	req.Len(initial, 1)
	replayed := initial[0].(InitialMessagesEvent).Messages
	req.Len(replayed, 3)
	req.Equal("first", replayed[0].Body)
	req.Equal("second", replayed[1].Body)
	req.Equal("third", replayed[2].Body)
}

func TestCoordinator_EmptyBodyIsDiscarded(t *testing.T) {
	req := require.New(t)
	coordinator, store, _ := newTestCoordinator(t)
	ctx := context.Background()

	s := newFakeSession("a")
	coordinator.OnConnect(ctx, s)

	for _, text := range []string{"", "   ", "\t\n  "} {
		coordinator.OnMessage(ctx, s, "alice", text)
	}

	req.Empty(s.eventsOfKind(KindNewMessage))
	persisted, err := store.Recent(ctx, 100)
	req.NoError(err)
	req.Empty(persisted)
}

func TestCoordinator_BodyIsTrimmedAndAuthorDefaults(t *testing.T) {
	req := require.New(t)
	coordinator, store, _ := newTestCoordinator(t)
	ctx := context.Background()

	s := newFakeSession("a")
	coordinator.OnConnect(ctx, s)
	coordinator.OnMessage(ctx, s, "  ", "  hello  ")

	persisted, err := store.Recent(ctx, 100)
	req.NoError(err)
	req.Len(persisted, 1)
	req.Equal("hello", persisted[0].Body)
	req.Equal(models.AnonymousAuthor, persisted[0].Author)
}

func TestCoordinator_CreatedAtIsServerStampedUTC(t *testing.T) {
	req := require.New(t)
	paris := time.FixedZone("CEST", 2*60*60)
	at := time.Date(2026, 8, 24, 14, 0, 0, 0, paris)
	coordinator, store, _ := newTestCoordinator(t, WithClock(func() time.Time { return at }))
	ctx := context.Background()

	s := newFakeSession("a")
	coordinator.OnConnect(ctx, s)
	coordinator.OnMessage(ctx, s, "alice", "hi")

	persisted, err := store.Recent(ctx, 100)
	req.NoError(err)
	req.Len(persisted, 1)
	req.Equal(time.UTC, persisted[0].CreatedAt.Location())
	req.True(persisted[0].CreatedAt.Equal(at))
}

func TestCoordinator_ClearThenConnectYieldsEmptyHistory(t *testing.T) {
	req := require.New(t)
	coordinator, _, _ := newTestCoordinator(t)
	ctx := context.Background()

	a := newFakeSession("a")
	b := newFakeSession("b")
	coordinator.OnConnect(ctx, a)
	coordinator.OnConnect(ctx, b)
	coordinator.OnMessage(ctx, a, "alice", "hi")

	coordinator.OnClear(ctx, a)

	// Both sessions get the clear signal.
	req.Len(a.eventsOfKind(KindChatCleared), 1)
	req.Len(b.eventsOfKind(KindChatCleared), 1)

	fresh := newFakeSession("fresh")
	coordinator.OnConnect(ctx, fresh)
	initial := fresh.eventsOfKind(KindInitialMessages)
	req.Len(initial, 1)
	req.Empty(initial[0].(InitialMessagesEvent).Messages)
}

func TestCoordinator_FailedClearIsNeverAnnounced(t *testing.T) {
	req := require.New(t)
	coordinator, store, _ := newTestCoordinator(t)
	ctx := context.Background()

	requester := newFakeSession("requester")
	bystander := newFakeSession("bystander")
	coordinator.OnConnect(ctx, requester)
	coordinator.OnConnect(ctx, bystander)
	coordinator.OnMessage(ctx, requester, "alice", "keep me")

	store.SetFailing(true)
	coordinator.OnClear(ctx, requester)
	store.SetFailing(false)

	// Error signal to the requester only, no chat_cleared anywhere.
	req.Len(requester.eventsOfKind(KindClearChatError), 1)
	req.Empty(bystander.eventsOfKind(KindClearChatError))
	req.Empty(requester.eventsOfKind(KindChatCleared))
	req.Empty(bystander.eventsOfKind(KindChatCleared))

	// The transcript survived.
	persisted, err := store.Recent(ctx, 100)
	req.NoError(err)
	req.Len(persisted, 1)
	req.Equal(uint64(1), coordinator.Stats().ClearFailures)
}

func TestCoordinator_DegradedModeBroadcastsUnpersisted(t *testing.T) {
	req := require.New(t)
	coordinator, store, _ := newTestCoordinator(t)
	ctx := context.Background()

	a := newFakeSession("a")
	b := newFakeSession("b")
	coordinator.OnConnect(ctx, a)
	coordinator.OnConnect(ctx, b)

	store.SetFailing(true)
	coordinator.OnMessage(ctx, a, "alice", "lost on restart")

	// Live clients stay in sync even though the write failed.
	for _, s := range []*fakeSession{a, b} {
		got := s.eventsOfKind(KindNewMessage)
		req.Len(got, 1, "session %s", s.ID())
		req.Equal("lost on restart", got[0].(NewMessageEvent).Body)
	}
	req.True(coordinator.Degraded())
	req.Equal(uint64(1), coordinator.Stats().Unpersisted)

	// Once the store recovers, a fresh connect does not see the
	// unpersisted message.
	store.SetFailing(false)
	fresh := newFakeSession("fresh")
	coordinator.OnConnect(ctx, fresh)
	initial := fresh.eventsOfKind(KindInitialMessages)
	req.Len(initial, 1)
	req.Empty(initial[0].(InitialMessagesEvent).Messages)

	// And the next persisted write clears the degraded flag.
	coordinator.OnMessage(ctx, a, "alice", "durable again")
	req.False(coordinator.Degraded())
}

func TestCoordinator_ConnectSucceedsWhenHistoryUnavailable(t *testing.T) {
	req := require.New(t)
	coordinator, store, registry := newTestCoordinator(t)
	ctx := context.Background()

	store.SetFailing(true)
	s := newFakeSession("a")
	coordinator.OnConnect(ctx, s)

	// Registered, with an empty batch instead of a refused connection.
	req.Equal(1, registry.Len())
	initial := s.eventsOfKind(KindInitialMessages)
	req.Len(initial, 1)
	req.Empty(initial[0].(InitialMessagesEvent).Messages)
	req.Equal(uint64(1), coordinator.Stats().HistoryFallbacks)
}

func TestCoordinator_SessionAddedMidStreamGetsSubsequentEvents(t *testing.T) {
	req := require.New(t)
	coordinator, _, _ := newTestCoordinator(t)
	ctx := context.Background()

	a := newFakeSession("a")
	coordinator.OnConnect(ctx, a)
	coordinator.OnMessage(ctx, a, "alice", "before join")

	late := newFakeSession("late")
	coordinator.OnConnect(ctx, late)
	coordinator.OnMessage(ctx, a, "alice", "after join")

	// The late session missed the live broadcast of the first message
	// (it is in its replay instead) and received the second exactly once.
	live := late.eventsOfKind(KindNewMessage)
	req.Len(live, 1)
	req.Equal("after join", live[0].(NewMessageEvent).Body)

	replayed := late.eventsOfKind(KindInitialMessages)[0].(InitialMessagesEvent).Messages
	req.Len(replayed, 1)
	req.Equal("before join", replayed[0].Body)
}

func TestCoordinator_DisconnectStopsDeliveries(t *testing.T) {
	req := require.New(t)
	coordinator, _, registry := newTestCoordinator(t)
	ctx := context.Background()

	a := newFakeSession("a")
	b := newFakeSession("b")
	coordinator.OnConnect(ctx, a)
	coordinator.OnConnect(ctx, b)

	coordinator.OnDisconnect(b)
	req.Equal(1, registry.Len())

	coordinator.OnMessage(ctx, a, "alice", "hi")
	req.Len(a.eventsOfKind(KindNewMessage), 1)
	req.Empty(b.eventsOfKind(KindNewMessage))

	// Disconnecting twice is harmless.
	coordinator.OnDisconnect(b)
	req.Equal(1, registry.Len())
}

func TestCoordinator_BrokenSessionIsDroppedOnConnect(t *testing.T) {
	req := require.New(t)
	coordinator, _, registry := newTestCoordinator(t)

	broken := newFakeSession("broken")
	broken.failErr = errors.New("half-closed transport")
	coordinator.OnConnect(context.Background(), broken)

	req.Equal(0, registry.Len())
}

func TestCoordinator_StatsCountPersistedMessages(t *testing.T) {
	req := require.New(t)
	coordinator, _, _ := newTestCoordinator(t)
	ctx := context.Background()

	s := newFakeSession("a")
	coordinator.OnConnect(ctx, s)
	coordinator.OnMessage(ctx, s, "alice", "one")
	coordinator.OnMessage(ctx, s, "alice", "two")

	stats := coordinator.Stats()
	req.Equal(1, stats.Sessions)
	req.Equal(uint64(2), stats.Persisted)
	req.Equal(uint64(0), stats.Unpersisted)
	req.False(stats.Degraded)
}

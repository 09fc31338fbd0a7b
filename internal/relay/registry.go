package relay

import (
	"sync"

	"github.com/rs/zerolog"
)

// Registry tracks the set of currently connected sessions. It is ephemeral
// and process-local: rebuilt from nothing on restart, no ordering across
// sessions.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]Session
	log      zerolog.Logger
}

func NewRegistry(log zerolog.Logger) *Registry {
	return &Registry{
		sessions: make(map[string]Session),
		log:      log,
	}
}

// Add registers a session. Adding an already-present session is a no-op,
// which absorbs duplicate connect events from the transport.
func (r *Registry) Add(s Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[s.ID()]; ok {
		return
	}
	r.sessions[s.ID()] = s
	r.log.Debug().Str("session", s.ID()).Int("total", len(r.sessions)).Msg("session registered")
}

// Remove deregisters a session by id. Removing an absent session is a
// no-op.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return
	}
	delete(r.sessions, id)
	r.log.Debug().Str("session", id).Int("total", len(r.sessions)).Msg("session unregistered")
}

// Len reports the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Snapshot returns the current session set as a copy. Sessions added after
// the snapshot is taken are not part of it.
func (r *Registry) Snapshot() []Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snapshot := make([]Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		snapshot = append(snapshot, s)
	}
	return snapshot
}

// Broadcast delivers event to every session registered when the snapshot
// was taken. The fan-out runs without holding the registry lock, so slow
// deliveries never stall connects or disconnects. A failed delivery is
// logged and the offending session removed; it never aborts the fan-out
// to the remaining sessions.
func (r *Registry) Broadcast(event Event) {
	for _, s := range r.Snapshot() {
		if err := s.Deliver(event); err != nil {
			r.log.Warn().
				Err(err).
				Str("session", s.ID()).
				Str("event", event.Kind()).
				Msg("delivery failed, dropping session")
			r.Remove(s.ID())
		}
	}
}

package relay

import "sync"

// fakeSession records every delivered event; failErr turns it into a
// broken transport.
type fakeSession struct {
	id string

	mu      sync.Mutex
	events  []Event
	failErr error
}

func newFakeSession(id string) *fakeSession {
	return &fakeSession{id: id}
}

func (s *fakeSession) ID() string { return s.id }

func (s *fakeSession) Deliver(event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	s.events = append(s.events, event)
	return nil
}

func (s *fakeSession) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

func (s *fakeSession) eventsOfKind(kind string) []Event {
	var out []Event
	for _, e := range s.Events() {
		if e.Kind() == kind {
			out = append(out, e)
		}
	}
	return out
}

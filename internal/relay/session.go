package relay

// Session is one live client connection as seen by the relay core: an
// opaque identifier plus a fan-out destination. It holds no message state.
// Deliver returns an error when the transport can no longer accept events,
// which schedules the session for removal from the registry.
type Session interface {
	ID() string
	Deliver(event Event) error
}

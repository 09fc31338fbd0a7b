package handlers

import (
	"encoding/json"
	"net/http"

	"chat-relay/internal/relay"
)

// RelayHandler exposes the read-only HTTP surface next to the websocket
// endpoint: the replay window and an operator health view.
type RelayHandler struct {
	history     *relay.HistoryLoader
	coordinator *relay.Coordinator
}

func NewRelayHandler(history *relay.HistoryLoader, coordinator *relay.Coordinator) *RelayHandler {
	return &RelayHandler{history: history, coordinator: coordinator}
}

// HandleMessages serves GET /messages: the same recent window a new
// session would receive, oldest first.
func (h *RelayHandler) HandleMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.history.Load(r.Context()))
}

// HandleHealth serves GET /healthz: coordinator counters and degraded
// state. Always 200; a degraded relay is still serving.
func (h *RelayHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.coordinator.Stats())
}

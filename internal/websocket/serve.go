package websocket

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"chat-relay/internal/relay"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The relay carries no auth; origins are filtered upstream if at all.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ServeWs upgrades an HTTP request to a websocket connection, registers
// the new session with the coordinator (which replays history to it) and
// starts the connection pumps.
func ServeWs(coordinator *relay.Coordinator, log zerolog.Logger, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := NewClient(uuid.NewString(), coordinator, conn, log)

	go client.WritePump()
	coordinator.OnConnect(context.Background(), client)
	go client.ReadPump()
}

package models

import "time"

// Message is one persisted chat event. ID is assigned by the store on
// insert and is monotonically increasing; CreatedAt is stamped by the
// server in UTC, never taken from the client.
type Message struct {
	ID        int64     `json:"id"`
	Author    string    `json:"author"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// AnonymousAuthor is used when the client payload carries no user name.
const AnonymousAuthor = "Anonymous"

package relay

import "chat-relay/internal/models"

// Wire type tags for events emitted back through the gateway.
const (
	KindInitialMessages = "initial_messages"
	KindNewMessage      = "new_message"
	KindChatCleared     = "chat_cleared"
	KindClearChatError  = "clear_chat_error"
)

// Event is anything deliverable to a session. Kind returns the wire type
// tag so the gateway can serialize without knowing the concrete type.
type Event interface {
	Kind() string
}

// InitialMessagesEvent replays recent history to a single newly connected
// session.
type InitialMessagesEvent struct {
	Type     string           `json:"type"`
	Messages []models.Message `json:"messages"`
}

func (e InitialMessagesEvent) Kind() string { return e.Type }

// NewInitialMessages never carries a nil slice so the wire payload is
// always a JSON array, even when history is empty or unavailable.
func NewInitialMessages(messages []models.Message) InitialMessagesEvent {
	if messages == nil {
		messages = []models.Message{}
	}
	return InitialMessagesEvent{Type: KindInitialMessages, Messages: messages}
}

// NewMessageEvent broadcasts one message, sender included.
type NewMessageEvent struct {
	Type string `json:"type"`
	models.Message
}

func (e NewMessageEvent) Kind() string { return e.Type }

func NewNewMessage(msg models.Message) NewMessageEvent {
	return NewMessageEvent{Type: KindNewMessage, Message: msg}
}

// ChatClearedEvent tells every session to wipe its local transcript.
type ChatClearedEvent struct {
	Type string `json:"type"`
}

func (e ChatClearedEvent) Kind() string { return e.Type }

func NewChatCleared() ChatClearedEvent {
	return ChatClearedEvent{Type: KindChatCleared}
}

// ClearChatErrorEvent is sent to the requesting session only, when a clear
// could not be committed.
type ClearChatErrorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (e ClearChatErrorEvent) Kind() string { return e.Type }

func NewClearChatError(message string) ClearChatErrorEvent {
	return ClearChatErrorEvent{Type: KindClearChatError, Message: message}
}

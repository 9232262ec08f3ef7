package wire

import (
	"encoding/json"
	"time"
)

// Client -> server events.
const (
	EventJoinRoom    = "join-room"
	EventSetAlias    = "set-alias"
	EventSendMessage = "send-message"
)

// Server -> client events.
const (
	EventUsersUpdated  = "users-updated"
	EventNewMessage    = "new-message"
	EventAliasRejected = "alias-rejected"
)

// Transport lifecycle events. They never travel over the wire; the client
// socket raises them locally.
const (
	EventConnect    = "connect"
	EventDisconnect = "disconnect"
)

// Envelope wraps every WS frame.
type Envelope struct {
	Event string          `json:"event"`          // e.g. "send-message"
	Body  json.RawMessage `json:"body,omitempty"` // arbitrary JSON value
}

// SendMessageBody is the body for "send-message".
type SendMessageBody struct {
	RoomID  string `json:"roomId"`
	Alias   string `json:"alias"`
	Message string `json:"message" validate:"required"`
}

// NewMessageBody is the body for "new-message".
type NewMessageBody struct {
	ID         string    `json:"id"`
	ChatroomID string    `json:"chatroomId"`
	Alias      string    `json:"alias"`
	Message    string    `json:"message"`
	Timestamp  time.Time `json:"timestamp"`
}

// AliasRejectedBody is the body for "alias-rejected".
type AliasRejectedBody struct {
	Reason string `json:"reason"`
}

// Encode marshals body and wraps it into an envelope frame.
func Encode(event string, body any) ([]byte, error) {
	env := Envelope{Event: event}
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		env.Body = raw
	}
	return json.Marshal(env)
}

// Decode parses a frame into its envelope.
func Decode(frame []byte) (Envelope, error) {
	var env Envelope
	err := json.Unmarshal(frame, &env)
	return env, err
}

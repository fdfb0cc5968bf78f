// Package protocol defines the websocket wire contract for CanaryTalk.
// Every frame is a single JSON object {"event": <name>, "data": <payload>}.
// The server never interprets encrypted content; it is carried verbatim.
package protocol

import "encoding/json"

// Event names sent by clients.
const (
	EventAuthenticate = "authenticate"
	EventSendMessage  = "send_message"
	EventTyping       = "typing"
)

// Event names emitted by the server.
const (
	EventAuthenticated   = "authenticated"
	EventAuthError       = "auth_error"
	EventError           = "error"
	EventMessageSent     = "message_sent"
	EventNewMessage      = "new_message"
	EventPendingMessages = "pending_messages"
	EventUserTyping      = "user_typing"
)

// Frame is one websocket message in either direction. Data is kept raw on
// the inbound path so each handler decodes its own payload.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ServerFrame is an outbound frame with a concrete payload.
type ServerFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// AuthenticateData is the payload of the first client frame.
type AuthenticateData struct {
	Token string `json:"token"`
}

// Authenticated acknowledges a successful handshake.
type Authenticated struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// ErrorData carries a domain error; the connection stays open.
type ErrorData struct {
	Error string `json:"error"`
}

// SendMessageData asks the server to relay opaque ciphertext.
type SendMessageData struct {
	ToUserID         string `json:"toUserId"`
	EncryptedContent string `json:"encryptedContent"`
}

// MessageSent is the sender's ack. Delivered reports only whether the
// recipient had a live connection at send time.
type MessageSent struct {
	MessageID string `json:"messageId"`
	Timestamp int64  `json:"timestamp"`
	Delivered bool   `json:"delivered"`
}

// NewMessage is the live-forwarded envelope for an online recipient.
type NewMessage struct {
	MessageID        string `json:"messageId"`
	FromUserID       string `json:"fromUserId"`
	FromUsername     string `json:"fromUsername"`
	EncryptedContent string `json:"encryptedContent"`
	Timestamp        int64  `json:"timestamp"`
}

// PendingMessage is one stored envelope replayed at connect time.
type PendingMessage struct {
	ID               string `json:"id"`
	FromUser         string `json:"from_user"`
	ToUser           string `json:"to_user"`
	EncryptedContent string `json:"encrypted_content"`
	Timestamp        int64  `json:"timestamp"`
}

// PendingMessages is the one-time flush batch, oldest first.
type PendingMessages struct {
	Messages []PendingMessage `json:"messages"`
}

// TypingData names the recipient of an ephemeral typing hint.
type TypingData struct {
	ToUserID string `json:"toUserId"`
}

// UserTyping is the forwarded typing hint.
type UserTyping struct {
	FromUserID   string `json:"fromUserId"`
	FromUsername string `json:"fromUsername"`
}

package chat

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/rochd1/the-final-progect/internal/messages"
)

// Event types carried in the envelope's "type" field.
const (
	EventJoin           = "join"
	EventSendMessage    = "sendMessage"
	EventReceiveMessage = "receiveMessage"
	EventTyping         = "typing"
	EventMessageRead    = "messageRead"
	EventSendAck        = "sendAck"
	EventPresence       = "presence"
	EventError          = "error"
)

var validate = validator.New()

// Envelope is the frame every websocket event travels in. Payload shapes
// are fixed per event type and validated on arrival.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// JoinPayload is accepted for wire compatibility; the room is keyed by
// the authenticated user, not by this field.
type JoinPayload struct {
	UserID int64 `json:"user_id" validate:"required"`
}

type SendPayload struct {
	ClientID string `json:"client_id,omitempty"` // provisional id, echoed in the ack
	From     int64  `json:"from,omitempty"`      // ignored, sender is the connection owner
	To       int64  `json:"to" validate:"required"`
	Content  string `json:"content" validate:"required"`
}

type TypingPayload struct {
	SenderID   int64 `json:"sender_id,omitempty"`
	ReceiverID int64 `json:"receiver_id" validate:"required"`
}

type ReadPayload struct {
	MessageID int64 `json:"message_id" validate:"required"`
}

// AckPayload answers a send-intent on the originating connection only.
// Exactly one of Error and Message is set.
type AckPayload struct {
	ClientID string            `json:"client_id,omitempty"`
	Error    string            `json:"error,omitempty"`
	Message  *messages.Message `json:"message,omitempty"`
}

type ReceiptPayload struct {
	MessageID int64 `json:"message_id"`
	ReaderID  int64 `json:"reader_id"`
}

type PresencePayload struct {
	UserID     int64  `json:"user_id"`
	Status     string `json:"status"`
	LastActive string `json:"last_active,omitempty"`
}

type ErrorPayload struct {
	Event   string `json:"event"`
	Message string `json:"message"`
}

// Encode marshals an event envelope ready for the wire.
func Encode(eventType string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: eventType, Data: data})
}

// Decode unmarshals and validates a typed payload from an envelope.
func Decode[T any](raw json.RawMessage) (T, error) {
	var p T
	if len(raw) == 0 {
		return p, fmt.Errorf("missing payload")
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("malformed payload: %w", err)
	}
	if err := validate.Struct(&p); err != nil {
		return p, fmt.Errorf("invalid payload: %w", err)
	}
	return p, nil
}

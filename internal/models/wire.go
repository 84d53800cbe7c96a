package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Envelope is the frame format exchanged with the widget server.
type Envelope struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"` // Unix milliseconds
}

// NewEnvelope marshals payload into an envelope stamped with now.
func NewEnvelope(t MessageType, payload any, now time.Time) (Envelope, error) {
	env := Envelope{Type: t, Timestamp: now.UnixMilli()}
	if payload == nil {
		return env, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to marshal %s payload: %w", t, err)
	}
	env.Data = data
	return env, nil
}

type MessageType string

const (
	// Outbound.
	MessageTypeSendMessage MessageType = "send_message"
	MessageTypeEndSession  MessageType = "end_session"
	MessageTypeTyping      MessageType = "typing"
	MessageTypePing        MessageType = "ping"

	// Inbound.
	MessageTypeSessionStarted  MessageType = "session_started"
	MessageTypeMessageReceived MessageType = "message_received"
	MessageTypeSessionEnded    MessageType = "session_ended"
	MessageTypeTypingStarted   MessageType = "typing_started"
	MessageTypeTypingStopped   MessageType = "typing_stopped"
	MessageTypePresenceUpdate  MessageType = "presence_update"
)

// Outbound payloads.

type SendMessageData struct {
	SessionID string `json:"sessionId"`
	Content   string `json:"content"`
}

type EndSessionData struct {
	SessionID string `json:"sessionId"`
}

type TypingData struct {
	IsTyping bool `json:"isTyping"`
}

type PingData struct {
	Timestamp int64 `json:"timestamp"`
}

// Inbound is one decoded server event. The set of implementations is closed:
// SessionStarted, MessageReceived, SessionEnded, TypingStarted,
// TypingStopped, PresenceUpdate and Unrecognized.
type Inbound interface {
	inbound()
}

type SessionStarted struct {
	Session ChatSession
}

type MessageReceived struct {
	SessionID string      `json:"sessionId"`
	Message   ChatMessage `json:"message"`
}

type SessionEnded struct {
	SessionID string     `json:"sessionId"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`
}

type TypingStarted struct {
	UserID string `json:"userId"`
}

type TypingStopped struct {
	UserID string `json:"userId"`
}

type PresenceUpdate struct {
	UserID string `json:"userId"`
	Status string `json:"status"`
}

// Unrecognized carries a frame whose type this client does not know.
// It is kept so callers can log it; it is never an error.
type Unrecognized struct {
	Type MessageType
	Data json.RawMessage
}

func (SessionStarted) inbound()  {}
func (MessageReceived) inbound() {}
func (SessionEnded) inbound()    {}
func (TypingStarted) inbound()   {}
func (TypingStopped) inbound()   {}
func (PresenceUpdate) inbound()  {}
func (Unrecognized) inbound()    {}

// DecodeInbound turns an envelope into its typed event.
// Unknown types decode to Unrecognized; malformed payloads of known types fail.
func DecodeInbound(env Envelope) (Inbound, error) {
	var (
		in  Inbound
		err error
	)
	switch env.Type {
	case MessageTypeSessionStarted:
		var s SessionStarted
		err = unmarshalData(env, &s.Session)
		in = s
	case MessageTypeMessageReceived:
		var m MessageReceived
		err = unmarshalData(env, &m)
		in = m
	case MessageTypeSessionEnded:
		var e SessionEnded
		err = unmarshalData(env, &e)
		in = e
	case MessageTypeTypingStarted:
		var t TypingStarted
		err = unmarshalData(env, &t)
		in = t
	case MessageTypeTypingStopped:
		var t TypingStopped
		err = unmarshalData(env, &t)
		in = t
	case MessageTypePresenceUpdate:
		var p PresenceUpdate
		err = unmarshalData(env, &p)
		in = p
	default:
		return Unrecognized{Type: env.Type, Data: env.Data}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", env.Type, err)
	}
	return in, nil
}

func unmarshalData(env Envelope, v any) error {
	if len(env.Data) == 0 {
		return fmt.Errorf("missing data")
	}
	return json.Unmarshal(env.Data, v)
}

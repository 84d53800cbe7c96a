package ws

import (
	"time"

	"chatelly/internal/models"
)

// Event is emitted by Manager to its subscribers.
type Event interface {
	event()
}

// OpenEvent fires every time the connection reaches OPEN.
type OpenEvent struct{}

// CloseEvent fires when an open connection goes away.
// Err is nil when the close was requested with Disconnect.
type CloseEvent struct {
	Err error
}

// ErrorEvent reports a failed dial.
type ErrorEvent struct {
	Err error
}

// MessageEvent carries one inbound frame.
type MessageEvent struct {
	Envelope models.Envelope
	Inbound  models.Inbound
}

// TypingEvent carries the full set of typing users after a change.
type TypingEvent struct {
	Users []string
}

type PresenceEvent struct {
	UserID   string
	Presence models.Presence
}

// ReconnectingEvent announces a scheduled reconnect attempt.
type ReconnectingEvent struct {
	Attempt int
	Delay   time.Duration
}

// ReconnectFailedEvent means the attempt cap was reached and the manager
// stays closed until the next Connect.
type ReconnectFailedEvent struct {
	Attempts int
}

func (OpenEvent) event()            {}
func (CloseEvent) event()           {}
func (ErrorEvent) event()           {}
func (MessageEvent) event()         {}
func (TypingEvent) event()          {}
func (PresenceEvent) event()        {}
func (ReconnectingEvent) event()    {}
func (ReconnectFailedEvent) event() {}

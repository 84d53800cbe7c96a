package models

import (
	"errors"
	"time"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrNotConnected     = errors.New("not connected")
	ErrInvalidWidgetKey = errors.New("invalid widget key")
)

type SessionStatus string

const (
	SessionStatusActive   SessionStatus = "active"
	SessionStatusEnded    SessionStatus = "ended"
	SessionStatusArchived SessionStatus = "archived"
)

type Sender string

const (
	SenderUser    Sender = "user"
	SenderVisitor Sender = "visitor"
)

// ChatSession is one visitor conversation on a website.
type ChatSession struct {
	ID           string        `json:"id"`
	WebsiteID    string        `json:"websiteId"`
	VisitorID    string        `json:"visitorId"`
	VisitorName  string        `json:"visitorName,omitempty"`
	VisitorEmail string        `json:"visitorEmail,omitempty"`
	Status       SessionStatus `json:"status"`
	StartedAt    time.Time     `json:"startedAt"`
	EndedAt      *time.Time    `json:"endedAt,omitempty"`
	Messages     []ChatMessage `json:"messages"`
	UnreadCount  int           `json:"unreadCount"`
}

// Clone returns a copy that shares nothing mutable with s.
func (s *ChatSession) Clone() *ChatSession {
	c := *s
	c.Messages = make([]ChatMessage, len(s.Messages))
	copy(c.Messages, s.Messages)
	if s.EndedAt != nil {
		t := *s.EndedAt
		c.EndedAt = &t
	}
	return &c
}

// ChatMessage is a single line in a session log.
type ChatMessage struct {
	ID         string    `json:"id"`
	Content    string    `json:"content"`
	Sender     Sender    `json:"sender"`
	Timestamp  time.Time `json:"timestamp"`
	Translated bool      `json:"translated,omitempty"`
	Language   string    `json:"language,omitempty"`
}

// Presence is the last known status of a user.
type Presence struct {
	Status   string    `json:"status"`
	LastSeen time.Time `json:"lastSeen"`
}

// ConnectionState mirrors the readiness of the underlying socket.
type ConnectionState int

const (
	StateClosed ConnectionState = iota
	StateConnecting
	StateOpen
)

func (s ConnectionState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

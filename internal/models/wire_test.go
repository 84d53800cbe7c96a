package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestDecodeInbound(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		check func(t *testing.T, in Inbound)
	}{
		{
			name:  "session started",
			frame: `{"type":"session_started","data":{"id":"s1","websiteId":"w1","visitorId":"v1","visitorName":"Ann","startedAt":"2024-01-02T03:04:05Z"},"timestamp":1}`,
			check: func(t *testing.T, in Inbound) {
				s, ok := in.(SessionStarted)
				if !ok {
					t.Fatalf("expected SessionStarted, got %T", in)
				}
				if s.Session.ID != "s1" || s.Session.VisitorName != "Ann" {
					t.Errorf("unexpected session: %+v", s.Session)
				}
			},
		},
		{
			name:  "message received",
			frame: `{"type":"message_received","data":{"sessionId":"s1","message":{"id":"m1","content":"hi","sender":"visitor","timestamp":"2024-01-02T03:04:05Z"}},"timestamp":1}`,
			check: func(t *testing.T, in Inbound) {
				m, ok := in.(MessageReceived)
				if !ok {
					t.Fatalf("expected MessageReceived, got %T", in)
				}
				if m.SessionID != "s1" || m.Message.Content != "hi" || m.Message.Sender != SenderVisitor {
					t.Errorf("unexpected message: %+v", m)
				}
			},
		},
		{
			name:  "session ended without time",
			frame: `{"type":"session_ended","data":{"sessionId":"s1"},"timestamp":1}`,
			check: func(t *testing.T, in Inbound) {
				e, ok := in.(SessionEnded)
				if !ok {
					t.Fatalf("expected SessionEnded, got %T", in)
				}
				if e.EndedAt != nil {
					t.Errorf("expected nil EndedAt, got %v", e.EndedAt)
				}
			},
		},
		{
			name:  "typing started",
			frame: `{"type":"typing_started","data":{"userId":"v1"},"timestamp":1}`,
			check: func(t *testing.T, in Inbound) {
				if ts, ok := in.(TypingStarted); !ok || ts.UserID != "v1" {
					t.Errorf("unexpected decode: %#v", in)
				}
			},
		},
		{
			name:  "presence",
			frame: `{"type":"presence_update","data":{"userId":"v1","status":"away"},"timestamp":1}`,
			check: func(t *testing.T, in Inbound) {
				if p, ok := in.(PresenceUpdate); !ok || p.Status != "away" {
					t.Errorf("unexpected decode: %#v", in)
				}
			},
		},
		{
			name:  "unknown type",
			frame: `{"type":"visitor_rated","data":{"score":5},"timestamp":1}`,
			check: func(t *testing.T, in Inbound) {
				u, ok := in.(Unrecognized)
				if !ok {
					t.Fatalf("expected Unrecognized, got %T", in)
				}
				if u.Type != "visitor_rated" {
					t.Errorf("expected type visitor_rated, got %s", u.Type)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var env Envelope
			if err := json.Unmarshal([]byte(tt.frame), &env); err != nil {
				t.Fatalf("bad frame: %v", err)
			}
			in, err := DecodeInbound(env)
			if err != nil {
				t.Fatalf("DecodeInbound failed: %v", err)
			}
			tt.check(t, in)
		})
	}
}

func TestDecodeInbound_Malformed(t *testing.T) {
	_, err := DecodeInbound(Envelope{Type: MessageTypeMessageReceived, Data: json.RawMessage(`"nope"`)})
	if err == nil {
		t.Error("expected error for malformed payload")
	}

	_, err = DecodeInbound(Envelope{Type: MessageTypeSessionEnded})
	if err == nil {
		t.Error("expected error for missing data")
	}
}

func TestNewEnvelope(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	env, err := NewEnvelope(MessageTypeSendMessage, SendMessageData{SessionID: "s1", Content: "hello"}, now)
	if err != nil {
		t.Fatalf("NewEnvelope failed: %v", err)
	}
	if env.Timestamp != 1700000000123 {
		t.Errorf("expected timestamp in ms, got %d", env.Timestamp)
	}

	raw, err := json.Marshal(env)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"type":"send_message","data":{"sessionId":"s1","content":"hello"},"timestamp":1700000000123}`
	if string(raw) != want {
		t.Errorf("unexpected wire form:\n got %s\nwant %s", raw, want)
	}
}

func TestChatSession_Clone(t *testing.T) {
	ended := time.Now()
	s := &ChatSession{ID: "s1", EndedAt: &ended, Messages: []ChatMessage{{ID: "m1"}}}
	c := s.Clone()
	c.Messages[0].ID = "changed"
	*c.EndedAt = ended.Add(time.Hour)

	if s.Messages[0].ID != "m1" {
		t.Error("clone shares messages with original")
	}
	if !s.EndedAt.Equal(ended) {
		t.Error("clone shares EndedAt with original")
	}
}

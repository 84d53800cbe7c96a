package session

import (
	"log/slog"

	"chatelly/internal/models"
	"chatelly/internal/ws"
)

func (s *Store) handleEvent(ev ws.Event) {
	switch e := ev.(type) {
	case ws.OpenEvent:
		s.setStatus(StatusConnected)
	case ws.CloseEvent:
		if e.Err == nil {
			s.setStatus(StatusDisconnected)
		} else {
			s.setStatus(StatusConnecting)
		}
	case ws.ReconnectingEvent:
		s.setStatus(StatusConnecting)
	case ws.ErrorEvent, ws.ReconnectFailedEvent:
		s.setStatus(StatusError)
	case ws.TypingEvent:
		s.update(func() bool {
			s.typingUsers = e.Users
			return true
		})
	case ws.PresenceEvent:
		s.notify()
	case ws.MessageEvent:
		s.apply(e.Inbound)
	}
}

// apply maps one server event onto the session list.
func (s *Store) apply(in models.Inbound) {
	switch m := in.(type) {
	case models.SessionStarted:
		s.startSession(m.Session)
	case models.MessageReceived:
		s.receiveMessage(m.SessionID, m.Message)
	case models.SessionEnded:
		s.endSession(m)
	case models.TypingStarted:
		if conn := s.connection(); conn != nil {
			conn.SetTyping(m.UserID, true)
		}
	case models.TypingStopped:
		if conn := s.connection(); conn != nil {
			conn.SetTyping(m.UserID, false)
		}
	case models.PresenceUpdate:
		if conn := s.connection(); conn != nil {
			conn.UpdatePresence(m.UserID, m.Status)
		}
	case models.Unrecognized:
		slog.Info("ignoring unrecognized event", "type", m.Type)
	default:
		slog.Warn("unhandled inbound event", "event", in)
	}
}

func (s *Store) startSession(started models.ChatSession) {
	cs := started
	cs.Status = models.SessionStatusActive
	cs.Messages = []models.ChatMessage{}
	cs.UnreadCount = 0
	cs.EndedAt = nil
	if cs.StartedAt.IsZero() {
		cs.StartedAt = s.now()
	}

	added := s.update(func() bool {
		if s.indexLocked(cs.ID) >= 0 {
			return false
		}
		s.appendLocked(&cs)
		return true
	})
	if !added {
		slog.Warn("duplicate session_started ignored", "session_id", cs.ID)
	}
}

func (s *Store) receiveMessage(sessionID string, msg models.ChatMessage) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = s.now()
	}

	found := s.update(func() bool {
		i := s.indexLocked(sessionID)
		if i < 0 {
			return false
		}
		selected := s.selectedID == sessionID
		s.replaceLocked(i, func(cs *models.ChatSession) {
			cs.Messages = append(cs.Messages, msg)
			if !selected {
				cs.UnreadCount++
			}
		})
		return true
	})
	if !found {
		slog.Warn("message for unknown session ignored", "session_id", sessionID, "message_id", msg.ID)
	}
}

func (s *Store) endSession(ended models.SessionEnded) {
	endedAt := s.now()
	if ended.EndedAt != nil {
		endedAt = *ended.EndedAt
	}

	found := s.update(func() bool {
		i := s.indexLocked(ended.SessionID)
		if i < 0 {
			return false
		}
		s.replaceLocked(i, func(cs *models.ChatSession) {
			cs.Status = models.SessionStatusEnded
			cs.EndedAt = &endedAt
		})
		return true
	})
	if !found {
		slog.Warn("session_ended for unknown session ignored", "session_id", ended.SessionID)
	}
}

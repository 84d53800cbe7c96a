package storage

import (
	"fmt"
	"sort"
	"time"

	"chatelly/internal/models"

	"go.etcd.io/bbolt"
)

var (
	bucketSessions = []byte("sessions")
	bucketMessages = []byte("messages")
)

// BboltStorage is the local archive of sessions the operator archived.
type BboltStorage struct {
	db *bbolt.DB
}

func NewBboltStorage(path string) (*BboltStorage, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bbolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketSessions); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(bucketMessages); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	return &BboltStorage{db: db}, nil
}

func (s *BboltStorage) Close() error {
	return s.db.Close()
}

// SaveSession stores the session and replaces all of its messages.
func (s *BboltStorage) SaveSession(session models.ChatSession) error {
	if session.ID == "" {
		return fmt.Errorf("session missing id")
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		dbSession := toDBSession(session)
		data, err := dbSession.MarshalBinary()
		if err != nil {
			return fmt.Errorf("failed to marshal session: %w", err)
		}
		if err := tx.Bucket(bucketSessions).Put(dbSession.Key(), data); err != nil {
			return fmt.Errorf("failed to put session: %w", err)
		}

		mainMsgBucket := tx.Bucket(bucketMessages)
		if mainMsgBucket.Bucket(dbSession.Key()) != nil {
			if err := mainMsgBucket.DeleteBucket(dbSession.Key()); err != nil {
				return fmt.Errorf("failed to clear messages: %w", err)
			}
		}
		sessionBucket, err := mainMsgBucket.CreateBucket(dbSession.Key())
		if err != nil {
			return fmt.Errorf("failed to create session bucket: %w", err)
		}

		for i, msg := range session.Messages {
			dbMessage := DBMessage{
				Index:      int64(i),
				ID:         msg.ID,
				Content:    msg.Content,
				Sender:     string(msg.Sender),
				Timestamp:  msg.Timestamp.UnixMilli(),
				Translated: msg.Translated,
				Language:   msg.Language,
			}
			data, err := dbMessage.MarshalBinary()
			if err != nil {
				return fmt.Errorf("failed to marshal message: %w", err)
			}
			if err := sessionBucket.Put(dbMessage.Key(), data); err != nil {
				return fmt.Errorf("failed to put message: %w", err)
			}
		}
		return nil
	})
}

// GetSession loads a session with its messages in their original order.
func (s *BboltStorage) GetSession(id string) (models.ChatSession, error) {
	var session models.ChatSession
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketSessions).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("session %s: %w", id, models.ErrNotFound)
		}
		var dbSession DBSession
		if err := dbSession.UnmarshalBinary(data); err != nil {
			return fmt.Errorf("failed to unmarshal session: %w", err)
		}
		session = fromDBSession(dbSession)

		sessionBucket := tx.Bucket(bucketMessages).Bucket([]byte(id))
		if sessionBucket == nil {
			return nil
		}
		return sessionBucket.ForEach(func(k, v []byte) error {
			var dbMsg DBMessage
			if err := dbMsg.UnmarshalBinary(v); err != nil {
				return err
			}
			session.Messages = append(session.Messages, models.ChatMessage{
				ID:         dbMsg.ID,
				Content:    dbMsg.Content,
				Sender:     models.Sender(dbMsg.Sender),
				Timestamp:  time.UnixMilli(dbMsg.Timestamp).UTC(),
				Translated: dbMsg.Translated,
				Language:   dbMsg.Language,
			})
			return nil
		})
	})
	return session, err
}

// ListSessions returns archived sessions without messages, oldest first.
func (s *BboltStorage) ListSessions() ([]models.ChatSession, error) {
	var sessions []models.ChatSession
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSessions).ForEach(func(k, v []byte) error {
			var dbSession DBSession
			if err := dbSession.UnmarshalBinary(v); err != nil {
				return err
			}
			sessions = append(sessions, fromDBSession(dbSession))
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].StartedAt.Before(sessions[j].StartedAt)
	})
	return sessions, nil
}

func toDBSession(session models.ChatSession) DBSession {
	dbSession := DBSession{
		ID:           session.ID,
		WebsiteID:    session.WebsiteID,
		VisitorID:    session.VisitorID,
		VisitorName:  session.VisitorName,
		VisitorEmail: session.VisitorEmail,
		Status:       string(session.Status),
		StartedAt:    session.StartedAt.UnixMilli(),
	}
	if session.EndedAt != nil {
		dbSession.EndedAt = session.EndedAt.UnixMilli()
	}
	return dbSession
}

func fromDBSession(dbSession DBSession) models.ChatSession {
	session := models.ChatSession{
		ID:           dbSession.ID,
		WebsiteID:    dbSession.WebsiteID,
		VisitorID:    dbSession.VisitorID,
		VisitorName:  dbSession.VisitorName,
		VisitorEmail: dbSession.VisitorEmail,
		Status:       models.SessionStatus(dbSession.Status),
		StartedAt:    time.UnixMilli(dbSession.StartedAt).UTC(),
		Messages:     []models.ChatMessage{},
	}
	if dbSession.EndedAt != 0 {
		endedAt := time.UnixMilli(dbSession.EndedAt).UTC()
		session.EndedAt = &endedAt
	}
	return session
}

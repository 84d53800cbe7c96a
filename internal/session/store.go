package session

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"chatelly/internal/content"
	"chatelly/internal/models"
	"chatelly/internal/ws"

	"github.com/google/uuid"
)

type Status string

const (
	StatusConnected    Status = "connected"
	StatusConnecting   Status = "connecting"
	StatusError        Status = "error"
	StatusDisconnected Status = "disconnected"
)

// Connection is the part of ws.Manager the store drives.
type Connection interface {
	Connect(ctx context.Context) error
	Disconnect()
	SendTyped(t models.MessageType, payload any) error
	SetTyping(userID string, isTyping bool)
	TypingUsers() []string
	UpdatePresence(userID, status string)
	Presence(userID string) (models.Presence, bool)
	Subscribe(fn func(ws.Event)) (unsubscribe func())
}

// Archive persists sessions the operator archived.
type Archive interface {
	SaveSession(session models.ChatSession) error
}

type Dialer func(cfg ws.Config) (Connection, error)

type Config struct {
	Host   string
	Scheme string // ws or wss, defaults to ws
	// Manager carries reconnect and heartbeat settings; URL is filled per widget.
	Manager ws.Config
}

type Option func(*Store)

// WithDialer replaces how the store builds its connection manager.
func WithDialer(d Dialer) Option {
	return func(s *Store) { s.newConn = d }
}

func WithArchive(a Archive) Option {
	return func(s *Store) { s.archive = a }
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store keeps the operator's view of chat sessions for one widget.
// It is the only writer of the session list; readers get copies.
type Store struct {
	cfg     Config
	newConn Dialer
	archive Archive
	now     func() time.Time

	mu          sync.RWMutex
	conn        Connection
	unsubscribe func()
	widgetKey   string
	status      Status
	sessions    []*models.ChatSession
	selectedID  string
	typingUsers []string

	watchersMu sync.RWMutex
	watchers   map[uuid.UUID]func()
}

func NewStore(cfg Config, opts ...Option) *Store {
	if cfg.Scheme == "" {
		cfg.Scheme = "ws"
	}
	s := &Store{
		cfg: cfg,
		newConn: func(c ws.Config) (Connection, error) {
			m, err := ws.NewManager(c)
			if err != nil {
				return nil, err
			}
			return m, nil
		},
		now:      time.Now,
		status:   StatusDisconnected,
		watchers: make(map[uuid.UUID]func()),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WidgetURL builds the socket endpoint for a widget key.
func WidgetURL(scheme, host, widgetKey string) string {
	u := url.URL{Scheme: scheme, Host: host, Path: "/widget/ws/" + widgetKey}
	return u.String()
}

// Connect attaches the store to the widget identified by widgetKey,
// replacing any previous connection. The manager is torn down again if the
// connection cannot be established. Concurrent calls leave exactly one
// connection attached.
func (s *Store) Connect(ctx context.Context, widgetKey string) error {
	if err := content.ValidateWidgetKey(widgetKey); err != nil {
		return err
	}

	cfg := s.cfg.Manager
	cfg.URL = WidgetURL(s.cfg.Scheme, s.cfg.Host, widgetKey)
	conn, err := s.newConn(cfg)
	if err != nil {
		return fmt.Errorf("failed to create connection: %w", err)
	}
	unsubscribe := conn.Subscribe(func(ev ws.Event) {
		// Events racing a replacement belong to a connection the store dropped.
		if s.connection() != conn {
			return
		}
		s.handleEvent(ev)
	})

	s.mu.Lock()
	old, oldUnsubscribe := s.conn, s.unsubscribe
	s.conn = conn
	s.unsubscribe = unsubscribe
	s.widgetKey = widgetKey
	s.status = StatusConnecting
	s.typingUsers = nil
	s.mu.Unlock()

	if old != nil {
		if oldUnsubscribe != nil {
			oldUnsubscribe()
		}
		old.Disconnect()
	}
	s.notify()

	if err := conn.Connect(ctx); err != nil {
		s.release(conn)
		s.setStatus(StatusError)
		return fmt.Errorf("failed to connect widget %s: %w", widgetKey, err)
	}

	slog.Info("widget connected", "widget_key", widgetKey, "url", cfg.URL)
	return nil
}

// Disconnect tears the connection down. Calling it when not connected is a no-op.
func (s *Store) Disconnect() {
	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()

	if conn == nil {
		return
	}
	s.release(conn)
	s.setStatus(StatusDisconnected)
}

// release drops conn if it is still the current connection.
func (s *Store) release(conn Connection) {
	s.mu.Lock()
	if s.conn != conn {
		s.mu.Unlock()
		return
	}
	unsubscribe := s.unsubscribe
	s.conn = nil
	s.unsubscribe = nil
	s.typingUsers = nil
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	conn.Disconnect()
}

func (s *Store) connection() Connection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conn
}

// Connected reports whether a connection manager is attached.
func (s *Store) Connected() bool {
	return s.connection() != nil
}

// SendMessage asks the server to post content to a session. The message is
// not added locally; it shows up when the server echoes it back. Without a
// connection the call is logged and dropped.
func (s *Store) SendMessage(sessionID, text string) error {
	conn := s.connection()
	if conn == nil {
		slog.Warn("send message skipped: not connected", "session_id", sessionID)
		return nil
	}
	return conn.SendTyped(models.MessageTypeSendMessage, models.SendMessageData{
		SessionID: sessionID,
		Content:   text,
	})
}

// EndSession asks the server to end a session; the status changes when the
// session_ended event arrives.
func (s *Store) EndSession(sessionID string) error {
	conn := s.connection()
	if conn == nil {
		slog.Warn("end session skipped: not connected", "session_id", sessionID)
		return nil
	}
	return conn.SendTyped(models.MessageTypeEndSession, models.EndSessionData{SessionID: sessionID})
}

// SetTyping relays the operator's typing state.
func (s *Store) SetTyping(isTyping bool) error {
	conn := s.connection()
	if conn == nil {
		return nil
	}
	return conn.SendTyped(models.MessageTypeTyping, models.TypingData{IsTyping: isTyping})
}

// SelectSession makes a session current and clears its unread counter.
// Unknown ids are ignored.
func (s *Store) SelectSession(sessionID string) {
	changed := s.update(func() bool {
		i := s.indexLocked(sessionID)
		if i < 0 {
			return false
		}
		s.selectedID = sessionID
		if s.sessions[i].UnreadCount != 0 {
			s.replaceLocked(i, func(cs *models.ChatSession) { cs.UnreadCount = 0 })
		}
		return true
	})
	if !changed {
		slog.Debug("select ignored: unknown session", "session_id", sessionID)
	}
}

// ArchiveSession marks a session archived locally. Nothing is sent to the
// server. When an archive is configured the snapshot is saved there too.
func (s *Store) ArchiveSession(sessionID string) error {
	var snapshot models.ChatSession
	found := s.update(func() bool {
		i := s.indexLocked(sessionID)
		if i < 0 {
			return false
		}
		s.replaceLocked(i, func(cs *models.ChatSession) { cs.Status = models.SessionStatusArchived })
		snapshot = *s.sessions[i].Clone()
		return true
	})
	if !found {
		return fmt.Errorf("session %s: %w", sessionID, models.ErrNotFound)
	}

	if s.archive != nil {
		if err := s.archive.SaveSession(snapshot); err != nil {
			return fmt.Errorf("failed to archive session %s: %w", sessionID, err)
		}
	}
	return nil
}

// Sessions returns copies of all sessions in arrival order.
func (s *Store) Sessions() []models.ChatSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.ChatSession, len(s.sessions))
	for i, cs := range s.sessions {
		out[i] = *cs.Clone()
	}
	return out
}

func (s *Store) Session(sessionID string) (models.ChatSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.indexLocked(sessionID)
	if i < 0 {
		return models.ChatSession{}, false
	}
	return *s.sessions[i].Clone(), true
}

func (s *Store) SelectedSessionID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selectedID
}

func (s *Store) TypingUsers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string{}, s.typingUsers...)
}

func (s *Store) Presence(userID string) (models.Presence, bool) {
	conn := s.connection()
	if conn == nil {
		return models.Presence{}, false
	}
	return conn.Presence(userID)
}

func (s *Store) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *Store) WidgetKey() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.widgetKey
}

// OnChange registers fn to run after every state change.
func (s *Store) OnChange(fn func()) (unsubscribe func()) {
	id := uuid.New()
	s.watchersMu.Lock()
	s.watchers[id] = fn
	s.watchersMu.Unlock()

	return func() {
		s.watchersMu.Lock()
		delete(s.watchers, id)
		s.watchersMu.Unlock()
	}
}

func (s *Store) notify() {
	s.watchersMu.RLock()
	fns := make([]func(), 0, len(s.watchers))
	for _, fn := range s.watchers {
		fns = append(fns, fn)
	}
	s.watchersMu.RUnlock()

	for _, fn := range fns {
		fn()
	}
}

func (s *Store) setStatus(status Status) {
	s.update(func() bool {
		if s.status == status {
			return false
		}
		s.status = status
		return true
	})
}

// update runs fn under the write lock and notifies watchers if it reports a change.
func (s *Store) update(fn func() bool) bool {
	s.mu.Lock()
	changed := fn()
	s.mu.Unlock()
	if changed {
		s.notify()
	}
	return changed
}

func (s *Store) indexLocked(sessionID string) int {
	for i, cs := range s.sessions {
		if cs.ID == sessionID {
			return i
		}
	}
	return -1
}

// replaceLocked swaps session i for a modified copy in a new slice, so
// earlier snapshots of the slice and of the session stay untouched.
func (s *Store) replaceLocked(i int, mutate func(cs *models.ChatSession)) {
	next := make([]*models.ChatSession, len(s.sessions))
	copy(next, s.sessions)
	cs := next[i].Clone()
	mutate(cs)
	next[i] = cs
	s.sessions = next
}

func (s *Store) appendLocked(cs *models.ChatSession) {
	next := make([]*models.ChatSession, len(s.sessions), len(s.sessions)+1)
	copy(next, s.sessions)
	s.sessions = append(next, cs)
}

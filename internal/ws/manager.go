package ws

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"chatelly/internal/models"

	"github.com/c-pro/geche"
	"github.com/google/uuid"
)

var errDisconnected = errors.New("disconnected while connecting")

// Timer is a scheduled callback that can be cancelled.
type Timer interface {
	Stop() bool
}

type AfterFunc func(d time.Duration, f func()) Timer

func timeAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

type Option func(*Manager)

func WithDialer(dial DialFunc) Option {
	return func(m *Manager) { m.dial = dial }
}

func WithAfterFunc(af AfterFunc) Option {
	return func(m *Manager) { m.afterFunc = af }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// Manager owns one WebSocket connection: dialing, reconnecting with
// exponential backoff, heartbeats, an offline send queue and the typing and
// presence caches.
type Manager struct {
	cfg       Config
	dial      DialFunc
	afterFunc AfterFunc
	now       func() time.Time

	mu                sync.Mutex
	conn              Conn
	state             models.ConnectionState
	manual            bool
	gen               uint64 // bumped by Disconnect to invalidate timers and dials
	reconnectAttempts int
	reconnectTimer    Timer
	stopHeartbeat     context.CancelFunc
	pending           *attempt
	queue             []models.Envelope

	writeMu sync.Mutex
	flushMu sync.Mutex

	typing   geche.Geche[string, struct{}]
	presence geche.Geche[string, models.Presence]

	listenersMu sync.RWMutex
	listeners   map[uuid.UUID]func(Event)
}

// attempt is one in-flight dial shared by every Connect caller.
type attempt struct {
	done chan struct{}
	once sync.Once
	err  error
}

func (a *attempt) finish(err error) {
	a.once.Do(func() {
		a.err = err
		close(a.done)
	})
}

func (a *attempt) wait(ctx context.Context) error {
	select {
	case <-a.done:
		return a.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func NewManager(cfg Config, opts ...Option) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m := &Manager{
		cfg:       cfg,
		dial:      Dial,
		afterFunc: timeAfterFunc,
		now:       time.Now,
		state:     models.StateClosed,
		typing:    geche.NewMapCache[string, struct{}](),
		presence:  geche.NewMapCache[string, models.Presence](),
		listeners: make(map[uuid.UUID]func(Event)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

func (m *Manager) Config() Config {
	return m.cfg
}

func (m *Manager) State() models.ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) ReconnectAttempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reconnectAttempts
}

// Subscribe registers fn for every event. Handlers run on the goroutine that
// produced the event and must not block.
func (m *Manager) Subscribe(fn func(Event)) (unsubscribe func()) {
	id := uuid.New()
	m.listenersMu.Lock()
	m.listeners[id] = fn
	m.listenersMu.Unlock()

	return func() {
		m.listenersMu.Lock()
		delete(m.listeners, id)
		m.listenersMu.Unlock()
	}
}

func (m *Manager) emit(ev Event) {
	m.listenersMu.RLock()
	fns := make([]func(Event), 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.listenersMu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// Connect dials the server unless the manager is already open or connecting.
// Callers that arrive while a dial is in flight wait for its outcome.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.state == models.StateOpen {
		m.mu.Unlock()
		return nil
	}
	if a := m.pending; a != nil {
		m.mu.Unlock()
		return a.wait(ctx)
	}

	m.manual = false
	m.stopReconnectLocked()
	a := m.beginAttemptLocked()
	gen := m.gen
	m.mu.Unlock()

	go m.dialAndOpen(ctx, a, gen, false)
	return a.wait(ctx)
}

// Disconnect closes the connection and stops all timers. It never triggers
// a reconnect and is safe to call repeatedly.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.manual = true
	m.gen++
	m.stopReconnectLocked()
	m.stopHeartbeatLocked()
	conn := m.conn
	m.conn = nil
	m.state = models.StateClosed
	pending := m.pending
	m.pending = nil
	m.mu.Unlock()

	if pending != nil {
		pending.finish(errDisconnected)
	}
	if conn != nil {
		if err := conn.Close(); err != nil {
			slog.Debug("error closing websocket", "url", m.cfg.URL, "error", err)
		}
		m.emit(CloseEvent{})
	}
}

func (m *Manager) beginAttemptLocked() *attempt {
	a := &attempt{done: make(chan struct{})}
	m.pending = a
	m.state = models.StateConnecting
	return a
}

func (m *Manager) dialAndOpen(ctx context.Context, a *attempt, gen uint64, auto bool) {
	conn, err := m.dial(ctx, m.cfg.URL)

	m.mu.Lock()
	if gen != m.gen {
		// Disconnect won the race and already released the waiters.
		m.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return
	}

	if err != nil {
		err = fmt.Errorf("failed to connect to %s: %w", m.cfg.URL, err)
		m.pending = nil
		m.state = models.StateClosed
		var next Event
		if auto {
			next = m.scheduleReconnectLocked()
		}
		m.mu.Unlock()

		m.emit(ErrorEvent{Err: err})
		if next != nil {
			m.emit(next)
		}
		a.finish(err)
		return
	}

	m.pending = nil
	m.conn = conn
	m.state = models.StateOpen
	m.reconnectAttempts = 0
	hbCtx, cancel := context.WithCancel(context.Background())
	m.stopHeartbeat = cancel
	m.mu.Unlock()

	go m.heartbeat(hbCtx, conn)

	m.emit(OpenEvent{})
	if err := m.FlushMessageQueue(); err != nil {
		slog.Warn("failed to flush message queue", "url", m.cfg.URL, "error", err)
	}

	// A subscriber may have called Disconnect while the lock was released.
	m.mu.Lock()
	stale := gen != m.gen
	m.mu.Unlock()
	if stale {
		a.finish(errDisconnected)
		return
	}
	a.finish(nil)

	go m.readLoop(conn)
}

// handleDrop runs when the read loop of conn fails.
func (m *Manager) handleDrop(conn Conn, cause error) {
	m.mu.Lock()
	if m.conn != conn {
		// Closed by Disconnect or already replaced.
		m.mu.Unlock()
		return
	}
	m.conn = nil
	m.state = models.StateClosed
	m.stopHeartbeatLocked()
	var next Event
	if !m.manual {
		next = m.scheduleReconnectLocked()
	}
	m.mu.Unlock()

	_ = conn.Close()
	slog.Info("websocket closed", "url", m.cfg.URL, "error", cause)

	m.emit(CloseEvent{Err: cause})
	if next != nil {
		m.emit(next)
	}
}

func (m *Manager) scheduleReconnectLocked() Event {
	if m.reconnectAttempts >= m.cfg.MaxReconnectAttempts {
		slog.Warn("giving up reconnecting", "url", m.cfg.URL, "attempts", m.reconnectAttempts)
		return ReconnectFailedEvent{Attempts: m.reconnectAttempts}
	}

	m.reconnectAttempts++
	delay := m.cfg.BackoffDelay(m.reconnectAttempts)
	gen := m.gen

	m.stopReconnectLocked()
	m.reconnectTimer = m.afterFunc(delay, func() { m.reconnect(gen) })

	slog.Info("reconnect scheduled", "url", m.cfg.URL, "attempt", m.reconnectAttempts, "delay", delay)
	return ReconnectingEvent{Attempt: m.reconnectAttempts, Delay: delay}
}

func (m *Manager) reconnect(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || m.manual || m.state != models.StateClosed {
		m.mu.Unlock()
		return
	}
	m.reconnectTimer = nil
	a := m.beginAttemptLocked()
	m.mu.Unlock()

	m.dialAndOpen(context.Background(), a, gen, true)
}

func (m *Manager) stopReconnectLocked() {
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
}

func (m *Manager) stopHeartbeatLocked() {
	if m.stopHeartbeat != nil {
		m.stopHeartbeat()
		m.stopHeartbeat = nil
	}
}

// Send writes env now. It fails with models.ErrNotConnected unless the
// manager is open; use QueueMessage to deliver later.
func (m *Manager) Send(env models.Envelope) error {
	m.mu.Lock()
	conn := m.conn
	open := m.state == models.StateOpen
	m.mu.Unlock()

	if !open || conn == nil {
		return models.ErrNotConnected
	}
	if err := m.write(conn, env); err != nil {
		return fmt.Errorf("failed to send %s: %w", env.Type, err)
	}
	return nil
}

func (m *Manager) SendTyped(t models.MessageType, payload any) error {
	env, err := models.NewEnvelope(t, payload, m.now())
	if err != nil {
		return err
	}
	return m.Send(env)
}

func (m *Manager) QueueMessage(env models.Envelope) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, env)
}

// Queued returns a copy of the pending queue, oldest first.
func (m *Manager) Queued() []models.Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Envelope(nil), m.queue...)
}

// FlushMessageQueue sends queued messages in order while the manager is open.
// The first failed write puts its message back at the head and stops the
// flush; the remaining messages stay queued behind it.
func (m *Manager) FlushMessageQueue() error {
	m.flushMu.Lock()
	defer m.flushMu.Unlock()

	for {
		m.mu.Lock()
		if m.state != models.StateOpen || m.conn == nil || len(m.queue) == 0 {
			m.mu.Unlock()
			return nil
		}
		env := m.queue[0]
		m.queue = m.queue[1:]
		conn := m.conn
		m.mu.Unlock()

		if err := m.write(conn, env); err != nil {
			m.mu.Lock()
			m.queue = append([]models.Envelope{env}, m.queue...)
			m.mu.Unlock()
			return fmt.Errorf("failed to flush %s: %w", env.Type, err)
		}
	}
}

func (m *Manager) SetTyping(userID string, isTyping bool) {
	if isTyping {
		m.typing.Set(userID, struct{}{})
	} else {
		_ = m.typing.Del(userID)
	}
	m.emit(TypingEvent{Users: m.TypingUsers()})
}

// TypingUsers returns the typing set sorted by user id.
func (m *Manager) TypingUsers() []string {
	snapshot := m.typing.Snapshot()
	users := make([]string, 0, len(snapshot))
	for id := range snapshot {
		users = append(users, id)
	}
	sort.Strings(users)
	return users
}

func (m *Manager) UpdatePresence(userID, status string) {
	p := models.Presence{Status: status, LastSeen: m.now()}
	m.presence.Set(userID, p)
	m.emit(PresenceEvent{UserID: userID, Presence: p})
}

func (m *Manager) Presence(userID string) (models.Presence, bool) {
	p, err := m.presence.Get(userID)
	if err != nil {
		return models.Presence{}, false
	}
	return p, true
}

func (m *Manager) AllPresence() map[string]models.Presence {
	return m.presence.Snapshot()
}

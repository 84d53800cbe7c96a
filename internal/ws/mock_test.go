package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"chatelly/internal/models"

	"github.com/gorilla/websocket"
)

type mockWS struct {
	readCh    chan []byte
	writeCh   chan models.Envelope
	closeCh   chan struct{}
	closeOnce sync.Once

	mu        sync.Mutex
	writes    int
	failAfter int // fail every write once this many succeeded; <0 never
}

func newMockWS() *mockWS {
	return &mockWS{
		readCh:    make(chan []byte, 10),
		writeCh:   make(chan models.Envelope, 100),
		closeCh:   make(chan struct{}),
		failAfter: -1,
	}
}

func (m *mockWS) Close() error {
	m.closeOnce.Do(func() { close(m.closeCh) })
	return nil
}

func (m *mockWS) closed() bool {
	select {
	case <-m.closeCh:
		return true
	default:
		return false
	}
}

func (m *mockWS) setFailAfter(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAfter = n
	m.writes = 0
}

func (m *mockWS) WriteJSON(v any) error {
	m.mu.Lock()
	if m.failAfter >= 0 && m.writes >= m.failAfter {
		m.mu.Unlock()
		return errors.New("write failed")
	}
	m.writes++
	m.mu.Unlock()

	env, ok := v.(models.Envelope)
	if !ok {
		return errors.New("unexpected frame type")
	}
	m.writeCh <- env
	return nil
}

func (m *mockWS) ReadMessage() (int, []byte, error) {
	select {
	case data := <-m.readCh:
		return websocket.TextMessage, data, nil
	case <-m.closeCh:
		return 0, nil, errors.New("connection closed")
	}
}

func (m *mockWS) push(t models.MessageType, payload any) {
	env, err := models.NewEnvelope(t, payload, time.Now())
	if err != nil {
		panic(err)
	}
	data, err := json.Marshal(env)
	if err != nil {
		panic(err)
	}
	m.readCh <- data
}

// mockDialer hands out conns in order, then fails.
type mockDialer struct {
	mu    sync.Mutex
	conns []*mockWS
	calls atomic.Int32
}

func (d *mockDialer) dial(ctx context.Context, url string) (Conn, error) {
	d.calls.Add(1)
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil, errors.New("connection refused")
	}
	c := d.conns[0]
	d.conns = d.conns[1:]
	return c, nil
}

type fakeTimer struct {
	stopped atomic.Bool
}

func (t *fakeTimer) Stop() bool {
	return !t.stopped.Swap(true)
}

// fakeTimers records scheduled callbacks; tests fire them by hand.
type fakeTimers struct {
	mu     sync.Mutex
	delays []time.Duration
	fns    []func()
	timers []*fakeTimer
}

func (f *fakeTimers) afterFunc(d time.Duration, fn func()) Timer {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTimer{}
	f.delays = append(f.delays, d)
	f.fns = append(f.fns, fn)
	f.timers = append(f.timers, t)
	return t
}

func (f *fakeTimers) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.fns)
}

func (f *fakeTimers) fire(i int) {
	f.mu.Lock()
	fn := f.fns[i]
	f.mu.Unlock()
	fn()
}

func (f *fakeTimers) scheduled() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Duration(nil), f.delays...)
}

// eventLog collects manager events for assertions.
type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) add(ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) all() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Event(nil), l.events...)
}

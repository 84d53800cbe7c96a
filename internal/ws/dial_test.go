package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"chatelly/internal/models"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// widgetServer accepts widget connections and lets the test drive them.
type widgetServer struct {
	*httptest.Server
	upgrader websocket.Upgrader

	mu       sync.Mutex
	conns    []*websocket.Conn
	received chan models.Envelope
}

func newWidgetServer(t *testing.T) *widgetServer {
	t.Helper()
	s := &widgetServer{
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		received: make(chan models.Envelope, 100),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

func (s *widgetServer) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.conns = append(s.conns, conn)
	s.mu.Unlock()

	for {
		var env models.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			return
		}
		s.received <- env
	}
}

func (s *widgetServer) url() string {
	return "ws" + strings.TrimPrefix(s.URL, "http") + "/widget/ws/wk1"
}

func (s *widgetServer) connCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *widgetServer) last() *websocket.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conns[len(s.conns)-1]
}

func (s *widgetServer) push(t *testing.T, mt models.MessageType, payload any) {
	t.Helper()
	env, err := models.NewEnvelope(mt, payload, time.Now())
	require.NoError(t, err)
	data, err := json.Marshal(env)
	require.NoError(t, err)
	require.NoError(t, s.last().WriteMessage(websocket.TextMessage, data))
}

func TestManager_RealServer(t *testing.T) {
	srv := newWidgetServer(t)
	timers := &fakeTimers{}
	m := newTestManager(t, Config{URL: srv.url()}, WithAfterFunc(timers.afterFunc))

	inbound := make(chan models.Inbound, 10)
	m.Subscribe(func(ev Event) {
		if me, ok := ev.(MessageEvent); ok {
			inbound <- me.Inbound
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.Connect(ctx))
	require.Eventually(t, func() bool { return srv.connCount() == 1 }, time.Second, time.Millisecond)

	// Client to server.
	require.NoError(t, m.SendTyped(models.MessageTypeSendMessage, models.SendMessageData{SessionID: "s1", Content: "hello"}))
	select {
	case env := <-srv.received:
		if env.Type != models.MessageTypeSendMessage {
			t.Errorf("expected send_message, got %s", env.Type)
		}
		var d models.SendMessageData
		require.NoError(t, json.Unmarshal(env.Data, &d))
		if d.SessionID != "s1" || d.Content != "hello" {
			t.Errorf("unexpected payload: %+v", d)
		}
	case <-time.After(time.Second):
		t.Fatal("server did not receive frame")
	}

	// Server to client, with a garbage frame in between.
	require.NoError(t, srv.last().WriteMessage(websocket.TextMessage, []byte("{{{")))
	srv.push(t, models.MessageTypeSessionEnded, models.SessionEnded{SessionID: "s1"})
	select {
	case in := <-inbound:
		if se, ok := in.(models.SessionEnded); !ok || se.SessionID != "s1" {
			t.Errorf("expected session_ended for s1, got %#v", in)
		}
	case <-time.After(time.Second):
		t.Fatal("client did not receive frame")
	}

	// Server drops the socket; the manager schedules a reconnect and the
	// scheduled attempt opens a fresh connection.
	_ = srv.last().Close()
	require.Eventually(t, func() bool { return timers.count() == 1 }, time.Second, time.Millisecond)
	if got := timers.scheduled()[0]; got != DefaultReconnectInterval {
		t.Errorf("expected first backoff %v, got %v", DefaultReconnectInterval, got)
	}

	timers.fire(0)
	if m.State() != models.StateOpen {
		t.Fatalf("expected OPEN after reconnect, got %v", m.State())
	}
	require.Eventually(t, func() bool { return srv.connCount() == 2 }, time.Second, time.Millisecond)

	m.Disconnect()
	if m.State() != models.StateClosed {
		t.Errorf("expected CLOSED, got %v", m.State())
	}
	if timers.count() != 1 {
		t.Errorf("manual disconnect must not schedule reconnects, got %d timers", timers.count())
	}
}

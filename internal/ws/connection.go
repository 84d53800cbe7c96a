package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"chatelly/internal/models"

	"github.com/gorilla/websocket"
)

// Conn is the part of *websocket.Conn the manager relies on.
type Conn interface {
	Close() error
	WriteJSON(v any) error
	ReadMessage() (messageType int, p []byte, err error)
}

type DialFunc func(ctx context.Context, url string) (Conn, error)

var dialer = &websocket.Dialer{
	Proxy:            http.ProxyFromEnvironment,
	HandshakeTimeout: 10 * time.Second,
}

// Dial opens a client connection with gorilla's dialer.
func Dial(ctx context.Context, url string) (Conn, error) {
	conn, resp, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		return nil, err
	}
	return conn, nil
}

// readLoop pumps frames from conn until it fails. Frames that do not decode
// are logged and skipped.
func (m *Manager) readLoop(conn Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			m.handleDrop(conn, err)
			return
		}

		var env models.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			slog.Warn("dropping malformed frame", "url", m.cfg.URL, "error", err)
			continue
		}

		in, err := models.DecodeInbound(env)
		if err != nil {
			slog.Warn("dropping undecodable frame", "url", m.cfg.URL, "type", env.Type, "error", err)
			continue
		}

		m.emit(MessageEvent{Envelope: env, Inbound: in})
	}
}

// heartbeat writes a ping on conn every HeartbeatInterval until ctx is done.
// There is no pong deadline; a dead peer is noticed by the read loop only.
func (m *Manager) heartbeat(ctx context.Context, conn Conn) {
	ticker := time.NewTicker(m.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := m.now()
			env, err := models.NewEnvelope(models.MessageTypePing, models.PingData{Timestamp: now.UnixMilli()}, now)
			if err != nil {
				slog.Error("failed to build ping", "error", err)
				continue
			}
			if err := m.write(conn, env); err != nil {
				slog.Debug("heartbeat write failed", "url", m.cfg.URL, "error", err)
			}
		}
	}
}

func (m *Manager) write(conn Conn, env models.Envelope) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	return conn.WriteJSON(env)
}

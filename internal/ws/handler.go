package ws

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/shwetayenaji/Super-OTP-Predictor/internal/classify"
	"github.com/shwetayenaji/Super-OTP-Predictor/internal/features"
	"github.com/shwetayenaji/Super-OTP-Predictor/internal/ratelimit"
	"github.com/shwetayenaji/Super-OTP-Predictor/internal/web"
)

const (
	maxMessageBytes = 4096
	writeTimeout    = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Decider is the classifier as seen by the live preview.
type Decider interface {
	Decide(ctx context.Context, v features.FeatureVector) (*classify.Result, error)
}

// Message is a client request. Selection may be omitted to use the defaults.
type Message struct {
	Type      string          `json:"type"`
	Selection json.RawMessage `json:"selection,omitempty"`
}

// Manager tracks open preview sockets. Each socket gets metric cards for
// every "preview" message and a decision for every "decide" message.
type Manager struct {
	mu          sync.RWMutex
	connections []*websocket.Conn
	decider     Decider
	limiter     *ratelimit.Limiter
	logger      *slog.Logger
}

// NewManager creates a new WebSocket manager.
func NewManager(decider Decider, limiter *ratelimit.Limiter, logger *slog.Logger) *Manager {
	return &Manager{decider: decider, limiter: limiter, logger: logger}
}

// HandleWS upgrades an HTTP connection to WebSocket and serves it until the
// client goes away.
func (m *Manager) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.logger.Error("websocket upgrade failed", "err", err)
		return
	}
	conn.SetReadLimit(maxMessageBytes)

	m.mu.Lock()
	m.connections = append(m.connections, conn)
	m.mu.Unlock()

	defer func() {
		m.remove(conn)
		conn.Close()
	}()

	m.sendJSON(conn, map[string]any{
		"type":    "metrics",
		"metrics": web.Metrics(features.DefaultSelection()),
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if err := m.sendJSON(conn, m.reply(r, data)); err != nil {
			return
		}
	}
}

func (m *Manager) reply(r *http.Request, data []byte) map[string]any {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return errorReply("malformed message")
	}

	bucket := "preview"
	if msg.Type == "decide" {
		bucket = "predict"
	}
	if m.limiter != nil {
		if ok, retry := m.limiter.Permit(r, bucket); !ok {
			return map[string]any{"type": "error", "error": "Rate limited", "retry_after_seconds": retry}
		}
	}

	sel := features.DefaultSelection()
	if len(msg.Selection) > 0 {
		s, err := features.DecodeSelection(bytes.NewReader(msg.Selection))
		if err != nil {
			return errorReply(err.Error())
		}
		sel = s
	}

	switch msg.Type {
	case "preview":
		return map[string]any{"type": "metrics", "metrics": web.Metrics(sel)}
	case "decide":
		res, err := m.decider.Decide(r.Context(), features.Encode(sel))
		if err != nil {
			m.logger.Error("websocket decision failed", "err", err)
			return errorReply("classifier unavailable")
		}
		return map[string]any{
			"type":     "decision",
			"decision": res,
			"card":     web.RenderOutcome(res.Decision),
		}
	default:
		return errorReply("unknown message type " + msg.Type)
	}
}

// Count returns the number of open sockets.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.connections)
}

// CloseAll sends a going-away close frame to every socket. Used on shutdown,
// since http.Server.Shutdown does not track hijacked connections.
func (m *Manager) CloseAll() {
	m.mu.RLock()
	conns := make([]*websocket.Conn, len(m.connections))
	copy(conns, m.connections)
	m.mu.RUnlock()

	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	for _, conn := range conns {
		conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout))
		conn.Close()
	}
}

func (m *Manager) remove(conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, c := range m.connections {
		if c == conn {
			m.connections = append(m.connections[:i], m.connections[i+1:]...)
			return
		}
	}
}

func (m *Manager) sendJSON(conn *websocket.Conn, data map[string]any) error {
	msg, err := json.Marshal(data)
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, msg)
}

func errorReply(msg string) map[string]any {
	return map[string]any{"type": "error", "error": msg}
}

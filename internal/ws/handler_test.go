package ws

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/shwetayenaji/Super-OTP-Predictor/internal/classify"
	"github.com/shwetayenaji/Super-OTP-Predictor/internal/features"
	"github.com/shwetayenaji/Super-OTP-Predictor/internal/ratelimit"
)

type fakeDecider struct {
	err error
}

func (f fakeDecider) Decide(_ context.Context, v features.FeatureVector) (*classify.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &classify.Result{
		Decision:         classify.Render(classify.LabelStandard, classify.DefaultConfidence),
		Features:         v,
		ConfidenceSource: classify.SourceDefault,
		Classifier:       "fake",
	}, nil
}

func dial(t *testing.T, m *Manager) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(m.HandleWS))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var hello map[string]any
	if err := conn.ReadJSON(&hello); err != nil {
		t.Fatalf("read hello: %v", err)
	}
	if hello["type"] != "metrics" {
		t.Fatalf("expected initial metrics, got %v", hello["type"])
	}
	return conn
}

func newManager(d Decider, limiter *ratelimit.Limiter) *Manager {
	return NewManager(d, limiter, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func roundTrip(t *testing.T, conn *websocket.Conn, msg string) map[string]any {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		t.Fatalf("write: %v", err)
	}
	var reply map[string]any
	if err := conn.ReadJSON(&reply); err != nil {
		t.Fatalf("read: %v", err)
	}
	return reply
}

func TestPreviewReturnsMetrics(t *testing.T) {
	conn := dial(t, newManager(fakeDecider{}, nil))

	reply := roundTrip(t, conn, `{"type":"preview","selection":{"payment_amount":25000,"battery_level":40}}`)
	if reply["type"] != "metrics" {
		t.Fatalf("expected metrics, got %v", reply)
	}
	metrics := reply["metrics"].([]any)
	first := metrics[0].(map[string]any)
	if first["value"] != "₹25,000" {
		t.Fatalf("expected ₹25,000, got %v", first["value"])
	}
	second := metrics[1].(map[string]any)
	if second["value"] != "40%" {
		t.Fatalf("expected 40%%, got %v", second["value"])
	}
}

func TestDecideReturnsDecision(t *testing.T) {
	conn := dial(t, newManager(fakeDecider{}, nil))

	reply := roundTrip(t, conn, `{"type":"decide"}`)
	if reply["type"] != "decision" {
		t.Fatalf("expected decision, got %v", reply)
	}
	decision := reply["decision"].(map[string]any)
	if decision["outcome"] != "denied" || decision["confidence"] != 85.0 {
		t.Fatalf("unexpected decision: %v", decision)
	}
	card := reply["card"].(map[string]any)
	if card["heading"] != "Standard OTP Required" {
		t.Fatalf("unexpected card: %v", card)
	}
}

func TestErrorReplies(t *testing.T) {
	conn := dial(t, newManager(fakeDecider{err: errors.New("down")}, nil))

	tests := []struct {
		msg  string
		want string
	}{
		{`not json`, "malformed message"},
		{`{"type":"shout"}`, "unknown message type shout"},
		{`{"type":"preview","selection":{"battery_level":500}}`, "invalid battery_level"},
		{`{"type":"decide"}`, "classifier unavailable"},
	}
	for _, tt := range tests {
		reply := roundTrip(t, conn, tt.msg)
		if reply["type"] != "error" {
			t.Fatalf("%s: expected error, got %v", tt.msg, reply)
		}
		if !strings.Contains(reply["error"].(string), tt.want) {
			t.Fatalf("%s: expected %q in %q", tt.msg, tt.want, reply["error"])
		}
	}
}

func TestPreviewRateLimited(t *testing.T) {
	limiter := ratelimit.New(map[string]ratelimit.Bucket{"preview": {MaxRequests: 1, Window: time.Minute}})
	conn := dial(t, newManager(fakeDecider{}, limiter))

	if reply := roundTrip(t, conn, `{"type":"preview"}`); reply["type"] != "metrics" {
		t.Fatalf("first preview should pass, got %v", reply)
	}
	reply := roundTrip(t, conn, `{"type":"preview"}`)
	if reply["type"] != "error" || reply["error"] != "Rate limited" {
		t.Fatalf("expected rate limit error, got %v", reply)
	}
}

func TestCloseAll(t *testing.T) {
	m := newManager(fakeDecider{}, nil)
	conn := dial(t, m)

	if m.Count() != 1 {
		t.Fatalf("expected 1 connection, got %d", m.Count())
	}
	m.CloseAll()

	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseGoingAway) {
		t.Fatalf("expected going-away close, got %v", err)
	}
}

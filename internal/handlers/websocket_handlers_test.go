package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"chat-core/internal/auth"
	"chat-core/internal/command"
	"chat-core/internal/config"
	"chat-core/internal/connection"
	"chat-core/internal/hooks"
	"chat-core/internal/manager"
	"chat-core/internal/models"
	"chat-core/internal/presence"
	"chat-core/internal/queue"
	"chat-core/internal/router"
	"chat-core/internal/session"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var testSecret = []byte("test-secret")

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	log := zerolog.Nop()

	cfg := &config.Config{
		JWT: config.JWTConfig{Secret: testSecret, Algorithm: "HS256"},
		Limits: config.LimitsConfig{
			MaxConnectionsPerUser: 3,
			HeartbeatTimeout:      30 * time.Second,
			MaxMessageSize:        4096,
		},
		Server: config.ServerConfig{WriteTimeout: 5 * time.Second},
	}

	authService := auth.NewService(cfg)
	hookReg := hooks.NewRegistry(log)
	registry := connection.NewRegistry(cfg.Limits.MaxConnectionsPerUser, log)
	sessions := session.NewManager(time.Minute, log)
	tracker := presence.NewTracker(cfg.Limits.HeartbeatTimeout, log)
	q := queue.NewMemory(10)
	route := router.New(registry, hookReg, q, log)
	pipeline := command.NewPipeline(hookReg, log)

	mgr := manager.New(manager.Deps{
		Auth:     authService,
		Registry: registry,
		Sessions: sessions,
		Presence: tracker,
		Router:   route,
		Pipeline: pipeline,
		Hooks:    hookReg,
		Queue:    q,
		Log:      log,
	}, manager.Options{})

	h := NewWebSocketHandlers(authService, mgr, cfg, log)
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.HandleWebSocket)
	mux.HandleFunc("/healthz", h.HandleHealthz)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func mintToken(t *testing.T, user string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   user,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(testSecret)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

func dial(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil reads frames until one of the wanted type arrives.
func readUntil(t *testing.T, conn *websocket.Conn, kind models.MessageType) models.Message {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read failed waiting for %s: %v", kind, err)
		}
		var m models.Message
		if err := json.Unmarshal(data, &m); err != nil {
			t.Fatalf("undecodable frame: %v", err)
		}
		if m.Type == kind {
			return m
		}
	}
}

func send(t *testing.T, conn *websocket.Conn, msg *models.Message) {
	t.Helper()
	data, err := msg.Encode()
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}

func TestConnectAndBroadcast(t *testing.T) {
	srv := newTestServer(t)

	alice := dial(t, srv, mintToken(t, "alice"))
	bob := dial(t, srv, mintToken(t, "bob"))

	// Alice observes bob coming online.
	join := readUntil(t, alice, models.TypeJoin)
	if join.Sender != "bob" {
		t.Fatalf("join sender = %q, want bob", join.Sender)
	}

	send(t, bob, &models.Message{Type: models.TypeText, Content: "hello over the wire"})

	text := readUntil(t, alice, models.TypeText)
	if text.Sender != "bob" || text.Content != "hello over the wire" {
		t.Fatalf("unexpected broadcast: %+v", text)
	}
}

func TestHeartbeatPongOverWire(t *testing.T) {
	srv := newTestServer(t)
	alice := dial(t, srv, mintToken(t, "alice"))

	send(t, alice, &models.Message{Type: models.TypeHeartbeat, Content: "ping"})

	pong := readUntil(t, alice, models.TypeHeartbeat)
	if pong.Content != "pong" || pong.Sender != models.SystemSender {
		t.Fatalf("unexpected pong: %+v", pong)
	}
}

func TestBadTokenExplainedThenClosed(t *testing.T) {
	srv := newTestServer(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=garbage"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	// First the explanatory frame, then the close handshake.
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("expected an explanatory frame before close: %v", err)
	}
	var notice models.Message
	if err := json.Unmarshal(data, &notice); err != nil {
		t.Fatalf("undecodable frame: %v", err)
	}
	if notice.Sender != models.SystemSender || !strings.Contains(notice.Content, "authentication failed") {
		t.Fatalf("unexpected notice: %+v", notice)
	}

	_, _, err = conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("err = %v, want policy-violation close", err)
	}
}

func TestTokenFromCookie(t *testing.T) {
	srv := newTestServer(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	header := http.Header{}
	header.Add("Cookie", (&http.Cookie{Name: "authToken", Value: mintToken(t, "alice")}).String())
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("dial with cookie failed: %v", err)
	}
	defer conn.Close()

	send(t, conn, &models.Message{Type: models.TypeHeartbeat, Content: "ping"})
	pong := readUntil(t, conn, models.TypeHeartbeat)
	if pong.Content != "pong" {
		t.Fatalf("cookie-authenticated connection is not live: %+v", pong)
	}
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

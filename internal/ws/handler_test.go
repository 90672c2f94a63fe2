package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"glxy/internal/domain"
	"glxy/internal/logger"
	"glxy/internal/realtime"
	"glxy/internal/repository/memory"
	"glxy/internal/retry"
	"glxy/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type wsEnv struct {
	server   *httptest.Server
	sessions *service.SessionManager
	ledger   *service.Ledger
	profiles *service.ProfileService
}

func newWSEnv(t *testing.T) *wsEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.New()
	broker := realtime.NewMemoryBroker()
	policy := retry.Policy{MaxAttempts: 1}
	log := logger.Discard()

	env := &wsEnv{
		sessions: service.NewSessionManager("ws-secret", time.Hour, nil),
		ledger:   service.NewLedger(store, policy, broker, log),
		profiles: service.NewProfileService(store, broker, policy, 1000, log),
	}

	r := gin.New()
	r.GET("/ws/profile", HandleProfileWS(env.sessions, env.profiles, "", log))
	env.server = httptest.NewServer(r)
	t.Cleanup(func() {
		env.server.Close()
		_ = broker.Close()
	})
	return env
}

func (e *wsEnv) dial(t *testing.T, token string) (*websocket.Conn, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.server.URL, "http") + "/ws/profile?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	return conn, err
}

func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
	return env
}

func TestProfileWS_StreamsChanges(t *testing.T) {
	env := newWSEnv(t)
	ctx := context.Background()

	if _, _, err := env.profiles.Bootstrap(ctx, domain.Identity{UID: "u1", Name: "Nova"}); err != nil {
		t.Fatal(err)
	}
	token, _, err := env.sessions.Issue("u1")
	if err != nil {
		t.Fatal(err)
	}

	conn, err := env.dial(t, token)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if got := readEnvelope(t, conn); got.Type != MsgReady {
		t.Fatalf("expected ready, got %+v", got)
	}
	first := readEnvelope(t, conn)
	if first.Type != MsgProfile || first.Profile.Stardust != 1000 {
		t.Fatalf("expected initial snapshot, got %+v", first)
	}

	if _, err := env.ledger.Debit(ctx, "u1", 20, "Art creation", "art"); err != nil {
		t.Fatal(err)
	}
	next := readEnvelope(t, conn)
	if next.Type != MsgProfile || next.Profile.Stardust != 980 {
		t.Fatalf("expected updated snapshot, got %+v", next)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)); err != nil {
		t.Fatal(err)
	}
	if got := readEnvelope(t, conn); got.Type != MsgPong {
		t.Fatalf("expected pong, got %+v", got)
	}
}

func TestProfileWS_UnknownProfileGetsError(t *testing.T) {
	env := newWSEnv(t)
	token, _, err := env.sessions.Issue("ghost")
	if err != nil {
		t.Fatal(err)
	}

	conn, err := env.dial(t, token)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	readEnvelope(t, conn) // ready
	got := readEnvelope(t, conn)
	if got.Type != MsgError || got.Error == nil || got.Error.Message != service.ErrProfileNotFound.Error() {
		t.Fatalf("expected profile error, got %+v", got)
	}
}

func TestProfileWS_RequiresToken(t *testing.T) {
	env := newWSEnv(t)

	if _, err := env.dial(t, ""); err == nil {
		t.Fatal("expected dial without token to fail")
	}
	if _, err := env.dial(t, "bogus"); err == nil {
		t.Fatal("expected dial with bad token to fail")
	}
}

package discord

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

type gatewayFrame map[string]any

// fakeGateway scripts one function per accepted connection and records the
// first frame the client sends after hello.
type fakeGateway struct {
	t        *testing.T
	url      string
	conns    atomic.Int32
	scripts  []func(conn *websocket.Conn)
	received chan gatewayFrame
}

func newFakeGateway(t *testing.T, scripts ...func(conn *websocket.Conn)) *fakeGateway {
	t.Helper()
	gateway := &fakeGateway{t: t, scripts: scripts, received: make(chan gatewayFrame, len(scripts))}
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		conn, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		index := int(gateway.conns.Add(1)) - 1
		if err := conn.WriteJSON(gatewayFrame{"op": 10, "d": gatewayFrame{"heartbeat_interval": 45000}}); err != nil {
			return
		}
		var first gatewayFrame
		if err := conn.ReadJSON(&first); err != nil {
			return
		}
		gateway.received <- first
		if index < len(gateway.scripts) {
			gateway.scripts[index](conn)
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(server.Close)
	gateway.url = "ws" + strings.TrimPrefix(server.URL, "http")
	return gateway
}

func (g *fakeGateway) next() gatewayFrame {
	g.t.Helper()
	select {
	case frame := <-g.received:
		return frame
	case <-time.After(2 * time.Second):
		g.t.Fatal("gateway received nothing")
		return nil
	}
}

func TestGatewayResumesAfterReconnectRequest(t *testing.T) {
	var gateway *fakeGateway
	gateway = newFakeGateway(t,
		func(conn *websocket.Conn) {
			_ = conn.WriteJSON(gatewayFrame{"op": 0, "t": "READY", "s": 1, "d": gatewayFrame{
				"user":               gatewayFrame{"id": "bot-1"},
				"session_id":         "sess-1",
				"resume_gateway_url": gateway.url,
			}})
			_ = conn.WriteJSON(gatewayFrame{"op": 0, "t": "GUILD_ROLE_DELETE", "s": 5, "d": gatewayFrame{"guild_id": "g1", "role_id": "r1"}})
			_ = conn.WriteJSON(gatewayFrame{"op": 7, "d": nil})
		},
		func(conn *websocket.Conn) {
			_ = conn.WriteJSON(gatewayFrame{"op": 9, "d": false})
		},
	)
	connector := New("bot-token", "http://127.0.0.1:1", gateway.url, slog.New(slog.NewTextHandler(io.Discard, nil)))
	connector.SetHandler(&fakeHandler{})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := connector.runSession(ctx); err == nil || !strings.Contains(err.Error(), "reconnect") {
		t.Fatalf("expected reconnect error, got %v", err)
	}
	if identify := gateway.next(); identify["op"].(float64) != 2 {
		t.Fatalf("expected identify on a fresh session, got %+v", identify)
	}
	state := connector.resumeState()
	if state.sessionID != "sess-1" || state.url != gateway.url || state.sequence != 5 {
		t.Fatalf("unexpected resume state %+v", state)
	}

	if err := connector.runSession(ctx); err == nil || !strings.Contains(err.Error(), "invalid session") {
		t.Fatalf("expected invalid session error, got %v", err)
	}
	resume := gateway.next()
	data, _ := resume["d"].(map[string]any)
	if resume["op"].(float64) != 6 || data["session_id"] != "sess-1" || data["seq"].(float64) != 5 || data["token"] != "bot-token" {
		t.Fatalf("unexpected resume payload %+v", resume)
	}
	if connector.resumeState().ok() {
		t.Fatal("non-resumable invalid session should clear resume state")
	}
}

func TestResumeDialURL(t *testing.T) {
	if got := resumeDialURL("wss://gateway-us-east1-b.discord.gg/"); got != "wss://gateway-us-east1-b.discord.gg/?v=10&encoding=json" {
		t.Fatalf("unexpected url %q", got)
	}
	if got := resumeDialURL("ws://127.0.0.1:9/?v=10"); got != "ws://127.0.0.1:9/?v=10" {
		t.Fatalf("query should be kept, got %q", got)
	}
}

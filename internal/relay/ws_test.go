package relay

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/courierchat/courier/internal/token"
)

func dialWS(t *testing.T, srv *httptest.Server, cookie string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	header := http.Header{}
	if cookie != "" {
		header.Set("Cookie", cookie)
	}
	return websocket.DefaultDialer.Dial(url, header)
}

func mustDial(t *testing.T, srv *httptest.Server, userID, username string) *websocket.Conn {
	t.Helper()
	tok, err := token.Issue(userID, username, []byte("test-secret"), 0)
	if err != nil {
		t.Fatal(err)
	}
	conn, _, err := dialWS(t, srv, "token="+tok)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, frame, err := conn.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	var env envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		t.Fatal(err)
	}
	return env
}

func readPresence(t *testing.T, conn *websocket.Conn) []PresenceEntry {
	t.Helper()
	env := readEnvelope(t, conn)
	if env.Event != eventOnlineUsers {
		t.Fatalf("expected onlineUsers event, got %q", env.Event)
	}
	var entries []PresenceEntry
	if err := json.Unmarshal(env.Data, &entries); err != nil {
		t.Fatal(err)
	}
	return entries
}

func TestHandshakeRejectsMissingToken(t *testing.T) {
	st := newMemStore()
	rl, _ := newTestRelay(t, st)
	srv := httptest.NewServer(http.HandlerFunc(rl.HandleWS))
	defer srv.Close()

	for _, cookie := range []string{"", "theme=dark", "token=", "token=garbage"} {
		_, resp, err := dialWS(t, srv, cookie)
		if err == nil {
			t.Fatalf("handshake with cookie %q should fail", cookie)
		}
		if resp == nil || resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("expected 401 for cookie %q", cookie)
		}
	}

	if rl.Registry().Len() != 0 {
		t.Fatal("no connection may be registered after rejected handshakes")
	}
}

func TestLiveRelayScenario(t *testing.T) {
	st := newMemStore()
	rl, cipher := newTestRelay(t, st)
	srv := httptest.NewServer(http.HandlerFunc(rl.HandleWS))
	defer srv.Close()

	// A connects and sees itself online.
	a1 := mustDial(t, srv, "A", "alice")
	if entries := readPresence(t, a1); len(entries) != 1 {
		t.Fatalf("expected 1 presence entry, got %d", len(entries))
	}

	// B connects on two devices; every connect rebroadcasts presence.
	b1 := mustDial(t, srv, "B", "bob")
	readPresence(t, b1)
	if entries := readPresence(t, a1); len(entries) != 2 {
		t.Fatalf("expected 2 presence entries, got %d", len(entries))
	}

	b2 := mustDial(t, srv, "B", "bob")
	readPresence(t, b2)
	readPresence(t, b1)
	if entries := readPresence(t, a1); len(entries) != 3 {
		t.Fatalf("expected 3 presence entries, got %d", len(entries))
	}

	// A sends B a message; both devices receive the push.
	frame, err := marshalEvent(eventMessage, inboundMessage{Recipient: "B", Text: "hi"})
	if err != nil {
		t.Fatal(err)
	}
	if err := a1.WriteMessage(websocket.TextMessage, frame); err != nil {
		t.Fatal(err)
	}

	for _, conn := range []*websocket.Conn{b1, b2} {
		env := readEnvelope(t, conn)
		if env.Event != eventMessage {
			t.Fatalf("expected message event, got %q", env.Event)
		}
		var out outboundMessage
		if err := json.Unmarshal(env.Data, &out); err != nil {
			t.Fatal(err)
		}
		if out.Text != "hi" || out.Sender != "A" || out.Recipient != "B" {
			t.Fatalf("unexpected push: %+v", out)
		}
	}

	// The message is durably recorded, encrypted.
	saved := st.saved()
	if len(saved) != 1 {
		t.Fatalf("expected 1 persisted message, got %d", len(saved))
	}
	if text, err := cipher.Decrypt(saved[0].Ciphertext, saved[0].IV); err != nil || text != "hi" {
		t.Fatalf("persisted record should decrypt to %q: %v", "hi", err)
	}

	// b1 disconnects; the survivors get a roster without it.
	b1.Close()
	if entries := readPresence(t, a1); len(entries) != 2 {
		t.Fatalf("expected 2 presence entries after disconnect, got %d", len(entries))
	}
	if entries := readPresence(t, b2); len(entries) != 2 {
		t.Fatalf("expected 2 presence entries after disconnect, got %d", len(entries))
	}
}

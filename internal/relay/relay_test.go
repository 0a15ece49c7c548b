package relay

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/courierchat/courier/internal/crypto"
	"github.com/courierchat/courier/internal/models"
	"github.com/courierchat/courier/internal/uploads"
)

// memStore is an in-memory MessageStore for pipeline tests.
type memStore struct {
	mu       sync.Mutex
	messages []models.Message
	users    map[string]string
}

func newMemStore() *memStore {
	return &memStore{users: make(map[string]string)}
}

func (m *memStore) Close()                         {}
func (m *memStore) Ping(ctx context.Context) error { return nil }

func (m *memStore) SaveMessage(ctx context.Context, msg *models.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, *msg)
	return nil
}

func (m *memStore) Conversation(ctx context.Context, a, b string) ([]models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Message
	for _, msg := range m.messages {
		if (msg.Sender == a && msg.Recipient == b) || (msg.Sender == b && msg.Recipient == a) {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (m *memStore) UpsertUser(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = user.Username
	return nil
}

func (m *memStore) ListUsers(ctx context.Context) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.User
	for id, name := range m.users {
		out = append(out, models.User{ID: id, Username: name})
	}
	return out, nil
}

func (m *memStore) saved() []models.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Message, len(m.messages))
	copy(out, m.messages)
	return out
}

func newTestRelay(t *testing.T, st *memStore) (*Relay, *crypto.Cipher) {
	t.Helper()
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	cipher, err := crypto.NewCipher(key)
	if err != nil {
		t.Fatal(err)
	}
	up, err := uploads.NewStore(t.TempDir(), zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	return New(st, cipher, up, []byte("test-secret"), nil, zerolog.Nop()), cipher
}

func messageFrame(t *testing.T, recipient, text string, file *inboundFile) []byte {
	t.Helper()
	frame, err := marshalEvent(eventMessage, inboundMessage{Recipient: recipient, Text: text, File: file})
	if err != nil {
		t.Fatal(err)
	}
	return frame
}

// recvEvent pops one queued frame off a client's send buffer.
func recvEvent(t *testing.T, c *Client) envelope {
	t.Helper()
	select {
	case frame := <-c.send:
		var env envelope
		if err := json.Unmarshal(frame, &env); err != nil {
			t.Fatal(err)
		}
		return env
	case <-time.After(time.Second):
		t.Fatal("no frame queued")
		return envelope{}
	}
}

func TestFanOutReachesEveryRecipientConnection(t *testing.T) {
	st := newMemStore()
	rl, cipher := newTestRelay(t, st)

	a1 := testClient("A", "alice")
	b1 := testClient("B", "bob")
	b2 := testClient("B", "bob")
	rl.registry.Register(a1)
	rl.registry.Register(b1)
	rl.registry.Register(b2)

	rl.handleInbound(a1, messageFrame(t, "B", "hi", nil))

	saved := st.saved()
	if len(saved) != 1 {
		t.Fatalf("expected 1 persisted message, got %d", len(saved))
	}
	msg := saved[0]
	if msg.Sender != "A" || msg.Recipient != "B" {
		t.Fatalf("unexpected participants: %s -> %s", msg.Sender, msg.Recipient)
	}
	text, err := cipher.Decrypt(msg.Ciphertext, msg.IV)
	if err != nil {
		t.Fatal(err)
	}
	if text != "hi" {
		t.Fatalf("expected persisted text %q, got %q", "hi", text)
	}

	// Both of B's devices get the push; A gets nothing.
	for _, c := range []*Client{b1, b2} {
		env := recvEvent(t, c)
		if env.Event != eventMessage {
			t.Fatalf("expected message event, got %q", env.Event)
		}
		var out outboundMessage
		if err := json.Unmarshal(env.Data, &out); err != nil {
			t.Fatal(err)
		}
		if out.Text != "hi" || out.Sender != "A" || out.Recipient != "B" || out.ID != msg.ID {
			t.Fatalf("unexpected push payload: %+v", out)
		}
	}
	select {
	case <-a1.send:
		t.Fatal("sender connection should not receive the push")
	default:
	}
}

func TestOfflineRecipientStillPersisted(t *testing.T) {
	st := newMemStore()
	rl, _ := newTestRelay(t, st)

	a1 := testClient("A", "alice")
	rl.registry.Register(a1)

	rl.handleInbound(a1, messageFrame(t, "B", "you there?", nil))

	if len(st.saved()) != 1 {
		t.Fatal("message to offline recipient must still persist")
	}
}

func TestValidationDropsEvent(t *testing.T) {
	st := newMemStore()
	rl, _ := newTestRelay(t, st)
	a1 := testClient("A", "alice")
	rl.registry.Register(a1)

	// No recipient.
	rl.handleInbound(a1, messageFrame(t, "", "hi", nil))
	// Neither text nor file.
	rl.handleInbound(a1, messageFrame(t, "B", "", nil))
	// Not an event envelope at all.
	rl.handleInbound(a1, []byte("not json"))
	// Unknown event.
	rl.handleInbound(a1, []byte(`{"event":"typing","data":{}}`))

	if len(st.saved()) != 0 {
		t.Fatalf("invalid events must not persist, got %d", len(st.saved()))
	}
}

func TestSenderComesFromConnectionNotPayload(t *testing.T) {
	st := newMemStore()
	rl, _ := newTestRelay(t, st)
	a1 := testClient("A", "alice")
	rl.registry.Register(a1)

	// A spoofed sender field in the payload is ignored.
	frame := []byte(`{"event":"message","data":{"recipient":"B","text":"hi","sender":"C"}}`)
	rl.handleInbound(a1, frame)

	saved := st.saved()
	if len(saved) != 1 || saved[0].Sender != "A" {
		t.Fatalf("sender must come from the authenticated connection, got %+v", saved)
	}
}

func TestAttachmentStoredWithReference(t *testing.T) {
	st := newMemStore()
	rl, _ := newTestRelay(t, st)
	a1 := testClient("A", "alice")
	b1 := testClient("B", "bob")
	rl.registry.Register(a1)
	rl.registry.Register(b1)

	payload := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("img"))
	rl.handleInbound(a1, messageFrame(t, "B", "", &inboundFile{Name: "pic.png", Data: payload}))

	saved := st.saved()
	if len(saved) != 1 {
		t.Fatalf("expected 1 persisted message, got %d", len(saved))
	}
	if saved[0].File == nil {
		t.Fatal("expected attachment reference on the record")
	}

	env := recvEvent(t, b1)
	var out outboundMessage
	if err := json.Unmarshal(env.Data, &out); err != nil {
		t.Fatal(err)
	}
	if out.File == nil || *out.File != *saved[0].File {
		t.Fatal("push must carry the stored attachment reference")
	}
}

func TestAttachmentWriteFailureStillPersists(t *testing.T) {
	st := newMemStore()
	rl, _ := newTestRelay(t, st)
	a1 := testClient("A", "alice")
	rl.registry.Register(a1)

	// Undecodable payload makes the attachment store fail; the message
	// still persists, without a reference.
	rl.handleInbound(a1, messageFrame(t, "B", "", &inboundFile{Name: "x.bin", Data: "???"}))

	saved := st.saved()
	if len(saved) != 1 {
		t.Fatalf("expected 1 persisted message, got %d", len(saved))
	}
	if saved[0].File != nil {
		t.Fatal("failed attachment write must leave a nil reference")
	}
}

func TestPresenceBroadcastReachesAllConnections(t *testing.T) {
	st := newMemStore()
	rl, _ := newTestRelay(t, st)
	a1 := testClient("A", "alice")
	b1 := testClient("B", "bob")
	rl.registry.Register(a1)
	rl.registry.Register(b1)

	rl.broadcastPresence()

	for _, c := range []*Client{a1, b1} {
		env := recvEvent(t, c)
		if env.Event != eventOnlineUsers {
			t.Fatalf("expected onlineUsers event, got %q", env.Event)
		}
		var entries []PresenceEntry
		if err := json.Unmarshal(env.Data, &entries); err != nil {
			t.Fatal(err)
		}
		if len(entries) != 2 {
			t.Fatalf("expected 2 presence entries, got %d", len(entries))
		}
	}
}

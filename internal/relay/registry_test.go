package relay

import (
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

func testClient(userID, username string) *Client {
	return newClient(nil, userID, username, zerolog.Nop())
}

func TestRegisterAndConnectionsFor(t *testing.T) {
	r := NewRegistry()
	a := testClient("u1", "alice")
	b1 := testClient("u2", "bob")
	b2 := testClient("u2", "bob")

	r.Register(a)
	r.Register(b1)
	r.Register(b2)

	conns := r.ConnectionsFor("u2")
	if len(conns) != 2 {
		t.Fatalf("expected 2 connections for u2, got %d", len(conns))
	}
	if len(r.ConnectionsFor("u1")) != 1 {
		t.Fatal("expected 1 connection for u1")
	}
	if len(r.ConnectionsFor("nobody")) != 0 {
		t.Fatal("expected no connections for unknown user")
	}
}

func TestDeregisterRemovesEmptyEntries(t *testing.T) {
	r := NewRegistry()
	b1 := testClient("u2", "bob")
	b2 := testClient("u2", "bob")

	r.Register(b1)
	r.Register(b2)

	r.Deregister(b1)
	if len(r.ConnectionsFor("u2")) != 1 {
		t.Fatal("expected 1 remaining connection")
	}

	r.Deregister(b2)
	if len(r.ConnectionsFor("u2")) != 0 {
		t.Fatal("expected no remaining connections")
	}
	if r.Len() != 0 {
		t.Fatalf("expected empty registry, got %d", r.Len())
	}

	// Deregistering again is a no-op.
	r.Deregister(b2)
}

func TestSnapshotOneEntryPerConnection(t *testing.T) {
	r := NewRegistry()
	r.Register(testClient("u1", "alice"))
	r.Register(testClient("u2", "bob"))
	r.Register(testClient("u2", "bob"))

	entries := r.Snapshot()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries (one per connection), got %d", len(entries))
	}

	bobs := 0
	for _, e := range entries {
		if e.UserID == "u2" {
			if e.Username != "bob" {
				t.Fatalf("unexpected username %q", e.Username)
			}
			bobs++
		}
	}
	if bobs != 2 {
		t.Fatalf("expected bob listed twice, got %d", bobs)
	}
}

func TestSnapshotReflectsCurrentState(t *testing.T) {
	r := NewRegistry()
	a := testClient("u1", "alice")

	if len(r.Snapshot()) != 0 {
		t.Fatal("fresh registry should be empty")
	}

	r.Register(a)
	if len(r.Snapshot()) != 1 {
		t.Fatal("snapshot missing just-registered connection")
	}

	r.Deregister(a)
	if len(r.Snapshot()) != 0 {
		t.Fatal("snapshot lists deregistered connection")
	}
}

func TestConcurrentRegistration(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := testClient("u1", "alice")
			r.Register(c)
			r.Snapshot()
			r.ConnectionsFor("u1")
			r.Deregister(c)
		}()
	}
	wg.Wait()

	if r.Len() != 0 {
		t.Fatalf("expected empty registry after churn, got %d", r.Len())
	}
}

package ws

import (
	"encoding/json"
	"log/slog"
	"testing"
	"time"
)

// mockClient creates a Client with a send channel but no real connection.
func mockClient(hub *Hub, userID int64) *Client {
	return &Client{
		hub:    hub,
		conn:   nil,
		userID: userID,
		send:   make(chan []byte, sendBufferSize),
	}
}

func TestRegisterUnregister(t *testing.T) {
	hub := NewHub(slog.Default())

	c1 := mockClient(hub, 1)
	c2 := mockClient(hub, 1)

	hub.Register(c1)
	hub.Register(c2)

	if got := hub.ClientCount(1); got != 2 {
		t.Fatalf("expected 2 clients, got %d", got)
	}

	hub.Unregister(c1)

	if got := hub.ClientCount(1); got != 1 {
		t.Fatalf("expected 1 client after unregister, got %d", got)
	}

	hub.Unregister(c2)

	if got := hub.ClientCount(1); got != 0 {
		t.Fatalf("expected 0 clients, got %d", got)
	}
}

func TestDoubleUnregister(t *testing.T) {
	hub := NewHub(slog.Default())
	c := mockClient(hub, 1)
	hub.Register(c)
	hub.Unregister(c)
	// Should not panic
	hub.Unregister(c)

	if got := hub.ClientCount(1); got != 0 {
		t.Fatalf("expected 0 clients, got %d", got)
	}
}

func TestNotifyRoutesByUser(t *testing.T) {
	hub := NewHub(slog.Default())

	alice := mockClient(hub, 1)
	aliceTab := mockClient(hub, 1)
	bob := mockClient(hub, 2)
	hub.Register(alice)
	hub.Register(aliceTab)
	hub.Register(bob)

	msg := NewMessage("interest", "paused", 42, nil)
	hub.Notify(1, msg)

	// Both of Alice's connections get the message.
	for _, c := range []*Client{alice, aliceTab} {
		select {
		case data := <-c.send:
			var got Message
			if err := json.Unmarshal(data, &got); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if got.Type != "interest_paused" {
				t.Errorf("type = %s, want interest_paused", got.Type)
			}
			if got.ID != 42 {
				t.Errorf("id = %d, want 42", got.ID)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatal("timeout waiting for message")
		}
	}

	// Bob's connection stays quiet.
	select {
	case <-bob.send:
		t.Fatal("notification leaked to another user")
	default:
	}
}

func TestNotifyNoClients(t *testing.T) {
	hub := NewHub(slog.Default())
	// Should not panic
	hub.Notify(99, NewMessage("todo", "done", 1, nil))
}

func TestNotifyFullBuffer(t *testing.T) {
	hub := NewHub(slog.Default())

	c := mockClient(hub, 1)
	hub.Register(c)

	for i := 0; i < sendBufferSize; i++ {
		hub.Notify(1, NewMessage("todo", "created", int64(i), nil))
	}

	// This one is dropped rather than blocking.
	hub.Notify(1, NewMessage("todo", "created", 999, nil))

	count := 0
	for {
		select {
		case <-c.send:
			count++
		default:
			if count != sendBufferSize {
				t.Errorf("expected %d messages, got %d", sendBufferSize, count)
			}
			hub.Unregister(c)
			return
		}
	}
}

func TestNewMessage(t *testing.T) {
	msg := NewMessage("export", "paid", 5, map[string]any{"interest_id": float64(3)})
	if msg.Type != "export_paid" {
		t.Errorf("type = %s, want export_paid", msg.Type)
	}
	if msg.Entity != "export" || msg.Action != "paid" {
		t.Errorf("entity/action = %s/%s", msg.Entity, msg.Action)
	}
	if msg.ID != 5 {
		t.Errorf("id = %d, want 5", msg.ID)
	}
}

package realtime

import (
	"encoding/json"
	"sync"
	"testing"
	"time"
)

func TestHub_JoinClient(t *testing.T) {
	hub := NewHub()
	client := NewClient("user-1", "ems", "room-1")

	hub.Join(client)

	if hub.ClientCount() != 1 {
		t.Fatalf("expected 1 client, got %d", hub.ClientCount())
	}
	if hub.RoomCount("room-1") != 1 {
		t.Fatalf("expected 1 client in room-1, got %d", hub.RoomCount("room-1"))
	}
}

func TestHub_LeaveClient(t *testing.T) {
	hub := NewHub()
	client := NewClient("user-2", "hospital", "room-2")

	hub.Join(client)
	hub.Leave(client)

	if hub.ClientCount() != 0 {
		t.Fatalf("expected 0 clients, got %d", hub.ClientCount())
	}
	if hub.RoomCount("room-2") != 0 {
		t.Fatalf("expected 0 clients in room-2, got %d", hub.RoomCount("room-2"))
	}
}

func TestHub_LeaveClosesChannel(t *testing.T) {
	hub := NewHub()
	client := NewClient("user-3", "ems", "room-3")

	hub.Join(client)
	hub.Leave(client)

	_, ok := <-client.Send
	if ok {
		t.Fatal("expected Send channel to be closed after leave")
	}
}

func TestHub_LeaveTwiceIsNoop(t *testing.T) {
	hub := NewHub()
	client := NewClient("user-4", "ems", "room-4")

	hub.Join(client)
	hub.Leave(client)
	// Must not panic on double close.
	hub.Leave(client)
}

func TestHub_BroadcastToRoom(t *testing.T) {
	hub := NewHub()

	member := NewClient("sender", "ems", "room-a")
	other := NewClient("bystander", "hospital", "room-b")

	hub.Join(member)
	hub.Join(other)

	event := Event{
		Type:       EventMessage,
		SenderID:   "sender",
		SenderType: "ems",
		Message:    "patient inbound",
		Timestamp:  time.Now(),
	}
	hub.Broadcast("room-a", event)

	select {
	case msg := <-member.Send:
		var received Event
		if err := json.Unmarshal(msg, &received); err != nil {
			t.Fatalf("failed to unmarshal event: %v", err)
		}
		if received.Type != EventMessage {
			t.Fatalf("expected message event, got %s", received.Type)
		}
		if received.Message != "patient inbound" {
			t.Fatalf("unexpected message %q", received.Message)
		}
	case <-time.After(time.Second):
		t.Fatal("room member did not receive event")
	}

	select {
	case <-other.Send:
		t.Fatal("client in another room should not have received event")
	default:
		// expected
	}
}

func TestHub_BroadcastReachesSender(t *testing.T) {
	hub := NewHub()

	sender := NewClient("user-1", "ems", "room-x")
	peer := NewClient("user-2", "hospital", "room-x")

	hub.Join(sender)
	hub.Join(peer)

	hub.Broadcast("room-x", Event{Type: EventMessage, SenderID: "user-1", Message: "eta 5 min", Timestamp: time.Now()})

	for _, c := range []*Client{sender, peer} {
		select {
		case msg := <-c.Send:
			var received Event
			if err := json.Unmarshal(msg, &received); err != nil {
				t.Fatalf("failed to unmarshal: %v", err)
			}
			if received.SenderID != "user-1" {
				t.Fatalf("expected sender user-1, got %s", received.SenderID)
			}
		case <-time.After(time.Second):
			t.Fatalf("client %s did not receive broadcast", c.UserID)
		}
	}
}

func TestHub_SendTo(t *testing.T) {
	hub := NewHub()

	target := NewClient("user-1", "ems", "room-y")
	peer := NewClient("user-2", "hospital", "room-y")

	hub.Join(target)
	hub.Join(peer)

	hub.SendTo(target, Event{Type: EventError, Message: "invalid message format", Timestamp: time.Now()})

	select {
	case msg := <-target.Send:
		var received Event
		if err := json.Unmarshal(msg, &received); err != nil {
			t.Fatalf("failed to unmarshal: %v", err)
		}
		if received.Type != EventError {
			t.Fatalf("expected error event, got %s", received.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("target did not receive direct event")
	}

	select {
	case <-peer.Send:
		t.Fatal("peer should not have received direct event")
	default:
		// expected
	}
}

func TestHub_BroadcastToEmptyRoom(t *testing.T) {
	hub := NewHub()
	// Should not panic.
	hub.Broadcast("nobody-here", Event{Type: EventSystem, Message: "hello", Timestamp: time.Now()})
}

func TestHub_RoomCount(t *testing.T) {
	hub := NewHub()

	c1 := NewClient("u1", "ems", "room-1")
	c2 := NewClient("u2", "hospital", "room-1")
	c3 := NewClient("u3", "ems", "room-2")

	hub.Join(c1)
	hub.Join(c2)
	hub.Join(c3)

	if hub.RoomCount("room-1") != 2 {
		t.Fatalf("expected 2 in room-1, got %d", hub.RoomCount("room-1"))
	}
	if hub.RoomCount("room-2") != 1 {
		t.Fatalf("expected 1 in room-2, got %d", hub.RoomCount("room-2"))
	}
	if hub.RoomCount("missing") != 0 {
		t.Fatalf("expected 0 in missing room, got %d", hub.RoomCount("missing"))
	}
}

func TestHub_ConcurrentJoinLeave(t *testing.T) {
	hub := NewHub()
	const n = 100

	var wg sync.WaitGroup
	wg.Add(n * 2)

	clients := make([]*Client, n)
	for i := 0; i < n; i++ {
		clients[i] = NewClient("user", "ems", "room-shared")
	}

	for i := 0; i < n; i++ {
		go func(idx int) {
			defer wg.Done()
			hub.Join(clients[idx])
		}(i)
	}
	for i := 0; i < n; i++ {
		go func(idx int) {
			defer wg.Done()
			hub.Leave(clients[idx])
		}(i)
	}

	wg.Wait()

	if hub.ClientCount() < 0 {
		t.Fatalf("client count should not be negative, got %d", hub.ClientCount())
	}
}

func TestEvent_JSONShape(t *testing.T) {
	ts := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	event := Event{
		Type:       EventMessage,
		ID:         "msg-1",
		SenderID:   "user-1",
		SenderType: "ems",
		Message:    "5 minutes out",
		Timestamp:  ts,
	}

	data, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("failed to marshal event: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if decoded["type"] != "message" {
		t.Fatalf("expected type message, got %v", decoded["type"])
	}
	if decoded["sender_id"] != "user-1" {
		t.Fatalf("expected sender_id user-1, got %v", decoded["sender_id"])
	}
	if decoded["sender_type"] != "ems" {
		t.Fatalf("expected sender_type ems, got %v", decoded["sender_type"])
	}
}

func TestEvent_SystemOmitsSenderFields(t *testing.T) {
	event := Event{Type: EventSystem, Message: "General Hospital joined the room", Timestamp: time.Now()}

	data, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if _, ok := decoded["sender_id"]; ok {
		t.Fatal("expected sender_id to be omitted for system event")
	}
	if _, ok := decoded["sender_type"]; ok {
		t.Fatal("expected sender_type to be omitted for system event")
	}
}

package chat

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/pulseroute/api/internal/platform/auth"
	"github.com/pulseroute/api/internal/platform/realtime"
)

type sessionEnv struct {
	repo   *mockRepo
	hub    *realtime.Hub
	issuer *auth.TokenIssuer
	server *httptest.Server
}

func newSessionEnv(t *testing.T) *sessionEnv {
	t.Helper()

	repo := newMockRepo()
	svc := NewService(repo)
	hub := realtime.NewHub()
	issuer := auth.NewTokenIssuer("test-secret", time.Hour)

	e := echo.New()
	session := NewSessionHandler(svc, hub)
	e.GET("/chat/ws/:room_id", session.HandleConnect, auth.Middleware(issuer))

	server := httptest.NewServer(e)
	t.Cleanup(server.Close)

	return &sessionEnv{repo: repo, hub: hub, issuer: issuer, server: server}
}

func (env *sessionEnv) dial(t *testing.T, room *ChatRoom, userID uuid.UUID, userType, name string) *gorillawebsocket.Conn {
	t.Helper()
	token, err := env.issuer.Issue(userID.String(), userType, name)
	if err != nil {
		t.Fatalf("issuing token: %v", err)
	}
	wsURL := "ws" + strings.TrimPrefix(env.server.URL, "http") +
		"/chat/ws/" + room.ID.String() + "?token=" + token

	conn, resp, err := gorillawebsocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("expected 101, got %d", resp.StatusCode)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *gorillawebsocket.Conn) realtime.Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev realtime.Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("reading event: %v", err)
	}
	return ev
}

func TestSessionJoinBroadcastsSystemEvent(t *testing.T) {
	env := newSessionEnv(t)
	emsID := uuid.New()
	room := env.repo.addRoom(emsID, uuid.New())

	conn := env.dial(t, room, emsID, "ems", "Medic One")

	ev := readEvent(t, conn)
	if ev.Type != realtime.EventSystem {
		t.Fatalf("expected system event, got %s", ev.Type)
	}
	if !strings.Contains(ev.Message, "Medic One") || !strings.Contains(ev.Message, "joined") {
		t.Fatalf("unexpected join message %q", ev.Message)
	}
}

func TestSessionRejectsOutsider(t *testing.T) {
	env := newSessionEnv(t)
	room := env.repo.addRoom(uuid.New(), uuid.New())

	outsider := uuid.New()
	token, _ := env.issuer.Issue(outsider.String(), "ems", "Stranger")
	wsURL := "ws" + strings.TrimPrefix(env.server.URL, "http") +
		"/chat/ws/" + room.ID.String() + "?token=" + token

	_, resp, err := gorillawebsocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatal("expected dial to fail for non-participant")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 before upgrade, got %v", resp)
	}
}

func TestSessionMessageRoundTrip(t *testing.T) {
	env := newSessionEnv(t)
	emsID, hospUserID := uuid.New(), uuid.New()
	room := env.repo.addRoom(emsID, hospUserID)

	emsConn := env.dial(t, room, emsID, "ems", "Medic One")
	readEvent(t, emsConn) // own join

	hospConn := env.dial(t, room, hospUserID, "hospital", "General Desk")
	readEvent(t, hospConn) // own join
	readEvent(t, emsConn)  // hospital join seen by ems

	frame := InboundFrame{SenderID: emsID.String(), SenderType: "ems", Message: "eta 5 minutes"}
	if err := emsConn.WriteJSON(frame); err != nil {
		t.Fatalf("sending frame: %v", err)
	}

	for _, conn := range []*gorillawebsocket.Conn{emsConn, hospConn} {
		ev := readEvent(t, conn)
		if ev.Type != realtime.EventMessage {
			t.Fatalf("expected message event, got %s", ev.Type)
		}
		if ev.Message != "eta 5 minutes" {
			t.Fatalf("unexpected body %q", ev.Message)
		}
		if ev.SenderID != emsID.String() || ev.SenderType != "ems" {
			t.Fatalf("unexpected sender %s/%s", ev.SenderID, ev.SenderType)
		}
		if ev.ID == "" {
			t.Fatal("expected persisted message id in event")
		}
	}

	if env.repo.count(room.ID) != 1 {
		t.Fatalf("expected 1 persisted message, got %d", env.repo.count(room.ID))
	}
}

func TestSessionMalformedFrameErrorsSenderOnly(t *testing.T) {
	env := newSessionEnv(t)
	emsID, hospUserID := uuid.New(), uuid.New()
	room := env.repo.addRoom(emsID, hospUserID)

	emsConn := env.dial(t, room, emsID, "ems", "Medic One")
	readEvent(t, emsConn)

	hospConn := env.dial(t, room, hospUserID, "hospital", "General Desk")
	readEvent(t, hospConn)
	readEvent(t, emsConn)

	if err := emsConn.WriteMessage(gorillawebsocket.TextMessage, []byte(`{not json`)); err != nil {
		t.Fatalf("sending malformed frame: %v", err)
	}

	ev := readEvent(t, emsConn)
	if ev.Type != realtime.EventError {
		t.Fatalf("expected error event for sender, got %s", ev.Type)
	}

	// The connection survives the malformed frame.
	frame := InboundFrame{SenderID: emsID.String(), SenderType: "ems", Message: "still here"}
	if err := emsConn.WriteJSON(frame); err != nil {
		t.Fatalf("sending frame after error: %v", err)
	}
	ev = readEvent(t, hospConn)
	if ev.Type != realtime.EventMessage || ev.Message != "still here" {
		t.Fatalf("expected follow-up message, got %s %q", ev.Type, ev.Message)
	}
	if env.repo.count(room.ID) != 1 {
		t.Fatalf("malformed frame must not be persisted, got %d messages", env.repo.count(room.ID))
	}
}

func TestSessionSpoofedSenderDroppedSilently(t *testing.T) {
	env := newSessionEnv(t)
	emsID, hospUserID := uuid.New(), uuid.New()
	room := env.repo.addRoom(emsID, hospUserID)

	emsConn := env.dial(t, room, emsID, "ems", "Medic One")
	readEvent(t, emsConn)

	// Claim to be the hospital side.
	spoof := InboundFrame{SenderID: emsID.String(), SenderType: "hospital", Message: "spoofed"}
	if err := emsConn.WriteJSON(spoof); err != nil {
		t.Fatalf("sending spoofed frame: %v", err)
	}

	// A valid follow-up is the next broadcast; the spoof produced nothing.
	frame := InboundFrame{SenderID: emsID.String(), SenderType: "ems", Message: "legit"}
	if err := emsConn.WriteJSON(frame); err != nil {
		t.Fatalf("sending frame: %v", err)
	}
	ev := readEvent(t, emsConn)
	if ev.Type != realtime.EventMessage || ev.Message != "legit" {
		t.Fatalf("expected legit message next, got %s %q", ev.Type, ev.Message)
	}
	if env.repo.count(room.ID) != 1 {
		t.Fatalf("spoofed frame must not be persisted, got %d messages", env.repo.count(room.ID))
	}
}

func TestSessionLeaveBroadcastsSystemEvent(t *testing.T) {
	env := newSessionEnv(t)
	emsID, hospUserID := uuid.New(), uuid.New()
	room := env.repo.addRoom(emsID, hospUserID)

	emsConn := env.dial(t, room, emsID, "ems", "Medic One")
	readEvent(t, emsConn)

	hospConn := env.dial(t, room, hospUserID, "hospital", "General Desk")
	readEvent(t, hospConn)
	readEvent(t, emsConn)

	hospConn.Close()

	ev := readEvent(t, emsConn)
	if ev.Type != realtime.EventSystem {
		t.Fatalf("expected system event, got %s", ev.Type)
	}
	if !strings.Contains(ev.Message, "left") {
		t.Fatalf("expected leave message, got %q", ev.Message)
	}

	deadline := time.Now().Add(2 * time.Second)
	for env.hub.RoomCount(room.ID.String()) != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("expected 1 member left in room, got %d", env.hub.RoomCount(room.ID.String()))
		}
		time.Sleep(10 * time.Millisecond)
	}
}

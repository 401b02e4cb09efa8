package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/pulseroute/api/internal/platform/auth"
	"github.com/pulseroute/api/internal/platform/realtime"
)

var upgrader = gorillawebsocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins; tighten in production.
	},
}

// SessionHandler upgrades room connections and runs one chat session per
// connection for its lifetime.
type SessionHandler struct {
	svc *Service
	hub *realtime.Hub
}

func NewSessionHandler(svc *Service, hub *realtime.Hub) *SessionHandler {
	return &SessionHandler{svc: svc, hub: hub}
}

// HandleConnect authorizes the caller against the room before upgrading,
// then joins the room and starts the read/write pumps.
func (sh *SessionHandler) HandleConnect(c echo.Context) error {
	userID, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid caller identity")
	}
	roomID, err := uuid.Parse(c.Param("room_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	room, err := sh.svc.Room(c.Request().Context(), roomID, userID)
	if err != nil {
		return roomError(err)
	}

	userType := auth.UserTypeFromContext(c.Request().Context())
	userName := auth.UserNameFromContext(c.Request().Context())

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	client := realtime.NewClient(userID.String(), userType, room.ID.String())
	sh.hub.Join(client)
	sh.hub.Broadcast(room.ID.String(), realtime.Event{
		Type:      realtime.EventSystem,
		Message:   userName + " joined the room",
		Timestamp: time.Now(),
	})

	go sh.writePump(client, ws)
	go sh.readPump(client, ws, room, userName)

	return nil
}

// readPump processes inbound frames until the connection drops. Room
// membership is released on every exit path.
func (sh *SessionHandler) readPump(client *realtime.Client, ws *gorillawebsocket.Conn, room *ChatRoom, userName string) {
	defer func() {
		sh.hub.Leave(client)
		ws.Close()
		sh.hub.Broadcast(room.ID.String(), realtime.Event{
			Type:      realtime.EventSystem,
			Message:   userName + " left the room",
			Timestamp: time.Now(),
		})
	}()

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			return
		}

		var frame InboundFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			// Malformed frames are reported to the sender only.
			sh.hub.SendTo(client, realtime.Event{
				Type:      realtime.EventError,
				Message:   "invalid message format",
				Timestamp: time.Now(),
			})
			continue
		}

		senderID, err := uuid.Parse(frame.SenderID)
		if err != nil {
			sh.hub.SendTo(client, realtime.Event{
				Type:      realtime.EventError,
				Message:   "invalid message format",
				Timestamp: time.Now(),
			})
			continue
		}

		msg, err := sh.svc.Post(context.Background(), room, senderID, frame.SenderType, frame.Message)
		if err != nil {
			if err == ErrForbidden {
				// Impersonation attempts are dropped silently.
				continue
			}
			log.Error().Err(err).Str("room_id", room.ID.String()).Msg("chat: failed to persist message")
			sh.hub.SendTo(client, realtime.Event{
				Type:      realtime.EventError,
				Message:   "message could not be delivered",
				Timestamp: time.Now(),
			})
			continue
		}

		sh.hub.Broadcast(room.ID.String(), realtime.Event{
			Type:       realtime.EventMessage,
			ID:         msg.ID.String(),
			SenderID:   msg.SenderID.String(),
			SenderType: msg.SenderType,
			Message:    msg.Message,
			Timestamp:  msg.CreatedAt,
		})
	}
}

// writePump drains the client's send buffer onto the wire. A write failure
// drops the connection from the room so broadcasts to others proceed.
func (sh *SessionHandler) writePump(client *realtime.Client, ws *gorillawebsocket.Conn) {
	defer func() {
		sh.hub.Leave(client)
		ws.Close()
	}()

	for message := range client.Send {
		if err := ws.WriteMessage(gorillawebsocket.TextMessage, message); err != nil {
			return
		}
	}
}

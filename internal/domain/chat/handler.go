package chat

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/pulseroute/api/internal/platform/auth"
	"github.com/pulseroute/api/pkg/pagination"
)

type Handler struct {
	svc     *Service
	session *SessionHandler
}

func NewHandler(svc *Service, session *SessionHandler) *Handler {
	return &Handler{svc: svc, session: session}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/chat")
	g.GET("/rooms", h.ListRooms)
	g.GET("/rooms/:id", h.GetRoom)
	g.GET("/rooms/:id/messages", h.ListMessages)
	g.GET("/ws/:room_id", h.session.HandleConnect)
}

func roomError(err error) error {
	switch {
	case errors.Is(err, ErrRoomNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "chat room not found")
	case errors.Is(err, ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, "not a room participant")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) ListRooms(c echo.Context) error {
	userID, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid caller identity")
	}
	rooms, err := h.svc.RoomsForUser(c.Request().Context(), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": rooms, "total": len(rooms)})
}

func (h *Handler) GetRoom(c echo.Context) error {
	userID, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid caller identity")
	}
	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	room, err := h.svc.Room(c.Request().Context(), roomID, userID)
	if err != nil {
		return roomError(err)
	}
	return c.JSON(http.StatusOK, room)
}

func (h *Handler) ListMessages(c echo.Context) error {
	userID, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid caller identity")
	}
	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.Messages(c.Request().Context(), roomID, userID, pg.Limit, pg.Offset)
	if err != nil {
		return roomError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

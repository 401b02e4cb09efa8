package transfer

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/pulseroute/api/internal/domain/identity"
	"github.com/pulseroute/api/internal/platform/auth"
	"github.com/pulseroute/api/pkg/pagination"
)

// UserDirectory resolves authenticated callers to their accounts.
type UserDirectory interface {
	Get(ctx context.Context, id string) (*identity.User, error)
}

type Handler struct {
	svc   *Service
	users UserDirectory
}

func NewHandler(svc *Service, users UserDirectory) *Handler {
	return &Handler{svc: svc, users: users}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/history", h.AcceptedHistory)
	api.GET("/history/:patient_id/timeline", h.HistoryTimeline)

	ems := api.Group("", auth.RequireType("ems"))
	ems.POST("/patients", h.Register)
	ems.GET("/patients", h.History)
	ems.GET("/patients/:id", h.GetPatient)
	ems.GET("/patients/:id/timeline", h.GetTimeline)
	ems.POST("/patients/:id/retry-match", h.RetryMatch)
	ems.POST("/patients/:id/requests", h.CreateRequest)
	ems.POST("/patients/:id/complete", h.Complete)

	hosp := api.Group("", auth.RequireType("hospital"))
	hosp.GET("/requests/pending", h.PendingRequests)
	hosp.POST("/requests/:id/accept", h.AcceptRequest)
	hosp.POST("/requests/:id/reject", h.RejectRequest)
}

// httpError maps domain errors onto HTTP status codes.
func httpError(err error) error {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		return echo.NewHTTPError(http.StatusBadRequest, ve.Msg)
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	case errors.Is(err, ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, "forbidden")
	case errors.Is(err, ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, "invalid state transition")
	case errors.Is(err, ErrNotEligible):
		return echo.NewHTTPError(http.StatusConflict, "patient not eligible for matching")
	case errors.Is(err, ErrMatchingFailed):
		return echo.NewHTTPError(http.StatusBadGateway, "matching failed")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func callerID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "invalid caller identity")
	}
	return id, nil
}

// callerHospital resolves a hospital caller to its facility id.
func (h *Handler) callerHospital(c echo.Context) (userID, hospitalID uuid.UUID, err error) {
	uid, err := callerID(c)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	u, err := h.users.Get(c.Request().Context(), uid.String())
	if err != nil {
		return uuid.Nil, uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "unknown caller")
	}
	if u.HospitalID == nil {
		return uuid.Nil, uuid.Nil, echo.NewHTTPError(http.StatusForbidden, "account has no hospital")
	}
	return uid, *u.HospitalID, nil
}

func (h *Handler) Register(c echo.Context) error {
	emsID, err := callerID(c)
	if err != nil {
		return err
	}
	var in RegisterInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.svc.Register(c.Request().Context(), emsID, in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) RetryMatch(c echo.Context) error {
	emsID, err := callerID(c)
	if err != nil {
		return err
	}
	pid, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p, err := h.svc.RetryMatch(c.Request().Context(), pid, emsID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) GetPatient(c echo.Context) error {
	emsID, err := callerID(c)
	if err != nil {
		return err
	}
	pid, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p, err := h.svc.GetPatient(c.Request().Context(), pid, emsID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) History(c echo.Context) error {
	emsID, err := callerID(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.History(c.Request().Context(), emsID, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

const (
	defaultHistoryDays = 30
	maxHistoryDays     = 365
)

// historyCaller resolves the caller for the role-agnostic history routes.
func (h *Handler) historyCaller(c echo.Context) (callerType string, emsID, hospitalID uuid.UUID, err error) {
	callerType = auth.UserTypeFromContext(c.Request().Context())
	switch callerType {
	case "ems":
		emsID, err = callerID(c)
	case "hospital":
		_, hospitalID, err = h.callerHospital(c)
	default:
		err = echo.NewHTTPError(http.StatusForbidden, "forbidden")
	}
	return callerType, emsID, hospitalID, err
}

func (h *Handler) AcceptedHistory(c echo.Context) error {
	callerType, emsID, hospitalID, err := h.historyCaller(c)
	if err != nil {
		return err
	}

	days := defaultHistoryDays
	if raw := c.QueryParam("days"); raw != "" {
		if v, perr := strconv.Atoi(raw); perr == nil && v >= 1 && v <= maxHistoryDays {
			days = v
		}
	}
	f := HistoryFilter{
		Since:        time.Now().AddDate(0, 0, -days),
		SeverityCode: c.QueryParam("severity_code"),
	}

	pg := pagination.FromContext(c)
	items, total, err := h.svc.AcceptedHistory(c.Request().Context(), callerType, emsID, hospitalID, f, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) HistoryTimeline(c echo.Context) error {
	callerType, emsID, hospitalID, err := h.historyCaller(c)
	if err != nil {
		return err
	}
	pid, err := uuid.Parse(c.Param("patient_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	tl, err := h.svc.TimelineFor(c.Request().Context(), pid, callerType, emsID, hospitalID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, tl)
}

func (h *Handler) GetTimeline(c echo.Context) error {
	emsID, err := callerID(c)
	if err != nil {
		return err
	}
	pid, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	tl, err := h.svc.GetTimeline(c.Request().Context(), pid, emsID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, tl)
}

func (h *Handler) CreateRequest(c echo.Context) error {
	emsID, err := callerID(c)
	if err != nil {
		return err
	}
	pid, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var body struct {
		HospitalID uuid.UUID `json:"hospital_id"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if body.HospitalID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "hospital_id is required")
	}
	req, err := h.svc.CreateRequest(c.Request().Context(), pid, emsID, body.HospitalID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, req)
}

func (h *Handler) Complete(c echo.Context) error {
	emsID, err := callerID(c)
	if err != nil {
		return err
	}
	pid, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p, err := h.svc.Complete(c.Request().Context(), pid, emsID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) PendingRequests(c echo.Context) error {
	_, hospitalID, err := h.callerHospital(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.PendingForHospital(c.Request().Context(), hospitalID, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) AcceptRequest(c echo.Context) error {
	userID, hospitalID, err := h.callerHospital(c)
	if err != nil {
		return err
	}
	rid, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	req, err := h.svc.Accept(c.Request().Context(), rid, hospitalID, userID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, req)
}

func (h *Handler) RejectRequest(c echo.Context) error {
	_, hospitalID, err := h.callerHospital(c)
	if err != nil {
		return err
	}
	rid, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var body struct {
		Reason string `json:"reason"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	req, err := h.svc.Reject(c.Request().Context(), rid, hospitalID, body.Reason)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, req)
}

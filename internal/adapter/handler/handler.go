package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/srgjo27/roomshare/internal/core/domain"
	"github.com/srgjo27/roomshare/internal/core/services"
)

// RequestValidator plugs go-playground/validator into echo's c.Validate.
type RequestValidator struct {
	v *validator.Validate
}

func NewRequestValidator() *RequestValidator {
	return &RequestValidator{v: validator.New()}
}

func (rv *RequestValidator) Validate(i any) error {
	if err := rv.v.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

type RoomHandler struct {
	rooms     *services.RoomService
	quotas    *services.QuotaService
	allocator *services.Allocator
	validator *services.Validator
	log       *slog.Logger
}

func NewRoomHandler(rooms *services.RoomService, quotas *services.QuotaService, allocator *services.Allocator, validator *services.Validator, logger *slog.Logger) *RoomHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RoomHandler{rooms: rooms, quotas: quotas, allocator: allocator, validator: validator, log: logger}
}

func (h *RoomHandler) Register(e *echo.Echo) {
	e.GET("/events/:event/quotas", h.ListQuotas)
	e.POST("/events/:event/quotas", h.CreateQuota)
	e.PUT("/quotas/:quota", h.UpdateQuota)
	e.DELETE("/quotas/:quota", h.DeleteQuota)

	e.GET("/events/:event/rooms", h.ListRooms)
	e.POST("/events/:event/rooms/join", h.JoinRoom)
	e.POST("/quotas/:quota/rooms", h.CreateRoom)
	e.GET("/rooms/:room", h.RoomDetail)
	e.PUT("/rooms/:room", h.UpdateRoom)
	e.DELETE("/rooms/:room", h.DeleteRoom)
	e.POST("/rooms/:room/orders", h.AssignOrder)

	e.DELETE("/memberships/:membership", h.LeaveRoom)
	e.PUT("/memberships/:membership/password", h.ChangePassword)
	e.PUT("/memberships/:membership/settings", h.UpdateSettings)

	e.POST("/orders/:order/placed", h.OrderPlaced)
	e.POST("/orders/:order/canceled", h.OrderCanceled)
	e.DELETE("/orders/:order/room", h.RemoveOrder)
	e.POST("/events/:event/orders/validate", h.ValidateOrder)

	e.POST("/events/:event/allocation", h.RunAllocation)
}

func pathID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name+" id")
	}
	return id, nil
}

// bind decodes and validates the request body into req.
func bind(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid json body")
	}
	return c.Validate(req)
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrPasswordMismatch), errors.Is(err, domain.ErrNotRoomAdmin):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrCapacity), errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrConsistency), errors.Is(err, domain.ErrPartialAssignment):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrInvalidHolder):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (h *RoomHandler) fail(c echo.Context, err error) error {
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}

	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		h.log.ErrorContext(c.Request().Context(), "request failed", "path", c.Path(), "error", err)
		return c.JSON(status, map[string]string{"error": "internal server error"})
	}
	return c.JSON(status, map[string]string{"error": err.Error()})
}

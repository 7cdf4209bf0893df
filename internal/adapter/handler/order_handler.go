package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/srgjo27/roomshare/internal/core/domain"
)

func (h *RoomHandler) OrderPlaced(c echo.Context) error {
	orderID, err := pathID(c, "order")
	if err != nil {
		return err
	}
	var meta domain.RoomMeta
	if err := bind(c, &meta); err != nil {
		return err
	}
	if err := h.rooms.PlaceOrder(c.Request().Context(), orderID, meta); err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *RoomHandler) OrderCanceled(c echo.Context) error {
	orderID, err := pathID(c, "order")
	if err != nil {
		return err
	}
	if err := h.rooms.CancelOrder(c.Request().Context(), orderID); err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *RoomHandler) RemoveOrder(c echo.Context) error {
	orderID, err := pathID(c, "order")
	if err != nil {
		return err
	}
	kept, err := h.rooms.RemoveOrder(c.Request().Context(), orderID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"room_kept": kept})
}

func (h *RoomHandler) ValidateOrder(c echo.Context) error {
	eventID, err := pathID(c, "event")
	if err != nil {
		return err
	}
	var req ValidateOrderRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	placement := domain.Placement{EventID: eventID, Meta: req.Meta, ItemIDs: req.ItemIDs}
	if err := h.validator.ValidateOrderRoomState(c.Request().Context(), placement); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"valid": true})
}

func (h *RoomHandler) RunAllocation(c echo.Context) error {
	eventID, err := pathID(c, "event")
	if err != nil {
		return err
	}
	var req AllocationRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	result, err := h.allocator.RunAllocation(c.Request().Context(), eventID, req.Force)
	var partial *domain.PartialAssignmentError
	if errors.As(err, &partial) {
		return c.JSON(errorStatus(err), result)
	}
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/srgjo27/roomshare/internal/core/domain"
)

func (h *RoomHandler) ListQuotas(c echo.Context) error {
	eventID, err := pathID(c, "event")
	if err != nil {
		return err
	}
	usage, err := h.quotas.ListQuotas(c.Request().Context(), eventID)
	if err != nil {
		return h.fail(c, err)
	}

	resp := make([]QuotaResponse, 0, len(usage))
	for _, u := range usage {
		resp = append(resp, quotaResponse(u.Quota, u.ValidRooms))
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *RoomHandler) CreateQuota(c echo.Context) error {
	eventID, err := pathID(c, "event")
	if err != nil {
		return err
	}
	var req QuotaRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	quota := req.quota()
	quota.EventID = eventID
	if err := h.quotas.CreateQuota(c.Request().Context(), &quota); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, quotaResponse(quota, 0))
}

func (h *RoomHandler) UpdateQuota(c echo.Context) error {
	quotaID, err := pathID(c, "quota")
	if err != nil {
		return err
	}
	var req QuotaRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	quota := req.quota()
	quota.ID = quotaID
	if err := h.quotas.UpdateQuota(c.Request().Context(), &quota); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, quotaResponse(quota, 0))
}

func (h *RoomHandler) DeleteQuota(c echo.Context) error {
	quotaID, err := pathID(c, "quota")
	if err != nil {
		return err
	}
	if err := h.quotas.DeleteQuota(c.Request().Context(), quotaID); err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (r QuotaRequest) quota() domain.Quota {
	return domain.Quota{
		Name:          r.Name,
		Capacity:      r.Capacity,
		ExtraCapacity: r.ExtraCapacity,
		MaxRooms:      r.MaxRooms,
		ItemIDs:       r.ItemIDs,
	}
}

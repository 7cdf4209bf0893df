package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/srgjo27/roomshare/internal/core/domain"
)

func (h *RoomHandler) ListRooms(c echo.Context) error {
	eventID, err := pathID(c, "event")
	if err != nil {
		return err
	}
	views, err := h.rooms.ListRooms(c.Request().Context(), eventID)
	if err != nil {
		return h.fail(c, err)
	}

	resp := make([]RoomResponse, 0, len(views))
	for _, v := range views {
		resp = append(resp, roomViewResponse(v))
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *RoomHandler) RoomDetail(c echo.Context) error {
	roomID, err := pathID(c, "room")
	if err != nil {
		return err
	}
	view, err := h.rooms.RoomDetail(c.Request().Context(), roomID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, roomViewResponse(*view))
}

func (h *RoomHandler) JoinRoom(c echo.Context) error {
	eventID, err := pathID(c, "event")
	if err != nil {
		return err
	}
	var req JoinRoomRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	holder, err := req.holder()
	if err != nil {
		return err
	}

	m, err := h.rooms.JoinRoom(c.Request().Context(), eventID, req.Name, req.Password, holder)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, membershipResponse(*m))
}

func (h *RoomHandler) CreateRoom(c echo.Context) error {
	quotaID, err := pathID(c, "quota")
	if err != nil {
		return err
	}
	var req CreateRoomRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	holder, err := req.holder()
	if err != nil {
		return err
	}

	room, m, err := h.rooms.CreateRoom(c.Request().Context(), quotaID, req.Name, req.Password, holder)
	if err != nil {
		return h.fail(c, err)
	}
	resp := roomResponse(*room)
	resp.Occupants = []MembershipResponse{membershipResponse(*m)}
	return c.JSON(http.StatusCreated, resp)
}

func (h *RoomHandler) UpdateRoom(c echo.Context) error {
	roomID, err := pathID(c, "room")
	if err != nil {
		return err
	}
	var req UpdateRoomRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	room, err := h.rooms.UpdateRoom(c.Request().Context(), roomID, req.Name, req.Password)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, roomResponse(*room))
}

func (h *RoomHandler) DeleteRoom(c echo.Context) error {
	roomID, err := pathID(c, "room")
	if err != nil {
		return err
	}
	if err := h.rooms.DeleteRoom(c.Request().Context(), roomID); err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *RoomHandler) AssignOrder(c echo.Context) error {
	roomID, err := pathID(c, "room")
	if err != nil {
		return err
	}
	var req AssignOrderRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	m, err := h.rooms.AssignOrder(c.Request().Context(), roomID, req.OrderID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, membershipResponse(*m))
}

func (h *RoomHandler) LeaveRoom(c echo.Context) error {
	membershipID, err := pathID(c, "membership")
	if err != nil {
		return err
	}
	if err := h.rooms.LeaveRoom(c.Request().Context(), membershipID); err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *RoomHandler) ChangePassword(c echo.Context) error {
	membershipID, err := pathID(c, "membership")
	if err != nil {
		return err
	}
	var req PasswordRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.rooms.ChangeRoomPassword(c.Request().Context(), membershipID, req.Password); err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *RoomHandler) UpdateSettings(c echo.Context) error {
	membershipID, err := pathID(c, "membership")
	if err != nil {
		return err
	}
	var req SettingsRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	settings := domain.RoomSettings{
		DisableRandomExtra: req.DisableRandomExtra,
		OptoutRandomExtra:  req.OptoutRandomExtra,
	}
	if err := h.rooms.UpdateRoomSettings(c.Request().Context(), membershipID, settings); err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

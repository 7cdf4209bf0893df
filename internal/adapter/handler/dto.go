package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/srgjo27/roomshare/internal/core/domain"
	"github.com/srgjo27/roomshare/internal/core/services"
)

// HolderRequest names the occupant: a cart session or an order, not both.
type HolderRequest struct {
	CartID  string `json:"cart_id" validate:"omitempty,max=255"`
	OrderID int64  `json:"order_id" validate:"omitempty,gt=0"`
}

func (r HolderRequest) holder() (domain.Holder, error) {
	var h domain.Holder
	switch {
	case r.CartID != "" && r.OrderID != 0:
	case r.CartID != "":
		h = domain.CartHolder(r.CartID)
	default:
		h = domain.OrderHolder(r.OrderID)
	}
	if h.IsZero() {
		return h, echo.NewHTTPError(http.StatusBadRequest, domain.ErrInvalidHolder.Error())
	}
	return h, nil
}

type QuotaRequest struct {
	Name          string  `json:"name" validate:"required,max=255"`
	Capacity      int     `json:"capacity" validate:"required,gt=0"`
	ExtraCapacity int     `json:"extra_capacity" validate:"gte=0"`
	MaxRooms      int     `json:"max_rooms" validate:"gte=0"`
	ItemIDs       []int64 `json:"item_ids" validate:"required,min=1,dive,gt=0"`
}

type JoinRoomRequest struct {
	HolderRequest
	Name     string `json:"name" validate:"required,max=190"`
	Password string `json:"password" validate:"required,min=3,max=190"`
}

type CreateRoomRequest struct {
	HolderRequest
	Name     string `json:"name" validate:"required,max=190"`
	Password string `json:"password" validate:"required,min=3,max=190"`
}

type UpdateRoomRequest struct {
	Name     string `json:"name" validate:"required,max=190"`
	Password string `json:"password" validate:"max=190"`
}

type PasswordRequest struct {
	Password string `json:"password" validate:"required,min=3,max=190"`
}

type SettingsRequest struct {
	DisableRandomExtra bool `json:"disable_random_extra"`
	OptoutRandomExtra  bool `json:"optout_random_extra"`
}

type AssignOrderRequest struct {
	OrderID int64 `json:"order_id" validate:"required,gt=0"`
}

type ValidateOrderRequest struct {
	Meta    domain.RoomMeta `json:"meta"`
	ItemIDs []int64         `json:"item_ids"`
}

type AllocationRequest struct {
	Force bool `json:"force"`
}

type QuotaResponse struct {
	ID            int64   `json:"id"`
	EventID       int64   `json:"event_id"`
	Name          string  `json:"name"`
	Capacity      int     `json:"capacity"`
	ExtraCapacity int     `json:"extra_capacity"`
	MaxRooms      int     `json:"max_rooms"`
	ItemIDs       []int64 `json:"item_ids"`
	ValidRooms    int     `json:"valid_rooms"`
}

func quotaResponse(q domain.Quota, validRooms int) QuotaResponse {
	return QuotaResponse{
		ID:            q.ID,
		EventID:       q.EventID,
		Name:          q.Name,
		Capacity:      q.Capacity,
		ExtraCapacity: q.ExtraCapacity,
		MaxRooms:      q.MaxRooms,
		ItemIDs:       q.ItemIDs,
		ValidRooms:    validRooms,
	}
}

type MembershipResponse struct {
	ID      int64  `json:"id"`
	RoomID  int64  `json:"room_id"`
	CartID  string `json:"cart_id,omitempty"`
	OrderID int64  `json:"order_id,omitempty"`
	IsAdmin bool   `json:"is_admin"`
}

func membershipResponse(m domain.Membership) MembershipResponse {
	resp := MembershipResponse{ID: m.ID, RoomID: m.RoomID, IsAdmin: m.IsAdmin}
	resp.CartID, _ = m.Holder.Cart()
	resp.OrderID, _ = m.Holder.Order()
	return resp
}

// RoomResponse never includes the password; only the operator and the room's
// occupants learn it outside this API.
type RoomResponse struct {
	ID                 int64                `json:"id"`
	EventID            int64                `json:"event_id"`
	QuotaID            int64                `json:"quota_id"`
	QuotaName          string               `json:"quota_name,omitempty"`
	Name               string               `json:"name"`
	DisableRandomExtra bool                 `json:"disable_random_extra"`
	OptoutRandomExtra  bool                 `json:"optout_random_extra"`
	Occupants          []MembershipResponse `json:"occupants,omitempty"`
}

func roomResponse(r domain.Room) RoomResponse {
	return RoomResponse{
		ID:                 r.ID,
		EventID:            r.EventID,
		QuotaID:            r.QuotaID,
		Name:               r.Name,
		DisableRandomExtra: r.DisableRandomExtra,
		OptoutRandomExtra:  r.OptoutRandomExtra,
	}
}

func roomViewResponse(v services.RoomView) RoomResponse {
	resp := roomResponse(v.Room)
	resp.QuotaName = v.QuotaName
	for _, m := range v.Occupants {
		resp.Occupants = append(resp.Occupants, membershipResponse(m))
	}
	return resp
}

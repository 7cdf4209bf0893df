package domain

// RoomMode is the room choice a buyer made during checkout.
type RoomMode string

const (
	RoomModeAbsent RoomMode = ""
	RoomModeNone   RoomMode = "none"
	RoomModeJoin   RoomMode = "join"
	RoomModeCreate RoomMode = "create"
)

// RoomMeta is the room metadata recorded on an order at checkout. RoomCreate
// references a Room, RoomJoin references a Membership.
type RoomMeta struct {
	Mode       RoomMode `json:"room_mode,omitempty" yaml:"room_mode,omitempty"`
	RoomCreate *int64   `json:"room_create,omitempty" yaml:"room_create,omitempty"`
	RoomJoin   *int64   `json:"room_join,omitempty" yaml:"room_join,omitempty"`
}

// Placement is an order about to be confirmed.
type Placement struct {
	EventID int64
	Meta    RoomMeta
	ItemIDs []int64
}

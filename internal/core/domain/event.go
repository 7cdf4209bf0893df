package domain

import "time"

type RoomEventType string

const (
	EventMembershipCreated RoomEventType = "membership.created"
	EventMembershipDeleted RoomEventType = "membership.deleted"
	EventRoomCreated       RoomEventType = "room.created"
	EventRoomDeleted       RoomEventType = "room.deleted"
	EventRoomsAllocated    RoomEventType = "rooms.allocated"
)

// RoomEvent describes a committed change. Fields that do not apply to the
// event type are left zero.
type RoomEvent struct {
	Type         RoomEventType `json:"type"`
	EventID      int64         `json:"event_id"`
	RoomID       int64         `json:"room_id,omitempty"`
	MembershipID int64         `json:"membership_id,omitempty"`
	OrderID      int64         `json:"order_id,omitempty"`
	Assigned     int           `json:"assigned,omitempty"`
	Failed       []int64       `json:"failed,omitempty"`
	OccurredAt   time.Time     `json:"occurred_at"`
}

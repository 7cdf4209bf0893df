package domain

type Room struct {
	ID       int64
	EventID  int64
	QuotaID  int64
	Name     string
	Password string

	// DisableRandomExtra keeps the allocator from filling this room's extra capacity.
	DisableRandomExtra bool
	// OptoutRandomExtra has the same effect, but only while the event grants hosts
	// control over overflow assignment.
	OptoutRandomExtra bool
}

// AcceptsRandomExtra reports whether the allocator may place orders into the
// extra capacity of r.
func (r *Room) AcceptsRandomExtra(hostControl bool) bool {
	if r.DisableRandomExtra {
		return false
	}
	if hostControl && r.OptoutRandomExtra {
		return false
	}
	return true
}

// RoomSettings carries the host-editable overflow flags of a room.
type RoomSettings struct {
	DisableRandomExtra bool
	OptoutRandomExtra  bool
}

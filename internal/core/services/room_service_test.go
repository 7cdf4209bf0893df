package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/srgjo27/roomshare/internal/core/domain"
	"github.com/srgjo27/roomshare/internal/core/ports"
	"github.com/srgjo27/roomshare/internal/core/ports/mocks"
	"github.com/srgjo27/roomshare/internal/core/services"
)

func TestJoinRoom_CapacityAndPassword(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	q := f.quota(t, "Double", 2, 1, 5, 10)

	room, admin, err := f.rooms.CreateRoom(ctx, q.ID, "Dorm", "pw-123", f.cart("c1", 10, time.Hour))
	require.NoError(t, err)
	assert.True(t, admin.IsAdmin)

	_, err = f.rooms.JoinRoom(ctx, eventID, "Dorm", "wrong", f.cart("c2", 10, time.Hour))
	assert.ErrorIs(t, err, domain.ErrPasswordMismatch)

	joined, err := f.rooms.JoinRoom(ctx, eventID, "Dorm", "pw-123", domain.CartHolder("c2"))
	require.NoError(t, err)
	assert.Equal(t, room.ID, joined.RoomID)
	assert.False(t, joined.IsAdmin)

	// Extra capacity is reserved for the allocator.
	_, err = f.rooms.JoinRoom(ctx, eventID, "Dorm", "pw-123", f.cart("c3", 10, time.Hour))
	assert.ErrorIs(t, err, domain.ErrRoomFull)
	assert.ErrorIs(t, err, domain.ErrCapacity)

	_, err = f.rooms.JoinRoom(ctx, eventID, "Nowhere", "pw-123", domain.CartHolder("c3"))
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)

	_, err = f.rooms.JoinRoom(ctx, eventID, "Dorm", "pw-123", domain.Holder{})
	assert.ErrorIs(t, err, domain.ErrInvalidHolder)
}

func TestJoinRoom_StaleRoomIsNotFound(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	q := f.quota(t, "Double", 2, 0, 5, 10)
	f.paid(1)

	_, _, err := f.rooms.CreateRoom(ctx, q.ID, "Dorm", "pw-123", domain.OrderHolder(1))
	require.NoError(t, err)
	f.db.SetOrderStatus(1, domain.OrderExpired)

	_, err = f.rooms.JoinRoom(ctx, eventID, "Dorm", "pw-123", f.cart("c1", 10, time.Hour))
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
}

func TestCreateRoom_QuotaExhausted(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	q := f.quota(t, "Suite", 2, 0, 1, 10)
	f.paid(1, 2)

	_, _, err := f.rooms.CreateRoom(ctx, q.ID, "A", "pw-123", domain.OrderHolder(1))
	require.NoError(t, err)

	_, _, err = f.rooms.CreateRoom(ctx, q.ID, "B", "pw-123", domain.OrderHolder(2))
	assert.ErrorIs(t, err, domain.ErrQuotaExhausted)
	assert.Len(t, f.eventRooms(t), 1)
}

func TestCreateRoom_RejectsShortPassword(t *testing.T) {
	f := newFixture(t, nil)
	q := f.quota(t, "Suite", 2, 0, 1, 10)

	_, _, err := f.rooms.CreateRoom(context.Background(), q.ID, "A", "pw", f.cart("c1", 10, time.Hour))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestCreateRoom_DuplicateAndStaleNames(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	q := f.quota(t, "Double", 2, 0, 5, 10)
	f.paid(1, 2, 3)

	first, _, err := f.rooms.CreateRoom(ctx, q.ID, "Dorm", "pw-123", domain.OrderHolder(1))
	require.NoError(t, err)

	_, _, err = f.rooms.CreateRoom(ctx, q.ID, "Dorm", "pw-456", domain.OrderHolder(2))
	assert.ErrorIs(t, err, domain.ErrDuplicateName)

	f.db.SetOrderStatus(1, domain.OrderCanceled)

	reused, admin, err := f.rooms.CreateRoom(ctx, q.ID, "Dorm", "pw-456", domain.OrderHolder(2))
	require.NoError(t, err)
	assert.Equal(t, first.ID, reused.ID)
	assert.Equal(t, "pw-456", reused.Password)
	assert.True(t, admin.IsAdmin)

	_, err = f.rooms.JoinRoom(ctx, eventID, "Dorm", "pw-123", domain.OrderHolder(3))
	assert.ErrorIs(t, err, domain.ErrPasswordMismatch)

	members := f.members(t, reused.ID)
	require.Len(t, members, 1, "memberships of the stale room are dropped")
	assert.Equal(t, admin.ID, members[0].ID)

	// The previous holder coming back does not revive its old seat.
	f.db.SetOrderStatus(1, domain.OrderPaid)
	members = f.members(t, reused.ID)
	require.Len(t, members, 1)
	assert.Equal(t, 1, admins(members))
}

func TestLeaveRoom_AdminHandsOver(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	q := f.quota(t, "Double", 2, 0, 5, 10)
	f.paid(1, 2)

	room, admin, err := f.rooms.CreateRoom(ctx, q.ID, "Dorm", "pw-123", domain.OrderHolder(1))
	require.NoError(t, err)
	second, err := f.rooms.JoinRoom(ctx, eventID, "Dorm", "pw-123", domain.OrderHolder(2))
	require.NoError(t, err)

	require.NoError(t, f.rooms.LeaveRoom(ctx, admin.ID))

	members := f.members(t, room.ID)
	require.Len(t, members, 1)
	assert.Equal(t, second.ID, members[0].ID)
	assert.True(t, members[0].IsAdmin)
	assert.True(t, f.roomExists(t, room.ID))
}

func TestLeaveRoom_LastMemberDeletesRoom(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	q := f.quota(t, "Single", 1, 0, 5, 10)

	room, admin, err := f.rooms.CreateRoom(ctx, q.ID, "Solo", "pw-123", f.cart("c1", 10, time.Hour))
	require.NoError(t, err)

	require.NoError(t, f.rooms.LeaveRoom(ctx, admin.ID))
	assert.False(t, f.roomExists(t, room.ID))

	err = f.rooms.LeaveRoom(ctx, admin.ID)
	assert.ErrorIs(t, err, domain.ErrMembershipNotFound)
}

func TestJoinRoom_MovesCartBetweenRooms(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	q := f.quota(t, "Double", 2, 0, 5, 10)

	roomA, _, err := f.rooms.CreateRoom(ctx, q.ID, "A", "pw-123", f.cart("c1", 10, time.Hour))
	require.NoError(t, err)
	roomB, _, err := f.rooms.CreateRoom(ctx, q.ID, "B", "pw-123", f.cart("c2", 10, time.Hour))
	require.NoError(t, err)

	moved, err := f.rooms.JoinRoom(ctx, eventID, "B", "pw-123", domain.CartHolder("c1"))
	require.NoError(t, err)
	assert.Equal(t, roomB.ID, moved.RoomID)
	assert.False(t, moved.IsAdmin)

	assert.False(t, f.roomExists(t, roomA.ID))
	assert.Len(t, f.members(t, roomB.ID), 2)
	assert.Equal(t, 1, admins(f.members(t, roomB.ID)))
}

func TestCreateRoom_CartReplacesPreviousRoom(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	q := f.quota(t, "Double", 2, 0, 2, 10)
	holder := f.cart("c1", 10, time.Hour)

	first, _, err := f.rooms.CreateRoom(ctx, q.ID, "A", "pw-123", holder)
	require.NoError(t, err)

	second, admin, err := f.rooms.CreateRoom(ctx, q.ID, "B", "pw-123", holder)
	require.NoError(t, err)
	assert.True(t, admin.IsAdmin)
	assert.False(t, f.roomExists(t, first.ID))
	assert.Len(t, f.members(t, second.ID), 1)
}

func TestCreateRoom_OwnRoomCountsAgainstQuota(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	q := f.quota(t, "Double", 2, 0, 1, 10)
	holder := f.cart("c1", 10, time.Hour)

	first, _, err := f.rooms.CreateRoom(ctx, q.ID, "A", "pw-123", holder)
	require.NoError(t, err)

	_, _, err = f.rooms.CreateRoom(ctx, q.ID, "B", "pw-123", holder)
	assert.ErrorIs(t, err, domain.ErrQuotaExhausted)
	assert.True(t, f.roomExists(t, first.ID))
}

func TestJoinRoom_OrderMustLeaveFirst(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	q := f.quota(t, "Double", 2, 0, 5, 10)
	f.paid(1, 2)

	_, _, err := f.rooms.CreateRoom(ctx, q.ID, "A", "pw-123", domain.OrderHolder(1))
	require.NoError(t, err)
	_, _, err = f.rooms.CreateRoom(ctx, q.ID, "B", "pw-123", domain.OrderHolder(2))
	require.NoError(t, err)

	_, err = f.rooms.JoinRoom(ctx, eventID, "B", "pw-123", domain.OrderHolder(1))
	assert.ErrorIs(t, err, domain.ErrAlreadyInRoom)

	_, _, err = f.rooms.CreateRoom(ctx, q.ID, "C", "pw-123", domain.OrderHolder(1))
	assert.ErrorIs(t, err, domain.ErrAlreadyInRoom)
}

func TestAdminOnlyRoomChanges(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	q := f.quota(t, "Double", 2, 0, 5, 10)
	f.paid(1, 2)

	room, admin, err := f.rooms.CreateRoom(ctx, q.ID, "Dorm", "pw-123", domain.OrderHolder(1))
	require.NoError(t, err)
	guest, err := f.rooms.JoinRoom(ctx, eventID, "Dorm", "pw-123", domain.OrderHolder(2))
	require.NoError(t, err)

	err = f.rooms.ChangeRoomPassword(ctx, guest.ID, "new-pw")
	assert.ErrorIs(t, err, domain.ErrNotRoomAdmin)
	err = f.rooms.UpdateRoomSettings(ctx, guest.ID, domain.RoomSettings{DisableRandomExtra: true})
	assert.ErrorIs(t, err, domain.ErrNotRoomAdmin)

	require.NoError(t, f.rooms.ChangeRoomPassword(ctx, admin.ID, "new-pw"))
	require.NoError(t, f.rooms.UpdateRoomSettings(ctx, admin.ID, domain.RoomSettings{OptoutRandomExtra: true}))

	view, err := f.rooms.RoomDetail(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, "new-pw", view.Room.Password)
	assert.True(t, view.Room.OptoutRandomExtra)
	assert.False(t, view.Room.DisableRandomExtra)
	assert.Equal(t, "Double", view.QuotaName)
	assert.Len(t, view.Occupants, 2)
}

func TestLapsedAdminCannotChangeRoom(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	q := f.quota(t, "Double", 2, 0, 5, 10)
	f.paid(2)

	room, admin, err := f.rooms.CreateRoom(ctx, q.ID, "Dorm", "pw-123", f.cart("c1", 10, 30*time.Minute))
	require.NoError(t, err)
	_, err = f.rooms.JoinRoom(ctx, eventID, "Dorm", "pw-123", domain.OrderHolder(2))
	require.NoError(t, err)

	f.now = clock.Add(time.Hour)

	err = f.rooms.ChangeRoomPassword(ctx, admin.ID, "hijacked")
	assert.ErrorIs(t, err, domain.ErrNotRoomAdmin)
	err = f.rooms.UpdateRoomSettings(ctx, admin.ID, domain.RoomSettings{DisableRandomExtra: true})
	assert.ErrorIs(t, err, domain.ErrNotRoomAdmin)

	view, err := f.rooms.RoomDetail(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, "pw-123", view.Room.Password)
	assert.False(t, view.Room.DisableRandomExtra)
}

func TestUpdateRoom_Rename(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	q := f.quota(t, "Double", 2, 0, 5, 10)
	f.paid(1, 2)

	a, _, err := f.rooms.CreateRoom(ctx, q.ID, "A", "pw-123", domain.OrderHolder(1))
	require.NoError(t, err)
	_, _, err = f.rooms.CreateRoom(ctx, q.ID, "B", "pw-123", domain.OrderHolder(2))
	require.NoError(t, err)

	_, err = f.rooms.UpdateRoom(ctx, a.ID, "B", "pw-123")
	assert.ErrorIs(t, err, domain.ErrDuplicateName)

	renamed, err := f.rooms.UpdateRoom(ctx, a.ID, " A2 ", "pw-999")
	require.NoError(t, err)
	assert.Equal(t, "A2", renamed.Name)
	assert.Equal(t, "pw-999", renamed.Password)

	_, err = f.rooms.UpdateRoom(ctx, 404, "Z", "pw-123")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
}

func TestDeleteRoom_RemovesMemberships(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	q := f.quota(t, "Double", 2, 0, 5, 10)
	f.paid(1, 2)

	room, _, err := f.rooms.CreateRoom(ctx, q.ID, "Dorm", "pw-123", domain.OrderHolder(1))
	require.NoError(t, err)
	_, err = f.rooms.JoinRoom(ctx, eventID, "Dorm", "pw-123", domain.OrderHolder(2))
	require.NoError(t, err)

	require.NoError(t, f.rooms.DeleteRoom(ctx, room.ID))
	assert.False(t, f.roomExists(t, room.ID))
	assert.Empty(t, f.members(t, room.ID))

	assert.ErrorIs(t, f.rooms.DeleteRoom(ctx, room.ID), domain.ErrRoomNotFound)
}

func TestAssignAndRemoveOrder(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	q := f.quota(t, "Single", 1, 1, 5, 10)
	f.paid(1, 2, 3)

	room, _, err := f.rooms.CreateRoom(ctx, q.ID, "Dorm", "pw-123", domain.OrderHolder(1))
	require.NoError(t, err)

	m, err := f.rooms.AssignOrder(ctx, room.ID, 2)
	require.NoError(t, err, "operators may use the extra bed")
	assert.False(t, m.IsAdmin)

	_, err = f.rooms.AssignOrder(ctx, room.ID, 3)
	assert.ErrorIs(t, err, domain.ErrRoomFull)
	_, err = f.rooms.AssignOrder(ctx, room.ID, 2)
	assert.ErrorIs(t, err, domain.ErrAlreadyInRoom)
	_, err = f.rooms.AssignOrder(ctx, room.ID, 99)
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)

	kept, err := f.rooms.RemoveOrder(ctx, 1)
	require.NoError(t, err)
	assert.True(t, kept)
	members := f.members(t, room.ID)
	require.Len(t, members, 1)
	assert.True(t, members[0].IsAdmin)

	kept, err = f.rooms.RemoveOrder(ctx, 2)
	require.NoError(t, err)
	assert.False(t, kept)
	assert.False(t, f.roomExists(t, room.ID))

	_, err = f.rooms.RemoveOrder(ctx, 2)
	assert.ErrorIs(t, err, domain.ErrMembershipNotFound)
}

func TestPlaceOrder_ConvertsCartMembership(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	q := f.quota(t, "Double", 2, 0, 5, 10)

	room, m, err := f.rooms.CreateRoom(ctx, q.ID, "Dorm", "pw-123", f.cart("c1", 10, time.Hour))
	require.NoError(t, err)

	meta := domain.RoomMeta{Mode: domain.RoomModeCreate, RoomCreate: &room.ID, RoomJoin: &m.ID}
	validator := services.NewValidator(f.db, f.occ)
	require.NoError(t, validator.ValidateOrderRoomState(ctx, domain.Placement{EventID: eventID, Meta: meta, ItemIDs: []int64{10}}))

	f.order(5, domain.OrderPending, 10)
	require.NoError(t, f.rooms.PlaceOrder(ctx, 5, meta))

	members := f.members(t, room.ID)
	require.Len(t, members, 1)
	orderID, ok := members[0].Holder.Order()
	assert.True(t, ok)
	assert.Equal(t, int64(5), orderID)
	assert.True(t, members[0].IsAdmin)

	// Placing again is a no-op.
	require.NoError(t, f.rooms.PlaceOrder(ctx, 5, meta))

	missing := int64(404)
	assert.NoError(t, f.rooms.PlaceOrder(ctx, 6, domain.RoomMeta{Mode: domain.RoomModeJoin, RoomJoin: &missing}))
	assert.NoError(t, f.rooms.PlaceOrder(ctx, 7, domain.RoomMeta{Mode: domain.RoomModeNone}))

	require.NoError(t, f.rooms.CancelOrder(ctx, 5))
	assert.False(t, f.roomExists(t, room.ID))
	assert.NoError(t, f.rooms.CancelOrder(ctx, 5))
}

func TestListRooms_OnlyValidRooms(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	q := f.quota(t, "Double", 2, 0, 5, 10)
	f.paid(1, 2)

	a, _, err := f.rooms.CreateRoom(ctx, q.ID, "A", "pw-123", domain.OrderHolder(1))
	require.NoError(t, err)
	b, _, err := f.rooms.CreateRoom(ctx, q.ID, "B", "pw-123", domain.OrderHolder(2))
	require.NoError(t, err)
	f.db.SetOrderStatus(2, domain.OrderCanceled)

	views, err := f.rooms.ListRooms(ctx, eventID)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, a.ID, views[0].Room.ID)
	assert.Len(t, views[0].Occupants, 1)

	stale, err := f.rooms.RoomDetail(ctx, b.ID)
	require.NoError(t, err)
	assert.Empty(t, stale.Occupants)
}

func TestSweepStaleRooms(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	q := f.quota(t, "Double", 2, 0, 5, 10)
	live := f.room(t, q.ID, "live")
	expired := f.room(t, q.ID, "expired")
	f.cart("c-live", 10, time.Hour)
	f.cart("c-old", 10, -time.Hour)

	err := f.db.WithinTx(ctx, func(ctx context.Context, s ports.Store) error {
		if err := s.Memberships().Create(ctx, &domain.Membership{RoomID: live.ID, Holder: domain.CartHolder("c-live"), IsAdmin: true}); err != nil {
			return err
		}
		return s.Memberships().Create(ctx, &domain.Membership{RoomID: expired.ID, Holder: domain.CartHolder("c-old"), IsAdmin: true})
	})
	require.NoError(t, err)

	assert.Equal(t, 1, f.rooms.SweepStaleRooms(ctx))
	assert.True(t, f.roomExists(t, live.ID))
	assert.False(t, f.roomExists(t, expired.ID))
	assert.Zero(t, f.rooms.SweepStaleRooms(ctx))
}

func TestJoinRoom_SameRoomIsNoop(t *testing.T) {
	pub := mocks.NewEventPublisher(t)
	f := newFixture(t, pub)
	ctx := context.Background()
	q := f.quota(t, "Double", 2, 0, 5, 10)
	f.paid(1)

	ofType := func(typ domain.RoomEventType) any {
		return mock.MatchedBy(func(ev domain.RoomEvent) bool { return ev.Type == typ })
	}
	pub.On("Publish", mock.Anything, ofType(domain.EventRoomCreated)).Return(nil).Once()
	pub.On("Publish", mock.Anything, ofType(domain.EventMembershipCreated)).Return(nil).Twice()

	room, _, err := f.rooms.CreateRoom(ctx, q.ID, "Dorm", "pw-123", domain.OrderHolder(1))
	require.NoError(t, err)
	cart := f.cart("c2", 10, time.Hour)

	first, err := f.rooms.JoinRoom(ctx, eventID, "Dorm", "pw-123", cart)
	require.NoError(t, err)
	again, err := f.rooms.JoinRoom(ctx, eventID, "Dorm", "pw-123", cart)
	require.NoError(t, err)

	assert.Equal(t, first.ID, again.ID)
	assert.Len(t, f.members(t, room.ID), 2)
}

func TestRoomEventsPublishedAfterCommit(t *testing.T) {
	pub := mocks.NewEventPublisher(t)
	f := newFixture(t, pub)
	ctx := context.Background()
	q := f.quota(t, "Double", 2, 0, 5, 10)
	f.paid(1, 2)

	ofType := func(typ domain.RoomEventType) any {
		return mock.MatchedBy(func(ev domain.RoomEvent) bool { return ev.Type == typ && ev.EventID == eventID })
	}
	pub.On("Publish", mock.Anything, ofType(domain.EventRoomCreated)).Return(nil).Once()
	pub.On("Publish", mock.Anything, ofType(domain.EventMembershipCreated)).Return(errors.New("broker down")).Twice()
	pub.On("Publish", mock.Anything, ofType(domain.EventMembershipDeleted)).Return(nil).Twice()
	pub.On("Publish", mock.Anything, ofType(domain.EventRoomDeleted)).Return(nil).Once()

	_, admin, err := f.rooms.CreateRoom(ctx, q.ID, "Dorm", "pw-123", domain.OrderHolder(1))
	require.NoError(t, err)
	guest, err := f.rooms.JoinRoom(ctx, eventID, "Dorm", "pw-123", domain.OrderHolder(2))
	require.NoError(t, err, "publish failures do not undo the join")

	require.NoError(t, f.rooms.LeaveRoom(ctx, admin.ID))
	require.NoError(t, f.rooms.LeaveRoom(ctx, guest.ID))

	// Nothing is published for a failed operation.
	_, err = f.rooms.JoinRoom(ctx, eventID, "Dorm", "pw-123", domain.OrderHolder(1))
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
}

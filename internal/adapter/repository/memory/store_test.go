package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srgjo27/roomshare/internal/adapter/repository/memory"
	"github.com/srgjo27/roomshare/internal/core/domain"
	"github.com/srgjo27/roomshare/internal/core/ports"
)

func seed(t *testing.T, db *memory.DB) (domain.Quota, domain.Room) {
	t.Helper()
	q := domain.Quota{EventID: 1, Name: "Double", Capacity: 2, MaxRooms: 2, ItemIDs: []int64{10}}
	r := domain.Room{EventID: 1, Name: "A", Password: "pw"}
	err := db.WithinTx(context.Background(), func(ctx context.Context, s ports.Store) error {
		if err := s.Quotas().Create(ctx, &q); err != nil {
			return err
		}
		r.QuotaID = q.ID
		return s.Rooms().Create(ctx, &r)
	})
	require.NoError(t, err)
	return q, r
}

func TestWithinTx_RollsBackOnError(t *testing.T) {
	db := memory.New()
	_, room := seed(t, db)
	boom := errors.New("boom")

	err := db.WithinTx(context.Background(), func(ctx context.Context, s ports.Store) error {
		m := domain.Membership{RoomID: room.ID, Holder: domain.OrderHolder(1)}
		require.NoError(t, s.Memberships().Create(ctx, &m))
		require.NoError(t, s.Rooms().Delete(ctx, room.ID))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	err = db.WithinTx(context.Background(), func(ctx context.Context, s ports.Store) error {
		got, err := s.Rooms().GetByID(ctx, room.ID)
		require.NoError(t, err)
		assert.Equal(t, "A", got.Name)

		members, err := s.Memberships().ListByRoom(ctx, room.ID)
		require.NoError(t, err)
		assert.Empty(t, members)
		return nil
	})
	require.NoError(t, err)
}

func TestWithinTx_CanceledContext(t *testing.T) {
	db := memory.New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := db.WithinTx(ctx, func(ctx context.Context, s ports.Store) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestConstraints(t *testing.T) {
	db := memory.New()
	q, room := seed(t, db)

	err := db.WithinTx(context.Background(), func(ctx context.Context, s ports.Store) error {
		dupQuota := domain.Quota{EventID: 1, Name: "Double", Capacity: 1, ItemIDs: []int64{11}}
		assert.ErrorIs(t, s.Quotas().Create(ctx, &dupQuota), domain.ErrDuplicateName)

		otherEvent := domain.Room{EventID: 2, QuotaID: q.ID, Name: "A"}
		assert.NoError(t, s.Rooms().Create(ctx, &otherEvent), "names are unique per event")

		dupRoom := domain.Room{EventID: 1, QuotaID: q.ID, Name: "A"}
		assert.ErrorIs(t, s.Rooms().Create(ctx, &dupRoom), domain.ErrDuplicateName)

		first := domain.Membership{RoomID: room.ID, Holder: domain.OrderHolder(5)}
		require.NoError(t, s.Memberships().Create(ctx, &first))
		second := domain.Membership{RoomID: otherEvent.ID, Holder: domain.OrderHolder(5)}
		assert.ErrorIs(t, s.Memberships().Create(ctx, &second), domain.ErrAlreadyInRoom)

		assert.ErrorIs(t, s.Memberships().Create(ctx, &domain.Membership{RoomID: room.ID}), domain.ErrInvalidHolder)
		assert.ErrorIs(t, s.Memberships().Create(ctx, &domain.Membership{RoomID: 99, Holder: domain.CartHolder("c")}), domain.ErrRoomNotFound)
		return nil
	})
	require.NoError(t, err)
}

func TestQuotaDeleteCascades(t *testing.T) {
	db := memory.New()
	q, room := seed(t, db)

	err := db.WithinTx(context.Background(), func(ctx context.Context, s ports.Store) error {
		m := domain.Membership{RoomID: room.ID, Holder: domain.CartHolder("c1")}
		if err := s.Memberships().Create(ctx, &m); err != nil {
			return err
		}
		if err := s.Quotas().Delete(ctx, q.ID); err != nil {
			return err
		}

		_, err := s.Rooms().GetByID(ctx, room.ID)
		assert.ErrorIs(t, err, domain.ErrRoomNotFound)
		members, err := s.Memberships().ListByCart(ctx, "c1")
		require.NoError(t, err)
		assert.Empty(t, members)
		return nil
	})
	require.NoError(t, err)
}

func TestOrdersAndCartPositions(t *testing.T) {
	db := memory.New()
	db.PutOrder(domain.Order{ID: 2, EventID: 1, Status: domain.OrderPaid, ItemIDs: []int64{10}})
	db.PutOrder(domain.Order{ID: 1, EventID: 1, Status: domain.OrderPaid})
	db.PutOrder(domain.Order{ID: 3, EventID: 1, Status: domain.OrderPending})
	db.SetOrderStatus(3, domain.OrderPaid)
	db.PutCartPosition(domain.CartPosition{EventID: 1, CartID: "c1", ItemID: 10})
	db.PutCartPosition(domain.CartPosition{EventID: 2, CartID: "c1", ItemID: 10})

	err := db.WithinTx(context.Background(), func(ctx context.Context, s ports.Store) error {
		paid, err := s.Orders().ListByStatus(ctx, 1, domain.OrderPaid)
		require.NoError(t, err)
		require.Len(t, paid, 3)
		assert.Equal(t, []int64{1, 2, 3}, []int64{paid[0].ID, paid[1].ID, paid[2].ID})

		positions, err := s.Orders().CartPositions(ctx, 1, "c1")
		require.NoError(t, err)
		assert.Len(t, positions, 1)

		_, err = s.Orders().GetByID(ctx, 9)
		assert.ErrorIs(t, err, domain.ErrOrderNotFound)
		return nil
	})
	require.NoError(t, err)
}

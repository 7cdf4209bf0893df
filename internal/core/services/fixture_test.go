package services_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/srgjo27/roomshare/internal/adapter/repository/memory"
	"github.com/srgjo27/roomshare/internal/core/domain"
	"github.com/srgjo27/roomshare/internal/core/ports"
	"github.com/srgjo27/roomshare/internal/core/services"
)

const eventID int64 = 1

var clock = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	now    time.Time
	db     *memory.DB
	occ    *services.Occupancy
	rooms  *services.RoomService
	quotas *services.QuotaService
}

func newFixture(t *testing.T, pub ports.EventPublisher) *fixture {
	t.Helper()
	f := &fixture{now: clock, db: memory.New()}
	f.occ = services.NewOccupancy(func() time.Time { return f.now })
	f.rooms = services.NewRoomService(f.db, f.occ, pub, nil)
	f.quotas = services.NewQuotaService(f.db, f.occ, nil)
	return f
}

func (f *fixture) allocator(cfg services.AllocatorConfig, locker ports.Locker, pub ports.EventPublisher) *services.Allocator {
	return services.NewAllocator(f.db, f.occ, locker, pub, cfg, nil)
}

func (f *fixture) quota(t *testing.T, name string, capacity, extra, maxRooms int, items ...int64) domain.Quota {
	t.Helper()
	q := domain.Quota{
		EventID:       eventID,
		Name:          name,
		Capacity:      capacity,
		ExtraCapacity: extra,
		MaxRooms:      maxRooms,
		ItemIDs:       items,
	}
	require.NoError(t, f.quotas.CreateQuota(context.Background(), &q))
	return q
}

func (f *fixture) order(id int64, status domain.OrderStatus, items ...int64) {
	f.db.PutOrder(domain.Order{ID: id, EventID: eventID, Code: fmt.Sprintf("ORD%04d", id), Status: status, ItemIDs: items})
}

func (f *fixture) paid(ids ...int64) {
	for _, id := range ids {
		f.order(id, domain.OrderPaid, 10)
	}
}

func (f *fixture) cart(cartID string, itemID int64, ttl time.Duration) domain.Holder {
	f.db.PutCartPosition(domain.CartPosition{EventID: eventID, CartID: cartID, ItemID: itemID, Expires: clock.Add(ttl)})
	return domain.CartHolder(cartID)
}

// assign puts an order into a room directly, bypassing capacity checks.
func (f *fixture) assign(t *testing.T, roomID, orderID int64, admin bool) domain.Membership {
	t.Helper()
	m := domain.Membership{RoomID: roomID, Holder: domain.OrderHolder(orderID), IsAdmin: admin}
	err := f.db.WithinTx(context.Background(), func(ctx context.Context, s ports.Store) error {
		return s.Memberships().Create(ctx, &m)
	})
	require.NoError(t, err)
	return m
}

// hold puts a cart into a room directly.
func (f *fixture) hold(t *testing.T, roomID int64, cart domain.Holder, admin bool) domain.Membership {
	t.Helper()
	m := domain.Membership{RoomID: roomID, Holder: cart, IsAdmin: admin}
	err := f.db.WithinTx(context.Background(), func(ctx context.Context, s ports.Store) error {
		return s.Memberships().Create(ctx, &m)
	})
	require.NoError(t, err)
	return m
}

func (f *fixture) room(t *testing.T, quotaID int64, name string) domain.Room {
	t.Helper()
	r := domain.Room{EventID: eventID, QuotaID: quotaID, Name: name, Password: "secret"}
	err := f.db.WithinTx(context.Background(), func(ctx context.Context, s ports.Store) error {
		return s.Rooms().Create(ctx, &r)
	})
	require.NoError(t, err)
	return r
}

func (f *fixture) members(t *testing.T, roomID int64) []domain.Membership {
	t.Helper()
	var out []domain.Membership
	err := f.db.WithinTx(context.Background(), func(ctx context.Context, s ports.Store) error {
		var err error
		out, err = s.Memberships().ListByRoom(ctx, roomID)
		return err
	})
	require.NoError(t, err)
	return out
}

func (f *fixture) eventRooms(t *testing.T) []domain.Room {
	t.Helper()
	var out []domain.Room
	err := f.db.WithinTx(context.Background(), func(ctx context.Context, s ports.Store) error {
		var err error
		out, err = s.Rooms().ListByEvent(ctx, eventID)
		return err
	})
	require.NoError(t, err)
	return out
}

func (f *fixture) roomExists(t *testing.T, roomID int64) bool {
	t.Helper()
	for _, r := range f.eventRooms(t) {
		if r.ID == roomID {
			return true
		}
	}
	return false
}

func admins(members []domain.Membership) int {
	n := 0
	for _, m := range members {
		if m.IsAdmin {
			n++
		}
	}
	return n
}

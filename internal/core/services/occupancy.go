package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/srgjo27/roomshare/internal/core/domain"
	"github.com/srgjo27/roomshare/internal/core/ports"
)

// Occupancy answers every capacity question against the store it is handed.
// Nothing is cached: cart holds lapse on their own, so each answer is computed
// from the current transaction.
type Occupancy struct {
	now func() time.Time
}

func NewOccupancy(now func() time.Time) *Occupancy {
	if now == nil {
		now = time.Now
	}
	return &Occupancy{now: now}
}

func (o *Occupancy) Now() time.Time { return o.now() }

// IsMembershipValid reports whether m still holds its place: a cart membership
// while its session holds an unexpired position, an order membership while the
// order is pending or paid.
func (o *Occupancy) IsMembershipValid(ctx context.Context, s ports.Store, eventID int64, m *domain.Membership) (bool, error) {
	return o.holds(ctx, s, eventID, m, nil)
}

// holds is the single validity predicate. With a quota, a cart membership also
// needs an unexpired position eligible for that quota.
func (o *Occupancy) holds(ctx context.Context, s ports.Store, eventID int64, m *domain.Membership, quota *domain.Quota) (bool, error) {
	if cartID, ok := m.Holder.Cart(); ok {
		positions, err := s.Orders().CartPositions(ctx, eventID, cartID)
		if err != nil {
			return false, fmt.Errorf("load cart positions: %w", err)
		}
		if quota != nil {
			return domain.CartHoldsQuota(positions, quota, o.now()), nil
		}
		return domain.CartActive(positions, o.now()), nil
	}

	if orderID, ok := m.Holder.Order(); ok {
		order, err := s.Orders().GetByID(ctx, orderID)
		if errors.Is(err, domain.ErrOrderNotFound) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("load order %d: %w", orderID, err)
		}
		return order.HoldsRoom(), nil
	}

	return false, nil
}

// ValidMemberships returns the memberships counting towards the room's
// occupancy, one per distinct holder, ordered by ascending ID.
func (o *Occupancy) ValidMemberships(ctx context.Context, s ports.Store, room *domain.Room) ([]domain.Membership, error) {
	quota, err := s.Quotas().GetByID(ctx, room.QuotaID)
	if err != nil {
		return nil, err
	}
	return o.validMemberships(ctx, s, room, quota)
}

func (o *Occupancy) validMemberships(ctx context.Context, s ports.Store, room *domain.Room, quota *domain.Quota) ([]domain.Membership, error) {
	members, err := s.Memberships().ListByRoom(ctx, room.ID)
	if err != nil {
		return nil, fmt.Errorf("list memberships of room %d: %w", room.ID, err)
	}
	sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })

	seen := make(map[string]struct{}, len(members))
	valid := make([]domain.Membership, 0, len(members))
	for i := range members {
		key := members[i].Holder.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		ok, err := o.holds(ctx, s, room.EventID, &members[i], quota)
		if err != nil {
			return nil, err
		}
		if ok {
			seen[key] = struct{}{}
			valid = append(valid, members[i])
		}
	}
	return valid, nil
}

func (o *Occupancy) ValidOccupantCount(ctx context.Context, s ports.Store, room *domain.Room) (int, error) {
	valid, err := o.ValidMemberships(ctx, s, room)
	if err != nil {
		return 0, err
	}
	return len(valid), nil
}

// RoomIsValid reports whether the room has at least one valid occupant. Rooms
// without one are stale: invisible to joins and reusable by name.
func (o *Occupancy) RoomIsValid(ctx context.Context, s ports.Store, room *domain.Room) (bool, error) {
	n, err := o.ValidOccupantCount(ctx, s, room)
	return n > 0, err
}

// ValidRoomCount counts the rooms of quota holding at least one valid occupant.
func (o *Occupancy) ValidRoomCount(ctx context.Context, s ports.Store, quota *domain.Quota) (int, error) {
	rooms, err := s.Rooms().ListByQuota(ctx, quota.ID)
	if err != nil {
		return 0, fmt.Errorf("list rooms of quota %d: %w", quota.ID, err)
	}
	count := 0
	for i := range rooms {
		valid, err := o.validMemberships(ctx, s, &rooms[i], quota)
		if err != nil {
			return 0, err
		}
		if len(valid) > 0 {
			count++
		}
	}
	return count, nil
}

func (o *Occupancy) QuotaHasSpace(ctx context.Context, s ports.Store, quota *domain.Quota) (bool, error) {
	n, err := o.ValidRoomCount(ctx, s, quota)
	if err != nil {
		return false, err
	}
	return n < quota.MaxRooms, nil
}

func (o *Occupancy) RoomHasCapacity(ctx context.Context, s ports.Store, room *domain.Room, includeExtra bool) (bool, error) {
	quota, err := s.Quotas().GetByID(ctx, room.QuotaID)
	if err != nil {
		return false, err
	}
	return o.roomHasCapacity(ctx, s, room, quota, includeExtra)
}

func (o *Occupancy) roomHasCapacity(ctx context.Context, s ports.Store, room *domain.Room, quota *domain.Quota, includeExtra bool) (bool, error) {
	valid, err := o.validMemberships(ctx, s, room, quota)
	if err != nil {
		return false, err
	}
	return len(valid) < quota.Limit(includeExtra), nil
}

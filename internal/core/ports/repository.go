package ports

import (
	"context"

	"github.com/srgjo27/roomshare/internal/core/domain"
)

// Lists returned by repositories are ordered by ascending ID. Lookups of a
// missing entity return the matching domain.Err*NotFound error.

type QuotaRepository interface {
	Create(ctx context.Context, quota *domain.Quota) error
	Update(ctx context.Context, quota *domain.Quota) error
	// Delete removes the quota together with its rooms and their memberships.
	Delete(ctx context.Context, quotaID int64) error
	GetByID(ctx context.Context, quotaID int64) (*domain.Quota, error)
	GetByName(ctx context.Context, eventID int64, name string) (*domain.Quota, error)
	ListByEvent(ctx context.Context, eventID int64) ([]domain.Quota, error)
}

type RoomRepository interface {
	Create(ctx context.Context, room *domain.Room) error
	Update(ctx context.Context, room *domain.Room) error
	// Delete removes the room and its memberships. Deleting a missing room is
	// not an error.
	Delete(ctx context.Context, roomID int64) error
	GetByID(ctx context.Context, roomID int64) (*domain.Room, error)
	GetByName(ctx context.Context, eventID int64, name string) (*domain.Room, error)
	ListByEvent(ctx context.Context, eventID int64) ([]domain.Room, error)
	ListByQuota(ctx context.Context, quotaID int64) ([]domain.Room, error)
	// ListWithCartMembers returns rooms holding at least one cart-scoped membership.
	ListWithCartMembers(ctx context.Context) ([]domain.Room, error)
}

type MembershipRepository interface {
	Create(ctx context.Context, m *domain.Membership) error
	Update(ctx context.Context, m *domain.Membership) error
	Delete(ctx context.Context, membershipID int64) error
	GetByID(ctx context.Context, membershipID int64) (*domain.Membership, error)
	GetByOrder(ctx context.Context, orderID int64) (*domain.Membership, error)
	ListByCart(ctx context.Context, cartID string) ([]domain.Membership, error)
	ListByRoom(ctx context.Context, roomID int64) ([]domain.Membership, error)
}

// OrderRepository reads orders and cart sessions owned by the order system.
type OrderRepository interface {
	GetByID(ctx context.Context, orderID int64) (*domain.Order, error)
	ListByStatus(ctx context.Context, eventID int64, status domain.OrderStatus) ([]domain.Order, error)
	CartPositions(ctx context.Context, eventID int64, cartID string) ([]domain.CartPosition, error)
}

// Store groups the repositories bound to one transaction.
type Store interface {
	Quotas() QuotaRepository
	Rooms() RoomRepository
	Memberships() MembershipRepository
	Orders() OrderRepository
}

// Transactor runs fn inside a single all-or-nothing transaction. A non-nil
// error from fn rolls back every write made through s.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, s Store) error) error
}

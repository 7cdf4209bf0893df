// Package memory is an in-process implementation of the room store. Each
// transaction works on a private copy of the data that replaces the shared
// state only when the transaction succeeds.
package memory

import (
	"context"
	"sync"

	"github.com/srgjo27/roomshare/internal/core/domain"
	"github.com/srgjo27/roomshare/internal/core/ports"
)

type state struct {
	seq         map[string]int64
	quotas      map[int64]domain.Quota
	rooms       map[int64]domain.Room
	memberships map[int64]domain.Membership
	orders      map[int64]domain.Order
	cart        []domain.CartPosition
}

func newState() *state {
	return &state{
		seq:         map[string]int64{},
		quotas:      map[int64]domain.Quota{},
		rooms:       map[int64]domain.Room{},
		memberships: map[int64]domain.Membership{},
		orders:      map[int64]domain.Order{},
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.seq {
		c.seq[k] = v
	}
	for k, v := range s.quotas {
		v.ItemIDs = append([]int64(nil), v.ItemIDs...)
		c.quotas[k] = v
	}
	for k, v := range s.rooms {
		c.rooms[k] = v
	}
	for k, v := range s.memberships {
		c.memberships[k] = v
	}
	for k, v := range s.orders {
		v.ItemIDs = append([]int64(nil), v.ItemIDs...)
		c.orders[k] = v
	}
	c.cart = append(c.cart, s.cart...)
	return c
}

func (s *state) next(table string) int64 {
	s.seq[table]++
	return s.seq[table]
}

// DB serializes transactions with a mutex, which gives every transaction a
// consistent view of the data.
type DB struct {
	mu    sync.Mutex
	state *state
}

func New() *DB {
	return &DB{state: newState()}
}

func (db *DB) WithinTx(ctx context.Context, fn func(ctx context.Context, s ports.Store) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	work := db.state.clone()
	if err := fn(ctx, &store{st: work}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	db.state = work
	return nil
}

// PutOrder inserts or replaces an order owned by the order system.
func (db *DB) PutOrder(order domain.Order) {
	db.mu.Lock()
	defer db.mu.Unlock()
	order.ItemIDs = append([]int64(nil), order.ItemIDs...)
	db.state.orders[order.ID] = order
}

func (db *DB) SetOrderStatus(orderID int64, status domain.OrderStatus) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if o, ok := db.state.orders[orderID]; ok {
		o.Status = status
		db.state.orders[orderID] = o
	}
}

// PutCartPosition adds a cart line item held by a checkout session.
func (db *DB) PutCartPosition(p domain.CartPosition) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if p.ID == 0 {
		p.ID = db.state.next("cart")
	}
	db.state.cart = append(db.state.cart, p)
}

type store struct {
	st *state
}

func (s *store) Quotas() ports.QuotaRepository           { return quotaRepo{s.st} }
func (s *store) Rooms() ports.RoomRepository             { return roomRepo{s.st} }
func (s *store) Memberships() ports.MembershipRepository { return membershipRepo{s.st} }
func (s *store) Orders() ports.OrderRepository           { return orderRepo{s.st} }

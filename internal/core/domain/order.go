package domain

import "time"

type OrderStatus string

const (
	OrderPending  OrderStatus = "PENDING"
	OrderPaid     OrderStatus = "PAID"
	OrderExpired  OrderStatus = "EXPIRED"
	OrderCanceled OrderStatus = "CANCELED"
)

// Order is the part of a placed order the room engine reads. Orders are owned
// by the surrounding order system.
type Order struct {
	ID      int64
	EventID int64
	Code    string
	Status  OrderStatus
	ItemIDs []int64
}

// HoldsRoom reports whether the order still counts as an occupant.
func (o *Order) HoldsRoom() bool {
	return o.Status == OrderPending || o.Status == OrderPaid
}

// CartPosition is one line item held in a cart session until Expires.
type CartPosition struct {
	ID      int64
	EventID int64
	CartID  string
	ItemID  int64
	Expires time.Time
}

func (p *CartPosition) Active(now time.Time) bool {
	return p.Expires.After(now)
}

// CartActive reports whether the session still holds any unexpired position.
func CartActive(positions []CartPosition, now time.Time) bool {
	for i := range positions {
		if positions[i].Active(now) {
			return true
		}
	}
	return false
}

// CartHoldsQuota reports whether the session holds an unexpired position that
// grants a room of quota q.
func CartHoldsQuota(positions []CartPosition, q *Quota, now time.Time) bool {
	for i := range positions {
		if positions[i].Active(now) && q.HasItem(positions[i].ItemID) {
			return true
		}
	}
	return false
}

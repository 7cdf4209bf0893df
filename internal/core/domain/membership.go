package domain

import (
	"fmt"
	"strconv"
)

type holderKind uint8

const (
	holderNone holderKind = iota
	holderCart
	holderOrder
)

// Holder identifies who occupies a place in a room: either an in-progress cart
// session or a placed order, never both. The zero Holder is not a valid holder.
type Holder struct {
	kind    holderKind
	cartID  string
	orderID int64
}

func CartHolder(cartID string) Holder {
	if cartID == "" {
		return Holder{}
	}
	return Holder{kind: holderCart, cartID: cartID}
}

func OrderHolder(orderID int64) Holder {
	if orderID <= 0 {
		return Holder{}
	}
	return Holder{kind: holderOrder, orderID: orderID}
}

func (h Holder) IsZero() bool { return h.kind == holderNone }

func (h Holder) Cart() (string, bool) { return h.cartID, h.kind == holderCart }

func (h Holder) Order() (int64, bool) { return h.orderID, h.kind == holderOrder }

// Key is unique per distinct holder and is used to deduplicate occupants.
func (h Holder) Key() string {
	switch h.kind {
	case holderCart:
		return "cart:" + h.cartID
	case holderOrder:
		return "order:" + strconv.FormatInt(h.orderID, 10)
	}
	return ""
}

func (h Holder) String() string {
	if h.IsZero() {
		return "<none>"
	}
	return h.Key()
}

// Membership places one holder in one room.
type Membership struct {
	ID      int64
	RoomID  int64
	Holder  Holder
	IsAdmin bool
}

func (m *Membership) Validate() error {
	if m.Holder.IsZero() {
		return fmt.Errorf("membership %d: %w", m.ID, ErrInvalidHolder)
	}
	return nil
}

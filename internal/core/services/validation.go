package services

import (
	"context"
	"errors"

	"github.com/srgjo27/roomshare/internal/core/domain"
	"github.com/srgjo27/roomshare/internal/core/ports"
)

// Validator vets the room choice recorded on an order before it is confirmed.
type Validator struct {
	tx  ports.Transactor
	occ *Occupancy
}

func NewValidator(tx ports.Transactor, occ *Occupancy) *Validator {
	return &Validator{tx: tx, occ: occ}
}

// ValidateOrderRoomState returns a *domain.RoomValidationError when the
// recorded mode does not match the recorded references, or when the
// referenced room or membership no longer holds.
func (v *Validator) ValidateOrderRoomState(ctx context.Context, p domain.Placement) error {
	if err := checkRoomMode(p.Meta); err != nil {
		return err
	}
	if p.Meta.RoomCreate == nil && p.Meta.RoomJoin == nil {
		return nil
	}

	return v.tx.WithinTx(ctx, func(ctx context.Context, st ports.Store) error {
		if p.Meta.RoomCreate != nil {
			if err := v.checkCreatedRoom(ctx, st, p); err != nil {
				return err
			}
		}
		return v.checkMembership(ctx, st, p)
	})
}

func checkRoomMode(meta domain.RoomMeta) error {
	hasCreate := meta.RoomCreate != nil
	hasJoin := meta.RoomJoin != nil

	switch meta.Mode {
	case domain.RoomModeJoin:
		if hasCreate || !hasJoin {
			return domain.NewRoomValidationError("room mode is join but no room was joined or a room was created")
		}
	case domain.RoomModeCreate:
		if !hasCreate || !hasJoin {
			return domain.NewRoomValidationError("room mode is create but no room was created or joined")
		}
	case domain.RoomModeNone, domain.RoomModeAbsent:
		if hasCreate || hasJoin {
			return domain.NewRoomValidationError("room mode is none but a room was created or joined")
		}
	default:
		return domain.NewRoomValidationError("invalid room mode %q", meta.Mode)
	}
	return nil
}

func (v *Validator) checkCreatedRoom(ctx context.Context, st ports.Store, p domain.Placement) error {
	room, err := st.Rooms().GetByID(ctx, *p.Meta.RoomCreate)
	if errors.Is(err, domain.ErrRoomNotFound) {
		return domain.NewRoomValidationError("created room %d no longer exists", *p.Meta.RoomCreate)
	}
	if err != nil {
		return err
	}
	if room.EventID != p.EventID {
		return domain.NewRoomValidationError("room %d belongs to another event", room.ID)
	}
	valid, err := v.occ.RoomIsValid(ctx, st, room)
	if err != nil {
		return err
	}
	if !valid {
		return domain.NewRoomValidationError("invalid room %d", room.ID)
	}
	return nil
}

func (v *Validator) checkMembership(ctx context.Context, st ports.Store, p domain.Placement) error {
	m, err := st.Memberships().GetByID(ctx, *p.Meta.RoomJoin)
	if errors.Is(err, domain.ErrMembershipNotFound) {
		return domain.NewRoomValidationError("room membership %d no longer exists", *p.Meta.RoomJoin)
	}
	if err != nil {
		return err
	}
	if p.Meta.RoomCreate != nil && m.RoomID != *p.Meta.RoomCreate {
		return domain.NewRoomValidationError("membership %d is not in the created room", m.ID)
	}

	room, err := st.Rooms().GetByID(ctx, m.RoomID)
	if errors.Is(err, domain.ErrRoomNotFound) {
		return domain.NewRoomValidationError("room of membership %d no longer exists", m.ID)
	}
	if err != nil {
		return err
	}
	if room.EventID != p.EventID {
		return domain.NewRoomValidationError("room %d belongs to another event", room.ID)
	}

	valid, err := v.occ.IsMembershipValid(ctx, st, room.EventID, m)
	if err != nil {
		return err
	}
	if !valid {
		return domain.NewRoomValidationError("invalid room membership %d", m.ID)
	}

	quota, err := st.Quotas().GetByID(ctx, room.QuotaID)
	if err != nil {
		return err
	}
	if !quota.EligibleItems(p.ItemIDs) {
		return domain.NewRoomValidationError("no items in the order grant a room of type %q", quota.Name)
	}
	return nil
}

package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/srgjo27/roomshare/internal/core/domain"
	"github.com/srgjo27/roomshare/internal/core/ports"
)

const minPasswordLength = 3

// RoomView is a room together with its valid occupants.
type RoomView struct {
	Room      domain.Room
	QuotaName string
	Occupants []domain.Membership
}

type RoomService struct {
	tx    ports.Transactor
	occ   *Occupancy
	maint *Maintainer
	pub   ports.EventPublisher
	log   *slog.Logger
}

func NewRoomService(tx ports.Transactor, occ *Occupancy, pub ports.EventPublisher, logger *slog.Logger) *RoomService {
	if logger == nil {
		logger = slog.Default()
	}
	return &RoomService{
		tx:    tx,
		occ:   occ,
		maint: NewMaintainer(occ, logger),
		pub:   pub,
		log:   logger,
	}
}

// JoinRoom adds holder to the valid room called name. A cart that already
// sits in another room is moved; an order has to leave its room first.
func (s *RoomService) JoinRoom(ctx context.Context, eventID int64, name, password string, holder domain.Holder) (*domain.Membership, error) {
	if holder.IsZero() {
		return nil, domain.ErrInvalidHolder
	}

	var box outbox
	var joined *domain.Membership
	err := s.tx.WithinTx(ctx, func(ctx context.Context, st ports.Store) error {
		box.reset()

		room, err := st.Rooms().GetByName(ctx, eventID, name)
		if err != nil {
			return err
		}
		valid, err := s.occ.RoomIsValid(ctx, st, room)
		if err != nil {
			return err
		}
		if !valid {
			return domain.ErrRoomNotFound
		}
		if subtle.ConstantTimeCompare([]byte(room.Password), []byte(password)) != 1 {
			return domain.ErrPasswordMismatch
		}

		current, err := currentMembership(ctx, st, holder)
		if err != nil {
			return err
		}
		if current != nil {
			if current.RoomID == room.ID {
				joined = current
				return nil
			}
			if _, isOrder := holder.Order(); isOrder {
				return domain.ErrAlreadyInRoom
			}
		}

		hasCapacity, err := s.occ.RoomHasCapacity(ctx, st, room, false)
		if err != nil {
			return err
		}
		if !hasCapacity {
			return domain.ErrRoomFull
		}

		if current != nil {
			previous := current.RoomID
			current.RoomID = room.ID
			current.IsAdmin = false
			if err := st.Memberships().Update(ctx, current); err != nil {
				return fmt.Errorf("move membership %d: %w", current.ID, err)
			}
			if err := s.touch(ctx, st, &box, eventID, previous); err != nil {
				return err
			}
			joined = current
		} else {
			m := &domain.Membership{RoomID: room.ID, Holder: holder}
			if err := st.Memberships().Create(ctx, m); err != nil {
				return fmt.Errorf("create membership: %w", err)
			}
			joined = m
		}

		box.add(membershipEvent(domain.EventMembershipCreated, eventID, joined, s.occ.Now()))
		return nil
	})
	if err != nil {
		return nil, err
	}

	box.flush(ctx, s.pub, s.log)
	s.log.InfoContext(ctx, "joined room", "event_id", eventID, "room_id", joined.RoomID, "holder", holder.String())
	return joined, nil
}

// CreateRoom opens a room of the given quota with holder as its admin. A stale
// room with the same name is taken over instead of rejected.
func (s *RoomService) CreateRoom(ctx context.Context, quotaID int64, name, password string, holder domain.Holder) (*domain.Room, *domain.Membership, error) {
	if holder.IsZero() {
		return nil, nil, domain.ErrInvalidHolder
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil, fmt.Errorf("room name is required: %w", domain.ErrInvalidInput)
	}
	if len(password) < minPasswordLength {
		return nil, nil, fmt.Errorf("room password needs at least %d characters: %w", minPasswordLength, domain.ErrInvalidInput)
	}

	var box outbox
	var room *domain.Room
	var admin *domain.Membership
	err := s.tx.WithinTx(ctx, func(ctx context.Context, st ports.Store) error {
		box.reset()

		quota, err := st.Quotas().GetByID(ctx, quotaID)
		if err != nil {
			return err
		}
		hasSpace, err := s.occ.QuotaHasSpace(ctx, st, quota)
		if err != nil {
			return err
		}
		if !hasSpace {
			return domain.ErrQuotaExhausted
		}

		if err := s.releaseHolder(ctx, st, &box, quota.EventID, holder); err != nil {
			return err
		}

		existing, err := st.Rooms().GetByName(ctx, quota.EventID, name)
		switch {
		case errors.Is(err, domain.ErrRoomNotFound):
			room = &domain.Room{EventID: quota.EventID, QuotaID: quota.ID, Name: name, Password: password}
			if err := st.Rooms().Create(ctx, room); err != nil {
				return fmt.Errorf("create room: %w", err)
			}
		case err != nil:
			return err
		default:
			valid, err := s.occ.RoomIsValid(ctx, st, existing)
			if err != nil {
				return err
			}
			if valid {
				return domain.ErrDuplicateName
			}
			existing.Password = password
			existing.QuotaID = quota.ID
			if err := st.Rooms().Update(ctx, existing); err != nil {
				return fmt.Errorf("reuse stale room %d: %w", existing.ID, err)
			}
			leftover, err := st.Memberships().ListByRoom(ctx, existing.ID)
			if err != nil {
				return err
			}
			for i := range leftover {
				if err := st.Memberships().Delete(ctx, leftover[i].ID); err != nil {
					return fmt.Errorf("delete membership %d: %w", leftover[i].ID, err)
				}
				box.add(membershipEvent(domain.EventMembershipDeleted, existing.EventID, &leftover[i], s.occ.Now()))
			}
			room = existing
		}

		admin = &domain.Membership{RoomID: room.ID, Holder: holder, IsAdmin: true}
		if err := st.Memberships().Create(ctx, admin); err != nil {
			return fmt.Errorf("create membership: %w", err)
		}

		box.add(domain.RoomEvent{Type: domain.EventRoomCreated, EventID: room.EventID, RoomID: room.ID, OccurredAt: s.occ.Now()})
		box.add(membershipEvent(domain.EventMembershipCreated, room.EventID, admin, s.occ.Now()))
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	box.flush(ctx, s.pub, s.log)
	s.log.InfoContext(ctx, "created room", "event_id", room.EventID, "room_id", room.ID, "quota_id", quotaID)
	return room, admin, nil
}

// releaseHolder drops the memberships a cart holds before it creates a room.
// Orders must leave explicitly.
func (s *RoomService) releaseHolder(ctx context.Context, st ports.Store, box *outbox, eventID int64, holder domain.Holder) error {
	if orderID, ok := holder.Order(); ok {
		_, err := st.Memberships().GetByOrder(ctx, orderID)
		switch {
		case err == nil:
			return domain.ErrAlreadyInRoom
		case errors.Is(err, domain.ErrMembershipNotFound):
			return nil
		default:
			return err
		}
	}

	cartID, _ := holder.Cart()
	previous, err := st.Memberships().ListByCart(ctx, cartID)
	if err != nil {
		return err
	}
	for i := range previous {
		if err := s.deleteMembership(ctx, st, box, eventID, &previous[i]); err != nil {
			return err
		}
	}
	return nil
}

// LeaveRoom removes a membership; the room is deleted if it became empty.
func (s *RoomService) LeaveRoom(ctx context.Context, membershipID int64) error {
	var box outbox
	err := s.tx.WithinTx(ctx, func(ctx context.Context, st ports.Store) error {
		box.reset()
		m, err := st.Memberships().GetByID(ctx, membershipID)
		if err != nil {
			return err
		}
		room, err := st.Rooms().GetByID(ctx, m.RoomID)
		if err != nil {
			return err
		}
		return s.deleteMembership(ctx, st, &box, room.EventID, m)
	})
	if err != nil {
		return err
	}
	box.flush(ctx, s.pub, s.log)
	return nil
}

// deleteMembership is the only path removing a single membership; it always
// touches the affected room.
func (s *RoomService) deleteMembership(ctx context.Context, st ports.Store, box *outbox, eventID int64, m *domain.Membership) error {
	if err := st.Memberships().Delete(ctx, m.ID); err != nil {
		return fmt.Errorf("delete membership %d: %w", m.ID, err)
	}
	box.add(membershipEvent(domain.EventMembershipDeleted, eventID, m, s.occ.Now()))
	return s.touch(ctx, st, box, eventID, m.RoomID)
}

func (s *RoomService) touch(ctx context.Context, st ports.Store, box *outbox, eventID, roomID int64) error {
	deleted, err := s.maint.Touch(ctx, st, roomID)
	if err != nil {
		return err
	}
	if deleted {
		box.add(domain.RoomEvent{Type: domain.EventRoomDeleted, EventID: eventID, RoomID: roomID, OccurredAt: s.occ.Now()})
	}
	return nil
}

// DeleteRoom removes a room and all of its memberships.
func (s *RoomService) DeleteRoom(ctx context.Context, roomID int64) error {
	var box outbox
	err := s.tx.WithinTx(ctx, func(ctx context.Context, st ports.Store) error {
		box.reset()
		room, err := st.Rooms().GetByID(ctx, roomID)
		if err != nil {
			return err
		}
		members, err := st.Memberships().ListByRoom(ctx, roomID)
		if err != nil {
			return err
		}
		for i := range members {
			if err := st.Memberships().Delete(ctx, members[i].ID); err != nil {
				return fmt.Errorf("delete membership %d: %w", members[i].ID, err)
			}
			box.add(membershipEvent(domain.EventMembershipDeleted, room.EventID, &members[i], s.occ.Now()))
		}
		if err := st.Rooms().Delete(ctx, roomID); err != nil {
			return fmt.Errorf("delete room %d: %w", roomID, err)
		}
		box.add(domain.RoomEvent{Type: domain.EventRoomDeleted, EventID: room.EventID, RoomID: roomID, OccurredAt: s.occ.Now()})
		return nil
	})
	if err != nil {
		return err
	}
	box.flush(ctx, s.pub, s.log)
	s.log.InfoContext(ctx, "room deleted by operator", "room_id", roomID)
	return nil
}

// UpdateRoom renames and re-passwords a room on behalf of the operator. Any
// other room with the name, stale or not, blocks the rename.
func (s *RoomService) UpdateRoom(ctx context.Context, roomID int64, name, password string) (*domain.Room, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("room name is required: %w", domain.ErrInvalidInput)
	}

	var updated *domain.Room
	err := s.tx.WithinTx(ctx, func(ctx context.Context, st ports.Store) error {
		room, err := st.Rooms().GetByID(ctx, roomID)
		if err != nil {
			return err
		}
		other, err := st.Rooms().GetByName(ctx, room.EventID, name)
		if err != nil && !errors.Is(err, domain.ErrRoomNotFound) {
			return err
		}
		if other != nil && other.ID != room.ID {
			return domain.ErrDuplicateName
		}
		room.Name = name
		room.Password = password
		if err := st.Rooms().Update(ctx, room); err != nil {
			return fmt.Errorf("update room %d: %w", room.ID, err)
		}
		updated = room
		return nil
	})
	return updated, err
}

// ChangeRoomPassword lets the admin occupant identified by membershipID set a
// new room password.
func (s *RoomService) ChangeRoomPassword(ctx context.Context, membershipID int64, password string) error {
	if len(password) < minPasswordLength {
		return fmt.Errorf("room password needs at least %d characters: %w", minPasswordLength, domain.ErrInvalidInput)
	}
	return s.withAdminRoom(ctx, membershipID, func(room *domain.Room) {
		room.Password = password
	})
}

// UpdateRoomSettings lets the admin occupant opt the room out of overflow
// assignment.
func (s *RoomService) UpdateRoomSettings(ctx context.Context, membershipID int64, settings domain.RoomSettings) error {
	return s.withAdminRoom(ctx, membershipID, func(room *domain.Room) {
		room.DisableRandomExtra = settings.DisableRandomExtra
		room.OptoutRandomExtra = settings.OptoutRandomExtra
	})
}

func (s *RoomService) withAdminRoom(ctx context.Context, membershipID int64, change func(*domain.Room)) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context, st ports.Store) error {
		m, err := st.Memberships().GetByID(ctx, membershipID)
		if err != nil {
			return err
		}
		if !m.IsAdmin {
			return domain.ErrNotRoomAdmin
		}
		room, err := st.Rooms().GetByID(ctx, m.RoomID)
		if err != nil {
			return err
		}
		occupants, err := s.occ.ValidMemberships(ctx, st, room)
		if err != nil {
			return err
		}
		if !slices.ContainsFunc(occupants, func(o domain.Membership) bool { return o.ID == m.ID }) {
			return domain.ErrNotRoomAdmin
		}
		change(room)
		if err := st.Rooms().Update(ctx, room); err != nil {
			return fmt.Errorf("update room %d: %w", room.ID, err)
		}
		return nil
	})
}

// AssignOrder places an order into a room on behalf of the operator. The
// room's extra capacity is available to the operator.
func (s *RoomService) AssignOrder(ctx context.Context, roomID, orderID int64) (*domain.Membership, error) {
	var box outbox
	var assigned *domain.Membership
	err := s.tx.WithinTx(ctx, func(ctx context.Context, st ports.Store) error {
		box.reset()
		room, err := st.Rooms().GetByID(ctx, roomID)
		if err != nil {
			return err
		}
		order, err := st.Orders().GetByID(ctx, orderID)
		if err != nil {
			return err
		}
		if order.EventID != room.EventID {
			return fmt.Errorf("order %d belongs to another event: %w", orderID, domain.ErrOrderNotFound)
		}
		if _, err := st.Memberships().GetByOrder(ctx, orderID); err == nil {
			return domain.ErrAlreadyInRoom
		} else if !errors.Is(err, domain.ErrMembershipNotFound) {
			return err
		}

		hasCapacity, err := s.occ.RoomHasCapacity(ctx, st, room, true)
		if err != nil {
			return err
		}
		if !hasCapacity {
			return domain.ErrRoomFull
		}

		assigned = &domain.Membership{RoomID: room.ID, Holder: domain.OrderHolder(orderID)}
		if err := st.Memberships().Create(ctx, assigned); err != nil {
			return fmt.Errorf("create membership: %w", err)
		}
		box.add(membershipEvent(domain.EventMembershipCreated, room.EventID, assigned, s.occ.Now()))

		// The room may have had no valid admin left.
		if err := s.touch(ctx, st, &box, room.EventID, room.ID); err != nil {
			return err
		}
		refreshed, err := st.Memberships().GetByID(ctx, assigned.ID)
		if err != nil {
			return err
		}
		assigned = refreshed
		return nil
	})
	if err != nil {
		return nil, err
	}
	box.flush(ctx, s.pub, s.log)
	return assigned, nil
}

// RemoveOrder takes an order out of its room on behalf of the operator and
// reports whether the room still exists afterwards.
func (s *RoomService) RemoveOrder(ctx context.Context, orderID int64) (bool, error) {
	var box outbox
	roomKept := false
	err := s.tx.WithinTx(ctx, func(ctx context.Context, st ports.Store) error {
		box.reset()
		m, err := st.Memberships().GetByOrder(ctx, orderID)
		if err != nil {
			return err
		}
		room, err := st.Rooms().GetByID(ctx, m.RoomID)
		if err != nil {
			return err
		}
		if err := s.deleteMembership(ctx, st, &box, room.EventID, m); err != nil {
			return err
		}
		_, err = st.Rooms().GetByID(ctx, room.ID)
		switch {
		case err == nil:
			roomKept = true
		case !errors.Is(err, domain.ErrRoomNotFound):
			return err
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	box.flush(ctx, s.pub, s.log)
	return roomKept, nil
}

// PlaceOrder turns the cart membership recorded on a freshly placed order
// into an order membership.
func (s *RoomService) PlaceOrder(ctx context.Context, orderID int64, meta domain.RoomMeta) error {
	if meta.Mode != domain.RoomModeCreate && meta.Mode != domain.RoomModeJoin {
		return nil
	}
	if meta.RoomJoin == nil {
		s.log.ErrorContext(ctx, "placed order has no room membership", "order_id", orderID, "room_mode", meta.Mode)
		return nil
	}

	return s.tx.WithinTx(ctx, func(ctx context.Context, st ports.Store) error {
		m, err := st.Memberships().GetByID(ctx, *meta.RoomJoin)
		if errors.Is(err, domain.ErrMembershipNotFound) {
			s.log.ErrorContext(ctx, "room membership vanished before order placement", "order_id", orderID, "membership_id", *meta.RoomJoin)
			return nil
		}
		if err != nil {
			return err
		}
		if owner, ok := m.Holder.Order(); ok {
			if owner == orderID {
				return nil
			}
			return fmt.Errorf("membership %d belongs to order %d: %w", m.ID, owner, domain.ErrConflict)
		}
		if _, err := st.Memberships().GetByOrder(ctx, orderID); err == nil {
			return domain.ErrAlreadyInRoom
		} else if !errors.Is(err, domain.ErrMembershipNotFound) {
			return err
		}

		m.Holder = domain.OrderHolder(orderID)
		if err := st.Memberships().Update(ctx, m); err != nil {
			return fmt.Errorf("confirm membership %d: %w", m.ID, err)
		}
		return nil
	})
}

// CancelOrder frees the room place of a canceled order.
func (s *RoomService) CancelOrder(ctx context.Context, orderID int64) error {
	var box outbox
	err := s.tx.WithinTx(ctx, func(ctx context.Context, st ports.Store) error {
		box.reset()
		m, err := st.Memberships().GetByOrder(ctx, orderID)
		if errors.Is(err, domain.ErrMembershipNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		room, err := st.Rooms().GetByID(ctx, m.RoomID)
		if err != nil {
			return err
		}
		return s.deleteMembership(ctx, st, &box, room.EventID, m)
	})
	if err != nil {
		return err
	}
	box.flush(ctx, s.pub, s.log)
	return nil
}

// ListRooms returns the event's rooms that still have valid occupants.
func (s *RoomService) ListRooms(ctx context.Context, eventID int64) ([]RoomView, error) {
	var views []RoomView
	err := s.tx.WithinTx(ctx, func(ctx context.Context, st ports.Store) error {
		views = views[:0]
		rooms, err := st.Rooms().ListByEvent(ctx, eventID)
		if err != nil {
			return err
		}
		for i := range rooms {
			view, err := s.roomView(ctx, st, &rooms[i])
			if err != nil {
				return err
			}
			if len(view.Occupants) > 0 {
				views = append(views, *view)
			}
		}
		return nil
	})
	return views, err
}

func (s *RoomService) RoomDetail(ctx context.Context, roomID int64) (*RoomView, error) {
	var view *RoomView
	err := s.tx.WithinTx(ctx, func(ctx context.Context, st ports.Store) error {
		room, err := st.Rooms().GetByID(ctx, roomID)
		if err != nil {
			return err
		}
		view, err = s.roomView(ctx, st, room)
		return err
	})
	return view, err
}

func (s *RoomService) roomView(ctx context.Context, st ports.Store, room *domain.Room) (*RoomView, error) {
	quota, err := st.Quotas().GetByID(ctx, room.QuotaID)
	if err != nil {
		return nil, err
	}
	occupants, err := s.occ.validMemberships(ctx, st, room, quota)
	if err != nil {
		return nil, err
	}
	return &RoomView{Room: *room, QuotaName: quota.Name, Occupants: occupants}, nil
}

// currentMembership returns the membership holder already has, or nil.
func currentMembership(ctx context.Context, st ports.Store, holder domain.Holder) (*domain.Membership, error) {
	if orderID, ok := holder.Order(); ok {
		m, err := st.Memberships().GetByOrder(ctx, orderID)
		if errors.Is(err, domain.ErrMembershipNotFound) {
			return nil, nil
		}
		return m, err
	}
	cartID, _ := holder.Cart()
	members, err := st.Memberships().ListByCart(ctx, cartID)
	if err != nil || len(members) == 0 {
		return nil, err
	}
	return &members[0], nil
}

func membershipEvent(typ domain.RoomEventType, eventID int64, m *domain.Membership, now time.Time) domain.RoomEvent {
	ev := domain.RoomEvent{Type: typ, EventID: eventID, RoomID: m.RoomID, MembershipID: m.ID, OccurredAt: now.UTC()}
	if orderID, ok := m.Holder.Order(); ok {
		ev.OrderID = orderID
	}
	return ev
}

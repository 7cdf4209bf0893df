package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/srgjo27/roomshare/internal/core/domain"
)

type quotaRepo struct{ st *state }

func (r quotaRepo) nameTaken(q *domain.Quota) bool {
	for _, other := range r.st.quotas {
		if other.ID != q.ID && other.EventID == q.EventID && other.Name == q.Name {
			return true
		}
	}
	return false
}

func (r quotaRepo) Create(_ context.Context, q *domain.Quota) error {
	if r.nameTaken(q) {
		return domain.ErrDuplicateName
	}
	q.ID = r.st.next("quotas")
	stored := *q
	stored.ItemIDs = append([]int64(nil), q.ItemIDs...)
	r.st.quotas[q.ID] = stored
	return nil
}

func (r quotaRepo) Update(_ context.Context, q *domain.Quota) error {
	if _, ok := r.st.quotas[q.ID]; !ok {
		return domain.ErrQuotaNotFound
	}
	if r.nameTaken(q) {
		return domain.ErrDuplicateName
	}
	stored := *q
	stored.ItemIDs = append([]int64(nil), q.ItemIDs...)
	r.st.quotas[q.ID] = stored
	return nil
}

func (r quotaRepo) Delete(ctx context.Context, quotaID int64) error {
	rooms := roomRepo{r.st}
	for id, room := range r.st.rooms {
		if room.QuotaID == quotaID {
			if err := rooms.Delete(ctx, id); err != nil {
				return err
			}
		}
	}
	delete(r.st.quotas, quotaID)
	return nil
}

func (r quotaRepo) GetByID(_ context.Context, quotaID int64) (*domain.Quota, error) {
	q, ok := r.st.quotas[quotaID]
	if !ok {
		return nil, domain.ErrQuotaNotFound
	}
	q.ItemIDs = append([]int64(nil), q.ItemIDs...)
	return &q, nil
}

func (r quotaRepo) GetByName(_ context.Context, eventID int64, name string) (*domain.Quota, error) {
	for _, q := range r.st.quotas {
		if q.EventID == eventID && q.Name == name {
			q.ItemIDs = append([]int64(nil), q.ItemIDs...)
			return &q, nil
		}
	}
	return nil, domain.ErrQuotaNotFound
}

func (r quotaRepo) ListByEvent(_ context.Context, eventID int64) ([]domain.Quota, error) {
	var out []domain.Quota
	for _, q := range r.st.quotas {
		if q.EventID == eventID {
			q.ItemIDs = append([]int64(nil), q.ItemIDs...)
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type roomRepo struct{ st *state }

func (r roomRepo) nameTaken(room *domain.Room) bool {
	for _, other := range r.st.rooms {
		if other.ID != room.ID && other.EventID == room.EventID && other.Name == room.Name {
			return true
		}
	}
	return false
}

func (r roomRepo) Create(_ context.Context, room *domain.Room) error {
	if _, ok := r.st.quotas[room.QuotaID]; !ok {
		return fmt.Errorf("room references missing quota %d: %w", room.QuotaID, domain.ErrQuotaNotFound)
	}
	if r.nameTaken(room) {
		return domain.ErrDuplicateName
	}
	room.ID = r.st.next("rooms")
	r.st.rooms[room.ID] = *room
	return nil
}

func (r roomRepo) Update(_ context.Context, room *domain.Room) error {
	if _, ok := r.st.rooms[room.ID]; !ok {
		return domain.ErrRoomNotFound
	}
	if r.nameTaken(room) {
		return domain.ErrDuplicateName
	}
	r.st.rooms[room.ID] = *room
	return nil
}

func (r roomRepo) Delete(_ context.Context, roomID int64) error {
	for id, m := range r.st.memberships {
		if m.RoomID == roomID {
			delete(r.st.memberships, id)
		}
	}
	delete(r.st.rooms, roomID)
	return nil
}

func (r roomRepo) GetByID(_ context.Context, roomID int64) (*domain.Room, error) {
	room, ok := r.st.rooms[roomID]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	return &room, nil
}

func (r roomRepo) GetByName(_ context.Context, eventID int64, name string) (*domain.Room, error) {
	for _, room := range r.st.rooms {
		if room.EventID == eventID && room.Name == name {
			return &room, nil
		}
	}
	return nil, domain.ErrRoomNotFound
}

func (r roomRepo) list(keep func(domain.Room) bool) []domain.Room {
	var out []domain.Room
	for _, room := range r.st.rooms {
		if keep(room) {
			out = append(out, room)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r roomRepo) ListByEvent(_ context.Context, eventID int64) ([]domain.Room, error) {
	return r.list(func(room domain.Room) bool { return room.EventID == eventID }), nil
}

func (r roomRepo) ListByQuota(_ context.Context, quotaID int64) ([]domain.Room, error) {
	return r.list(func(room domain.Room) bool { return room.QuotaID == quotaID }), nil
}

func (r roomRepo) ListWithCartMembers(_ context.Context) ([]domain.Room, error) {
	withCart := map[int64]bool{}
	for _, m := range r.st.memberships {
		if _, ok := m.Holder.Cart(); ok {
			withCart[m.RoomID] = true
		}
	}
	return r.list(func(room domain.Room) bool { return withCart[room.ID] }), nil
}

type membershipRepo struct{ st *state }

func (r membershipRepo) check(m *domain.Membership) error {
	if err := m.Validate(); err != nil {
		return err
	}
	if _, ok := r.st.rooms[m.RoomID]; !ok {
		return fmt.Errorf("membership references missing room %d: %w", m.RoomID, domain.ErrRoomNotFound)
	}
	if orderID, ok := m.Holder.Order(); ok {
		for _, other := range r.st.memberships {
			if other.ID == m.ID {
				continue
			}
			if id, isOrder := other.Holder.Order(); isOrder && id == orderID {
				return domain.ErrAlreadyInRoom
			}
		}
	}
	return nil
}

func (r membershipRepo) Create(_ context.Context, m *domain.Membership) error {
	if err := r.check(m); err != nil {
		return err
	}
	m.ID = r.st.next("memberships")
	r.st.memberships[m.ID] = *m
	return nil
}

func (r membershipRepo) Update(_ context.Context, m *domain.Membership) error {
	if _, ok := r.st.memberships[m.ID]; !ok {
		return domain.ErrMembershipNotFound
	}
	if err := r.check(m); err != nil {
		return err
	}
	r.st.memberships[m.ID] = *m
	return nil
}

func (r membershipRepo) Delete(_ context.Context, membershipID int64) error {
	if _, ok := r.st.memberships[membershipID]; !ok {
		return domain.ErrMembershipNotFound
	}
	delete(r.st.memberships, membershipID)
	return nil
}

func (r membershipRepo) GetByID(_ context.Context, membershipID int64) (*domain.Membership, error) {
	m, ok := r.st.memberships[membershipID]
	if !ok {
		return nil, domain.ErrMembershipNotFound
	}
	return &m, nil
}

func (r membershipRepo) GetByOrder(_ context.Context, orderID int64) (*domain.Membership, error) {
	for _, m := range r.st.memberships {
		if id, ok := m.Holder.Order(); ok && id == orderID {
			return &m, nil
		}
	}
	return nil, domain.ErrMembershipNotFound
}

func (r membershipRepo) list(keep func(domain.Membership) bool) []domain.Membership {
	var out []domain.Membership
	for _, m := range r.st.memberships {
		if keep(m) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r membershipRepo) ListByCart(_ context.Context, cartID string) ([]domain.Membership, error) {
	return r.list(func(m domain.Membership) bool {
		id, ok := m.Holder.Cart()
		return ok && id == cartID
	}), nil
}

func (r membershipRepo) ListByRoom(_ context.Context, roomID int64) ([]domain.Membership, error) {
	return r.list(func(m domain.Membership) bool { return m.RoomID == roomID }), nil
}

type orderRepo struct{ st *state }

func (r orderRepo) GetByID(_ context.Context, orderID int64) (*domain.Order, error) {
	o, ok := r.st.orders[orderID]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	o.ItemIDs = append([]int64(nil), o.ItemIDs...)
	return &o, nil
}

func (r orderRepo) ListByStatus(_ context.Context, eventID int64, status domain.OrderStatus) ([]domain.Order, error) {
	var out []domain.Order
	for _, o := range r.st.orders {
		if o.EventID == eventID && o.Status == status {
			o.ItemIDs = append([]int64(nil), o.ItemIDs...)
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r orderRepo) CartPositions(_ context.Context, eventID int64, cartID string) ([]domain.CartPosition, error) {
	var out []domain.CartPosition
	for _, p := range r.st.cart {
		if p.EventID == eventID && p.CartID == cartID {
			out = append(out, p)
		}
	}
	return out, nil
}

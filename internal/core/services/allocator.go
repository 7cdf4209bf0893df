package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"

	"github.com/google/uuid"
	"github.com/srgjo27/roomshare/internal/core/domain"
	"github.com/srgjo27/roomshare/internal/core/ports"
)

// Allocation passes, in the order they run.
const (
	PassCreate       = 1
	PassFillNormal   = 2
	PassFillOverflow = 3
)

type AllocatorConfig struct {
	// HostControl makes a room's OptoutRandomExtra flag effective.
	HostControl bool
}

// Assignment records one order placed by the allocator.
type Assignment struct {
	OrderID      int64 `json:"order_id" yaml:"order_id"`
	RoomID       int64 `json:"room_id" yaml:"room_id"`
	MembershipID int64 `json:"membership_id" yaml:"membership_id"`
	Admin        bool  `json:"admin" yaml:"admin"`
	Pass         int   `json:"pass" yaml:"pass"`
}

type AllocationResult struct {
	EventID      int64        `json:"event_id" yaml:"event_id"`
	Assigned     []Assignment `json:"assigned" yaml:"assigned"`
	CreatedRooms []int64      `json:"created_rooms" yaml:"created_rooms"`
	Failed       []int64      `json:"failed" yaml:"failed"`
	// RolledBack is set when failures aborted the batch; Assigned and
	// CreatedRooms then describe nothing that was persisted.
	RolledBack bool `json:"rolled_back" yaml:"rolled_back"`
}

// Allocator assigns every paid, eligible order without a room to a room, in
// one transaction.
type Allocator struct {
	tx      ports.Transactor
	occ     *Occupancy
	maint   *Maintainer
	locker  ports.Locker
	pub     ports.EventPublisher
	cfg     AllocatorConfig
	log     *slog.Logger
	newName func() string
}

func NewAllocator(tx ports.Transactor, occ *Occupancy, locker ports.Locker, pub ports.EventPublisher, cfg AllocatorConfig, logger *slog.Logger) *Allocator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Allocator{
		tx:      tx,
		occ:     occ,
		maint:   NewMaintainer(occ, logger),
		locker:  locker,
		pub:     pub,
		cfg:     cfg,
		log:     logger,
		newName: uuid.NewString,
	}
}

func allocationLockKey(eventID int64) string {
	return "roomshare:allocation:" + strconv.FormatInt(eventID, 10)
}

// RunAllocation places the event's unassigned orders. Unless force is set, a
// single unplaceable order rolls back the whole batch and a
// *domain.PartialAssignmentError is returned alongside the result.
func (a *Allocator) RunAllocation(ctx context.Context, eventID int64, force bool) (*AllocationResult, error) {
	if a.locker != nil {
		release, err := a.locker.Acquire(ctx, allocationLockKey(eventID))
		if err != nil {
			return nil, fmt.Errorf("acquire allocation lock: %w", err)
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				a.log.WarnContext(ctx, "release allocation lock failed", "event_id", eventID, "error", err)
			}
		}()
	}

	var result *AllocationResult
	err := a.tx.WithinTx(ctx, func(ctx context.Context, st ports.Store) error {
		result = &AllocationResult{EventID: eventID}
		run := &allocationRun{
			a:      a,
			st:     st,
			result: result,
		}
		if err := run.execute(ctx, eventID); err != nil {
			return err
		}
		if len(result.Failed) > 0 && !force {
			return &domain.PartialAssignmentError{Failed: append([]int64(nil), result.Failed...)}
		}
		return nil
	})

	var partial *domain.PartialAssignmentError
	if errors.As(err, &partial) {
		result.RolledBack = true
		a.log.WarnContext(ctx, "allocation rolled back", "event_id", eventID, "failed", len(result.Failed))
		return result, err
	}
	if err != nil {
		return nil, err
	}

	a.log.InfoContext(ctx, "allocation finished",
		"event_id", eventID,
		"assigned", len(result.Assigned),
		"rooms_created", len(result.CreatedRooms),
		"failed", len(result.Failed),
		"force", force,
	)

	box := outbox{}
	box.add(domain.RoomEvent{
		Type:       domain.EventRoomsAllocated,
		EventID:    eventID,
		Assigned:   len(result.Assigned),
		Failed:     result.Failed,
		OccurredAt: a.occ.Now().UTC(),
	})
	box.flush(ctx, a.pub, a.log)

	return result, nil
}

// pendingOrder is an unassigned order with the quotas it is eligible for,
// ordered by ascending quota ID.
type pendingOrder struct {
	order  domain.Order
	quotas []*domain.Quota
}

func (p *pendingOrder) eligible(quotaID int64) bool {
	for _, q := range p.quotas {
		if q.ID == quotaID {
			return true
		}
	}
	return false
}

type allocationRun struct {
	a      *Allocator
	st     ports.Store
	quotas map[int64]*domain.Quota
	result *AllocationResult
}

func (r *allocationRun) execute(ctx context.Context, eventID int64) error {
	pending, err := r.unassigned(ctx, eventID)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	deferred, err := r.createOrFillNew(ctx, eventID, pending)
	if err != nil {
		return err
	}

	if len(deferred) > 0 {
		snapshot, err := r.snapshot(ctx, eventID, false)
		if err != nil {
			return err
		}
		deferred, err = r.fill(ctx, deferred, snapshot, false, PassFillNormal)
		if err != nil {
			return err
		}
	}

	if len(deferred) > 0 {
		snapshot, err := r.snapshot(ctx, eventID, true)
		if err != nil {
			return err
		}
		deferred, err = r.fill(ctx, deferred, snapshot, true, PassFillOverflow)
		if err != nil {
			return err
		}
	}

	for _, p := range deferred {
		r.result.Failed = append(r.result.Failed, p.order.ID)
	}
	return nil
}

// unassigned selects paid orders holding an eligible item and no membership,
// by ascending order ID.
func (r *allocationRun) unassigned(ctx context.Context, eventID int64) ([]pendingOrder, error) {
	quotas, err := r.st.Quotas().ListByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("list room types: %w", err)
	}
	sort.Slice(quotas, func(i, j int) bool { return quotas[i].ID < quotas[j].ID })
	r.quotas = make(map[int64]*domain.Quota, len(quotas))
	for i := range quotas {
		r.quotas[quotas[i].ID] = &quotas[i]
	}

	orders, err := r.st.Orders().ListByStatus(ctx, eventID, domain.OrderPaid)
	if err != nil {
		return nil, fmt.Errorf("list paid orders: %w", err)
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].ID < orders[j].ID })

	var pending []pendingOrder
	for _, order := range orders {
		p := pendingOrder{order: order}
		for i := range quotas {
			if quotas[i].EligibleItems(order.ItemIDs) {
				p.quotas = append(p.quotas, &quotas[i])
			}
		}
		if len(p.quotas) == 0 {
			continue
		}
		_, err := r.st.Memberships().GetByOrder(ctx, order.ID)
		if err == nil {
			continue
		}
		if !errors.Is(err, domain.ErrMembershipNotFound) {
			return nil, err
		}
		pending = append(pending, p)
	}
	return pending, nil
}

// createOrFillNew is the first pass: orders fill rooms created earlier in this
// pass, or open a new room of an eligible quota that still has space.
func (r *allocationRun) createOrFillNew(ctx context.Context, eventID int64, pending []pendingOrder) ([]pendingOrder, error) {
	var created []domain.Room
	var deferred []pendingOrder

	for i := range pending {
		p := &pending[i]
		placed := false

		for j := range created {
			if !p.eligible(created[j].QuotaID) {
				continue
			}
			ok, err := r.a.occ.roomHasCapacity(ctx, r.st, &created[j], r.quotas[created[j].QuotaID], false)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			if err := r.join(ctx, p, &created[j], false, PassCreate); err != nil {
				return nil, err
			}
			placed = true
			break
		}
		if placed {
			continue
		}

		for _, quota := range p.quotas {
			ok, err := r.a.occ.QuotaHasSpace(ctx, r.st, quota)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			room := domain.Room{
				EventID:  eventID,
				QuotaID:  quota.ID,
				Name:     r.a.newName(),
				Password: r.a.newName(),
			}
			if err := r.st.Rooms().Create(ctx, &room); err != nil {
				return nil, fmt.Errorf("create room: %w", err)
			}
			r.result.CreatedRooms = append(r.result.CreatedRooms, room.ID)
			created = append(created, room)
			if err := r.join(ctx, p, &created[len(created)-1], true, PassCreate); err != nil {
				return nil, err
			}
			placed = true
			break
		}

		if !placed {
			deferred = append(deferred, *p)
		}
	}
	return deferred, nil
}

// snapshot lists the event's rooms that currently have space, by ascending
// room ID. The overflow snapshot leaves out rooms refusing random extras.
func (r *allocationRun) snapshot(ctx context.Context, eventID int64, includeExtra bool) ([]domain.Room, error) {
	rooms, err := r.st.Rooms().ListByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].ID < rooms[j].ID })

	open := rooms[:0]
	for i := range rooms {
		quota, ok := r.quotas[rooms[i].QuotaID]
		if !ok {
			continue
		}
		if includeExtra && !rooms[i].AcceptsRandomExtra(r.a.cfg.HostControl) {
			continue
		}
		has, err := r.a.occ.roomHasCapacity(ctx, r.st, &rooms[i], quota, includeExtra)
		if err != nil {
			return nil, err
		}
		if has {
			open = append(open, rooms[i])
		}
	}
	return open, nil
}

// fill places each order into the first snapshot room of an eligible quota
// that still has space. Capacity is re-checked before every join; full rooms
// drop out of the snapshot.
func (r *allocationRun) fill(ctx context.Context, pending []pendingOrder, snapshot []domain.Room, includeExtra bool, pass int) ([]pendingOrder, error) {
	var deferred []pendingOrder
	for i := range pending {
		p := &pending[i]
		placed := false
		for j := 0; j < len(snapshot); {
			room := &snapshot[j]
			if !p.eligible(room.QuotaID) {
				j++
				continue
			}
			has, err := r.a.occ.roomHasCapacity(ctx, r.st, room, r.quotas[room.QuotaID], includeExtra)
			if err != nil {
				return nil, err
			}
			if !has {
				snapshot = append(snapshot[:j], snapshot[j+1:]...)
				continue
			}
			if err := r.join(ctx, p, room, false, pass); err != nil {
				return nil, err
			}
			placed = true
			break
		}
		if !placed {
			deferred = append(deferred, *p)
		}
	}
	return deferred, nil
}

func (r *allocationRun) join(ctx context.Context, p *pendingOrder, room *domain.Room, admin bool, pass int) error {
	m := &domain.Membership{RoomID: room.ID, Holder: domain.OrderHolder(p.order.ID), IsAdmin: admin}
	if err := r.st.Memberships().Create(ctx, m); err != nil {
		return fmt.Errorf("assign order %d to room %d: %w", p.order.ID, room.ID, err)
	}
	if !admin {
		// A reused stale room may only hold a lapsed admin.
		if _, err := r.a.maint.Touch(ctx, r.st, room.ID); err != nil {
			return err
		}
		touched, err := r.st.Memberships().GetByID(ctx, m.ID)
		if err != nil {
			return err
		}
		admin = touched.IsAdmin
	}
	r.result.Assigned = append(r.result.Assigned, Assignment{
		OrderID:      p.order.ID,
		RoomID:       room.ID,
		MembershipID: m.ID,
		Admin:        admin,
		Pass:         pass,
	})
	return nil
}

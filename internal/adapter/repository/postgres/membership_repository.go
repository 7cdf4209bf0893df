package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/srgjo27/roomshare/internal/core/domain"
)

type MembershipRepository struct {
	q querier
}

const membershipColumns = `
	SELECT id, room_id, order_id, cart_id, is_admin
	FROM room_memberships
	`

// holderColumns splits a holder into the nullable order_id/cart_id pair the
// table stores. A CHECK constraint enforces that exactly one is set.
func holderColumns(h domain.Holder) (sql.NullInt64, sql.NullString) {
	var orderID sql.NullInt64
	var cartID sql.NullString
	if id, ok := h.Order(); ok {
		orderID = sql.NullInt64{Int64: id, Valid: true}
	}
	if id, ok := h.Cart(); ok {
		cartID = sql.NullString{String: id, Valid: true}
	}
	return orderID, cartID
}

func (r *MembershipRepository) Create(ctx context.Context, m *domain.Membership) error {
	if err := m.Validate(); err != nil {
		return err
	}
	orderID, cartID := holderColumns(m.Holder)

	query := `
	INSERT INTO room_memberships (room_id, order_id, cart_id, is_admin)
	VALUES ($1, $2, $3, $4)
	RETURNING id
	`

	if err := r.q.QueryRowContext(ctx, query, m.RoomID, orderID, cartID, m.IsAdmin).Scan(&m.ID); err != nil {
		return fmt.Errorf("failed to insert membership: %w", translate(err))
	}

	return nil
}

func (r *MembershipRepository) Update(ctx context.Context, m *domain.Membership) error {
	if err := m.Validate(); err != nil {
		return err
	}
	orderID, cartID := holderColumns(m.Holder)

	query := `
	UPDATE room_memberships
	SET room_id = $1, order_id = $2, cart_id = $3, is_admin = $4
	WHERE id = $5
	`

	result, err := r.q.ExecContext(ctx, query, m.RoomID, orderID, cartID, m.IsAdmin, m.ID)
	if err != nil {
		return fmt.Errorf("failed to update membership %d: %w", m.ID, translate(err))
	}

	return expectRow(result, domain.ErrMembershipNotFound)
}

func (r *MembershipRepository) Delete(ctx context.Context, membershipID int64) error {
	result, err := r.q.ExecContext(ctx, `DELETE FROM room_memberships WHERE id = $1`, membershipID)
	if err != nil {
		return err
	}

	return expectRow(result, domain.ErrMembershipNotFound)
}

func (r *MembershipRepository) GetByID(ctx context.Context, membershipID int64) (*domain.Membership, error) {
	return scanMembership(r.q.QueryRowContext(ctx, membershipColumns+`WHERE id = $1`, membershipID))
}

func (r *MembershipRepository) GetByOrder(ctx context.Context, orderID int64) (*domain.Membership, error) {
	return scanMembership(r.q.QueryRowContext(ctx, membershipColumns+`WHERE order_id = $1`, orderID))
}

func (r *MembershipRepository) ListByCart(ctx context.Context, cartID string) ([]domain.Membership, error) {
	return r.list(ctx, membershipColumns+`WHERE cart_id = $1 ORDER BY id`, cartID)
}

func (r *MembershipRepository) ListByRoom(ctx context.Context, roomID int64) ([]domain.Membership, error) {
	return r.list(ctx, membershipColumns+`WHERE room_id = $1 ORDER BY id`, roomID)
}

func (r *MembershipRepository) list(ctx context.Context, query string, args ...any) ([]domain.Membership, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	var members []domain.Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, *m)
	}

	return members, rows.Err()
}

func scanMembership(row scanner) (*domain.Membership, error) {
	var m domain.Membership
	var orderID sql.NullInt64
	var cartID sql.NullString

	err := row.Scan(&m.ID, &m.RoomID, &orderID, &cartID, &m.IsAdmin)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrMembershipNotFound
		}
		return nil, err
	}

	switch {
	case orderID.Valid:
		m.Holder = domain.OrderHolder(orderID.Int64)
	case cartID.Valid:
		m.Holder = domain.CartHolder(cartID.String)
	}

	return &m, nil
}

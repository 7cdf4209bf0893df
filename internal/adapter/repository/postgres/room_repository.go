package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/srgjo27/roomshare/internal/core/domain"
)

type RoomRepository struct {
	q querier
}

const roomColumns = `
	SELECT r.id, r.event_id, r.quota_id, r.name, r.password, r.disable_random_extra, r.optout_random_extra
	FROM rooms r
	`

func (r *RoomRepository) Create(ctx context.Context, room *domain.Room) error {
	query := `
	INSERT INTO rooms (event_id, quota_id, name, password, disable_random_extra, optout_random_extra)
	VALUES ($1, $2, $3, $4, $5, $6)
	RETURNING id
	`

	err := r.q.QueryRowContext(ctx, query, room.EventID, room.QuotaID, room.Name, room.Password, room.DisableRandomExtra, room.OptoutRandomExtra).Scan(&room.ID)
	if err != nil {
		return fmt.Errorf("failed to insert room: %w", translate(err))
	}

	return nil
}

func (r *RoomRepository) Update(ctx context.Context, room *domain.Room) error {
	query := `
	UPDATE rooms
	SET quota_id = $1,
		name = $2,
		password = $3,
		disable_random_extra = $4,
		optout_random_extra = $5
	WHERE id = $6
	`

	result, err := r.q.ExecContext(ctx, query, room.QuotaID, room.Name, room.Password, room.DisableRandomExtra, room.OptoutRandomExtra, room.ID)
	if err != nil {
		return fmt.Errorf("failed to update room %d: %w", room.ID, translate(err))
	}

	return expectRow(result, domain.ErrRoomNotFound)
}

// Delete relies on ON DELETE CASCADE for memberships.
func (r *RoomRepository) Delete(ctx context.Context, roomID int64) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM rooms WHERE id = $1`, roomID)
	return err
}

func (r *RoomRepository) GetByID(ctx context.Context, roomID int64) (*domain.Room, error) {
	return scanRoom(r.q.QueryRowContext(ctx, roomColumns+`WHERE r.id = $1`, roomID))
}

func (r *RoomRepository) GetByName(ctx context.Context, eventID int64, name string) (*domain.Room, error) {
	return scanRoom(r.q.QueryRowContext(ctx, roomColumns+`WHERE r.event_id = $1 AND r.name = $2`, eventID, name))
}

func (r *RoomRepository) ListByEvent(ctx context.Context, eventID int64) ([]domain.Room, error) {
	return r.list(ctx, roomColumns+`WHERE r.event_id = $1 ORDER BY r.id`, eventID)
}

func (r *RoomRepository) ListByQuota(ctx context.Context, quotaID int64) ([]domain.Room, error) {
	return r.list(ctx, roomColumns+`WHERE r.quota_id = $1 ORDER BY r.id`, quotaID)
}

func (r *RoomRepository) ListWithCartMembers(ctx context.Context) ([]domain.Room, error) {
	return r.list(ctx, roomColumns+`
	WHERE EXISTS (SELECT 1 FROM room_memberships m WHERE m.room_id = r.id AND m.cart_id IS NOT NULL)
	ORDER BY r.id
	`)
}

func (r *RoomRepository) list(ctx context.Context, query string, args ...any) ([]domain.Room, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	var rooms []domain.Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, *room)
	}

	return rooms, rows.Err()
}

func scanRoom(row scanner) (*domain.Room, error) {
	var room domain.Room

	err := row.Scan(
		&room.ID,
		&room.EventID,
		&room.QuotaID,
		&room.Name,
		&room.Password,
		&room.DisableRandomExtra,
		&room.OptoutRandomExtra,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrRoomNotFound
		}
		return nil, err
	}

	return &room, nil
}

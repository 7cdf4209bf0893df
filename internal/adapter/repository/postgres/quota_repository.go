package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/srgjo27/roomshare/internal/core/domain"
)

type QuotaRepository struct {
	q querier
}

const quotaColumns = `
	SELECT qt.id, qt.event_id, qt.name, qt.capacity, qt.extra_capacity, qt.max_rooms,
		COALESCE(array_agg(qi.item_id ORDER BY qi.item_id) FILTER (WHERE qi.item_id IS NOT NULL), '{}')
	FROM room_quotas qt
	LEFT JOIN room_quota_items qi ON qi.quota_id = qt.id
	`

func (r *QuotaRepository) Create(ctx context.Context, quota *domain.Quota) error {
	query := `
	INSERT INTO room_quotas (event_id, name, capacity, extra_capacity, max_rooms)
	VALUES ($1, $2, $3, $4, $5)
	RETURNING id
	`

	err := r.q.QueryRowContext(ctx, query, quota.EventID, quota.Name, quota.Capacity, quota.ExtraCapacity, quota.MaxRooms).Scan(&quota.ID)
	if err != nil {
		return fmt.Errorf("failed to insert room type: %w", translate(err))
	}

	return r.replaceItems(ctx, quota)
}

func (r *QuotaRepository) Update(ctx context.Context, quota *domain.Quota) error {
	query := `
	UPDATE room_quotas
	SET name = $1, capacity = $2, extra_capacity = $3, max_rooms = $4
	WHERE id = $5
	`

	result, err := r.q.ExecContext(ctx, query, quota.Name, quota.Capacity, quota.ExtraCapacity, quota.MaxRooms, quota.ID)
	if err != nil {
		return fmt.Errorf("failed to update room type %d: %w", quota.ID, translate(err))
	}
	if err := expectRow(result, domain.ErrQuotaNotFound); err != nil {
		return err
	}

	return r.replaceItems(ctx, quota)
}

func (r *QuotaRepository) replaceItems(ctx context.Context, quota *domain.Quota) error {
	if _, err := r.q.ExecContext(ctx, `DELETE FROM room_quota_items WHERE quota_id = $1`, quota.ID); err != nil {
		return fmt.Errorf("failed to clear room type items: %w", err)
	}

	_, err := r.q.ExecContext(ctx, `
	INSERT INTO room_quota_items (quota_id, item_id)
	SELECT $1, item FROM unnest($2::bigint[]) AS item
	ON CONFLICT DO NOTHING
	`, quota.ID, pq.Array(quota.ItemIDs))
	if err != nil {
		return fmt.Errorf("failed to insert room type items: %w", err)
	}

	return nil
}

// Delete relies on ON DELETE CASCADE for rooms, items and memberships.
func (r *QuotaRepository) Delete(ctx context.Context, quotaID int64) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM room_quotas WHERE id = $1`, quotaID)
	return err
}

func (r *QuotaRepository) GetByID(ctx context.Context, quotaID int64) (*domain.Quota, error) {
	row := r.q.QueryRowContext(ctx, quotaColumns+`WHERE qt.id = $1 GROUP BY qt.id`, quotaID)
	return scanQuota(row)
}

func (r *QuotaRepository) GetByName(ctx context.Context, eventID int64, name string) (*domain.Quota, error) {
	row := r.q.QueryRowContext(ctx, quotaColumns+`WHERE qt.event_id = $1 AND qt.name = $2 GROUP BY qt.id`, eventID, name)
	return scanQuota(row)
}

func (r *QuotaRepository) ListByEvent(ctx context.Context, eventID int64) ([]domain.Quota, error) {
	rows, err := r.q.QueryContext(ctx, quotaColumns+`WHERE qt.event_id = $1 GROUP BY qt.id ORDER BY qt.id`, eventID)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	var quotas []domain.Quota
	for rows.Next() {
		quota, err := scanQuota(rows)
		if err != nil {
			return nil, err
		}
		quotas = append(quotas, *quota)
	}

	return quotas, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanQuota(row scanner) (*domain.Quota, error) {
	var quota domain.Quota
	var items pq.Int64Array

	err := row.Scan(
		&quota.ID,
		&quota.EventID,
		&quota.Name,
		&quota.Capacity,
		&quota.ExtraCapacity,
		&quota.MaxRooms,
		&items,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrQuotaNotFound
		}
		return nil, err
	}

	quota.ItemIDs = []int64(items)
	return &quota, nil
}

func expectRow(result sql.Result, notFound error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

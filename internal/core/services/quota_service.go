package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/srgjo27/roomshare/internal/core/domain"
	"github.com/srgjo27/roomshare/internal/core/ports"
)

// QuotaUsage is a quota together with how many of its rooms are in use.
type QuotaUsage struct {
	Quota      domain.Quota
	ValidRooms int
}

type QuotaService struct {
	tx  ports.Transactor
	occ *Occupancy
	log *slog.Logger
}

func NewQuotaService(tx ports.Transactor, occ *Occupancy, logger *slog.Logger) *QuotaService {
	if logger == nil {
		logger = slog.Default()
	}
	return &QuotaService{tx: tx, occ: occ, log: logger}
}

func validateQuota(q *domain.Quota) error {
	q.Name = strings.TrimSpace(q.Name)
	switch {
	case q.Name == "":
		return fmt.Errorf("room type name is required: %w", domain.ErrInvalidInput)
	case q.Capacity < 1:
		return fmt.Errorf("room capacity must be positive: %w", domain.ErrInvalidInput)
	case q.ExtraCapacity < 0:
		return fmt.Errorf("extra capacity must not be negative: %w", domain.ErrInvalidInput)
	case q.MaxRooms < 0:
		return fmt.Errorf("max rooms must not be negative: %w", domain.ErrInvalidInput)
	case len(q.ItemIDs) == 0:
		return fmt.Errorf("room type needs at least one product: %w", domain.ErrInvalidInput)
	}
	return nil
}

func (s *QuotaService) CreateQuota(ctx context.Context, quota *domain.Quota) error {
	if err := validateQuota(quota); err != nil {
		return err
	}
	err := s.tx.WithinTx(ctx, func(ctx context.Context, st ports.Store) error {
		if err := ensureQuotaNameFree(ctx, st, quota); err != nil {
			return err
		}
		return st.Quotas().Create(ctx, quota)
	})
	if err != nil {
		return err
	}
	s.log.InfoContext(ctx, "room type created", "event_id", quota.EventID, "quota_id", quota.ID, "name", quota.Name)
	return nil
}

func (s *QuotaService) UpdateQuota(ctx context.Context, quota *domain.Quota) error {
	if err := validateQuota(quota); err != nil {
		return err
	}
	return s.tx.WithinTx(ctx, func(ctx context.Context, st ports.Store) error {
		current, err := st.Quotas().GetByID(ctx, quota.ID)
		if err != nil {
			return err
		}
		quota.EventID = current.EventID
		if err := ensureQuotaNameFree(ctx, st, quota); err != nil {
			return err
		}
		return st.Quotas().Update(ctx, quota)
	})
}

func ensureQuotaNameFree(ctx context.Context, st ports.Store, quota *domain.Quota) error {
	other, err := st.Quotas().GetByName(ctx, quota.EventID, quota.Name)
	switch {
	case errors.Is(err, domain.ErrQuotaNotFound):
		return nil
	case err != nil:
		return err
	case other.ID != quota.ID:
		return domain.ErrDuplicateName
	}
	return nil
}

// DeleteQuota removes the quota with all of its rooms and memberships.
func (s *QuotaService) DeleteQuota(ctx context.Context, quotaID int64) error {
	err := s.tx.WithinTx(ctx, func(ctx context.Context, st ports.Store) error {
		if _, err := st.Quotas().GetByID(ctx, quotaID); err != nil {
			return err
		}
		return st.Quotas().Delete(ctx, quotaID)
	})
	if err != nil {
		return err
	}
	s.log.InfoContext(ctx, "room type deleted", "quota_id", quotaID)
	return nil
}

func (s *QuotaService) ListQuotas(ctx context.Context, eventID int64) ([]QuotaUsage, error) {
	var usage []QuotaUsage
	err := s.tx.WithinTx(ctx, func(ctx context.Context, st ports.Store) error {
		usage = usage[:0]
		quotas, err := st.Quotas().ListByEvent(ctx, eventID)
		if err != nil {
			return err
		}
		for i := range quotas {
			n, err := s.occ.ValidRoomCount(ctx, st, &quotas[i])
			if err != nil {
				return err
			}
			usage = append(usage, QuotaUsage{Quota: quotas[i], ValidRooms: n})
		}
		return nil
	})
	return usage, err
}

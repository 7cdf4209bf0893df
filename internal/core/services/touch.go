package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/srgjo27/roomshare/internal/core/domain"
	"github.com/srgjo27/roomshare/internal/core/ports"
)

// Maintainer restores the admin invariant of a room after it lost an
// occupant: an empty room is deleted, otherwise exactly one valid occupant
// carries the admin flag.
type Maintainer struct {
	occ *Occupancy
	log *slog.Logger
}

func NewMaintainer(occ *Occupancy, logger *slog.Logger) *Maintainer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Maintainer{occ: occ, log: logger}
}

// Touch reports whether the room was deleted. A room that is already gone is
// treated as deleted.
func (m *Maintainer) Touch(ctx context.Context, s ports.Store, roomID int64) (bool, error) {
	room, err := s.Rooms().GetByID(ctx, roomID)
	if errors.Is(err, domain.ErrRoomNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}

	valid, err := m.occ.ValidMemberships(ctx, s, room)
	if err != nil {
		return false, err
	}

	if len(valid) == 0 {
		if err := s.Rooms().Delete(ctx, room.ID); err != nil {
			return false, fmt.Errorf("delete empty room %d: %w", room.ID, err)
		}
		m.log.InfoContext(ctx, "deleted empty room", "room_id", room.ID, "event_id", room.EventID)
		return true, nil
	}

	// valid is ordered by ID; the first admin found keeps the flag.
	admin := -1
	for i := range valid {
		if !valid[i].IsAdmin {
			continue
		}
		if admin < 0 {
			admin = i
			continue
		}
		valid[i].IsAdmin = false
		if err := s.Memberships().Update(ctx, &valid[i]); err != nil {
			return false, fmt.Errorf("demote membership %d: %w", valid[i].ID, err)
		}
	}

	if admin < 0 {
		valid[0].IsAdmin = true
		if err := s.Memberships().Update(ctx, &valid[0]); err != nil {
			return false, fmt.Errorf("promote membership %d: %w", valid[0].ID, err)
		}
		m.log.InfoContext(ctx, "promoted room admin", "room_id", room.ID, "membership_id", valid[0].ID)
	}

	return false, nil
}

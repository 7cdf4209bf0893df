package services

import (
	"context"
	"time"

	"github.com/srgjo27/roomshare/internal/core/ports"
)

// RunBackgroundSweep periodically touches rooms held by cart sessions, so
// rooms whose holds expired without anyone leaving are removed.
func (s *RoomService) RunBackgroundSweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.Info("room sweeper started", "interval", interval)

	for {
		select {
		case <-ctx.Done():
			s.log.Info("room sweeper stopped")
			return
		case <-ticker.C:
			s.SweepStaleRooms(ctx)
		}
	}
}

// SweepStaleRooms touches every room with a cart membership, each in its own
// transaction, and returns how many rooms were deleted.
func (s *RoomService) SweepStaleRooms(ctx context.Context) int {
	var candidates []int64
	var events = map[int64]int64{}
	err := s.tx.WithinTx(ctx, func(ctx context.Context, st ports.Store) error {
		candidates = candidates[:0]
		rooms, err := st.Rooms().ListWithCartMembers(ctx)
		if err != nil {
			return err
		}
		for _, r := range rooms {
			candidates = append(candidates, r.ID)
			events[r.ID] = r.EventID
		}
		return nil
	})
	if err != nil {
		s.log.ErrorContext(ctx, "list rooms for sweep failed", "error", err)
		return 0
	}
	if len(candidates) == 0 {
		return 0
	}

	deleted := 0
	for _, roomID := range candidates {
		var box outbox
		err := s.tx.WithinTx(ctx, func(ctx context.Context, st ports.Store) error {
			box.reset()
			return s.touch(ctx, st, &box, events[roomID], roomID)
		})
		if err != nil {
			s.log.ErrorContext(ctx, "sweep room failed", "room_id", roomID, "error", err)
			continue
		}
		if len(box.events) > 0 {
			deleted++
		}
		box.flush(ctx, s.pub, s.log)
	}

	if deleted > 0 {
		s.log.InfoContext(ctx, "swept stale rooms", "checked", len(candidates), "deleted", deleted)
	}
	return deleted
}

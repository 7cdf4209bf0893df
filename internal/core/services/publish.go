package services

import (
	"context"
	"log/slog"

	"github.com/srgjo27/roomshare/internal/core/domain"
	"github.com/srgjo27/roomshare/internal/core/ports"
)

// outbox collects events inside a transaction closure. reset must be called at
// the top of the closure because transactors may run it more than once.
type outbox struct {
	events []domain.RoomEvent
}

func (b *outbox) reset() { b.events = b.events[:0] }

func (b *outbox) add(ev domain.RoomEvent) { b.events = append(b.events, ev) }

// flush publishes after commit. Failures are logged, never returned: the room
// change is already durable.
func (b *outbox) flush(ctx context.Context, pub ports.EventPublisher, log *slog.Logger) {
	if pub == nil {
		return
	}
	for _, ev := range b.events {
		if err := pub.Publish(ctx, ev); err != nil {
			log.WarnContext(ctx, "publish room event failed", "type", ev.Type, "event_id", ev.EventID, "error", err)
		}
	}
}

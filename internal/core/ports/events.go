package ports

import (
	"context"

	"github.com/srgjo27/roomshare/internal/core/domain"
)

// EventPublisher forwards committed room changes to downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.RoomEvent) error
}

// Locker hands out exclusive, expiring locks shared between processes.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(context.Context) error, err error)
}

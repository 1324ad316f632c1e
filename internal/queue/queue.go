// Package queue holds messages for offline users, bounded per user.
package queue

import (
	"context"
	"errors"

	"chat-core/internal/models"
)

// ErrQueueFull signals that the recipient's backlog is at capacity.
var ErrQueueFull = errors.New("offline queue full")

// DefaultCapacity bounds each user's backlog.
const DefaultCapacity = 100

// Queue stores messages for users with no open connection. Drain returns
// and removes the backlog in enqueue order.
type Queue interface {
	Enqueue(ctx context.Context, userID string, msg *models.Message) error
	Drain(ctx context.Context, userID string) ([]models.Message, error)
	Len(ctx context.Context, userID string) (int, error)
}

// Package store is the friend-graph/persistence collaborator boundary.
// The core consumes it as a boolean relation predicate plus an opaque
// message-append; it never owns the data structure.
package store

import (
	"context"

	"chat-core/internal/models"
)

// RelationStore is consulted before directed delivery and receives
// delivered chat text for history.
type RelationStore interface {
	AreRelated(ctx context.Context, a, b string) (bool, error)
	AppendMessage(ctx context.Context, msg *models.Message) error
	Close() error
}

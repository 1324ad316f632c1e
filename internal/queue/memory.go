package queue

import (
	"context"
	"sync"

	"chat-core/internal/models"
)

// Memory is the in-process queue backend, one bounded FIFO per user.
type Memory struct {
	mu       sync.Mutex
	backlogs map[string][]models.Message
	capacity int
}

func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Memory{
		backlogs: make(map[string][]models.Message),
		capacity: capacity,
	}
}

func (q *Memory) Enqueue(_ context.Context, userID string, msg *models.Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	backlog := q.backlogs[userID]
	if len(backlog) >= q.capacity {
		return ErrQueueFull
	}
	q.backlogs[userID] = append(backlog, *msg)
	return nil
}

func (q *Memory) Drain(_ context.Context, userID string) ([]models.Message, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	backlog := q.backlogs[userID]
	delete(q.backlogs, userID)
	return backlog, nil
}

func (q *Memory) Len(_ context.Context, userID string) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.backlogs[userID]), nil
}

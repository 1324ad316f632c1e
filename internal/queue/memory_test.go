package queue

import (
	"context"
	"errors"
	"testing"

	"chat-core/internal/models"
)

func TestEnqueueDrainOrder(t *testing.T) {
	q := NewMemory(10)
	ctx := context.Background()

	for _, content := range []string{"one", "two", "three"} {
		if err := q.Enqueue(ctx, "alice", models.NewText("bob", content, "alice")); err != nil {
			t.Fatalf("enqueue failed: %v", err)
		}
	}

	if n, _ := q.Len(ctx, "alice"); n != 3 {
		t.Fatalf("len = %d, want 3", n)
	}

	backlog, err := q.Drain(ctx, "alice")
	if err != nil {
		t.Fatalf("drain failed: %v", err)
	}
	if len(backlog) != 3 {
		t.Fatalf("drained %d messages, want 3", len(backlog))
	}
	for i, want := range []string{"one", "two", "three"} {
		if backlog[i].Content != want {
			t.Fatalf("backlog[%d] = %q, want %q (FIFO order)", i, backlog[i].Content, want)
		}
	}

	if n, _ := q.Len(ctx, "alice"); n != 0 {
		t.Fatalf("len after drain = %d, want 0", n)
	}
}

func TestEnqueueBound(t *testing.T) {
	q := NewMemory(2)
	ctx := context.Background()

	msg := models.NewText("bob", "hi", "alice")
	if err := q.Enqueue(ctx, "alice", msg); err != nil {
		t.Fatalf("enqueue 1 failed: %v", err)
	}
	if err := q.Enqueue(ctx, "alice", msg); err != nil {
		t.Fatalf("enqueue 2 failed: %v", err)
	}
	if err := q.Enqueue(ctx, "alice", msg); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("enqueue past capacity = %v, want ErrQueueFull", err)
	}

	// Other users have their own bound.
	if err := q.Enqueue(ctx, "carol", msg); err != nil {
		t.Fatalf("enqueue for another user failed: %v", err)
	}
}

func TestDrainEmptyUser(t *testing.T) {
	q := NewMemory(2)

	backlog, err := q.Drain(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("drain failed: %v", err)
	}
	if len(backlog) != 0 {
		t.Fatalf("drained %d messages for an empty user", len(backlog))
	}
}

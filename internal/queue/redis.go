package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"chat-core/internal/models"

	"github.com/redis/go-redis/v9"
)

// Redis is the queue backend that survives process restarts: one list
// per user, messages stored as JSON.
type Redis struct {
	client   *redis.Client
	capacity int
}

func NewRedis(addr string, capacity int) (*Redis, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &Redis{client: client, capacity: capacity}, nil
}

func backlogKey(userID string) string {
	return "offline:" + userID
}

func (q *Redis) Enqueue(ctx context.Context, userID string, msg *models.Message) error {
	key := backlogKey(userID)

	size, err := q.client.LLen(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to check backlog size: %w", err)
	}
	if size >= int64(q.capacity) {
		return ErrQueueFull
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}
	if err := q.client.RPush(ctx, key, data).Err(); err != nil {
		return fmt.Errorf("failed to enqueue message: %w", err)
	}
	return nil
}

func (q *Redis) Drain(ctx context.Context, userID string) ([]models.Message, error) {
	key := backlogKey(userID)

	pipe := q.client.TxPipeline()
	rangeCmd := pipe.LRange(ctx, key, 0, -1)
	pipe.Del(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to drain backlog: %w", err)
	}

	raw := rangeCmd.Val()
	out := make([]models.Message, 0, len(raw))
	for _, item := range raw {
		var msg models.Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}

func (q *Redis) Len(ctx context.Context, userID string) (int, error) {
	size, err := q.client.LLen(ctx, backlogKey(userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read backlog size: %w", err)
	}
	return int(size), nil
}

// Close releases the redis client.
func (q *Redis) Close() error {
	return q.client.Close()
}

package store

import (
	"context"
	"fmt"

	"chat-core/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements RelationStore against the friendships and
// messages tables owned by the REST collaborator.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(context.Background(), databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test connection
	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// AreRelated reports whether a friendship exists between the two users,
// in either direction.
func (s *PostgresStore) AreRelated(ctx context.Context, a, b string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM friendships
			WHERE (user_a = $1 AND user_b = $2)
			   OR (user_a = $2 AND user_b = $1)
		)`

	var related bool
	if err := s.pool.QueryRow(ctx, query, a, b).Scan(&related); err != nil {
		return false, fmt.Errorf("failed to check friendship: %w", err)
	}
	return related, nil
}

// AppendMessage records a delivered chat message.
func (s *PostgresStore) AppendMessage(ctx context.Context, msg *models.Message) error {
	query := `
		INSERT INTO messages (sender, recipient, content, created_at)
		VALUES ($1, NULLIF($2, ''), $3, NOW())`

	if _, err := s.pool.Exec(ctx, query, msg.Sender, msg.Target, msg.Content); err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	return nil
}

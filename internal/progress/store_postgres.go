package progress

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is a PostgreSQL-backed Store implementation.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a progress store on the topic_progress table.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Load(ctx context.Context, userID string) (Record, error) {
	if userID == "" {
		return nil, fmt.Errorf("user_id is required")
	}

	rows, err := s.pool.Query(ctx,
		`SELECT topic_id, completed
		 FROM topic_progress
		 WHERE user_identity = $1`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query progress: %w", err)
	}
	defer rows.Close()

	rec := make(Record)
	for rows.Next() {
		var topicID string
		var completed bool
		if err := rows.Scan(&topicID, &completed); err != nil {
			return nil, fmt.Errorf("scan progress: %w", err)
		}
		rec[topicID] = completed
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate progress: %w", err)
	}

	return rec, nil
}

func (s *PostgresStore) MarkComplete(ctx context.Context, userID, topicID string) error {
	if userID == "" {
		return fmt.Errorf("user_id is required")
	}
	if topicID == "" {
		return fmt.Errorf("topic_id is required")
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO topic_progress (user_identity, topic_id, completed, completed_at)
		 VALUES ($1, $2, TRUE, NOW())
		 ON CONFLICT (user_identity, topic_id)
		 DO UPDATE SET completed = TRUE,
		               completed_at = COALESCE(topic_progress.completed_at, EXCLUDED.completed_at)`,
		userID,
		topicID,
	)
	if err != nil {
		return fmt.Errorf("mark complete: %w", err)
	}
	return nil
}

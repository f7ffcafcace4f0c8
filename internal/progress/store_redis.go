package progress

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/blake2b"

	"github.com/p-n-ai/pai-path/internal/platform/cache"
)

// RedisStore keeps one hash per learner, field = topic id.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis/Dragonfly-backed Store.
func NewRedisStore(client *redis.Client) (*RedisStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	return &RedisStore{client: client}, nil
}

// userKey hashes the identity so raw user ids never appear in key space.
func userKey(userID string) string {
	sum := blake2b.Sum256([]byte(userID))
	return cache.Key("progress", hex.EncodeToString(sum[:16]))
}

func (s *RedisStore) Load(ctx context.Context, userID string) (Record, error) {
	if userID == "" {
		return nil, fmt.Errorf("user_id is required")
	}

	fields, err := s.client.HGetAll(ctx, userKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("load progress: %w", err)
	}

	rec := make(Record, len(fields))
	for topicID, v := range fields {
		rec[topicID] = v == "1"
	}
	return rec, nil
}

func (s *RedisStore) MarkComplete(ctx context.Context, userID, topicID string) error {
	if userID == "" {
		return fmt.Errorf("user_id is required")
	}
	if topicID == "" {
		return fmt.Errorf("topic_id is required")
	}
	if err := s.client.HSet(ctx, userKey(userID), topicID, "1").Err(); err != nil {
		return fmt.Errorf("mark complete: %w", err)
	}
	return nil
}

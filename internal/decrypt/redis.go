package decrypt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore appends reports as JSON to the list <prefix>:decrypt_reports.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore creates a RedisStore. An empty prefix defaults to "cracklab".
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "cracklab"
	}
	return &RedisStore{client: client, key: prefix + ":decrypt_reports"}
}

// Append implements Store.
func (s *RedisStore) Append(ctx context.Context, r *Report) error {
	if r.ReceivedAt.IsZero() {
		r.ReceivedAt = time.Now().UTC()
	}
	b, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal decrypt report: %w", err)
	}
	if err := s.client.RPush(ctx, s.key, b).Err(); err != nil {
		return fmt.Errorf("push decrypt report: %w", err)
	}
	return nil
}

// List implements Store. RPUSH order is arrival order.
func (s *RedisStore) List(ctx context.Context) ([]*Report, error) {
	raw, err := s.client.LRange(ctx, s.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list decrypt reports: %w", err)
	}
	out := make([]*Report, 0, len(raw))
	for _, item := range raw {
		var r Report
		if err := json.Unmarshal([]byte(item), &r); err != nil {
			return nil, fmt.Errorf("decode decrypt report: %w", err)
		}
		out = append(out, &r)
	}
	return out, nil
}

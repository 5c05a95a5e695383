package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps one JSON document per record in a redis list. RPUSH is
// atomic, so concurrent appends from several bot replicas are never lost.
type RedisStore struct {
	client *redis.Client
	key    string
	logger *slog.Logger
}

func NewRedisStore(client *redis.Client, key string, logger *slog.Logger) *RedisStore {
	if key == "" {
		key = "fixdesk:catalog"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisStore{client: client, key: key, logger: logger}
}

func (s *RedisStore) ReadAll(ctx context.Context) ([]IssueRecord, error) {
	values, err := s.client.LRange(ctx, s.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read catalog list: %w", err)
	}
	records := make([]IssueRecord, 0, len(values))
	for index, value := range values {
		var record IssueRecord
		if err := json.Unmarshal([]byte(value), &record); err != nil {
			s.logger.Error("skipping malformed catalog entry", "key", s.key, "index", index, "error", err)
			continue
		}
		records = append(records, record)
	}
	return records, nil
}

func (s *RedisStore) Append(ctx context.Context, record IssueRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode catalog entry: %w", err)
	}
	if err := s.client.RPush(ctx, s.key, payload).Err(); err != nil {
		return fmt.Errorf("append catalog entry: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

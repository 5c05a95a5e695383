package catalog

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func TestRedisStoreAppendPreservesOrder(t *testing.T) {
	redisURL := strings.TrimSpace(os.Getenv("FIXDESK_TEST_REDIS_URL"))
	if redisURL == "" {
		t.Skip("FIXDESK_TEST_REDIS_URL not set")
	}
	options, err := redis.ParseURL(redisURL)
	if err != nil {
		t.Fatalf("parse redis url: %v", err)
	}
	client := redis.NewClient(options)
	key := "fixdesk:test:" + uuid.NewString()
	store := NewRedisStore(client, key, discardLogger())
	ctx := context.Background()
	t.Cleanup(func() {
		client.Del(context.Background(), key)
		_ = store.Close()
	})

	for _, issue := range []string{"first", "second", "third"} {
		if err := store.Append(ctx, IssueRecord{Issue: issue, Fix: "fix " + issue}); err != nil {
			t.Fatalf("append %s: %v", issue, err)
		}
	}
	if err := client.RPush(ctx, key, "{broken").Err(); err != nil {
		t.Fatalf("push malformed entry: %v", err)
	}

	records, err := store.ReadAll(ctx)
	if err != nil {
		t.Fatalf("read all: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if records[0].Issue != "first" || records[2].Issue != "third" {
		t.Fatalf("unexpected order: %+v", records)
	}
}

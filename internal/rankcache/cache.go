// Package rankcache keeps recent ranked results in Redis so that busy listing
// pages don't re-aggregate the view log on every request.
package rankcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"cdr.dev/slog/v3"
	"github.com/cespare/xxhash/v2"
	"github.com/redis/go-redis/v9"

	"github.com/runnerr0/mostviewed/internal/storage"
)

// DefaultPrefix namespaces every key written by the cache.
const DefaultPrefix = "mostviewed:rank:"

// Cache is a Redis-backed store of ranked rows.
type Cache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger slog.Logger
}

// New wraps client. A non-positive ttl disables expiry, which is rarely what
// you want for a ranking.
func New(client *redis.Client, prefix string, ttl time.Duration, logger slog.Logger) *Cache {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Cache{client: client, prefix: prefix, ttl: ttl, logger: logger}
}

// Dial connects to addr and checks the connection.
func Dial(ctx context.Context, addr string, db int, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		DB:       db,
		Password: password,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return client, nil
}

// Key maps a query descriptor to a fixed-size redis key.
func (c *Cache) Key(descriptor string) string {
	return c.prefix + strconv.FormatUint(xxhash.Sum64String(descriptor), 16)
}

// Get returns the cached rows for descriptor. A miss is not an error.
func (c *Cache) Get(ctx context.Context, descriptor string) ([]storage.RankedRow, bool, error) {
	data, err := c.client.Get(ctx, c.Key(descriptor)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get ranked rows: %w", err)
	}

	var rows []storage.RankedRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, false, fmt.Errorf("decode ranked rows: %w", err)
	}
	if rows == nil {
		rows = []storage.RankedRow{}
	}
	return rows, true, nil
}

// Set stores rows for descriptor.
func (c *Cache) Set(ctx context.Context, descriptor string, rows []storage.RankedRow) error {
	if rows == nil {
		rows = []storage.RankedRow{}
	}
	data, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("encode ranked rows: %w", err)
	}
	if err := c.client.Set(ctx, c.Key(descriptor), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("set ranked rows: %w", err)
	}
	return nil
}

// Invalidate drops every key under the cache prefix.
func (c *Cache) Invalidate(ctx context.Context) error {
	var (
		cursor  uint64
		removed int64
	)
	for {
		keys, next, err := c.client.Scan(ctx, cursor, c.prefix+"*", 100).Result()
		if err != nil {
			return fmt.Errorf("scan ranked rows: %w", err)
		}
		if len(keys) > 0 {
			n, err := c.client.Del(ctx, keys...).Result()
			if err != nil {
				return fmt.Errorf("delete ranked rows: %w", err)
			}
			removed += n
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	c.logger.Debug(ctx, "rank cache invalidated", slog.F("keys", removed))
	return nil
}

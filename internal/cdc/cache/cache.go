// Package cache implements the secmaster cache: a thin Redis wrapper
// storing one JSON document per row at key "secmaster:{table}:{pk}",
// with no TTL; the row is kept current by CDC replay, not by expiry.
package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Cache is a secmaster row cache backed by Redis.
type Cache struct {
	client *redis.Client
}

// New creates a Cache from a Redis connection URL (redis://...).
func New(url string) (*Cache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("cache: parse redis url: %w", err)
	}
	return &Cache{client: redis.NewClient(opts)}, nil
}

// NewFromClient wraps an already-constructed *redis.Client, primarily
// for tests against miniredis or a shared pool.
func NewFromClient(client *redis.Client) *Cache {
	return &Cache{client: client}
}

func key(table, pk string) string {
	return fmt.Sprintf("secmaster:%s:%s", table, pk)
}

// Set stores value (marshaled to JSON) at secmaster:{table}:{pk}.
func (c *Cache) Set(ctx context.Context, table, pk string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEncodeFailed, err)
	}
	if err := c.client.Set(ctx, key(table, pk), data, 0).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrSetFailed, err)
	}
	return nil
}

// SetRaw stores an already-encoded JSON document at secmaster:{table}:{pk}
// without re-marshaling it, for callers that already hold JSON bytes
// (e.g. PostgreSQL's row_to_json output).
func (c *Cache) SetRaw(ctx context.Context, table, pk string, jsonData []byte) error {
	if err := c.client.Set(ctx, key(table, pk), jsonData, 0).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrSetFailed, err)
	}
	return nil
}

// Delete removes the cached row for table/pk. Deleting a missing key is
// not an error; DEL is inherently idempotent.
func (c *Cache) Delete(ctx context.Context, table, pk string) error {
	if err := c.client.Del(ctx, key(table, pk)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrDeleteFailed, err)
	}
	return nil
}

// Get retrieves and unmarshals the cached row for table/pk. It returns
// (false, nil) if the key does not exist.
func (c *Cache) Get(ctx context.Context, table, pk string, out any) (bool, error) {
	data, err := c.client.Get(ctx, key(table, pk)).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrGetFailed, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("%w: %v", ErrGetFailed, err)
	}
	return true, nil
}

// Close releases the underlying Redis connection pool.
func (c *Cache) Close() error {
	return c.client.Close()
}

// Ping checks Redis connectivity, for wiring into a health.DatabaseChecker.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

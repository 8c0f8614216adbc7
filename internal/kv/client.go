// Package kv wraps a networked key-value store (Redis) with the narrow set
// of operations the rest of mailwatch needs: scalar get/set/delete, list
// append/pop, pattern scan, TTL touch, plus Memoize/Invalidate helpers built
// on top of them.
package kv

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client is a thin façade over redis.Client. All operations except Scan are
// single round-trip; ordering across independent keys is not guaranteed.
type Client struct {
	rdb *redis.Client
}

// New dials a Redis instance at addr (host:port).
func New(addr string, db int) *Client {
	return &Client{rdb: redis.NewClient(&redis.Options{Addr: addr, DB: db})}
}

// Close releases the underlying connection pool.
func (c *Client) Close() error { return c.rdb.Close() }

// Get returns the value for k, or ("", false, nil) if k is absent.
func (c *Client) Get(ctx context.Context, k string) (string, bool, error) {
	v, err := c.rdb.Get(ctx, k).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("kv get %s: %w", k, err)
	}
	return v, true, nil
}

// Set stores v under k. ttl <= 0 means no expiry.
func (c *Client) Set(ctx context.Context, k, v string, ttl time.Duration) error {
	if err := c.rdb.Set(ctx, k, v, ttl).Err(); err != nil {
		return fmt.Errorf("kv set %s: %w", k, err)
	}
	return nil
}

// Delete removes k. Deleting an absent key is not an error.
func (c *Client) Delete(ctx context.Context, k string) error {
	if err := c.rdb.Del(ctx, k).Err(); err != nil {
		return fmt.Errorf("kv delete %s: %w", k, err)
	}
	return nil
}

// Exists reports whether k is present.
func (c *Client) Exists(ctx context.Context, k string) (bool, error) {
	n, err := c.rdb.Exists(ctx, k).Result()
	if err != nil {
		return false, fmt.Errorf("kv exists %s: %w", k, err)
	}
	return n > 0, nil
}

// LPush appends v to the tail of the list at k (append-only outbound lists
// read head-first, so new entries join at the tail).
func (c *Client) LPush(ctx context.Context, k, v string) error {
	if err := c.rdb.RPush(ctx, k, v).Err(); err != nil {
		return fmt.Errorf("kv lpush %s: %w", k, err)
	}
	return nil
}

// LPop removes and returns the head element of the list at k.
// Returns ("", false, nil) if the list is empty or absent.
func (c *Client) LPop(ctx context.Context, k string) (string, bool, error) {
	v, err := c.rdb.LPop(ctx, k).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("kv lpop %s: %w", k, err)
	}
	return v, true, nil
}

// LRange returns all elements of the list at k, head to tail.
func (c *Client) LRange(ctx context.Context, k string) ([]string, error) {
	vs, err := c.rdb.LRange(ctx, k, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("kv lrange %s: %w", k, err)
	}
	return vs, nil
}

// LRem removes up to count occurrences of v from the list at k. Defined for
// parity with the source system; the retry worker does not call it (see
// package retryqueue).
func (c *Client) LRem(ctx context.Context, k, v string, count int64) error {
	if err := c.rdb.LRem(ctx, k, count, v).Err(); err != nil {
		return fmt.Errorf("kv lrem %s: %w", k, err)
	}
	return nil
}

// Scan returns every key matching pattern (glob-style, as Redis SCAN MATCH
// expects). It paginates internally via the SCAN cursor.
func (c *Client) Scan(ctx context.Context, pattern string) ([]string, error) {
	var (
		cursor uint64
		keys   []string
	)
	for {
		batch, next, err := c.rdb.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, fmt.Errorf("kv scan %s: %w", pattern, err)
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return keys, nil
}

// Touch refreshes the TTL of k without altering its value.
func (c *Client) Touch(ctx context.Context, k string, ttl time.Duration) error {
	if err := c.rdb.Expire(ctx, k, ttl).Err(); err != nil {
		return fmt.Errorf("kv touch %s: %w", k, err)
	}
	return nil
}

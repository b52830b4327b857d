package redisclient

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	"assistant-service/internal/models"

	"github.com/go-redis/redis/v8"
)

//go:embed scripts/rate_limit.lua
var rateLimitScript string

// storeContextTTL bounds staleness of cached store metadata used in
// chat prompts.
const storeContextTTL = 5 * time.Minute

type Client struct {
	rdb             *redis.Client
	rateLimitScript *redis.Script
}

// NewClient creates a new Redis client with Lua scripts loaded
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{
		rdb:             rdb,
		rateLimitScript: redis.NewScript(rateLimitScript),
	}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// GetStoreContext retrieves cached store metadata.
// Returns (nil, nil) on a cache miss.
func (c *Client) GetStoreContext(ctx context.Context, storeID string) (*models.Store, error) {
	key := fmt.Sprintf("storectx:%s", storeID)

	data, err := c.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var st models.Store
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("corrupt store context cache entry: %w", err)
	}
	return &st, nil
}

// SetStoreContext caches store metadata with a short TTL
func (c *Client) SetStoreContext(ctx context.Context, st *models.Store) error {
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}

	key := fmt.Sprintf("storectx:%s", st.ID)
	return c.rdb.Set(ctx, key, data, storeContextTTL).Err()
}

// InvalidateStoreContext drops a cached store entry
func (c *Client) InvalidateStoreContext(ctx context.Context, storeID string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("storectx:%s", storeID)).Err()
}

// IncrChatCount atomically bumps the per-user chat counter for the
// current window and returns the count. The window key expires after
// windowSeconds.
func (c *Client) IncrChatCount(ctx context.Context, userID string, windowSeconds int) (int64, error) {
	key := fmt.Sprintf("chatrate:%s", userID)

	result, err := c.rateLimitScript.Run(ctx, c.rdb, []string{key}, windowSeconds).Result()
	if err != nil {
		return 0, fmt.Errorf("rate limit script failed: %w", err)
	}

	count, ok := result.(int64)
	if !ok {
		return 0, fmt.Errorf("unexpected script result type")
	}

	return count, nil
}

package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/mikey/phishing-analyzer/internal/core"
	"go.uber.org/zap"
)

// RedisCache is a Redis implementation of the CacheRepository interface.
// Entries are stored as JSON under a key prefix; expiry is delegated to
// Redis TTLs, so Cleanup is a no-op.
type RedisCache struct {
	client    *redis.Client
	logger    *zap.Logger
	keyPrefix string
}

// redisEntry is the stored JSON form of a cache entry.
type redisEntry struct {
	ContentHash string    `json:"content_hash"`
	Score       int       `json:"score"`
	Label       string    `json:"label"`
	Confidence  float64   `json:"confidence"`
	LastSeen    time.Time `json:"last_seen"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// NewRedisCache creates a new Redis cache
func NewRedisCache(addr, password string, db int, keyPrefix string, logger *zap.Logger) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisCache{
		client:    client,
		logger:    logger,
		keyPrefix: keyPrefix,
	}, nil
}

func (c *RedisCache) key(contentHash string) string {
	return c.keyPrefix + ":" + contentHash
}

// Get retrieves a cached entry for a content hash
func (c *RedisCache) Get(ctx context.Context, contentHash string) (*core.CacheEntry, error) {
	data, err := c.client.Get(ctx, c.key(contentHash)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query cache: %w", err)
	}

	var stored redisEntry
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("failed to decode cache entry: %w", err)
	}

	return &core.CacheEntry{
		ContentHash: stored.ContentHash,
		Score:       stored.Score,
		Label:       stored.Label,
		Confidence:  stored.Confidence,
		LastSeen:    stored.LastSeen,
		ExpiresAt:   stored.ExpiresAt,
	}, nil
}

// Set stores a cache entry with a TTL derived from its expiry
func (c *RedisCache) Set(ctx context.Context, entry *core.CacheEntry) error {
	data, err := json.Marshal(redisEntry{
		ContentHash: entry.ContentHash,
		Score:       entry.Score,
		Label:       entry.Label,
		Confidence:  entry.Confidence,
		LastSeen:    entry.LastSeen,
		ExpiresAt:   entry.ExpiresAt,
	})
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}

	ttl := time.Until(entry.ExpiresAt)
	if ttl <= 0 {
		return nil
	}

	if err := c.client.Set(ctx, c.key(entry.ContentHash), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store cache entry: %w", err)
	}
	return nil
}

// Delete removes a cache entry
func (c *RedisCache) Delete(ctx context.Context, contentHash string) error {
	if err := c.client.Del(ctx, c.key(contentHash)).Err(); err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

// Cleanup is a no-op; Redis expires keys by TTL.
func (c *RedisCache) Cleanup(ctx context.Context) error {
	return nil
}

// Stop closes the Redis connection
func (c *RedisCache) Stop() {
	if err := c.client.Close(); err != nil {
		c.logger.Error("Failed to close Redis client", zap.Error(err))
	}
}

package classifier

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/terra-clan/ability-tracker/internal/models"
)

const cacheKeyPrefix = "classification:"

// RedisCache keeps remote classifications in Redis with a TTL
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache creates a cache over an existing client
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func cacheKey(title string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(title))))
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}

func (c *RedisCache) Get(ctx context.Context, title string) (models.Classification, bool, error) {
	raw, err := c.client.Get(ctx, cacheKey(title)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.Classification{}, false, nil
	}
	if err != nil {
		return models.Classification{}, false, err
	}

	var cls models.Classification
	if err := json.Unmarshal(raw, &cls); err != nil {
		return models.Classification{}, false, err
	}
	return cls, true, nil
}

func (c *RedisCache) Set(ctx context.Context, title string, cls models.Classification) error {
	raw, err := json.Marshal(cls)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, cacheKey(title), raw, c.ttl).Err()
}

// Ping checks the underlying connection
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/brroMonta/gifting/config"
	"github.com/brroMonta/gifting/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// Client is a thin wrapper over go-redis used for JSON caching and rate-limit counters.
type Client struct {
	rdb *redis.Client
}

// New connects to Redis and verifies the connection with a ping.
func New(cfg *config.RedisConfig) (*Client, error) {
	logger.Info("Initializing Redis connection", map[string]interface{}{
		"host": cfg.Host,
		"port": cfg.Port,
		"db":   cfg.DB,
	})

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Error("Failed to connect to Redis", err, map[string]interface{}{
			"host": cfg.Host,
			"port": cfg.Port,
		})
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Redis connection established successfully")
	return &Client{rdb: rdb}, nil
}

// NewFromClient wraps an existing go-redis client.
func NewFromClient(rdb *redis.Client) *Client {
	return &Client{rdb: rdb}
}

// Close closes the Redis connection
func (c *Client) Close() error {
	logger.Info("Closing Redis connection")
	return c.rdb.Close()
}

// GetJSON loads key into dest. The bool is false on a cache miss.
func (c *Client) GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	val, err := c.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(val, dest); err != nil {
		// A corrupt entry is treated as a miss and removed.
		logger.Warn("Dropping undecodable cache entry", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
		c.rdb.Del(ctx, key)
		return false, nil
	}
	return true, nil
}

// SetJSON stores v under key with the given ttl.
func (c *Client) SetJSON(ctx context.Context, key string, v interface{}, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode cache value: %w", err)
	}
	return c.rdb.Set(ctx, key, data, ttl).Err()
}

// Delete removes keys; missing keys are ignored.
func (c *Client) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.rdb.Del(ctx, keys...).Err()
}

// storeIfGeneration sets KEYS[2] only while KEYS[1] still holds ARGV[1]. A
// missing generation key reads as "0".
var storeIfGeneration = redis.NewScript(`
local current = redis.call("GET", KEYS[1])
if current == false then
	current = "0"
end
if current ~= ARGV[1] then
	return 0
end
redis.call("SET", KEYS[2], ARGV[2], "PX", ARGV[3])
return 1
`)

// Generation returns the counter stored at genKey, or 0 if it is unset.
func (c *Client) Generation(ctx context.Context, genKey string) (int64, error) {
	gen, err := c.rdb.Get(ctx, genKey).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return gen, err
}

// SetJSONIfGeneration stores v under key only if genKey still holds gen. It
// reports whether the value was written.
func (c *Client) SetJSONIfGeneration(ctx context.Context, genKey string, gen int64, key string, v interface{}, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, fmt.Errorf("conditional cache write needs a positive ttl, got %s", ttl)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return false, fmt.Errorf("failed to encode cache value: %w", err)
	}
	written, err := storeIfGeneration.Run(ctx, c.rdb,
		[]string{genKey, key},
		strconv.FormatInt(gen, 10), data, ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, err
	}
	return written == 1, nil
}

// BumpGeneration advances genKey and deletes keys in one transaction, so a
// writer holding the old generation can no longer repopulate them. genKey
// lives for genTTL after its last bump.
func (c *Client) BumpGeneration(ctx context.Context, genKey string, genTTL time.Duration, keys ...string) error {
	pipe := c.rdb.TxPipeline()
	pipe.Incr(ctx, genKey)
	if genTTL > 0 {
		pipe.Expire(ctx, genKey, genTTL)
	}
	if len(keys) > 0 {
		pipe.Del(ctx, keys...)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Allow counts one hit against key in a fixed window and reports whether the
// count is still within limit. The remaining count is never negative.
func (c *Client) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, int, error) {
	pipe := c.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, err
	}

	count := int(incr.Val())
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return count <= limit, remaining, nil
}

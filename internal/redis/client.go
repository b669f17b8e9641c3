package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client wraps the redis client with the operations the gateway needs.
type Client struct {
	rdb *redis.Client
}

// Config holds Redis connection settings.
type Config struct {
	Host     string
	Port     string
	Password string
	DB       int
}

func NewClient(config Config) *Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", config.Host, config.Port),
		Password: config.Password,
		DB:       config.DB,
	})
	return &Client{rdb: rdb}
}

// Ping checks Redis connectivity.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// PushJob publishes a job onto a list queue.
func (c *Client) PushJob(ctx context.Context, queueName string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal job data: %w", err)
	}
	return c.rdb.LPush(ctx, queueName, jsonData).Err()
}

// PopJob blocks until a job is available on the queue or the timeout lapses.
func (c *Client) PopJob(ctx context.Context, queueName string, timeout time.Duration) ([]byte, error) {
	result, err := c.rdb.BRPop(ctx, timeout, queueName).Result()
	if err != nil {
		return nil, err
	}
	if len(result) < 2 {
		return nil, fmt.Errorf("unexpected result format from BRPop")
	}
	return []byte(result[1]), nil
}

// SetWithExpiration sets a key-value pair with a TTL.
func (c *Client) SetWithExpiration(ctx context.Context, key string, value any, expiration time.Duration) error {
	return c.rdb.Set(ctx, key, value, expiration).Err()
}

// SetIfAbsent sets a key only when it does not exist yet, reporting whether
// the set happened.
func (c *Client) SetIfAbsent(ctx context.Context, key string, value any, expiration time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, key, value, expiration).Result()
}

// Get retrieves a value by key.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	return c.rdb.Get(ctx, key).Result()
}

// Exists checks whether a key exists.
func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	count, err := c.rdb.Exists(ctx, key).Result()
	return count > 0, err
}

// Delete removes a key.
func (c *Client) Delete(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, key).Err()
}

// QueueLength returns the length of a list queue.
func (c *Client) QueueLength(ctx context.Context, queueName string) (int64, error) {
	return c.rdb.LLen(ctx, queueName).Result()
}

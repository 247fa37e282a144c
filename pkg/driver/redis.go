package driver

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis keys and channels the driver publishes under.
const (
	KeyTrackerState = "ndi-tracker"
	KeyToolPrefix   = "ndi-tracker:tool:"

	ChannelTrackerState = "ndi-tracker"
	ChannelToolsUpdated = "ndi-tracker:tools-updated"
	ChannelSnapshot     = "ndi-tracker:snapshot"

	CommandListKey = "ndi-tracker:commands"
)

// RedisClient is the publish/subscribe/command-queue collaborator,
// adapted from the teacher's pkg/redis.Client: hash writes with an
// optional paired publish, a blocking list pop for the command queue,
// and raw channel publish.
type RedisClient struct {
	client *redis.Client
	ctx    context.Context
}

// NewRedisClient dials addr and verifies connectivity with PING.
func NewRedisClient(addr, password string, db int) (*RedisClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("driver: connect to redis: %w", err)
	}
	return &RedisClient{client: client, ctx: ctx}, nil
}

// WriteString sets one hash field.
func (c *RedisClient) WriteString(key, field, value string) error {
	return c.client.HSet(c.ctx, key, field, value).Err()
}

// WriteAndPublishString sets one hash field and publishes the change
// on channel, field:value formatted, in one pipeline round trip.
func (c *RedisClient) WriteAndPublishString(key, channel, field, value string) error {
	pipe := c.client.Pipeline()
	pipe.HSet(c.ctx, key, field, value)
	pipe.Publish(c.ctx, channel, fmt.Sprintf("%s:%s", field, value))
	_, err := pipe.Exec(c.ctx)
	return err
}

// WriteBytes sets one hash field to a raw byte blob (used for the
// per-tick CBOR snapshot).
func (c *RedisClient) WriteBytes(key, field string, value []byte) error {
	return c.client.HSet(c.ctx, key, field, value).Err()
}

// Publish publishes a raw byte payload to channel.
func (c *RedisClient) Publish(channel string, payload []byte) error {
	return c.client.Publish(c.ctx, channel, payload).Err()
}

// BRPop blocks (indefinitely, if timeout is 0) waiting for a value on
// key, returning (nil, nil) on a redis.Nil timeout rather than
// treating it as an error.
func (c *RedisClient) BRPop(timeout time.Duration, key string) ([]string, error) {
	result, err := c.client.BRPop(c.ctx, timeout, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("driver: brpop %s: %w", key, err)
	}
	return result, nil
}

// Close releases the underlying connection pool.
func (c *RedisClient) Close() error {
	return c.client.Close()
}

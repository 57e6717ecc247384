package local

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dissonance-oracle/oracle/pkg/model"
)

// redisBlockCounterScript atomically increments a bucketed block counter and
// refreshes its TTL in one round trip, the same Lua-script-as-atomic-unit
// shape as a Redis token bucket: read-modify-write without a client-side
// race between instances.
//
// KEYS[1] = bucket key ("block_counter:<ruleId>:<hourBucket>")
// ARGV[1] = ttl in seconds
var redisBlockCounterScript = redis.NewScript(`
local key = KEYS[1]
local ttl = tonumber(ARGV[1])
local count = redis.call("INCR", key)
redis.call("EXPIRE", key, ttl)
return count
`)

// RedisBlockCounter implements adapter.BlockCounter against a shared Redis
// instance, so the circuit breaker's block count is consistent across every
// oracle replica instead of being per-process.
type RedisBlockCounter struct {
	client    *redis.Client
	clock     func() time.Time
	bucketSec int64
}

// NewRedisBlockCounter dials addr (no TLS config here; pass a
// rediss://-style addr upstream if the deployment needs it) and returns a
// ready-to-use counter. bucketSec matches the local file-backed
// implementation's hourly bucketing by default.
func NewRedisBlockCounter(addr, password string, db int) *RedisBlockCounter {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisBlockCounter{client: client, clock: time.Now, bucketSec: 3600}
}

func (c *RedisBlockCounter) bucketKey(ruleID string, hourBucket int64) string {
	return fmt.Sprintf("block_counter:%s:%d", ruleID, hourBucket)
}

func (c *RedisBlockCounter) Increment(ctx context.Context, ruleID string, ttl time.Duration) error {
	bucket := model.BucketFor(c.clock(), c.bucketSec)
	key := c.bucketKey(ruleID, bucket)
	ttlSec := int64(ttl.Seconds())
	if ttlSec <= 0 {
		ttlSec = c.bucketSec
	}
	_, err := redisBlockCounterScript.Run(ctx, c.client, []string{key}, ttlSec).Result()
	if err != nil {
		return fmt.Errorf("redis block counter increment: %w", err)
	}
	return nil
}

// Get sums the counter across every hour bucket inside window, reading each
// bucket key directly — TTL-expired buckets are simply absent keys, which
// GET reports as redis.Nil and this treats as zero.
func (c *RedisBlockCounter) Get(ctx context.Context, ruleID string, window time.Duration) (int, error) {
	now := c.clock()
	bucket := model.BucketFor(now, c.bucketSec)
	buckets := int64(window.Seconds())/c.bucketSec + 1

	total := 0
	for i := int64(0); i < buckets; i++ {
		key := c.bucketKey(ruleID, bucket-i)
		val, err := c.client.Get(ctx, key).Int()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("redis block counter get: %w", err)
		}
		total += val
	}
	return total, nil
}

// Close releases the underlying Redis client connection pool.
func (c *RedisBlockCounter) Close() error {
	return c.client.Close()
}

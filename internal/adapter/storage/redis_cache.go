package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const quantityKeyPrefix = "stock:"

// setIfNewerScript writes quantity+version unless the cache already holds
// an equal or later version, so late cache refreshes from a slow writer
// can never clobber a fresher value.
var setIfNewerScript = redis.NewScript(`
local key = KEYS[1]
local quantity = tonumber(ARGV[1])
local version = tonumber(ARGV[2])
local ttl = tonumber(ARGV[3])

local current = redis.call('HGET', key, 'version')
if current and tonumber(current) >= version then
	return 0
end

redis.call('HSET', key, 'quantity', quantity, 'version', version)
if ttl > 0 then
	redis.call('EXPIRE', key, ttl)
end
return 1
`)

// RedisCache implements port.QuantityCache on a Redis hash per key.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (r *RedisCache) GetQuantity(ctx context.Context, storeID, productID string) (int, bool, error) {
	qty, err := r.client.HGet(ctx, quantityKey(storeID, productID), "quantity").Int()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("cache get: %w", err)
	}
	return qty, true, nil
}

func (r *RedisCache) SetQuantityIfNewer(ctx context.Context, storeID, productID string, quantity int, version int64) error {
	ttl := int64(r.ttl / time.Second)
	err := setIfNewerScript.Run(ctx, r.client,
		[]string{quantityKey(storeID, productID)}, quantity, version, ttl,
	).Err()
	if err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

func (r *RedisCache) Invalidate(ctx context.Context, storeID, productID string) error {
	return r.client.Del(ctx, quantityKey(storeID, productID)).Err()
}

func quantityKey(storeID, productID string) string {
	return quantityKeyPrefix + storeID + ":" + productID
}

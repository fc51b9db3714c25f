package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v9"
	"github.com/umalmyha/customer-records/internal/model"
	"github.com/vmihailenco/msgpack/v5"
)

// KEYS[1] - customer, KEYS[2] - eviction mark; ARGV[1] - stale version, ARGV[2] - mark ttl in ms
var evictScript = redis.NewScript(`
local marked = tonumber(redis.call('GET', KEYS[2]))
if not marked or marked < tonumber(ARGV[1]) then
	redis.call('SET', KEYS[2], ARGV[1], 'PX', ARGV[2])
end
return redis.call('DEL', KEYS[1])
`)

// KEYS[1] - customer, KEYS[2] - eviction mark; ARGV[1] - encoded customer, ARGV[2] - its version, ARGV[3] - ttl in ms
var createScript = redis.NewScript(`
local marked = tonumber(redis.call('GET', KEYS[2]))
if marked and marked >= tonumber(ARGV[2]) then
	return 0
end
if redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3], 'NX') then
	return 1
end
return 0
`)

type redisCustomerCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCustomerCache builds CustomerCacheRepository storing msgpack encoded customers in redis
func NewRedisCustomerCache(client *redis.Client, ttl time.Duration) CustomerCacheRepository {
	return &redisCustomerCache{client: client, ttl: ttl}
}

func (r *redisCustomerCache) FindByID(ctx context.Context, id string) (*model.Customer, error) {
	res, err := r.client.Get(ctx, r.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var c model.Customer
	if err := msgpack.Unmarshal(res, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *redisCustomerCache) Evict(ctx context.Context, id string, staleUpTo int64) error {
	keys := []string{r.key(id), r.evictedKey(id)}
	return evictScript.Run(ctx, r.client, keys, staleUpTo, r.ttl.Milliseconds()).Err()
}

func (r *redisCustomerCache) Create(ctx context.Context, c *model.Customer) error {
	encoded, err := msgpack.Marshal(c)
	if err != nil {
		return err
	}

	keys := []string{r.key(c.ID), r.evictedKey(c.ID)}
	return createScript.Run(ctx, r.client, keys, encoded, c.UpdatedAt, r.ttl.Milliseconds()).Err()
}

// both keys share hash tag to stay in the same slot
func (r *redisCustomerCache) key(id string) string {
	return fmt.Sprintf("customer:{%s}", id)
}

func (r *redisCustomerCache) evictedKey(id string) string {
	return fmt.Sprintf("customer:{%s}:evicted", id)
}

package cache

import (
	"context"
	"fmt"
	"math"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redis/v9"
	"github.com/google/uuid"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/umalmyha/customer-records/internal/model"
)

const (
	connectionTimeout = 3 * time.Second
	redisTestPassword = "cache-test"
	testTTL           = time.Minute
)

var redisClient *redis.Client

func TestMain(m *testing.M) {
	dockerPool, err := dockertest.NewPool("")
	if err != nil {
		logrus.Fatalf("failed to create pool - %v", err)
	}

	if err := dockerPool.Client.Ping(); err != nil {
		logrus.Fatalf("failed to connect to docker - %v", err)
	}

	// start redis
	redisCache, err := dockerPool.RunWithOptions(&dockertest.RunOptions{
		Repository: "redis",
		Tag:        "7-alpine",
		Cmd:        []string{"redis-server", "--requirepass", redisTestPassword},
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		logrus.Fatalf("failed to start redis - %v", err)
	}

	// connect to redis
	err = dockerPool.Retry(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
		defer cancel()

		redisClient = redis.NewClient(&redis.Options{
			Addr:     redisCache.GetHostPort("6379/tcp"),
			Password: redisTestPassword,
		})
		return redisClient.Ping(ctx).Err()
	})
	if err != nil {
		logrus.Fatalf("failed to establish connection to redis - %v", err)
	}

	code := m.Run()

	_ = redisClient.Close()

	if err := dockerPool.Purge(redisCache); err != nil {
		logrus.Fatalf("failed to purge redis - %v", err)
	}

	os.Exit(code)
}

func testCustomer(updatedAt int64) *model.Customer {
	return &model.Customer{
		ID:        uuid.NewString(),
		Name:      "John Smith",
		Email:     "john.smith@api.com",
		Address:   model.Address{City: "Boston", Country: "US"},
		CreatedAt: 1_700_000_000_000,
		UpdatedAt: updatedAt,
	}
}

func TestRedisCustomerCache(t *testing.T) {
	ctx := context.Background()
	c := NewRedisCustomerCache(redisClient, testTTL)
	customer := testCustomer(1_700_000_000_000)

	t.Log("missing customer is nil without error")
	{
		found, err := c.FindByID(ctx, customer.ID)
		require.NoError(t, err)
		require.Nil(t, found)
	}

	t.Log("cached customer must be returned with ttl")
	{
		require.NoError(t, c.Create(ctx, customer))

		found, err := c.FindByID(ctx, customer.ID)
		require.NoError(t, err)
		require.Equal(t, customer, found)

		ttl, err := redisClient.PTTL(ctx, fmt.Sprintf("customer:{%s}", customer.ID)).Result()
		require.NoError(t, err)
		require.Greater(t, ttl, time.Duration(0), "cached customer must expire")
	}

	t.Log("existing entry must not be overwritten")
	{
		newer := *customer
		newer.Name = "Jane Smith"
		newer.UpdatedAt++
		require.NoError(t, c.Create(ctx, &newer))

		found, err := c.FindByID(ctx, customer.ID)
		require.NoError(t, err)
		require.Equal(t, "John Smith", found.Name)
	}

	t.Log("evicted customer must be gone")
	{
		require.NoError(t, c.Evict(ctx, customer.ID, customer.UpdatedAt))

		found, err := c.FindByID(ctx, customer.ID)
		require.NoError(t, err)
		require.Nil(t, found)
	}
}

func TestRedisCustomerCacheRefusesStaleRecord(t *testing.T) {
	ctx := context.Background()
	c := NewRedisCustomerCache(redisClient, testTTL)
	before := testCustomer(1_700_000_000_000)

	// reader fetched record before update, update evicts before reader caches it
	require.NoError(t, c.Evict(ctx, before.ID, before.UpdatedAt))
	require.NoError(t, c.Create(ctx, before))

	found, err := c.FindByID(ctx, before.ID)
	require.NoError(t, err)
	require.Nil(t, found, "record read before update must not be cached")

	after := *before
	after.Name = "Jane Smith"
	after.UpdatedAt = before.UpdatedAt + 1
	require.NoError(t, c.Create(ctx, &after))

	found, err = c.FindByID(ctx, before.ID)
	require.NoError(t, err)
	require.NotNil(t, found, "updated record must be cached")
	require.Equal(t, "Jane Smith", found.Name)
}

func TestRedisCustomerCacheEvictKeepsNewestMark(t *testing.T) {
	ctx := context.Background()
	c := NewRedisCustomerCache(redisClient, testTTL)
	customer := testCustomer(1_700_000_000_005)

	require.NoError(t, c.Evict(ctx, customer.ID, customer.UpdatedAt))
	require.NoError(t, c.Evict(ctx, customer.ID, customer.UpdatedAt-5), "older eviction must not lower the mark")

	require.NoError(t, c.Create(ctx, customer))
	found, err := c.FindByID(ctx, customer.ID)
	require.NoError(t, err)
	require.Nil(t, found, "record up to newest evicted version must not be cached")
}

func TestRedisCustomerCacheDeletedNeverCached(t *testing.T) {
	ctx := context.Background()
	c := NewRedisCustomerCache(redisClient, testTTL)
	customer := testCustomer(time.Now().UnixMilli())

	require.NoError(t, c.Evict(ctx, customer.ID, math.MaxInt64))
	require.NoError(t, c.Create(ctx, customer))

	found, err := c.FindByID(ctx, customer.ID)
	require.NoError(t, err)
	require.Nil(t, found, "deleted customer must not be cached")
}

func TestNoopCustomerCache(t *testing.T) {
	ctx := context.Background()
	c := NewNoopCustomerCache()
	customer := testCustomer(1)

	require.NoError(t, c.Create(ctx, customer))
	require.NoError(t, c.Evict(ctx, customer.ID, customer.UpdatedAt))

	found, err := c.FindByID(ctx, customer.ID)
	require.NoError(t, err)
	require.Nil(t, found)
}

package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/DrugEx/internal/infrastructure/monitoring/logging"
	pkgerrors "github.com/turtacn/DrugEx/pkg/errors"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := NewClient(&RedisConfig{Addr: mr.Addr()}, logging.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func TestNewClient_Success(t *testing.T) {
	client, _ := newTestClient(t)

	assert.NoError(t, client.GetUnderlyingClient().Ping(context.Background()).Err())
	assert.Equal(t, 10, client.config.PoolSize)
	assert.Equal(t, 5*time.Second, client.config.DialTimeout)
}

func TestNewClient_ConnectionFailed(t *testing.T) {
	cfg := &RedisConfig{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	}

	client, err := NewClient(cfg, logging.NewNopLogger())
	assert.Nil(t, client)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeCacheError))
}

func TestClient_Operations(t *testing.T) {
	client, mr := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "foo", "bar", 0).Err())
	val, err := client.Get(ctx, "foo").Result()
	require.NoError(t, err)
	assert.Equal(t, "bar", val)

	vals, err := client.MGet(ctx, "foo", "nope").Result()
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"bar", nil}, vals)

	ok, err := client.SetNX(ctx, "foo", "baz", time.Minute).Result()
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = client.SetNX(ctx, "lease", "me", time.Minute).Result()
	require.NoError(t, err)
	assert.True(t, ok)
	ttl, err := client.PTTL(ctx, "lease").Result()
	require.NoError(t, err)
	assert.Equal(t, time.Minute, ttl)

	deleted, err := client.Del(ctx, "foo").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	exists, err := client.Exists(ctx, "foo").Result()
	require.NoError(t, err)
	assert.Zero(t, exists)
	assert.True(t, mr.Exists("lease"))
}

func TestClient_Close(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, client.Close())
	assert.NoError(t, client.Close(), "second close is a no-op")

	assert.ErrorIs(t, client.Ping(ctx), ErrClientClosed)
	assert.ErrorIs(t, client.Get(ctx, "k").Err(), ErrClientClosed)
	assert.ErrorIs(t, client.Set(ctx, "k", "v", 0).Err(), ErrClientClosed)
	assert.ErrorIs(t, client.MGet(ctx, "k").Err(), ErrClientClosed)
	assert.ErrorIs(t, client.Del(ctx, "k").Err(), ErrClientClosed)
	assert.ErrorIs(t, client.Exists(ctx, "k").Err(), ErrClientClosed)
	assert.ErrorIs(t, client.SetNX(ctx, "k", "v", 0).Err(), ErrClientClosed)
	assert.ErrorIs(t, client.PTTL(ctx, "k").Err(), ErrClientClosed)
}

func TestClient_GetMissing(t *testing.T) {
	client, _ := newTestClient(t)

	err := client.Get(context.Background(), "absent").Err()
	assert.Equal(t, redis.Nil, err)
}

//Personal.AI order the ending

package resultcache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/specsql/internal/config"
	"github.com/roach88/specsql/internal/testutil"
)

func TestRedis_RoundTrip(t *testing.T) {
	addr := testutil.StartRedis(t)
	ctx := context.Background()

	cache, client, err := Dial(ctx, config.CacheConfig{Addr: addr, Prefix: "specsql-test:", TTL: time.Minute})
	require.NoError(t, err)
	defer client.Close()

	_, ok, err := cache.Get(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Set(ctx, "abc", sampleResult()))

	got, ok, err := cache.Get(ctx, "abc")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, sampleResult().Columns, got.Columns)

	ttl, err := client.TTL(ctx, "specsql-test:abc").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, time.Minute)
}

func TestDial_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, _, err := Dial(ctx, config.CacheConfig{Addr: "127.0.0.1:1"})
	assert.ErrorContains(t, err, "connecting to redis")
}

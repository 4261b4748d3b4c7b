package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/kdduha/bill-parser/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisCache_Unreachable(t *testing.T) {
	c := NewRedisCache(config.RedisConfig{Addr: "127.0.0.1:1", TTL: time.Minute})
	t.Cleanup(func() { c.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, found, err := c.Get(ctx, "bill:missing")
	require.Error(t, err)
	assert.False(t, found)

	assert.Error(t, c.Set(ctx, "bill:key", "{}"))
	assert.Error(t, c.Ping(ctx))
}

func TestRedisCache_RoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)

	c := NewRedisCache(config.RedisConfig{Addr: mr.Addr(), TTL: time.Minute})
	t.Cleanup(func() { c.Close() })

	ctx := context.Background()
	require.NoError(t, c.Ping(ctx))

	val, found, err := c.Get(ctx, "bill:abc")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, val)

	reply := `{"items":[{"name":"Coffee","price":3.5}],"total":3.5}`
	require.NoError(t, c.Set(ctx, "bill:abc", reply))

	val, found, err = c.Get(ctx, "bill:abc")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, reply, val)
	assert.Equal(t, time.Minute, mr.TTL("bill:abc"))

	mr.FastForward(2 * time.Minute)

	_, found, err = c.Get(ctx, "bill:abc")
	require.NoError(t, err)
	assert.False(t, found)
}

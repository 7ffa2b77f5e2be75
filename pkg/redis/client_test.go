package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTryLock(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx := context.Background()
	c, err := NewClient(ctx, addr, "", 15, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	key := "classroom:test:lock:" + t.Name()
	require.NoError(t, c.Del(ctx, key).Err())

	release, ok, err := c.TryLock(ctx, key, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = c.TryLock(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second holder must wait")

	release()
	release2, ok, err := c.TryLock(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	// A stale release from the first holder must not drop the new lock.
	release()
	n, err := c.Exists(ctx, key).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	release2()
}

package dedupe

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryDeduper(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	d := newMemoryDeduper(time.Minute, func() time.Time { return now })
	ctx := context.Background()

	seen, err := d.Seen(ctx, "e1:u1")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, d.Remember(ctx, "e1:u1"))
	seen, _ = d.Seen(ctx, "e1:u1")
	assert.True(t, seen)
	seen, _ = d.Seen(ctx, "e1:u2")
	assert.False(t, seen)

	now = now.Add(2 * time.Minute)
	seen, _ = d.Seen(ctx, "e1:u1")
	assert.False(t, seen)

	// 下一次写入清理过期条目
	require.NoError(t, d.Remember(ctx, "e2:u1"))
	assert.Equal(t, 1, d.Len())
}

func TestRedisDeduper(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	d := NewRedisDeduper(client, "notification:event:", time.Minute)
	ctx := context.Background()

	seen, err := d.Seen(ctx, "e1:u1")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, d.Remember(ctx, "e1:u1"))
	assert.True(t, mr.Exists("notification:event:e1:u1"))
	seen, err = d.Seen(ctx, "e1:u1")
	require.NoError(t, err)
	assert.True(t, seen)

	mr.FastForward(2 * time.Minute)
	seen, err = d.Seen(ctx, "e1:u1")
	require.NoError(t, err)
	assert.False(t, seen)

	mr.Close()
	_, err = d.Seen(ctx, "e1:u1")
	assert.Error(t, err)
}

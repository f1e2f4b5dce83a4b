package dedup

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryGuardClaimsOnce(t *testing.T) {
	g, err := NewMemoryGuard(8)
	require.NoError(t, err)
	ctx := context.Background()

	first, _ := g.Claim(ctx, "-1001:42")
	again, _ := g.Claim(ctx, "-1001:42")
	other, _ := g.Claim(ctx, "-1001:43")

	assert.True(t, first)
	assert.False(t, again)
	assert.True(t, other)
}

func TestMemoryGuardEvictsOldest(t *testing.T) {
	g, err := NewMemoryGuard(2)
	require.NoError(t, err)
	ctx := context.Background()

	for i := range 3 {
		ok, _ := g.Claim(ctx, fmt.Sprint(i))
		require.True(t, ok)
	}
	ok, _ := g.Claim(ctx, "0")
	assert.True(t, ok, "evicted key is admitted again")
}

func TestNewMemoryGuardRejectsBadSize(t *testing.T) {
	_, err := NewMemoryGuard(0)
	assert.Error(t, err)
}

func TestRedisGuard(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	g := NewRedisGuard(client, "thipoself:post:", time.Hour)
	ctx := context.Background()

	first, err := g.Claim(ctx, "-1001:42")
	require.NoError(t, err)
	again, err := g.Claim(ctx, "-1001:42")
	require.NoError(t, err)

	assert.True(t, first)
	assert.False(t, again)
	assert.True(t, mr.Exists("thipoself:post:-1001:42"))
	assert.Equal(t, time.Hour, mr.TTL("thipoself:post:-1001:42"))

	mr.FastForward(2 * time.Hour)
	ok, err := g.Claim(ctx, "-1001:42")
	require.NoError(t, err)
	assert.True(t, ok, "expired claim is admitted again")
}

func TestRedisGuardSurfacesErrors(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	_, err := NewRedisGuard(client, "p:", 0).Claim(context.Background(), "k")
	assert.Error(t, err)
}
